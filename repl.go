package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/scipunch/echofeed/export"
	"github.com/scipunch/echofeed/feed"
)

type command int

const (
	cmdFilter command = iota
	cmdMore
	cmdRetry
	cmdShow
	cmdExport
	cmdHelp
	cmdQuit
)

const helpText = `commands:
  <number>  set the bias filter, -1 (left) .. 1 (right)
  more      load the next page
  retry     retry after an error
  show      print the current items
  export    write HTML and PDF of the current items
  quit      exit`

var (
	readyColor = color.New(color.FgGreen)
	busyColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
	rageColor  = color.New(color.FgRed)
	dimColor   = color.New(color.Faint)
)

func parseCommand(line string) (command, float64, error) {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "more", "m":
		return cmdMore, 0, nil
	case "retry", "r":
		return cmdRetry, 0, nil
	case "show", "s", "":
		return cmdShow, 0, nil
	case "export", "e":
		return cmdExport, 0, nil
	case "help", "h", "?":
		return cmdHelp, 0, nil
	case "quit", "q", "exit":
		return cmdQuit, 0, nil
	}

	v, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return cmdHelp, 0, fmt.Errorf("unknown command %q", line)
	}
	if v < -1 || v > 1 {
		return cmdHelp, 0, fmt.Errorf("filter %v is outside [-1, 1]", v)
	}
	return cmdFilter, v, nil
}

// repl drives a controller from line-oriented input
type repl struct {
	ctrl      *feed.Controller
	in        io.Reader
	outputDir string
	now       func() time.Time
	export    func(ctx context.Context, snap feed.Snapshot) error

	mu  sync.Mutex // serializes writes to out
	out io.Writer
}

func newREPL(ctrl *feed.Controller, in io.Reader, out io.Writer, outputDir string) *repl {
	r := &repl{
		ctrl:      ctrl,
		in:        in,
		out:       out,
		outputDir: outputDir,
		now:       time.Now,
	}
	r.export = r.exportSnapshot
	return r
}

// run reads commands until quit, end of input or cancellation
func (r *repl) run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	r.println(helpText)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case line := <-lines:
			if quit := r.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) (quit bool) {
	cmd, v, err := parseCommand(line)
	if err != nil {
		r.println(errorColor.Sprint(err.Error()))
		return false
	}

	switch cmd {
	case cmdFilter:
		r.ctrl.SetFilter(v)
	case cmdMore:
		if !r.ctrl.LoadMore() {
			r.println(dimColor.Sprint("nothing more to load right now"))
		}
	case cmdRetry:
		r.ctrl.Retry()
	case cmdShow:
		r.printItems(r.ctrl.Snapshot())
	case cmdExport:
		if err := r.export(ctx, r.ctrl.Snapshot()); err != nil {
			slog.Error("export failed", "error", err)
			r.println(errorColor.Sprint("export failed: " + err.Error()))
		}
	case cmdHelp:
		r.println(helpText)
	case cmdQuit:
		return true
	}
	return false
}

// watch prints a status line on every controller update
func (r *repl) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.ctrl.Updates():
			r.println(statusLine(r.ctrl.Snapshot()))
		}
	}
}

func statusLine(s feed.Snapshot) string {
	lens := fmt.Sprintf("lens %+.2f (%s)", s.Requested, export.Lean(s.Requested))
	switch s.State {
	case feed.Error:
		return errorColor.Sprintf("[%s] %s", s.State, s.ErrorMessage) + dimColor.Sprint(" · "+lens+" · type retry")
	case feed.Ready:
		more := "end of feed"
		if s.HasMore {
			more = "more available"
		}
		return readyColor.Sprintf("[%s]", s.State) + fmt.Sprintf(" %d items · %s · %s", len(s.Items), lens, more)
	default:
		return busyColor.Sprintf("[%s]", s.State) + fmt.Sprintf(" %d items · %s", len(s.Items), lens)
	}
}

func (r *repl) printItems(s feed.Snapshot) {
	if len(s.Items) == 0 {
		r.println(dimColor.Sprint("no items"))
		return
	}
	var b strings.Builder
	for i, a := range s.Items {
		fmt.Fprintf(&b, "%3d. %s %s\n", i+1, rageColor.Sprintf("%5.1f", a.RageScore), a.Title)
		fmt.Fprintf(&b, "     %s\n", dimColor.Sprintf("%s (%s) %s", a.Source, export.Lean(a.Bias), a.Link))
	}
	r.println(strings.TrimRight(b.String(), "\n"))
}

func (r *repl) exportSnapshot(ctx context.Context, s feed.Snapshot) error {
	at := r.now()
	htmlPath, pdfPath := export.Paths(r.outputDir, at)
	snap := export.NewSnapshot("echofeed", s.Filter, s.Items, at)
	if err := export.WriteHTML(htmlPath, snap); err != nil {
		return err
	}
	r.println(readyColor.Sprint("wrote " + htmlPath))
	if err := export.PDF(ctx, htmlPath, pdfPath); err != nil {
		return err
	}
	r.println(readyColor.Sprint("wrote " + pdfPath))
	return nil
}

func (r *repl) println(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, s)
}
