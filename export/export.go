// Package export renders the current result set as an HTML page and a PDF.
package export

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/scipunch/echofeed/source"
)

//go:embed snapshot.html
var snapshotHTML string

var snapshotTmpl = template.Must(template.New("snapshot").Funcs(template.FuncMap{
	"lean": Lean,
}).Parse(snapshotHTML))

type Snapshot struct {
	Title       string
	GeneratedAt time.Time
	Filter      float64
	Entries     []Entry
}

type Entry struct {
	ID            string // Unique ID for anchor links
	Title         string
	Link          string
	Source        string
	Summary       string
	PublishedDate string
	ImageURL      template.URL
	Bias          float64
	RageScore     float64
}

func NewSnapshot(title string, filter float64, articles []source.Article, at time.Time) Snapshot {
	snap := Snapshot{
		Title:       title,
		GeneratedAt: at,
		Filter:      filter,
		Entries:     make([]Entry, 0, len(articles)),
	}
	for _, a := range articles {
		hash := sha256.Sum256([]byte(a.Link + a.Title))
		snap.Entries = append(snap.Entries, Entry{
			ID:            "a-" + hex.EncodeToString(hash[:8]),
			Title:         a.Title,
			Link:          a.Link,
			Source:        a.Source,
			Summary:       a.Summary,
			PublishedDate: a.PublishedDate,
			ImageURL:      imageURL(a.ImageURL),
			Bias:          a.Bias,
			RageScore:     a.RageScore,
		})
	}
	return snap
}

// imageURL trusts only web and local file images. file:// would otherwise be
// rewritten by html/template.
func imageURL(raw string) template.URL {
	for _, prefix := range []string{"https://", "http://", "file://"} {
		if strings.HasPrefix(raw, prefix) {
			return template.URL(raw)
		}
	}
	return ""
}

// Lean names the political lean of a bias value
func Lean(bias float64) string {
	switch {
	case bias <= -0.6:
		return "far left"
	case bias <= -0.2:
		return "left"
	case bias < 0.2:
		return "center"
	case bias < 0.6:
		return "right"
	default:
		return "far right"
	}
}

func RenderHTML(w io.Writer, snap Snapshot) error {
	if err := snapshotTmpl.Execute(w, snap); err != nil {
		return fmt.Errorf("could not convert snapshot into HTML: %w", err)
	}
	return nil
}

// Paths returns the HTML and PDF file names for a snapshot taken at t
func Paths(dir string, t time.Time) (htmlPath, pdfPath string) {
	base := "echofeed-" + t.Format("20060102-150405")
	return filepath.Join(dir, base+".html"), filepath.Join(dir, base+".pdf")
}

func WriteHTML(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory with %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create snapshot HTML file: %w", err)
	}
	defer out.Close()

	if err := RenderHTML(out, snap); err != nil {
		return err
	}
	slog.Info("HTML file generated", "path", path)
	return nil
}

// PDF prints an HTML file to PDF with a headless Chromium
func PDF(ctx context.Context, htmlPath, pdfPath string) error {
	absPath, err := filepath.Abs(htmlPath)
	if err != nil {
		return fmt.Errorf("could not get absolute path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("snapshot HTML is missing: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Install playwright if needed
	if err := playwright.Install(); err != nil {
		return fmt.Errorf("could not install playwright: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("could not start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch()
	if err != nil {
		return fmt.Errorf("could not launch browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.NewPage()
	if err != nil {
		return fmt.Errorf("could not create page: %w", err)
	}
	defer page.Close()

	if _, err = page.Goto("file://" + absPath); err != nil {
		return fmt.Errorf("could not navigate to HTML file: %w", err)
	}

	// B5 paper size: 176mm x 250mm
	_, err = page.PDF(playwright.PagePdfOptions{
		Path:            playwright.String(pdfPath),
		Width:           playwright.String("176mm"),
		Height:          playwright.String("250mm"),
		PrintBackground: playwright.Bool(true),
		Margin: &playwright.Margin{
			Top:    playwright.String("15mm"),
			Right:  playwright.String("15mm"),
			Bottom: playwright.String("15mm"),
			Left:   playwright.String("15mm"),
		},
	})
	if err != nil {
		return fmt.Errorf("could not generate PDF: %w", err)
	}

	slog.Info("PDF file generated", "path", pdfPath)
	return nil
}
