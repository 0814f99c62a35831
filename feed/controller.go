package feed

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scipunch/echofeed/source"
)

// DefaultPageSize matches the page size the feed endpoint serves by default
const DefaultPageSize = 10

type fetchKind int

const (
	resetFetch fetchKind = iota
	moreFetch
)

func (k fetchKind) String() string {
	if k == resetFetch {
		return "reset"
	}
	return "more"
}

// Options configure a Controller. Zero values fall back to defaults.
type Options struct {
	PageSize       int
	Debounce       time.Duration
	RequestTimeout time.Duration // 0 disables the per-request timeout
	ErrorMessage   string
	InitialFilter  float64
	Logger         *slog.Logger
	Metrics        *Metrics
}

// Controller keeps a paginated feed in sync with a filter value that keeps
// changing while requests are in flight.
//
// Every reset starts a new generation. A fetch result is applied only if the
// generation it was issued under is still current when it arrives, so results
// of an obsolete filter never reach the visible state. Load-more requests
// stay in the current generation and are serialized by the in-flight guard.
type Controller struct {
	id      string
	src     source.Source
	opts    Options
	logger  *slog.Logger
	metrics *Metrics

	gens      Generations
	debouncer *Debouncer[float64]
	updates   chan struct{}

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu           sync.Mutex
	state        State
	errMsg       string
	err          error
	items        []source.Article
	hasMore      bool
	filter       float64
	requested    float64
	hasRequested bool
	nextPage     int
	inflight     bool
	closed       bool

	// lineage is cancelled when a newer reset supersedes it
	lineage context.Context
	cancel  context.CancelFunc
}

// New creates an idle controller reading from src
func New(src source.Source, opts Options) *Controller {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.ErrorMessage == "" {
		opts.ErrorMessage = DefaultErrorMessage
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, stop := context.WithCancel(context.Background())
	id := uuid.NewString()
	c := &Controller{
		id:        id,
		src:       src,
		opts:      opts,
		logger:    opts.Logger.With("controller", id),
		metrics:   opts.Metrics,
		updates:   make(chan struct{}, 1),
		ctx:       ctx,
		stop:      stop,
		state:     Idle,
		filter:    clampFilter(opts.InitialFilter),
		requested: clampFilter(opts.InitialFilter),
		nextPage:  1,
	}
	c.debouncer = NewDebouncer(opts.Debounce, func(v float64) {
		c.logger.Debug("filter settled", "filter", v)
		c.ResetFetch(v)
	})
	return c
}

// ID returns the controller instance id used in logs
func (c *Controller) ID() string {
	return c.id
}

// SetFilter records a filter change from the UI. Bursts of changes are
// debounced into one ResetFetch carrying the last value.
func (c *Controller) SetFilter(v float64) {
	v = clampFilter(v)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || (c.hasRequested && v == c.requested) {
		return
	}
	c.requested = v
	c.hasRequested = true
	if !c.inflight {
		c.state = Debouncing
		c.errMsg = ""
		c.err = nil
	}
	c.debouncer.Trigger(v)
	c.notify()
}

// ResetFetch starts a new generation and fetches page 1 for filter v.
// It may be called while other fetches are outstanding; their results will
// be discarded. Returns the generation of the new lineage.
func (c *Controller) ResetFetch(v float64) uint64 {
	v = clampFilter(v)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return c.gens.Current()
	}

	gen := c.gens.Begin()
	if c.cancel != nil {
		c.cancel()
	}
	c.lineage, c.cancel = context.WithCancel(c.ctx)

	c.state = Loading
	c.errMsg, c.err = "", nil
	c.requested, c.hasRequested = v, true
	c.inflight = true

	q := source.Query{Filter: v, Page: 1, PageSize: c.opts.PageSize}
	c.start(c.lineage, gen, resetFetch, q)

	c.metrics.setGeneration(gen)
	c.logger.Debug("reset fetch started", "generation", gen, "filter", v)
	c.notify()
	return gen
}

// LoadMore fetches the next page of the current generation. It returns false
// without doing anything while a fetch is outstanding or when the last
// applied page was short.
func (c *Controller) LoadMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.state.Busy() || c.inflight || !c.hasMore {
		c.logger.Debug("load more ignored", "state", c.state.String(), "has_more", c.hasMore)
		return false
	}

	gen := c.gens.Current()
	c.state = LoadingMore
	c.errMsg, c.err = "", nil
	c.inflight = true

	q := source.Query{Filter: c.filter, Page: c.nextPage, PageSize: c.opts.PageSize}
	c.start(c.lineage, gen, moreFetch, q)

	c.logger.Debug("load more started", "generation", gen, "page", q.Page)
	c.notify()
	return true
}

// Retry drops any pending filter change and resets with the latest requested filter
func (c *Controller) Retry() uint64 {
	c.debouncer.Stop()

	c.mu.Lock()
	v := c.requested
	c.mu.Unlock()

	return c.ResetFetch(v)
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		State:        c.state,
		ErrorMessage: c.errMsg,
		Err:          c.err,
		Items:        slices.Clone(c.items),
		HasMore:      c.hasMore,
		Filter:       c.filter,
		Requested:    c.requested,
		Generation:   c.gens.Current(),
		NextPage:     c.nextPage,
	}
}

// Updates signals after each state transition. Signals are coalesced, so a
// reader should call Snapshot after receiving one.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

// Close stops the debouncer, aborts outstanding requests and waits for them to return
func (c *Controller) Close() {
	c.debouncer.Stop()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.stop()
	c.wg.Wait()
}

// start issues q on its own goroutine. Must be called with c.mu held.
func (c *Controller) start(ctx context.Context, gen uint64, kind fetchKind, q source.Query) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		if c.opts.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
			defer cancel()
		}

		began := time.Now()
		items, err := c.src.Page(ctx, q)
		c.complete(gen, kind, q, items, err, time.Since(began))
	}()
}

func (c *Controller) complete(gen uint64, kind fetchKind, q source.Query, items []source.Article, fetchErr error, took time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := classify(c.gens.IsCurrent(gen), fetchErr)
	c.metrics.observeFetch(kind, err, took)
	log := c.logger.With("generation", gen, "kind", kind.String(), "page", q.Page, "filter", q.Filter)

	switch outcome(err) {
	case "applied":
	case "stale", "cancelled":
		log.Debug("discarding fetch result", "reason", err, "cause", fetchErr)
		return
	default:
		c.state = Error
		c.err = err
		c.errMsg = c.opts.ErrorMessage
		c.inflight = false
		log.Error("feed fetch failed", "error", err)
		c.notify()
		return
	}

	if len(items) > q.PageSize {
		items = items[:q.PageSize]
	}
	switch kind {
	case resetFetch:
		c.items = slices.Clone(items)
		c.filter = q.Filter
		c.nextPage = 2
	case moreFetch:
		c.items = append(c.items, items...)
		c.nextPage = q.Page + 1
	}
	c.hasMore = len(items) == q.PageSize
	c.inflight = false
	c.state = Ready
	if _, pending := c.debouncer.Pending(); pending {
		c.state = Debouncing
	}

	c.metrics.setItems(len(c.items))
	log.Info("feed page applied", "items", len(items), "total", len(c.items), "has_more", c.hasMore)
	c.notify()
}

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func clampFilter(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}
