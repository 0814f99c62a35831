// Package local builds feed pages in-process from the configured outlets
// instead of asking a remote backend.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"github.com/scipunch/echofeed/agent"
	"github.com/scipunch/echofeed/cache"
	"github.com/scipunch/echofeed/config"
	"github.com/scipunch/echofeed/fetcher/types"
	"github.com/scipunch/echofeed/filter"
	"github.com/scipunch/echofeed/parser"
	"github.com/scipunch/echofeed/source"
)

// biasEpsilon absorbs float noise on the window edge (0.3 - -0.3 is not exactly 0.6)
const biasEpsilon = 1e-9

type Options struct {
	BiasWindow     float64       // outlets within ±window of the filter are fetched
	PerOutletLimit int           // items taken from each outlet after filters
	Workers        int           // concurrent outlet fetches
	FeedTTL        time.Duration // cached outlet documents younger than this are reused
}

func DefaultOptions() Options {
	return Options{
		BiasWindow:     0.6,
		PerOutletLimit: 5,
		Workers:        20,
		FeedTTL:        10 * time.Minute,
	}
}

// Deps are the collaborators of a Source. Only Fetchers is required.
type Deps struct {
	Fetchers map[config.OutletType]types.FeedFetcher
	Filters  *filter.FilterPipeline
	Cache    *cache.Cache
	Parsers  map[parser.Type]parser.Parser // agent input per outlet kind
	Agents   map[string]agent.Agent        // by name, see config.OutletConfig.Agents
	Logger   *slog.Logger
}

type Source struct {
	outlets   []config.OutletConfig
	deps      Deps
	opts      Options
	logger    *slog.Logger
	sanitizer *bluemonday.Policy
}

// candidate is an article together with what it was built from
type candidate struct {
	article source.Article
	item    types.FeedItem
	outlet  config.OutletConfig
}

func New(outlets []config.OutletConfig, deps Deps, opts Options) (*Source, error) {
	for _, o := range outlets {
		if deps.Fetchers[o.T] == nil {
			return nil, fmt.Errorf("no fetcher for outlet '%s' of type %s", o.Name, o.T)
		}
	}
	if deps.Filters == nil {
		fp, err := filter.NewFilterPipeline(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create empty filter pipeline with %w", err)
		}
		deps.Filters = fp
	}
	if opts.PerOutletLimit <= 0 {
		opts.PerOutletLimit = DefaultOptions().PerOutletLimit
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled := make([]config.OutletConfig, 0, len(outlets))
	for _, o := range outlets {
		if o.IsEnabled() {
			enabled = append(enabled, o)
		}
	}

	return &Source{
		outlets:   enabled,
		deps:      deps,
		opts:      opts,
		logger:    logger.With("source", "local"),
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

// Page aggregates the outlets matching q.Filter, orders them by rage score
// and returns the requested slice
func (s *Source) Page(ctx context.Context, q source.Query) ([]source.Article, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	selected := s.selectOutlets(q.Filter)
	if len(selected) == 0 {
		s.logger.Debug("no outlets in bias window", "filter", q.Filter, "window", s.opts.BiasWindow)
		return []source.Article{}, nil
	}

	perOutlet := make([][]candidate, len(selected))
	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, outlet := range selected {
		g.Go(func() error {
			cands, err := s.collect(gctx, outlet)
			if err != nil {
				// One broken outlet must not cancel its siblings
				s.logger.Warn("outlet fetch failed", "outlet", outlet.Name, "url", outlet.FeedURL, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("'%s' fetch failed with %w", outlet.Name, err))
				mu.Unlock()
				return nil
			}
			perOutlet[i] = cands
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(errs) == len(selected) {
		return nil, fmt.Errorf("all %d outlets failed: %w", len(selected), errors.Join(errs...))
	}

	var all []candidate
	for _, cands := range perOutlet {
		all = append(all, cands...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].article.RageScore > all[j].article.RageScore
	})

	page := paginate(all, q.Page, q.PageSize)
	s.enrich(ctx, page)

	out := make([]source.Article, len(page))
	for i, c := range page {
		out[i] = c.article
	}
	s.logger.Debug("page built",
		"filter", q.Filter,
		"page", q.Page,
		"outlets", len(selected),
		"failed", len(errs),
		"total", len(all),
		"returned", len(out))
	return out, nil
}

func (s *Source) selectOutlets(bias float64) []config.OutletConfig {
	var selected []config.OutletConfig
	for _, o := range s.outlets {
		if math.Abs(o.Bias-bias) <= s.opts.BiasWindow+biasEpsilon {
			selected = append(selected, o)
		}
	}
	return selected
}

// collect fetches one outlet and turns its top items into candidates
func (s *Source) collect(ctx context.Context, outlet config.OutletConfig) ([]candidate, error) {
	feed, err := s.feed(ctx, outlet)
	if err != nil {
		return nil, err
	}

	items := s.deps.Filters.Apply(feed.Items, outlet.FilterNames)
	if len(items) > s.opts.PerOutletLimit {
		items = items[:s.opts.PerOutletLimit]
	}

	cands := make([]candidate, 0, len(items))
	for _, item := range items {
		cands = append(cands, candidate{
			article: s.article(outlet, item),
			item:    item,
			outlet:  outlet,
		})
	}
	return cands, nil
}

// feed returns the outlet document, from the cache while it is fresh
func (s *Source) feed(ctx context.Context, outlet config.OutletConfig) (types.Feed, error) {
	if s.deps.Cache != nil {
		if data, hit, _ := s.deps.Cache.GetFeed(outlet.FeedURL, s.opts.FeedTTL); hit {
			feed, err := cache.DeserializeFeed(data)
			if err == nil {
				s.logger.Debug("feed cache hit", "outlet", outlet.Name)
				return feed, nil
			}
			s.logger.Warn("failed to deserialize cached feed", "outlet", outlet.Name, "error", err)
		}
	}

	feed, err := s.deps.Fetchers[outlet.T].Fetch(ctx, outlet.FeedURL)
	if err != nil {
		return feed, err
	}
	s.logger.Debug("feed fetched", "outlet", outlet.Name, "items", len(feed.Items))

	if s.deps.Cache != nil {
		if data, err := cache.SerializeFeed(feed); err == nil {
			_ = s.deps.Cache.SetFeed(outlet.FeedURL, data)
		} else {
			s.logger.Warn("failed to serialize feed", "outlet", outlet.Name, "error", err)
		}
	}
	return feed, nil
}

func (s *Source) article(outlet config.OutletConfig, item types.FeedItem) source.Article {
	return source.Article{
		Title:         item.Title,
		Link:          item.Link,
		Source:        outlet.Name,
		Summary:       s.summary(item.Description),
		PublishedDate: publishedDate(item.Published),
		ImageURL:      imageURL(item),
		Bias:          outlet.Bias,
		RageScore:     RageScore(item.Title),
	}
}

func paginate(all []candidate, page, size int) []candidate {
	start := (page - 1) * size
	if start >= len(all) {
		return nil
	}
	end := min(start+size, len(all))
	return all[start:end]
}
