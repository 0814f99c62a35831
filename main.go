package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scipunch/echofeed/agent"
	"github.com/scipunch/echofeed/cache"
	"github.com/scipunch/echofeed/config"
	"github.com/scipunch/echofeed/feed"
	"github.com/scipunch/echofeed/fetcher"
	"github.com/scipunch/echofeed/filter"
	"github.com/scipunch/echofeed/parser"
	"github.com/scipunch/echofeed/parser/factory"
	"github.com/scipunch/echofeed/source"
	"github.com/scipunch/echofeed/source/local"
)

// entries unused for this long are dropped at startup
const cacheRetention = 30 * 24 * time.Hour

func main() {
	if os.Getenv("DEBUG") != "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	var cfgPath string
	var cleanCache bool
	var sourceKind string
	flag.StringVar(&cfgPath, "config", config.DefaultPath(), "path to a TOML config")
	flag.BoolVar(&cleanCache, "clean", false, "remove all cache entries")
	flag.StringVar(&sourceKind, "source", "", "override source kind (http or local)")
	flag.Parse()

	// Read config and create if default is missing
	conf, err := config.Read(cfgPath)
	if errors.Is(err, os.ErrNotExist) && cfgPath == config.DefaultPath() {
		if err := config.Write(cfgPath, conf); err != nil {
			log.Fatalf("failed to write default config with %s", err)
		}
	} else if err != nil {
		log.Fatalf("failed to read config with %s", err)
	}
	if sourceKind != "" {
		conf.Source.Kind = sourceKind
		if err := conf.Validate(); err != nil {
			log.Fatalf("invalid -source override: %s", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cleanCache {
		cacheDB, err := cache.NewCache(conf.DatabasePath)
		if err != nil {
			log.Fatalf("failed to initialize cache: %v", err)
		}
		defer cacheDB.Close()
		if err := cacheDB.Clear(); err != nil {
			log.Fatalf("failed to clear cache: %v", err)
		}
		slog.Info("cache cleared successfully")
		return
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if conf.MetricsAddr != "" {
		srv := serveMetrics(conf.MetricsAddr, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	src, closeSource, err := buildSource(ctx, conf, cfgPath)
	if err != nil {
		log.Fatalf("failed to initialize %s source with %s", conf.Source.Kind, err)
	}
	defer closeSource()

	ctrl := feed.New(src, feed.Options{
		PageSize:       conf.Feed.PageSize,
		Debounce:       conf.Feed.Debounce.Duration,
		RequestTimeout: conf.Feed.RequestTimeout.Duration,
		ErrorMessage:   conf.Feed.ErrorMessage,
		InitialFilter:  conf.Feed.InitialFilter,
		Logger:         slog.Default(),
		Metrics:        feed.NewMetrics(reg),
	})
	defer ctrl.Close()
	slog.Info("controller started", "id", ctrl.ID(), "source", conf.Source.Kind, "page_size", conf.Feed.PageSize)

	r := newREPL(ctrl, os.Stdin, os.Stdout, conf.OutputDirectory)
	go r.watch(ctx)
	ctrl.ResetFetch(conf.Feed.InitialFilter)

	if err := r.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("input loop stopped", "error", err)
	}
	slog.Info("exiting")
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return srv
}

// buildSource wires the configured content source. The returned func releases
// its resources.
func buildSource(ctx context.Context, conf config.Config, cfgPath string) (source.Source, func(), error) {
	noop := func() {}

	switch conf.Source.Kind {
	case config.HTTPSource:
		src, err := source.NewHTTP(conf.Source.BaseURL, nil, source.RetryConfig{
			MaxRetries:     conf.Source.MaxRetries,
			InitialBackoff: conf.Source.InitialBackoff.Duration,
			MaxBackoff:     conf.Source.MaxBackoff.Duration,
		}, slog.Default())
		return src, noop, err

	case config.LocalSource:
		return buildLocalSource(ctx, conf, cfgPath)
	}
	return nil, noop, fmt.Errorf("unknown source kind %q", conf.Source.Kind)
}

func buildLocalSource(ctx context.Context, conf config.Config, cfgPath string) (source.Source, func(), error) {
	outlets := conf.EnabledOutlets()

	filterPipeline, err := filter.NewFilterPipeline(conf.Filters)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize filters: %w", err)
	}
	if len(conf.Filters) > 0 {
		slog.Info("initialized filters", "count", len(conf.Filters))
	}

	cacheDB, err := cache.NewCache(conf.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	stats, err := cacheDB.Stats()
	if err != nil {
		slog.Warn("failed to get cache stats", "error", err)
	} else {
		slog.Info("cache initialized",
			"feed_entries", stats.FeedEntries,
			"parser_entries", stats.ParserEntries,
			"agent_entries", stats.AgentEntries)
	}
	if n, err := cacheDB.Prune(cacheRetention); err != nil {
		slog.Warn("failed to prune cache", "error", err)
	} else if n > 0 {
		slog.Info("pruned stale cache entries", "removed", n)
	}
	release := func() { cacheDB.Close() }

	var outletTypes []config.OutletType
	for _, o := range outlets {
		outletTypes = append(outletTypes, o.T)
	}
	mediaDir := path.Join(path.Dir(conf.DatabasePath), "media")
	fetchers, err := fetcher.GetFetchers(outletTypes, path.Dir(cfgPath), mediaDir)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to initialize fetchers with %w", err)
	}

	deps := local.Deps{
		Fetchers: fetchers,
		Filters:  filterPipeline,
		Cache:    cacheDB,
		Logger:   slog.Default(),
	}

	// Agents are optional, outlets fall back to plain summaries without them
	if agentTypes := agent.CollectUniqueAgentTypes(outlets); len(agentTypes) > 0 {
		creds, err := config.LoadGeminiCredentials(config.DefaultCredentialsPath())
		if err != nil {
			slog.Warn("agents configured but Gemini credentials unavailable, using plain summaries", "error", err)
		} else {
			agents, err := agent.InitAgents(ctx, agentTypes, creds)
			if err != nil {
				release()
				return nil, nil, fmt.Errorf("failed to initialize agents: %w", err)
			}
			parsers, err := factory.Init([]parser.Type{parser.Web, parser.Telegram}, nil)
			if err != nil {
				release()
				return nil, nil, fmt.Errorf("failed to initialize parsers with %w", err)
			}
			deps.Agents = agents
			deps.Parsers = parsers
			slog.Info("initialized agents", "types", agentTypes)
		}
	}

	src, err := local.New(outlets, deps, local.Options{
		BiasWindow:     conf.Source.BiasWindow,
		PerOutletLimit: conf.Source.PerOutletLimit,
		Workers:        conf.Source.Workers,
		FeedTTL:        conf.Source.FeedTTL.Duration,
	})
	if err != nil {
		release()
		return nil, nil, err
	}
	slog.Info("local source ready", "outlets", len(outlets))
	return src, release, nil
}
