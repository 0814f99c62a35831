package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path"
	"time"

	"github.com/BurntSushi/toml"
)

type OutletType = string

var (
	RSS             = OutletType("rss")
	TelegramChannel = OutletType("telegram_channel")
)

type SourceKind = string

var (
	// HTTPSource reads pages from a remote feed endpoint
	HTTPSource = SourceKind("http")
	// LocalSource aggregates the configured outlets in-process
	LocalSource = SourceKind("local")
)

const baseCfgPath = "echofeed/config.toml"

type Config struct {
	Feed            FeedConfig        `toml:"feed"`
	Source          SourceConfig      `toml:"source"`
	Outlets         []OutletConfig    `toml:"outlets"`
	Filters         map[string]Filter `toml:"filters"`          // Named filters that can be referenced by outlets
	DatabasePath    string            `toml:"database_path"`    // sqlite cache used by the local source
	OutputDirectory string            `toml:"output_directory"` // Directory for exported snapshots
	MetricsAddr     string            `toml:"metrics_addr"`     // e.g. ":9100", empty disables /metrics
}

// FeedConfig tunes the feed controller
type FeedConfig struct {
	PageSize       int      `toml:"page_size"`
	Debounce       Duration `toml:"debounce"`
	RequestTimeout Duration `toml:"request_timeout"` // 0 = wait for the source indefinitely
	InitialFilter  float64  `toml:"initial_filter"`
	ErrorMessage   string   `toml:"error_message"`
}

// SourceConfig selects and tunes the content source
type SourceConfig struct {
	Kind           SourceKind `toml:"kind"`
	BaseURL        string     `toml:"base_url"`
	MaxRetries     uint64     `toml:"max_retries"`
	InitialBackoff Duration   `toml:"initial_backoff"`
	MaxBackoff     Duration   `toml:"max_backoff"`

	// Local source only
	BiasWindow     float64  `toml:"bias_window"`      // outlets within ±window of the filter are fetched
	PerOutletLimit int      `toml:"per_outlet_limit"` // items taken from each outlet
	Workers        int      `toml:"workers"`          // concurrent outlet fetches
	FeedTTL        Duration `toml:"feed_ttl"`         // how long a fetched outlet document is reused
}

type OutletConfig struct {
	Name        string     `toml:"name"`
	FeedURL     string     `toml:"feed_url"`
	T           OutletType `toml:"type"`
	Bias        float64    `toml:"bias"`    // -1 (left) to 1 (right)
	Agents      []string   `toml:"agents"`  // Post-processing agents, e.g., ["summary"]
	Enabled     *bool      `toml:"enabled"` // Whether this outlet is active (defaults to true if not set)
	FilterNames []string   `toml:"filters"` // Names of filters to apply (pipeline)
}

// Filter defines rules for filtering outlet items
type Filter struct {
	MinLength         int      `toml:"min_length"`         // Minimum character count (0 = no limit)
	MinWords          int      `toml:"min_words"`          // Minimum word count (0 = no limit)
	ExcludePatterns   []string `toml:"exclude_patterns"`   // Regex patterns to exclude
	RequireParagraphs bool     `toml:"require_paragraphs"` // Require multiple paragraphs
	MaxAge            Duration `toml:"max_age"`            // Drop items published longer ago (0 = no limit)
}

// IsEnabled returns true if the outlet is enabled (defaults to true if not explicitly set)
func (o OutletConfig) IsEnabled() bool {
	if o.Enabled == nil {
		return true
	}
	return *o.Enabled
}

// Duration is a time.Duration written as a string ("500ms", "2s") in TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func Read(path string) (Config, error) {
	conf := Default()
	dat, err := os.ReadFile(path)
	if err != nil {
		return conf, err
	}
	// Decoding reuses slice capacity, defaults must not bleed into user outlets
	defaults := conf.Outlets
	conf.Outlets = nil
	md, err := toml.Decode(string(dat), &conf)
	if err != nil {
		return conf, fmt.Errorf("failed to decode config at %s with %w", path, err)
	}
	if !md.IsDefined("outlets") {
		conf.Outlets = defaults
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		slog.Warn("unknown config keys", "keys", undecoded)
	}
	if err := conf.Validate(); err != nil {
		return conf, fmt.Errorf("invalid config at %s: %w", path, err)
	}
	return conf, nil
}

func Write(cfgPath string, cfg Config) error {
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config with %w", err)
	}
	basePath := path.Dir(cfgPath)
	err = os.MkdirAll(basePath, os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create base config directory at '%s' with %w", basePath, err)
	}
	err = os.WriteFile(cfgPath, blob, 0644)
	if err != nil {
		return fmt.Errorf("failed to write into config file at '%s' with %w", cfgPath, err)
	}
	slog.Info("config written", "at", cfgPath)
	return nil
}

// Validate checks values that would otherwise fail deep inside the controller
func (c Config) Validate() error {
	if c.Feed.PageSize <= 0 {
		return fmt.Errorf("feed.page_size must be positive, got %d", c.Feed.PageSize)
	}
	if c.Feed.Debounce.Duration < 0 || c.Feed.RequestTimeout.Duration < 0 {
		return fmt.Errorf("feed durations must not be negative")
	}
	if math.Abs(c.Feed.InitialFilter) > 1 {
		return fmt.Errorf("feed.initial_filter must be within [-1, 1], got %v", c.Feed.InitialFilter)
	}

	switch c.Source.Kind {
	case HTTPSource:
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source.base_url is required for the http source")
		}
	case LocalSource:
		if c.Source.BiasWindow < 0 {
			return fmt.Errorf("source.bias_window must not be negative")
		}
		for i, o := range c.Outlets {
			if o.FeedURL == "" {
				return fmt.Errorf("outlets[%d] has no feed_url", i)
			}
			if o.T != RSS && o.T != TelegramChannel {
				return fmt.Errorf("outlets[%d] has unknown type %q", i, o.T)
			}
			if math.Abs(o.Bias) > 1 {
				return fmt.Errorf("outlets[%d] bias must be within [-1, 1], got %v", i, o.Bias)
			}
			for _, name := range o.FilterNames {
				if _, ok := c.Filters[name]; !ok {
					return fmt.Errorf("outlets[%d] references unknown filter %q", i, name)
				}
			}
		}
	default:
		return fmt.Errorf("unknown source.kind %q", c.Source.Kind)
	}
	return nil
}

// EnabledOutlets returns the outlets that are switched on, in config order
func (c Config) EnabledOutlets() []OutletConfig {
	var out []OutletConfig
	for _, o := range c.Outlets {
		if o.IsEnabled() {
			out = append(out, o)
		}
	}
	return out
}

func Default() Config {
	var home = os.Getenv("HOME")
	var dbBase = path.Join(home, ".local/share/echofeed")
	return Config{
		Feed: FeedConfig{
			PageSize:      10,
			Debounce:      Duration{500 * time.Millisecond},
			InitialFilter: 0,
			ErrorMessage:  "Failed to load news. Server might be unavailable.",
		},
		Source: SourceConfig{
			Kind:           HTTPSource,
			BaseURL:        "http://localhost:8000",
			MaxRetries:     2,
			InitialBackoff: Duration{200 * time.Millisecond},
			MaxBackoff:     Duration{2 * time.Second},
			BiasWindow:     0.6,
			PerOutletLimit: 5,
			Workers:        20,
			FeedTTL:        Duration{10 * time.Minute},
		},
		Outlets:         defaultOutlets(),
		Filters:         map[string]Filter{},
		DatabasePath:    path.Join(dbBase, "cache.db"),
		OutputDirectory: path.Join(home, "echofeed"),
	}
}

func defaultOutlets() []OutletConfig {
	return []OutletConfig{
		{Name: "jacobin", FeedURL: "https://jacobin.com/feed/", T: RSS, Bias: -0.9},
		{Name: "democracynow", FeedURL: "https://www.democracynow.org/democracynow.rss", T: RSS, Bias: -0.8},
		{Name: "theintercept", FeedURL: "https://theintercept.com/feed/?lang=en", T: RSS, Bias: -0.7},
		{Name: "theguardian", FeedURL: "https://www.theguardian.com/world/rss", T: RSS, Bias: -0.4},
		{Name: "cnn", FeedURL: "http://rss.cnn.com/rss/cnn_topstories.rss", T: RSS, Bias: -0.3},
		{Name: "npr", FeedURL: "https://feeds.npr.org/1001/rss.xml", T: RSS, Bias: -0.2},
		{Name: "bbc", FeedURL: "http://feeds.bbci.co.uk/news/rss.xml", T: RSS, Bias: 0},
		{Name: "usatoday", FeedURL: "http://rssfeeds.usatoday.com/UsatodaycomNation-TopStories", T: RSS, Bias: 0},
		{Name: "nypost", FeedURL: "https://nypost.com/feed/", T: RSS, Bias: 0.5},
		{Name: "foxnews", FeedURL: "http://feeds.foxnews.com/foxnews/latest", T: RSS, Bias: 0.6},
		{Name: "federalist", FeedURL: "https://thefederalist.com/feed/", T: RSS, Bias: 0.8},
		{Name: "dailywire", FeedURL: "https://www.dailywire.com/rss.xml", T: RSS, Bias: 0.8},
	}
}

func DefaultPath() string {
	var xdgHome = os.Getenv("XDG_CONFIG_HOME")
	if xdgHome != "" {
		return path.Join(xdgHome, baseCfgPath)
	}

	var home = os.Getenv("HOME")
	if home != "" {
		return path.Join(home, ".config", baseCfgPath)
	}

	panic("unclear where to search for the config file")
}
