// Package filter drops low-value outlet items (announcements, one-liners,
// stale posts) before they are scored and ranked.
package filter

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/scipunch/echofeed/config"
	"github.com/scipunch/echofeed/fetcher/types"
)

// rule reports a rejection reason, or "" when the item passes
type rule func(item types.FeedItem, text string, now time.Time) string

// FilterPipeline holds the named filters an outlet can refer to
type FilterPipeline struct {
	filters map[string][]rule
	now     func() time.Time
}

// NewFilterPipeline compiles every configured filter. A pattern that does not
// compile fails the whole pipeline.
func NewFilterPipeline(filtersConfig map[string]config.Filter) (*FilterPipeline, error) {
	compiled := make(map[string][]rule, len(filtersConfig))
	for name, cfg := range filtersConfig {
		rules, err := compile(name, cfg)
		if err != nil {
			return nil, err
		}
		compiled[name] = rules
	}
	return &FilterPipeline{filters: compiled, now: time.Now}, nil
}

// compile turns a filter config into rules, evaluated in this order:
// length, words, exclude patterns, paragraphs, age.
func compile(name string, cfg config.Filter) ([]rule, error) {
	var rules []rule

	if cfg.MinLength > 0 {
		rules = append(rules, func(_ types.FeedItem, text string, _ time.Time) string {
			if len(text) < cfg.MinLength {
				return name + ":min_length"
			}
			return ""
		})
	}

	if cfg.MinWords > 0 {
		rules = append(rules, func(_ types.FeedItem, text string, _ time.Time) string {
			if countWords(text) < cfg.MinWords {
				return name + ":min_words"
			}
			return ""
		})
	}

	for _, pattern := range cfg.ExcludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %q of filter '%s' with %w", pattern, name, err)
		}
		rules = append(rules, func(_ types.FeedItem, text string, _ time.Time) string {
			if re.MatchString(text) {
				return name + ":exclude_pattern[" + pattern + "]"
			}
			return ""
		})
	}

	if cfg.RequireParagraphs {
		rules = append(rules, func(_ types.FeedItem, text string, _ time.Time) string {
			if !hasMultipleParagraphs(text) {
				return name + ":require_paragraphs"
			}
			return ""
		})
	}

	// undated items pass
	if maxAge := cfg.MaxAge.Duration; maxAge > 0 {
		rules = append(rules, func(item types.FeedItem, _ string, now time.Time) string {
			if !item.Published.IsZero() && now.Sub(item.Published) > maxAge {
				return name + ":max_age"
			}
			return ""
		})
	}

	return rules, nil
}

// Apply keeps the items that pass every named filter, preserving order
func (fp *FilterPipeline) Apply(items []types.FeedItem, filterNames []string) []types.FeedItem {
	if len(filterNames) == 0 {
		return items
	}
	kept := make([]types.FeedItem, 0, len(items))
	for _, item := range items {
		if ok, reason := fp.ShouldInclude(item, filterNames); !ok {
			slog.Debug("item filtered out", "title", item.Title, "reason", reason)
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

// ShouldInclude runs the named filters in order and stops at the first
// rejection, returning its reason. Unknown names are skipped.
func (fp *FilterPipeline) ShouldInclude(item types.FeedItem, filterNames []string) (bool, string) {
	text := item.Title + " " + item.Description
	now := fp.now()

	for _, name := range filterNames {
		rules, ok := fp.filters[name]
		if !ok {
			slog.Warn("filter not found, skipping", "filter_name", name)
			continue
		}
		for _, r := range rules {
			if reason := r(item, text, now); reason != "" {
				return false, reason
			}
		}
	}
	return true, ""
}

func countWords(text string) int {
	words := 0
	inWord := false
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if !inWord {
				words++
				inWord = true
			}
		} else {
			inWord = false
		}
	}
	return words
}

// hasMultipleParagraphs needs at least two non-blank lines
func hasMultipleParagraphs(text string) bool {
	nonEmpty := 0
	for line := range strings.SplitSeq(text, "\n") {
		if strings.TrimSpace(line) != "" {
			nonEmpty++
			if nonEmpty >= 2 {
				return true
			}
		}
	}
	return false
}
