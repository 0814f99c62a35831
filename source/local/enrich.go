package local

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/scipunch/echofeed/cache"
	"github.com/scipunch/echofeed/config"
	"github.com/scipunch/echofeed/parser"
)

// enrich replaces summaries of page items whose outlet asks for agents.
// Agent failures keep the plain summary.
func (s *Source) enrich(ctx context.Context, page []candidate) {
	if len(s.deps.Agents) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i := range page {
		if len(page[i].outlet.Agents) == 0 {
			continue
		}
		g.Go(func() error {
			c := &page[i]
			summary, err := s.agentSummary(gctx, c)
			if err != nil {
				s.logger.Warn("agent summary failed, keeping plain summary",
					"outlet", c.outlet.Name, "url", c.item.Link, "error", err)
				return nil
			}
			if summary != "" {
				c.article.Summary = summary
			}
			return nil
		})
	}
	_ = g.Wait()
}

// agentSummary runs the outlet agent pipeline, reusing cached outputs
func (s *Source) agentSummary(ctx context.Context, c *candidate) (string, error) {
	parserType := parserTypeFor(c.outlet)
	key := c.item.Link
	if key == "" {
		key = c.item.GUID
	}

	if s.deps.Cache != nil {
		if cached, hit, _ := s.deps.Cache.GetAgentOutput(key, parserType, c.outlet.Agents); hit {
			s.logger.Debug("agent cache hit", "url", key, "agents", c.outlet.Agents)
			return cached, nil
		}
	}

	content, err := s.agentInput(ctx, c, parserType, key)
	if err != nil {
		return "", err
	}

	for _, name := range c.outlet.Agents {
		a, ok := s.deps.Agents[name]
		if !ok {
			return "", fmt.Errorf("agent '%s' not found", name)
		}
		processed, err := a.Process(ctx, content)
		if err != nil {
			return "", fmt.Errorf("agent '%s' processing failed: %w", name, err)
		}
		s.logger.Debug("content processed by agent", "agent", name, "original_length", len(content), "processed_length", len(processed))
		content = processed
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.SetAgentOutput(key, parserType, c.outlet.Agents, content); err != nil {
			s.logger.Warn("failed to cache agent output", "error", err)
		}
	}
	return content, nil
}

// agentInput is the article text handed to the first agent. Without a parser
// for the outlet kind the feed title and description are used.
func (s *Source) agentInput(ctx context.Context, c *candidate, parserType, key string) (string, error) {
	p, ok := s.deps.Parsers[parserType]
	if !ok {
		return c.item.Title + "\n\n" + c.item.Description, nil
	}

	if s.deps.Cache != nil {
		if cached, hit, _ := s.deps.Cache.GetParserOutput(key, parserType); hit {
			data, err := cache.DeserializeParserResponse(parserType, cached)
			if err == nil {
				s.logger.Debug("parser cache hit", "url", key, "parser", parserType)
				return data.String(), nil
			}
			s.logger.Warn("failed to deserialize cached parser output", "error", err)
		}
	}

	parsed, err := p.Parse(ctx, c.item)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s with %w", key, err)
	}
	if s.deps.Cache != nil {
		if serialized, err := cache.SerializeParserResponse(parserType, parsed); err == nil {
			_ = s.deps.Cache.SetParserOutput(key, parserType, serialized)
		} else {
			s.logger.Warn("failed to serialize parser output", "error", err)
		}
	}
	return parsed.String(), nil
}

func parserTypeFor(outlet config.OutletConfig) parser.Type {
	if outlet.T == config.TelegramChannel {
		return parser.Telegram
	}
	return parser.Web
}
