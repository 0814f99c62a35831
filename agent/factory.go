package agent

import (
	"context"
	"fmt"
	"slices"

	"github.com/scipunch/echofeed/agent/summary"
	"github.com/scipunch/echofeed/config"
)

type constructor func(ctx context.Context, creds config.GeminiCredentials) (Agent, error)

var constructors = map[string]constructor{
	"summary": func(ctx context.Context, creds config.GeminiCredentials) (Agent, error) {
		return summary.New(ctx, creds)
	},
}

// InitAgents builds every named agent, each wrapped in WithRetry with
// DefaultRetryConfig. The first failing agent aborts the whole set.
func InitAgents(ctx context.Context, agentTypes []string, creds config.GeminiCredentials) (map[string]Agent, error) {
	agents := make(map[string]Agent, len(agentTypes))
	for _, name := range agentTypes {
		build, ok := constructors[name]
		if !ok {
			return nil, fmt.Errorf("unknown agent type: %s", name)
		}
		a, err := build(ctx, creds)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s agent: %w", name, err)
		}
		agents[name] = WithRetry(a, DefaultRetryConfig())
	}
	return agents, nil
}

// CollectUniqueAgentTypes returns the sorted set of agents enabled outlets ask for
func CollectUniqueAgentTypes(outlets []config.OutletConfig) []string {
	var names []string
	for _, outlet := range outlets {
		if !outlet.IsEnabled() {
			continue
		}
		names = append(names, outlet.Agents...)
	}
	slices.Sort(names)
	return slices.Compact(names)
}
