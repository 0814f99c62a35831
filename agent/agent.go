// Package agent post-processes article text before it reaches the feed, for
// example to replace an outlet's teaser with a model-written summary.
package agent

import "context"

// Agent turns article text into a replacement summary
type Agent interface {
	Process(ctx context.Context, content string) (string, error)
	Name() string // matches the names listed in an outlet's agents
}
