package source

import (
	"context"
	"fmt"
	"math"
)

// Query describes a single page request. A new Query is built for every
// fetch attempt and never changed afterwards.
type Query struct {
	Filter   float64 // -1 (left) to 1 (right)
	Page     int     // 1-based
	PageSize int
}

// Validate reports whether q can be sent to a Source.
func (q Query) Validate() error {
	if math.IsNaN(q.Filter) || q.Filter < -1 || q.Filter > 1 {
		return fmt.Errorf("filter %v out of range [-1, 1]", q.Filter)
	}
	if q.Page < 1 {
		return fmt.Errorf("page %d must be >= 1", q.Page)
	}
	if q.PageSize <= 0 {
		return fmt.Errorf("page size %d must be > 0", q.PageSize)
	}
	return nil
}

// Article is one content item as returned by a Source
type Article struct {
	Title         string  `json:"title"`
	Link          string  `json:"link"`
	Source        string  `json:"source"`
	Summary       string  `json:"summary"`
	PublishedDate string  `json:"published_date"`
	ImageURL      string  `json:"image_url"`
	Bias          float64 `json:"bias"`
	RageScore     float64 `json:"rage_score"`
}

// Source is a paginated content source. Implementations return at most
// q.PageSize articles in relevance order.
type Source interface {
	Page(ctx context.Context, q Query) ([]Article, error)
}

// Func adapts a plain function to the Source interface
type Func func(ctx context.Context, q Query) ([]Article, error)

func (f Func) Page(ctx context.Context, q Query) ([]Article, error) {
	return f(ctx, q)
}
