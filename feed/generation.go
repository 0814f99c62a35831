package feed

import "sync/atomic"

// Generations hands out strictly increasing lineage ids. Exactly one id is
// current at any time; work tagged with an older id is stale on arrival.
type Generations struct {
	current atomic.Uint64
}

// Begin starts a new lineage and returns its id
func (g *Generations) Begin() uint64 {
	return g.current.Add(1)
}

// Current returns the id of the live lineage (0 before the first Begin)
func (g *Generations) Current() uint64 {
	return g.current.Load()
}

// IsCurrent reports whether id still identifies the live lineage
func (g *Generations) IsCurrent(id uint64) bool {
	return g.current.Load() == id
}
