package feed

import (
	"sync"
	"time"
)

// DefaultDebounce is the settle delay used when none is configured
const DefaultDebounce = 500 * time.Millisecond

// Debouncer collapses a burst of values into a single settle call carrying
// the last value. The settle callback runs on the timer goroutine.
//
// Example:
//
//	d := NewDebouncer(500*time.Millisecond, func(v float64) {
//	    controller.ResetFetch(v)
//	})
//	d.Trigger(0.1)
//	d.Trigger(0.4) // only 0.4 settles, 500ms after this call
type Debouncer[T any] struct {
	delay  time.Duration
	settle func(T)

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	value   T
	pending bool

	// serializes settle calls so they are delivered in trigger order
	emitMu sync.Mutex
}

// NewDebouncer creates a debouncer with the given delay
func NewDebouncer[T any](delay time.Duration, settle func(T)) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer[T]{
		delay:  delay,
		settle: settle,
	}
}

// Trigger records v and restarts the delay, superseding any pending value
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	seq := d.seq
	d.value = v
	d.pending = true

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
}

// Pending returns the value waiting to settle, if any
func (d *Debouncer[T]) Pending() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value, d.pending
}

// Stop drops the pending value without settling it
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer[T]) fire(seq uint64) {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	d.mu.Lock()
	// A timer that fired while Trigger was replacing it loses here
	if seq != d.seq || !d.pending {
		d.mu.Unlock()
		return
	}
	v := d.value
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.settle(v)
}
