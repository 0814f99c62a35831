package feed

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settleRecorder struct {
	mu     sync.Mutex
	values []float64
	at     []time.Time
}

func (r *settleRecorder) record(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
	r.at = append(r.at, time.Now())
}

func (r *settleRecorder) snapshot() ([]float64, []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.values...), append([]time.Time(nil), r.at...)
}

func TestDebouncer_BurstSettlesOnceWithLastValue(t *testing.T) {
	const delay = 50 * time.Millisecond
	rec := &settleRecorder{}
	d := NewDebouncer(delay, rec.record)

	for _, v := range []float64{0.1, 0.2, 0.3, 0.4} {
		d.Trigger(v)
		time.Sleep(5 * time.Millisecond)
	}
	last := time.Now()

	require.Eventually(t, func() bool {
		values, _ := rec.snapshot()
		return len(values) == 1
	}, time.Second, 5*time.Millisecond)

	// Give a superseded timer a chance to misfire
	time.Sleep(3 * delay)

	values, at := rec.snapshot()
	require.Len(t, values, 1)
	assert.Equal(t, 0.4, values[0])
	assert.GreaterOrEqual(t, at[0].Sub(last), delay-5*time.Millisecond)
}

func TestDebouncer_SeparateBurstsSettleSeparately(t *testing.T) {
	rec := &settleRecorder{}
	d := NewDebouncer(20*time.Millisecond, rec.record)

	d.Trigger(0.1)
	require.Eventually(t, func() bool {
		values, _ := rec.snapshot()
		return len(values) == 1
	}, time.Second, 5*time.Millisecond)

	d.Trigger(-0.7)
	require.Eventually(t, func() bool {
		values, _ := rec.snapshot()
		return len(values) == 2
	}, time.Second, 5*time.Millisecond)

	values, _ := rec.snapshot()
	assert.Equal(t, []float64{0.1, -0.7}, values)
}

func TestDebouncer_StopDropsPendingValue(t *testing.T) {
	rec := &settleRecorder{}
	d := NewDebouncer(20*time.Millisecond, rec.record)

	d.Trigger(0.5)
	v, pending := d.Pending()
	assert.True(t, pending)
	assert.Equal(t, 0.5, v)

	d.Stop()
	_, pending = d.Pending()
	assert.False(t, pending)

	time.Sleep(80 * time.Millisecond)
	values, _ := rec.snapshot()
	assert.Empty(t, values)
}

func TestDebouncer_TriggerDoesNotBlock(t *testing.T) {
	block := make(chan struct{})
	d := NewDebouncer(time.Millisecond, func(float64) { <-block })
	defer close(block)

	d.Trigger(0.1)
	time.Sleep(20 * time.Millisecond) // settle is now blocked in the callback

	done := make(chan struct{})
	go func() {
		d.Trigger(0.2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Trigger blocked while a settle callback was running")
	}
}

func TestNewDebouncer_DefaultsDelay(t *testing.T) {
	d := NewDebouncer(0, func(float64) {})
	assert.Equal(t, DefaultDebounce, d.delay)
}
