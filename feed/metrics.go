package feed

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes controller counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	fetches    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	generation prometheus.Gauge
	items      prometheus.Gauge
}

// NewMetrics creates the controller metrics and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echofeed",
			Subsystem: "controller",
			Name:      "fetches_total",
			Help:      "Feed fetches by kind (reset, more) and outcome.",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "echofeed",
			Subsystem: "controller",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent waiting for the content source.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "echofeed",
			Subsystem: "controller",
			Name:      "generation",
			Help:      "Current fetch generation.",
		}),
		items: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "echofeed",
			Subsystem: "controller",
			Name:      "items",
			Help:      "Items in the visible result set.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.fetches, m.duration, m.generation, m.items)
	}
	return m
}

func (m *Metrics) observeFetch(kind fetchKind, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(kind.String(), outcome(err)).Inc()
	m.duration.WithLabelValues(kind.String()).Observe(took.Seconds())
}

func (m *Metrics) setGeneration(gen uint64) {
	if m == nil {
		return
	}
	m.generation.Set(float64(gen))
}

func (m *Metrics) setItems(n int) {
	if m == nil {
		return
	}
	m.items.Set(float64(n))
}
