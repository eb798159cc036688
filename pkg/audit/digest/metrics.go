package digest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the digest engine.
type Metrics struct {
	TicksTotal     prometheus.Counter
	TickFailures   prometheus.Counter
	EventsDrained  prometheus.Counter
	DigestsEmitted prometheus.Counter
	TickDuration   prometheus.Histogram
}

// NewMetrics creates a Metrics instance with digest engine metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_digest_ticks_total",
			Help: "Total number of completed digest ticks",
		}),
		TickFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_digest_tick_failures_total",
			Help: "Total number of digest ticks aborted before commit",
		}),
		EventsDrained: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_digest_events_drained_total",
			Help: "Total number of events drained from the queue",
		}),
		DigestsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_digest_emitted_total",
			Help: "Total number of digests committed to the sink",
		}),
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chronicle_digest_tick_duration_seconds",
			Help:    "Duration of digest ticks",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
