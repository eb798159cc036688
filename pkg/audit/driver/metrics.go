package driver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for driver delivery, labeled by driver.
type Metrics struct {
	Delivered      *prometheus.CounterVec
	Failures       *prometheus.CounterVec
	Retries        *prometheus.CounterVec
	DeadLettered   *prometheus.CounterVec
	BreakerDropped *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with delivery metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Delivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_driver_delivered_total",
			Help: "Total number of objects delivered per driver",
		}, []string{"driver"}),
		Failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_driver_failures_total",
			Help: "Total number of delivery failures per driver",
		}, []string{"driver"}),
		Retries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_driver_retries_total",
			Help: "Total number of delivery retries per driver",
		}, []string{"driver"}),
		DeadLettered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_driver_dead_lettered_total",
			Help: "Total number of objects routed to the dead-letter target",
		}, []string{"driver"}),
		BreakerDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_driver_breaker_dropped_total",
			Help: "Total number of deliveries skipped due to an open circuit",
		}, []string{"driver"}),
	}
}

func (m *Metrics) IncDelivered(driver string)      { m.Delivered.WithLabelValues(driver).Inc() }
func (m *Metrics) IncFailures(driver string)       { m.Failures.WithLabelValues(driver).Inc() }
func (m *Metrics) IncRetries(driver string)        { m.Retries.WithLabelValues(driver).Inc() }
func (m *Metrics) IncDeadLettered(driver string)   { m.DeadLettered.WithLabelValues(driver).Inc() }
func (m *Metrics) IncBreakerDropped(driver string) { m.BreakerDropped.WithLabelValues(driver).Inc() }
