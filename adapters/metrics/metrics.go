// Package metrics provides Prometheus metrics for the metering core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for metercore.
type Collector struct {
	// Admission metrics
	AdmissionsTotal *prometheus.CounterVec
	ActiveWindows   prometheus.Gauge

	// Recording metrics
	EventsRecorded  *prometheus.CounterVec
	CostRecorded    *prometheus.CounterVec
	RecordFailures  prometheus.Counter
	EventsDropped   prometheus.Counter

	// Writer metrics
	FlushDuration  prometheus.Histogram
	FlushBatchSize prometheus.Histogram
}

// New creates a new metrics collector with all metrics registered.
func New() *Collector {
	return &Collector{
		AdmissionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "metercore",
				Name:      "admissions_total",
				Help:      "Admission decisions by outcome and denial reason",
			},
			[]string{"decision", "reason"},
		),
		ActiveWindows: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "metercore",
				Name:      "active_windows",
				Help:      "Number of live per-credential rate windows",
			},
		),

		EventsRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "metercore",
				Name:      "usage_events_total",
				Help:      "Usage events recorded by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		CostRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "metercore",
				Name:      "usage_cost_total",
				Help:      "Total priced cost recorded, by kind",
			},
			[]string{"kind"},
		),
		RecordFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "metercore",
				Name:      "record_failures_total",
				Help:      "Usage recording attempts that failed and were suppressed",
			},
		),
		EventsDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "metercore",
				Name:      "usage_events_dropped_total",
				Help:      "Buffered usage events dropped on write failure or timeout",
			},
		),

		FlushDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "metercore",
				Name:      "flush_duration_seconds",
				Help:      "Usage buffer flush duration in seconds",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
			},
		),
		FlushBatchSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "metercore",
				Name:      "flush_batch_size",
				Help:      "Number of events per flushed batch",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
			},
		),
	}
}

// Admission labels.
const (
	DecisionAdmit  = "admit"
	DecisionReject = "reject"
	ReasonNone     = "none"
)

// ObserveAdmission records one admission decision. Nil-safe so services can
// run without metrics wired.
func (c *Collector) ObserveAdmission(allowed bool, reason string) {
	if c == nil {
		return
	}
	decision := DecisionAdmit
	if !allowed {
		decision = DecisionReject
	}
	if reason == "" {
		reason = ReasonNone
	}
	c.AdmissionsTotal.WithLabelValues(decision, reason).Inc()
}

// ObserveEvent records one priced usage event. Nil-safe.
func (c *Collector) ObserveEvent(kind string, success bool, cost float64) {
	if c == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.EventsRecorded.WithLabelValues(kind, outcome).Inc()
	if cost > 0 {
		c.CostRecorded.WithLabelValues(kind).Add(cost)
	}
}

// ObserveRecordFailure counts one suppressed recording failure. Nil-safe.
func (c *Collector) ObserveRecordFailure() {
	if c == nil {
		return
	}
	c.RecordFailures.Inc()
}

// ObserveFlush records one buffer flush. Nil-safe.
func (c *Collector) ObserveFlush(seconds float64, batch int) {
	if c == nil {
		return
	}
	c.FlushDuration.Observe(seconds)
	c.FlushBatchSize.Observe(float64(batch))
}

// ObserveDropped counts events lost on a failed flush. Nil-safe.
func (c *Collector) ObserveDropped(n int) {
	if c == nil {
		return
	}
	c.EventsDropped.Add(float64(n))
}
