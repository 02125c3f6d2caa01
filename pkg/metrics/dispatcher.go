package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatcherMetrics instruments the transaction-event worker loop.
type DispatcherMetrics struct {
	steps    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	scorer   *prometheus.CounterVec
	alerts   *prometheus.CounterVec
	deferred prometheus.Gauge
	queued   prometheus.Gauge
}

// NewDispatcherMetrics registers dispatcher metrics. A nil registerer yields a
// no-op recorder.
func NewDispatcherMetrics(reg prometheus.Registerer) *DispatcherMetrics {
	if reg == nil {
		return &DispatcherMetrics{}
	}
	steps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bank_dispatcher_steps_total",
		Help: "Dispatcher steps by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bank_dispatcher_step_duration_seconds",
		Help:    "Duration of dispatcher steps in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	scorer := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bank_fraud_scorer_requests_total",
		Help: "Fraud scorer calls by result.",
	}, []string{"result"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bank_fraud_alerts_total",
		Help: "Fraud alerts newly raised, by reason.",
	}, []string{"reason"})
	deferred := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bank_dispatcher_deferred_events",
		Help: "Events currently held back after a failed step.",
	})
	queued := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bank_dispatcher_queued_events",
		Help: "Transaction events still in the queue, parked ones included.",
	})
	reg.MustRegister(steps, duration, scorer, alerts, deferred, queued)
	return &DispatcherMetrics{
		steps:    steps,
		duration: duration,
		scorer:   scorer,
		alerts:   alerts,
		deferred: deferred,
		queued:   queued,
	}
}

// ObserveStep records one step with its outcome label.
func (d *DispatcherMetrics) ObserveStep(outcome string, elapsed time.Duration) {
	if d == nil || d.steps == nil {
		return
	}
	label := normalizeLabel(outcome)
	d.steps.WithLabelValues(label).Inc()
	d.duration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// IncScorer counts a scorer call; result is "ok", "unavailable" or "invalid".
func (d *DispatcherMetrics) IncScorer(result string) {
	if d == nil || d.scorer == nil {
		return
	}
	d.scorer.WithLabelValues(normalizeLabel(result)).Inc()
}

func (d *DispatcherMetrics) IncAlert(reason string) {
	if d == nil || d.alerts == nil {
		return
	}
	d.alerts.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (d *DispatcherMetrics) SetDeferred(n int) {
	if d == nil || d.deferred == nil {
		return
	}
	d.deferred.Set(float64(n))
}

// SetQueueDepth reports how many events are waiting, parked ones included.
func (d *DispatcherMetrics) SetQueueDepth(n int64) {
	if d == nil || d.queued == nil {
		return
	}
	d.queued.Set(float64(n))
}
