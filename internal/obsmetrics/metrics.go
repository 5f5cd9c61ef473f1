// Package obsmetrics holds the saga's Prometheus metrics (§4.16). Grounded
// on Tim275-oms/common/metrics: grouped metric structs registered via
// promauto each time New is called, so New is called once at process start.
package obsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the saga's counters and histogram. Of these, only
// OutboxDLQTotal is incremented anywhere (by cmd/api's DLQ alert callback);
// no component feeds the others.
type Metrics struct {
	OutboxEventsProcessed *prometheus.CounterVec
	OutboxEventsFailed    *prometheus.CounterVec
	OutboxDLQTotal        prometheus.Counter
	CouponAdmissions      *prometheus.CounterVec
	PointOperations       *prometheus.CounterVec
	PaymentSagaDuration   prometheus.Histogram
}

// New registers every metric against the default registry. Call once per
// process; a second call would panic on duplicate registration, the same
// way promauto always behaves.
func New() *Metrics {
	return &Metrics{
		OutboxEventsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outbox_events_processed_total",
				Help: "Outbox events successfully dispatched to all their handlers.",
			},
			[]string{"event_type"},
		),
		OutboxEventsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outbox_events_failed_total",
				Help: "Outbox events that failed a dispatch attempt (retried or moved to the DLQ).",
			},
			[]string{"event_type"},
		),
		OutboxDLQTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "outbox_dlq_total",
				Help: "Outbox events moved to the dead-letter queue after exhausting retries.",
			},
		),
		CouponAdmissions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coupon_admissions_total",
				Help: "Coupon admission attempts by outcome.",
			},
			[]string{"result"},
		),
		PointOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "point_operations_total",
				Help: "Point balance operations by kind and outcome.",
			},
			[]string{"op", "result"},
		),
		PaymentSagaDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "payment_saga_duration_seconds",
				Help:    "Wall-clock duration of a full payment saga run, lock acquisition to settle.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}
