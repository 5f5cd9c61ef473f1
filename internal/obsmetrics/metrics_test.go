package obsmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_CountersAndHistogramAreUsable(t *testing.T) {
	m := New()

	m.OutboxEventsProcessed.WithLabelValues("OrderCreated").Inc()
	m.OutboxEventsFailed.WithLabelValues("OrderCreated").Inc()
	m.OutboxDLQTotal.Inc()
	m.CouponAdmissions.WithLabelValues("accepted").Inc()
	m.PointOperations.WithLabelValues("charge", "ok").Inc()
	m.PaymentSagaDuration.Observe(0.25)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsProcessed.WithLabelValues("OrderCreated")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxDLQTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CouponAdmissions.WithLabelValues("accepted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PointOperations.WithLabelValues("charge", "ok")))
}
