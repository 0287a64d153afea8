package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSubmit("delivered", "", time.Second)
	m.SetQueueDepth(3)
	m.ObserveDrain("ran")
	m.SetOnline(true)
	m.ObserveCapture("submitted")
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollectors(t *testing.T) {
	m := New()

	m.ObserveSubmit("delivered", "", 120*time.Millisecond)
	m.ObserveSubmit("failed", "offline", 0)
	m.ObserveSubmit("failed", "offline", 0)
	m.SetQueueDepth(2)
	m.SetOnline(true)
	m.ObserveDrain("shared")

	assert.InDelta(t, 1, testutil.ToFloat64(m.submissions.WithLabelValues("delivered", "")), 0.001)
	assert.InDelta(t, 2, testutil.ToFloat64(m.submissions.WithLabelValues("failed", "offline")), 0.001)
	assert.InDelta(t, 2, testutil.ToFloat64(m.queueDepth), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.online), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.drains.WithLabelValues("shared")), 0.001)

	m.SetOnline(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.online), 0.001)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SetQueueDepth(4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leadscan_pending_leads 4")
}
