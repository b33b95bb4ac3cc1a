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

func TestObserveCheckoutCountsByOutcome(t *testing.T) {
	m := New("pos_test")
	m.ObserveCheckout("committed", 12*time.Millisecond)
	m.ObserveCheckout("committed", 3*time.Millisecond)
	m.ObserveCheckout("insufficient_stock", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("insufficient_stock")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCheckout("committed", time.Millisecond)
	m.ObserveRequest("/healthz", http.StatusOK, time.Millisecond)
}

func TestHandlerExposesRegisteredSeries(t *testing.T) {
	m := New("pos_test")
	m.ObserveRequest("/api/v1/checkout", http.StatusCreated, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pos_test_http_requests_total{handler="/api/v1/checkout",status="201"} 1`)
}

func TestSeparateInstancesDoNotCollide(t *testing.T) {
	require.NotPanics(t, func() {
		New("pos_test")
		New("pos_test")
	})
}
