package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RemoteCall("update", "ok")
		m.Fallback("update", "rejected")
		m.SetOverlayEntries(3)
		m.OpportunisticClear()
		m.StorageFailure()
		m.Broadcast("sent")
		m.Invalidation("feed")
	})
}

func TestCounters(t *testing.T) {
	m := New()
	m.RemoteCall("update", "rejected")
	m.RemoteCall("update", "rejected")
	m.Fallback("update", "rejected")
	m.SetOverlayEntries(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RemoteCalls.WithLabelValues("update", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks.WithLabelValues("update", "rejected")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OverlayEntries))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.Invalidation("feed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `kiosksync_invalidations_total{source="feed"} 1`)
}
