package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveProxy(t *testing.T) {
	m := New()
	m.ObserveProxy(200, 10*time.Millisecond)
	m.ObserveProxy(200, 10*time.Millisecond)
	m.ObserveProxy(0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.proxyRequests.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.proxyRequests.WithLabelValues("error")))
}

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.TokenRefresh(true)
	m.TokenRefresh(false)
	m.Login("multi", true)
	m.SessionTeardown()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `hubviewer_token_refreshes_total{outcome="success"} 1`))
	assert.True(t, strings.Contains(body, `hubviewer_logins_total{mode="multi",outcome="success"} 1`))
	assert.True(t, strings.Contains(body, "hubviewer_session_teardowns_total 1"))
}

func TestNewWithRegistry_Duplicate(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewWithRegistry(reg, reg)
	require.NoError(t, err)

	_, err = NewWithRegistry(reg, reg)
	var are prometheus.AlreadyRegisteredError
	require.ErrorAs(t, err, &are)
	assert.ErrorContains(t, err, "register metrics")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveProxy(200, time.Second)
		m.TokenRefresh(true)
		m.Login("single", false)
		m.SessionTeardown()
	})
}
