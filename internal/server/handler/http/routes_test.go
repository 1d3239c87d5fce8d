package http_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/HubViewer/internal/metrics"
	handler "github.com/atinyakov/HubViewer/internal/server/handler/http"
	"github.com/atinyakov/HubViewer/internal/service"
)

type recordingForwarder struct {
	paths   []string
	queries []string
}

func (f *recordingForwarder) Forward(w http.ResponseWriter, r *http.Request, proxyPath string) {
	f.paths = append(f.paths, proxyPath)
	f.queries = append(f.queries, r.URL.RawQuery)
	w.WriteHeader(http.StatusTeapot)
}

type stubAuthService struct{}

func (stubAuthService) LoginAccount(context.Context, string, string, string) (service.AccountLogin, error) {
	return service.AccountLogin{Bundle: "b", Token: "t", Organization: "acme"}, nil
}

func (stubAuthService) LoginToken(_ context.Context, _, repository string) (string, error) {
	return repository, nil
}

func newTestRouter(fwd handler.Forwarder, m *metrics.Metrics) http.Handler {
	var metricsHandler http.Handler
	if m != nil {
		metricsHandler = m.Handler()
	}
	return handler.NewRouter(
		&handler.AuthHandler{AuthService: stubAuthService{}, Metrics: m},
		&handler.ProxyHandler{Gateway: fwd},
		metricsHandler,
		zap.NewNop(),
	)
}

func TestRouter_Proxy(t *testing.T) {
	fwd := &recordingForwarder{}
	srv := httptest.NewServer(newTestRouter(fwd, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/proxy/v2/repositories/app/tags?page=2&page_size=15")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	require.Len(t, fwd.paths, 1)
	assert.Equal(t, "v2/repositories/app/tags", fwd.paths[0])
	assert.Equal(t, "page=2&page_size=15", fwd.queries[0])
}

func TestRouter_ProxyRejectsPost(t *testing.T) {
	fwd := &recordingForwarder{}
	srv := httptest.NewServer(newTestRouter(fwd, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/proxy/v2/repositories", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Empty(t, fwd.paths)
}

func TestRouter_LoginRequiresJSON(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&recordingForwarder{}, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/login", "text/plain", bytes.NewBufferString("token=x"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/login", "application/json",
		bytes.NewBufferString(`{"token":"t","repository":"acme"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_Metrics(t *testing.T) {
	m := metrics.New()
	srv := httptest.NewServer(newTestRouter(&recordingForwarder{}, m))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/login", "application/json",
		bytes.NewBufferString(`{"organization":"acme","user":"alice","token":"pat"}`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `hubviewer_logins_total{mode="account",outcome="success"} 1`)
}

func TestRouter_NoMetricsRoute(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&recordingForwarder{}, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
