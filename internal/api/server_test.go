package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := NewServer(reg, zap.NewNop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts, reg
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec // test URL
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, string(body)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	_, ts, _ := newTestServer(t)

	resp, body := get(t, ts.URL+"/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, body)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, body = get(t, ts.URL+"/readyz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ready"}`, body)
}

func TestMetricsEndpointScrapesRegistry(t *testing.T) {
	t.Parallel()

	_, ts, reg := newTestServer(t)

	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_test_total",
		Help: "Test counter.",
	})
	require.NoError(t, reg.Register(c))
	c.Add(3)

	resp, body := get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "sweep_test_total 3")
}

func TestUnknownRouteReturns404(t *testing.T) {
	t.Parallel()

	_, ts, _ := newTestServer(t)
	resp, _ := get(t, ts.URL+"/v1/nope")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
