package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/synthetic-monitor/internal/config"
	"github.com/JakeFAU/synthetic-monitor/internal/extract"
	"github.com/JakeFAU/synthetic-monitor/internal/monitor"
	"github.com/JakeFAU/synthetic-monitor/internal/validate"
)

type fakeTrigger struct {
	mu    sync.Mutex
	urls  []any
	base  monitor.RawConfig
	err   error
	panic bool
}

func (f *fakeTrigger) Run(_ context.Context, base monitor.RawConfig, urls any) ([]monitor.Report, error) {
	if f.panic {
		panic("boom")
	}
	f.mu.Lock()
	f.urls = append(f.urls, urls)
	f.base = base
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	list, _ := urls.([]string)
	status := 200
	reports := make([]monitor.Report, 0, len(list))
	for i, u := range list {
		reports = append(reports, monitor.Report{
			RunID: fmt.Sprintf("run-%d", i),
			URL:   u,
			Outcome: extract.Outcome{
				Completed:  true,
				StatusCode: &status,
				LoadState:  extract.Completed,
				State:      extract.MetricsBuilt,
			},
			DocumentsSent: 3,
		})
	}
	return reports, nil
}

func testConfig() config.Config {
	return config.Config{
		Monitor: config.MonitorConfig{
			URLs:         "https://default.example.com",
			MetricsToken: "metricsLogzioTokenlogzioTokenLog",
			LogsToken:    "logsLogzioTokenlogzioTokenLogzio",
			Region:       "us-east-1",
		},
		Server: config.ServerConfig{RequestTimeoutSecs: 5},
	}
}

func TestServer_RunMonitor_UsesConfiguredURLs(t *testing.T) {
	t.Parallel()

	trigger := &fakeTrigger{}
	server := NewServer(trigger, testConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/v1/monitor", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp monitorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Runs)
	require.Equal(t, "https://default.example.com", resp.Reports[0].URL)
	require.Equal(t, "completed", resp.Reports[0].Outcome)
	require.NotNil(t, resp.Reports[0].StatusCode)
	require.Equal(t, 200, *resp.Reports[0].StatusCode)
	require.Equal(t, "us-east-1", trigger.base.Region)
}

func TestServer_RunMonitor_BodyOverridesURLs(t *testing.T) {
	t.Parallel()

	trigger := &fakeTrigger{}
	server := NewServer(trigger, testConfig(), zap.NewNop())

	body := []byte(`{"urls":["https://a.example.com","https://b.example.com"]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/monitor", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"runs":2`)
	require.Equal(t, []any{[]string{"https://a.example.com", "https://b.example.com"}}, trigger.urls)
}

func TestServer_RunMonitor_InvalidJSON(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeTrigger{}, testConfig(), zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/v1/monitor", bytes.NewBufferString("{invalid"))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid JSON")
}

func TestServer_RunMonitor_ErrorMapping(t *testing.T) {
	t.Parallel()

	_, validationErr := validate.URL("just.a.string")
	require.Error(t, validationErr)

	testCases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation failure", validationErr, http.StatusBadRequest},
		{"deadline", context.DeadlineExceeded, http.StatusRequestTimeout},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			server := NewServer(&fakeTrigger{err: tc.err}, testConfig(), zap.NewNop())
			req := httptest.NewRequest(http.MethodPost, "/v1/monitor", nil)
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)
			require.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeTrigger{}, testConfig(), zap.NewNop())
	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.Contains(t, rec.Body.String(), want)
	}

	notReady := NewServer(nil, testConfig(), zap.NewNop())
	rec := httptest.NewRecorder()
	notReady.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeTrigger{}, testConfig(), zap.NewNop())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	server := NewServer(&fakeTrigger{}, cfg, zap.NewNop())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz?api_key=secret", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeTrigger{}, testConfig(), zap.NewNop())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeTrigger{panic: true}, testConfig(), zap.NewNop())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/monitor", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}
