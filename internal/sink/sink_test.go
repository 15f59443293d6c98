package sink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/synthetic-monitor/internal/document"
)

const (
	testLogsToken    = "logsLogzioTokenlogzioTokenLogzio"
	testMetricsToken = "metricsLogzioTokenlogzioTokenLog"
)

type captured struct {
	token       string
	contentType string
	body        map[string]any
}

type fakeListener struct {
	mu     sync.Mutex
	status int
	posts  []captured
}

func newFakeListener(t *testing.T, status int) (*fakeListener, *httptest.Server) {
	t.Helper()
	fl := &fakeListener{status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		fl.mu.Lock()
		fl.posts = append(fl.posts, captured{
			token:       r.URL.Query().Get("token"),
			contentType: r.Header.Get("Content-Type"),
			body:        body,
		})
		fl.mu.Unlock()
		w.WriteHeader(fl.status)
	}))
	t.Cleanup(srv.Close)
	return fl, srv
}

func (f *fakeListener) snapshot() []captured {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]captured, len(f.posts))
	copy(out, f.posts)
	return out
}

func TestNewHTTPSinkRequiresBase(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPSink("  ", "https", testMetricsToken, testLogsToken, nil, nil)
	require.Error(t, err)
}

func TestEndpointSelectsTokenByKind(t *testing.T) {
	t.Parallel()

	s, err := NewHTTPSink("https://listener.logz.io", "https", testMetricsToken, testLogsToken, nil, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, "https://listener.logz.io:8071/?token="+testMetricsToken, s.Endpoint(document.KindMetric))
	require.Equal(t, "https://listener.logz.io:8071/?token="+testLogsToken, s.Endpoint(document.KindLog))
}

func TestDeliverRoutesDocumentsByKind(t *testing.T) {
	t.Parallel()

	fl, srv := newFakeListener(t, http.StatusOK)
	s, err := NewHTTPSink(srv.URL, "http", testMetricsToken, testLogsToken, srv.Client(), zap.NewNop())
	require.NoError(t, err)

	metric := document.NewMetric(time.UnixMilli(5), map[string]string{document.DimensionURL: "https://example.com"})
	metric.Metrics[document.MetricUp] = 1
	require.NoError(t, s.Deliver(context.Background(), metric))
	require.NoError(t, s.Deliver(context.Background(), &document.LogDocument{Timestamp: time.UnixMilli(5), Message: "hi"}))

	posts := fl.snapshot()
	require.Len(t, posts, 2)
	require.Equal(t, testMetricsToken, posts[0].token)
	require.Contains(t, posts[0].body, "metrics")
	require.Equal(t, "synthetic-monitoring", posts[0].body["type"])
	require.Equal(t, testLogsToken, posts[1].token)
	require.Equal(t, "hi", posts[1].body["message"])
	require.NotEqual(t, "application/json", posts[0].contentType)
}

func TestDeliverReportsNonSuccessStatus(t *testing.T) {
	t.Parallel()

	_, srv := newFakeListener(t, http.StatusInternalServerError)
	s, err := NewHTTPSink(srv.URL, "http", testMetricsToken, testLogsToken, srv.Client(), zap.NewNop())
	require.NoError(t, err)

	err = s.Deliver(context.Background(), document.NewMetric(time.Now(), nil))
	require.ErrorIs(t, err, ErrRejected)
	require.Contains(t, err.Error(), "500")
}

func TestSendAbsorbsFailures(t *testing.T) {
	t.Parallel()

	fl, srv := newFakeListener(t, http.StatusInternalServerError)
	core, logs := observer.New(zapcore.WarnLevel)
	s, err := NewHTTPSink(srv.URL, "http", testMetricsToken, testLogsToken, srv.Client(), zap.New(core))
	require.NoError(t, err)

	require.NotPanics(t, func() {
		s.Send(context.Background(), document.NewMetric(time.Now(), nil))
	})
	require.Len(t, fl.snapshot(), 1)
	require.Equal(t, 1, logs.FilterMessage("telemetry delivery failed").Len())
}

func TestSendAbsorbsTransportErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	s, err := NewHTTPSink(base, "http", testMetricsToken, testLogsToken, &http.Client{Timeout: time.Second}, zap.New(core))
	require.NoError(t, err)

	s.Send(context.Background(), &document.LogDocument{Timestamp: time.Now(), Message: "lost"})
	require.Equal(t, 1, logs.Len())
}
