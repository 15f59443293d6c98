// Package sink ships telemetry documents to the ingestion listener.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/synthetic-monitor/internal/document"
	"github.com/JakeFAU/synthetic-monitor/internal/listener"
	"github.com/JakeFAU/synthetic-monitor/internal/metrics"
)

const (
	defaultTimeout   = 10 * time.Second
	maxErrorBodySize = 4096
)

// ErrRejected indicates the listener answered with a non-2xx status.
var ErrRejected = errors.New("listener rejected document")

// Sink accepts documents for best-effort delivery. Send never fails.
type Sink interface {
	Send(ctx context.Context, doc document.Document)
}

// HTTPSink posts each document once to the listener, choosing the token by
// document kind.
type HTTPSink struct {
	base         string
	protocol     string
	metricsToken string
	logsToken    string
	client       *http.Client
	logger       *zap.Logger
}

// NewHTTPSink builds an HTTPSink for the resolved listener base URL.
func NewHTTPSink(base, protocol, metricsToken, logsToken string, client *http.Client, logger *zap.Logger) (*HTTPSink, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return nil, errors.New("listener base url required")
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSink{
		base:         trimmed,
		protocol:     protocol,
		metricsToken: metricsToken,
		logsToken:    logsToken,
		client:       client,
		logger:       logger,
	}, nil
}

// Endpoint returns the POST target used for documents of kind k.
func (s *HTTPSink) Endpoint(k document.Kind) string {
	return listener.Endpoint(s.base, s.protocol, s.token(k))
}

func (s *HTTPSink) token(k document.Kind) string {
	if k == document.KindMetric {
		return s.metricsToken
	}
	return s.logsToken
}

// Send delivers doc and absorbs any failure.
func (s *HTTPSink) Send(ctx context.Context, doc document.Document) {
	kind := doc.Kind().String()
	metrics.ObserveDocument(kind)
	if err := s.Deliver(ctx, doc); err != nil {
		metrics.ObserveDeliveryFailure(kind)
		s.logger.Warn("telemetry delivery failed",
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
}

// Deliver performs a single POST of doc and reports the outcome.
func (s *HTTPSink) Deliver(ctx context.Context, doc document.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint(doc.Kind()), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build listener request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send listener request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body close is best-effort
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errorForStatus(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func errorForStatus(resp *http.Response) error {
	buf, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	summary := strings.TrimSpace(string(buf))
	if summary == "" {
		summary = resp.Status
	}
	return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, summary)
}
