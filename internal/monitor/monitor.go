package monitor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/synthetic-monitor/internal/browser"
	"github.com/JakeFAU/synthetic-monitor/internal/clock/system"
	"github.com/JakeFAU/synthetic-monitor/internal/document"
	"github.com/JakeFAU/synthetic-monitor/internal/extract"
	"github.com/JakeFAU/synthetic-monitor/internal/id/uuid"
	"github.com/JakeFAU/synthetic-monitor/internal/listener"
	"github.com/JakeFAU/synthetic-monitor/internal/metrics"
	"github.com/JakeFAU/synthetic-monitor/internal/region"
	"github.com/JakeFAU/synthetic-monitor/internal/sink"
)

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// SinkFactory builds the sink a run ships its documents through.
type SinkFactory func(cfg Config, endpoint string, logger *zap.Logger) (sink.Sink, error)

// Report summarizes a finished run.
type Report struct {
	RunID         string
	URL           string
	Endpoint      string
	Outcome       extract.Outcome
	DocumentsSent int
}

// Monitor runs monitoring passes. It holds no per-run state and is safe for
// concurrent use.
type Monitor struct {
	browsers     browser.Manager
	logger       *zap.Logger
	clock        extract.Clock
	ids          IDGenerator
	newSink      SinkFactory
	httpClient   *http.Client
	pollInterval time.Duration
	navTimeout   time.Duration
	execPath     string
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock overrides the clock.
func WithClock(c extract.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithIDGenerator overrides the run ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Monitor) { m.ids = g }
}

// WithSinkFactory overrides how sinks are built.
func WithSinkFactory(f SinkFactory) Option {
	return func(m *Monitor) { m.newSink = f }
}

// WithHTTPClient sets the client used by the default HTTP sink.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Monitor) { m.httpClient = c }
}

// WithPollInterval sets the ready-state polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Monitor) { m.pollInterval = d }
}

// WithNavigationTimeout bounds navigation commit time.
func WithNavigationTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.navTimeout = d }
}

// WithExecPath forces the browser binary.
func WithExecPath(path string) Option {
	return func(m *Monitor) { m.execPath = path }
}

// New returns a Monitor that acquires sessions from browsers.
func New(browsers browser.Manager, logger *zap.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{
		browsers:     browsers,
		logger:       logger,
		clock:        system.New(),
		ids:          uuid.New(),
		pollInterval: 100 * time.Millisecond,
		navTimeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.newSink == nil {
		m.newSink = m.httpSink
	}
	return m
}

func (m *Monitor) httpSink(cfg Config, endpoint string, logger *zap.Logger) (sink.Sink, error) {
	return sink.NewHTTPSink(endpoint, cfg.Protocol(), cfg.MetricsToken(), cfg.LogsToken(), m.httpClient, logger)
}

// Run validates raw and monitors its URL. Only validation failures are
// returned; everything after validation is logged and absorbed.
func (m *Monitor) Run(ctx context.Context, raw RawConfig) (Report, error) {
	cfg, err := Build(raw)
	if err != nil {
		return Report{}, err
	}
	return m.RunConfig(ctx, cfg), nil
}

// RunConfig monitors an already validated configuration.
func (m *Monitor) RunConfig(ctx context.Context, cfg Config) Report {
	runID, err := m.ids.NewID()
	if err != nil {
		m.logger.Warn("run id generation failed", zap.Error(err))
	}
	logger := m.logger.With(
		zap.String("run_id", runID),
		zap.String("url", cfg.URL()),
		zap.String("region", cfg.Region()),
	)
	endpoint := listener.Resolve(cfg.CustomListener(), cfg.TelemetryRegion(), cfg.Protocol())
	report := Report{RunID: runID, URL: cfg.URL(), Endpoint: endpoint}

	out, err := m.newSink(cfg, endpoint, logger)
	if err != nil {
		logger.Error("sink unavailable, documents will be dropped", zap.Error(err))
		out = discard{}
	}
	r := &run{cfg: cfg, runID: runID, logger: logger, sink: out, clock: m.clock}

	country, err := region.CountryCode(cfg.System(), cfg.Region())
	if err != nil {
		r.event(ctx, document.LevelWarning, fmt.Sprintf("%s region is not supported", cfg.Region()))
	}

	metrics.IncActiveRuns()
	defer metrics.DecActiveRuns()

	var sess browser.Session
	acquired, err := m.browsers.Acquire(ctx, browser.Profile{System: cfg.System(), ExecPath: m.execPath})
	if err != nil {
		r.event(ctx, document.LevelError, fmt.Sprintf("Error creating web driver. %v", err))
	} else {
		sess = acquired
		defer func() {
			if cerr := sess.Close(); cerr != nil {
				logger.Warn("browser close failed", zap.Error(cerr))
			}
		}()
	}

	ex := extract.New(m.clock, r.event,
		extract.WithPollInterval(m.pollInterval),
		extract.WithNavigationTimeout(m.navTimeout),
		extract.WithLogger(logger),
	)
	res := ex.Run(ctx, sess, extract.Target{
		URL:     cfg.URL(),
		Region:  cfg.Region(),
		Country: country,
		MaxWait: cfg.MaxWait(),
	})
	report.Outcome = res.Outcome

	r.send(ctx, res.Page)
	for _, doc := range res.Resources {
		r.send(ctx, doc)
	}
	sent := r.metricDocs
	r.event(ctx, document.LevelInfo, fmt.Sprintf("Sending %d metrics documents", sent))
	supervision := document.NewMetric(m.clock.Now(), res.Page.Dimensions)
	supervision.Metrics[document.MetricDocumentsSent] = float64(sent)
	r.send(ctx, supervision)

	report.DocumentsSent = r.metricDocs + r.logDocs
	m.observe(cfg, sess == nil, res)
	logger.Info("monitoring run finished",
		zap.String("outcome", res.Outcome.LoadState.String()),
		zap.Int("metric_documents", r.metricDocs),
		zap.Int("log_documents", r.logDocs),
	)
	return report
}

func (m *Monitor) observe(cfg Config, noSession bool, res extract.Result) {
	outcome := metrics.OutcomeLoadError
	switch {
	case noSession:
		outcome = metrics.OutcomeNoSession
	case res.Outcome.Completed:
		outcome = metrics.OutcomeCompleted
	case res.Outcome.TimedOut:
		outcome = metrics.OutcomeTimedOut
	}
	metrics.ObserveRun(cfg.URL(), outcome)
	if ms, ok := res.Page.Value(document.MetricTimeToComplete); ok {
		metrics.ObservePageLoad(cfg.URL(), time.Duration(ms*float64(time.Millisecond)))
	}
}

// run carries the per-run context shared by event reporting and sending.
type run struct {
	cfg        Config
	runID      string
	logger     *zap.Logger
	sink       sink.Sink
	clock      extract.Clock
	metricDocs int
	logDocs    int
}

func (r *run) send(ctx context.Context, doc document.Document) {
	r.sink.Send(ctx, doc)
	if doc.Kind() == document.KindMetric {
		r.metricDocs++
	} else {
		r.logDocs++
	}
}

// event logs locally and ships a LogDocument.
func (r *run) event(ctx context.Context, level document.Level, msg string) {
	switch level {
	case document.LevelError:
		r.logger.Error(msg)
	case document.LevelWarning:
		r.logger.Warn(msg)
	default:
		r.logger.Info(msg)
	}
	r.send(ctx, &document.LogDocument{
		Timestamp:    r.clock.Now(),
		Level:        level,
		Message:      msg,
		FunctionName: r.cfg.FunctionName(),
		Region:       r.cfg.Region(),
		URL:          r.cfg.URL(),
		RunID:        r.runID,
	})
}

type discard struct{}

func (discard) Send(context.Context, document.Document) {}
