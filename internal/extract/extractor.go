package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/synthetic-monitor/internal/browser"
	"github.com/JakeFAU/synthetic-monitor/internal/document"
)

// In-page expressions evaluated by the extractor.
const (
	ReadyStateScript = `document.readyState`
	LocationScript   = `window.location.href`
	TimingScript     = `(() => {
	const t = window.performance.timing;
	return {
		navigationStart: t.navigationStart,
		requestStart: t.requestStart,
		responseStart: t.responseStart,
		domComplete: t.domComplete
	};
})()`
	ResourcesScript = `window.performance.getEntriesByType('resource').map(e => ({
	name: e.name,
	initiatorType: e.initiatorType,
	fetchStart: e.fetchStart,
	responseEnd: e.responseEnd
}))`
)

// Operational event messages.
const (
	MsgWaitTimeout = "domComplete event didn't occur within the time limit"
	MsgNoSession   = "No browser session available, sending best-effort metrics"
)

const defaultNavigationTimeout = 30 * time.Second

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Reporter receives operational events raised while extracting.
type Reporter func(ctx context.Context, level document.Level, message string)

// Target describes the page being measured and the dimensions its documents
// carry.
type Target struct {
	URL     string
	Region  string
	Country string
	MaxWait time.Duration
}

func (t Target) dimensions() map[string]string {
	dims := map[string]string{
		document.DimensionRegion: t.Region,
		document.DimensionURL:    t.URL,
	}
	if t.Country != "" {
		dims[document.DimensionCountry] = t.Country
	}
	return dims
}

// Result holds the documents derived from one run.
type Result struct {
	Outcome   Outcome
	Page      *document.MetricDocument
	Resources []*document.MetricDocument
}

// ResourceEntry is one sub-resource fetch from the performance timeline.
type ResourceEntry struct {
	Name          string  `json:"name"`
	InitiatorType string  `json:"initiatorType"`
	FetchStart    float64 `json:"fetchStart"`
	ResponseEnd   float64 `json:"responseEnd"`
}

// Duration returns responseEnd - fetchStart in milliseconds, never negative.
func (r ResourceEntry) Duration() float64 {
	if d := r.ResponseEnd - r.FetchStart; d > 0 {
		return d
	}
	return 0
}

type pageTiming struct {
	NavigationStart float64 `json:"navigationStart"`
	RequestStart    float64 `json:"requestStart"`
	ResponseStart   float64 `json:"responseStart"`
	DOMComplete     float64 `json:"domComplete"`
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPollInterval sets how often the ready state is polled.
func WithPollInterval(d time.Duration) Option {
	return func(e *Extractor) { e.pollInterval = d }
}

// WithNavigationTimeout bounds how long navigation may take to commit.
func WithNavigationTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.navTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// Extractor runs the navigation state machine.
type Extractor struct {
	clock        Clock
	report       Reporter
	pollInterval time.Duration
	navTimeout   time.Duration
	logger       *zap.Logger
}

// New returns an Extractor. A nil report discards events.
func New(clock Clock, report Reporter, opts ...Option) *Extractor {
	e := &Extractor{
		clock:        clock,
		report:       report,
		pollInterval: defaultPollInterval,
		navTimeout:   defaultNavigationTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.report == nil {
		e.report = func(context.Context, document.Level, string) {}
	}
	return e
}

// Run measures target in sess. A nil session skips loading and still returns
// a best-effort page document.
func (e *Extractor) Run(ctx context.Context, sess browser.Session, target Target) Result {
	out := Outcome{State: Idle}
	e.load(ctx, sess, target, &out)
	out.LoadState = out.State

	res := Result{Outcome: out}
	timing, hasTiming := e.timing(ctx, sess)
	ts := e.clock.Now()
	if hasTiming && timing.NavigationStart > 0 {
		ts = time.UnixMilli(int64(timing.NavigationStart)).UTC()
	}

	res.Page = e.pageDocument(ctx, sess, target, ts, timing, hasTiming, &res.Outcome)
	res.Resources = e.resourceDocuments(ctx, sess, target, ts)
	res.Outcome.State = MetricsBuilt
	return res
}

func (e *Extractor) load(ctx context.Context, sess browser.Session, target Target, out *Outcome) {
	if sess == nil {
		out.State = LoadError
		e.report(ctx, document.LevelError, MsgNoSession)
		return
	}

	out.State = Navigating
	navCtx, cancel := context.WithTimeout(ctx, e.navTimeout)
	err := sess.Navigate(navCtx, target.URL)
	cancel()
	if err != nil {
		out.State = LoadError
		e.report(ctx, document.LevelError, fmt.Sprintf("Error occurred while trying to load page: %v", err))
		return
	}

	out.State = WaitingForComplete
	err = WaitFor(ctx, target.MaxWait, e.pollInterval, func(ctx context.Context) (bool, error) {
		var state string
		if err := sess.Evaluate(ctx, ReadyStateScript, &state); err != nil {
			return false, err
		}
		return state == "complete", nil
	})
	switch {
	case err == nil:
		out.State = Completed
		out.Completed = true
	case errors.Is(err, ErrWaitTimeout):
		out.State = TimedOut
		out.TimedOut = true
		e.logger.Debug("ready state wait expired", zap.String("url", target.URL), zap.Error(err))
		e.report(ctx, document.LevelWarning, MsgWaitTimeout)
	default:
		out.State = LoadError
		e.report(ctx, document.LevelError, fmt.Sprintf("Error occurred while trying to load page: %v", err))
	}
}

func (e *Extractor) timing(ctx context.Context, sess browser.Session) (pageTiming, bool) {
	var t pageTiming
	if sess == nil {
		return t, false
	}
	if err := sess.Evaluate(ctx, TimingScript, &t); err != nil {
		e.report(ctx, document.LevelError, fmt.Sprintf("Error creating page's metrics. %v", err))
		return t, false
	}
	return t, true
}

func (e *Extractor) pageDocument(
	ctx context.Context,
	sess browser.Session,
	target Target,
	ts time.Time,
	timing pageTiming,
	hasTiming bool,
	out *Outcome,
) *document.MetricDocument {
	doc := document.NewMetric(ts, target.dimensions())
	if hasTiming {
		doc.Metrics[document.MetricTimeToFirstByte] = timing.ResponseStart - timing.RequestStart
		if out.Completed {
			doc.Metrics[document.MetricTimeToComplete] = timing.DOMComplete - timing.NavigationStart
		}
	}
	doc.Metrics[document.MetricDOMIsComplete] = 0
	if out.Completed {
		doc.Metrics[document.MetricDOMIsComplete] = 1
	}

	if sess == nil {
		return doc
	}
	entries, err := sess.PerformanceLog(ctx)
	if err != nil {
		e.report(ctx, document.LevelError, fmt.Sprintf("Error occurred while getting performance logs: %v", err))
		return doc
	}
	status, found := StatusFromLog(entries)
	if !found {
		return doc
	}
	out.StatusCode = &status
	doc.Metrics[document.MetricStatusCode] = float64(status)
	up, known := Classify(status)
	if !known {
		return doc
	}
	doc.Metrics[document.MetricUp] = up
	if up == 0 {
		e.report(ctx, document.LevelWarning, fmt.Sprintf("Page %s returned status code %d for region %s",
			e.currentURL(ctx, sess, target.URL), status, target.Region))
	}
	return doc
}

func (e *Extractor) currentURL(ctx context.Context, sess browser.Session, fallback string) string {
	var href string
	if err := sess.Evaluate(ctx, LocationScript, &href); err != nil || href == "" {
		return fallback
	}
	return href
}

func (e *Extractor) resourceDocuments(
	ctx context.Context,
	sess browser.Session,
	target Target,
	ts time.Time,
) []*document.MetricDocument {
	if sess == nil {
		return nil
	}
	var raw []json.RawMessage
	if err := sess.Evaluate(ctx, ResourcesScript, &raw); err != nil {
		e.report(ctx, document.LevelError, fmt.Sprintf("Error occurred while getting resource metrics: %v", err))
		return nil
	}
	docs := make([]*document.MetricDocument, 0, len(raw))
	for _, item := range raw {
		var entry ResourceEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			e.logger.Debug("dropping undecodable resource entry", zap.Error(err))
			continue
		}
		dims := target.dimensions()
		dims[document.DimensionResourceName] = entry.Name
		dims[document.DimensionResourceType] = entry.InitiatorType
		doc := document.NewMetric(ts, dims)
		doc.Metrics[document.MetricTimeToComplete] = entry.Duration()
		docs = append(docs, doc)
	}
	return docs
}
