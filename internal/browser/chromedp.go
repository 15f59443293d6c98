package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// sandboxFlags suit a constrained, single-process serverless sandbox.
var sandboxFlags = []string{
	"--autoplay-policy=user-gesture-required",
	"--disable-background-networking",
	"--disable-background-timer-throttling",
	"--disable-backgrounding-occluded-windows",
	"--disable-breakpad",
	"--disable-client-side-phishing-detection",
	"--disable-component-update",
	"--disable-default-apps",
	"--disable-dev-shm-usage",
	"--disable-domain-reliability",
	"--disable-extensions",
	"--disable-features=AudioServiceOutOfProcess",
	"--disable-gpu",
	"--disable-hang-monitor",
	"--disable-ipc-flooding-protection",
	"--disable-notifications",
	"--disable-offer-store-unmasked-wallet-cards",
	"--disable-popup-blocking",
	"--disable-print-preview",
	"--disable-prompt-on-repost",
	"--disable-renderer-backgrounding",
	"--disable-setuid-sandbox",
	"--disable-speech-api",
	"--disable-sync",
	"--disk-cache-size=33554432",
	"--hide-scrollbars",
	"--ignore-gpu-blacklist",
	"--ignore-certificate-errors",
	"--metrics-recording-only",
	"--mute-audio",
	"--no-default-browser-check",
	"--no-first-run",
	"--no-pings",
	"--no-sandbox",
	"--no-zygote",
	"--password-store=basic",
	"--use-gl=swiftshader",
	"--use-mock-keychain",
	"--single-process",
	"--headless",
}

// SandboxFlags returns a copy of the command-line flags every session is
// launched with.
func SandboxFlags() []string {
	out := make([]string, len(sandboxFlags))
	copy(out, sandboxFlags)
	return out
}

// splitFlag turns "--name=value" into ("name", "value") and "--name" into
// ("name", true).
func splitFlag(raw string) (string, any) {
	raw = strings.TrimLeft(raw, "-")
	if name, value, ok := strings.Cut(raw, "="); ok {
		return name, value
	}
	return raw, true
}

func allocatorOptions(p Profile) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range sandboxFlags {
		name, value := splitFlag(f)
		opts = append(opts, chromedp.Flag(name, value))
	}
	if path := ExecPath(p); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	return opts
}

// ChromeManager launches one headless Chrome per session via chromedp.
type ChromeManager struct {
	logger *zap.Logger
}

// NewChromeManager returns a ChromeManager.
func NewChromeManager(logger *zap.Logger) *ChromeManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeManager{logger: logger}
}

// Acquire starts a browser for profile and opens a tab with network capture
// enabled. Failures wrap ErrSessionUnavailable.
func (m *ChromeManager) Acquire(ctx context.Context, profile Profile) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(profile)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	perf := newPerfLog()
	chromedp.ListenTarget(tabCtx, perf.captureEvent)

	stopForward := forwardCancel(ctx, tabCancel)
	err := chromedp.Run(tabCtx, network.Enable())
	stopForward()
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: chromedp warmup: %w", ErrSessionUnavailable, err)
	}

	m.logger.Debug("browser session acquired",
		zap.String("system", profile.System),
		zap.String("exec_path", ExecPath(profile)),
	)
	return &chromeSession{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		perf:        perf,
	}, nil
}

type chromeSession struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	perf        *perfLog
	closeOnce   sync.Once
	closeErr    error
}

// derive binds a call to the tab while honoring the caller's deadline and
// cancellation.
func (s *chromeSession) derive(ctx context.Context) (context.Context, func()) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(s.tabCtx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(s.tabCtx)
	}
	stop := forwardCancel(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *chromeSession) Navigate(ctx context.Context, rawURL string) error {
	runCtx, done := s.derive(ctx)
	defer done()
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errorText, err := page.Navigate(rawURL).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("page load error %s", errorText)
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	return nil
}

func (s *chromeSession) Evaluate(ctx context.Context, expression string, res any) error {
	runCtx, done := s.derive(ctx)
	defer done()
	if err := chromedp.Run(runCtx, chromedp.Evaluate(expression, res)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

func (s *chromeSession) PerformanceLog(context.Context) ([]LogEntry, error) {
	return s.perf.snapshot(), nil
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.tabCtx); err != nil {
			s.closeErr = fmt.Errorf("close browser: %w", err)
		}
		s.tabCancel()
		s.allocCancel()
	})
	return s.closeErr
}

// perfLog records network responses in the shape of a webdriver performance
// log.
type perfLog struct {
	mu      sync.Mutex
	entries []LogEntry
}

func newPerfLog() *perfLog {
	return &perfLog{}
}

type perfMessage struct {
	Message perfEvent `json:"message"`
}

type perfEvent struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

type perfResponse struct {
	URL        string          `json:"url"`
	Status     int64           `json:"status"`
	StatusText string          `json:"statusText"`
	MimeType   string          `json:"mimeType"`
	Headers    network.Headers `json:"headers"`
}

func (l *perfLog) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Response == nil {
		return
	}
	raw, err := json.Marshal(perfMessage{Message: perfEvent{
		Method: "Network.responseReceived",
		Params: map[string]any{
			"type": resp.Type,
			"response": perfResponse{
				URL:        resp.Response.URL,
				Status:     resp.Response.Status,
				StatusText: resp.Response.StatusText,
				MimeType:   resp.Response.MimeType,
				Headers:    resp.Response.Headers,
			},
		},
	}})
	if err != nil {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, LogEntry{Message: string(raw)})
	l.mu.Unlock()
}

func (l *perfLog) snapshot() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
