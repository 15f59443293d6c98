// Package browser acquires headless browser sessions and exposes the small
// capability surface the extractor needs: navigate, evaluate, read the
// captured network log and close.
package browser

import (
	"context"
	"errors"
)

// ErrSessionUnavailable indicates the browser could not be started.
var ErrSessionUnavailable = errors.New("browser session unavailable")

// Deployment-system executable locations.
const (
	AWSChromePath = "/opt/bin/chromium"
)

// LogEntry is one captured network event. Message holds a JSON object of the
// form {"message":{"method":...,"params":{...}}}.
type LogEntry struct {
	Message string
}

// Session is a live browser tab.
type Session interface {
	// Navigate starts loading rawURL and returns once the navigation is
	// committed or failed.
	Navigate(ctx context.Context, rawURL string) error
	// Evaluate runs a JavaScript expression in the page and decodes its
	// result into res.
	Evaluate(ctx context.Context, expression string, res any) error
	// PerformanceLog returns the network events captured so far.
	PerformanceLog(ctx context.Context) ([]LogEntry, error)
	// Close tears the session down. It is safe to call more than once.
	Close() error
}

// Profile selects how the browser is launched.
type Profile struct {
	System   string
	ExecPath string
}

// Manager acquires sessions.
type Manager interface {
	Acquire(ctx context.Context, profile Profile) (Session, error)
}

// ExecPath returns the browser binary for a profile. An explicit path wins;
// the "aws" system uses the layer binary; otherwise chromedp's lookup is used
// and the empty string is returned.
func ExecPath(p Profile) string {
	if p.ExecPath != "" {
		return p.ExecPath
	}
	if p.System == "aws" {
		return AWSChromePath
	}
	return ""
}
