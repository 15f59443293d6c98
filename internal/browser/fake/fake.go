// Package fake provides scriptable browser sessions for tests.
package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/JakeFAU/synthetic-monitor/internal/browser"
)

// Session is a browser.Session whose answers are configured up front.
// Evaluate looks the expression up in Sequences first, returning successive
// values and repeating the last, then in Results. Values are JSON encoded and
// decoded into the caller's destination.
type Session struct {
	NavigateErr error
	Results     map[string]any
	Sequences   map[string][]any
	EvalErrs    map[string]error
	Log         []browser.LogEntry
	LogErr      error

	mu        sync.Mutex
	calls     map[string]int
	navigated []string
	closed    int
}

// Navigate records rawURL.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	s.mu.Lock()
	s.navigated = append(s.navigated, rawURL)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.NavigateErr
}

// Evaluate answers from the configured tables.
func (s *Session) Evaluate(ctx context.Context, expression string, res any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := s.EvalErrs[expression]; ok {
		return err
	}
	s.mu.Lock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	n := s.calls[expression]
	s.calls[expression] = n + 1
	s.mu.Unlock()

	var value any
	if seq, ok := s.Sequences[expression]; ok && len(seq) > 0 {
		if n >= len(seq) {
			n = len(seq) - 1
		}
		value = seq[n]
	} else if v, ok := s.Results[expression]; ok {
		value = v
	} else {
		return fmt.Errorf("fake: no result for %q", expression)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("fake: encode result: %w", err)
	}
	return json.Unmarshal(raw, res)
}

// PerformanceLog returns Log or LogErr.
func (s *Session) PerformanceLog(context.Context) ([]browser.LogEntry, error) {
	if s.LogErr != nil {
		return nil, s.LogErr
	}
	return s.Log, nil
}

// Close counts teardown calls.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Closed returns how many times Close was called.
func (s *Session) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Navigated returns the URLs passed to Navigate.
func (s *Session) Navigated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigated...)
}

// Calls returns how many times expression was evaluated.
func (s *Session) Calls(expression string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[expression]
}

// Manager hands out sessions built by NewSession, or fails with Err.
type Manager struct {
	NewSession func(profile browser.Profile) *Session
	Err        error

	mu       sync.Mutex
	profiles []browser.Profile
	sessions []*Session
}

// Acquire implements browser.Manager.
func (m *Manager) Acquire(_ context.Context, profile browser.Profile) (browser.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles = append(m.profiles, profile)
	if m.Err != nil {
		return nil, fmt.Errorf("%w: %w", browser.ErrSessionUnavailable, m.Err)
	}
	sess := &Session{}
	if m.NewSession != nil {
		sess = m.NewSession(profile)
	}
	m.sessions = append(m.sessions, sess)
	return sess, nil
}

// Profiles returns the profiles passed to Acquire.
func (m *Manager) Profiles() []browser.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]browser.Profile(nil), m.profiles...)
}

// Sessions returns the sessions handed out.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Session(nil), m.sessions...)
}

// ResponseEntry builds a captured Network.responseReceived log entry.
func ResponseEntry(url string, status int, contentType string) browser.LogEntry {
	raw, _ := json.Marshal(map[string]any{
		"message": map[string]any{
			"method": "Network.responseReceived",
			"params": map[string]any{
				"response": map[string]any{
					"url":     url,
					"status":  status,
					"headers": map[string]string{"content-type": contentType},
				},
			},
		},
	})
	return browser.LogEntry{Message: string(raw)}
}
