// Package memory contains an in-memory sink for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/synthetic-monitor/internal/document"
)

// Sink stores sent documents for inspection.
type Sink struct {
	mu   sync.RWMutex
	docs []document.Document
}

// New returns a memory Sink.
func New() *Sink {
	return &Sink{}
}

// Send records the document.
func (s *Sink) Send(_ context.Context, doc document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
}

// Documents returns the recorded documents in send order.
func (s *Sink) Documents() []document.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]document.Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// Logs returns the recorded log documents.
func (s *Sink) Logs() []*document.LogDocument {
	var out []*document.LogDocument
	for _, doc := range s.Documents() {
		if l, ok := doc.(*document.LogDocument); ok {
			out = append(out, l)
		}
	}
	return out
}

// Metrics returns the recorded metric documents.
func (s *Sink) Metrics() []*document.MetricDocument {
	var out []*document.MetricDocument
	for _, doc := range s.Documents() {
		if m, ok := doc.(*document.MetricDocument); ok {
			out = append(out, m)
		}
	}
	return out
}
