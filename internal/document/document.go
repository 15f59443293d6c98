// Package document defines the log and metric documents shipped to the
// ingestion listener and their wire encoding.
package document

import (
	"encoding/json"
	"time"
)

// Type is stamped on every document.
const Type = "synthetic-monitoring"

// Metric names.
const (
	MetricTimeToFirstByte = "time_to_first_byte.ms"
	MetricTimeToComplete  = "time_to_complete.ms"
	MetricDOMIsComplete   = "dom_is_complete"
	MetricStatusCode      = "status_code"
	MetricUp              = "up"
	MetricDocumentsSent   = "documents_sent"
)

// Dimension names.
const (
	DimensionCountry      = "country"
	DimensionRegion       = "region"
	DimensionURL          = "url"
	DimensionResourceName = "resource_name"
	DimensionResourceType = "resource_type"
)

// Kind selects the credential a document is shipped with.
type Kind int

// Document kinds.
const (
	KindLog Kind = iota
	KindMetric
)

func (k Kind) String() string {
	if k == KindMetric {
		return "metric"
	}
	return "log"
}

// Level is the severity carried by a LogDocument.
type Level string

// Log levels.
const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Document is either a *LogDocument or a *MetricDocument.
type Document interface {
	Kind() Kind
	json.Marshaler
}

// FormatTimestamp renders t as UTC ISO-8601 with millisecond precision and a
// trailing "Z".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000") + "Z"
}

// LogDocument reports an operational event of a monitoring run.
type LogDocument struct {
	Timestamp    time.Time
	Level        Level
	Message      string
	FunctionName string
	Region       string
	URL          string
	RunID        string
}

// Kind implements Document.
func (*LogDocument) Kind() Kind { return KindLog }

type logWire struct {
	Timestamp    string `json:"@timestamp"`
	Type         string `json:"type"`
	Level        Level  `json:"log_level,omitempty"`
	Message      string `json:"message"`
	FunctionName string `json:"lambda_function,omitempty"`
	Region       string `json:"region,omitempty"`
	URL          string `json:"url,omitempty"`
	RunID        string `json:"run_id,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (d *LogDocument) MarshalJSON() ([]byte, error) {
	return json.Marshal(logWire{
		Timestamp:    FormatTimestamp(d.Timestamp),
		Type:         Type,
		Level:        d.Level,
		Message:      d.Message,
		FunctionName: d.FunctionName,
		Region:       d.Region,
		URL:          d.URL,
		RunID:        d.RunID,
	})
}

// MetricDocument carries numeric measurements and the dimensions they are
// keyed by.
type MetricDocument struct {
	Timestamp  time.Time
	Metrics    map[string]float64
	Dimensions map[string]string
}

// NewMetric returns an empty metric document for t.
func NewMetric(t time.Time, dimensions map[string]string) *MetricDocument {
	dims := make(map[string]string, len(dimensions))
	for k, v := range dimensions {
		dims[k] = v
	}
	return &MetricDocument{
		Timestamp:  t,
		Metrics:    map[string]float64{},
		Dimensions: dims,
	}
}

// Kind implements Document.
func (*MetricDocument) Kind() Kind { return KindMetric }

// Value returns a metric and whether it is present.
func (d *MetricDocument) Value(name string) (float64, bool) {
	v, ok := d.Metrics[name]
	return v, ok
}

type metricWire struct {
	Timestamp  string             `json:"@timestamp"`
	Type       string             `json:"type"`
	Metrics    map[string]float64 `json:"metrics"`
	Dimensions map[string]string  `json:"dimensions"`
}

// MarshalJSON implements json.Marshaler.
func (d *MetricDocument) MarshalJSON() ([]byte, error) {
	metrics := d.Metrics
	if metrics == nil {
		metrics = map[string]float64{}
	}
	dims := d.Dimensions
	if dims == nil {
		dims = map[string]string{}
	}
	return json.Marshal(metricWire{
		Timestamp:  FormatTimestamp(d.Timestamp),
		Type:       Type,
		Metrics:    metrics,
		Dimensions: dims,
	})
}
