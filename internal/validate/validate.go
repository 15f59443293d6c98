// Package validate gates raw monitor configuration before any browser or
// network work starts. Every function is pure: it inspects the value it is
// given and returns either the normalized value or an *Error.
package validate

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/JakeFAU/synthetic-monitor/internal/region"
)

var (
	// ErrType marks values of the wrong shape.
	ErrType = errors.New("invalid type")
	// ErrValue marks well-typed values that are semantically invalid.
	ErrValue = errors.New("invalid value")
)

// Kind classifies a validation failure.
type Kind int

// Validation failure kinds.
const (
	TypeKind Kind = iota + 1
	ValueKind
)

func (k Kind) String() string {
	switch k {
	case TypeKind:
		return "type"
	case ValueKind:
		return "value"
	default:
		return "unknown"
	}
}

// Error describes a rejected configuration value.
type Error struct {
	Kind  Kind
	Field string
	Value any
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Unwrap exposes ErrType or ErrValue so callers can use errors.Is.
func (e *Error) Unwrap() error {
	if e.Kind == TypeKind {
		return ErrType
	}
	return ErrValue
}

func typeError(field string, v any, want string) *Error {
	return &Error{Kind: TypeKind, Field: field, Value: v, Msg: fmt.Sprintf("should be a %s, got %T", want, v)}
}

func valueError(field string, v any, format string, args ...any) *Error {
	return &Error{Kind: ValueKind, Field: field, Value: v, Msg: fmt.Sprintf(format, args...)}
}

// TelemetryRegions are the listener shards accepted by TelemetryRegion.
var TelemetryRegions = []string{"au", "ca", "eu", "nl", "uk", "us", "wa"}

var (
	tokenPattern    = regexp.MustCompile(`^[a-zA-Z]{32}$`)
	urlPattern      = regexp.MustCompile(`^(http://www\.|https://www\.|http://|https://)?[a-z0-9]+([\-.][a-z0-9]+)*\.[a-z]{2,5}(:[0-9]{1,5})?(/.*)?$`)
	intervalPattern = regexp.MustCompile(`^rate\([0-9]+ (minute|minutes|hour|hours|day|days)\)$`)
)

// Token validates a 32 character, mixed-case alphabetic shipping token.
func Token(field string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", typeError(field, v, "string")
	}
	if !tokenPattern.MatchString(s) || !hasLowerAndUpper(s) {
		return "", valueError(field, v, "invalid token")
	}
	return s, nil
}

func hasLowerAndUpper(s string) bool {
	var lower, upper bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		}
	}
	return lower && upper
}

// URL validates a single monitored URL.
func URL(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", typeError("url", v, "string")
	}
	if !urlPattern.MatchString(s) {
		return "", valueError("url", v, "url is invalid: %q", s)
	}
	return s, nil
}

// URLList validates a list of URLs. Invalid members are returned in rejected
// instead of failing the whole list; the list only fails when it is empty or
// when no member survives.
func URLList(v any) (valid []string, rejected []error, err error) {
	var items []any
	switch list := v.(type) {
	case []string:
		for _, s := range list {
			items = append(items, s)
		}
	case []any:
		items = list
	default:
		return nil, nil, typeError("urls", v, "list")
	}
	if len(items) == 0 {
		return nil, nil, valueError("urls", v, "should include at least one url to monitor")
	}
	for _, item := range items {
		u, uerr := URL(item)
		if uerr != nil {
			rejected = append(rejected, uerr)
			continue
		}
		valid = append(valid, u)
	}
	if len(valid) == 0 {
		return nil, rejected, valueError("urls", v, "couldn't find any valid urls")
	}
	return valid, rejected, nil
}

// SplitURLs turns a comma separated URL string into a trimmed list.
func SplitURLs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// TelemetryRegion validates the listener shard code. The empty string means
// the default shard.
func TelemetryRegion(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", typeError("telemetry_region", v, "string")
	}
	if s == "" {
		return s, nil
	}
	for _, code := range TelemetryRegions {
		if s == code {
			return s, nil
		}
	}
	return "", valueError("telemetry_region", v, "invalid telemetry region code: %q", s)
}

// System validates the deployment system identifier.
func System(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", typeError("system", v, "string")
	}
	if !region.IsSupportedSystem(s) {
		return "", valueError("system", v, "unsupported system: %q", s)
	}
	return s, nil
}

// SystemRegion validates a deployment region for an already validated system.
func SystemRegion(system string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", typeError("region", v, "string")
	}
	if err := region.ValidateRegion(system, s); err != nil {
		return "", valueError("region", v, "%v", err)
	}
	return s, nil
}

// FunctionName validates the optional function or run identifier.
func FunctionName(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError("function_name", v, "string")
	}
	return s, nil
}

// Protocol validates the shipping protocol; empty means https.
func Protocol(v any) (string, error) {
	if v == nil {
		return "https", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError("protocol", v, "string")
	}
	switch strings.ToLower(s) {
	case "":
		return "https", nil
	case "http", "https":
		return strings.ToLower(s), nil
	default:
		return "", valueError("protocol", v, "unsupported protocol: %q", s)
	}
}

// MaxWait validates the DOM-complete timeout in seconds.
func MaxWait(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, typeError("max_dom_complete", v, "number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, valueError("max_dom_complete", v, "should be a non-zero, positive number")
	}
	return f, nil
}

// ScrapeInterval validates a scheduler expression such as "rate(5 minutes)".
func ScrapeInterval(v any) (string, error) {
	if v == nil {
		return "", valueError("scrape_interval", v, "must enter a scrape interval")
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError("scrape_interval", v, "string")
	}
	if s == "" {
		return "", valueError("scrape_interval", v, "must enter a scrape interval")
	}
	if !intervalPattern.MatchString(s) {
		return "", valueError("scrape_interval", v, "invalid scrape interval: %q", s)
	}
	return s, nil
}
