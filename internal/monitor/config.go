// Package monitor composes validation, listener resolution, browser sessions,
// extraction and delivery into one monitoring run per URL.
package monitor

import (
	"time"

	"github.com/JakeFAU/synthetic-monitor/internal/validate"
)

// RawConfig carries unvalidated invocation values. Fields are untyped so
// that shape errors surface as validate.TypeKind.
type RawConfig struct {
	URL             any
	MetricsToken    any
	LogsToken       any
	Region          any
	TelemetryRegion any
	CustomListener  any
	System          any
	FunctionName    any
	Protocol        any
	MaxWait         any
}

// Config is a validated, immutable monitoring configuration. The only way to
// obtain one is Build.
type Config struct {
	url             string
	metricsToken    string
	logsToken       string
	region          string
	telemetryRegion string
	customListener  string
	system          string
	functionName    string
	protocol        string
	maxWait         time.Duration
}

// Build validates raw and constructs a Config. The first failure is
// returned as a *validate.Error.
func Build(raw RawConfig) (Config, error) {
	var (
		cfg Config
		err error
	)
	if cfg.url, err = validate.URL(raw.URL); err != nil {
		return Config{}, err
	}
	if cfg.metricsToken, err = validate.Token("metrics_token", raw.MetricsToken); err != nil {
		return Config{}, err
	}
	if cfg.logsToken, err = validate.Token("logs_token", raw.LogsToken); err != nil {
		return Config{}, err
	}
	if cfg.telemetryRegion, err = validate.TelemetryRegion(stringOrEmpty(raw.TelemetryRegion)); err != nil {
		return Config{}, err
	}
	if cfg.customListener, err = optionalString("custom_listener", raw.CustomListener); err != nil {
		return Config{}, err
	}
	if cfg.system, err = validate.System(raw.System); err != nil {
		return Config{}, err
	}
	if cfg.region, err = validate.SystemRegion(cfg.system, raw.Region); err != nil {
		return Config{}, err
	}
	if cfg.functionName, err = validate.FunctionName(raw.FunctionName); err != nil {
		return Config{}, err
	}
	if cfg.protocol, err = validate.Protocol(raw.Protocol); err != nil {
		return Config{}, err
	}
	seconds, err := validate.MaxWait(raw.MaxWait)
	if err != nil {
		return Config{}, err
	}
	cfg.maxWait = time.Duration(seconds * float64(time.Second))
	return cfg, nil
}

// stringOrEmpty maps an absent telemetry region onto the default shard.
func stringOrEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

func optionalString(field string, v any) (string, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &validate.Error{Kind: validate.TypeKind, Field: field, Value: v, Msg: "should be a string"}
	}
	return s, nil
}

// URL returns the monitored page.
func (c Config) URL() string { return c.url }

// MetricsToken returns the credential used for metric documents.
func (c Config) MetricsToken() string { return c.metricsToken }

// LogsToken returns the credential used for log documents.
func (c Config) LogsToken() string { return c.logsToken }

// Region returns the deployment region.
func (c Config) Region() string { return c.region }

// TelemetryRegion returns the listener shard code.
func (c Config) TelemetryRegion() string { return c.telemetryRegion }

// CustomListener returns the listener override, if any.
func (c Config) CustomListener() string { return c.customListener }

// System returns the deployment system.
func (c Config) System() string { return c.system }

// FunctionName returns the function or run identifier.
func (c Config) FunctionName() string { return c.functionName }

// Protocol returns the shipping protocol.
func (c Config) Protocol() string { return c.protocol }

// MaxWait returns the ready-state timeout.
func (c Config) MaxWait() time.Duration { return c.maxWait }

// WithURL returns a copy of c monitoring rawURL, validated the same way.
func (c Config) WithURL(rawURL any) (Config, error) {
	u, err := validate.URL(rawURL)
	if err != nil {
		return Config{}, err
	}
	c.url = u
	return c, nil
}
