// Package config loads synthetic monitor settings via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/synthetic-monitor/internal/monitor"
	"github.com/JakeFAU/synthetic-monitor/internal/validate"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Monitor MonitorConfig `mapstructure:"monitor"`
	Runner  RunnerConfig  `mapstructure:"runner"`
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Deploy  DeployConfig  `mapstructure:"deploy"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// MonitorConfig holds the raw per-run inputs. Values are shaped here and
// validated by monitor.Build.
type MonitorConfig struct {
	URLs               string        `mapstructure:"urls"`
	MetricsToken       string        `mapstructure:"metrics_token"`
	LogsToken          string        `mapstructure:"logs_token"`
	TelemetryRegion    string        `mapstructure:"telemetry_region"`
	CustomListener     string        `mapstructure:"custom_listener"`
	Region             string        `mapstructure:"region"`
	System             string        `mapstructure:"system"`
	FunctionName       string        `mapstructure:"function_name"`
	Protocol           string        `mapstructure:"protocol"`
	MaxDOMComplete     float64       `mapstructure:"max_dom_complete"`
	ChromePath         string        `mapstructure:"chrome_path"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	NavigationTimeout  time.Duration `mapstructure:"navigation_timeout"`
	DeliveryTimeoutSec int           `mapstructure:"delivery_timeout_seconds"`
}

// RunnerConfig bounds multi-URL fan-out.
type RunnerConfig struct {
	MaxParallel  int     `mapstructure:"max_parallel"`
	PerHostRPS   float64 `mapstructure:"per_host_rps"`
	PerHostBurst int     `mapstructure:"per_host_burst"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port               int `mapstructure:"port"`
	RequestTimeoutSecs int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// DeployConfig drives the per-region stack provisioner.
type DeployConfig struct {
	Regions        string `mapstructure:"regions"`
	ScrapeInterval string `mapstructure:"scrape_interval"`
	TemplateURL    string `mapstructure:"template_url"`
}

// LoggingConfig toggles zap development features and the level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// envBindings maps keys onto the environment names the deployed function
// is configured with.
var envBindings = map[string][]string{
	"monitor.urls":             {"URL"},
	"monitor.metrics_token":    {"LOGZIO_METRICS_TOKEN"},
	"monitor.logs_token":       {"LOGZIO_LOGS_TOKEN"},
	"monitor.telemetry_region": {"LOGZIO_REGION"},
	"monitor.custom_listener":  {"LOGZIO_CUSTOM_LISTENER"},
	"monitor.region":           {"AWS_REGION"},
	"monitor.system":           {"SYSTEM"},
	"monitor.function_name":    {"AWS_LAMBDA_FUNCTION_NAME"},
	"monitor.protocol":         {"PROTOCOL"},
	"monitor.max_dom_complete": {"MAX_DOM_COMPLETE"},
	"monitor.chrome_path":      {"CHROME_PATH"},
	"runner.max_parallel":      {"MAX_PARALLEL"},
	"runner.per_host_rps":      {"PER_HOST_RPS"},
	"server.port":              {"SERVER_PORT"},
	"deploy.regions":           {"REGIONS"},
	"deploy.scrape_interval":   {"SCRAPE_INTERVAL"},
	"deploy.template_url":      {"TEMPLATE_URL_PATTERN"},
	"logging.level":            {"LOG_LEVEL", "LOGZIO_LOG_LEVEL"},
}

// Load builds a Config from disk/environment. Every key can also be set as
// SYNTHETIC_<SECTION>_<KEY>.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SYNTHETIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("monitor.urls", "")
	v.SetDefault("monitor.metrics_token", "")
	v.SetDefault("monitor.logs_token", "")
	v.SetDefault("monitor.telemetry_region", "")
	v.SetDefault("monitor.custom_listener", "")
	v.SetDefault("monitor.region", "")
	v.SetDefault("monitor.system", "aws")
	v.SetDefault("monitor.function_name", "")
	v.SetDefault("monitor.protocol", "https")
	v.SetDefault("monitor.max_dom_complete", 5.0)
	v.SetDefault("monitor.chrome_path", "")
	v.SetDefault("monitor.poll_interval", "100ms")
	v.SetDefault("monitor.navigation_timeout", "30s")
	v.SetDefault("monitor.delivery_timeout_seconds", 10)
	v.SetDefault("runner.max_parallel", 4)
	v.SetDefault("runner.per_host_rps", 0.0)
	v.SetDefault("runner.per_host_burst", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("deploy.regions", "")
	v.SetDefault("deploy.scrape_interval", "rate(5 minutes)")
	v.SetDefault("deploy.template_url", "https://sm-template.s3.amazonaws.com/sm-stack-{region}.yaml")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces structural limits. Monitoring inputs are validated when
// a run is built.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSecs <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Runner.MaxParallel <= 0 {
		return fmt.Errorf("runner.max_parallel must be > 0")
	}
	if c.Runner.PerHostRPS < 0 {
		return fmt.Errorf("runner.per_host_rps must be >= 0")
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be > 0")
	}
	if c.Monitor.NavigationTimeout <= 0 {
		return fmt.Errorf("monitor.navigation_timeout must be > 0")
	}
	if c.Monitor.DeliveryTimeoutSec <= 0 {
		return fmt.Errorf("monitor.delivery_timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if !strings.Contains(c.Deploy.TemplateURL, "{region}") {
		return fmt.Errorf("deploy.template_url must contain {region}")
	}
	return nil
}

// Raw converts the monitor section into unvalidated run input. An empty
// custom listener is treated as absent.
func (c MonitorConfig) Raw() monitor.RawConfig {
	raw := monitor.RawConfig{
		MetricsToken:    c.MetricsToken,
		LogsToken:       c.LogsToken,
		Region:          c.Region,
		TelemetryRegion: c.TelemetryRegion,
		System:          c.System,
		FunctionName:    c.FunctionName,
		Protocol:        c.Protocol,
		MaxWait:         c.MaxDOMComplete,
	}
	if c.CustomListener != "" {
		raw.CustomListener = c.CustomListener
	}
	return raw
}

// URLList splits the comma separated URL setting.
func (c MonitorConfig) URLList() []string {
	return validate.SplitURLs(c.URLs)
}

// DeliveryTimeout returns the per-POST client timeout.
func (c MonitorConfig) DeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeoutSec) * time.Second
}

// RegionList splits the comma separated deploy regions, ignoring blanks.
func (c DeployConfig) RegionList() []string {
	var out []string
	for _, r := range strings.Split(c.Regions, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
