package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/synthetic-monitor/internal/browser"
	"github.com/JakeFAU/synthetic-monitor/internal/config"
	"github.com/JakeFAU/synthetic-monitor/internal/logging"
	"github.com/JakeFAU/synthetic-monitor/internal/monitor"
	"github.com/JakeFAU/synthetic-monitor/internal/policy/ratelimit"
	"github.com/JakeFAU/synthetic-monitor/internal/runner"
)

// appKeyType is the key for storing the app in the command context.
type appKeyType string

const appKey appKeyType = "app"

// app bundles what every subcommand needs.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

// newApp is the application factory. Tests replace it.
var newApp = func(cfgFile string) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func appFrom(cmd *cobra.Command) (*app, error) {
	a, ok := cmd.Context().Value(appKey).(*app)
	if !ok || a == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return a, nil
}

// runner builds the browser-backed monitor and its fan-out runner.
func (a *app) runner() *runner.Runner {
	mc := a.cfg.Monitor
	mon := monitor.New(
		browser.NewChromeManager(a.logger.Named("browser")),
		a.logger.Named("monitor"),
		monitor.WithHTTPClient(&http.Client{Timeout: mc.DeliveryTimeout()}),
		monitor.WithPollInterval(mc.PollInterval),
		monitor.WithNavigationTimeout(mc.NavigationTimeout),
		monitor.WithExecPath(mc.ChromePath),
	)
	limiter := ratelimit.New(ratelimit.Config{
		PerHostRPS:   a.cfg.Runner.PerHostRPS,
		PerHostBurst: a.cfg.Runner.PerHostBurst,
	})
	return runner.New(mon, a.cfg.Runner.MaxParallel, a.logger.Named("runner"), runner.WithLimiter(limiter))
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "synthetic-monitor",
		Short: "Headless-browser synthetic monitoring for web pages.",
		Long: `synthetic-monitor loads pages in a headless browser, extracts timing
metrics and ships them as log and metric documents to a telemetry listener.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cfgFile)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app); ok && a != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLambdaCmd())
	cmd.AddCommand(newDeployCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "command failed: %v\n", err)
		os.Exit(1)
	}
}
