// Package runner fans one invocation out into one monitoring run per URL.
package runner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/synthetic-monitor/internal/monitor"
	"github.com/JakeFAU/synthetic-monitor/internal/validate"
)

const defaultMaxParallel = 4

// Monitor runs a single validated configuration.
type Monitor interface {
	RunConfig(ctx context.Context, cfg monitor.Config) monitor.Report
}

// Limiter paces runs against the same host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithLimiter paces each run through l before its session is acquired.
func WithLimiter(l Limiter) Option {
	return func(r *Runner) { r.limiter = l }
}

// Runner validates a URL list and runs each URL with its own session.
type Runner struct {
	mon         Monitor
	maxParallel int
	limiter     Limiter
	logger      *zap.Logger
}

// New returns a Runner running at most maxParallel URLs at once.
func New(mon Monitor, maxParallel int, logger *zap.Logger, opts ...Option) *Runner {
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{mon: mon, maxParallel: maxParallel, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run validates base with every URL in urls before any session is created,
// then monitors the surviving URLs concurrently. Invalid URLs are dropped
// with a warning; a list with no valid URL fails. Reports are returned in
// URL order.
func (r *Runner) Run(ctx context.Context, base monitor.RawConfig, urls any) ([]monitor.Report, error) {
	valid, rejected, err := validate.URLList(urls)
	for _, rej := range rejected {
		r.logger.Warn("dropping invalid url", zap.Error(rej))
	}
	if err != nil {
		return nil, err
	}

	raw := base
	raw.URL = valid[0]
	cfg, err := monitor.Build(raw)
	if err != nil {
		return nil, err
	}
	configs := make([]monitor.Config, 0, len(valid))
	for _, u := range valid {
		c, err := cfg.WithURL(u)
		if err != nil {
			return nil, fmt.Errorf("rebuild config for %s: %w", u, err)
		}
		configs = append(configs, c)
	}

	reports := make([]monitor.Report, len(configs))
	var g errgroup.Group
	g.SetLimit(r.maxParallel)
	for i, c := range configs {
		i, c := i, c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if r.limiter != nil {
				if err := r.limiter.Wait(ctx, c.URL()); err != nil {
					return err
				}
			}
			reports[i] = r.mon.RunConfig(ctx, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return reports, fmt.Errorf("run monitors: %w", err)
	}
	r.logger.Info("invocation finished", zap.Int("urls", len(configs)))
	return reports, ctx.Err()
}
