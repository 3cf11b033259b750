// Package sweep runs the scheduled retention jobs: access log entries are
// anonymized after the anonymize window, purged after the purge window, and
// expired validation tokens are deleted.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"civica.org/internal/accesslog"
	"civica.org/internal/obs"
	"civica.org/internal/token"
)

// Config carries the retention windows and cron schedules.
type Config struct {
	AnonymizeAfter time.Duration
	PurgeAfter     time.Duration
	RetentionSpec  string
	TokenSpec      string
}

// Runner owns the cron scheduler and the sweep jobs.
type Runner struct {
	cfg    Config
	log    accesslog.Store
	tokens *token.Service
	logger zerolog.Logger
	cron   *cron.Cron
	now    func() time.Time
}

// Option configures Runner.
type Option func(*Runner)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner constructs a Runner. Jobs are registered but not started.
func NewRunner(cfg Config, log accesslog.Store, tokens *token.Service, logger zerolog.Logger, opts ...Option) (*Runner, error) {
	r := &Runner{
		cfg:    cfg,
		log:    log,
		tokens: tokens,
		logger: logger.With().Str("component", "sweep").Logger(),
		cron:   cron.New(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if _, err := r.cron.AddFunc(cfg.RetentionSpec, func() { r.runRetention(context.Background()) }); err != nil {
		return nil, fmt.Errorf("sweep: retention schedule %q: %w", cfg.RetentionSpec, err)
	}
	if _, err := r.cron.AddFunc(cfg.TokenSpec, func() { r.runTokens(context.Background()) }); err != nil {
		return nil, fmt.Errorf("sweep: token schedule %q: %w", cfg.TokenSpec, err)
	}
	return r, nil
}

// Start launches the scheduler in its own goroutine.
func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info().
		Str("retention_spec", r.cfg.RetentionSpec).
		Str("token_spec", r.cfg.TokenSpec).
		Msg("sweep scheduler started")
}

// Stop halts the scheduler and waits for running jobs.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info().Msg("sweep scheduler stopped")
}

// RunOnce executes every job a single time, used by cmd/sweep -once.
func (r *Runner) RunOnce(ctx context.Context) {
	r.runRetention(ctx)
	r.runTokens(ctx)
}

func (r *Runner) runRetention(ctx context.Context) {
	now := r.now().UTC()

	anonymized, err := r.log.Anonymize(ctx, now.Add(-r.cfg.AnonymizeAfter))
	if err != nil {
		r.logger.Error().Err(err).Msg("access log anonymize failed")
	} else {
		obs.SweepRows("accesslog_anonymize", anonymized)
		if anonymized > 0 {
			r.logger.Info().Int64("rows", anonymized).Msg("access log entries anonymized")
		}
	}

	purged, err := r.log.Purge(ctx, now.Add(-r.cfg.PurgeAfter))
	if err != nil {
		r.logger.Error().Err(err).Msg("access log purge failed")
		return
	}
	obs.SweepRows("accesslog_purge", purged)
	if purged > 0 {
		r.logger.Info().Int64("rows", purged).Msg("access log entries purged")
	}
}

func (r *Runner) runTokens(ctx context.Context) {
	deleted, err := r.tokens.PurgeExpired(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("token purge failed")
		return
	}
	obs.SweepRows("token_purge", deleted)
	if deleted > 0 {
		r.logger.Info().Int64("rows", deleted).Msg("expired validation tokens purged")
	}
}
