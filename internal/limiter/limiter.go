// Package limiter decides whether a security-sensitive attempt may proceed
// based on recent history in the access log. It is read-only: recording
// the attempt afterwards is the caller's job, so that both the attempt
// that triggers a block and the block itself end up in the log.
package limiter

import (
	"context"
	"time"

	"civica.org/internal/accesslog"
)

// Counter is the slice of the access-log store the limiter reads.
type Counter interface {
	CountByIP(ctx context.Context, kinds []accesslog.Kind, since time.Time, ip string) (int, error)
	CountByUsername(ctx context.Context, kinds []accesslog.Kind, since time.Time, username string) (int, error)
}

// Policy is one externally-configured (kinds, window, limit) triple.
type Policy struct {
	Name   string
	Kinds  []accesslog.Kind
	Window time.Duration
	Limit  int
}

// Limiter evaluates policies against the access log.
type Limiter struct {
	counter Counter
	now     func() time.Time
}

// Option configures Limiter behavior.
type Option func(*Limiter)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New constructs a Limiter.
func New(counter Counter, opts ...Option) *Limiter {
	l := &Limiter{counter: counter, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAccess reports whether a new attempt is allowed under the policy.
// The source IP and, when known, the username are counted independently
// within the sliding window; both counts must stay below the limit. An
// empty IP (internal or CLI execution, no resolvable peer) passes the IP
// check; an empty username skips the per-user check.
func (l *Limiter) CheckAccess(ctx context.Context, p Policy, ip, username string) (bool, error) {
	if p.Limit <= 0 {
		return true, nil
	}
	since := l.now().UTC().Add(-p.Window)

	if ip != "" {
		n, err := l.counter.CountByIP(ctx, p.Kinds, since, ip)
		if err != nil {
			return false, err
		}
		if n >= p.Limit {
			return false, nil
		}
	}
	if username != "" {
		n, err := l.counter.CountByUsername(ctx, p.Kinds, since, username)
		if err != nil {
			return false, err
		}
		if n >= p.Limit {
			return false, nil
		}
	}
	return true, nil
}
