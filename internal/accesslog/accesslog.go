// Package accesslog records security-sensitive attempts in an append-only
// log. The request layer appends entries after the limiter's decision; the
// log itself never blocks anything. Retention is handled by the sweep job:
// entries are anonymized after one window and purged after a longer one.
package accesslog

import (
	"context"
	"time"
)

// Kind names a security-sensitive action.
type Kind string

const (
	KindLogin                Kind = "login"
	KindPasswordResetRequest Kind = "password-reset-request"
	KindValidationConfirm    Kind = "validation-confirmation"
)

// Entry is one recorded attempt. Entries are immutable except for the
// retention sweep, which clears IP and username in place.
type Entry struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Kind       Kind      `json:"kind"`
	IP         string    `json:"ip,omitempty"`
	Username   string    `json:"username,omitempty"`
}

// Store describes persistence for the access log.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	CountByIP(ctx context.Context, kinds []Kind, since time.Time, ip string) (int, error)
	CountByUsername(ctx context.Context, kinds []Kind, since time.Time, username string) (int, error)
	// Anonymize clears IP and username from entries older than the cutoff
	// and returns the number of rows touched.
	Anonymize(ctx context.Context, olderThan time.Time) (int64, error)
	// Purge removes entries older than the cutoff.
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// Recorder appends attempts with a consistent clock.
type Recorder struct {
	store Store
	now   func() time.Time
}

// RecorderOption configures Recorder behavior.
type RecorderOption func(*Recorder)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one attempt. Both the attempt that trips a block and the
// block itself are recorded as independent events.
func (r *Recorder) Record(ctx context.Context, kind Kind, ip, username string) error {
	return r.store.Append(ctx, &Entry{
		OccurredAt: r.now().UTC(),
		Kind:       kind,
		IP:         ip,
		Username:   username,
	})
}
