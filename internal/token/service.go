package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"civica.org/internal/ids"
)

const secretLength = 32

// EffectKind names a side effect a confirmation decided on.
type EffectKind string

const (
	// EffectConfirm carries the token payload to the caller, which applies
	// the workflow's actual state change (activate account, switch email,
	// set password).
	EffectConfirm EffectKind = "confirm"
	// EffectExpiredCleanup asks the caller to run the workflow's expiry
	// cleanup, e.g. discarding a half-finished email change.
	EffectExpiredCleanup EffectKind = "expired-cleanup"
)

// Effect is a side effect the service intends but does not execute.
// Callers must run returned effects even when Confirm reports not-found:
// the expired path returns both the error and its cleanup effect.
type Effect struct {
	Kind       EffectKind
	IdentityID string
	TokenKind  Kind
	Payload    string
}

// Service issues and confirms validation tokens.
type Service struct {
	store Store
	now   func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a token and returns the opaque value to hand to the user.
// The secret never touches storage, only its hash does.
func (s *Service) Issue(ctx context.Context, identityID string, kind Kind, payload string, ttl time.Duration) (string, *Token, error) {
	secretBytes := make([]byte, secretLength)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	sum := sha256.Sum256([]byte(secret))

	now := s.now().UTC()
	t := &Token{
		ID:         ids.New(),
		IdentityID: identityID,
		Kind:       kind,
		SecretHash: hex.EncodeToString(sum[:]),
		Payload:    payload,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return "", nil, err
	}
	return t.ID + "." + secret, t, nil
}

// Confirm consumes a token. Outcomes:
//   - malformed value, unknown id, wrong secret: ErrNotFound, token kept
//     for the id-exists cases so probing reveals nothing
//   - expired: token deleted, ErrNotFound returned together with an
//     EffectExpiredCleanup effect the caller must execute
//   - valid: token deleted, an EffectConfirm effect carries the payload
//
// A token id therefore survives at most one confirm attempt with the
// correct secret, whatever the outcome.
func (s *Service) Confirm(ctx context.Context, value string) ([]Effect, error) {
	id, secret, ok := splitValue(value)
	if !ok {
		return nil, ErrNotFound
	}
	t, err := s.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sum := sha256.Sum256([]byte(secret))
	if subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(t.SecretHash)) != 1 {
		return nil, ErrNotFound
	}
	if s.now().After(t.ExpiresAt) {
		if err := s.store.Delete(ctx, t.ID); err != nil {
			return nil, err
		}
		return []Effect{{
			Kind:       EffectExpiredCleanup,
			IdentityID: t.IdentityID,
			TokenKind:  t.Kind,
			Payload:    t.Payload,
		}}, ErrNotFound
	}
	if err := s.store.Delete(ctx, t.ID); err != nil {
		return nil, err
	}
	return []Effect{{
		Kind:       EffectConfirm,
		IdentityID: t.IdentityID,
		TokenKind:  t.Kind,
		Payload:    t.Payload,
	}}, nil
}

// PurgeExpired garbage-collects tokens that were never confirmed.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now().UTC())
}

func splitValue(raw string) (id, secret string, ok bool) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
