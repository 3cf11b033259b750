// Package token implements single-use, time-bounded validation tokens
// gating account activation, email change and password reset.
package token

import (
	"context"
	"errors"
	"time"
)

// Kind names a validation workflow.
type Kind string

const (
	KindAccountActivation Kind = "account-activation"
	KindEmailChange       Kind = "email-change"
	KindPasswordReset     Kind = "password-reset"
)

// ErrNotFound covers every failed confirmation: unknown token, wrong
// secret and expired token are deliberately indistinguishable to the
// caller so existence is never leaked.
var ErrNotFound = errors.New("token: not found")

// Token is the persisted half of a validation token. Only the SHA-256 of
// the secret is stored; the full value handed to the user is "<id>.<secret>".
type Token struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	Kind       Kind      `json:"kind"`
	SecretHash string    `json:"-"`
	Payload    string    `json:"payload,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store describes persistence for validation tokens.
type Store interface {
	Create(ctx context.Context, t *Token) error
	Find(ctx context.Context, id string) (*Token, error)
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes all tokens past their expiry and returns the
	// number of rows removed. It backs the periodic sweep.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
