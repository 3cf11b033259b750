// Package audit emits structured audit events for sensitive operations:
// role changes, account mutations, token confirmations, access blocks.
// Events go to the shared log stream, enriched from the request context.
package audit

import (
	"context"
	"errors"
	"strings"

	"civica.org/internal/obs"
)

type ctxKey string

const (
	requestIDKey ctxKey = "audit_request_id"
	actorIDKey   ctxKey = "audit_actor_id"
)

// WithRequestID attaches the request identifier to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithActor attaches the acting identity's id to the context.
func WithActor(ctx context.Context, identityID string) context.Context {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorIDKey, identityID)
}

func fromContext(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes one audit event enriched with request and actor context.
func LogEvent(ctx context.Context, event string, fields map[string]string) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	e := obs.Logger().Info().
		Str("type", "audit").
		Str("event", event)
	if rid := fromContext(ctx, requestIDKey); rid != "" {
		e = e.Str("request_id", rid)
	}
	if actor := fromContext(ctx, actorIDKey); actor != "" {
		e = e.Str("actor_id", actor)
	}
	for k, v := range fields {
		e = e.Str(k, v)
	}
	e.Msg("audit")
	return nil
}
