package audit

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"civica.org/internal/obs"
)

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "   ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}

func TestLogEventWithContext(t *testing.T) {
	// First event in this binary, so the shared logger binds to the buffer.
	var buf bytes.Buffer
	obs.InitLogger(obs.LogOptions{Output: &buf})

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithActor(ctx, "user-42")

	if got := fromContext(ctx, requestIDKey); got != "req-123" {
		t.Fatalf("unexpected request id: %q", got)
	}
	if got := fromContext(ctx, actorIDKey); got != "user-42" {
		t.Fatalf("unexpected actor id: %q", got)
	}
	if err := LogEvent(ctx, "membership.role_changed", map[string]string{"project_id": "p1"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`"type":"audit"`,
		`"event":"membership.role_changed"`,
		`"request_id":"req-123"`,
		`"actor_id":"user-42"`,
		`"project_id":"p1"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("audit record missing %s: %s", want, out)
		}
	}
}

func TestContextHelpersIgnoreBlank(t *testing.T) {
	ctx := context.Background()
	if WithRequestID(ctx, "  ") != ctx {
		t.Fatal("blank request id should not modify context")
	}
	if WithActor(ctx, "") != ctx {
		t.Fatal("blank actor id should not modify context")
	}
}
