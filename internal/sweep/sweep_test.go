package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"civica.org/internal/accesslog"
	"civica.org/internal/token"
)

type memLog struct {
	entries []accesslog.Entry
}

func (m *memLog) Append(ctx context.Context, e *accesslog.Entry) error {
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memLog) CountByIP(ctx context.Context, kinds []accesslog.Kind, since time.Time, ip string) (int, error) {
	return 0, nil
}

func (m *memLog) CountByUsername(ctx context.Context, kinds []accesslog.Kind, since time.Time, username string) (int, error) {
	return 0, nil
}

func (m *memLog) Anonymize(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	for i := range m.entries {
		e := &m.entries[i]
		if e.OccurredAt.Before(olderThan) && (e.IP != "" || e.Username != "") {
			e.IP = ""
			e.Username = ""
			n++
		}
	}
	return n, nil
}

func (m *memLog) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	var kept []accesslog.Entry
	var n int64
	for _, e := range m.entries {
		if e.OccurredAt.Before(olderThan) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return n, nil
}

type memTokens struct {
	tokens map[string]*token.Token
}

func (m *memTokens) Create(ctx context.Context, t *token.Token) error {
	m.tokens[t.ID] = t
	return nil
}

func (m *memTokens) Find(ctx context.Context, id string) (*token.Token, error) {
	t, ok := m.tokens[id]
	if !ok {
		return nil, token.ErrNotFound
	}
	return t, nil
}

func (m *memTokens) Delete(ctx context.Context, id string) error {
	delete(m.tokens, id)
	return nil
}

func (m *memTokens) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	for id, t := range m.tokens {
		if t.ExpiresAt.Before(before) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

func TestRunOnceAppliesRetentionWindows(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	log := &memLog{entries: []accesslog.Entry{
		// Older than the purge window: removed outright.
		{ID: "a", Kind: accesslog.KindLogin, OccurredAt: now.Add(-100 * 24 * time.Hour), IP: "10.0.0.1", Username: "old"},
		// Older than the anonymize window only: identifiers cleared.
		{ID: "b", Kind: accesslog.KindLogin, OccurredAt: now.Add(-40 * 24 * time.Hour), IP: "10.0.0.2", Username: "mid"},
		// Fresh: untouched.
		{ID: "c", Kind: accesslog.KindLogin, OccurredAt: now.Add(-time.Hour), IP: "10.0.0.3", Username: "new"},
	}}

	tokens := &memTokens{tokens: map[string]*token.Token{
		"expired": {ID: "expired", ExpiresAt: now.Add(-time.Hour)},
		"live":    {ID: "live", ExpiresAt: now.Add(time.Hour)},
	}}

	runner, err := NewRunner(Config{
		AnonymizeAfter: 30 * 24 * time.Hour,
		PurgeAfter:     90 * 24 * time.Hour,
		RetentionSpec:  "13 3 * * *",
		TokenSpec:      "*/30 * * * *",
	}, log, token.NewService(tokens, token.WithClock(func() time.Time { return now })), zerolog.Nop(),
		WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	runner.RunOnce(context.Background())

	if len(log.entries) != 2 {
		t.Fatalf("expected 2 surviving entries, got %d", len(log.entries))
	}
	for _, e := range log.entries {
		switch e.ID {
		case "b":
			if e.IP != "" || e.Username != "" {
				t.Fatalf("entry b must be anonymized: %+v", e)
			}
		case "c":
			if e.IP == "" || e.Username == "" {
				t.Fatalf("entry c must be untouched: %+v", e)
			}
		default:
			t.Fatalf("unexpected survivor %q", e.ID)
		}
	}

	if _, ok := tokens.tokens["expired"]; ok {
		t.Fatal("expired token must be purged")
	}
	if _, ok := tokens.tokens["live"]; !ok {
		t.Fatal("live token must survive")
	}
}

func TestNewRunnerRejectsBadSpec(t *testing.T) {
	if _, err := NewRunner(Config{RetentionSpec: "not a cron spec", TokenSpec: "* * * * *"},
		&memLog{}, token.NewService(&memTokens{tokens: map[string]*token.Token{}}), zerolog.Nop()); err == nil {
		t.Fatal("invalid cron spec must be rejected")
	}
}
