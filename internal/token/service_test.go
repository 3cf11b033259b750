package token

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type memStore struct {
	tokens map[string]*Token
}

func newMemStore() *memStore {
	return &memStore{tokens: make(map[string]*Token)}
}

func (s *memStore) Create(ctx context.Context, t *Token) error {
	cp := *t
	s.tokens[t.ID] = &cp
	return nil
}

func (s *memStore) Find(ctx context.Context, id string) (*Token, error) {
	t, ok := s.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	if _, ok := s.tokens[id]; !ok {
		return ErrNotFound
	}
	delete(s.tokens, id)
	return nil
}

func (s *memStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	for id, t := range s.tokens {
		if t.ExpiresAt.Before(before) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

func TestIssueAndConfirm(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store)

	value, issued, err := svc.Issue(ctx, "alice", KindAccountActivation, "", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !strings.HasPrefix(value, issued.ID+".") {
		t.Fatalf("value must embed the token id: %q", value)
	}
	if strings.Contains(issued.SecretHash, strings.TrimPrefix(value, issued.ID+".")) {
		t.Fatal("stored hash must not contain the secret")
	}

	effects, err := svc.Confirm(ctx, value)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if len(effects) != 1 || effects[0].Kind != EffectConfirm {
		t.Fatalf("expected confirm effect, got %+v", effects)
	}
	if effects[0].IdentityID != "alice" || effects[0].TokenKind != KindAccountActivation {
		t.Fatalf("effect lost token details: %+v", effects[0])
	}
	if len(store.tokens) != 0 {
		t.Fatal("confirmed token must be deleted")
	}
}

func TestConfirmIsSingleUse(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store)

	value, _, err := svc.Issue(ctx, "alice", KindEmailChange, "alice@new.example", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Confirm(ctx, value); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if _, err := svc.Confirm(ctx, value); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second confirm must fail with ErrNotFound, got %v", err)
	}
}

func TestConfirmWrongSecretKeepsToken(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store)

	value, issued, err := svc.Issue(ctx, "alice", KindPasswordReset, "", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	effects, err := svc.Confirm(ctx, issued.ID+".wrong-secret")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(effects) != 0 {
		t.Fatalf("wrong secret must not produce effects: %+v", effects)
	}
	if _, ok := store.tokens[issued.ID]; !ok {
		t.Fatal("token must survive a wrong-secret attempt")
	}

	// The real value still works afterwards.
	if _, err := svc.Confirm(ctx, value); err != nil {
		t.Fatalf("confirm after failed probe: %v", err)
	}
}

func TestConfirmExpired(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(store, WithClock(func() time.Time { return now }))

	value, issued, err := svc.Issue(ctx, "alice", KindEmailChange, "alice@new.example", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = now.Add(2 * time.Hour)
	effects, err := svc.Confirm(ctx, value)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired confirm must report ErrNotFound, got %v", err)
	}
	if len(effects) != 1 || effects[0].Kind != EffectExpiredCleanup {
		t.Fatalf("expired confirm must return the cleanup effect, got %+v", effects)
	}
	if effects[0].Payload != "alice@new.example" {
		t.Fatalf("cleanup effect lost the payload: %+v", effects[0])
	}
	if _, ok := store.tokens[issued.ID]; ok {
		t.Fatal("expired token must be deleted on the failed confirm")
	}
}

func TestConfirmMalformedValue(t *testing.T) {
	svc := NewService(newMemStore())
	for _, raw := range []string{"", "noseparator", ".leading", "trailing.", "a.b.c"} {
		if _, err := svc.Confirm(context.Background(), raw); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Confirm(%q) = %v, want ErrNotFound", raw, err)
		}
	}
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(store, WithClock(func() time.Time { return now }))

	if _, _, err := svc.Issue(ctx, "alice", KindAccountActivation, "", time.Minute); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, _, err := svc.Issue(ctx, "bob", KindAccountActivation, "", time.Hour); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = now.Add(30 * time.Minute)
	n, err := svc.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged token, got %d", n)
	}
	if len(store.tokens) != 1 {
		t.Fatalf("expected 1 surviving token, got %d", len(store.tokens))
	}
}
