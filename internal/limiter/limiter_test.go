package limiter

import (
	"context"
	"testing"
	"time"

	"civica.org/internal/accesslog"
)

// fakeCounter counts in-memory entries the way the store would.
type fakeCounter struct {
	entries []accesslog.Entry
}

func (f *fakeCounter) add(kind accesslog.Kind, at time.Time, ip, username string) {
	f.entries = append(f.entries, accesslog.Entry{Kind: kind, OccurredAt: at, IP: ip, Username: username})
}

func (f *fakeCounter) CountByIP(ctx context.Context, kinds []accesslog.Kind, since time.Time, ip string) (int, error) {
	return f.count(kinds, since, func(e accesslog.Entry) bool { return e.IP == ip }), nil
}

func (f *fakeCounter) CountByUsername(ctx context.Context, kinds []accesslog.Kind, since time.Time, username string) (int, error) {
	return f.count(kinds, since, func(e accesslog.Entry) bool { return e.Username == username }), nil
}

func (f *fakeCounter) count(kinds []accesslog.Kind, since time.Time, match func(accesslog.Entry) bool) int {
	n := 0
	for _, e := range f.entries {
		if e.OccurredAt.Before(since) || !match(e) {
			continue
		}
		for _, k := range kinds {
			if e.Kind == k {
				n++
				break
			}
		}
	}
	return n
}

var loginPolicy = Policy{
	Name:   "login",
	Kinds:  []accesslog.Kind{accesslog.KindLogin},
	Window: 6 * time.Hour,
	Limit:  5,
}

func TestCheckAccessUnderLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	counter := &fakeCounter{}
	for i := 0; i < 4; i++ {
		counter.add(accesslog.KindLogin, now.Add(-time.Minute*time.Duration(i+1)), "10.0.0.1", "alice")
	}
	l := New(counter, WithClock(func() time.Time { return now }))

	allowed, err := l.CheckAccess(context.Background(), loginPolicy, "10.0.0.1", "alice")
	if err != nil {
		t.Fatalf("CheckAccess: %v", err)
	}
	if !allowed {
		t.Fatal("4 of 5 attempts used, access must still be allowed")
	}
}

func TestCheckAccessAtLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	counter := &fakeCounter{}
	for i := 0; i < 5; i++ {
		counter.add(accesslog.KindLogin, now.Add(-time.Minute*time.Duration(i+1)), "10.0.0.1", "alice")
	}
	l := New(counter, WithClock(func() time.Time { return now }))

	allowed, err := l.CheckAccess(context.Background(), loginPolicy, "10.0.0.1", "alice")
	if err != nil {
		t.Fatalf("CheckAccess: %v", err)
	}
	if allowed {
		t.Fatal("limit reached, access must be denied")
	}
}

func TestCheckAccessWindowSlides(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	counter := &fakeCounter{}
	for i := 0; i < 5; i++ {
		counter.add(accesslog.KindLogin, base.Add(-time.Minute*time.Duration(i+1)), "10.0.0.1", "alice")
	}

	now := base
	l := New(counter, WithClock(func() time.Time { return now }))
	if allowed, _ := l.CheckAccess(context.Background(), loginPolicy, "10.0.0.1", "alice"); allowed {
		t.Fatal("expected denial inside the window")
	}

	// Once the old attempts age out of the window, access resumes without
	// any reset step.
	now = base.Add(loginPolicy.Window + time.Minute)
	if allowed, _ := l.CheckAccess(context.Background(), loginPolicy, "10.0.0.1", "alice"); !allowed {
		t.Fatal("attempts outside the window must not count")
	}
}

func TestCheckAccessCountsIPAndUsernameIndependently(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	counter := &fakeCounter{}
	// Five attempts against alice from rotating addresses.
	for i := 0; i < 5; i++ {
		counter.add(accesslog.KindLogin, now.Add(-time.Minute), "10.0.0.100", "alice")
	}
	l := New(counter, WithClock(func() time.Time { return now }))

	// A fresh IP does not help: the username count alone trips the limit.
	if allowed, _ := l.CheckAccess(context.Background(), loginPolicy, "10.0.0.2", "alice"); allowed {
		t.Fatal("username count must deny regardless of source address")
	}
	// The attacker's address is blocked for other usernames too.
	if allowed, _ := l.CheckAccess(context.Background(), loginPolicy, "10.0.0.100", "bob"); allowed {
		t.Fatal("ip count must deny regardless of username")
	}
	// Unrelated client and username pass.
	if allowed, _ := l.CheckAccess(context.Background(), loginPolicy, "10.0.0.2", "bob"); !allowed {
		t.Fatal("unrelated attempt must pass")
	}
}

func TestCheckAccessEmptyIdentifiers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	counter := &fakeCounter{}
	for i := 0; i < 5; i++ {
		counter.add(accesslog.KindLogin, now.Add(-time.Minute), "10.0.0.1", "alice")
	}
	l := New(counter, WithClock(func() time.Time { return now }))

	// Internal execution without a peer address skips the IP check.
	if allowed, _ := l.CheckAccess(context.Background(), loginPolicy, "", "bob"); !allowed {
		t.Fatal("empty ip must pass the ip check")
	}
	// Unknown username skips the per-user check but the IP still counts.
	if allowed, _ := l.CheckAccess(context.Background(), loginPolicy, "10.0.0.1", ""); allowed {
		t.Fatal("ip count must still deny with empty username")
	}
}

func TestCheckAccessDisabledPolicy(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	counter := &fakeCounter{}
	for i := 0; i < 100; i++ {
		counter.add(accesslog.KindLogin, now.Add(-time.Minute), "10.0.0.1", "alice")
	}
	l := New(counter, WithClock(func() time.Time { return now }))

	disabled := loginPolicy
	disabled.Limit = 0
	if allowed, _ := l.CheckAccess(context.Background(), disabled, "10.0.0.1", "alice"); !allowed {
		t.Fatal("a zero limit disables the policy")
	}
}
