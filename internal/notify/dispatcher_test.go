package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type chanSender struct {
	ch chan Message
}

func newChanSender() *chanSender {
	return &chanSender{ch: make(chan Message, 64)}
}

func (s *chanSender) Send(_ context.Context, msg Message) error {
	s.ch <- msg
	return nil
}

func (s *chanSender) next(t *testing.T) Message {
	t.Helper()
	select {
	case msg := <-s.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery within deadline")
		return Message{}
	}
}

func (s *chanSender) expectNone(t *testing.T) {
	t.Helper()
	select {
	case msg := <-s.ch:
		t.Fatalf("unexpected delivery: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

type scriptedSuppressor struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (s *scriptedSuppressor) ShouldSend(_ context.Context, msg Message) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(msg.Template) + "|" + msg.Recipient
	if s.seen[key] {
		return false, nil
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	s.seen[key] = true
	return true, nil
}

func TestEnqueueKeepsOrderPerRecipient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := newChanSender()
	d := NewDispatcher(4, sender, nil, zerolog.Nop())
	d.Start(ctx)

	const n = 8
	for i := 0; i < n; i++ {
		d.Enqueue(Message{
			Template:  TemplateRoleChanged,
			Recipient: "alice@example.org",
			Payload:   map[string]string{"seq": fmt.Sprintf("%d", i)},
		})
	}

	// One recipient hashes to one worker, so delivery order matches
	// enqueue order.
	for i := 0; i < n; i++ {
		msg := sender.next(t)
		if got := msg.Payload["seq"]; got != fmt.Sprintf("%d", i) {
			t.Fatalf("delivery %d out of order: seq=%s", i, got)
		}
	}
}

func TestSuppressorCollapsesDuplicates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := newChanSender()
	sup := &scriptedSuppressor{seen: make(map[string]bool)}
	d := NewDispatcher(1, sender, sup, zerolog.Nop())
	d.Start(ctx)

	d.Enqueue(Message{Template: TemplatePasswordReset, Recipient: "alice@example.org"})
	d.Enqueue(Message{Template: TemplatePasswordReset, Recipient: "alice@example.org"})
	d.Enqueue(Message{Template: TemplatePasswordReset, Recipient: "bob@example.org"})

	first := sender.next(t)
	if first.Recipient != "alice@example.org" {
		t.Fatalf("first delivery = %q", first.Recipient)
	}
	second := sender.next(t)
	if second.Recipient != "bob@example.org" {
		t.Fatalf("duplicate must be suppressed, got %q", second.Recipient)
	}
	sender.expectNone(t)
}

func TestSuppressorFailureStillDelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := newChanSender()
	sup := &scriptedSuppressor{err: errors.New("redis down")}
	d := NewDispatcher(2, sender, sup, zerolog.Nop())
	d.Start(ctx)

	d.Enqueue(Message{Template: TemplateAccountActivation, Recipient: "alice@example.org"})

	msg := sender.next(t)
	if msg.Template != TemplateAccountActivation {
		t.Fatalf("delivered template = %q", msg.Template)
	}
}
