package notify

import (
	"context"
	"hash/fnv"

	"github.com/rs/zerolog"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher routes messages to a fixed set of workers using consistent
// hashing on the recipient, so notifications for one recipient keep their
// order. Enqueueing never blocks the request path beyond the channel
// buffer.
type Dispatcher struct {
	workers  []chan Message
	sender   Sender
	suppress Suppressor
	log      zerolog.Logger
}

// Suppressor short-circuits duplicate sends of the same template to the
// same recipient inside a suppression window.
type Suppressor interface {
	// ShouldSend reports whether the message may go out and records it as
	// sent when it may.
	ShouldSend(ctx context.Context, msg Message) (bool, error)
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// A nil suppressor disables duplicate suppression.
func NewDispatcher(numWorkers int, sender Sender, suppress Suppressor, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:  make([]chan Message, numWorkers),
		sender:   sender,
		suppress: suppress,
		log:      log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan Message, channelBuffer)
	}
	return d
}

// Start launches the worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands a message to the worker responsible for its recipient.
func (d *Dispatcher) Enqueue(msg Message) {
	d.workers[d.shardIndex(msg.Recipient)] <- msg
}

func (d *Dispatcher) shardIndex(recipient string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(recipient))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if d.suppress != nil {
				send, err := d.suppress.ShouldSend(ctx, msg)
				if err != nil {
					// Suppression is best-effort; deliver anyway.
					d.log.Warn().Err(err).Str("template", string(msg.Template)).Msg("suppression check failed")
				} else if !send {
					continue
				}
			}
			if err := d.sender.Send(ctx, msg); err != nil {
				d.log.Error().Err(err).
					Str("template", string(msg.Template)).
					Str("recipient", msg.Recipient).
					Int("worker_id", id).
					Msg("notification delivery failed")
			}
		}
	}
}
