package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender writes notifications to the log instead of delivering them.
// Used in development and as the default when no relay is configured.
type LogSender struct {
	Log zerolog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	e := s.Log.Info().
		Str("template", string(msg.Template)).
		Str("recipient", msg.Recipient)
	for k, v := range msg.Payload {
		e = e.Str(k, v)
	}
	e.Msg("notification")
	return nil
}
