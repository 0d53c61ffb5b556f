package push

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogSender logs messages instead of submitting them. Used for local runs
// where no push backend credentials are configured.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "log_sender").Logger()}
}

// Name returns the backend name.
func (s *LogSender) Name() string {
	return "log"
}

// Send logs the message and returns a synthetic message id.
func (s *LogSender) Send(_ context.Context, msg Message) (string, error) {
	id := "dry-run/" + uuid.New().String()
	s.logger.Info().
		Str("message_id", id).
		Str("topic", msg.Topic).
		Str("title", msg.Notification.Title).
		Str("body", msg.Notification.Body).
		Interface("data", msg.Data).
		Msg("push message (dry run)")
	return id, nil
}
