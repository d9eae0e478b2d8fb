package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/ajirawise/internal/model"
)

// Ensure LogSender implements model.Sender.
var _ model.Sender = (*LogSender)(nil)

// LogSender writes outbound messages to the given logger instead of a chat
// channel. Used when no channel credentials are configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a sender that logs each message via slog.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message with its channel. Returns nil (stdout logging does not fail).
func (s *LogSender) Send(_ context.Context, channelID, text string) error {
	s.logger.Info("outbound message", "channel", channelID, "chars", len(text), "text", text)
	return nil
}
