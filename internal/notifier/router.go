package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/amishk599/ajirawise/internal/model"
)

// Ensure Router implements model.Sender.
var _ model.Sender = (*Router)(nil)

const (
	// TelegramPrefix marks Telegram channel ids ("tg:<chat_id>").
	TelegramPrefix = "tg:"
	// WhatsAppPrefix is the address prefix Twilio uses for WhatsApp numbers.
	WhatsAppPrefix = "whatsapp:"
	// ConsolePrefix marks local console sessions.
	ConsolePrefix = "console:"
)

// Router dispatches each message to the sender owning the channel id:
// "tg:" ids go to Telegram, everything else to WhatsApp. A nil sender
// falls back to the default.
type Router struct {
	telegram model.Sender
	whatsapp model.Sender
	fallback model.Sender
}

// NewRouter returns a router. fallback receives messages for channels whose
// sender is nil, and console sessions.
func NewRouter(telegram, whatsapp, fallback model.Sender) *Router {
	return &Router{telegram: telegram, whatsapp: whatsapp, fallback: fallback}
}

func (r *Router) Send(ctx context.Context, channelID, text string) error {
	target := r.route(channelID)
	if target == nil {
		return fmt.Errorf("no sender configured for channel %s", channelID)
	}
	return target.Send(ctx, channelID, text)
}

func (r *Router) route(channelID string) model.Sender {
	var s model.Sender
	switch {
	case strings.HasPrefix(channelID, ConsolePrefix):
	case strings.HasPrefix(channelID, TelegramPrefix):
		s = r.telegram
	default:
		s = r.whatsapp
	}
	if s == nil {
		return r.fallback
	}
	return s
}

// NormalizePhone maps the WhatsApp and M-Pesa number forms ("whatsapp:+2547…",
// "2547…", "07…", 9 digits) to the E.164 channel id "+2547…". Other input is
// returned with the prefix and separators removed.
func NormalizePhone(phone string) string {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), WhatsAppPrefix)
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, "254"):
		return "+" + digits
	case strings.HasPrefix(digits, "0"):
		return "+254" + digits[1:]
	case len(digits) == 9:
		return "+254" + digits
	case strings.HasPrefix(phone, "+"):
		return "+" + digits
	default:
		return digits
	}
}

// SendTestMessage sends a sample message to verify the channel integration works.
func SendTestMessage(ctx context.Context, s model.Sender, channelID string) error {
	text := "✅ AjiraWise test message\n\nYour channel is connected. Reply \"hi\" to see the menu."
	return s.Send(ctx, channelID, text)
}
