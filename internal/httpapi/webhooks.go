package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/amishk599/ajirawise/internal/cache"
	"github.com/amishk599/ajirawise/internal/engine"
	"github.com/amishk599/ajirawise/internal/model"
	"github.com/amishk599/ajirawise/internal/notifier"
)

const (
	telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
	emptyTwiML           = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
)

type webhookHandler struct {
	svc    *engine.Service
	dedup  cache.Deduper
	secret string
	logger *slog.Logger
}

// WhatsApp handles a Twilio inbound message. Replies go out through the
// sender, so the TwiML response is always empty.
func (h *webhookHandler) WhatsApp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	from := strings.TrimSpace(r.PostForm.Get("From"))
	if from == "" {
		http.Error(w, "missing From", http.StatusBadRequest)
		return
	}
	channelID := notifier.NormalizePhone(from)
	msgID := r.PostForm.Get("MessageSid")

	if err := h.handle(r.Context(), "wa:"+msgID, msgID != "", channelID, r.PostForm.Get("Body")); err != nil {
		http.Error(w, "invalid message", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// Telegram handles a Bot API webhook update. Updates without a text message
// are acknowledged and ignored.
func (h *webhookHandler) Telegram(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && r.Header.Get(telegramSecretHeader) != h.secret {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var u telegramUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if u.Message == nil || u.Message.Text == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	channelID := notifier.TelegramChannelID(u.Message.Chat.ID)
	if err := h.handle(r.Context(), "tg:"+strconv.FormatInt(u.UpdateID, 10), true, channelID, u.Message.Text); err != nil {
		http.Error(w, "invalid message", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handle drops redelivered messages and runs the rest through the service.
// Only validation errors are returned; other failures are logged so the
// provider does not retry a message that was already answered.
func (h *webhookHandler) handle(ctx context.Context, dedupKey string, hasID bool, channelID, text string) error {
	if h.dedup != nil && hasID {
		first, err := h.dedup.FirstSeen(ctx, dedupKey)
		if err != nil {
			h.logger.Warn("dedup check failed, processing anyway", "key", dedupKey, "error", err)
		} else if !first {
			h.logger.Debug("duplicate inbound message dropped", "key", dedupKey, "channel", channelID)
			return nil
		}
	}

	if err := h.svc.Reply(ctx, channelID, text); err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			return err
		}
		h.logger.Error("reply failed", "channel", channelID, "error", err)
	}
	return nil
}
