package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/ajirawise/internal/model"
	"github.com/amishk599/ajirawise/internal/retry"
)

// Ensure TelegramSender implements model.Sender.
var _ model.Sender = (*TelegramSender)(nil)

// TelegramAPIBaseURL is the Bot API endpoint.
const TelegramAPIBaseURL = "https://api.telegram.org"

// telegramMaxRunes is the Bot API limit for one message.
const telegramMaxRunes = 4096

// TelegramSender sends messages through the Telegram Bot API sendMessage method.
// Channel ids have the form "tg:<chat_id>".
type TelegramSender struct {
	token      string
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	logger     *slog.Logger
}

// NewTelegramSender returns a sender for the bot identified by token.
// A 429 is retried once, honoring Retry-After.
func NewTelegramSender(token string, httpClient *http.Client, logger *slog.Logger) *TelegramSender {
	return &TelegramSender{
		token:      token,
		baseURL:    TelegramAPIBaseURL,
		httpClient: httpClient,
		policy:     retry.Policy{MaxRetries: 1, BaseDelay: time.Second},
		logger:     logger,
	}
}

// Send delivers text to the chat, split into several messages when it
// exceeds the Bot API limit.
func (s *TelegramSender) Send(ctx context.Context, channelID, text string) error {
	chatID, ok := TelegramChatID(channelID)
	if !ok {
		return &model.ValidationError{Field: "channel_id", Message: fmt.Sprintf("%q is not a telegram channel", channelID)}
	}

	for _, part := range splitMessage(text, telegramMaxRunes) {
		err := retry.Do(ctx, s.policy, s.logger, "telegram", func(ctx context.Context) error {
			return s.sendMessage(ctx, chatID, part)
		})
		if err != nil {
			return fmt.Errorf("telegram send to %s: %w", channelID, err)
		}
	}
	s.logger.Debug("telegram message sent", "channel", channelID)
	return nil
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters,omitempty"`
}

func (s *TelegramSender) sendMessage(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(telegramMessage{ChatID: chatID, Text: text, DisableWebPagePreview: true})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// The request URL carries the bot token; keep it out of logs.
		return fmt.Errorf("post to telegram: %s", strings.ReplaceAll(err.Error(), s.token, "<token>"))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var tr telegramResponse
	_ = json.Unmarshal(raw, &tr)

	if resp.StatusCode != http.StatusOK || !tr.OK {
		var retryAfter time.Duration
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		} else if tr.Parameters != nil && tr.Parameters.RetryAfter > 0 {
			retryAfter = time.Duration(tr.Parameters.RetryAfter) * time.Second
		}
		status := resp.StatusCode
		if status == http.StatusOK {
			status = http.StatusBadRequest
		}
		return &model.HTTPError{
			StatusCode: status,
			RetryAfter: retryAfter,
			Err:        fmt.Errorf("telegram: %s", tr.Description),
		}
	}
	return nil
}

// TelegramChatID extracts the chat id from a "tg:<chat_id>" channel id.
func TelegramChatID(channelID string) (string, bool) {
	id, ok := strings.CutPrefix(channelID, TelegramPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// TelegramChannelID builds the channel id for a Telegram chat.
func TelegramChannelID(chatID int64) string {
	return TelegramPrefix + strconv.FormatInt(chatID, 10)
}
