package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/ajirawise/internal/model"
	"github.com/amishk599/ajirawise/internal/retry"
)

// Ensure WhatsAppSender implements model.Sender.
var _ model.Sender = (*WhatsAppSender)(nil)

// TwilioAPIBaseURL is the Twilio REST endpoint.
const TwilioAPIBaseURL = "https://api.twilio.com"

// whatsappMaxRunes is Twilio's body limit for one WhatsApp message.
const whatsappMaxRunes = 1600

// WhatsAppSender sends messages through the Twilio Messages API.
type WhatsAppSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	logger     *slog.Logger
}

// NewWhatsAppSender returns a sender posting from the given WhatsApp number.
func NewWhatsAppSender(accountSID, authToken, from string, httpClient *http.Client, logger *slog.Logger) *WhatsAppSender {
	return &WhatsAppSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       whatsappAddress(from),
		baseURL:    TwilioAPIBaseURL,
		httpClient: httpClient,
		policy:     retry.Policy{MaxRetries: 1, BaseDelay: time.Second},
		logger:     logger,
	}
}

// Send delivers text to the phone number behind channelID.
func (s *WhatsAppSender) Send(ctx context.Context, channelID, text string) error {
	to := whatsappAddress(channelID)
	for _, part := range splitMessage(text, whatsappMaxRunes) {
		var sid string
		err := retry.Do(ctx, s.policy, s.logger, "whatsapp", func(ctx context.Context) error {
			var err error
			sid, err = s.createMessage(ctx, to, part)
			return err
		})
		if err != nil {
			return fmt.Errorf("whatsapp send to %s: %w", channelID, err)
		}
		s.logger.Debug("whatsapp message sent", "channel", channelID, "sid", sid)
	}
	return nil
}

func (s *WhatsAppSender) createMessage(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("From", s.from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create twilio request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post to twilio: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return "", &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: time.Duration(secs) * time.Second,
			Err:        fmt.Errorf("twilio: %s", strings.TrimSpace(string(raw))),
		}
	}
	var created struct {
		SID string `json:"sid"`
	}
	_ = json.Unmarshal(raw, &created)
	return created.SID, nil
}

func whatsappAddress(number string) string {
	if strings.HasPrefix(number, WhatsAppPrefix) {
		return number
	}
	return WhatsAppPrefix + number
}
