package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amishk599/ajirawise/internal/model"
)

const (
	DarajaSandboxURL    = "https://sandbox.safaricom.co.ke"
	DarajaProductionURL = "https://api.safaricom.co.ke"

	// DefaultTimeout bounds Daraja calls made from the CLI.
	DefaultTimeout = 30 * time.Second
)

// DarajaClient talks to the Safaricom Daraja API for C2B URL registration.
type DarajaClient struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	shortCode      string
	httpClient     *http.Client
}

// NewDarajaClient returns a client for the given environment
// ("production" or anything else for sandbox).
func NewDarajaClient(env, consumerKey, consumerSecret, shortCode string, httpClient *http.Client) *DarajaClient {
	base := DarajaSandboxURL
	if env == "production" {
		base = DarajaProductionURL
	}
	return &DarajaClient{
		baseURL:        base,
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		shortCode:      shortCode,
		httpClient:     httpClient,
	}
}

// RegisterResponse is Daraja's answer to a URL registration.
type RegisterResponse struct {
	OriginatorConversationID string `json:"OriginatorCoversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}

// RegisterURLs registers the C2B validation and confirmation callbacks.
func (c *DarajaClient) RegisterURLs(ctx context.Context, validationURL, confirmationURL string) (RegisterResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return RegisterResponse{}, err
	}

	body, err := json.Marshal(map[string]string{
		"ShortCode":       c.shortCode,
		"ResponseType":    "Completed",
		"ConfirmationURL": confirmationURL,
		"ValidationURL":   validationURL,
	})
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("marshal register request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mpesa/c2b/v1/registerurl", bytes.NewReader(body))
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("create register request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	var out RegisterResponse
	if err := c.do(req, &out); err != nil {
		return RegisterResponse{}, fmt.Errorf("registering C2B URLs: %w", err)
	}
	return out, nil
}

func (c *DarajaClient) accessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("fetching daraja token: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("fetching daraja token: empty access_token")
	}
	return out.AccessToken, nil
}

func (c *DarajaClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &model.HTTPError{StatusCode: resp.StatusCode, Err: fmt.Errorf("daraja: %s", strings.TrimSpace(string(raw)))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
