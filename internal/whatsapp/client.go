// Package whatsapp sends outbound messages through the wasapbot gateway and
// turns inbound customer replies into order actions.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iwanfadzly/call/platform/apperr"
)

// Gateway is the outbound message port, satisfied by the wasapbot client and
// by fakes in tests.
type Gateway interface {
	Send(ctx context.Context, phone, message string) error
}

// Client talks to a wasapbot-compatible WhatsApp gateway.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a wasapbot gateway client.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Send delivers one message. The gateway wants bare digits, no plus sign.
func (c *Client) Send(ctx context.Context, phone, message string) error {
	body, err := json.Marshal(sendRequest{Phone: phone, Message: message})
	if err != nil {
		return fmt.Errorf("marshal whatsapp send: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build whatsapp send: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.ProviderWrap("whatsapp gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Provider(
			fmt.Sprintf("whatsapp gateway rejected message: status %d: %s", resp.StatusCode, snippet))
	}

	var parsed sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err == nil && !parsed.Success && parsed.Message != "" {
		return apperr.Provider("whatsapp gateway reported failure: " + parsed.Message)
	}
	return nil
}

var _ Gateway = (*Client)(nil)
