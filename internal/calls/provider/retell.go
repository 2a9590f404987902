package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iwanfadzly/call/platform/apperr"
)

const retellBaseURL = "https://api.retellai.com"

// Retell places calls through the Retell AI voice agent API. The configured
// agent drives the conversation; we only hand it the number and lead context.
type Retell struct {
	apiKey     string
	agentID    string
	webhookKey string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

// RetellConfig configures the Retell adapter.
type RetellConfig struct {
	APIKey     string
	AgentID    string
	WebhookKey string
	FromNumber string
	// BaseURL overrides the API endpoint, used in tests.
	BaseURL string
	Timeout time.Duration
}

// NewRetell creates a Retell call provider.
func NewRetell(cfg RetellConfig) *Retell {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = retellBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Retell{
		apiKey:     cfg.APIKey,
		agentID:    cfg.AgentID,
		webhookKey: cfg.WebhookKey,
		fromNumber: cfg.FromNumber,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (r *Retell) Name() string { return "retell" }

type retellCreateCallRequest struct {
	AgentID          string            `json:"agent_id"`
	FromNumber       string            `json:"from_number,omitempty"`
	ToNumber         string            `json:"to_number"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	DynamicVariables map[string]string `json:"retell_llm_dynamic_variables,omitempty"`
}

type retellCreateCallResponse struct {
	CallID string `json:"call_id"`
}

// InitiateCall asks Retell to place an outbound agent call.
func (r *Retell) InitiateCall(ctx context.Context, req InitiateRequest) (CallHandle, error) {
	metadata := map[string]string{"leadId": req.LeadID, "callType": req.CallType}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	body, err := json.Marshal(retellCreateCallRequest{
		AgentID:    r.agentID,
		FromNumber: r.fromNumber,
		ToNumber:   req.ToNumber,
		Metadata:   metadata,
		DynamicVariables: map[string]string{
			"customer_name": req.LeadName,
		},
	})
	if err != nil {
		return CallHandle{}, fmt.Errorf("marshal retell request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/v2/create-phone-call", bytes.NewReader(body))
	if err != nil {
		return CallHandle{}, fmt.Errorf("build retell request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return CallHandle{}, apperr.ProviderWrap("retell call request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return CallHandle{}, apperr.Provider(
			fmt.Sprintf("retell rejected call: status %d: %s", resp.StatusCode, snippet))
	}

	var parsed retellCreateCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return CallHandle{}, apperr.ProviderWrap("decode retell response", err)
	}
	if parsed.CallID == "" {
		return CallHandle{}, apperr.Provider("retell response missing call_id")
	}

	return CallHandle{Provider: r.Name(), ProviderCallID: parsed.CallID}, nil
}

type retellWebhookPayload struct {
	CallID string `json:"callId"`
	Event  string `json:"event"`
	Data   struct {
		Duration     int    `json:"duration"`
		Transcript   string `json:"transcript"`
		RecordingURL string `json:"recordingUrl"`
		Error        string `json:"error"`
	} `json:"data"`
}

// HandleCallback verifies the HMAC signature and normalizes a Retell lifecycle
// event. Retell signs the raw body with SHA-256 and sends the hex digest in
// X-Retell-Signature.
func (r *Retell) HandleCallback(cb Callback) (Event, error) {
	signature := cb.Header.Get("X-Retell-Signature")
	if signature == "" {
		return Event{}, apperr.Unauthorized("missing retell signature")
	}

	mac := hmac.New(sha256.New, []byte(r.webhookKey))
	mac.Write(cb.Body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return Event{}, apperr.Unauthorized("invalid retell signature")
	}

	var payload retellWebhookPayload
	if err := json.Unmarshal(cb.Body, &payload); err != nil {
		return Event{}, apperr.Validation("malformed retell webhook payload")
	}
	if payload.CallID == "" {
		return Event{}, apperr.Validation("retell webhook missing callId")
	}

	var kind EventKind
	switch payload.Event {
	case "call.started":
		kind = EventStarted
	case "call.ended":
		kind = EventEnded
	case "call.failed":
		kind = EventFailed
	default:
		return Event{}, apperr.Validation(fmt.Sprintf("unknown retell event %q", payload.Event))
	}

	return Event{
		ProviderCallID: payload.CallID,
		Kind:           kind,
		Duration:       payload.Data.Duration,
		Transcript:     payload.Data.Transcript,
		RecordingURL:   payload.Data.RecordingURL,
		Error:          payload.Data.Error,
	}, nil
}

var _ CallProvider = (*Retell)(nil)
