package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iwanfadzly/call/platform/apperr"
)

const twilioBaseURL = "https://api.twilio.com"

// Twilio places plain voice calls through the Twilio REST API. Status
// callbacks arrive form-encoded and are signed with the account auth token.
type Twilio struct {
	accountSID  string
	authToken   string
	fromNumber  string
	callbackURL string
	twimlURL    string
	baseURL     string
	httpClient  *http.Client
}

// TwilioConfig configures the Twilio adapter. CallbackURL is the public
// status-callback endpoint Twilio posts lifecycle events to; TwimlURL serves
// the call instructions.
type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	FromNumber  string
	CallbackURL string
	TwimlURL    string
	// BaseURL overrides the API endpoint, used in tests.
	BaseURL string
	Timeout time.Duration
}

// NewTwilio creates a Twilio call provider.
func NewTwilio(cfg TwilioConfig) *Twilio {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = twilioBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Twilio{
		accountSID:  cfg.AccountSID,
		authToken:   cfg.AuthToken,
		fromNumber:  cfg.FromNumber,
		callbackURL: cfg.CallbackURL,
		twimlURL:    cfg.TwimlURL,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (t *Twilio) Name() string { return "twilio" }

type twilioCreateCallResponse struct {
	Sid string `json:"sid"`
}

// InitiateCall creates an outbound call via the Twilio Calls resource.
func (t *Twilio) InitiateCall(ctx context.Context, req InitiateRequest) (CallHandle, error) {
	form := url.Values{}
	form.Set("To", req.ToNumber)
	form.Set("From", t.fromNumber)
	form.Set("Url", t.twimlURL)
	if t.callbackURL != "" {
		form.Set("StatusCallback", t.callbackURL)
		form.Set("StatusCallbackEvent", "initiated ringing answered completed")
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", t.baseURL, t.accountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return CallHandle{}, fmt.Errorf("build twilio request: %w", err)
	}
	httpReq.SetBasicAuth(t.accountSID, t.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return CallHandle{}, apperr.ProviderWrap("twilio call request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return CallHandle{}, apperr.Provider(
			fmt.Sprintf("twilio rejected call: status %d: %s", resp.StatusCode, snippet))
	}

	var parsed twilioCreateCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return CallHandle{}, apperr.ProviderWrap("decode twilio response", err)
	}
	if parsed.Sid == "" {
		return CallHandle{}, apperr.Provider("twilio response missing sid")
	}

	return CallHandle{Provider: t.Name(), ProviderCallID: parsed.Sid}, nil
}

// HandleCallback verifies the X-Twilio-Signature and normalizes a status
// callback. Twilio signs the full URL plus the form parameters sorted by key,
// HMAC-SHA1, base64.
func (t *Twilio) HandleCallback(cb Callback) (Event, error) {
	form, err := url.ParseQuery(string(cb.Body))
	if err != nil {
		return Event{}, apperr.Validation("malformed twilio callback body")
	}

	signature := cb.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return Event{}, apperr.Unauthorized("missing twilio signature")
	}
	if !t.verifySignature(cb.URL, form, signature) {
		return Event{}, apperr.Unauthorized("invalid twilio signature")
	}

	callSid := form.Get("CallSid")
	if callSid == "" {
		return Event{}, apperr.Validation("twilio callback missing CallSid")
	}

	status := form.Get("CallStatus")
	ev := Event{ProviderCallID: callSid, RecordingURL: form.Get("RecordingUrl")}
	if raw := form.Get("CallDuration"); raw != "" {
		ev.Duration, _ = strconv.Atoi(raw)
	}

	switch status {
	case "in-progress":
		ev.Kind = EventStarted
	case "completed":
		ev.Kind = EventEnded
	case "failed", "busy", "no-answer", "canceled":
		ev.Kind = EventFailed
		ev.Error = status
	case "queued", "initiated", "ringing":
		ev.Kind = EventIgnored
	default:
		return Event{}, apperr.Validation(fmt.Sprintf("unknown twilio call status %q", status))
	}

	return ev, nil
}

func (t *Twilio) verifySignature(requestURL string, form url.Values, signature string) bool {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(requestURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(t.authToken))
	mac.Write([]byte(b.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

var _ CallProvider = (*Twilio)(nil)
