package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iwanfadzly/call/platform/apperr"
)

const stripeBaseURL = "https://api.stripe.com"

// Stripe collects payments through Checkout Sessions. The session id is the
// transaction id echoed back by the checkout.session.completed webhook.
type Stripe struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
}

// StripeConfig configures the Stripe adapter.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// BaseURL overrides the API endpoint, used in tests.
	BaseURL string
	Timeout time.Duration
}

// NewStripe creates a Stripe payment provider.
func NewStripe(cfg StripeConfig) *Stripe {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Stripe{
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

func (s *Stripe) Name() string { return "stripe" }

type stripeSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
}

// CreatePaymentLink creates a Checkout Session and returns its hosted URL.
func (s *Stripe) CreatePaymentLink(ctx context.Context, req LinkRequest) (Link, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", req.OrderID)
	form.Set("success_url", req.RedirectURL)
	form.Set("cancel_url", req.RedirectURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.Description)
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}

	session, err := s.postForm(ctx, "/v1/checkout/sessions", form)
	if err != nil {
		return Link{}, err
	}
	if session.ID == "" || session.URL == "" {
		return Link{}, apperr.Provider("stripe session response missing id or url")
	}

	return Link{URL: session.URL, ProviderTxnID: session.ID}, nil
}

type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object stripeSession `json:"object"`
	} `json:"data"`
}

// ParseWebhook verifies the Stripe-Signature header and normalizes a checkout
// event. Stripe signs "<timestamp>.<body>" with SHA-256 and sends the hex
// digest as the v1 element.
func (s *Stripe) ParseWebhook(cb Callback) (Notification, error) {
	header := cb.Header.Get("Stripe-Signature")
	if header == "" {
		return Notification{}, apperr.Unauthorized("missing stripe signature")
	}

	timestamp, signatures := parseStripeSignature(header)
	if timestamp == "" || len(signatures) == 0 {
		return Notification{}, apperr.Unauthorized("malformed stripe signature header")
	}

	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(cb.Body)
	expected := hex.EncodeToString(mac.Sum(nil))

	verified := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			verified = true
			break
		}
	}
	if !verified {
		return Notification{}, apperr.Unauthorized("invalid stripe signature")
	}

	var event stripeEvent
	if err := json.Unmarshal(cb.Body, &event); err != nil {
		return Notification{}, apperr.Validation("malformed stripe webhook payload")
	}

	session := event.Data.Object
	if session.ID == "" {
		return Notification{}, apperr.Validation("stripe event missing session id")
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return Notification{
			ProviderTxnID: session.ID,
			Paid:          session.PaymentStatus == "paid",
			Verified:      true,
		}, nil
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		return Notification{
			ProviderTxnID: session.ID,
			Paid:          false,
			Verified:      true,
			FailureReason: event.Type,
		}, nil
	default:
		return Notification{}, apperr.Validation(fmt.Sprintf("unhandled stripe event %q", event.Type))
	}
}

// VerifyPayment retrieves the session and checks payment_status.
func (s *Stripe) VerifyPayment(ctx context.Context, providerTxnID string) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/v1/checkout/sessions/"+url.PathEscape(providerTxnID), nil)
	if err != nil {
		return false, fmt.Errorf("build stripe request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.secretKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return false, apperr.ProviderWrap("stripe session lookup failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, apperr.Provider(fmt.Sprintf("stripe session lookup: status %d", resp.StatusCode))
	}

	var session stripeSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return false, apperr.ProviderWrap("decode stripe session", err)
	}
	return session.PaymentStatus == "paid", nil
}

func (s *Stripe) postForm(ctx context.Context, path string, form url.Values) (stripeSession, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return stripeSession{}, fmt.Errorf("build stripe request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.secretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return stripeSession{}, apperr.ProviderWrap("stripe request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return stripeSession{}, apperr.Provider(
			fmt.Sprintf("stripe rejected request: status %d: %s", resp.StatusCode, snippet))
	}

	var session stripeSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return stripeSession{}, apperr.ProviderWrap("decode stripe response", err)
	}
	return session, nil
}

// parseStripeSignature splits "t=...,v1=...,v1=..." into the timestamp and
// candidate signatures.
func parseStripeSignature(header string) (string, []string) {
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	return timestamp, signatures
}

var _ PaymentProvider = (*Stripe)(nil)
