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
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iwanfadzly/call/platform/apperr"
)

const billplzBaseURL = "https://www.billplz.com"

// Billplz collects payments through the Billplz bills API. The bill id is the
// transaction id echoed back by the callback.
type Billplz struct {
	secretKey     string
	collectionID  string
	xSignatureKey string
	baseURL       string
	httpClient    *http.Client
}

// BillplzConfig configures the Billplz adapter.
type BillplzConfig struct {
	SecretKey     string
	CollectionID  string
	XSignatureKey string
	// BaseURL overrides the API endpoint, used in tests.
	BaseURL string
	Timeout time.Duration
}

// NewBillplz creates a Billplz payment provider.
func NewBillplz(cfg BillplzConfig) *Billplz {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = billplzBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Billplz{
		secretKey:     cfg.SecretKey,
		collectionID:  cfg.CollectionID,
		xSignatureKey: cfg.XSignatureKey,
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

func (b *Billplz) Name() string { return "billplz" }

type billplzBill struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Paid bool   `json:"paid"`
}

// CreatePaymentLink creates a bill in the configured collection.
func (b *Billplz) CreatePaymentLink(ctx context.Context, req LinkRequest) (Link, error) {
	form := url.Values{}
	form.Set("collection_id", b.collectionID)
	form.Set("name", req.CustomerName)
	form.Set("email", req.CustomerEmail)
	form.Set("mobile", req.CustomerPhone)
	form.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	form.Set("description", req.Description)
	form.Set("callback_url", req.CallbackURL)
	form.Set("redirect_url", req.RedirectURL)
	form.Set("reference_1_label", "Order")
	form.Set("reference_1", req.OrderID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/api/v3/bills", strings.NewReader(form.Encode()))
	if err != nil {
		return Link{}, fmt.Errorf("build billplz request: %w", err)
	}
	httpReq.SetBasicAuth(b.secretKey, "")
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return Link{}, apperr.ProviderWrap("billplz bill request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Link{}, apperr.Provider(
			fmt.Sprintf("billplz rejected bill: status %d: %s", resp.StatusCode, snippet))
	}

	var bill billplzBill
	if err := json.NewDecoder(resp.Body).Decode(&bill); err != nil {
		return Link{}, apperr.ProviderWrap("decode billplz response", err)
	}
	if bill.ID == "" || bill.URL == "" {
		return Link{}, apperr.Provider("billplz response missing id or url")
	}

	return Link{URL: bill.URL, ProviderTxnID: bill.ID}, nil
}

// ParseWebhook verifies the x_signature over the form-encoded callback.
// Billplz signs the sorted "key+value" pairs joined by "|", HMAC-SHA256 hex.
func (b *Billplz) ParseWebhook(cb Callback) (Notification, error) {
	form, err := url.ParseQuery(string(cb.Body))
	if err != nil {
		return Notification{}, apperr.Validation("malformed billplz callback body")
	}

	signature := form.Get("x_signature")
	if signature == "" {
		return Notification{}, apperr.Unauthorized("missing billplz x_signature")
	}
	if !b.verifyXSignature(form, signature) {
		return Notification{}, apperr.Unauthorized("invalid billplz x_signature")
	}

	billID := form.Get("id")
	if billID == "" {
		return Notification{}, apperr.Validation("billplz callback missing bill id")
	}

	notif := Notification{
		ProviderTxnID: billID,
		Paid:          form.Get("paid") == "true",
		Verified:      true,
	}
	if !notif.Paid {
		notif.FailureReason = "bill reported unpaid: " + form.Get("state")
	}
	return notif, nil
}

// VerifyPayment retrieves the bill and checks its paid flag.
func (b *Billplz) VerifyPayment(ctx context.Context, providerTxnID string) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		b.baseURL+"/api/v3/bills/"+url.PathEscape(providerTxnID), nil)
	if err != nil {
		return false, fmt.Errorf("build billplz request: %w", err)
	}
	httpReq.SetBasicAuth(b.secretKey, "")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return false, apperr.ProviderWrap("billplz bill lookup failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, apperr.Provider(fmt.Sprintf("billplz bill lookup: status %d", resp.StatusCode))
	}

	var bill billplzBill
	if err := json.NewDecoder(resp.Body).Decode(&bill); err != nil {
		return false, apperr.ProviderWrap("decode billplz bill", err)
	}
	return bill.Paid, nil
}

func (b *Billplz) verifyXSignature(form url.Values, signature string) bool {
	keys := make([]string, 0, len(form))
	for k := range form {
		if k == "x_signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+form.Get(k))
	}

	mac := hmac.New(sha256.New, []byte(b.xSignatureKey))
	mac.Write([]byte(strings.Join(pairs, "|")))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

var _ PaymentProvider = (*Billplz)(nil)
