package payment

import (
	"context"
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

const toyyibpayBaseURL = "https://toyyibpay.com"

// Toyyibpay collects payments through toyyibPay bills. Its callbacks carry no
// signature, so ParseWebhook returns Verified=false and the reconciler must
// confirm the paid state through VerifyPayment.
type Toyyibpay struct {
	secretKey    string
	categoryCode string
	baseURL      string
	httpClient   *http.Client
}

// ToyyibpayConfig configures the toyyibPay adapter.
type ToyyibpayConfig struct {
	SecretKey    string
	CategoryCode string
	// BaseURL overrides the API endpoint, used in tests.
	BaseURL string
	Timeout time.Duration
}

// NewToyyibpay creates a toyyibPay payment provider.
func NewToyyibpay(cfg ToyyibpayConfig) *Toyyibpay {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = toyyibpayBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Toyyibpay{
		secretKey:    cfg.SecretKey,
		categoryCode: cfg.CategoryCode,
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

func (t *Toyyibpay) Name() string { return "toyyibpay" }

type toyyibpayCreateBillResponse []struct {
	BillCode string `json:"BillCode"`
}

// CreatePaymentLink creates a bill and returns its hosted page URL. The bill
// code doubles as the transaction id.
func (t *Toyyibpay) CreatePaymentLink(ctx context.Context, req LinkRequest) (Link, error) {
	form := url.Values{}
	form.Set("userSecretKey", t.secretKey)
	form.Set("categoryCode", t.categoryCode)
	form.Set("billName", truncate(req.Description, 30))
	form.Set("billDescription", req.Description)
	form.Set("billPriceSetting", "1")
	form.Set("billPayorInfo", "1")
	form.Set("billAmount", strconv.FormatInt(req.AmountCents, 10))
	form.Set("billReturnUrl", req.RedirectURL)
	form.Set("billCallbackUrl", req.CallbackURL)
	form.Set("billExternalReferenceNo", req.OrderID)
	form.Set("billTo", req.CustomerName)
	form.Set("billEmail", req.CustomerEmail)
	form.Set("billPhone", req.CustomerPhone)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/index.php/api/createBill", strings.NewReader(form.Encode()))
	if err != nil {
		return Link{}, fmt.Errorf("build toyyibpay request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return Link{}, apperr.ProviderWrap("toyyibpay bill request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Link{}, apperr.Provider(
			fmt.Sprintf("toyyibpay rejected bill: status %d: %s", resp.StatusCode, snippet))
	}

	var parsed toyyibpayCreateBillResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Link{}, apperr.ProviderWrap("decode toyyibpay response", err)
	}
	if len(parsed) == 0 || parsed[0].BillCode == "" {
		return Link{}, apperr.Provider("toyyibpay response missing bill code")
	}

	billCode := parsed[0].BillCode
	return Link{URL: t.baseURL + "/" + billCode, ProviderTxnID: billCode}, nil
}

// ParseWebhook decodes a form-encoded callback. status is "1" paid, "2"
// pending, "3" failed. Unverifiable by construction.
func (t *Toyyibpay) ParseWebhook(cb Callback) (Notification, error) {
	form, err := url.ParseQuery(string(cb.Body))
	if err != nil {
		return Notification{}, apperr.Validation("malformed toyyibpay callback body")
	}

	billCode := form.Get("billcode")
	if billCode == "" {
		return Notification{}, apperr.Validation("toyyibpay callback missing billcode")
	}

	notif := Notification{ProviderTxnID: billCode, Verified: false}
	switch form.Get("status") {
	case "1":
		notif.Paid = true
	case "3":
		notif.FailureReason = "toyyibpay reported transaction failed"
	default:
		// Pending; the customer may still pay, so nothing to reconcile yet.
	}
	return notif, nil
}

type toyyibpayTransaction struct {
	BillPaymentStatus string `json:"billpaymentStatus"`
}

// VerifyPayment asks the bill transactions API whether a settled payment
// exists for the bill code.
func (t *Toyyibpay) VerifyPayment(ctx context.Context, providerTxnID string) (bool, error) {
	form := url.Values{}
	form.Set("billCode", providerTxnID)
	form.Set("billpaymentStatus", "1")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/index.php/api/getBillTransactions", strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("build toyyibpay request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return false, apperr.ProviderWrap("toyyibpay transaction lookup failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, apperr.Provider(fmt.Sprintf("toyyibpay transaction lookup: status %d", resp.StatusCode))
	}

	var transactions []toyyibpayTransaction
	if err := json.NewDecoder(resp.Body).Decode(&transactions); err != nil {
		return false, apperr.ProviderWrap("decode toyyibpay transactions", err)
	}

	for _, txn := range transactions {
		if txn.BillPaymentStatus == "1" {
			return true, nil
		}
	}
	return false, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

var _ PaymentProvider = (*Toyyibpay)(nil)
