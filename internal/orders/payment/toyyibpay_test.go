package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/iwanfadzly/call/platform/apperr"
)

func TestToyyibpayCreatePaymentLink(t *testing.T) {
	var gotForm url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/index.php/api/createBill" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm
		json.NewEncoder(w).Encode([]map[string]string{{"BillCode": "abc123"}})
	}))
	defer srv.Close()

	tp := NewToyyibpay(ToyyibpayConfig{
		SecretKey:    "usk",
		CategoryCode: "cat1",
		BaseURL:      srv.URL,
	})

	link, err := tp.CreatePaymentLink(context.Background(), LinkRequest{
		OrderID:     "order-1",
		AmountCents: 4990,
		Description: "Order #order-1 with a description well past thirty characters",
	})
	if err != nil {
		t.Fatalf("CreatePaymentLink: %v", err)
	}

	if link.ProviderTxnID != "abc123" {
		t.Errorf("txn id = %q", link.ProviderTxnID)
	}
	if link.URL != srv.URL+"/abc123" {
		t.Errorf("url = %q", link.URL)
	}
	if gotForm.Get("userSecretKey") != "usk" || gotForm.Get("categoryCode") != "cat1" {
		t.Errorf("form = %v", gotForm)
	}
	if gotForm.Get("billExternalReferenceNo") != "order-1" {
		t.Errorf("billExternalReferenceNo = %q", gotForm.Get("billExternalReferenceNo"))
	}
	if name := gotForm.Get("billName"); len(name) > 30 {
		t.Errorf("billName = %q, over 30 chars", name)
	}
}

func TestToyyibpayParseWebhook(t *testing.T) {
	tp := NewToyyibpay(ToyyibpayConfig{})

	cases := []struct {
		status      string
		wantPaid    bool
		wantFailure bool
	}{
		{"1", true, false},
		// Pending carries no failure reason: the bill may still be paid and
		// the payment attempt must stay open.
		{"2", false, false},
		{"3", false, true},
	}

	for _, tc := range cases {
		form := url.Values{}
		form.Set("billcode", "abc123")
		form.Set("status", tc.status)
		form.Set("order_id", "order-1")

		notif, err := tp.ParseWebhook(Callback{Body: []byte(form.Encode())})
		if err != nil {
			t.Fatalf("status %q: %v", tc.status, err)
		}
		if notif.Paid != tc.wantPaid {
			t.Errorf("status %q: paid = %v, want %v", tc.status, notif.Paid, tc.wantPaid)
		}
		if got := notif.FailureReason != ""; got != tc.wantFailure {
			t.Errorf("status %q: failure reason = %q", tc.status, notif.FailureReason)
		}
		// Unsigned callback, never trusted as-is.
		if notif.Verified {
			t.Errorf("status %q: notification marked verified", tc.status)
		}
		if notif.ProviderTxnID != "abc123" {
			t.Errorf("status %q: txn id = %q", tc.status, notif.ProviderTxnID)
		}
	}
}

func TestToyyibpayParseWebhookMissingBillCode(t *testing.T) {
	tp := NewToyyibpay(ToyyibpayConfig{})

	if _, err := tp.ParseWebhook(Callback{Body: []byte("status=1")}); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestToyyibpayVerifyPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/index.php/api/getBillTransactions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("billCode") != "abc123" {
			t.Errorf("billCode = %q", r.PostForm.Get("billCode"))
		}
		json.NewEncoder(w).Encode([]map[string]string{{"billpaymentStatus": "1"}})
	}))
	defer srv.Close()

	tp := NewToyyibpay(ToyyibpayConfig{SecretKey: "usk", BaseURL: srv.URL})

	paid, err := tp.VerifyPayment(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if !paid {
		t.Error("settled bill not verified")
	}
}

func TestToyyibpayVerifyPaymentNoSettledTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{{"billpaymentStatus": "3"}})
	}))
	defer srv.Close()

	tp := NewToyyibpay(ToyyibpayConfig{SecretKey: "usk", BaseURL: srv.URL})

	paid, err := tp.VerifyPayment(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if paid {
		t.Error("failed transaction reported as paid")
	}
}
