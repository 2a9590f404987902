// Package payment defines the payment backend port and its adapters. All
// amounts are integer cents; the adapters never see fractional currency.
package payment

import (
	"context"
	"net/http"
)

// LinkRequest carries everything an adapter needs to create a hosted payment
// page for an order.
type LinkRequest struct {
	OrderID     string
	AmountCents int64
	Currency    string
	Description string
	// Customer details shown on or prefilled into the provider's page.
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	// RedirectURL is where the provider sends the customer after paying.
	RedirectURL string
	// CallbackURL is where the provider posts the server-to-server webhook.
	CallbackURL string
}

// Link is a created hosted payment page. ProviderTxnID is the identifier the
// provider will echo back in its webhook.
type Link struct {
	URL           string
	ProviderTxnID string
}

// Callback is the raw inbound payment webhook before provider-specific
// decoding.
type Callback struct {
	Header http.Header
	Body   []byte
}

// Notification is a payment webhook normalized into the shape the reconciler
// consumes. Verified reports whether the adapter could authenticate the
// webhook cryptographically; when false the reconciler must confirm the
// status with VerifyPayment before trusting Paid.
type Notification struct {
	ProviderTxnID string
	Paid          bool
	Verified      bool
	FailureReason string
}

// PaymentProvider is the port every payment backend implements.
type PaymentProvider interface {
	Name() string
	CreatePaymentLink(ctx context.Context, req LinkRequest) (Link, error)
	ParseWebhook(cb Callback) (Notification, error)
	// VerifyPayment queries the provider's API for the authoritative paid
	// state of a transaction.
	VerifyPayment(ctx context.Context, providerTxnID string) (bool, error)
}
