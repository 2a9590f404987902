// Package provider defines the calling backend port and its adapters. The rest
// of the application talks to a CallProvider; which backend answers is a
// deployment decision.
package provider

import (
	"context"
	"net/http"
)

// EventKind is the normalized lifecycle event reported by a provider callback.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventEnded   EventKind = "ended"
	EventFailed  EventKind = "failed"
	// EventIgnored marks a valid callback that carries no state we track,
	// e.g. Twilio's pre-answer progress events. Acked without reconciling.
	EventIgnored EventKind = "ignored"
)

// InitiateRequest carries everything an adapter needs to place an outbound call.
type InitiateRequest struct {
	LeadID   string
	ToNumber string
	LeadName string
	CallType string
	Metadata map[string]string
}

// CallHandle identifies a call in the provider's system.
type CallHandle struct {
	Provider       string `json:"provider"`
	ProviderCallID string `json:"providerCallId"`
}

// Callback is the raw inbound webhook before provider-specific decoding.
// URL is the full request URL as the provider signed it.
type Callback struct {
	Header http.Header
	Body   []byte
	URL    string
}

// Event is a provider callback normalized into the shape the reconciler
// consumes. Duration is in seconds; Transcript, RecordingURL and Error are
// populated only when the provider sent them.
type Event struct {
	ProviderCallID string
	Kind           EventKind
	Duration       int
	Transcript     string
	RecordingURL   string
	Error          string
}

// CallProvider is the port every calling backend implements. HandleCallback
// verifies the webhook signature before decoding; a failed verification is an
// apperr.Unauthorized and must not be treated as a provider outage.
type CallProvider interface {
	Name() string
	InitiateCall(ctx context.Context, req InitiateRequest) (CallHandle, error)
	HandleCallback(cb Callback) (Event, error)
}
