// Package repository persists call logs and enforces their state machine at
// the SQL level: transitions are conditional updates that report whether they
// applied, so duplicate or out-of-order webhooks become no-ops.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CallStatus is the lifecycle state of a call log.
type CallStatus string

const (
	StatusScheduled  CallStatus = "SCHEDULED"
	StatusInProgress CallStatus = "IN_PROGRESS"
	StatusCompleted  CallStatus = "COMPLETED"
	StatusFailed     CallStatus = "FAILED"
)

// Terminal reports whether the status can never change again.
func (s CallStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CallLog is one outbound call attempt for a lead.
type CallLog struct {
	ID             uuid.UUID
	LeadID         uuid.UUID
	UserID         string
	Provider       string
	ProviderCallID *string
	CallType       string
	Status         CallStatus
	DurationSec    int
	Transcript     string
	RecordingURL   string
	Error          string
	StartedAt      *time.Time
	EndedAt        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateParams are the fields needed to schedule a call.
type CreateParams struct {
	LeadID   uuid.UUID
	UserID   string
	CallType string
	Provider string
}

// CompleteParams carry the outcome of a finished call.
type CompleteParams struct {
	DurationSec  int
	Transcript   string
	RecordingURL string
}

// Repository is the persistence port for call logs.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (CallLog, error)
	GetByID(ctx context.Context, id uuid.UUID) (CallLog, error)
	FindByProviderCallID(ctx context.Context, provider, providerCallID string) (CallLog, error)
	ListForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]CallLog, error)

	SetProviderCallID(ctx context.Context, id uuid.UUID, provider, providerCallID string) error

	// Transitions return whether the row actually moved. A false return with a
	// nil error means the call was not in a state the transition applies to.
	TransitionInProgress(ctx context.Context, id uuid.UUID) (bool, error)
	TransitionCompleted(ctx context.Context, id uuid.UUID, params CompleteParams) (bool, error)
	TransitionFailed(ctx context.Context, id uuid.UUID, callError string) (bool, error)
}
