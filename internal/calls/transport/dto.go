package transport

import (
	"time"

	"github.com/iwanfadzly/call/internal/calls/repository"

	"github.com/google/uuid"
)

// CallResponse is the API shape of a call log.
type CallResponse struct {
	ID             uuid.UUID  `json:"id"`
	LeadID         uuid.UUID  `json:"leadId"`
	UserID         string     `json:"userId,omitempty"`
	Provider       string     `json:"provider"`
	ProviderCallID *string    `json:"providerCallId,omitempty"`
	CallType       string     `json:"callType"`
	Status         string     `json:"status"`
	DurationSec    int        `json:"durationSec"`
	Transcript     string     `json:"transcript,omitempty"`
	RecordingURL   string     `json:"recordingUrl,omitempty"`
	Error          string     `json:"error,omitempty"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// ToCallResponse maps a repository call log to its API shape.
func ToCallResponse(log repository.CallLog) CallResponse {
	return CallResponse{
		ID:             log.ID,
		LeadID:         log.LeadID,
		UserID:         log.UserID,
		Provider:       log.Provider,
		ProviderCallID: log.ProviderCallID,
		CallType:       log.CallType,
		Status:         string(log.Status),
		DurationSec:    log.DurationSec,
		Transcript:     log.Transcript,
		RecordingURL:   log.RecordingURL,
		Error:          log.Error,
		StartedAt:      log.StartedAt,
		EndedAt:        log.EndedAt,
		CreatedAt:      log.CreatedAt,
	}
}
