package transport

import (
	"time"

	"github.com/iwanfadzly/call/internal/leads/repository"

	"github.com/google/uuid"
)

// CreateLeadRequest is the payload for registering a new lead.
type CreateLeadRequest struct {
	Phone    string   `json:"phone" validate:"required,min=7,max=20"`
	Name     string   `json:"name" validate:"required,min=1,max=200"`
	Email    *string  `json:"email,omitempty" validate:"omitempty,email"`
	Priority string   `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	Source   string   `json:"source,omitempty" validate:"omitempty,max=100"`
	Tags     []string `json:"tags,omitempty"`
}

// CallLeadRequest triggers an outbound AI call for a lead.
type CallLeadRequest struct {
	UserID   string `json:"userId" validate:"required"`
	CallType string `json:"callType,omitempty" validate:"omitempty,oneof=SALES FOLLOW_UP"`
	DelaySec int    `json:"delaySec,omitempty" validate:"omitempty,min=0,max=86400"`
}

// DNCRequest puts a lead on the do-not-call list.
type DNCRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// LeadResponse is the API shape of a lead.
type LeadResponse struct {
	ID        uuid.UUID `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	Status    string    `json:"status"`
	Priority  string    `json:"priority"`
	Source    string    `json:"source,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ActivityResponse is the API shape of a timeline entry.
type ActivityResponse struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Content   string         `json:"content,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ListResponse wraps a page of leads.
type ListResponse struct {
	Leads []LeadResponse `json:"leads"`
	Total int            `json:"total"`
}

// ToLeadResponse maps a repository lead to its API shape.
func ToLeadResponse(lead repository.Lead) LeadResponse {
	return LeadResponse{
		ID:        lead.ID,
		Phone:     lead.Phone,
		Name:      lead.Name,
		Email:     lead.Email,
		Status:    string(lead.Status),
		Priority:  lead.Priority,
		Source:    lead.Source,
		Tags:      lead.Tags,
		CreatedAt: lead.CreatedAt,
		UpdatedAt: lead.UpdatedAt,
	}
}

// ToActivityResponse maps a repository activity to its API shape.
func ToActivityResponse(a repository.Activity) ActivityResponse {
	return ActivityResponse{
		ID:        a.ID,
		Type:      a.Type,
		Title:     a.Title,
		Content:   a.Content,
		Metadata:  a.Metadata,
		CreatedAt: a.CreatedAt,
	}
}
