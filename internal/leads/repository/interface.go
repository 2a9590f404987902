package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LeadStatus is the sales-funnel state of a lead. DNC is terminal and blocks
// all further outbound contact.
type LeadStatus string

const (
	StatusNew        LeadStatus = "NEW"
	StatusContacted  LeadStatus = "CONTACTED"
	StatusQualified  LeadStatus = "QUALIFIED"
	StatusInterested LeadStatus = "INTERESTED"
	StatusNoAnswer   LeadStatus = "NO_ANSWER"
	StatusFollowUp   LeadStatus = "FOLLOW_UP"
	StatusClosed     LeadStatus = "CLOSED"
	StatusDNC        LeadStatus = "DNC"
)

// Valid reports whether s is a known lead status.
func (s LeadStatus) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusInterested,
		StatusNoAnswer, StatusFollowUp, StatusClosed, StatusDNC:
		return true
	}
	return false
}

// Activity types recorded on the lead timeline.
const (
	ActivityCall     = "CALL"
	ActivityWhatsApp = "WHATSAPP"
	ActivityPayment  = "PAYMENT"
	ActivityOrder    = "ORDER"
	ActivityNote     = "NOTE"
	ActivityDNC      = "DNC"
)

// Lead is a prospective customer tracked through the sales funnel.
type Lead struct {
	ID        uuid.UUID
	Phone     string
	Name      string
	Email     *string
	Status    LeadStatus
	Priority  string
	Source    string
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Activity is an immutable audit trail entry on a lead's timeline.
type Activity struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Type      string
	Title     string
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// CreateParams contains parameters for creating a lead.
type CreateParams struct {
	Phone    string
	Name     string
	Email    *string
	Priority string
	Source   string
	Tags     []string
}

// ListParams filters and paginates lead listings.
type ListParams struct {
	Status LeadStatus
	Source string
	Search string
	Limit  int
	Offset int
}

// ActivityParams contains parameters for appending a timeline entry.
type ActivityParams struct {
	LeadID   uuid.UUID
	Type     string
	Title    string
	Content  string
	Metadata map[string]any
}

// LeadReader provides read operations for leads.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Lead, error)
	FindByPhone(ctx context.Context, phone string) (Lead, error)
	List(ctx context.Context, params ListParams) ([]Lead, int, error)
	CountCalls(ctx context.Context, leadID uuid.UUID) (int, error)
}

// LeadWriter provides write operations for leads. Status is mutated only by
// the orchestrator/reconciler services, never by handlers directly.
type LeadWriter interface {
	Create(ctx context.Context, params CreateParams) (Lead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status LeadStatus) error
}

// ActivityLog provides the append-only lead timeline.
type ActivityLog interface {
	AppendActivity(ctx context.Context, params ActivityParams) (Activity, error)
	ListActivities(ctx context.Context, leadID uuid.UUID, limit int) ([]Activity, error)
}

// Repository combines all lead repository operations.
type Repository interface {
	LeadReader
	LeadWriter
	ActivityLog
}
