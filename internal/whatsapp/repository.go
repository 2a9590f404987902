package whatsapp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Message direction and delivery status.
const (
	DirectionOutbound = "OUTBOUND"
	DirectionInbound  = "INBOUND"

	StatusSent     = "SENT"
	StatusFailed   = "FAILED"
	StatusReceived = "RECEIVED"
)

// Log is one WhatsApp message, either direction. ReceivedAt is the gateway's
// timestamp for inbound messages, nil for outbound.
type Log struct {
	ID           uuid.UUID
	LeadID       *uuid.UUID
	Phone        string
	Direction    string
	Message      string
	TemplateName string
	Status       string
	Error        string
	ReceivedAt   *time.Time
	CreatedAt    time.Time
}

// LogParams record a message.
type LogParams struct {
	LeadID       *uuid.UUID
	Phone        string
	Direction    string
	Message      string
	TemplateName string
	Status       string
	Error        string
	ReceivedAt   *time.Time
}

// MessageLog is the persistence port for the message log.
type MessageLog interface {
	Append(ctx context.Context, params LogParams) (Log, error)
	ListForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]Log, error)
}

// Repository persists the WhatsApp message log.
type Repository struct {
	pool *pgxpool.Pool
}

var _ MessageLog = (*Repository)(nil)

// NewRepository creates a new message log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append records a message.
func (r *Repository) Append(ctx context.Context, params LogParams) (Log, error) {
	query := `
		INSERT INTO whatsapp_logs (lead_id, phone, direction, message, template_name, status, error, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, lead_id, phone, direction, message, template_name, status, error, received_at, created_at`

	var log Log
	err := r.pool.QueryRow(ctx, query,
		params.LeadID, params.Phone, params.Direction, params.Message,
		params.TemplateName, params.Status, params.Error, params.ReceivedAt,
	).Scan(&log.ID, &log.LeadID, &log.Phone, &log.Direction, &log.Message,
		&log.TemplateName, &log.Status, &log.Error, &log.ReceivedAt, &log.CreatedAt)
	if err != nil {
		return Log{}, fmt.Errorf("append whatsapp log: %w", err)
	}
	return log, nil
}

// ListForLead returns the most recent messages exchanged with a lead.
func (r *Repository) ListForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]Log, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, phone, direction, message, template_name, status, error, received_at, created_at
		FROM whatsapp_logs WHERE lead_id = $1
		ORDER BY created_at DESC LIMIT $2`, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("list whatsapp logs: %w", err)
	}
	defer rows.Close()

	var logs []Log
	for rows.Next() {
		var log Log
		if err := rows.Scan(&log.ID, &log.LeadID, &log.Phone, &log.Direction, &log.Message,
			&log.TemplateName, &log.Status, &log.Error, &log.ReceivedAt, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan whatsapp log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
