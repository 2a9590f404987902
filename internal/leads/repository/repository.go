package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iwanfadzly/call/platform/apperr"
)

const leadNotFoundMessage = "lead not found"

const leadColumns = `id, phone, name, email, status, priority, source, tags, created_at, updated_at`

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new leads repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// Create inserts a new lead. The phone number must be unique.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Lead, error) {
	query := `
		INSERT INTO leads (phone, name, email, priority, source, tags)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + leadColumns

	row := r.pool.QueryRow(ctx, query,
		params.Phone, params.Name, params.Email, params.Priority, params.Source, params.Tags)

	lead, err := scanLead(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Lead{}, apperr.Conflict("a lead with this phone number already exists")
		}
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}

	return lead, nil
}

// GetByID retrieves a lead by its ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	lead, err := scanLead(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("get lead by id: %w", err)
	}

	return lead, nil
}

// FindByPhone retrieves a lead by its normalized phone number.
func (r *Repo) FindByPhone(ctx context.Context, phone string) (Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE phone = $1`

	lead, err := scanLead(r.pool.QueryRow(ctx, query, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("find lead by phone: %w", err)
	}

	return lead, nil
}

// List retrieves leads matching the filters plus the total count.
func (r *Repo) List(ctx context.Context, params ListParams) ([]Lead, int, error) {
	limit := params.Limit
	if limit < 1 || limit > 200 {
		limit = 50
	}

	where := ` WHERE ($1 = '' OR status = $1)
		AND ($2 = '' OR source = $2)
		AND ($3 = '' OR name ILIKE '%' || $3 || '%' OR phone ILIKE '%' || $3 || '%')`
	args := []any{string(params.Status), params.Source, params.Search}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	query := `SELECT ` + leadColumns + ` FROM leads` + where +
		` ORDER BY created_at DESC LIMIT $4 OFFSET $5`
	rows, err := r.pool.Query(ctx, query, append(args, limit, params.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, lead)
	}

	return leads, total, rows.Err()
}

// CountCalls returns the number of call logs recorded for a lead.
func (r *Repo) CountCalls(ctx context.Context, leadID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM call_logs WHERE lead_id = $1`, leadID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count lead calls: %w", err)
	}
	return count, nil
}

// UpdateStatus sets the lead's funnel status.
func (r *Repo) UpdateStatus(ctx context.Context, id uuid.UUID, status LeadStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE leads SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMessage)
	}
	return nil
}

// AppendActivity appends an immutable timeline entry to the lead.
func (r *Repo) AppendActivity(ctx context.Context, params ActivityParams) (Activity, error) {
	query := `
		INSERT INTO lead_activities (lead_id, type, title, content, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, lead_id, type, title, content, metadata, created_at`

	var activity Activity
	err := r.pool.QueryRow(ctx, query,
		params.LeadID, params.Type, params.Title, params.Content, params.Metadata,
	).Scan(&activity.ID, &activity.LeadID, &activity.Type, &activity.Title,
		&activity.Content, &activity.Metadata, &activity.CreatedAt)
	if err != nil {
		return Activity{}, fmt.Errorf("append lead activity: %w", err)
	}

	return activity, nil
}

// ListActivities returns the most recent timeline entries for a lead.
func (r *Repo) ListActivities(ctx context.Context, leadID uuid.UUID, limit int) ([]Activity, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, lead_id, type, title, content, metadata, created_at
		FROM lead_activities
		WHERE lead_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("list lead activities: %w", err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.LeadID, &a.Type, &a.Title, &a.Content, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lead activity: %w", err)
		}
		activities = append(activities, a)
	}

	return activities, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (Lead, error) {
	var lead Lead
	err := row.Scan(&lead.ID, &lead.Phone, &lead.Name, &lead.Email, &lead.Status,
		&lead.Priority, &lead.Source, &lead.Tags, &lead.CreatedAt, &lead.UpdatedAt)
	return lead, err
}
