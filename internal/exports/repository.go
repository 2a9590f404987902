// Package exports generates CSV extracts of leads, calls and orders on the
// exports lane and stores the artifacts in object storage.
package exports

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iwanfadzly/call/platform/apperr"
)

// Export types and statuses.
const (
	TypeLeads  = "LEADS"
	TypeCalls  = "CALLS"
	TypeOrders = "ORDERS"

	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// ValidType reports whether t is an exportable dataset.
func ValidType(t string) bool {
	return t == TypeLeads || t == TypeCalls || t == TypeOrders
}

// Job is one export request and its outcome.
type Job struct {
	ID          uuid.UUID         `json:"id"`
	Type        string            `json:"type"`
	Status      string            `json:"status"`
	Filters     map[string]string `json:"filters,omitempty"`
	RequestedBy string            `json:"requestedBy"`
	ObjectKey   string            `json:"objectKey,omitempty"`
	DownloadURL string            `json:"downloadUrl,omitempty"`
	RowCount    int               `json:"rowCount"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

const jobColumns = `id, type, status, filters, requested_by, object_key, download_url,
	row_count, error, created_at, completed_at`

// Repository persists export jobs and runs the dataset queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new exports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateJob records a new pending export.
func (r *Repository) CreateJob(ctx context.Context, exportType, requestedBy string, filters map[string]string) (Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, `
		INSERT INTO export_jobs (type, status, filters, requested_by)
		VALUES ($1, 'PENDING', $2, $3)
		RETURNING `+jobColumns, exportType, filters, requestedBy))
	if err != nil {
		return Job{}, fmt.Errorf("create export job: %w", err)
	}
	return job, nil
}

// GetJob retrieves an export job.
func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM export_jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, apperr.NotFound("export job not found")
		}
		return Job{}, fmt.Errorf("get export job: %w", err)
	}
	return job, nil
}

// ClaimJob moves PENDING -> PROCESSING. A redelivered queue job whose export
// already completed reports not applied and is dropped by the handler.
func (r *Repository) ClaimJob(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE export_jobs SET status = 'PROCESSING', updated_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'PROCESSING', 'FAILED')`, id)
	if err != nil {
		return false, fmt.Errorf("claim export job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CompleteJob records the stored artifact.
func (r *Repository) CompleteJob(ctx context.Context, id uuid.UUID, objectKey, downloadURL string, rowCount int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE export_jobs
		SET status = 'COMPLETED', object_key = $2, download_url = $3, row_count = $4,
			error = '', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id, objectKey, downloadURL, rowCount)
	if err != nil {
		return fmt.Errorf("complete export job: %w", err)
	}
	return nil
}

// FailJob records a failed attempt. The queue may still retry it.
func (r *Repository) FailJob(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE export_jobs SET status = 'FAILED', error = $2, updated_at = NOW()
		WHERE id = $1 AND status <> 'COMPLETED'`, id, reason)
	if err != nil {
		return fmt.Errorf("fail export job: %w", err)
	}
	return nil
}

// Dataset queries. Each returns a header row plus data rows ready for CSV.

// LeadRows extracts leads, optionally filtered by funnel status.
func (r *Repository) LeadRows(ctx context.Context, filters map[string]string) ([]string, [][]string, error) {
	header := []string{"id", "phone", "name", "email", "status", "priority", "source", "created_at"}

	rows, err := r.pool.Query(ctx, `
		SELECT id, phone, name, COALESCE(email, ''), status, priority, source, created_at
		FROM leads
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at`, filters["status"])
	if err != nil {
		return nil, nil, fmt.Errorf("export leads: %w", err)
	}
	defer rows.Close()

	var data [][]string
	for rows.Next() {
		var id uuid.UUID
		var phone, name, email, status, priority, source string
		var createdAt time.Time
		if err := rows.Scan(&id, &phone, &name, &email, &status, &priority, &source, &createdAt); err != nil {
			return nil, nil, fmt.Errorf("scan lead export row: %w", err)
		}
		data = append(data, []string{
			id.String(), phone, name, email, status, priority, source,
			createdAt.Format(time.RFC3339),
		})
	}
	return header, data, rows.Err()
}

// CallRows extracts call logs, optionally filtered by status.
func (r *Repository) CallRows(ctx context.Context, filters map[string]string) ([]string, [][]string, error) {
	header := []string{"id", "lead_id", "provider", "call_type", "status", "duration_sec", "created_at"}

	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, provider, call_type, status, duration_sec, created_at
		FROM call_logs
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at`, filters["status"])
	if err != nil {
		return nil, nil, fmt.Errorf("export calls: %w", err)
	}
	defer rows.Close()

	var data [][]string
	for rows.Next() {
		var id, leadID uuid.UUID
		var provider, callType, status string
		var duration int
		var createdAt time.Time
		if err := rows.Scan(&id, &leadID, &provider, &callType, &status, &duration, &createdAt); err != nil {
			return nil, nil, fmt.Errorf("scan call export row: %w", err)
		}
		data = append(data, []string{
			id.String(), leadID.String(), provider, callType, status,
			strconv.Itoa(duration), createdAt.Format(time.RFC3339),
		})
	}
	return header, data, rows.Err()
}

// OrderRows extracts orders, optionally filtered by status.
func (r *Repository) OrderRows(ctx context.Context, filters map[string]string) ([]string, [][]string, error) {
	header := []string{"id", "lead_id", "status", "total_cents", "currency", "created_at"}

	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, status, total_cents, currency, created_at
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at`, filters["status"])
	if err != nil {
		return nil, nil, fmt.Errorf("export orders: %w", err)
	}
	defer rows.Close()

	var data [][]string
	for rows.Next() {
		var id, leadID uuid.UUID
		var status, currency string
		var totalCents int64
		var createdAt time.Time
		if err := rows.Scan(&id, &leadID, &status, &totalCents, &currency, &createdAt); err != nil {
			return nil, nil, fmt.Errorf("scan order export row: %w", err)
		}
		data = append(data, []string{
			id.String(), leadID.String(), status,
			strconv.FormatInt(totalCents, 10), currency, createdAt.Format(time.RFC3339),
		})
	}
	return header, data, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var job Job
	err := row.Scan(&job.ID, &job.Type, &job.Status, &job.Filters, &job.RequestedBy,
		&job.ObjectKey, &job.DownloadURL, &job.RowCount, &job.Error,
		&job.CreatedAt, &job.CompletedAt)
	return job, err
}
