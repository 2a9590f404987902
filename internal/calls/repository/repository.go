package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iwanfadzly/call/platform/apperr"
)

const callColumns = `id, lead_id, user_id, provider, provider_call_id, call_type, status,
	duration_sec, transcript, recording_url, error, started_at, ended_at, created_at, updated_at`

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new call log repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

// Create inserts a new SCHEDULED call log.
func (r *Repo) Create(ctx context.Context, params CreateParams) (CallLog, error) {
	query := `
		INSERT INTO call_logs (lead_id, user_id, call_type, provider, status)
		VALUES ($1, $2, $3, $4, 'SCHEDULED')
		RETURNING ` + callColumns

	log, err := scanCallLog(r.pool.QueryRow(ctx, query,
		params.LeadID, params.UserID, params.CallType, params.Provider))
	if err != nil {
		return CallLog{}, fmt.Errorf("create call log: %w", err)
	}
	return log, nil
}

// GetByID retrieves a call log.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (CallLog, error) {
	query := `SELECT ` + callColumns + ` FROM call_logs WHERE id = $1`

	log, err := scanCallLog(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CallLog{}, apperr.NotFound("call log not found")
		}
		return CallLog{}, fmt.Errorf("get call log: %w", err)
	}
	return log, nil
}

// FindByProviderCallID resolves a webhook's call id to our call log.
func (r *Repo) FindByProviderCallID(ctx context.Context, provider, providerCallID string) (CallLog, error) {
	query := `SELECT ` + callColumns + ` FROM call_logs WHERE provider = $1 AND provider_call_id = $2`

	log, err := scanCallLog(r.pool.QueryRow(ctx, query, provider, providerCallID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CallLog{}, apperr.NotFound("call log not found for provider call id")
		}
		return CallLog{}, fmt.Errorf("find call log by provider call id: %w", err)
	}
	return log, nil
}

// ListForLead returns the most recent calls for a lead.
func (r *Repo) ListForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]CallLog, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + callColumns + ` FROM call_logs
		WHERE lead_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("list calls for lead: %w", err)
	}
	defer rows.Close()

	var logs []CallLog
	for rows.Next() {
		log, err := scanCallLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// SetProviderCallID records the provider's call id after a successful initiate.
func (r *Repo) SetProviderCallID(ctx context.Context, id uuid.UUID, provider, providerCallID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE call_logs
		SET provider = $2, provider_call_id = $3, updated_at = NOW()
		WHERE id = $1`, id, provider, providerCallID)
	if err != nil {
		return fmt.Errorf("set provider call id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("call log not found")
	}
	return nil
}

// TransitionInProgress moves SCHEDULED -> IN_PROGRESS.
func (r *Repo) TransitionInProgress(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE call_logs
		SET status = 'IN_PROGRESS', started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'SCHEDULED'`, id)
	if err != nil {
		return false, fmt.Errorf("transition call in progress: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// TransitionCompleted moves SCHEDULED or IN_PROGRESS -> COMPLETED. Allowing
// the jump straight from SCHEDULED covers an end event arriving before the
// start event.
func (r *Repo) TransitionCompleted(ctx context.Context, id uuid.UUID, params CompleteParams) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE call_logs
		SET status = 'COMPLETED',
			duration_sec = $2,
			transcript = $3,
			recording_url = $4,
			started_at = COALESCE(started_at, NOW()),
			ended_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status IN ('SCHEDULED', 'IN_PROGRESS')`,
		id, params.DurationSec, params.Transcript, params.RecordingURL)
	if err != nil {
		return false, fmt.Errorf("transition call completed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// TransitionFailed moves SCHEDULED or IN_PROGRESS -> FAILED.
func (r *Repo) TransitionFailed(ctx context.Context, id uuid.UUID, callError string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE call_logs
		SET status = 'FAILED', error = $2, ended_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('SCHEDULED', 'IN_PROGRESS')`, id, callError)
	if err != nil {
		return false, fmt.Errorf("transition call failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCallLog(row rowScanner) (CallLog, error) {
	var log CallLog
	err := row.Scan(&log.ID, &log.LeadID, &log.UserID, &log.Provider, &log.ProviderCallID,
		&log.CallType, &log.Status, &log.DurationSec, &log.Transcript, &log.RecordingURL,
		&log.Error, &log.StartedAt, &log.EndedAt, &log.CreatedAt, &log.UpdatedAt)
	return log, err
}
