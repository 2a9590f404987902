// Package reports serves the dashboard aggregates: funnel counts, call
// outcomes, collected revenue and message volume.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// FunnelRow is one lead status bucket.
type FunnelRow struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// CallStats summarize call outcomes for a period.
type CallStats struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Failed         int     `json:"failed"`
	AvgDurationSec float64 `json:"avgDurationSec"`
}

// RevenueStats summarize collected money for a period.
type RevenueStats struct {
	PaidOrders     int   `json:"paidOrders"`
	CODOrders      int   `json:"codOrders"`
	CollectedCents int64 `json:"collectedCents"`
	PendingCents   int64 `json:"pendingCents"`
}

// MessageStats summarize WhatsApp traffic for a period.
type MessageStats struct {
	Outbound int `json:"outbound"`
	Inbound  int `json:"inbound"`
	Failed   int `json:"failed"`
}

// Repository runs the aggregate queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new reports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Funnel returns lead counts per status.
func (r *Repository) Funnel(ctx context.Context) ([]FunnelRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM leads GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("funnel report: %w", err)
	}
	defer rows.Close()

	var result []FunnelRow
	for rows.Next() {
		var row FunnelRow
		if err := rows.Scan(&row.Status, &row.Count); err != nil {
			return nil, fmt.Errorf("scan funnel row: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// Calls returns call outcome stats since the given time.
func (r *Repository) Calls(ctx context.Context, since time.Time) (CallStats, error) {
	var stats CallStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COALESCE(AVG(duration_sec) FILTER (WHERE status = 'COMPLETED'), 0)
		FROM call_logs
		WHERE created_at >= $1`, since,
	).Scan(&stats.Total, &stats.Completed, &stats.Failed, &stats.AvgDurationSec)
	if err != nil {
		return CallStats{}, fmt.Errorf("call stats: %w", err)
	}
	return stats, nil
}

// Revenue returns order money stats since the given time.
func (r *Repository) Revenue(ctx context.Context, since time.Time) (RevenueStats, error) {
	var stats RevenueStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'PAID'),
			COUNT(*) FILTER (WHERE status = 'COD_CONFIRMED'),
			COALESCE(SUM(total_cents) FILTER (WHERE status = 'PAID'), 0),
			COALESCE(SUM(total_cents) FILTER (WHERE status = 'PENDING'), 0)
		FROM orders
		WHERE created_at >= $1`, since,
	).Scan(&stats.PaidOrders, &stats.CODOrders, &stats.CollectedCents, &stats.PendingCents)
	if err != nil {
		return RevenueStats{}, fmt.Errorf("revenue stats: %w", err)
	}
	return stats, nil
}

// Messages returns WhatsApp traffic stats since the given time.
func (r *Repository) Messages(ctx context.Context, since time.Time) (MessageStats, error) {
	var stats MessageStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE direction = 'OUTBOUND' AND status = 'SENT'),
			COUNT(*) FILTER (WHERE direction = 'INBOUND'),
			COUNT(*) FILTER (WHERE status = 'FAILED')
		FROM whatsapp_logs
		WHERE created_at >= $1`, since,
	).Scan(&stats.Outbound, &stats.Inbound, &stats.Failed)
	if err != nil {
		return MessageStats{}, fmt.Errorf("message stats: %w", err)
	}
	return stats, nil
}
