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

const orderColumns = `id, lead_id, status, total_cents, currency, notes, created_at, updated_at`

const paymentColumns = `id, order_id, provider, provider_txn_id, amount_cents, currency,
	status, payment_url, error, paid_at, created_at, updated_at`

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new orders repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

// CreateOrder inserts the order and its items in one transaction. The total
// is computed here from the item snapshots, not trusted from the caller.
func (r *Repo) CreateOrder(ctx context.Context, params CreateOrderParams) (Order, error) {
	var total int64
	for _, item := range params.Items {
		total += item.UnitPriceCents * int64(item.Quantity)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("begin create order: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := scanOrder(tx.QueryRow(ctx, `
		INSERT INTO orders (lead_id, status, total_cents, currency, notes)
		VALUES ($1, 'PENDING', $2, $3, $4)
		RETURNING `+orderColumns,
		params.LeadID, total, params.Currency, params.Notes))
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}

	for _, item := range params.Items {
		var row OrderItem
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, name, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, order_id, product_id, name, quantity, unit_price_cents`,
			order.ID, item.ProductID, item.Name, item.Quantity, item.UnitPriceCents,
		).Scan(&row.ID, &row.OrderID, &row.ProductID, &row.Name, &row.Quantity, &row.UnitPriceCents)
		if err != nil {
			return Order{}, fmt.Errorf("create order item: %w", err)
		}
		order.Items = append(order.Items, row)
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("commit create order: %w", err)
	}
	return order, nil
}

// GetOrder retrieves an order with its items.
func (r *Repo) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, apperr.NotFound("order not found")
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}

	order.Items, err = r.itemsForOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// ListOrdersForLead returns the most recent orders for a lead, items included.
func (r *Repo) ListOrdersForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]Order, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE lead_id = $1 ORDER BY created_at DESC LIMIT $2`, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders for lead: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items, err = r.itemsForOrder(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// LatestOrderForLead returns the newest order for a lead.
func (r *Repo) LatestOrderForLead(ctx context.Context, leadID uuid.UUID) (Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE lead_id = $1 ORDER BY created_at DESC LIMIT 1`, leadID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, apperr.NotFound("lead has no orders")
		}
		return Order{}, fmt.Errorf("latest order for lead: %w", err)
	}

	order.Items, err = r.itemsForOrder(ctx, order.ID)
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// CreatePayment records a new pending payment attempt.
func (r *Repo) CreatePayment(ctx context.Context, params CreatePaymentParams) (Payment, error) {
	payment, err := scanPayment(r.pool.QueryRow(ctx, `
		INSERT INTO payments (order_id, provider, provider_txn_id, amount_cents, currency, status, payment_url)
		VALUES ($1, $2, $3, $4, $5, 'PENDING', $6)
		RETURNING `+paymentColumns,
		params.OrderID, params.Provider, params.ProviderTxnID,
		params.AmountCents, params.Currency, params.PaymentURL))
	if err != nil {
		return Payment{}, fmt.Errorf("create payment: %w", err)
	}
	return payment, nil
}

// FindPaymentByTxnID resolves a webhook's transaction id to our payment row.
func (r *Repo) FindPaymentByTxnID(ctx context.Context, provider, providerTxnID string) (Payment, error) {
	payment, err := scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE provider = $1 AND provider_txn_id = $2`,
		provider, providerTxnID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, apperr.NotFound("payment not found for transaction id")
		}
		return Payment{}, fmt.Errorf("find payment by txn id: %w", err)
	}
	return payment, nil
}

// ListPaymentsForOrder returns all payment attempts for an order.
func (r *Repo) ListPaymentsForOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at DESC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments for order: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

// SupersedePendingPayments fails every still-pending attempt for the order so
// only the newest link can settle it.
func (r *Repo) SupersedePendingPayments(ctx context.Context, orderID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET status = 'FAILED', error = 'superseded by a newer payment link', updated_at = NOW()
		WHERE order_id = $1 AND status = 'PENDING'`, orderID)
	if err != nil {
		return fmt.Errorf("supersede pending payments: %w", err)
	}
	return nil
}

// CompletePayment moves PENDING -> COMPLETED. A duplicate webhook finds the
// row already completed and reports not applied.
func (r *Repo) CompletePayment(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET status = 'COMPLETED', paid_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'`, id)
	if err != nil {
		return false, fmt.Errorf("complete payment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FailPayment moves PENDING -> FAILED.
func (r *Repo) FailPayment(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET status = 'FAILED', error = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'`, id, reason)
	if err != nil {
		return false, fmt.Errorf("fail payment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkOrderPaid moves PENDING or COD_CONFIRMED -> PAID.
func (r *Repo) MarkOrderPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'PAID', updated_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'COD_CONFIRMED')`, id)
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ConfirmOrderCOD moves PENDING -> COD_CONFIRMED. It never overwrites PAID.
func (r *Repo) ConfirmOrderCOD(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'COD_CONFIRMED', updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'`, id)
	if err != nil {
		return false, fmt.Errorf("confirm order cod: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CancelOrder moves PENDING or COD_CONFIRMED -> CANCELLED.
func (r *Repo) CancelOrder(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'CANCELLED', updated_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'COD_CONFIRMED')`, id)
	if err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateOrderStatus moves the order to status if its current status is one of
// from.
func (r *Repo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, to OrderStatus, from ...OrderStatus) (bool, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)`, id, string(to), allowed)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repo) itemsForOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, name, quantity, unit_price_cents
		FROM order_items WHERE order_id = $1 ORDER BY name`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID,
			&item.Name, &item.Quantity, &item.UnitPriceCents); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.LeadID, &o.Status, &o.TotalCents, &o.Currency,
		&o.Notes, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func scanPayment(row rowScanner) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Provider, &p.ProviderTxnID, &p.AmountCents,
		&p.Currency, &p.Status, &p.PaymentURL, &p.Error, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
