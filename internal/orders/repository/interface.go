// Package repository persists orders and their payments. Both state machines
// are enforced with conditional updates so webhook redeliveries and races
// between channels (online payment vs COD confirmation) resolve to a single
// winner.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending      OrderStatus = "PENDING"
	OrderPaid         OrderStatus = "PAID"
	OrderCODConfirmed OrderStatus = "COD_CONFIRMED"
	OrderShipped      OrderStatus = "SHIPPED"
	OrderDelivered    OrderStatus = "DELIVERED"
	OrderCancelled    OrderStatus = "CANCELLED"
	OrderRefunded     OrderStatus = "REFUNDED"
)

// PaymentStatus is the lifecycle state of a payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Order is a sale attached to a lead. TotalCents is the sum of its items,
// recomputed server-side at creation.
type Order struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	Status     OrderStatus
	TotalCents int64
	Currency   string
	Notes      string
	Items      []OrderItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OrderItem is a line on an order with the product price snapshotted at
// purchase time.
type OrderItem struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	ProductID      uuid.UUID
	Name           string
	Quantity       int
	UnitPriceCents int64
}

// Payment is one attempt to collect an order's total through a provider.
type Payment struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	Provider       string
	ProviderTxnID  string
	AmountCents    int64
	Currency       string
	Status         PaymentStatus
	PaymentURL     string
	Error          string
	PaidAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ItemParams is one requested line with its snapshotted price.
type ItemParams struct {
	ProductID      uuid.UUID
	Name           string
	Quantity       int
	UnitPriceCents int64
}

// CreateOrderParams create an order with its items in one transaction.
type CreateOrderParams struct {
	LeadID   uuid.UUID
	Currency string
	Notes    string
	Items    []ItemParams
}

// CreatePaymentParams record a new pending payment attempt.
type CreatePaymentParams struct {
	OrderID       uuid.UUID
	Provider      string
	ProviderTxnID string
	AmountCents   int64
	Currency      string
	PaymentURL    string
}

// Repository is the persistence port for orders and payments.
type Repository interface {
	CreateOrder(ctx context.Context, params CreateOrderParams) (Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	ListOrdersForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]Order, error)
	// LatestOrderForLead returns the most recently created order regardless of
	// status. Inbound keyword shortcuts act on this order.
	LatestOrderForLead(ctx context.Context, leadID uuid.UUID) (Order, error)

	CreatePayment(ctx context.Context, params CreatePaymentParams) (Payment, error)
	FindPaymentByTxnID(ctx context.Context, provider, providerTxnID string) (Payment, error)
	ListPaymentsForOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error)
	// SupersedePendingPayments fails every still-pending attempt for the
	// order. Issuing a new payment link invalidates the older links.
	SupersedePendingPayments(ctx context.Context, orderID uuid.UUID) error

	// Transitions return whether the row actually moved; false with a nil
	// error means the precondition status did not hold.
	CompletePayment(ctx context.Context, id uuid.UUID) (bool, error)
	FailPayment(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	MarkOrderPaid(ctx context.Context, id uuid.UUID) (bool, error)
	ConfirmOrderCOD(ctx context.Context, id uuid.UUID) (bool, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (bool, error)
	// UpdateOrderStatus moves the order to status if its current status is one
	// of from. Used for the fulfillment steps after settlement.
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, to OrderStatus, from ...OrderStatus) (bool, error)
}
