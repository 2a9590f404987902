package transport

import (
	"time"

	"github.com/iwanfadzly/call/internal/orders/repository"

	"github.com/google/uuid"
)

// CreateOrderRequest creates an order for a lead.
type CreateOrderRequest struct {
	LeadID string             `json:"leadId" validate:"required,uuid"`
	Notes  string             `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Items  []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// OrderItemRequest is one requested order line.
type OrderItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// UpdateOrderStatusRequest moves an order through a fulfillment step.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=SHIPPED DELIVERED REFUNDED"`
}

// OrderItemResponse is the API shape of an order line.
type OrderItemResponse struct {
	ProductID      uuid.UUID `json:"productId"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
}

// OrderResponse is the API shape of an order.
type OrderResponse struct {
	ID         uuid.UUID           `json:"id"`
	LeadID     uuid.UUID           `json:"leadId"`
	Status     string              `json:"status"`
	TotalCents int64               `json:"totalCents"`
	Currency   string              `json:"currency"`
	Notes      string              `json:"notes,omitempty"`
	Items      []OrderItemResponse `json:"items"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// PaymentResponse is the API shape of a payment attempt.
type PaymentResponse struct {
	ID            uuid.UUID  `json:"id"`
	OrderID       uuid.UUID  `json:"orderId"`
	Provider      string     `json:"provider"`
	ProviderTxnID string     `json:"providerTxnId"`
	AmountCents   int64      `json:"amountCents"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	PaymentURL    string     `json:"paymentUrl,omitempty"`
	Error         string     `json:"error,omitempty"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// ToOrderResponse maps a repository order to its API shape.
func ToOrderResponse(order repository.Order) OrderResponse {
	items := make([]OrderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemResponse{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}
	return OrderResponse{
		ID:         order.ID,
		LeadID:     order.LeadID,
		Status:     string(order.Status),
		TotalCents: order.TotalCents,
		Currency:   order.Currency,
		Notes:      order.Notes,
		Items:      items,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
}

// ToPaymentResponse maps a repository payment to its API shape.
func ToPaymentResponse(p repository.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Provider:      p.Provider,
		ProviderTxnID: p.ProviderTxnID,
		AmountCents:   p.AmountCents,
		Currency:      p.Currency,
		Status:        string(p.Status),
		PaymentURL:    p.PaymentURL,
		Error:         p.Error,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
	}
}
