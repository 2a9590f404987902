// Package service coordinates orders, payment links and webhook
// reconciliation. Payment state may be touched concurrently by webhooks, the
// verify fallback and COD confirmations; every mutation goes through a
// conditional repository transition so exactly one channel wins.
package service

import (
	"context"
	"fmt"

	"github.com/iwanfadzly/call/internal/orders/payment"
	"github.com/iwanfadzly/call/internal/orders/repository"
	"github.com/iwanfadzly/call/internal/scheduler"
	"github.com/iwanfadzly/call/platform/apperr"
	"github.com/iwanfadzly/call/platform/logger"

	"github.com/google/uuid"
)

// LeadInfo is the slice of a lead the orders service needs.
type LeadInfo struct {
	ID    uuid.UUID
	Phone string
	Name  string
	Email string
}

// LeadDirectory resolves leads owned by another module.
type LeadDirectory interface {
	LeadByID(ctx context.Context, id uuid.UUID) (LeadInfo, error)
}

// TimelineWriter appends order and payment entries to a lead's timeline.
type TimelineWriter interface {
	AppendOrderActivity(ctx context.Context, leadID uuid.UUID, title, content string, metadata map[string]any) error
	AppendPaymentActivity(ctx context.Context, leadID uuid.UUID, title, content string, metadata map[string]any) error
}

// ProductInfo is a catalog product snapshot.
type ProductInfo struct {
	ID         uuid.UUID
	Name       string
	PriceCents int64
	Currency   string
}

// ProductCatalog resolves products for price snapshotting.
type ProductCatalog interface {
	ProductByID(ctx context.Context, id uuid.UUID) (ProductInfo, error)
}

// Service orchestrates the order and payment lifecycle.
type Service struct {
	repo     repository.Repository
	gateway  payment.PaymentProvider
	leads    LeadDirectory
	catalog  ProductCatalog
	timeline TimelineWriter
	enqueuer scheduler.Enqueuer
	baseURL  string
	log      *logger.Logger
}

// New creates a new orders service. baseURL is the public address payment
// callbacks and redirects are built from.
func New(repo repository.Repository, gateway payment.PaymentProvider, leads LeadDirectory,
	catalog ProductCatalog, timeline TimelineWriter, enqueuer scheduler.Enqueuer,
	baseURL string, log *logger.Logger) *Service {

	return &Service{
		repo:     repo,
		gateway:  gateway,
		leads:    leads,
		catalog:  catalog,
		timeline: timeline,
		enqueuer: enqueuer,
		baseURL:  baseURL,
		log:      log,
	}
}

// ItemRequest is one requested order line before price snapshotting.
type ItemRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrderParams create an order for a lead.
type CreateOrderParams struct {
	LeadID uuid.UUID
	Notes  string
	Items  []ItemRequest
}

// CreateOrder snapshots catalog prices onto the order lines and persists the
// order. The total is always recomputed from the snapshots.
func (s *Service) CreateOrder(ctx context.Context, params CreateOrderParams) (repository.Order, error) {
	if len(params.Items) == 0 {
		return repository.Order{}, apperr.Validation("an order needs at least one item")
	}

	if _, err := s.leads.LeadByID(ctx, params.LeadID); err != nil {
		return repository.Order{}, err
	}

	currency := ""
	items := make([]repository.ItemParams, 0, len(params.Items))
	for _, req := range params.Items {
		if req.Quantity < 1 {
			return repository.Order{}, apperr.Validation("item quantity must be at least 1")
		}
		product, err := s.catalog.ProductByID(ctx, req.ProductID)
		if err != nil {
			return repository.Order{}, err
		}
		if currency == "" {
			currency = product.Currency
		} else if currency != product.Currency {
			return repository.Order{}, apperr.Validation("order items must share one currency")
		}
		items = append(items, repository.ItemParams{
			ProductID:      product.ID,
			Name:           product.Name,
			Quantity:       req.Quantity,
			UnitPriceCents: product.PriceCents,
		})
	}

	order, err := s.repo.CreateOrder(ctx, repository.CreateOrderParams{
		LeadID:   params.LeadID,
		Currency: currency,
		Notes:    params.Notes,
		Items:    items,
	})
	if err != nil {
		return repository.Order{}, err
	}

	s.appendOrderActivity(ctx, order.LeadID, "Order Created",
		fmt.Sprintf("%d item(s), total %d %s", len(order.Items), order.TotalCents, order.Currency),
		map[string]any{"orderId": order.ID.String(), "totalCents": order.TotalCents})

	s.log.Info("order created", "order_id", order.ID, "lead_id", order.LeadID, "total_cents", order.TotalCents)
	return order, nil
}

// GetOrder retrieves an order with its items.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (repository.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListForLead returns the most recent orders for a lead.
func (s *Service) ListForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.Order, error) {
	return s.repo.ListOrdersForLead(ctx, leadID, limit)
}

// ListPayments returns the payment attempts for an order.
func (s *Service) ListPayments(ctx context.Context, orderID uuid.UUID) ([]repository.Payment, error) {
	return s.repo.ListPaymentsForOrder(ctx, orderID)
}

// CreatePaymentLink asks the active gateway for a hosted payment page and
// records the pending payment attempt keyed by the provider's transaction id.
func (s *Service) CreatePaymentLink(ctx context.Context, orderID uuid.UUID) (repository.Payment, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return repository.Payment{}, err
	}
	if order.Status != repository.OrderPending {
		return repository.Payment{}, apperr.Conflict(
			fmt.Sprintf("cannot create a payment link for a %s order", order.Status))
	}

	lead, err := s.leads.LeadByID(ctx, order.LeadID)
	if err != nil {
		return repository.Payment{}, err
	}

	link, err := s.gateway.CreatePaymentLink(ctx, payment.LinkRequest{
		OrderID:       order.ID.String(),
		AmountCents:   order.TotalCents,
		Currency:      order.Currency,
		Description:   fmt.Sprintf("Order %s", shortID(order.ID)),
		CustomerName:  lead.Name,
		CustomerEmail: lead.Email,
		CustomerPhone: lead.Phone,
		RedirectURL:   s.baseURL + "/payment/complete",
		CallbackURL:   s.baseURL + "/api/v1/webhooks/payments/" + s.gateway.Name(),
	})
	if err != nil {
		return repository.Payment{}, err
	}

	// The order carries at most one live link. Older pending attempts are
	// failed only after the gateway accepted the new one, so a gateway outage
	// leaves the previous link usable.
	if err := s.repo.SupersedePendingPayments(ctx, order.ID); err != nil {
		return repository.Payment{}, err
	}

	pay, err := s.repo.CreatePayment(ctx, repository.CreatePaymentParams{
		OrderID:       order.ID,
		Provider:      s.gateway.Name(),
		ProviderTxnID: link.ProviderTxnID,
		AmountCents:   order.TotalCents,
		Currency:      order.Currency,
		PaymentURL:    link.URL,
	})
	if err != nil {
		return repository.Payment{}, err
	}

	s.log.Info("payment link created",
		"order_id", order.ID, "payment_id", pay.ID,
		"provider", pay.Provider, "provider_txn_id", pay.ProviderTxnID)
	return pay, nil
}

// ReconcilePayment applies a normalized gateway notification. Unknown
// transaction ids are logged and acked so the gateway stops redelivering.
// Unverified notifications are confirmed against the gateway API before any
// state moves. The whole flow is idempotent: only the first completion flips
// the payment and the order, and only that winner writes the timeline entry
// and sends the confirmation message.
func (s *Service) ReconcilePayment(ctx context.Context, gateway payment.PaymentProvider, notif payment.Notification) error {
	pay, err := s.repo.FindPaymentByTxnID(ctx, gateway.Name(), notif.ProviderTxnID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.Warn("payment notification for unknown transaction",
				"provider", gateway.Name(), "provider_txn_id", notif.ProviderTxnID)
			return nil
		}
		return err
	}

	paid := notif.Paid
	if paid && !notif.Verified {
		paid, err = gateway.VerifyPayment(ctx, notif.ProviderTxnID)
		if err != nil {
			return err
		}
		if !paid {
			s.log.Warn("unverified paid notification contradicted by gateway",
				"payment_id", pay.ID, "provider", gateway.Name())
			return nil
		}
	}

	if !paid {
		if notif.FailureReason == "" {
			return nil
		}
		applied, err := s.repo.FailPayment(ctx, pay.ID, notif.FailureReason)
		if err != nil {
			return err
		}
		if applied {
			s.log.Info("payment failed", "payment_id", pay.ID, "reason", notif.FailureReason)
		}
		return nil
	}

	applied, err := s.repo.CompletePayment(ctx, pay.ID)
	if err != nil {
		return err
	}
	if !applied && pay.Status != repository.PaymentCompleted {
		s.log.Debug("payment notification dropped", "payment_id", pay.ID, "status", string(pay.Status))
		return nil
	}

	// A redelivery after a crash between the payment and order transitions
	// still has to move the order. A redelivery after full success sees both
	// transitions report not applied and stops here without repeating the
	// side effects.
	orderMoved, err := s.repo.MarkOrderPaid(ctx, pay.OrderID)
	if err != nil {
		return err
	}
	if !applied && !orderMoved {
		return nil
	}

	order, err := s.repo.GetOrder(ctx, pay.OrderID)
	if err != nil {
		return err
	}

	s.appendPaymentActivity(ctx, order.LeadID, "Payment Received",
		fmt.Sprintf("%d %s via %s", pay.AmountCents, pay.Currency, pay.Provider),
		map[string]any{"orderId": order.ID.String(), "paymentId": pay.ID.String()})

	s.sendConfirmation(ctx, order, "payment_received")

	s.log.Info("payment completed",
		"payment_id", pay.ID, "order_id", order.ID, "provider", pay.Provider)
	return nil
}

// ConfirmCOD marks an order cash-on-delivery. A PAID order is never
// downgraded; confirming an already COD order is a no-op.
func (s *Service) ConfirmCOD(ctx context.Context, orderID uuid.UUID) (repository.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return repository.Order{}, err
	}

	applied, err := s.repo.ConfirmOrderCOD(ctx, orderID)
	if err != nil {
		return repository.Order{}, err
	}
	if !applied {
		if order.Status == repository.OrderCODConfirmed {
			return order, nil
		}
		return repository.Order{}, apperr.Conflict(
			fmt.Sprintf("cannot confirm COD on a %s order", order.Status))
	}

	order.Status = repository.OrderCODConfirmed

	s.appendOrderActivity(ctx, order.LeadID, "COD Confirmed",
		"Customer chose cash on delivery",
		map[string]any{"orderId": order.ID.String()})

	s.sendConfirmation(ctx, order, "cod_confirmed")

	s.log.Info("order confirmed cod", "order_id", order.ID, "lead_id", order.LeadID)
	return order, nil
}

// MarkPaid records an out-of-band settlement, e.g. an operator or a customer
// keyword confirming a bank transfer.
func (s *Service) MarkPaid(ctx context.Context, orderID uuid.UUID, source string) (repository.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return repository.Order{}, err
	}

	applied, err := s.repo.MarkOrderPaid(ctx, orderID)
	if err != nil {
		return repository.Order{}, err
	}
	if !applied {
		if order.Status == repository.OrderPaid {
			return order, nil
		}
		return repository.Order{}, apperr.Conflict(
			fmt.Sprintf("cannot mark a %s order paid", order.Status))
	}

	order.Status = repository.OrderPaid

	s.appendPaymentActivity(ctx, order.LeadID, "Payment Received",
		"Marked paid via "+source,
		map[string]any{"orderId": order.ID.String(), "source": source})

	s.sendConfirmation(ctx, order, "payment_received")

	s.log.Info("order marked paid", "order_id", order.ID, "source", source)
	return order, nil
}

// ConfirmCODLatest applies the COD keyword shortcut to the lead's newest order.
func (s *Service) ConfirmCODLatest(ctx context.Context, leadID uuid.UUID) (repository.Order, error) {
	order, err := s.repo.LatestOrderForLead(ctx, leadID)
	if err != nil {
		return repository.Order{}, err
	}
	return s.ConfirmCOD(ctx, order.ID)
}

// MarkPaidLatest applies the PAID keyword shortcut to the lead's newest order.
func (s *Service) MarkPaidLatest(ctx context.Context, leadID uuid.UUID) (repository.Order, error) {
	order, err := s.repo.LatestOrderForLead(ctx, leadID)
	if err != nil {
		return repository.Order{}, err
	}
	return s.MarkPaid(ctx, order.ID, "whatsapp keyword")
}

// fulfillmentTransitions lists, per target status, which current statuses an
// explicit status update may move away from. Settlement statuses are owned by
// the payment and COD flows and are not reachable from here.
var fulfillmentTransitions = map[repository.OrderStatus][]repository.OrderStatus{
	repository.OrderShipped:   {repository.OrderPaid, repository.OrderCODConfirmed},
	repository.OrderDelivered: {repository.OrderShipped},
	repository.OrderRefunded:  {repository.OrderPaid, repository.OrderShipped, repository.OrderDelivered},
}

var fulfillmentTitles = map[repository.OrderStatus]string{
	repository.OrderShipped:   "Order Shipped",
	repository.OrderDelivered: "Order Delivered",
	repository.OrderRefunded:  "Order Refunded",
}

// UpdateStatus moves a settled order through the fulfillment steps: SHIPPED,
// DELIVERED and REFUNDED. Repeating an update is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, orderID uuid.UUID, to repository.OrderStatus) (repository.Order, error) {
	from, ok := fulfillmentTransitions[to]
	if !ok {
		return repository.Order{}, apperr.Validation(
			fmt.Sprintf("status %s cannot be set directly", to))
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return repository.Order{}, err
	}

	applied, err := s.repo.UpdateOrderStatus(ctx, orderID, to, from...)
	if err != nil {
		return repository.Order{}, err
	}
	if !applied {
		if order.Status == to {
			return order, nil
		}
		return repository.Order{}, apperr.Conflict(
			fmt.Sprintf("cannot move a %s order to %s", order.Status, to))
	}

	order.Status = to

	s.appendOrderActivity(ctx, order.LeadID, fulfillmentTitles[to], "",
		map[string]any{"orderId": order.ID.String(), "status": string(to)})

	s.log.Info("order status updated", "order_id", order.ID, "status", string(to))
	return order, nil
}

// CancelOrder cancels a not-yet-paid order.
func (s *Service) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	applied, err := s.repo.CancelOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !applied {
		return apperr.Conflict(fmt.Sprintf("cannot cancel a %s order", order.Status))
	}

	s.appendOrderActivity(ctx, order.LeadID, "Order Cancelled", "",
		map[string]any{"orderId": order.ID.String()})
	return nil
}

// sendConfirmation queues a templated WhatsApp message. Failure to enqueue is
// logged, never fatal: the money flow does not depend on the notification.
func (s *Service) sendConfirmation(ctx context.Context, order repository.Order, template string) {
	if s.enqueuer == nil {
		return
	}
	_, err := s.enqueuer.EnqueueWhatsApp(ctx, scheduler.WhatsAppSendPayload{
		LeadID:       order.LeadID.String(),
		OrderID:      order.ID.String(),
		TemplateName: template,
		TemplateData: map[string]string{
			"orderRef":   shortID(order.ID),
			"totalCents": fmt.Sprintf("%d", order.TotalCents),
			"currency":   order.Currency,
		},
	}, scheduler.EnqueueOptions{})
	if err != nil {
		s.log.Error("enqueue order confirmation", "order_id", order.ID, "error", err)
	}
}

func (s *Service) appendOrderActivity(ctx context.Context, leadID uuid.UUID, title, content string, metadata map[string]any) {
	if s.timeline == nil {
		return
	}
	if err := s.timeline.AppendOrderActivity(ctx, leadID, title, content, metadata); err != nil {
		s.log.Error("append order activity", "lead_id", leadID, "error", err)
	}
}

func (s *Service) appendPaymentActivity(ctx context.Context, leadID uuid.UUID, title, content string, metadata map[string]any) {
	if s.timeline == nil {
		return
	}
	if err := s.timeline.AppendPaymentActivity(ctx, leadID, title, content, metadata); err != nil {
		s.log.Error("append payment activity", "lead_id", leadID, "error", err)
	}
}

// shortID is the first uuid block, enough for human references.
func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
