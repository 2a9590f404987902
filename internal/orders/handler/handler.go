package handler

import (
	"io"
	"net/http"

	"github.com/iwanfadzly/call/internal/orders/payment"
	"github.com/iwanfadzly/call/internal/orders/repository"
	"github.com/iwanfadzly/call/internal/orders/service"
	"github.com/iwanfadzly/call/internal/orders/transport"
	"github.com/iwanfadzly/call/platform/httpkit"
	"github.com/iwanfadzly/call/platform/logger"
	"github.com/iwanfadzly/call/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxWebhookBody = 1 << 20

// Handler exposes order endpoints and the payment webhook.
type Handler struct {
	svc      *service.Service
	gateways map[string]payment.PaymentProvider
	val      *validator.Validator
	log      *logger.Logger
}

// New creates a new orders handler. gateways holds every configured payment
// adapter keyed by name for webhook dispatch.
func New(svc *service.Service, gateways map[string]payment.PaymentProvider, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{svc: svc, gateways: gateways, val: val, log: log}
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	leadID, err := uuid.Parse(req.LeadID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	items := make([]service.ItemRequest, len(req.Items))
	for i, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid product id", nil)
			return
		}
		items[i] = service.ItemRequest{ProductID: productID, Quantity: item.Quantity}
	}

	order, err := h.svc.CreateOrder(c.Request.Context(), service.CreateOrderParams{
		LeadID: leadID,
		Notes:  req.Notes,
		Items:  items,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.ToOrderResponse(order))
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "invalid order id")
	if !ok {
		return
	}

	order, err := h.svc.GetOrder(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOrderResponse(order))
}

func (h *Handler) ListForLead(c *gin.Context) {
	leadID, ok := parseID(c, "invalid lead id")
	if !ok {
		return
	}

	orders, err := h.svc.ListForLead(c.Request.Context(), leadID, 20)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]transport.OrderResponse, len(orders))
	for i, order := range orders {
		result[i] = transport.ToOrderResponse(order)
	}
	httpkit.OK(c, result)
}

func (h *Handler) ListPayments(c *gin.Context) {
	id, ok := parseID(c, "invalid order id")
	if !ok {
		return
	}

	payments, err := h.svc.ListPayments(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]transport.PaymentResponse, len(payments))
	for i, p := range payments {
		result[i] = transport.ToPaymentResponse(p)
	}
	httpkit.OK(c, result)
}

func (h *Handler) CreatePaymentLink(c *gin.Context) {
	id, ok := parseID(c, "invalid order id")
	if !ok {
		return
	}

	pay, err := h.svc.CreatePaymentLink(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToPaymentResponse(pay))
}

func (h *Handler) ConfirmCOD(c *gin.Context) {
	id, ok := parseID(c, "invalid order id")
	if !ok {
		return
	}

	order, err := h.svc.ConfirmCOD(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOrderResponse(order))
}

func (h *Handler) MarkPaid(c *gin.Context) {
	id, ok := parseID(c, "invalid order id")
	if !ok {
		return
	}

	order, err := h.svc.MarkPaid(c.Request.Context(), id, "operator")
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOrderResponse(order))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "invalid order id")
	if !ok {
		return
	}

	var req transport.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	order, err := h.svc.UpdateStatus(c.Request.Context(), id, repository.OrderStatus(req.Status))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOrderResponse(order))
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := parseID(c, "invalid order id")
	if !ok {
		return
	}

	if err := h.svc.CancelOrder(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// Webhook receives payment gateway callbacks. Signature failures answer 401
// without touching state; notifications for unknown transactions are acked.
func (h *Handler) Webhook(c *gin.Context) {
	name := c.Param("provider")
	gateway, ok := h.gateways[name]
	if !ok {
		h.log.WebhookRejected(name, "unknown payment provider")
		httpkit.Error(c, http.StatusNotFound, "unknown payment provider", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unreadable webhook body", nil)
		return
	}

	notif, err := gateway.ParseWebhook(payment.Callback{Header: c.Request.Header, Body: body})
	if err != nil {
		h.log.WebhookRejected(name, err.Error())
		if httpkit.HandleError(c, err) {
			return
		}
	}

	if err := h.svc.ReconcilePayment(c.Request.Context(), gateway, notif); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"received": true})
}

func parseID(c *gin.Context, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, message, nil)
		return uuid.Nil, false
	}
	return id, true
}
