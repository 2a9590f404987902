// Package orders provides the sales bounded context: orders, payment links,
// the gateway adapters and payment reconciliation.
package orders

import (
	apphttp "github.com/iwanfadzly/call/internal/http"
	"github.com/iwanfadzly/call/internal/orders/handler"
	"github.com/iwanfadzly/call/internal/orders/payment"
	"github.com/iwanfadzly/call/internal/orders/repository"
	"github.com/iwanfadzly/call/internal/orders/service"
	"github.com/iwanfadzly/call/internal/scheduler"
	"github.com/iwanfadzly/call/platform/logger"
	"github.com/iwanfadzly/call/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the orders bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the orders module. active is the gateway
// used for new payment links; gateways holds every configured adapter for
// webhook dispatch.
func NewModule(pool *pgxpool.Pool, active payment.PaymentProvider, gateways map[string]payment.PaymentProvider,
	leads service.LeadDirectory, catalog service.ProductCatalog, timeline service.TimelineWriter,
	enqueuer scheduler.Enqueuer, baseURL string, val *validator.Validator, log *logger.Logger) *Module {

	repo := repository.New(pool)
	svc := service.New(repo, active, leads, catalog, timeline, enqueuer, baseURL, log)
	h := handler.New(svc, gateways, val, log)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "orders"
}

// Service returns the service layer for cross-module adapters.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts order routes and the payment webhook.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/orders")
	group.POST("", m.handler.Create)
	group.GET("/:id", m.handler.GetByID)
	group.GET("/:id/payments", m.handler.ListPayments)
	group.POST("/:id/payment-link", m.handler.CreatePaymentLink)
	group.POST("/:id/cod", m.handler.ConfirmCOD)
	group.POST("/:id/paid", m.handler.MarkPaid)
	group.PATCH("/:id/status", m.handler.UpdateStatus)
	group.DELETE("/:id", m.handler.Cancel)

	ctx.V1.GET("/leads/:id/orders", m.handler.ListForLead)
	ctx.Webhooks.POST("/payments/:provider", m.handler.Webhook)
}

var _ apphttp.Module = (*Module)(nil)
