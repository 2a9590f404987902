// Package calls provides the outbound calling bounded context: call logs,
// the provider adapters and the webhook reconciler.
package calls

import (
	"github.com/iwanfadzly/call/internal/calls/handler"
	"github.com/iwanfadzly/call/internal/calls/provider"
	"github.com/iwanfadzly/call/internal/calls/repository"
	"github.com/iwanfadzly/call/internal/calls/service"
	apphttp "github.com/iwanfadzly/call/internal/http"
	"github.com/iwanfadzly/call/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the calls bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the calls module. active is the provider
// used for new calls; providers holds every configured adapter for webhook
// verification.
func NewModule(pool *pgxpool.Pool, active provider.CallProvider, providers map[string]provider.CallProvider,
	leads service.LeadDirectory, timeline service.TimelineWriter, log *logger.Logger) *Module {

	repo := repository.New(pool)
	svc := service.New(repo, active, leads, timeline, log)
	h := handler.New(svc, providers, log)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "calls"
}

// Service returns the service layer for the worker binary and adapters.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts call routes and the provider webhook.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/calls/:id", m.handler.GetByID)
	ctx.V1.GET("/leads/:id/calls", m.handler.ListForLead)
	ctx.Webhooks.POST("/calls/:provider", m.handler.Webhook)
}

var _ apphttp.Module = (*Module)(nil)
