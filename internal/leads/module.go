// Package leads provides the lead management bounded context: the funnel
// entity, its append-only activity timeline, and the call-trigger endpoint.
package leads

import (
	apphttp "github.com/iwanfadzly/call/internal/http"
	"github.com/iwanfadzly/call/internal/leads/handler"
	"github.com/iwanfadzly/call/internal/leads/repository"
	"github.com/iwanfadzly/call/internal/leads/service"
	"github.com/iwanfadzly/call/internal/scheduler"
	"github.com/iwanfadzly/call/platform/logger"
	"github.com/iwanfadzly/call/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, enqueuer scheduler.Enqueuer, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	h := handler.New(svc, enqueuer, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the service layer for cross-module adapters.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for cross-module adapters.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts lead routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/leads")
	group.GET("", m.handler.List)
	group.POST("", m.handler.Create)
	group.GET("/:id", m.handler.GetByID)
	group.GET("/:id/timeline", m.handler.Timeline)
	group.POST("/:id/call", m.handler.Call)
	group.POST("/:id/dnc", m.handler.MarkDNC)
}

var _ apphttp.Module = (*Module)(nil)
