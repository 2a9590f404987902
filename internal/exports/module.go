package exports

import (
	"net/http"

	apphttp "github.com/iwanfadzly/call/internal/http"
	"github.com/iwanfadzly/call/platform/httpkit"
	"github.com/iwanfadzly/call/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Module is the exports module implementing http.Module.
type Module struct {
	service *Service
	val     *validator.Validator
}

// NewModule creates the exports module.
func NewModule(svc *Service, val *validator.Validator) *Module {
	return &Module{service: svc, val: val}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "exports"
}

// Service returns the service layer for the worker binary.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts export routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/exports")
	group.POST("", m.request)
	group.GET("/:id", m.getByID)
}

type requestExportRequest struct {
	Type    string            `json:"type" validate:"required,oneof=LEADS CALLS ORDERS leads calls orders"`
	UserID  string            `json:"userId" validate:"required"`
	Filters map[string]string `json:"filters,omitempty"`
}

func (m *Module) request(c *gin.Context) {
	var req requestExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := m.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	job, err := m.service.Request(c.Request.Context(), req.Type, req.UserID, req.Filters)
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusAccepted, job)
}

func (m *Module) getByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid export id", nil)
		return
	}

	job, err := m.service.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, job)
}

var _ apphttp.Module = (*Module)(nil)
