package catalog

import (
	"net/http"

	apphttp "github.com/iwanfadzly/call/internal/http"
	"github.com/iwanfadzly/call/platform/httpkit"
	"github.com/iwanfadzly/call/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the catalog module implementing http.Module.
type Module struct {
	repo *Repository
	val  *validator.Validator
}

// NewModule creates the catalog module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	return &Module{repo: NewRepository(pool), val: val}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "catalog"
}

// Repository returns the product repository for cross-module adapters.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts product routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/products")
	group.GET("", m.list)
	group.POST("", m.create)
	group.GET("/:id", m.getByID)
	group.DELETE("/:id", m.deactivate)
}

type createProductRequest struct {
	SKU        string `json:"sku" validate:"required,max=64"`
	Name       string `json:"name" validate:"required,max=200"`
	PriceCents int64  `json:"priceCents" validate:"required,min=1"`
	Currency   string `json:"currency,omitempty" validate:"omitempty,len=3"`
}

func (m *Module) list(c *gin.Context) {
	products, err := m.repo.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, products)
}

func (m *Module) create(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := m.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	product, err := m.repo.Create(c.Request.Context(), CreateProductParams{
		SKU:        req.SKU,
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Currency:   req.Currency,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, product)
}

func (m *Module) getByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid product id", nil)
		return
	}

	product, err := m.repo.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, product)
}

func (m *Module) deactivate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid product id", nil)
		return
	}

	if err := m.repo.Deactivate(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

var _ apphttp.Module = (*Module)(nil)
