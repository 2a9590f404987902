package reports

import (
	"strconv"
	"time"

	apphttp "github.com/iwanfadzly/call/internal/http"
	"github.com/iwanfadzly/call/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the reports module implementing http.Module.
type Module struct {
	repo *Repository
}

// NewModule creates the reports module.
func NewModule(pool *pgxpool.Pool) *Module {
	return &Module{repo: NewRepository(pool)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "reports"
}

// RegisterRoutes mounts report routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/reports")
	group.GET("/funnel", m.funnel)
	group.GET("/calls", m.calls)
	group.GET("/revenue", m.revenue)
	group.GET("/messages", m.messages)
}

func (m *Module) funnel(c *gin.Context) {
	rows, err := m.repo.Funnel(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, rows)
}

func (m *Module) calls(c *gin.Context) {
	stats, err := m.repo.Calls(c.Request.Context(), sinceParam(c))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, stats)
}

func (m *Module) revenue(c *gin.Context) {
	stats, err := m.repo.Revenue(c.Request.Context(), sinceParam(c))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, stats)
}

func (m *Module) messages(c *gin.Context) {
	stats, err := m.repo.Messages(c.Request.Context(), sinceParam(c))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, stats)
}

// sinceParam parses ?days=N, defaulting to the last 30 days.
func sinceParam(c *gin.Context) time.Time {
	days := 30
	if raw := c.Query("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 365 {
			days = parsed
		}
	}
	return time.Now().AddDate(0, 0, -days)
}

var _ apphttp.Module = (*Module)(nil)
