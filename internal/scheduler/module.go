// Package scheduler provides the durable job queue: three lanes (calls,
// whatsapp, exports) backed by redis with at-least-once delivery,
// exponential-backoff retries, and per-lane observability.
package scheduler

import (
	apphttp "github.com/iwanfadzly/call/internal/http"
	"github.com/iwanfadzly/call/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module exposes queue observability over HTTP.
type Module struct {
	inspector *Inspector
}

func NewModule(inspector *Inspector) *Module {
	return &Module{inspector: inspector}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "jobs"
}

// RegisterRoutes mounts the job observability routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/jobs")
	group.GET("/:lane/stats", m.handleStats)
	group.GET("/:lane/tasks/:id", m.handleJob)
}

func (m *Module) handleStats(c *gin.Context) {
	stats, err := m.inspector.Stats(c.Param("lane"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, stats)
}

func (m *Module) handleJob(c *gin.Context) {
	status, err := m.inspector.Job(c.Param("lane"), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, status)
}

var _ apphttp.Module = (*Module)(nil)
