package router

import (
	"net/http"

	apphttp "github.com/iwanfadzly/call/internal/http"
	"github.com/iwanfadzly/call/internal/http/middleware"
	"github.com/iwanfadzly/call/platform/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// New builds the Gin engine, mounts infrastructure routes, and registers all
// domain modules.
func New(env string, log *logger.Logger, pool *pgxpool.Pool, modules []apphttp.Module) *gin.Engine {
	if env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(log))
	engine.Use(cors.Default())

	engine.GET("/api/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")
	ctx := &apphttp.RouterContext{
		Engine:   engine,
		V1:       v1,
		Webhooks: v1.Group("/webhooks"),
	}

	for _, m := range modules {
		m.RegisterRoutes(ctx)
		log.Info("module routes registered", "module", m.Name())
	}

	return engine
}
