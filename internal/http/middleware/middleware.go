package middleware

import (
	"time"

	"github.com/iwanfadzly/call/platform/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs every request with latency using the structured logger.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.HTTPRequest(
			c.Request.Method,
			c.FullPath(),
			c.Writer.Status(),
			float64(time.Since(start).Microseconds())/1000.0,
			c.ClientIP(),
		)
	}
}
