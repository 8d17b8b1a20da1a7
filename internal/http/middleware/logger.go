package middleware

import (
	"time"

	"conductor/internal/utils"

	"github.com/gin-gonic/gin"
)

// Logger prints one structured line per request including request_id.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		log := utils.Logger()
		event := log.Info()
		if status := c.Writer.Status(); status >= 500 {
			event = log.Error()
		} else if status >= 400 {
			event = log.Warn()
		}
		event.
			Str("module", "HTTP").
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Float64("latency_ms", float64(latency.Microseconds())/1000.0).
			Str("ip", c.ClientIP()).
			Msg("request")
	}
}
