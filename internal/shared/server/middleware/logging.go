package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"analyzeit/internal/shared/telemetry"
)

// Logging emits a structured log per request. Event-stream requests are
// logged once, when the stream closes.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		telemetry.Info("request.complete", map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"user_id":     c.GetString(UserIDKey),
			"analysis_id": c.GetString(AnalysisIDKey),
			"view_id":     c.GetString(ViewIDKey),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})
	}
}
