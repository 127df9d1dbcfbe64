package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"analyzeit/internal/shared/server/respond"
	"analyzeit/internal/shared/telemetry"
)

const panicMessage = "Erro inesperado no servidor. Tente novamente."

// Recovery turns a panic into a 500. Pages get a plain text body, API and
// script callers get the JSON error envelope. Nothing is written when the
// handler already started the response, as with a live stream.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			telemetry.Error("http.panic", map[string]any{
				"request_id": RequestIDFromContext(c),
				"user_id":    UserIDFromContext(c),
				"error":      rec,
				"stack":      string(debug.Stack()),
				"path":       c.Request.URL.Path,
				"method":     c.Request.Method,
			})
			switch {
			case c.Writer.Written():
				c.Abort()
			case c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML:
				c.Header("Cache-Control", "no-store")
				c.Abort()
				c.String(http.StatusInternalServerError, panicMessage)
			default:
				respond.Error(c, http.StatusInternalServerError, "internal", panicMessage, nil)
			}
		}()
		c.Next()
	}
}
