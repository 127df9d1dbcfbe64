package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"analyzeit/internal/shared/telemetry"
)

// Keys set by the request id and session middleware. They are repeated here
// because middleware depends on this package.
const (
	requestIDKey = "requestId"
	userIDKey    = "userId"
)

// ErrorBody is the error object sent to script callers.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error logs and aborts with the JSON error envelope. Client mistakes are
// logged as warnings so that error lines stay meaningful.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString(requestIDKey),
	}
	if userID := c.GetString(userIDKey); userID != "" {
		fields["user_id"] = userID
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{Code: code, Message: message, Details: details},
	})
}
