package middleware

import "github.com/gin-gonic/gin"

// Context keys shared by middleware and handlers.
const (
	UserIDKey     = "userId"
	AnalysisIDKey = "analysisId"
	ViewIDKey     = "viewId"
)

// UserIDFromContext fetches the user ID attached by the session middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(UserIDKey)
}
