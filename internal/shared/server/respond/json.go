package respond

import "github.com/gin-gonic/gin"

// JSON writes a JSON body. Every JSON answer here is per-user state
// (session, stats, upload flow), so none of it may be cached.
func JSON(c *gin.Context, status int, payload any) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, payload)
}
