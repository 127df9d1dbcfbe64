package middleware

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"analyzeit/internal/guard"
	"analyzeit/internal/shared/telemetry"
)

// Guard runs the route guard on every navigation it applies to, reading only
// the named session cookie.
func Guard(cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !guard.Applies(path) {
			c.Next()
			return
		}

		value, err := readCookie(c.Request, cookieName)

		decision := guard.Decide(path, value != "", err)
		if decision.Action == guard.Redirect {
			if err != nil {
				telemetry.Warn("guard.cookie_error", map[string]any{
					"request_id": RequestIDFromContext(c),
					"path":       path,
					"error":      err,
				})
			}
			c.Redirect(http.StatusFound, decision.Location)
			c.Abort()
			return
		}
		c.Next()
	}
}

func readCookie(r *http.Request, name string) (string, error) {
	ck, err := r.Cookie(name)
	if errors.Is(err, http.ErrNoCookie) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return url.QueryUnescape(ck.Value)
}
