package respond

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"analyzeit/internal/shared/telemetry"
)

// Executor is satisfied by *html/template.Template.
type Executor interface {
	ExecuteTemplate(w io.Writer, name string, data any) error
}

// HTML renders the named template into a buffer first so a template failure
// never produces a half-written page.
func HTML(c *gin.Context, status int, tmpl Executor, name string, data any) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		telemetry.Error("http.template_failed", map[string]any{
			"template":   name,
			"path":       c.Request.URL.Path,
			"request_id": c.GetString("requestId"),
			"error":      err,
		})
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
