package web

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"analyzeit/internal/session"
	"analyzeit/internal/shared/util"
	"analyzeit/internal/upload"
)

// media serves a locally stored image. Keys are namespaced by the hashed
// owner id and a user may only read their own namespace.
func (h *Handler) media(c *gin.Context) {
	if h.Media == nil {
		c.Status(http.StatusNotFound)
		return
	}
	s, _ := session.FromContext(c)
	key := strings.TrimPrefix(c.Param("key"), "/")
	if util.KeyOwner(key) != util.OwnerNamespace(s.UID) {
		c.Status(http.StatusNotFound)
		return
	}

	rc, err := h.Media.Open(c.Request.Context(), key)
	if errors.Is(err, fs.ErrNotExist) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		h.renderError(c, http.StatusInternalServerError, "Não foi possível carregar a imagem.", err)
		return
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, 2*upload.MaxImageBytes))
	if err != nil {
		h.renderError(c, http.StatusInternalServerError, "Não foi possível carregar a imagem.", err)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
}
