package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"analyzeit/internal/session"
	"analyzeit/internal/shared/server/respond"
)

// registerMeRoutes attaches the /me endpoint.
func registerMeRoutes(rg gin.IRoutes) {
	rg.GET("/me", meHandler)
}

func meHandler(c *gin.Context) {
	s, ok := session.FromContext(c)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid session", nil)
		return
	}

	response := gin.H{
		"userId":    s.UID,
		"name":      s.Name(),
		"expiresAt": s.ExpiresAt,
	}
	if s.Email != "" {
		response["email"] = s.Email
	}
	if s.PhotoURL != "" {
		response["picture"] = s.PhotoURL
	}

	respond.JSON(c, http.StatusOK, response)
}
