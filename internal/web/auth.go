package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"analyzeit/internal/identity"
	"analyzeit/internal/session"
	"analyzeit/internal/shared/server/middleware"
	"analyzeit/internal/shared/server/respond"
	"analyzeit/internal/shared/telemetry"
)

const resetSentMessage = "E-mail enviado com sucesso! Verifique sua caixa de entrada para instruções sobre como redefinir sua senha."

const resetDoneMessage = "Senha redefinida com sucesso. Você já pode entrar com a nova senha."

type authPage struct {
	Title     string
	Email     string
	Name      string
	Error     string
	Success   string
	Code      string
	Providers []string
}

func (h *Handler) renderAuth(c *gin.Context, status int, name string, page authPage) {
	page.Providers = h.Providers
	respond.HTML(c, status, h.tmpl, name, page)
}

func (h *Handler) loginPage(c *gin.Context) {
	h.renderAuth(c, http.StatusOK, "login.html", authPage{Title: "Entrar"})
}

func (h *Handler) login(c *gin.Context) {
	var creds session.Credentials
	if err := c.ShouldBind(&creds); err != nil {
		h.renderAuth(c, http.StatusBadRequest, "login.html", authPage{Title: "Entrar", Error: identity.DefaultMessage})
		return
	}
	if err := h.Sessions.Login(c, creds); err != nil {
		logAuthFailure(c, "login", err)
		h.renderAuth(c, http.StatusOK, "login.html", authPage{
			Title: "Entrar",
			Email: creds.Email,
			Error: identity.Message(err),
		})
	}
}

func (h *Handler) loginWithProvider(c *gin.Context) {
	if err := h.Sessions.LoginWithProvider(c, c.Param("provider")); err != nil {
		logAuthFailure(c, "provider_redirect", err)
		h.renderAuth(c, http.StatusOK, "login.html", authPage{Title: "Entrar", Error: identity.ProviderMessage})
	}
}

func (h *Handler) providerCallback(c *gin.Context) {
	kind := c.Param("provider")
	if denied := c.Query("error"); denied != "" {
		telemetry.Info("auth.provider_denied", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"provider":   kind,
			"reason":     denied,
		})
		h.renderAuth(c, http.StatusOK, "login.html", authPage{Title: "Entrar", Error: identity.ProviderMessage})
		return
	}
	if err := h.Sessions.CompleteProviderLogin(c, kind, c.Query("state"), c.Query("code")); err != nil {
		logAuthFailure(c, "provider_callback", err)
		h.renderAuth(c, http.StatusOK, "login.html", authPage{Title: "Entrar", Error: identity.ProviderMessage})
	}
}

func (h *Handler) registerPage(c *gin.Context) {
	h.renderAuth(c, http.StatusOK, "register.html", authPage{Title: "Cadastre-se"})
}

func (h *Handler) register(c *gin.Context) {
	var creds session.Credentials
	_ = c.ShouldBind(&creds)
	name := strings.TrimSpace(c.PostForm("displayName"))
	if err := h.Sessions.Register(c, creds, name); err != nil {
		logAuthFailure(c, "register", err)
		h.renderAuth(c, http.StatusOK, "register.html", authPage{
			Title: "Cadastre-se",
			Email: creds.Email,
			Name:  name,
			Error: identity.Message(err),
		})
	}
}

func (h *Handler) resetPage(c *gin.Context) {
	h.renderAuth(c, http.StatusOK, "reset.html", authPage{
		Title: "Recuperar senha",
		Code:  c.Query("oobCode"),
	})
}

func (h *Handler) reset(c *gin.Context) {
	page := authPage{Title: "Recuperar senha"}
	ctx := c.Request.Context()

	if code := c.PostForm("oobCode"); code != "" {
		page.Code = code
		if err := h.Resets.ConfirmPasswordReset(ctx, code, c.PostForm("password")); err != nil {
			logAuthFailure(c, "reset_confirm", err)
			page.Error = identity.Message(err)
		} else {
			page.Success = resetDoneMessage
		}
		h.renderAuth(c, http.StatusOK, "reset.html", page)
		return
	}

	page.Email = c.PostForm("email")
	if err := h.Resets.SendPasswordReset(ctx, page.Email); err != nil {
		logAuthFailure(c, "reset_send", err)
		page.Error = identity.Message(err)
	} else {
		page.Success = resetSentMessage
	}
	h.renderAuth(c, http.StatusOK, "reset.html", page)
}

func (h *Handler) publicPage(c *gin.Context) {
	s, _ := session.FromContext(c)
	respond.HTML(c, http.StatusOK, h.tmpl, "public.html", gin.H{"Title": "AnalyzeIt", "Session": s})
}

func (h *Handler) logout(c *gin.Context) {
	h.Sessions.Logout(c)
}

func logAuthFailure(c *gin.Context, op string, err error) {
	telemetry.Info("auth.failed", map[string]any{
		"request_id": middleware.RequestIDFromContext(c),
		"op":         op,
		"code":       identity.Code(err),
		"error":      err,
	})
}
