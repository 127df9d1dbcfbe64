package web

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"analyzeit/internal/analyses"
	"analyzeit/internal/present"
	"analyzeit/internal/session"
	"analyzeit/internal/shared/server/middleware"
	"analyzeit/internal/shared/server/respond"
	"analyzeit/internal/shared/telemetry"
	"analyzeit/internal/stats"
	"analyzeit/internal/upload"
)

// maxUploadBody bounds the multipart request; anything between this and
// MaxImageBytes is rejected by the flow itself.
const maxUploadBody = 2*upload.MaxImageBytes + 1<<20

const defaultAvatar = "/static/default-avatar.svg"

type chrome struct {
	Title   string
	Session session.Session
	Avatar  string
}

func newChrome(c *gin.Context, title string) chrome {
	s, _ := session.FromContext(c)
	avatar := s.PhotoURL
	if avatar == "" {
		avatar = defaultAvatar
	}
	return chrome{Title: title, Session: s, Avatar: avatar}
}

type statsView struct {
	Total     int
	ThisMonth int
	LastLogin string
}

type dashboardPage struct {
	chrome
	ViewID        string
	State         string
	Image         *upload.Image
	Notifications []upload.Notification
	Stats         statsView
	Recent        cardList
	StreamURL     string
}

func (h *Handler) dashboard(c *gin.Context) {
	s, _ := session.FromContext(c)
	ctx := c.Request.Context()
	viewID := viewIDFrom(c)
	flow := h.Views.Get(s.UID, viewID)
	state, img := flow.State()

	recent, err := h.Records.List(ctx, analyses.Query{UserID: s.UID, Limit: RecentLimit})
	if err != nil {
		h.renderError(c, http.StatusInternalServerError, "Não foi possível carregar as análises.", err)
		return
	}

	page := dashboardPage{
		chrome:        newChrome(c, "Dashboard"),
		ViewID:        viewID,
		State:         state.String(),
		Image:         img,
		Notifications: flow.Notifications().Active(),
		Stats:         h.statsFor(c, s.UID),
		Recent:        h.cardList(c, recent, len(recent)),
		StreamURL:     "/dashboard/recent/stream",
	}
	respond.HTML(c, http.StatusOK, h.tmpl, "dashboard.html", page)
}

func (h *Handler) statsFor(c *gin.Context, userID string) statsView {
	sum, err := h.Stats.Get(c.Request.Context(), userID)
	if err != nil {
		telemetry.Warn("stats.fetch_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"user_id":    userID,
			"error":      &stats.SilentError{UserID: userID, Err: err},
		})
	}
	view := statsView{Total: sum.Total, ThisMonth: sum.ThisMonth, LastLogin: "-"}
	if sum.LastLogin != nil {
		view.LastLogin = present.FullDate(*sum.LastLogin, h.Presenter.Location)
	}
	return view
}

func (h *Handler) stats(c *gin.Context) {
	s, _ := session.FromContext(c)
	view := h.statsFor(c, s.UID)
	if wantsJSON(c) {
		respond.JSON(c, http.StatusOK, view)
		return
	}
	respond.HTML(c, http.StatusOK, h.tmpl, "stats", view)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBody)
	s, _ := session.FromContext(c)
	viewID := viewIDFrom(c)
	flow := h.Views.Get(s.UID, viewID)

	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || c.Request.ContentLength > maxUploadBody {
			flow.Notifications().Push(upload.KindError, upload.MsgTooLarge)
		} else {
			flow.Notifications().Push(upload.KindError, upload.MsgUnsupported)
		}
		h.backToDashboard(c, viewID, http.StatusBadRequest)
		return
	}
	file, err := fh.Open()
	if err != nil {
		flow.Notifications().Push(upload.KindError, upload.MsgUnsupported)
		h.backToDashboard(c, viewID, http.StatusBadRequest)
		return
	}
	defer file.Close()

	status := http.StatusOK
	if err := flow.Select(fh.Filename, file); err != nil {
		status = statusFor(err)
	}
	h.backToDashboard(c, viewID, status)
}

func (h *Handler) preview(c *gin.Context) {
	s, _ := session.FromContext(c)
	_, img := h.Views.Get(s.UID, viewIDFrom(c)).State()
	if img == nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, img.MIME, img.Data)
}

func (h *Handler) removeUpload(c *gin.Context) {
	s, _ := session.FromContext(c)
	viewID := viewIDFrom(c)
	status := http.StatusOK
	if err := h.Views.Get(s.UID, viewID).Remove(); err != nil {
		status = statusFor(err)
	}
	h.backToDashboard(c, viewID, status)
}

func (h *Handler) submit(c *gin.Context) {
	s, _ := session.FromContext(c)
	viewID := viewIDFrom(c)
	status := http.StatusOK
	if err := h.Views.Get(s.UID, viewID).Submit(c.Request.Context(), s.Token); err != nil {
		status = statusFor(err)
	}
	h.backToDashboard(c, viewID, status)
}

func (h *Handler) notifications(c *gin.Context) {
	s, _ := session.FromContext(c)
	notes := h.Views.Get(s.UID, viewIDFrom(c)).Notifications().Active()
	respond.JSON(c, http.StatusOK, gin.H{"notifications": notes})
}

func (h *Handler) dismiss(c *gin.Context) {
	s, _ := session.FromContext(c)
	viewID := viewIDFrom(c)
	h.Views.Get(s.UID, viewID).Notifications().Dismiss(c.Param("id"))
	h.backToDashboard(c, viewID, http.StatusNoContent)
}

// backToDashboard answers script callers with the flow status and sends
// form posts back to the same view.
func (h *Handler) backToDashboard(c *gin.Context, viewID string, status int) {
	if wantsJSON(c) {
		s, _ := session.FromContext(c)
		flow := h.Views.Get(s.UID, viewID)
		state, img := flow.State()
		body := gin.H{
			"view":          viewID,
			"state":         state.String(),
			"notifications": flow.Notifications().Active(),
		}
		if img != nil {
			body["image"] = gin.H{"name": img.FileName, "size": img.HumanSize(), "mime": img.MIME}
		}
		if status == http.StatusNoContent {
			status = http.StatusOK
		}
		respond.JSON(c, status, body)
		return
	}
	c.Redirect(http.StatusSeeOther, "/dashboard?"+url.Values{"view": {viewID}}.Encode())
}

func statusFor(err error) int {
	var invalid *upload.ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &invalid), errors.Is(err, upload.ErrNoImage):
		return http.StatusBadRequest
	case errors.Is(err, upload.ErrSubmitting):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// viewIDFrom reads the per-page view id from the query or form, minting a
// new one when absent or malformed.
func viewIDFrom(c *gin.Context) string {
	raw := c.Query("view")
	if raw == "" {
		raw = c.PostForm("view")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		id = uuid.New()
	}
	c.Set(middleware.ViewIDKey, id.String())
	return id.String()
}

func wantsJSON(c *gin.Context) bool {
	return c.GetHeader("Accept") == "application/json"
}

func (h *Handler) renderError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		telemetry.Error("web.page_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"user_id":    middleware.UserIDFromContext(c),
			"path":       c.Request.URL.Path,
			"status":     status,
			"error":      err,
		})
	}
	respond.HTML(c, status, h.tmpl, "error.html", errorPage{chrome: newChrome(c, "Erro"), Message: message})
}

type errorPage struct {
	chrome
	Message string
}
