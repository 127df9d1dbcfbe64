// Package web renders the dashboard pages and streams live updates to the
// browser. Handlers only translate HTTP into calls on the session, upload,
// history and live-query packages.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"analyzeit/internal/analyses"
	"analyzeit/internal/livequery"
	"analyzeit/internal/present"
	"analyzeit/internal/session"
	"analyzeit/internal/stats"
	"analyzeit/internal/upload"
)

//go:embed templates/*.html static/*
var embeddedFiles embed.FS

// RecentLimit is the size of the dashboard's recent strip.
const RecentLimit = 10

// PasswordResetter is the identity surface behind /reset-password.
type PasswordResetter interface {
	SendPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) error
}

// RecordReader loads single records and full lists for the first render.
type RecordReader interface {
	Get(ctx context.Context, userID, analysisID string) (analyses.Record, error)
	List(ctx context.Context, q analyses.Query) ([]analyses.Record, error)
}

// Subscriber opens live queries.
type Subscriber interface {
	Subscribe(ctx context.Context, q analyses.Query) (*livequery.Subscription, error)
}

// MediaOpener reads locally stored images.
type MediaOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Deps are the collaborators of the page handlers.
type Deps struct {
	Sessions  *session.Provider
	Resets    PasswordResetter
	Records   RecordReader
	Live      Subscriber
	Views     *upload.Views
	Stats     *stats.Cache
	Presenter present.Presenter
	// Media is nil unless images are kept in the local object store.
	Media     MediaOpener
	Providers []string
	// KeepAlive is the SSE ping interval; zero means 30s.
	KeepAlive time.Duration
}

// Handler serves every HTML route.
type Handler struct {
	Deps
	tmpl *template.Template
}

// New parses the embedded templates.
func New(deps Deps) (*Handler, error) {
	if deps.KeepAlive <= 0 {
		deps.KeepAlive = 30 * time.Second
	}
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Handler{Deps: deps, tmpl: tmpl}, nil
}

var funcMap = template.FuncMap{
	"providerLabel": providerLabel,
	"detailHref":    detailHref,
}

// StaticFS exposes the embedded assets for /static.
func StaticFS() http.FileSystem {
	sub, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// RegisterPublic attaches routes reachable without a session.
func (h *Handler) RegisterPublic(r gin.IRoutes) {
	r.GET("/login", h.loginPage)
	r.POST("/login", h.login)
	r.GET("/login/:provider", h.loginWithProvider)
	r.GET("/auth/:provider/callback", h.providerCallback)
	r.GET("/register", h.registerPage)
	r.POST("/register", h.register)
	r.GET("/reset-password", h.resetPage)
	r.POST("/reset-password", h.reset)
	r.GET("/public-page", h.publicPage)
}

// RegisterPrivate attaches routes that require a session.
func (h *Handler) RegisterPrivate(r gin.IRoutes) {
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/dashboard") })
	r.GET("/dashboard", h.dashboard)
	r.GET("/dashboard/history", h.history)
	r.GET("/dashboard/history/stream", h.historyStream)
	r.GET("/dashboard/recent/stream", h.recentStream)
	r.GET("/dashboard/analyses/:id", h.analysis)
	r.POST("/dashboard/upload", h.upload)
	r.GET("/dashboard/upload/preview", h.preview)
	r.POST("/dashboard/upload/remove", h.removeUpload)
	r.POST("/dashboard/submit", h.submit)
	r.GET("/dashboard/stats", h.stats)
	r.GET("/dashboard/notifications", h.notifications)
	r.POST("/dashboard/notifications/:id/dismiss", h.dismiss)
	r.POST("/logout", h.logout)
	r.GET("/media/*key", h.media)
}

func detailHref(id, from string) string {
	href := "/dashboard/analyses/" + url.PathEscape(id)
	if from != "" {
		href += "?from=" + url.QueryEscape(from)
	}
	return href
}

func providerLabel(kind string) string {
	switch kind {
	case "google":
		return "Google"
	case "facebook":
		return "Facebook"
	default:
		return kind
	}
}
