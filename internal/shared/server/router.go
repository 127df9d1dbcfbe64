package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"analyzeit/internal/services/health"
	"analyzeit/internal/session"
	"analyzeit/internal/shared/config"
	"analyzeit/internal/shared/metrics"
	"analyzeit/internal/shared/ratelimit"
	"analyzeit/internal/shared/server/middleware"
	"analyzeit/internal/shared/server/respond"
	"analyzeit/internal/web"
)

// Rate limit groups.
const (
	groupDefault = "DEFAULT"
	groupAuth    = "AUTH"
	groupSubmit  = "SUBMIT"
)

// Deps are the collaborators the router mounts.
type Deps struct {
	Config   config.Config
	Sessions *session.Provider
	Web      *web.Handler
	Health   *health.Service
	// Limiter is shared across requests; nil builds a fresh one.
	Limiter *ratelimit.Limiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps Deps) *gin.Engine {
	if !deps.Config.DevLike() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Guard(session.CookieName),
		deps.Sessions.Restore(),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: groupDefault,
			GroupFor:     rateLimitGroup,
			Limiter:      deps.Limiter,
			Rules: map[string]ratelimit.Rule{
				groupDefault: {Rate: 10, Burst: 40},
				groupAuth:    {Rate: 0.5, Burst: 5},
				groupSubmit:  {Rate: 0.2, Burst: 3},
			},
		}),
	)

	r.StaticFS("/static", web.StaticFS())

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		st := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !st.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, st)
	})
	api.GET("/metrics", metrics.Handler())
	registerMeRoutes(api)

	deps.Web.RegisterPublic(r)
	deps.Web.RegisterPrivate(r.Group("", deps.Sessions.Require()))

	return r
}

func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return groupDefault
	}
	switch c.FullPath() {
	case "/login", "/register", "/reset-password":
		return groupAuth
	case "/dashboard/submit":
		return groupSubmit
	default:
		return groupDefault
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
