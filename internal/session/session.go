package session

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"analyzeit/internal/guard"
	"analyzeit/internal/identity"
	"analyzeit/internal/shared/server/middleware"
	"analyzeit/internal/shared/telemetry"
)

const (
	// CookieName holds the ID token between requests.
	CookieName = "token"
	// CookieMaxAge is one day, independent of the token lifetime.
	CookieMaxAge = 24 * time.Hour

	sessionKey = "session"
)

type ctxKey struct{}

// Session is the signed-in user as seen by handlers.
type Session struct {
	Token       string
	UID         string
	DisplayName string
	Email       string
	PhotoURL    string
	ExpiresAt   time.Time
}

// Name is the label shown in the header.
func (s Session) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Email
}

// Authenticator is the identity service surface the provider needs.
type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (identity.Credential, error)
	Register(ctx context.Context, email, password, displayName string) (identity.Credential, error)
	ProviderAuthURL(kind string) (string, error)
	SignInWithProvider(ctx context.Context, kind, state, code string) (identity.Credential, error)
	SignOut(ctx context.Context, userID string) error
	IDToken(ctx context.Context, token string, force bool) (identity.Credential, error)
}

// Credentials is the email/password login form.
type Credentials struct {
	Email    string `form:"email"`
	Password string `form:"password"`
}

// Provider owns the session lifecycle for each request.
type Provider struct {
	Auth   Authenticator
	Secure bool
}

func New(auth Authenticator, secure bool) *Provider {
	return &Provider{Auth: auth, Secure: secure}
}

// Current returns the session attached to ctx, if any.
func Current(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok && s.UID != ""
}

// FromContext returns the session attached to a gin request.
func FromContext(c *gin.Context) (Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return Session{}, false
	}
	s, ok := v.(Session)
	return s, ok && s.UID != ""
}

// Login signs in with email and password and redirects to the dashboard.
// Failures are returned untouched for the form to render.
func (p *Provider) Login(c *gin.Context, creds Credentials) error {
	cred, err := p.Auth.SignInWithPassword(c.Request.Context(), creds.Email, creds.Password)
	if err != nil {
		return err
	}
	p.apply(c, cred)
	c.Redirect(http.StatusFound, guard.DashboardPath)
	return nil
}

// Register creates an account, signs it in and redirects to the dashboard.
func (p *Provider) Register(c *gin.Context, creds Credentials, displayName string) error {
	cred, err := p.Auth.Register(c.Request.Context(), creds.Email, creds.Password, displayName)
	if err != nil {
		return err
	}
	p.apply(c, cred)
	c.Redirect(http.StatusFound, guard.DashboardPath)
	return nil
}

// LoginWithProvider redirects to the provider consent page.
func (p *Provider) LoginWithProvider(c *gin.Context, kind string) error {
	u, err := p.Auth.ProviderAuthURL(kind)
	if err != nil {
		return err
	}
	c.Redirect(http.StatusFound, u)
	return nil
}

// CompleteProviderLogin handles the provider callback.
func (p *Provider) CompleteProviderLogin(c *gin.Context, kind, state, code string) error {
	cred, err := p.Auth.SignInWithProvider(c.Request.Context(), kind, state, code)
	if err != nil {
		return err
	}
	p.apply(c, cred)
	c.Redirect(http.StatusFound, guard.DashboardPath)
	return nil
}

// Logout revokes the user's tokens, clears the cookie and goes to /login.
// A revocation failure is logged; the local session is cleared regardless.
func (p *Provider) Logout(c *gin.Context) {
	if s, ok := FromContext(c); ok {
		if err := p.Auth.SignOut(c.Request.Context(), s.UID); err != nil {
			telemetry.Warn("session.sign_out_failed", map[string]any{
				"request_id": middleware.RequestIDFromContext(c),
				"user_id":    s.UID,
				"error":      err,
			})
		}
	}
	p.clear(c)
	c.Redirect(http.StatusFound, guard.LoginPath)
}

// Restore attaches the session for the cookie token, refreshing the token when
// it is close to expiry or recently expired. An unusable token clears the
// cookie.
func (p *Provider) Restore() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := readCookie(c.Request)
		if err != nil || token == "" {
			if err != nil {
				p.clear(c)
			}
			c.Next()
			return
		}
		cred, err := p.Auth.IDToken(c.Request.Context(), token, false)
		if err != nil {
			telemetry.Info("session.restore_failed", map[string]any{
				"request_id": middleware.RequestIDFromContext(c),
				"code":       identity.Code(err),
				"error":      err,
			})
			p.clear(c)
			c.Next()
			return
		}
		if cred.Token == token {
			attach(c, sessionFor(cred))
			c.Next()
			return
		}
		telemetry.Debug("session.token_refreshed", map[string]any{"user_id": cred.User.ID})
		p.apply(c, cred)
		c.Next()
	}
}

// Require rejects requests without a session, sending them to /login.
func (p *Provider) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := FromContext(c); !ok {
			p.clear(c)
			c.Redirect(http.StatusFound, guard.LoginPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

// apply is the single place a token becomes the request's session: it writes
// the cookie and replaces the session read by handlers and outgoing calls.
func (p *Provider) apply(c *gin.Context, cred identity.Credential) {
	s := sessionFor(cred)
	p.writeCookie(c, s.Token, int(CookieMaxAge.Seconds()))
	attach(c, s)
}

func (p *Provider) clear(c *gin.Context) {
	p.writeCookie(c, "", -1)
	attach(c, Session{})
}

func attach(c *gin.Context, s Session) {
	c.Set(sessionKey, s)
	c.Set(middleware.UserIDKey, s.UID)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey{}, s))
}

func sessionFor(cred identity.Credential) Session {
	return Session{
		Token:       cred.Token,
		UID:         cred.User.ID,
		DisplayName: cred.User.DisplayName,
		Email:       cred.User.Email,
		PhotoURL:    cred.User.PhotoURL,
		ExpiresAt:   cred.ExpiresAt,
	}
}

func (p *Provider) writeCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, value, maxAge, "/", "", p.Secure, true)
}

func readCookie(r *http.Request) (string, error) {
	ck, err := r.Cookie(CookieName)
	if err == http.ErrNoCookie {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return url.QueryUnescape(ck.Value)
}
