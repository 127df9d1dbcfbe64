package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"analyzeit/internal/shared/auth"
	"analyzeit/internal/shared/metrics"
	"analyzeit/internal/shared/ratelimit"
	"analyzeit/internal/shared/telemetry"
	"analyzeit/internal/users"
)

const (
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 6
	// RefreshGrace is how long after expiry a token can still be refreshed.
	// It matches the session cookie lifetime.
	RefreshGrace = 24 * time.Hour
	// RefreshWindow is how close to expiry IDToken proactively refreshes.
	RefreshWindow = 5 * time.Minute
)

// DefaultLoginRule allows a burst of five attempts per email, refilling one
// every twelve seconds.
var DefaultLoginRule = ratelimit.Rule{Rate: 1.0 / 12, Burst: 5}

// Credential is an issued ID token together with its owner.
type Credential struct {
	Token     string
	ExpiresAt time.Time
	User      users.User
}

// TokenListener observes token changes. After sign-out it receives an empty
// token for the user.
type TokenListener func(userID string, cred Credential)

// Config wires a Service.
type Config struct {
	Users     users.Repo
	Signer    *auth.Signer
	Hasher    PasswordHasher
	Providers []*OAuthProvider
	Limiter   *ratelimit.Limiter
	LoginRule ratelimit.Rule
	Reset     ResetSender
	PublicURL string
	Now       func() time.Time
}

// Service is the identity provider: accounts, credentials and ID tokens.
type Service struct {
	users     users.Repo
	signer    *auth.Signer
	hasher    PasswordHasher
	providers map[string]*OAuthProvider
	limiter   *ratelimit.Limiter
	loginRule ratelimit.Rule
	reset     ResetSender
	publicURL string
	now       func() time.Time
	validate  *validator.Validate

	mu        sync.Mutex
	nextID    int
	listeners map[int]TokenListener
}

func New(cfg Config) *Service {
	s := &Service{
		users:     cfg.Users,
		signer:    cfg.Signer,
		hasher:    cfg.Hasher,
		providers: make(map[string]*OAuthProvider),
		limiter:   cfg.Limiter,
		loginRule: cfg.LoginRule,
		reset:     cfg.Reset,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		now:       cfg.Now,
		validate:  validator.New(),
		listeners: make(map[int]TokenListener),
	}
	if s.hasher == nil {
		s.hasher = NewArgon2()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loginRule == (ratelimit.Rule{}) {
		s.loginRule = DefaultLoginRule
	}
	for _, p := range cfg.Providers {
		if p != nil {
			p.now = s.now
			s.providers[p.Kind] = p
		}
	}
	return s
}

// SignInWithPassword authenticates an email/password account.
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (cred Credential, err error) {
	defer func() { recordAttempt(err) }()

	email = users.NormalizeEmail(email)
	if err := s.checkEmail(email); err != nil {
		return Credential{}, err
	}
	key := "login:" + email
	if ok, _ := s.limiter.Allow(key, s.loginRule); !ok {
		return Credential{}, newError(CodeTooManyRequests, nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return Credential{}, newError(CodeUserNotFound, nil)
		}
		return Credential{}, newError(CodeInternal, err)
	}
	if user.Disabled {
		return Credential{}, newError(CodeUserDisabled, nil)
	}
	if user.PasswordHash == "" {
		return Credential{}, newError(CodeInvalidCredential, nil)
	}
	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return Credential{}, newError(CodeInvalidCredential, err)
	}
	if !ok {
		return Credential{}, newError(CodeWrongPassword, nil)
	}

	s.limiter.Reset(key)
	return s.signIn(ctx, user)
}

// Register creates a password account and signs it in.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (Credential, error) {
	email = users.NormalizeEmail(email)
	if err := s.checkEmail(email); err != nil {
		return Credential{}, err
	}
	if len(password) < MinPasswordLength {
		return Credential{}, newError(CodeWeakPassword, nil)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Credential{}, newError(CodeInternal, err)
	}
	user := users.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		Provider:     users.ProviderPassword,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			return Credential{}, newError(CodeEmailInUse, nil)
		}
		return Credential{}, newError(CodeInternal, err)
	}
	telemetry.Info("identity.user_registered", map[string]any{"user_id": user.ID})
	return s.signIn(ctx, user)
}

// ProviderAuthURL returns the consent URL for an OAuth provider.
func (s *Service) ProviderAuthURL(kind string) (string, error) {
	p, ok := s.providers[kind]
	if !ok {
		return "", newError(CodeProviderFailed, errProviderNotConfigured)
	}
	u, err := p.AuthCodeURL()
	if err != nil {
		return "", newError(CodeProviderFailed, err)
	}
	return u, nil
}

// SignInWithProvider completes an OAuth callback. A provider account is
// linked to an existing user with the same email; otherwise a user with id
// "<kind>:<subject>" is created.
func (s *Service) SignInWithProvider(ctx context.Context, kind, state, code string) (cred Credential, err error) {
	defer func() { recordAttempt(err) }()

	p, ok := s.providers[kind]
	if !ok {
		return Credential{}, newError(CodeProviderFailed, errProviderNotConfigured)
	}
	profile, err := p.Exchange(ctx, state, code)
	if err != nil {
		return Credential{}, newError(CodeProviderFailed, err)
	}

	user, err := s.users.GetByID(ctx, kind+":"+profile.Subject)
	if errors.Is(err, users.ErrNotFound) && profile.Email != "" {
		user, err = s.users.GetByEmail(ctx, profile.Email)
	}
	switch {
	case err == nil:
		if user.DisplayName == "" {
			user.DisplayName = profile.Name
		}
		if profile.Picture != "" {
			user.PhotoURL = profile.Picture
		}
	case errors.Is(err, users.ErrNotFound):
		user = users.User{
			ID:          kind + ":" + profile.Subject,
			Email:       profile.Email,
			DisplayName: profile.Name,
			PhotoURL:    profile.Picture,
			Provider:    kind,
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, users.ErrEmailTaken) {
				return Credential{}, newError(CodeEmailInUse, nil)
			}
			return Credential{}, newError(CodeInternal, err)
		}
	default:
		return Credential{}, newError(CodeInternal, err)
	}
	if user.Disabled {
		return Credential{}, newError(CodeUserDisabled, nil)
	}
	return s.signIn(ctx, user)
}

// SignOut revokes every token issued to the user up to now.
func (s *Service) SignOut(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return newError(CodeUserNotFound, nil)
		}
		return newError(CodeInternal, err)
	}
	user.TokensValidAfter = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return newError(CodeInternal, err)
	}
	s.emit(userID, Credential{User: user})
	return nil
}

// Verify checks a token and that its owner is active and has not revoked it.
func (s *Service) Verify(ctx context.Context, token string) (Credential, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return Credential{}, newError(CodeTokenExpired, err)
		}
		return Credential{}, newError(CodeInvalidCredential, err)
	}
	user, err := s.activeUser(ctx, claims)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

// Refresh issues a replacement for a token that is valid or expired less than
// RefreshGrace ago.
func (s *Service) Refresh(ctx context.Context, token string) (Credential, error) {
	claims, err := s.signer.VerifyWithinGrace(token, RefreshGrace)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return Credential{}, newError(CodeTokenExpired, err)
		}
		return Credential{}, newError(CodeInvalidCredential, err)
	}
	user, err := s.activeUser(ctx, claims)
	if err != nil {
		return Credential{}, err
	}
	cred, err := s.issue(user)
	if err != nil {
		return Credential{}, err
	}
	metrics.IncTokenRefresh()
	return cred, nil
}

// IDToken returns a usable token for the holder of token: the same one while
// it has more than RefreshWindow left, a refreshed one otherwise or when
// force is set.
func (s *Service) IDToken(ctx context.Context, token string, force bool) (Credential, error) {
	cred, err := s.Verify(ctx, token)
	switch {
	case err == nil:
		if !force && cred.ExpiresAt.Sub(s.now()) > RefreshWindow {
			return cred, nil
		}
	case Code(err) != CodeTokenExpired:
		return Credential{}, err
	}
	return s.Refresh(ctx, token)
}

// OnIDTokenChanged registers fn for every issued or revoked token and returns
// a function that removes it.
func (s *Service) OnIDTokenChanged(fn TokenListener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Service) emit(userID string, cred Credential) {
	s.mu.Lock()
	fns := make([]TokenListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(userID, cred)
	}
}

func (s *Service) signIn(ctx context.Context, user users.User) (Credential, error) {
	now := s.now().UTC()
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		return Credential{}, newError(CodeInternal, err)
	}
	return s.issue(user)
}

func (s *Service) issue(user users.User) (Credential, error) {
	token, exp, err := s.signer.Sign(auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID},
		Email:            user.Email,
		Name:             user.DisplayName,
		Picture:          user.PhotoURL,
		Provider:         user.Provider,
	})
	if err != nil {
		return Credential{}, newError(CodeInternal, err)
	}
	cred := Credential{Token: token, ExpiresAt: exp, User: user}
	s.emit(user.ID, cred)
	return cred, nil
}

func (s *Service) activeUser(ctx context.Context, claims auth.Claims) (users.User, error) {
	user, err := s.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return users.User{}, newError(CodeUserNotFound, nil)
		}
		return users.User{}, newError(CodeInternal, err)
	}
	if user.Disabled {
		return users.User{}, newError(CodeUserDisabled, nil)
	}
	// iat has second precision.
	if claims.IssuedAt == nil || claims.IssuedAt.Time.Before(user.TokensValidAfter.Truncate(time.Second)) {
		return users.User{}, newError(CodeTokenRevoked, nil)
	}
	return user, nil
}

func (s *Service) checkEmail(email string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return newError(CodeInvalidEmail, nil)
	}
	return nil
}

func recordAttempt(err error) {
	if err == nil {
		metrics.IncLoginAttempt("ok")
		return
	}
	code := Code(err)
	if code == "" {
		code = CodeInternal
	}
	metrics.IncLoginAttempt(code)
}
