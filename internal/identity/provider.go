package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"

	"analyzeit/internal/users"
)

const (
	googleUserInfoURL   = "https://www.googleapis.com/oauth2/v2/userinfo"
	facebookUserInfoURL = "https://graph.facebook.com/me?fields=id,name,email,picture.type(large)"
	stateTTL            = 5 * time.Minute
)

var (
	errProviderNotConfigured = errors.New("provider not configured")
	errInvalidState          = errors.New("invalid or expired state")
)

// Profile is the account information returned by an OAuth provider.
type Profile struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// OAuthProvider runs the authorization code flow against one provider.
type OAuthProvider struct {
	Kind        string
	Config      *oauth2.Config
	UserInfoURL string

	states *stateStore
	now    func() time.Time
}

// NewGoogleProvider builds the Google provider.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *OAuthProvider {
	return newProvider(users.ProviderGoogle, &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}, googleUserInfoURL)
}

// NewFacebookProvider builds the Facebook provider.
func NewFacebookProvider(clientID, clientSecret, redirectURL string) *OAuthProvider {
	return newProvider(users.ProviderFacebook, &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"email", "public_profile"},
		Endpoint:     facebook.Endpoint,
	}, facebookUserInfoURL)
}

func newProvider(kind string, cfg *oauth2.Config, userInfoURL string) *OAuthProvider {
	return &OAuthProvider{
		Kind:        kind,
		Config:      cfg,
		UserInfoURL: userInfoURL,
		states:      newStateStore(),
		now:         time.Now,
	}
}

// Configured reports whether client credentials and a redirect are set.
func (p *OAuthProvider) Configured() bool {
	return p != nil && p.Config != nil &&
		p.Config.ClientID != "" && p.Config.ClientSecret != "" && p.Config.RedirectURL != ""
}

// AuthCodeURL registers a fresh state and returns the consent URL.
func (p *OAuthProvider) AuthCodeURL() (string, error) {
	if !p.Configured() {
		return "", errProviderNotConfigured
	}
	state := uuid.NewString()
	p.states.put(state, p.now().Add(stateTTL))
	return p.Config.AuthCodeURL(state), nil
}

// Exchange consumes state, trades the code for a token and loads the profile.
func (p *OAuthProvider) Exchange(ctx context.Context, state, code string) (Profile, error) {
	if !p.Configured() {
		return Profile{}, errProviderNotConfigured
	}
	if state == "" || code == "" || !p.states.consume(state, p.now()) {
		return Profile{}, errInvalidState
	}
	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("exchange code: %w", err)
	}
	return p.fetchProfile(ctx, token)
}

type userInfo struct {
	Sub     string          `json:"sub"`
	ID      string          `json:"id"`
	Email   string          `json:"email"`
	Name    string          `json:"name"`
	Picture json.RawMessage `json:"picture"`
}

func (p *OAuthProvider) fetchProfile(ctx context.Context, token *oauth2.Token) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return Profile{}, err
	}
	resp, err := p.Config.Client(ctx, token).Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Profile{}, fmt.Errorf("decode userinfo: %w", err)
	}
	subject := info.Sub
	if subject == "" {
		subject = info.ID
	}
	if subject == "" {
		return Profile{}, errors.New("userinfo without subject")
	}
	return Profile{
		Subject: subject,
		Email:   users.NormalizeEmail(info.Email),
		Name:    info.Name,
		Picture: pictureURL(info.Picture),
	}, nil
}

// pictureURL accepts Google's plain string and Facebook's {"data":{"url":…}}.
func pictureURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	var nested struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return nested.Data.URL
	}
	return ""
}

type stateStore struct {
	mu    sync.Mutex
	items map[string]time.Time
}

func newStateStore() *stateStore {
	return &stateStore{items: make(map[string]time.Time)}
}

func (s *stateStore) put(state string, exp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[state] = exp
}

func (s *stateStore) consume(state string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, exp := range s.items {
		if now.After(exp) {
			delete(s.items, k)
		}
	}
	exp, ok := s.items[state]
	if !ok {
		return false
	}
	delete(s.items, state)
	return !now.After(exp)
}
