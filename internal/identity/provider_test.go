package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"analyzeit/internal/users"
)

func newTestProvider(t *testing.T, kind, userInfo string) *OAuthProvider {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(userInfo))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return newProvider(kind, &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "https://app.example.com/auth/" + kind + "/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, srv.URL+"/userinfo")
}

func stateFrom(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestSignInWithProviderCreatesUser(t *testing.T) {
	p := newTestProvider(t, users.ProviderFacebook,
		`{"id":"42","name":"Ana","email":"Ana@Example.com","picture":{"data":{"url":"https://cdn/ana.jpg"}}}`)
	f := newFixture(t, p)
	ctx := context.Background()

	authURL, err := f.svc.ProviderAuthURL(users.ProviderFacebook)
	require.NoError(t, err)
	state := stateFrom(t, authURL)
	require.NotEmpty(t, state)

	cred, err := f.svc.SignInWithProvider(ctx, users.ProviderFacebook, state, "code")
	require.NoError(t, err)
	assert.Equal(t, "facebook:42", cred.User.ID)
	assert.Equal(t, "ana@example.com", cred.User.Email)
	assert.Equal(t, "https://cdn/ana.jpg", cred.User.PhotoURL)

	// States are single use.
	_, err = f.svc.SignInWithProvider(ctx, users.ProviderFacebook, state, "code")
	assert.Equal(t, CodeProviderFailed, Code(err))
	assert.Equal(t, ProviderMessage, Message(err))
}

func TestSignInWithProviderLinksExistingEmail(t *testing.T) {
	p := newTestProvider(t, users.ProviderGoogle,
		`{"sub":"g-1","name":"Ana G","email":"ana@example.com","picture":"https://cdn/g.jpg"}`)
	f := newFixture(t, p)
	ctx := context.Background()
	existing := f.register(t, "ana@example.com", "secret1")

	authURL, err := f.svc.ProviderAuthURL(users.ProviderGoogle)
	require.NoError(t, err)

	cred, err := f.svc.SignInWithProvider(ctx, users.ProviderGoogle, stateFrom(t, authURL), "code")
	require.NoError(t, err)
	assert.Equal(t, existing.User.ID, cred.User.ID)
	assert.Equal(t, "Ana", cred.User.DisplayName)
	assert.Equal(t, "https://cdn/g.jpg", cred.User.PhotoURL)
}

func TestProviderAuthURLUnconfigured(t *testing.T) {
	f := newFixture(t, NewGoogleProvider("", "", ""))

	_, err := f.svc.ProviderAuthURL(users.ProviderGoogle)
	assert.Equal(t, CodeProviderFailed, Code(err))

	_, err = f.svc.ProviderAuthURL("twitter")
	assert.Equal(t, CodeProviderFailed, Code(err))
}

func TestPictureURLShapes(t *testing.T) {
	assert.Equal(t, "a", pictureURL([]byte(`"a"`)))
	assert.Equal(t, "b", pictureURL([]byte(`{"data":{"url":"b"}}`)))
	assert.Equal(t, "", pictureURL(nil))
}
