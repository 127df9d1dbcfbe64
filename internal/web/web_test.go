package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analyzeit/internal/analyses"
	"analyzeit/internal/apiclient"
	"analyzeit/internal/identity"
	"analyzeit/internal/livequery"
	"analyzeit/internal/present"
	"analyzeit/internal/session"
	"analyzeit/internal/shared/storage/object/local"
	"analyzeit/internal/stats"
	"analyzeit/internal/upload"
	"analyzeit/internal/users"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

var now = time.Date(2026, time.April, 10, 12, 0, 0, 0, time.UTC)

type fakeAuth struct{}

func (fakeAuth) SignInWithPassword(context.Context, string, string) (identity.Credential, error) {
	return identity.Credential{}, &identity.AuthError{Code: identity.CodeWrongPassword}
}

func (fakeAuth) Register(context.Context, string, string, string) (identity.Credential, error) {
	return identity.Credential{}, &identity.AuthError{Code: identity.CodeEmailInUse}
}

func (fakeAuth) ProviderAuthURL(kind string) (string, error) {
	return "https://provider.example.com/" + kind, nil
}

func (fakeAuth) SignInWithProvider(context.Context, string, string, string) (identity.Credential, error) {
	return identity.Credential{}, &identity.AuthError{Code: identity.CodeProviderFailed}
}

func (fakeAuth) SignOut(context.Context, string) error { return nil }

func (fakeAuth) IDToken(_ context.Context, token string, _ bool) (identity.Credential, error) {
	if token != "tok" {
		return identity.Credential{}, &identity.AuthError{Code: identity.CodeInvalidCredential}
	}
	return identity.Credential{
		Token:     token,
		ExpiresAt: now.Add(time.Hour),
		User:      users.User{ID: "u1", Email: "ana@example.com", DisplayName: "Ana"},
	}, nil
}

type fakeResets struct {
	sent      []string
	confirmed []string
	err       error
}

func (f *fakeResets) SendPasswordReset(_ context.Context, email string) error {
	f.sent = append(f.sent, email)
	return f.err
}

func (f *fakeResets) ConfirmPasswordReset(_ context.Context, code, _ string) error {
	f.confirmed = append(f.confirmed, code)
	return f.err
}

type fakeSubmitter struct {
	mu     sync.Mutex
	tokens []string
}

func (s *fakeSubmitter) SubmitAnalysis(_ context.Context, token, _ string) (*apiclient.Response, error) {
	s.mu.Lock()
	s.tokens = append(s.tokens, token)
	s.mu.Unlock()
	return &apiclient.Response{Status: http.StatusAccepted}, nil
}

type fixture struct {
	router    *gin.Engine
	repo      *analyses.MemoryRepo
	bus       *livequery.Broadcaster
	resets    *fakeResets
	submitter *fakeSubmitter
	media     *local.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		bus:       livequery.NewBroadcaster(),
		resets:    &fakeResets{},
		submitter: &fakeSubmitter{},
		media:     local.New(t.TempDir()),
	}
	f.repo = analyses.NewMemoryRepo(f.bus.Publish)
	sessions := session.New(fakeAuth{}, false)

	h, err := New(Deps{
		Sessions:  sessions,
		Resets:    f.resets,
		Records:   f.repo,
		Live:      livequery.NewEngine(f.repo, f.bus),
		Views:     upload.NewViews(f.submitter, nil, 16, time.Hour),
		Stats:     stats.NewCache(&stats.Service{Records: f.repo, Location: time.UTC, Now: func() time.Time { return now }}),
		Presenter: present.Presenter{Location: time.UTC, Now: func() time.Time { return now }},
		Media:     f.media,
		Providers: []string{"google"},
		KeepAlive: time.Hour,
	})
	require.NoError(t, err)

	r := gin.New()
	r.Use(sessions.Restore())
	h.RegisterPublic(r)
	h.RegisterPrivate(r.Group("", sessions.Require()))
	f.router = r
	return f
}

func (f *fixture) seed(t *testing.T, id, status string, created time.Time) {
	t.Helper()
	rec := analyses.Record{
		ID:        id,
		UserID:    "u1",
		CreatedAt: created,
		Status:    status,
		Decision:  analyses.DecisionNormal,
		ImageURL:  "https://cdn.example.com/" + id + ".png",
	}
	if status != analyses.StatusPending {
		p := 0.42
		rec.Probability = &p
		done := created.Add(3 * time.Second)
		rec.FinishedAt = &done
	}
	require.NoError(t, f.repo.Upsert(context.Background(), rec))
}

func (f *fixture) do(req *http.Request, signedIn bool) *httptest.ResponseRecorder {
	if signedIn {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "tok"})
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestPrivatePagesRedirectWithoutSession(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/dashboard", "/dashboard/history", "/dashboard/analyses/a1"} {
		w := f.do(httptest.NewRequest(http.MethodGet, path, nil), false)
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/login", w.Header().Get("Location"), path)
	}
}

func TestLoginPageListsProviders(t *testing.T) {
	f := newFixture(t)
	w := f.do(httptest.NewRequest(http.MethodGet, "/login", nil), false)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Ou continue com")
	assert.Contains(t, body, `href="/login/google"`)
}

func TestLoginFailureRendersMappedMessage(t *testing.T) {
	f := newFixture(t)
	form := url.Values{"email": {"ana@example.com"}, "password": {"bad"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := f.do(req, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Senha incorreta. Tente novamente.")
	assert.Contains(t, w.Body.String(), `value="ana@example.com"`)
}

func TestResetPasswordSendsAndConfirms(t *testing.T) {
	f := newFixture(t)

	send := httptest.NewRequest(http.MethodPost, "/reset-password", strings.NewReader("email=ana%40example.com"))
	send.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := f.do(send, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "E-mail enviado com sucesso!")
	assert.Equal(t, []string{"ana@example.com"}, f.resets.sent)

	f.resets.err = &identity.AuthError{Code: identity.CodeInvalidActionCode}
	confirm := httptest.NewRequest(http.MethodPost, "/reset-password", strings.NewReader("oobCode=abc&password=secret1"))
	confirm.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = f.do(confirm, false)
	assert.Contains(t, w.Body.String(), "O link de redefinição de senha é inválido ou expirou.")
	assert.Equal(t, []string{"abc"}, f.resets.confirmed)
}

func TestDashboardRendersRecentAndStats(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a1b2c3d4e5f6", analyses.StatusSuccess, now.Add(-time.Hour))

	w := f.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil), true)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Análises Recentes")
	assert.Contains(t, body, "Total de análises")
	assert.Contains(t, body, "42.0%")
	assert.Contains(t, body, `href="/dashboard/analyses/a1b2c3d4e5f6"`)
	assert.Contains(t, body, "Ana")
}

func TestHistoryFiltersAndCounts(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "done-1", analyses.StatusSuccess, now.Add(-2*time.Hour))
	f.seed(t, "pending-1", analyses.StatusPending, now.Add(-time.Hour))

	w := f.do(httptest.NewRequest(http.MethodGet, "/dashboard/history?status=success", nil), true)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Mostrando 1 de 2 análises")
	assert.Contains(t, body, "done-1")
	assert.NotContains(t, body, `data-id="pending-1"`)
	assert.Contains(t, body, "from=history")

	w = f.do(httptest.NewRequest(http.MethodGet, "/dashboard/history?q=nothing", nil), true)
	assert.Contains(t, w.Body.String(), "Nenhuma análise encontrada com os filtros selecionados.")
}

func TestAnalysisPage(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a1", analyses.StatusSuccess, now.Add(-time.Hour))

	w := f.do(httptest.NewRequest(http.MethodGet, "/dashboard/analyses/missing", nil), true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Análise não encontrada.")

	w = f.do(httptest.NewRequest(http.MethodGet, "/dashboard/analyses/a1?action=zoom_in&from=history", nil), true)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "125%")
	assert.Contains(t, body, `href="/dashboard/history"`)
	assert.Contains(t, body, "zoom=1.5")
}

func multipartBody(t *testing.T, fileName string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", fileName)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

type flowBody struct {
	View          string                `json:"view"`
	State         string                `json:"state"`
	Notifications []upload.Notification `json:"notifications"`
}

func decodeFlow(t *testing.T, w *httptest.ResponseRecorder) flowBody {
	t.Helper()
	var body flowBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestUploadRejectsUnsupportedFile(t *testing.T) {
	f := newFixture(t)
	body, contentType := multipartBody(t, "notes.txt", []byte("plain text"))
	req := httptest.NewRequest(http.MethodPost, "/dashboard/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	w := f.do(req, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	got := decodeFlow(t, w)
	assert.Equal(t, "empty", got.State)
	require.Len(t, got.Notifications, 1)
	assert.Equal(t, upload.MsgUnsupported, got.Notifications[0].Message)
}

func TestUploadRejectsOversizedImage(t *testing.T) {
	f := newFixture(t)
	view := "0b8e3f2a-5c6d-4e7f-8a9b-1c2d3e4f5a6b"

	for _, size := range []int{12 << 20, 25 << 20} {
		data := append(append([]byte{}, pngBytes...), make([]byte, size)...)
		body, contentType := multipartBody(t, "exame.png", data)
		req := httptest.NewRequest(http.MethodPost, "/dashboard/upload?view="+view, body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")

		w := f.do(req, true)
		assert.Equal(t, http.StatusBadRequest, w.Code, size)
		got := decodeFlow(t, w)
		assert.Equal(t, view, got.View)
		assert.Equal(t, "empty", got.State, size)
		require.NotEmpty(t, got.Notifications, size)
		assert.Equal(t, upload.MsgTooLarge, got.Notifications[len(got.Notifications)-1].Message, size)
	}

	submit := httptest.NewRequest(http.MethodPost, "/dashboard/submit?view="+view, nil)
	submit.Header.Set("Accept", "application/json")
	w := f.do(submit, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.submitter.tokens)
}

func TestUploadSubmitFlowKeepsViewAcrossRequests(t *testing.T) {
	f := newFixture(t)
	view := "6f1c2a8e-4b7d-4c53-9a1e-0d7e5b2f3c10"

	body, contentType := multipartBody(t, "scan.png", pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/dashboard/upload?view="+view, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	w := f.do(req, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "selected", decodeFlow(t, w).State)

	preview := f.do(httptest.NewRequest(http.MethodGet, "/dashboard/upload/preview?view="+view, nil), true)
	assert.Equal(t, http.StatusOK, preview.Code)
	assert.Equal(t, "image/png", preview.Header().Get("Content-Type"))

	submit := httptest.NewRequest(http.MethodPost, "/dashboard/submit?view="+view, nil)
	submit.Header.Set("Accept", "application/json")
	w = f.do(submit, true)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeFlow(t, w)
	assert.Equal(t, "empty", got.State)
	require.NotEmpty(t, got.Notifications)
	assert.Equal(t, upload.MsgSubmitted, got.Notifications[len(got.Notifications)-1].Message)
	assert.Equal(t, []string{"tok"}, f.submitter.tokens)
}

func TestFormPostsRedirectBackToView(t *testing.T) {
	f := newFixture(t)
	view := "6f1c2a8e-4b7d-4c53-9a1e-0d7e5b2f3c10"
	w := f.do(httptest.NewRequest(http.MethodPost, "/dashboard/submit?view="+view, nil), true)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard?view="+view, w.Header().Get("Location"))

	page := f.do(httptest.NewRequest(http.MethodGet, "/dashboard?view="+view, nil), true)
	assert.Contains(t, page.Body.String(), upload.MsgNoImage)
}

func TestMediaIsScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	own, err := f.media.Put(ctx, "u1", "mine.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	other, err := f.media.Put(ctx, "u2", "theirs.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)

	w := f.do(httptest.NewRequest(http.MethodGet, "/media/"+own.Key, nil), true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, w.Body.Bytes())

	w = f.do(httptest.NewRequest(http.MethodGet, "/media/"+other.Key, nil), true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestModalScriptDetachesListenerOnClose(t *testing.T) {
	file, err := StaticFS().Open("/app.js")
	require.NoError(t, err)
	defer file.Close()
	raw, err := io.ReadAll(file)
	require.NoError(t, err)
	js := string(raw)
	assert.Contains(t, js, `document.addEventListener("pointerdown", outside)`)
	assert.Contains(t, js, `document.removeEventListener("pointerdown", outside)`)
	assert.Contains(t, js, "closeModals(list)")
}

func TestStatsFragmentAndJSON(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a1", analyses.StatusSuccess, now.Add(-time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil)
	req.Header.Set("Accept", "application/json")
	w := f.do(req, true)
	require.Equal(t, http.StatusOK, w.Code)
	var view statsView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 1, view.Total)
	assert.Equal(t, 1, view.ThisMonth)
	assert.Equal(t, "-", view.LastLogin)

	w = f.do(httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil), true)
	assert.Contains(t, w.Body.String(), `id="stats"`)
}

// streamRecorder lets the test read the body while the handler is still
// writing, and gives gin the CloseNotifier it expects from a live connection.
type streamRecorder struct {
	*httptest.ResponseRecorder
	mu     sync.Mutex
	closed chan bool
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
}

func (r *streamRecorder) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(b)
}

func (r *streamRecorder) WriteString(s string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.WriteString(s)
}

func (r *streamRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ResponseRecorder.Flush()
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

func (r *streamRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Body.String()
}

func TestHistoryStreamPushesSnapshotsOnChange(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "first", analyses.StatusSuccess, now.Add(-time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/dashboard/history/stream", nil).WithContext(ctx)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "tok"})
	w := newStreamRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.router.ServeHTTP(w, req)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(w.body(), "Mostrando 1 de 1 análises")
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return f.bus.Subscribers("u1") == 1 }, 2*time.Second, 10*time.Millisecond)

	f.seed(t, "second", analyses.StatusPending, now)
	require.Eventually(t, func() bool {
		return strings.Contains(w.body(), "Mostrando 2 de 2 análises")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after the client went away")
	}
	assert.Contains(t, w.body(), "event:snapshot")
	assert.Equal(t, 0, f.bus.Subscribers("u1"))
}

func TestStreamRequiresSession(t *testing.T) {
	f := newFixture(t)
	w := f.do(httptest.NewRequest(http.MethodGet, "/dashboard/recent/stream", nil), false)
	assert.Equal(t, http.StatusFound, w.Code)
}
