package server_test

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-graph-signin/graph"
	"github.com/jrsteele09/go-graph-signin/identity"
	"github.com/jrsteele09/go-graph-signin/identity/cache"
	"github.com/jrsteele09/go-graph-signin/internal/config"
	"github.com/jrsteele09/go-graph-signin/internal/oidctest"
	"github.com/jrsteele09/go-graph-signin/oauthmodel"
	"github.com/jrsteele09/go-graph-signin/server"
	"github.com/jrsteele09/go-graph-signin/server/browsersession"
	"github.com/jrsteele09/go-graph-signin/sessions"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const allowedOrigin = "https://app.example"

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type harness struct {
	idp   *oidctest.Server
	graph *httptest.Server
	srv   *httptest.Server

	mu         sync.Mutex
	opener     identity.OpenerFunc
	openedURLs []string
	graphDown  bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{idp: oidctest.New(t, "test-client")}
	h.opener = h.approveViaCallback

	h.graph = httptest.NewServer(http.HandlerFunc(h.serveGraph))
	t.Cleanup(h.graph.Close)

	t.Setenv("ENV", "TEST")
	t.Setenv("CLIENT_ID", "test-client")
	t.Setenv("AUTHORITY", h.idp.Issuer())
	t.Setenv("SKIP_ISSUER_CHECK", "false")
	t.Setenv("GRAPH_ENDPOINT", h.graph.URL+"/v1.0")
	t.Setenv("SCOPES", "User.Read")
	t.Setenv("COOKIE_SECRET", "server-test-secret")
	t.Setenv("ALLOWED_ORIGINS", allowedOrigin)
	t.Setenv("STORE_AUTH_STATE_IN_COOKIE", "true")

	cfg, err := config.New()
	require.NoError(t, err)

	provider, err := identity.NewProvider(t.Context(), identity.ProviderConfig{
		ClientID:              cfg.GetClientID(),
		Authority:             cfg.GetAuthority(),
		RedirectURI:           cfg.GetRedirectURI(),
		PostLogoutRedirectURI: cfg.GetPostLogoutRedirectURI(),
		SkipIssuerCheck:       cfg.GetSkipIssuerCheck(),
	}, cache.NewMemoryStore(time.Hour),
		identity.WithLogger(zerolog.Nop()),
		identity.WithPopupTimeout(5*time.Second),
		identity.WithOpener(identity.OpenerFunc(func(ctx context.Context, authURL string) error {
			h.mu.Lock()
			h.openedURLs = append(h.openedURLs, authURL)
			open := h.opener
			h.mu.Unlock()
			return open(ctx, authURL)
		})),
	)
	require.NoError(t, err)

	s, err := server.New(cfg, provider, graph.NewService(cfg.GetGraphEndpoint(), nil), browsersession.NewInMemoryRepo(time.Hour))
	require.NoError(t, err)

	h.srv = httptest.NewServer(s)
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) serveGraph(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	down := h.graphDown
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if down || !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer at-") {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"code":"InvalidAuthenticationToken","message":"Access token is empty."}}`)
		return
	}
	_, _ = io.WriteString(w, `{"id":"1","displayName":"Jane Doe","mail":"jane@contoso.com","userPrincipalName":"jane@contoso.onmicrosoft.com"}`)
}

// approveViaCallback signs in at the platform and follows its redirect to /callback.
func (h *harness) approveViaCallback(_ context.Context, authURL string) error {
	resp, err := h.idp.Approve(authURL)
	if err != nil {
		return err
	}
	return h.callback(url.Values{"state": {resp.State}, "code": {resp.Code}})
}

func (h *harness) callback(values url.Values) error {
	_, err := h.callbackPage(values)
	return err
}

// callbackPage delivers the redirect to /callback and returns the page the window shows.
func (h *harness) callbackPage(values url.Values) (string, error) {
	res, err := http.Get(h.srv.URL + server.RouteCallback + "?" + values.Encode())
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return string(body), fmt.Errorf("callback status %d", res.StatusCode)
	}
	return string(body), nil
}

func (h *harness) setOpener(opener identity.OpenerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opener = opener
}

func (h *harness) lastOpenedURL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.openedURLs) == 0 {
		return ""
	}
	return h.openedURLs[len(h.openedURLs)-1]
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func get(t *testing.T, client *http.Client, target string) (*http.Response, string) {
	t.Helper()
	res, err := client.Get(target)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(body)
}

func post(t *testing.T, client *http.Client, target, csrfToken string) *http.Response {
	t.Helper()
	res, err := client.PostForm(target, url.Values{"csrf_token": {csrfToken}})
	require.NoError(t, err)
	_ = res.Body.Close()
	return res
}

func csrfToken(t *testing.T, body string) string {
	t.Helper()
	m := csrfPattern.FindStringSubmatch(body)
	require.Len(t, m, 2, "no csrf token in page")
	return m[1]
}

func sessionJSON(t *testing.T, client *http.Client, base string) sessions.Session {
	t.Helper()
	res, body := get(t, client, base+server.RouteAPISession)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var session sessions.Session
	require.NoError(t, json.Unmarshal([]byte(body), &session))
	return session
}

func TestSignInAndOut(t *testing.T) {
	h := newHarness(t)
	browser := newBrowser(t)

	res, body := get(t, browser, h.srv.URL+"/")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Sign In")
	assert.Contains(t, body, "Click here to sign in")
	assert.NotContains(t, body, "Welcome")
	assert.Equal(t, "SAMEORIGIN", res.Header.Get("X-Frame-Options"))

	res = post(t, browser, h.srv.URL+server.RouteAuthLogin, csrfToken(t, body))
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/", res.Header.Get("Location"))
	assert.Contains(t, h.lastOpenedURL(), "prompt=select_account")

	_, body = get(t, browser, h.srv.URL+"/")
	assert.Contains(t, body, "Welcome Jane Doe!")
	assert.Contains(t, body, "jane@contoso.com")
	assert.Contains(t, body, "Sign Out")
	assert.NotContains(t, body, "alert-danger")

	session := sessionJSON(t, browser, h.srv.URL)
	assert.Equal(t, sessions.Session{IsAuthenticated: true, User: sessions.User{DisplayName: "Jane Doe", Email: "jane@contoso.com"}}, session)

	res = post(t, browser, h.srv.URL+server.RouteAuthLogout, csrfToken(t, body))
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	location := res.Header.Get("Location")
	assert.True(t, strings.HasPrefix(location, h.idp.URL+"/logout?"), location)
	assert.Contains(t, location, "post_logout_redirect_uri=")

	assert.False(t, sessionJSON(t, browser, h.srv.URL).IsAuthenticated)
}

func TestSignInFailureShowsErrorBanner(t *testing.T) {
	h := newHarness(t)
	h.setOpener(func(_ context.Context, authURL string) error {
		resp := h.idp.Deny(authURL, oauthmodel.ErrorAccessDenied, "AADSTS65004: User declined to consent to access the app.")
		return h.callback(url.Values{"state": {resp.State}, "error": {string(resp.Error)}, "error_description": {resp.ErrorDescription}})
	})
	browser := newBrowser(t)

	_, body := get(t, browser, h.srv.URL+"/")
	post(t, browser, h.srv.URL+server.RouteAuthLogin, csrfToken(t, body))

	_, body = get(t, browser, h.srv.URL+"/")
	assert.Contains(t, body, "alert-danger")
	assert.Contains(t, body, "AADSTS65004: User declined to consent to access the app.")
	assert.Contains(t, body, "<code>access_denied</code>")
	assert.Contains(t, body, "Sign In")

	session := sessionJSON(t, browser, h.srv.URL)
	assert.False(t, session.IsAuthenticated)
	require.NotNil(t, session.Error)
	require.NotNil(t, session.Error.Debug)
	assert.Equal(t, "access_denied", *session.Error.Debug)
}

func TestProfileFailureShowsErrorBanner(t *testing.T) {
	h := newHarness(t)
	h.mu.Lock()
	h.graphDown = true
	h.mu.Unlock()
	browser := newBrowser(t)

	_, body := get(t, browser, h.srv.URL+"/")
	post(t, browser, h.srv.URL+server.RouteAuthLogin, csrfToken(t, body))

	session := sessionJSON(t, browser, h.srv.URL)
	assert.False(t, session.IsAuthenticated)
	require.NotNil(t, session.Error)
	assert.Equal(t, "InvalidAuthenticationToken: Access token is empty.", session.Error.Message)
	require.NotNil(t, session.Error.Debug)
	assert.Contains(t, *session.Error.Debug, `"statusCode":401`)
}

func TestFormPostsRequireCSRF(t *testing.T) {
	h := newHarness(t)
	browser := newBrowser(t)
	other := newBrowser(t)

	_, body := get(t, browser, h.srv.URL+"/")
	_, otherBody := get(t, other, h.srv.URL+"/")

	assert.Equal(t, http.StatusForbidden, post(t, browser, h.srv.URL+server.RouteAuthLogin, "").StatusCode)
	assert.Equal(t, http.StatusForbidden, post(t, browser, h.srv.URL+server.RouteAuthLogin, csrfToken(t, otherBody)).StatusCode)
	assert.Equal(t, http.StatusForbidden, post(t, newBrowser(t), h.srv.URL+server.RouteAuthLogout, csrfToken(t, body)).StatusCode)
	assert.Empty(t, h.lastOpenedURL())
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	h := newHarness(t)

	res, body := get(t, newBrowser(t), h.srv.URL+server.RouteCallback+"?state=unknown&code=abc")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, body, "no longer in use")
	assert.NotContains(t, body, "window.close")
}

func TestCallbackPageClosesOnlyOnSuccess(t *testing.T) {
	h := newHarness(t)
	pages := make(chan string, 1)
	signIn := func(opener identity.OpenerFunc) string {
		h.setOpener(opener)
		browser := newBrowser(t)
		_, body := get(t, browser, h.srv.URL+"/")
		post(t, browser, h.srv.URL+server.RouteAuthLogin, csrfToken(t, body))
		return <-pages
	}

	page := signIn(func(_ context.Context, authURL string) error {
		resp, err := h.idp.Approve(authURL)
		if err != nil {
			return err
		}
		body, err := h.callbackPage(url.Values{"state": {resp.State}, "code": {resp.Code}})
		pages <- body
		return err
	})
	assert.Contains(t, page, "You are signed in")
	assert.Contains(t, page, "window.close()")

	page = signIn(func(_ context.Context, authURL string) error {
		resp := h.idp.Deny(authURL, oauthmodel.ErrorAccessDenied, "AADSTS65004: User declined to consent to access the app.")
		body, err := h.callbackPage(url.Values{"state": {resp.State}, "error": {string(resp.Error)}, "error_description": {resp.ErrorDescription}})
		pages <- body
		return err
	})
	assert.Contains(t, page, "Sign-in did not complete")
	assert.Contains(t, page, "AADSTS65004: User declined to consent to access the app.")
	assert.NotContains(t, page, "window.close")
}

func TestAccountStateCookieRemembersAccount(t *testing.T) {
	h := newHarness(t)
	first := newBrowser(t)

	_, body := get(t, first, h.srv.URL+"/")
	post(t, first, h.srv.URL+server.RouteAuthLogin, csrfToken(t, body))
	require.True(t, sessionJSON(t, first, h.srv.URL).IsAuthenticated)

	base, err := url.Parse(h.srv.URL)
	require.NoError(t, err)
	var accountState *http.Cookie
	for _, c := range first.Jar.Cookies(base) {
		if c.Name == "account_state" {
			accountState = c
		}
	}
	require.NotNil(t, accountState)
	assert.NotContains(t, accountState.Value, "jane")

	second := newBrowser(t)
	second.Jar.SetCookies(base, []*http.Cookie{accountState})

	_, body = get(t, second, h.srv.URL+"/")
	assert.Contains(t, body, "Sign In")
	post(t, second, h.srv.URL+server.RouteAuthLogin, csrfToken(t, body))
	assert.Contains(t, h.lastOpenedURL(), "login_hint=jane%40contoso.com")
	assert.True(t, sessionJSON(t, second, h.srv.URL).IsAuthenticated)
}

func TestSessionAPICORS(t *testing.T) {
	h := newHarness(t)

	preflight, err := http.NewRequest(http.MethodOptions, h.srv.URL+server.RouteAPISession, nil)
	require.NoError(t, err)
	preflight.Header.Set("Origin", allowedOrigin)
	res, err := http.DefaultClient.Do(preflight)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, allowedOrigin, res.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", res.Header.Get("Access-Control-Allow-Credentials"))

	req, err := http.NewRequest(http.MethodGet, h.srv.URL+server.RouteAPISession, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
}

func TestStaticFiles(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/css/app.css", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "gzip", res.Header.Get("Content-Encoding"))
	assert.Contains(t, res.Header.Get("Cache-Control"), "max-age=300")
	assert.Contains(t, res.Header.Get("Content-Type"), "text/css")

	gz, err := gzip.NewReader(res.Body)
	require.NoError(t, err)
	css, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(css), ".navbar")

	missing, _ := get(t, newBrowser(t), h.srv.URL+"/css/missing.css")
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	unknown, _ := get(t, newBrowser(t), h.srv.URL+"/unknown")
	assert.Equal(t, http.StatusNotFound, unknown.StatusCode)
}
