// Package oidctest runs an in-process OpenID Connect identity platform for tests.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-graph-signin/oauthmodel"
)

const keyID = "oidctest-key"

// User is the identity the platform signs in when a sign-in window is approved.
type User struct {
	Subject  string
	ObjectID string
	TenantID string
	Name     string
	Username string
}

type grant struct {
	clientID      string
	codeChallenge string
	nonce         string
	redirectURI   string
	scopes        []string
}

// Server is a fake identity platform. Exported fields may be changed between requests.
type Server struct {
	*httptest.Server

	ClientID       string
	User           User
	AccessTokenTTL time.Duration
	// RefreshErrorCode, when set, makes every refresh_token grant fail with that error.
	RefreshErrorCode oauthmodel.ErrorCode

	key *rsa.PrivateKey

	mu            sync.Mutex
	codes         map[string]grant
	refreshTokens map[string]grant
	tokenRequests map[string]int
}

// New starts a platform for clientID and stops it when the test ends.
func New(t testing.TB, clientID string) *Server {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	s := &Server{
		ClientID: clientID,
		User: User{
			Subject:  "sub-jane",
			ObjectID: "00000000-0000-0000-0000-00000000jane",
			TenantID: "contoso-tenant",
			Name:     "Jane Doe",
			Username: "jane@contoso.com",
		},
		AccessTokenTTL: time.Hour,
		key:            key,
		codes:          make(map[string]grant),
		refreshTokens:  make(map[string]grant),
		tokenRequests:  make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", s.handleDiscovery)
	mux.HandleFunc("GET /keys", s.handleKeys)
	mux.HandleFunc("POST /token", s.handleToken)
	mux.HandleFunc("GET /logout", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Issuer is the platform's issuer and discovery base URL.
func (s *Server) Issuer() string {
	return s.URL
}

// TokenRequests counts token endpoint calls for a grant type.
func (s *Server) TokenRequests(grantType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenRequests[grantType]
}

// Approve plays the user signing in at authURL and returns what the platform
// would redirect back with.
func (s *Server) Approve(authURL string) (oauthmodel.AuthorizationResponse, error) {
	u, err := url.Parse(authURL)
	if err != nil {
		return oauthmodel.AuthorizationResponse{}, err
	}
	q := u.Query()

	if q.Get("client_id") != s.ClientID {
		return oauthmodel.AuthorizationResponse{}, fmt.Errorf("unknown client %q", q.Get("client_id"))
	}
	if q.Get("response_type") != "code" {
		return oauthmodel.AuthorizationResponse{}, fmt.Errorf("unsupported response_type %q", q.Get("response_type"))
	}
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		return oauthmodel.AuthorizationResponse{}, fmt.Errorf("missing S256 code challenge")
	}

	code := uuid.NewString()
	s.mu.Lock()
	s.codes[code] = grant{
		clientID:      q.Get("client_id"),
		codeChallenge: q.Get("code_challenge"),
		nonce:         q.Get("nonce"),
		redirectURI:   q.Get("redirect_uri"),
		scopes:        oauthmodel.ParseScopes(q.Get("scope")),
	}
	s.mu.Unlock()

	return oauthmodel.AuthorizationResponse{State: q.Get("state"), Code: code}, nil
}

// Deny plays the platform rejecting the sign-in at authURL.
func (s *Server) Deny(authURL string, code oauthmodel.ErrorCode, description string) oauthmodel.AuthorizationResponse {
	state := ""
	if u, err := url.Parse(authURL); err == nil {
		state = u.Query().Get("state")
	}
	return oauthmodel.AuthorizationResponse{State: state, Error: code, ErrorDescription: description}
}

func (s *Server) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                s.URL,
		"authorization_endpoint":                s.URL + "/authorize",
		"token_endpoint":                        s.URL + "/token",
		"jwks_uri":                              s.URL + "/keys",
		"end_session_endpoint":                  s.URL + "/logout",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"pairwise"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"scopes_supported":                      oauthmodel.ReservedScopes,
	})
}

func (s *Server) handleKeys(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &s.key.PublicKey,
		KeyID:     keyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		tokenError(w, "invalid_request", err.Error())
		return
	}
	grantType := r.PostForm.Get("grant_type")

	s.mu.Lock()
	s.tokenRequests[grantType]++
	s.mu.Unlock()

	switch grantType {
	case "authorization_code":
		s.redeemCode(w, r)
	case "refresh_token":
		s.redeemRefreshToken(w, r)
	default:
		tokenError(w, "unsupported_grant_type", grantType)
	}
}

func (s *Server) redeemCode(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	g, ok := s.codes[r.PostForm.Get("code")]
	delete(s.codes, r.PostForm.Get("code"))
	s.mu.Unlock()

	if !ok {
		tokenError(w, string(oauthmodel.ErrorInvalidGrant), "AADSTS70008: The provided authorization code is invalid.")
		return
	}
	if clientID(r) != g.clientID {
		tokenError(w, "invalid_client", "client mismatch")
		return
	}
	if r.PostForm.Get("redirect_uri") != g.redirectURI {
		tokenError(w, string(oauthmodel.ErrorInvalidGrant), "redirect_uri mismatch")
		return
	}
	sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
	if base64.RawURLEncoding.EncodeToString(sum[:]) != g.codeChallenge {
		tokenError(w, string(oauthmodel.ErrorInvalidGrant), "AADSTS50148: The code_verifier does not match the code_challenge.")
		return
	}
	s.issue(w, g)
}

func (s *Server) redeemRefreshToken(w http.ResponseWriter, r *http.Request) {
	if s.RefreshErrorCode != "" {
		tokenError(w, string(s.RefreshErrorCode), "AADSTS700082: The refresh token has expired due to inactivity.")
		return
	}

	s.mu.Lock()
	g, ok := s.refreshTokens[r.PostForm.Get("refresh_token")]
	delete(s.refreshTokens, r.PostForm.Get("refresh_token"))
	s.mu.Unlock()

	if !ok {
		tokenError(w, string(oauthmodel.ErrorInvalidGrant), "AADSTS9002313: Invalid refresh token.")
		return
	}
	g.nonce = ""
	s.issue(w, g)
}

func (s *Server) issue(w http.ResponseWriter, g grant) {
	idToken, err := s.idToken(g)
	if err != nil {
		tokenError(w, "server_error", err.Error())
		return
	}

	refreshToken := "rt-" + uuid.NewString()
	s.mu.Lock()
	s.refreshTokens[refreshToken] = g
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  "at-" + uuid.NewString(),
		"token_type":    "Bearer",
		"expires_in":    int(s.AccessTokenTTL / time.Second),
		"refresh_token": refreshToken,
		"id_token":      idToken,
		"scope":         strings.Join(oauthmodel.ResourceScopes(g.scopes), " "),
	})
}

func (s *Server) idToken(g grant) (string, error) {
	now := time.Now()
	claims := jwtlib.MapClaims{
		"iss":                s.URL,
		"aud":                g.clientID,
		"sub":                s.User.Subject,
		"oid":                s.User.ObjectID,
		"tid":                s.User.TenantID,
		"name":               s.User.Name,
		"preferred_username": s.User.Username,
		"iat":                now.Unix(),
		"exp":                now.Add(time.Hour).Unix(),
	}
	if g.nonce != "" {
		claims["nonce"] = g.nonce
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	token.Header["kid"] = keyID
	return token.SignedString(s.key)
}

func clientID(r *http.Request) string {
	if id, _, ok := r.BasicAuth(); ok {
		return id
	}
	return r.PostForm.Get("client_id")
}

func tokenError(w http.ResponseWriter, code, description string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
