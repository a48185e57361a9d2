package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-graph-signin/identity"
	"github.com/jrsteele09/go-graph-signin/internal/config"
	"github.com/jrsteele09/go-graph-signin/internal/seal"
	"github.com/jrsteele09/go-graph-signin/oauthmodel"
	"github.com/jrsteele09/go-graph-signin/server/browsersession"
	"github.com/jrsteele09/go-graph-signin/sessions"
	"github.com/rs/zerolog/log"
)

const (
	sealPurposeAccountState = "account-state"
	keyPurposeCSRF          = "csrf"
)

// IdentityProvider creates the identity client of each browser and completes
// sign-in windows when the platform redirects back.
type IdentityProvider interface {
	NewUserAgent() *identity.UserAgent
	CompletePopup(resp oauthmodel.AuthorizationResponse) error
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	identity IdentityProvider
	profiles sessions.ProfileFetcher
	browsers browsersession.Repo

	accountState *seal.Sealer
	csrfKey      []byte

	indexTemplate *template.Template
	popupTemplate *template.Template

	nowTime func() time.Time
}

func New(cfg config.Config, provider IdentityProvider, profiles sessions.ProfileFetcher, browsers browsersession.Repo) (*Server, error) {
	if provider == nil {
		return nil, fmt.Errorf("[Server New] identity provider is required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("[Server New] profile fetcher is required")
	}
	if browsers == nil {
		return nil, fmt.Errorf("[Server New] browsing session repo is required")
	}

	secret := []byte(cfg.GetCookieSecret())
	if len(secret) == 0 {
		log.Warn().Msg("COOKIE_SECRET not set, cookies will not survive a restart")
		secret = seal.RandomSecret()
	}
	accountState, err := seal.New(secret, sealPurposeAccountState)
	if err != nil {
		return nil, fmt.Errorf("[Server New] account state sealer: %w", err)
	}
	csrfKey, err := seal.DeriveKey(secret, keyPurposeCSRF)
	if err != nil {
		return nil, fmt.Errorf("[Server New] csrf key: %w", err)
	}

	indexTemplate, err := ParseTemplate("index.html")
	if err != nil {
		return nil, fmt.Errorf("[Server New] parse index template: %w", err)
	}
	popupTemplate, err := ParseTemplate("popup_complete.html")
	if err != nil {
		return nil, fmt.Errorf("[Server New] parse popup template: %w", err)
	}

	s := &Server{
		env:           cfg.GetEnv(),
		mux:           http.NewServeMux(),
		config:        cfg,
		identity:      provider,
		profiles:      profiles,
		browsers:      browsers,
		accountState:  accountState,
		csrfKey:       csrfKey,
		indexTemplate: indexTemplate,
		popupTemplate: popupTemplate,
		nowTime:       time.Now,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		log.Debug().Str("method", method).Str("path", path).Msg("Route registered")
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
