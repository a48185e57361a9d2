package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-graph-signin/identity/authflow"
	"github.com/jrsteele09/go-graph-signin/identity/cache"
	"github.com/jrsteele09/go-graph-signin/internal/utils"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	defaultPopupTimeout = 5 * time.Minute
	// Access tokens this close to expiry are treated as expired.
	expirySkew = 5 * time.Minute
)

// ProviderConfig names the application registration and where the platform lives.
type ProviderConfig struct {
	ClientID              string
	ClientSecret          string
	Authority             string
	RedirectURI           string
	PostLogoutRedirectURI string
	// SkipIssuerCheck accepts tokens from any tenant, needed for the multi-tenant "common" authority.
	SkipIssuerCheck bool
}

// Provider holds the discovered platform metadata and the state shared by every
// browsing session: the token cache and the sign-in windows still waiting for a redirect.
type Provider struct {
	cfg                ProviderConfig
	oidc               *oidc.Provider
	verifier           *oidc.IDTokenVerifier
	endSessionEndpoint string

	store        cache.Store
	flows        authflow.Repo
	opener       Opener
	logger       zerolog.Logger
	httpClient   *http.Client
	popupTimeout time.Duration
	nowTime      func() time.Time
}

// ProviderOption defines a function type to modify the Provider instance.
type ProviderOption func(*Provider)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.nowTime = nowFunc
	}
}

// WithOpener sets how sign-in windows are shown to the user.
func WithOpener(opener Opener) ProviderOption {
	return func(p *Provider) {
		p.opener = opener
	}
}

func WithLogger(logger zerolog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithHTTPClient sets the client used for discovery, key and token requests.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithPopupTimeout bounds how long a sign-in window may stay open.
func WithPopupTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		if timeout > 0 {
			p.popupTimeout = timeout
		}
	}
}

// WithFlowRepo replaces the in-memory store of pending sign-in windows.
func WithFlowRepo(flows authflow.Repo) ProviderOption {
	return func(p *Provider) {
		p.flows = flows
	}
}

// NewProvider discovers the platform's metadata from the authority.
func NewProvider(ctx context.Context, cfg ProviderConfig, store cache.Store, options ...ProviderOption) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("[NewProvider] ClientID is required")
	}
	if cfg.Authority == "" {
		return nil, errors.New("[NewProvider] Authority is required")
	}
	if cfg.RedirectURI == "" {
		return nil, errors.New("[NewProvider] RedirectURI is required")
	}
	if store == nil {
		return nil, errors.New("[NewProvider] token cache store is required")
	}

	p := &Provider{
		cfg:          cfg,
		store:        store,
		flows:        authflow.NewInMemoryRepo(),
		opener:       BrowserOpener{},
		logger:       log.Logger,
		popupTimeout: defaultPopupTimeout,
		nowTime:      time.Now,
	}
	for _, opt := range options {
		opt(p)
	}

	discoveryCtx := p.clientContext(ctx)
	if cfg.SkipIssuerCheck {
		discoveryCtx = oidc.InsecureIssuerURLContext(discoveryCtx, cfg.Authority)
	}
	provider, err := oidc.NewProvider(discoveryCtx, cfg.Authority)
	if err != nil {
		return nil, fmt.Errorf("[NewProvider] discovery: %w", err)
	}
	p.oidc = provider

	var metadata struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&metadata); err != nil {
		return nil, fmt.Errorf("[NewProvider] read metadata: %w", err)
	}
	p.endSessionEndpoint = metadata.EndSessionEndpoint

	p.verifier = provider.Verifier(&oidc.Config{
		ClientID:        cfg.ClientID,
		SkipIssuerCheck: cfg.SkipIssuerCheck,
		Now:             p.nowTime,
	})

	p.logger.Debug().
		Str("authority", cfg.Authority).
		Str("end_session_endpoint", p.endSessionEndpoint).
		Msg("Discovered identity platform")
	return p, nil
}

// NewUserAgent returns the identity client for one browsing session.
func (p *Provider) NewUserAgent() *UserAgent {
	return &UserAgent{provider: p}
}

func (p *Provider) oauth2Config(scopes []string) *oauth2.Config {
	endpoint := p.oidc.Endpoint()
	if p.cfg.ClientSecret == "" {
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}
	return &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  p.cfg.RedirectURI,
		Scopes:       utils.Unique([]string{oidc.ScopeOpenID, "profile", oidc.ScopeOfflineAccess}, scopes),
	}
}

// clientContext carries the configured HTTP client into go-oidc and x/oauth2 calls.
func (p *Provider) clientContext(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	ctx = oidc.ClientContext(ctx, p.httpClient)
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// logoutURL is where the browser goes to end the platform session.
func (p *Provider) logoutURL(account *Account) (string, error) {
	if p.endSessionEndpoint == "" {
		return p.cfg.PostLogoutRedirectURI, nil
	}
	u, err := url.Parse(p.endSessionEndpoint)
	if err != nil {
		return "", fmt.Errorf("[Provider.logoutURL] parse end session endpoint: %w", err)
	}
	q := u.Query()
	q.Set("client_id", p.cfg.ClientID)
	if p.cfg.PostLogoutRedirectURI != "" {
		q.Set("post_logout_redirect_uri", p.cfg.PostLogoutRedirectURI)
	}
	if account != nil && account.Username != "" {
		q.Set("logout_hint", account.Username)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
