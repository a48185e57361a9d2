package config

import (
	"strings"
	"time"
)

const clientIDVar = "CLIENT_ID"

// Cache locations for the identity client's token cache.
const (
	CacheLocationMemory = "memory"
	CacheLocationValkey = "valkey"
)

type IdentityConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetAuthority() string
	GetSkipIssuerCheck() bool
	GetRedirectURI() string
	GetPostLogoutRedirectURI() string
	GetScopes() []string
	GetGraphEndpoint() string
	GetCacheLocation() string
	GetCacheTTL() time.Duration
	GetValkeyAddress() string
	GetValkeyPrefix() string
	GetStoreAuthStateInCookie() bool
	GetPopupTimeout() time.Duration
	GetOpenBrowser() bool
}

type Identity struct {
	ClientID               string        `env:"CLIENT_ID"`
	ClientSecret           string        `env:"CLIENT_SECRET"`
	Authority              string        `env:"AUTHORITY" envDefault:"https://login.microsoftonline.com/common/v2.0"`
	SkipIssuerCheck        bool          `env:"SKIP_ISSUER_CHECK" envDefault:"true"`
	RedirectURI            string        `env:"REDIRECT_URI"`
	PostLogoutRedirectURI  string        `env:"POST_LOGOUT_REDIRECT_URI"`
	Scopes                 []string      `env:"SCOPES" envSeparator:"," envDefault:"user.read"`
	GraphEndpoint          string        `env:"GRAPH_ENDPOINT" envDefault:"https://graph.microsoft.com/v1.0"`
	CacheLocation          string        `env:"CACHE_LOCATION" envDefault:"memory"`
	CacheTTL               time.Duration `env:"CACHE_TTL" envDefault:"24h"`
	ValkeyAddress          string        `env:"VALKEY_ADDRESS" envDefault:"localhost:6379"`
	ValkeyPrefix           string        `env:"VALKEY_PREFIX" envDefault:"graph-signin"`
	StoreAuthStateInCookie bool          `env:"STORE_AUTH_STATE_IN_COOKIE" envDefault:"true"`
	PopupTimeout           time.Duration `env:"POPUP_TIMEOUT" envDefault:"5m"`
	OpenBrowser            bool          `env:"OPEN_BROWSER" envDefault:"true"`

	baseURL string
}

var _ IdentityConfig = Identity{}

func (i Identity) GetClientID() string {
	return i.ClientID
}

func (i Identity) GetClientSecret() string {
	return i.ClientSecret
}

func (i Identity) GetAuthority() string {
	return strings.TrimSuffix(i.Authority, "/")
}

func (i Identity) GetSkipIssuerCheck() bool {
	return i.SkipIssuerCheck
}

// GetRedirectURI returns the target the sign-in window is sent back to.
func (i Identity) GetRedirectURI() string {
	if i.RedirectURI != "" {
		return i.RedirectURI
	}
	return strings.TrimSuffix(i.baseURL, "/") + "/callback"
}

func (i Identity) GetPostLogoutRedirectURI() string {
	if i.PostLogoutRedirectURI != "" {
		return i.PostLogoutRedirectURI
	}
	return strings.TrimSuffix(i.baseURL, "/") + "/"
}

// GetScopes returns the ordered scope list requested on sign-in.
func (i Identity) GetScopes() []string {
	scopes := make([]string, 0, len(i.Scopes))
	for _, s := range i.Scopes {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

func (i Identity) GetGraphEndpoint() string {
	return strings.TrimSuffix(i.GraphEndpoint, "/")
}

func (i Identity) GetCacheLocation() string {
	if i.CacheLocation == CacheLocationValkey {
		return CacheLocationValkey
	}
	return CacheLocationMemory
}

func (i Identity) GetCacheTTL() time.Duration {
	return i.CacheTTL
}

func (i Identity) GetValkeyAddress() string {
	return i.ValkeyAddress
}

func (i Identity) GetValkeyPrefix() string {
	return i.ValkeyPrefix
}

func (i Identity) GetStoreAuthStateInCookie() bool {
	return i.StoreAuthStateInCookie
}

func (i Identity) GetPopupTimeout() time.Duration {
	return i.PopupTimeout
}

// GetOpenBrowser reports whether the sign-in window opens in the host's browser.
// When false the authorization URL is only written to the server log, so sign-in
// is limited to operators who can read that log.
func (i Identity) GetOpenBrowser() bool {
	return i.OpenBrowser
}
