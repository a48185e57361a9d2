package config

import "time"

type SecurityConfig interface {
	GetCookieSecret() string
	GetMaxSessionAge() time.Duration
}

type Security struct {
	CookieSecret  string        `env:"COOKIE_SECRET"`
	MaxSessionAge time.Duration `env:"MAX_SESSION_AGE" envDefault:"8h"`
}

var _ SecurityConfig = Security{}

// GetCookieSecret returns the secret used to seal cookies and sign CSRF tokens.
// An empty value means a random per-process secret is used.
func (s Security) GetCookieSecret() string {
	return s.CookieSecret
}

func (s Security) GetMaxSessionAge() time.Duration {
	return s.MaxSessionAge
}
