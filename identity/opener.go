package identity

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/skratchdot/open-golang/open"
)

// Opener shows the authorization URL to the user in a sign-in window.
type Opener interface {
	Open(ctx context.Context, authURL string) error
}

type OpenerFunc func(ctx context.Context, authURL string) error

func (f OpenerFunc) Open(ctx context.Context, authURL string) error {
	return f(ctx, authURL)
}

// BrowserOpener opens the URL in the system's default browser.
type BrowserOpener struct{}

func (BrowserOpener) Open(_ context.Context, authURL string) error {
	return open.Run(authURL)
}

// LogOpener writes the URL to the log for a user to open by hand, for hosts without a browser.
// Only someone who can read the server log can finish sign-in this way; the page itself
// never shows the URL.
type LogOpener struct {
	Logger zerolog.Logger
}

func (o LogOpener) Open(_ context.Context, authURL string) error {
	o.Logger.Info().Str("url", authURL).Msg("Open this URL to sign in")
	return nil
}
