// Package sessions drives sign-in for one browsing session and keeps the state the pages render.
package sessions

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-graph-signin/auth"
	"github.com/jrsteele09/go-graph-signin/graph"
	"github.com/jrsteele09/go-graph-signin/identity"
	apperrors "github.com/jrsteele09/go-graph-signin/internal/errors"
	"github.com/jrsteele09/go-graph-signin/oauthmodel"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const loginKey = "login"

type ProfileFetcher interface {
	FetchProfile(ctx context.Context, accessToken string) (graph.User, error)
}

type Controller struct {
	client   identity.Client
	profiles ProfileFetcher
	scopes   []string
	logger   zerolog.Logger

	mu      sync.RWMutex
	session Session

	logins singleflight.Group
}

// NewController starts signed out.
func NewController(client identity.Client, profiles ProfileFetcher, scopes []string, logger zerolog.Logger) *Controller {
	return &Controller{
		client:   client,
		profiles: profiles,
		scopes:   scopes,
		logger:   logger,
	}
}

// Login signs the user in, acquires a token and loads the profile. It succeeds or
// fails as a whole: on any failure the session is signed out and carries the
// normalized error. A Login started while another is running shares its outcome.
//
// The attempt runs detached from any one caller and is bounded by the sign-in
// window timeout. A caller whose ctx ends stops waiting and gets the current
// snapshot; the attempt carries on for the others.
func (c *Controller) Login(ctx context.Context) Session {
	detached := context.WithoutCancel(ctx)
	results := c.logins.DoChan(loginKey, func() (any, error) {
		return c.login(detached), nil
	})

	select {
	case res := <-results:
		return res.Val.(Session).copy()
	case <-ctx.Done():
		c.logger.Debug().Err(ctx.Err()).Msg("Stopped waiting for sign-in")
		return c.Snapshot()
	}
}

// Logout signs the account out of the identity client and returns the URL that
// ends the session at the identity platform. The displayed state is left as is;
// the caller navigates away.
func (c *Controller) Logout(ctx context.Context) (string, error) {
	return c.client.Logout(ctx)
}

func (c *Controller) Snapshot() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.copy()
}

func (c *Controller) login(ctx context.Context) Session {
	user, err := c.authenticate(ctx)

	var session Session
	if err != nil {
		normalized := apperrors.Normalize(err)
		session = Session{Error: &normalized}
		c.logger.Warn().Err(err).Msg("Sign-in failed")
	} else {
		session = Session{IsAuthenticated: true, User: user}
		c.logger.Info().Str("email", user.Email).Msg("Signed in")
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	return session
}

func (c *Controller) authenticate(ctx context.Context) (User, error) {
	if _, err := c.client.LoginPopup(ctx, identity.LoginRequest{Scopes: c.scopes, Prompt: oauthmodel.PromptSelectAccount}); err != nil {
		return User{}, err
	}

	token, err := auth.AcquireToken(ctx, c.client, c.scopes)
	if err != nil {
		return User{}, err
	}

	profile, err := c.profiles.FetchProfile(ctx, token)
	if err != nil {
		return User{}, err
	}
	return userFromProfile(profile)
}

// userFromProfile picks the display fields. Email prefers mail over the user principal name.
func userFromProfile(profile graph.User) (User, error) {
	user := User{DisplayName: profile.DisplayName, Email: profile.Mail}
	if user.Email == "" {
		user.Email = profile.UserPrincipalName
	}
	if user.DisplayName == "" {
		user.DisplayName = user.Email
	}
	if user.DisplayName == "" {
		return User{}, apperrors.ErrIncompleteProfile
	}
	return user, nil
}
