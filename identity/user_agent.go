package identity

import (
	"context"
	"slices"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-graph-signin/internal/errors"
	"github.com/jrsteele09/go-graph-signin/oauthmodel"
	"golang.org/x/oauth2"
)

// cacheEntry is what the token cache holds for one account.
type cacheEntry struct {
	Account      Account   `json:"account"`
	AccessToken  string    `json:"accessToken"`
	TokenType    string    `json:"tokenType"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	IDToken      string    `json:"idToken,omitempty"`
	Scopes       []string  `json:"scopes"`
	ExpiresOn    time.Time `json:"expiresOn"`
}

// update copies a token endpoint response into the entry. A response without a
// refresh token or id token keeps the ones already held.
func (e *cacheEntry) update(token *oauth2.Token, requested []string) {
	e.AccessToken = token.AccessToken
	e.TokenType = token.Type()
	e.ExpiresOn = token.Expiry
	if token.RefreshToken != "" {
		e.RefreshToken = token.RefreshToken
	}
	if idToken, ok := token.Extra("id_token").(string); ok && idToken != "" {
		e.IDToken = idToken
	}
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		e.Scopes = oauthmodel.ParseScopes(scope)
	} else if len(e.Scopes) == 0 {
		e.Scopes = slices.Clone(requested)
	}
}

func (e cacheEntry) result(fromCache bool) AuthResult {
	return AuthResult{
		AccessToken: e.AccessToken,
		IDToken:     e.IDToken,
		Scopes:      slices.Clone(e.Scopes),
		ExpiresOn:   e.ExpiresOn,
		Account:     e.Account,
		FromCache:   fromCache,
	}
}

// UserAgent is the identity client of one browsing session. It remembers which
// account signed in there; tokens live in the provider's shared cache.
type UserAgent struct {
	provider *Provider

	mu      sync.RWMutex
	account *Account
}

var _ Client = (*UserAgent)(nil)

func (u *UserAgent) Account() (Account, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.account == nil {
		return Account{}, false
	}
	return *u.account, true
}

// RestoreAccount marks account as signed in, e.g. from a cookie written by an earlier browsing session.
func (u *UserAgent) RestoreAccount(account Account) {
	u.setAccount(&account)
}

// LoginPopup signs the user in through a sign-in window. A remembered account is
// offered to the platform as the login hint.
func (u *UserAgent) LoginPopup(ctx context.Context, req LoginRequest) (AuthResult, error) {
	popupReq := popupRequest{scopes: req.Scopes, prompt: req.Prompt}
	if account, ok := u.Account(); ok {
		popupReq.loginHint = account.Username
	}

	entry, err := u.provider.popup(ctx, popupReq)
	if err != nil {
		return AuthResult{}, err
	}
	u.save(ctx, entry)
	u.setAccount(&entry.Account)
	return entry.result(false), nil
}

// AcquireTokenPopup gets a token through a sign-in window, hinting the platform
// with the account already signed in.
func (u *UserAgent) AcquireTokenPopup(ctx context.Context, req TokenRequest) (AuthResult, error) {
	popupReq := popupRequest{scopes: req.Scopes}
	if account, ok := u.Account(); ok {
		popupReq.loginHint = account.Username
	}

	entry, err := u.provider.popup(ctx, popupReq)
	if err != nil {
		return AuthResult{}, err
	}
	u.save(ctx, entry)
	u.setAccount(&entry.Account)
	return entry.result(false), nil
}

// AcquireTokenSilent returns a token without any user interaction: a cached
// access token if still valid, otherwise one redeemed with the cached refresh token.
// Failures that an interactive request could resolve are *AuthError values whose
// code is one of oauthmodel.InteractionRequiredCodes.
func (u *UserAgent) AcquireTokenSilent(ctx context.Context, req TokenRequest) (AuthResult, error) {
	account, ok := u.Account()
	if !ok {
		return AuthResult{}, newAuthError(oauthmodel.ErrorNoAccountInSilentRequest,
			"No account object provided to acquireTokenSilent and no active account has been set.")
	}

	var entry cacheEntry
	if err := u.provider.store.Get(ctx, account.HomeAccountID, &entry); err != nil {
		if apperrors.Is(err, apperrors.ErrCacheMiss) {
			return AuthResult{}, newAuthError(oauthmodel.ErrorLoginRequired, "No cached tokens were found for the signed-in account.")
		}
		return AuthResult{}, apperrors.Wrapf(err, "[UserAgent.AcquireTokenSilent] read token cache")
	}

	if !oauthmodel.CoversScopes(entry.Scopes, req.Scopes) {
		return AuthResult{}, newAuthError(oauthmodel.ErrorConsentRequired, "The user has not consented to all of the requested scopes.")
	}

	if !req.ForceRefresh && entry.AccessToken != "" && u.provider.nowTime().Add(expirySkew).Before(entry.ExpiresOn) {
		return entry.result(true), nil
	}

	if entry.RefreshToken == "" {
		return AuthResult{}, newAuthError(oauthmodel.ErrorLoginRequired, "No refresh token is cached for the signed-in account.")
	}

	cfg := u.provider.oauth2Config(req.Scopes)
	token, err := cfg.TokenSource(u.provider.clientContext(ctx), &oauth2.Token{RefreshToken: entry.RefreshToken}).Token()
	if err != nil {
		u.provider.logger.Debug().Err(err).Str("account", account.HomeAccountID).Msg("Silent token refresh failed")
		return AuthResult{}, retrieveAuthError(err)
	}

	entry.update(token, req.Scopes)
	u.save(ctx, entry)
	return entry.result(false), nil
}

// Logout forgets the account and its tokens and returns the URL that ends the
// session at the identity platform.
func (u *UserAgent) Logout(ctx context.Context) (string, error) {
	account, ok := u.Account()
	u.setAccount(nil)

	if !ok {
		return u.provider.logoutURL(nil)
	}
	if err := u.provider.store.Delete(ctx, account.HomeAccountID); err != nil {
		u.provider.logger.Warn().Err(err).Str("account", account.HomeAccountID).Msg("Failed to remove cached tokens")
	}
	return u.provider.logoutURL(&account)
}

// save writes to the token cache. Write failures are logged, not returned.
func (u *UserAgent) save(ctx context.Context, entry cacheEntry) {
	if err := u.provider.store.Set(ctx, entry.Account.HomeAccountID, entry); err != nil {
		u.provider.logger.Warn().Err(err).Str("account", entry.Account.HomeAccountID).Msg("Failed to write token cache")
	}
}

func (u *UserAgent) setAccount(account *Account) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if account == nil {
		u.account = nil
		return
	}
	a := *account
	u.account = &a
}
