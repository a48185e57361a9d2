package identity

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-graph-signin/identity/authflow"
	apperrors "github.com/jrsteele09/go-graph-signin/internal/errors"
	"github.com/jrsteele09/go-graph-signin/oauthmodel"
	"golang.org/x/oauth2"
)

type popupRequest struct {
	scopes    []string
	prompt    oauthmodel.PromptType
	loginHint string
}

// CompletePopup hands the redirect a sign-in window received back to the request waiting on it.
func (p *Provider) CompletePopup(resp oauthmodel.AuthorizationResponse) error {
	flow, err := p.flows.Get(resp.State)
	if err != nil {
		return fmt.Errorf("[Provider.CompletePopup] state %q: %w", resp.State, err)
	}
	if !flow.Complete(resp) {
		return fmt.Errorf("[Provider.CompletePopup] state %q: %w", resp.State, apperrors.ErrFlowCompleted)
	}
	return nil
}

// popup runs an authorization code flow with PKCE in a sign-in window and redeems the code.
// Window failures are returned as "code|description" string errors.
func (p *Provider) popup(ctx context.Context, req popupRequest) (cacheEntry, error) {
	state := uuid.NewString()
	nonce := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	flow := authflow.NewFlow(state, verifier, nonce, req.scopes, p.nowTime())
	if err := p.flows.Upsert(state, flow); err != nil {
		return cacheEntry{}, fmt.Errorf("[Provider.popup] store flow: %w", err)
	}
	defer func() { _ = p.flows.Delete(state) }()

	cfg := p.oauth2Config(req.scopes)
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier), oidc.Nonce(nonce)}
	if req.prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", req.prompt.String()))
	}
	if req.loginHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", req.loginHint))
	}
	authURL := cfg.AuthCodeURL(state, opts...)

	if err := p.opener.Open(ctx, authURL); err != nil {
		return cacheEntry{}, apperrors.NewStringError(oauthmodel.ErrorPopupWindow.String(), "Unable to open the sign-in window: "+err.Error())
	}
	p.logger.Debug().Str("state", state).Msg("Waiting for sign-in window")

	waitCtx, cancel := context.WithTimeout(ctx, p.popupTimeout)
	defer cancel()

	select {
	case resp := <-flow.Responses():
		if resp.Failed() {
			return cacheEntry{}, apperrors.NewStringError(resp.Error.String(), resp.ErrorDescription)
		}
		return p.redeem(ctx, cfg, flow, resp.Code)
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return cacheEntry{}, apperrors.NewStringError(oauthmodel.ErrorUserCancelled.String(), "User cancelled the flow.")
		}
		return cacheEntry{}, apperrors.NewStringError(oauthmodel.ErrorPopupTimeout.String(),
			fmt.Sprintf("The sign-in window was not completed within %s.", p.popupTimeout))
	}
}

func (p *Provider) redeem(ctx context.Context, cfg *oauth2.Config, flow *authflow.Flow, code string) (cacheEntry, error) {
	ctx = p.clientContext(ctx)

	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(flow.CodeVerifier))
	if err != nil {
		return cacheEntry{}, retrieveAuthError(err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return cacheEntry{}, apperrors.ErrNoIDToken
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return cacheEntry{}, fmt.Errorf("[Provider.redeem] verify id token: %w", err)
	}
	if idToken.Nonce != flow.Nonce {
		return cacheEntry{}, apperrors.ErrInvalidNonce
	}

	account, err := accountFromIDToken(idToken)
	if err != nil {
		return cacheEntry{}, err
	}

	entry := cacheEntry{Account: account, IDToken: rawIDToken}
	entry.update(token, flow.Scopes)
	return entry, nil
}

type idTokenClaims struct {
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	ObjectID          string `json:"oid"`
	TenantID          string `json:"tid"`
}

func accountFromIDToken(idToken *oidc.IDToken) (Account, error) {
	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return Account{}, fmt.Errorf("[accountFromIDToken] decode claims: %w", err)
	}

	account := Account{
		HomeAccountID: idToken.Subject,
		Username:      claims.PreferredUsername,
		Name:          claims.Name,
		TenantID:      claims.TenantID,
	}
	if claims.ObjectID != "" && claims.TenantID != "" {
		account.HomeAccountID = claims.ObjectID + "." + claims.TenantID
	}
	if account.Username == "" {
		account.Username = claims.Email
	}
	return account, nil
}

// retrieveAuthError turns a token endpoint failure into an AuthError. A refresh token
// the platform no longer accepts means the user must interact again.
func retrieveAuthError(err error) error {
	var re *oauth2.RetrieveError
	if !apperrors.As(err, &re) || re.ErrorCode == "" {
		return newAuthError(oauthmodel.ErrorTokenRenewal, err.Error())
	}

	code := oauthmodel.ErrorCode(re.ErrorCode)
	if code == oauthmodel.ErrorInvalidGrant {
		authErr := newAuthError(oauthmodel.ErrorInteractionRequired, re.ErrorDescription)
		authErr.SubError = re.ErrorCode
		return authErr
	}
	return newAuthError(code, re.ErrorDescription)
}
