// Package auth obtains access tokens, preferring silent acquisition and falling
// back to an interactive sign-in window only when the platform asks for interaction.
package auth

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-graph-signin/identity"
	"github.com/jrsteele09/go-graph-signin/oauthmodel"
)

// TokenClient is the part of identity.Client the acquirer needs.
type TokenClient interface {
	AcquireTokenSilent(ctx context.Context, req identity.TokenRequest) (identity.AuthResult, error)
	AcquireTokenPopup(ctx context.Context, req identity.TokenRequest) (identity.AuthResult, error)
}

// AcquireToken returns an access token for scopes. A silent failure that names one of
// oauthmodel.InteractionRequiredCodes is retried once through a sign-in window; any
// other failure, and any failure of the window itself, is returned as is.
func AcquireToken(ctx context.Context, client TokenClient, scopes []string) (string, error) {
	req := identity.TokenRequest{Scopes: scopes}

	result, err := client.AcquireTokenSilent(ctx, req)
	if err == nil {
		return result.AccessToken, nil
	}
	if !IsInteractionRequired(err) {
		return "", err
	}

	result, err = client.AcquireTokenPopup(ctx, req)
	if err != nil {
		return "", err
	}
	return result.AccessToken, nil
}

// IsInteractionRequired reports whether err's message contains an interaction-required marker.
func IsInteractionRequired(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, code := range oauthmodel.InteractionRequiredCodes {
		if strings.Contains(msg, code.String()) {
			return true
		}
	}
	return false
}
