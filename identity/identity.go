// Package identity is the client for the Microsoft identity platform: interactive
// sign-in through a system browser window and silent token acquisition from a cache.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-graph-signin/oauthmodel"
)

// Client is the set of identity operations a browsing session can perform.
type Client interface {
	LoginPopup(ctx context.Context, req LoginRequest) (AuthResult, error)
	AcquireTokenSilent(ctx context.Context, req TokenRequest) (AuthResult, error)
	AcquireTokenPopup(ctx context.Context, req TokenRequest) (AuthResult, error)
	Logout(ctx context.Context) (string, error)
	Account() (Account, bool)
}

// Account identifies a signed-in user.
type Account struct {
	// HomeAccountID is "<oid>.<tid>" when the platform issues both claims, the subject otherwise.
	HomeAccountID string `json:"homeAccountId"`
	Username      string `json:"username"`
	Name          string `json:"name"`
	TenantID      string `json:"tenantId,omitempty"`
}

type LoginRequest struct {
	Scopes []string
	Prompt oauthmodel.PromptType
}

type TokenRequest struct {
	Scopes []string
	// ForceRefresh skips the cached access token and redeems the refresh token.
	ForceRefresh bool
}

type AuthResult struct {
	AccessToken string
	IDToken     string
	Scopes      []string
	ExpiresOn   time.Time
	Account     Account
	FromCache   bool
}

// AuthError is a failure reported by the identity platform or raised by the client
// on its behalf. Its message always starts with the error code.
type AuthError struct {
	Code          oauthmodel.ErrorCode `json:"errorCode"`
	Description   string               `json:"errorMessage"`
	SubError      string               `json:"subError,omitempty"`
	CorrelationID string               `json:"correlationId,omitempty"`
}

func newAuthError(code oauthmodel.ErrorCode, description string) *AuthError {
	return &AuthError{
		Code:          code,
		Description:   description,
		CorrelationID: uuid.NewString(),
	}
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}
