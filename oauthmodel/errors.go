package oauthmodel

// ErrorCode is an OAuth2 / OIDC error code as returned by the identity platform
// (the "error" parameter of an authorization or token response).
type ErrorCode string

const (
	// ErrorInteractionRequired means the request cannot complete without user interaction.
	// Returned by: token endpoint on refresh, or the authorization endpoint with prompt=none
	// Recovery: an interactive (sign-in window) request with the same scopes
	ErrorInteractionRequired ErrorCode = "interaction_required"

	// ErrorConsentRequired means the user has not consented to one or more requested scopes.
	// Recovery: an interactive request so the consent screen can be shown
	ErrorConsentRequired ErrorCode = "consent_required"

	// ErrorLoginRequired means there is no usable session at the identity platform.
	// Recovery: an interactive request so the user can sign in again
	ErrorLoginRequired ErrorCode = "login_required"

	// ErrorNoAccountInSilentRequest is raised locally when a silent request is made
	// before any account has signed in on this browsing session.
	// Recovery: an interactive request
	ErrorNoAccountInSilentRequest ErrorCode = "no_account_in_silent_request"

	// ErrorInvalidGrant means the refresh token is expired, revoked or otherwise unusable.
	// Example: AADSTS700082 (refresh token expired due to inactivity)
	ErrorInvalidGrant ErrorCode = "invalid_grant"

	// ErrorAccessDenied means the user or the platform declined the request.
	// Example: the user pressed "Cancel" on the consent screen
	ErrorAccessDenied ErrorCode = "access_denied"

	// ErrorUserCancelled is raised locally when the sign-in window is abandoned
	// (its request context ends before a response arrives).
	ErrorUserCancelled ErrorCode = "user_cancelled"

	// ErrorPopupTimeout is raised locally when the sign-in window does not complete
	// within the configured timeout.
	ErrorPopupTimeout ErrorCode = "popup_timeout"

	// ErrorPopupWindow is raised locally when the sign-in window cannot be opened.
	ErrorPopupWindow ErrorCode = "popup_window_error"

	// ErrorTokenRenewal is raised locally when a refresh fails for a reason the
	// platform did not describe (e.g. network failure).
	ErrorTokenRenewal ErrorCode = "token_renewal_error"
)

// InteractionRequiredCodes are the markers that, when present in a silent acquisition
// failure message, mean an interactive request may succeed where the silent one did not.
var InteractionRequiredCodes = []ErrorCode{
	ErrorConsentRequired,
	ErrorInteractionRequired,
	ErrorLoginRequired,
	ErrorNoAccountInSilentRequest,
}

func (c ErrorCode) String() string {
	return string(c)
}
