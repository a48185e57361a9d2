package oauthmodel

import (
	"net/url"
	"slices"
	"strings"
)

// ReservedScopes are OIDC scopes the identity platform consumes itself. They are always
// requested on interactive sign-in and never appear in an access token's granted scopes.
var ReservedScopes = []string{"openid", "profile", "offline_access", "email"}

// AuthorizationResponse holds the parameters the identity platform sends back to the
// redirect URI when the sign-in window completes.
type AuthorizationResponse struct {
	// State correlates the response with the pending sign-in window.
	// Required: Yes
	// Example: "af0ifjsldkj"
	State string

	// Code is the authorization code to exchange at the token endpoint.
	// Present: on success
	// Example: "SplxlOBeZQQYbYS6WxSbIA"
	Code string

	// Error is the OAuth2 error code.
	// Present: on failure
	// Example: "access_denied"
	Error ErrorCode

	// ErrorDescription is the human-readable failure text.
	// Example: "AADSTS65004: User declined to consent to access the app."
	ErrorDescription string
}

// ParseAuthorizationResponse reads an authorization response from query or form values.
func ParseAuthorizationResponse(values url.Values) AuthorizationResponse {
	return AuthorizationResponse{
		State:            values.Get("state"),
		Code:             values.Get("code"),
		Error:            ErrorCode(values.Get("error")),
		ErrorDescription: values.Get("error_description"),
	}
}

// Failed reports whether the response carries an error instead of a code.
func (r AuthorizationResponse) Failed() bool {
	return r.Error != ""
}

// ParseScopes splits a space-delimited scope string (the "scope" token response field).
func ParseScopes(scope string) []string {
	return strings.Fields(scope)
}

// ResourceScopes returns scopes without the reserved OIDC ones, lower-cased for comparison.
func ResourceScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || slices.Contains(ReservedScopes, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// CoversScopes reports whether granted includes every resource scope in requested.
// Granted scopes may be fully qualified ("https://graph.microsoft.com/User.Read").
func CoversScopes(granted, requested []string) bool {
	have := make(map[string]struct{})
	for _, g := range ResourceScopes(granted) {
		have[g] = struct{}{}
		if i := strings.LastIndex(g, "/"); i >= 0 {
			have[g[i+1:]] = struct{}{}
		}
	}
	for _, r := range ResourceScopes(requested) {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}
