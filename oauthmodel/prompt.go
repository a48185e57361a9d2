package oauthmodel

// PromptType is the OIDC "prompt" authorization request parameter.
// It tells the identity platform which UI, if any, to show in the sign-in window.
type PromptType string

const (
	// PromptNone forbids any UI; the request fails with interaction_required instead.
	PromptNone PromptType = "none"

	// PromptLogin forces the user to enter credentials even with a valid session.
	PromptLogin PromptType = "login"

	// PromptConsent shows the consent screen even when consent was already granted.
	PromptConsent PromptType = "consent"

	// PromptSelectAccount shows the account picker.
	// Used in: sign-in, so a user with several accounts chooses which one to use
	PromptSelectAccount PromptType = "select_account"
)

func (p PromptType) String() string {
	return string(p)
}
