package authflow

import (
	"time"

	"github.com/jrsteele09/go-graph-signin/oauthmodel"
)

// Flow is a sign-in window waiting for the identity platform to redirect back.
type Flow struct {
	State        string
	CodeVerifier string
	Nonce        string
	Scopes       []string
	CreatedAt    time.Time

	responses chan oauthmodel.AuthorizationResponse
}

// NewFlow creates a pending flow able to receive exactly one response.
func NewFlow(state, codeVerifier, nonce string, scopes []string, createdAt time.Time) *Flow {
	return &Flow{
		State:        state,
		CodeVerifier: codeVerifier,
		Nonce:        nonce,
		Scopes:       scopes,
		CreatedAt:    createdAt,
		responses:    make(chan oauthmodel.AuthorizationResponse, 1),
	}
}

// Complete delivers the redirect response. It returns false if the flow already has one.
func (f *Flow) Complete(resp oauthmodel.AuthorizationResponse) bool {
	select {
	case f.responses <- resp:
		return true
	default:
		return false
	}
}

// Responses yields the single response delivered by Complete.
func (f *Flow) Responses() <-chan oauthmodel.AuthorizationResponse {
	return f.responses
}

type Repo interface {
	Upsert(state string, flow *Flow) error
	Get(state string) (*Flow, error)
	Delete(state string) error
}
