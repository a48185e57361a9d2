// Package browsersession tracks the state the server keeps for each browser.
package browsersession

import (
	"time"

	"github.com/jrsteele09/go-graph-signin/identity"
	"github.com/jrsteele09/go-graph-signin/sessions"
)

// Session is one browser's sign-in controller and identity client.
type Session struct {
	ID         string
	Controller *sessions.Controller
	Agent      *identity.UserAgent
	CreatedAt  time.Time
}

type Repo interface {
	Upsert(sessionID string, session *Session) error
	Get(sessionID string) (*Session, error)
	Delete(sessionID string) error
}
