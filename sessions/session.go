package sessions

import (
	apperrors "github.com/jrsteele09/go-graph-signin/internal/errors"
)

// User holds the profile fields the pages display.
type User struct {
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Session is what one browsing session shows: whether someone is signed in, who,
// and the last sign-in failure. A signed-in Session always has a display name.
type Session struct {
	IsAuthenticated bool                       `json:"isAuthenticated"`
	User            User                       `json:"user"`
	Error           *apperrors.NormalizedError `json:"error"`
}

func (s Session) copy() Session {
	if s.Error != nil {
		e := *s.Error
		s.Error = &e
	}
	return s
}
