package browsersession

import (
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-graph-signin/internal/errors"
	gocache "github.com/patrickmn/go-cache"
)

// InMemoryRepo keeps browsing sessions in process memory. A session unused for
// maxIdle is dropped.
type InMemoryRepo struct {
	sessions *gocache.Cache
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo(maxIdle time.Duration) *InMemoryRepo {
	return &InMemoryRepo{
		sessions: gocache.New(maxIdle, time.Minute),
	}
}

// Upsert creates or replaces a browsing session
func (r *InMemoryRepo) Upsert(sessionID string, session *Session) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}
	if session == nil {
		return fmt.Errorf("session is required")
	}
	r.sessions.SetDefault(sessionID, session)
	return nil
}

// Get retrieves a browsing session and extends its lifetime
func (r *InMemoryRepo) Get(sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID is required")
	}

	v, ok := r.sessions.Get(sessionID)
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	session := v.(*Session)
	r.sessions.SetDefault(sessionID, session)
	return session, nil
}

// Delete removes a browsing session
func (r *InMemoryRepo) Delete(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}
	r.sessions.Delete(sessionID)
	return nil
}
