package authflow

import (
	"errors"
	"slices"
	"sync"

	apperrors "github.com/jrsteele09/go-graph-signin/internal/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu    sync.RWMutex
	flows map[string]*Flow
}

// NewInMemoryRepo creates a new in-memory sign-in flow repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		flows: make(map[string]*Flow),
	}
}

// Upsert stores or replaces the flow for a state parameter
func (r *InMemoryRepo) Upsert(state string, flow *Flow) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if flow == nil {
		return errors.New("flow cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.flows[state] = flow.clone()
	return nil
}

// Get retrieves a flow by state parameter. The returned copy shares the response channel.
func (r *InMemoryRepo) Get(state string) (*Flow, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	flow, exists := r.flows[state]
	if !exists {
		return nil, apperrors.ErrFlowNotFound
	}
	return flow.clone(), nil
}

// Delete removes a flow
func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.flows, state)
	return nil
}

func (f *Flow) clone() *Flow {
	return &Flow{
		State:        f.State,
		CodeVerifier: f.CodeVerifier,
		Nonce:        f.Nonce,
		Scopes:       slices.Clone(f.Scopes),
		CreatedAt:    f.CreatedAt,
		responses:    f.responses,
	}
}
