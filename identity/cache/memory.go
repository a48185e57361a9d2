package cache

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/go-graph-signin/internal/errors"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps encoded entries in process memory; they expire after ttl.
type MemoryStore struct {
	items *gocache.Cache
	ttl   time.Duration
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store whose entries live for ttl. A ttl of zero never expires.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryStore{
		items: gocache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string, decodeInto any) error {
	v, ok := m.items.Get(key)
	if !ok {
		return apperrors.ErrCacheMiss
	}
	return decode(v.([]byte), decodeInto)
}

func (m *MemoryStore) Set(_ context.Context, key string, val any) error {
	bytes, err := encode(val)
	if err != nil {
		return err
	}
	m.items.Set(key, bytes, m.ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}
