// Package cache holds the identity client's token cache backends.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store persists token cache entries keyed by home account id.
// Get returns errors.ErrCacheMiss when nothing is stored under key.
type Store interface {
	Get(ctx context.Context, key string, decodeInto any) error
	Set(ctx context.Context, key string, val any) error
	Delete(ctx context.Context, key string) error
}

func encode(v any) ([]byte, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling json: %w", err)
	}
	return bytes, nil
}

func decode(data []byte, into any) error {
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("unmarshaling json: %w", err)
	}
	return nil
}
