package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-graph-signin/internal/errors"
	"github.com/jrsteele09/go-graph-signin/internal/seal"
	"github.com/valkey-io/valkey-go"
)

const objectTypeToken = "token"

// ValkeyStore shares the token cache between processes through Valkey.
// Values are sealed before they leave the process when a sealer is set.
type ValkeyStore struct {
	valkey valkey.Client
	prefix string
	ttl    time.Duration
	sealer *seal.Sealer
}

var _ Store = (*ValkeyStore)(nil)

func NewValkeyStore(client valkey.Client, prefix string, ttl time.Duration, sealer *seal.Sealer) *ValkeyStore {
	return &ValkeyStore{
		valkey: client,
		prefix: strings.TrimSuffix(prefix, ":"),
		ttl:    ttl,
		sealer: sealer,
	}
}

func (s *ValkeyStore) Get(ctx context.Context, key string, decodeInto any) error {
	bytes, err := s.valkey.Do(ctx, s.valkey.B().Get().Key(s.key(key)).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return apperrors.ErrCacheMiss
		}
		return fmt.Errorf("executing get command: %w", err)
	}

	if s.sealer != nil {
		if bytes, err = s.sealer.Open(bytes); err != nil {
			return fmt.Errorf("opening sealed entry: %w", err)
		}
	}

	if err := decode(bytes, decodeInto); err != nil {
		return fmt.Errorf("decoding entry: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Set(ctx context.Context, key string, val any) error {
	bytes, err := encode(val)
	if err != nil {
		return fmt.Errorf("encoding data: %w", err)
	}

	if s.sealer != nil {
		if bytes, err = s.sealer.Seal(bytes); err != nil {
			return fmt.Errorf("sealing entry: %w", err)
		}
	}

	set := s.valkey.B().Set().Key(s.key(key)).Value(valkey.BinaryString(bytes))
	cmd := set.Build()
	if s.ttl > 0 {
		cmd = set.PxMilliseconds(expiryMillis(s.ttl)).Build()
	}
	if err := s.valkey.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("executing set command: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Delete(ctx context.Context, key string) error {
	if err := s.valkey.Do(ctx, s.valkey.B().Del().Key(s.key(key)).Build()).Error(); err != nil {
		return fmt.Errorf("executing del command: %w", err)
	}
	return nil
}

// expiryMillis rounds a positive ttl up to whole milliseconds; valkey rejects a zero expiry.
func expiryMillis(ttl time.Duration) int64 {
	return int64((ttl + time.Millisecond - 1) / time.Millisecond)
}

func (s *ValkeyStore) key(id string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, objectTypeToken, id)
}
