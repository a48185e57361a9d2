// Package seal encrypts and authenticates small values (cached tokens, cookie payloads)
// with NaCl secretbox under a key derived from a configured secret.
package seal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	apperrors "github.com/jrsteele09/go-graph-signin/internal/errors"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

type Sealer struct {
	key [keySize]byte
}

// New derives a sealing key for purpose from secret. Different purposes yield
// independent keys from the same secret.
func New(secret []byte, purpose string) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("[seal New] secret is required")
	}
	key, err := DeriveKey(secret, purpose)
	if err != nil {
		return nil, fmt.Errorf("[seal New] %w", err)
	}
	s := &Sealer{}
	copy(s.key[:], key)
	return s, nil
}

// DeriveKey returns a 32 byte key for purpose from secret.
func DeriveKey(secret []byte, purpose string) ([]byte, error) {
	key := make([]byte, keySize)
	r := hkdf.New(sha256.New, secret, nil, []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// RandomSecret returns a fresh 32 byte secret for processes started without one.
func RandomSecret() []byte {
	b := make([]byte, keySize)
	_, _ = rand.Read(b)
	return b
}

// Seal returns nonce || secretbox(plain).
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("[Sealer.Seal] nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, apperrors.ErrSealedValueInvalid
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, apperrors.ErrSealedValueInvalid
	}
	return plain, nil
}

// SealString seals plain and encodes the result for use in a cookie.
func (s *Sealer) SealString(plain []byte) (string, error) {
	sealed, err := s.Seal(plain)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// OpenString reverses SealString.
func (s *Sealer) OpenString(value string) ([]byte, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, apperrors.ErrSealedValueInvalid
	}
	return s.Open(sealed)
}
