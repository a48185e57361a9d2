// Package csrf issues form tokens bound to a browsing session with an HMAC.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const randLength = 32

func formMessage(sessionID, randValue string) []byte {
	return fmt.Appendf(nil, "%d!%s!%d!%s", len(sessionID), sessionID, len(randValue), randValue)
}

// NewToken returns hex(hmac).hex(random) for sessionID.
func NewToken(sessionID string, key []byte) string {
	buf := make([]byte, randLength)
	_, _ = rand.Read(buf)
	randValue := hex.EncodeToString(buf)

	return hex.EncodeToString(sign(sessionID, randValue, key)) + "." + hex.EncodeToString([]byte(randValue))
}

// Validate reports whether token was issued by NewToken for sessionID with key.
func Validate(token, sessionID string, key []byte) bool {
	mac, randHex, ok := strings.Cut(token, ".")
	if !ok || sessionID == "" {
		return false
	}

	received, err := hex.DecodeString(mac)
	if err != nil {
		return false
	}
	randValue, err := hex.DecodeString(randHex)
	if err != nil {
		return false
	}

	return hmac.Equal(received, sign(sessionID, string(randValue), key))
}

func sign(sessionID, randValue string, key []byte) []byte {
	hash := hmac.New(sha256.New, key)
	hash.Write(formMessage(sessionID, randValue))
	return hash.Sum(nil)
}
