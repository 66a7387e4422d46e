// Package internal holds entropy and hashing helpers shared by the
// admission components.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const opaqueTokenSize = 32

// NewOpaqueToken returns a URL-safe random token with opaqueTokenSize bytes
// of entropy. Used for one-time tokens and CSRF values.
func NewOpaqueToken() (string, error) {
	raw := make([]byte, opaqueTokenSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashToken returns the hex SHA-256 of a token string. Stores persist and
// look up tokens by this hash, never by the raw value.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
