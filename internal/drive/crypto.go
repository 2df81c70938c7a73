package drive

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Digest returns the hex-encoded SHA-256 of content. It is the change
// detector for both namespaces: identical bytes always produce identical
// digests.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// randomHex returns n cryptographically random bytes, hex-encoded.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewChallengeString returns a fresh random challenge value.
func NewChallengeString() (string, error) { return randomHex(32) }

// NewTokenString returns a fresh random bearer token value.
func NewTokenString() (string, error) { return randomHex(32) }
