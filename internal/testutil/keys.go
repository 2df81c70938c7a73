package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

// KeyPair is a client ed25519 key for authentication tests.
type KeyPair struct {
	// Public is the key in authorized_keys form, without comment.
	Public string

	private ed25519.PrivateKey
}

// NewKeyPair generates an ed25519 key pair.
func NewKeyPair(t *testing.T) *KeyPair {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key pair: %v", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("failed to convert public key: %v", err)
	}

	return &KeyPair{
		Public:  strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))),
		private: priv,
	}
}

// Sign signs msg and returns the base64 signature the verify endpoint
// expects.
func (k *KeyPair) Sign(msg string) string {
	sig := ed25519.Sign(k.private, []byte(msg))
	return base64.StdEncoding.EncodeToString(sig)
}

// WriteAuthorizedKeys writes the given keys to an authorized_keys file in a
// test temp directory and returns its path.
func WriteAuthorizedKeys(t *testing.T, keys ...*KeyPair) string {
	t.Helper()

	var b strings.Builder
	for i, k := range keys {
		b.WriteString(k.Public)
		b.WriteString(" client-")
		b.WriteString(strings.Repeat("x", i+1))
		b.WriteString("\n")
	}

	path := filepath.Join(t.TempDir(), "authorized_keys")
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		t.Fatalf("failed to write authorized_keys: %v", err)
	}
	return path
}
