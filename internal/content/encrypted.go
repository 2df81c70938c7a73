package content

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"homedrive/internal/drive"
)

// EncryptedStore wraps another ContentStore and encrypts content at rest with
// filippo.io/age X25519 keys. The identity file holds the private key; the
// matching recipient is derived from it, so writes and reads need only the
// one file. Metadata operations (mtime, size, listing) see the stored
// ciphertext, so Size reports ciphertext length.
type EncryptedStore struct {
	inner     drive.ContentStore
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

var _ drive.ContentStore = (*EncryptedStore)(nil)

// NewEncryptedStore creates an encrypting wrapper around inner using the
// X25519 identity stored at identityPath.
func NewEncryptedStore(inner drive.ContentStore, identityPath string) (*EncryptedStore, error) {
	data, err := os.ReadFile(identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing identity file: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in %s", identityPath)
	}

	x25519, ok := identities[0].(*age.X25519Identity)
	if !ok {
		return nil, fmt.Errorf("identity in %s is not an X25519 identity", identityPath)
	}

	return &EncryptedStore{
		inner:     inner,
		identity:  x25519,
		recipient: x25519.Recipient(),
	}, nil
}

// GenerateIdentityFile creates a fresh X25519 identity at path (mode 0600)
// and returns the matching recipient string for display.
func GenerateIdentityFile(path string) (string, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("creating identity directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("identity file already exists at %s", path)
	}

	if err := os.WriteFile(path, []byte(identity.String()+"\n"), 0600); err != nil {
		return "", fmt.Errorf("writing identity file: %w", err)
	}

	return identity.Recipient().String(), nil
}

func (s *EncryptedStore) Read(path string) ([]byte, error) {
	ciphertext, err := s.inner.Read(path)
	if err != nil {
		return nil, err
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), s.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting content %q: %w: %w", path, drive.ErrContent, err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypting content %q: %w: %w", path, drive.ErrContent, err)
	}
	return plaintext, nil
}

func (s *EncryptedStore) Write(path string, content []byte) error {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return fmt.Errorf("encrypting content %q: %w: %w", path, drive.ErrContent, err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("encrypting content %q: %w: %w", path, drive.ErrContent, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encryption for %q: %w: %w", path, drive.ErrContent, err)
	}

	return s.inner.Write(path, buf.Bytes())
}

func (s *EncryptedStore) Remove(path string) error  { return s.inner.Remove(path) }
func (s *EncryptedStore) Exists(path string) bool   { return s.inner.Exists(path) }
func (s *EncryptedStore) List() ([]string, error)   { return s.inner.List() }
func (s *EncryptedStore) ListRecursive() ([]string, error) {
	return s.inner.ListRecursive()
}
func (s *EncryptedStore) MTime(path string) (int64, error) { return s.inner.MTime(path) }
func (s *EncryptedStore) SetMTime(path string, mtime int64) error {
	return s.inner.SetMTime(path, mtime)
}
func (s *EncryptedStore) Size(path string) (int64, error) { return s.inner.Size(path) }
