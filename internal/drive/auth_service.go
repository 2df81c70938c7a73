package drive

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/ssh"
)

// AuthService implements challenge-response authentication against an
// OpenSSH authorized_keys file. Only ed25519 keys are accepted. The loaded
// key set is an immutable snapshot behind an atomic pointer, so a reload
// never blocks in-flight requests.
//
// The flow: a client asks for a challenge for its public key, signs the
// challenge bytes with its private key, and exchanges the signature for a
// bearer token. Challenges are single use.
type AuthService struct {
	index    Index
	clock    Clock
	log      Logger
	keysPath string

	// Expiries in seconds.
	tokenExpiry     int64
	challengeExpiry int64

	keys atomic.Pointer[keySet]
}

// keySet is an immutable snapshot of the authorized keys, keyed by the
// canonical authorized_keys form of each key.
type keySet struct {
	keys map[string]ed25519.PublicKey
}

// NewAuthService creates an AuthService and loads the authorized_keys file.
func NewAuthService(index Index, clock Clock, log Logger, keysPath string, tokenExpiry, challengeExpiry int64) (*AuthService, error) {
	s := &AuthService{
		index:           index,
		clock:           clock,
		log:             log,
		keysPath:        keysPath,
		tokenExpiry:     tokenExpiry,
		challengeExpiry: challengeExpiry,
	}
	if err := s.LoadAuthorizedKeys(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadAuthorizedKeys reads the authorized_keys file and atomically replaces
// the active key set. Non-ed25519 keys are skipped with a warning. Safe to
// call concurrently with request handling.
func (s *AuthService) LoadAuthorizedKeys() error {
	data, err := os.ReadFile(s.keysPath)
	if err != nil {
		return fmt.Errorf("reading authorized_keys file: %w", err)
	}

	keys := make(map[string]ed25519.PublicKey)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			s.log.Warn("skipping unparseable authorized key", "error", err)
			continue
		}

		edKey, err := ed25519KeyOf(pub)
		if err != nil {
			s.log.Warn("skipping authorized key", "type", pub.Type(), "error", err)
			continue
		}

		keys[canonicalKey(pub)] = edKey
	}

	s.keys.Store(&keySet{keys: keys})
	s.log.Info("authorized keys loaded", "count", len(keys))
	return nil
}

// CreateChallenge issues a single-use challenge bound to the given public
// key. An unparseable key fails with ErrInvalidInput; a key not in the
// authorized set fails with ErrUnauthorized.
func (s *AuthService) CreateChallenge(publicKey string) (*Challenge, error) {
	canonical, _, err := s.lookupKey(publicKey)
	if err != nil {
		return nil, err
	}

	challenge, err := NewChallengeString()
	if err != nil {
		return nil, fmt.Errorf("generating challenge: %w", err)
	}

	now := s.clock.Now().UnixMilli()
	expiresAt := now + s.challengeExpiry*1000

	if err := s.index.StoreChallenge(challenge, canonical, expiresAt); err != nil {
		return nil, err
	}

	return &Challenge{
		Challenge: challenge,
		PublicKey: canonical,
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyChallenge consumes the challenge and, if the base64 signature over
// the challenge bytes verifies against the bound key, issues a bearer token.
// A consumed, expired, or mismatched challenge and a bad signature all fail
// with ErrUnauthorized.
func (s *AuthService) VerifyChallenge(publicKey, challenge, signature string) (*Token, error) {
	canonical, edKey, err := s.lookupKey(publicKey)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UnixMilli()

	ok, err := s.index.ValidateAndConsumeChallenge(challenge, canonical, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("challenge invalid or expired: %w", ErrUnauthorized)
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return nil, fmt.Errorf("decoding signature: %w", ErrInvalidInput)
	}
	if !ed25519.Verify(edKey, []byte(challenge), sig) {
		return nil, fmt.Errorf("signature verification failed: %w", ErrUnauthorized)
	}

	token, err := NewTokenString()
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}
	expiresAt := now + s.tokenExpiry*1000

	if err := s.index.StoreToken(token, now, expiresAt); err != nil {
		return nil, err
	}

	s.log.Info("token issued", "expires_at", expiresAt)
	return &Token{Token: token, ExpiresAt: expiresAt}, nil
}

// ValidateToken reports whether a bearer token is live. A valid token gets
// its last-used time stamped.
func (s *AuthService) ValidateToken(token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	now := s.clock.Now().UnixMilli()
	return s.index.ValidateToken(token, now)
}

// CleanupExpired removes expired tokens and returns how many were removed.
func (s *AuthService) CleanupExpired() (int64, error) {
	now := s.clock.Now().UnixMilli()
	removed, err := s.index.SweepExpiredTokens(now)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.Info("expired tokens removed", "count", removed)
	}
	return removed, nil
}

// lookupKey parses a client-supplied public key and resolves it in the
// active key set, returning the canonical form and the ed25519 key.
func (s *AuthService) lookupKey(publicKey string) (string, ed25519.PublicKey, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(publicKey))
	if err != nil {
		return "", nil, fmt.Errorf("parsing public key: %w", ErrInvalidInput)
	}

	canonical := canonicalKey(pub)
	ks := s.keys.Load()
	edKey, ok := ks.keys[canonical]
	if !ok {
		return "", nil, fmt.Errorf("public key not authorized: %w", ErrUnauthorized)
	}
	return canonical, edKey, nil
}

// canonicalKey renders a parsed key in authorized_keys form without comment
// or options, so keys compare equal regardless of how the client wrote them.
func canonicalKey(pub ssh.PublicKey) string {
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub)))
}

// ed25519KeyOf extracts the raw ed25519 key from a parsed SSH public key.
func ed25519KeyOf(pub ssh.PublicKey) (ed25519.PublicKey, error) {
	if pub.Type() != ssh.KeyAlgoED25519 {
		return nil, fmt.Errorf("only ed25519 keys are supported")
	}
	cryptoPub, ok := pub.(ssh.CryptoPublicKey)
	if !ok {
		return nil, fmt.Errorf("key does not expose a crypto public key")
	}
	edKey, ok := cryptoPub.CryptoPublicKey().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("key is not an ed25519 key")
	}
	return edKey, nil
}
