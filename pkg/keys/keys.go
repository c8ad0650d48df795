// Package keys provides the key value types used by the console server:
// host keys in the single-line "<algorithm> <base64>" text format, and
// client-presented credentials matched against authorized_keys listings.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// AlgorithmEd25519 is the only host key algorithm recognized today.
const AlgorithmEd25519 = "ed25519"

var (
	ErrMalformedHostKey     = fmt.Errorf("malformed host key text")
	ErrUnsupportedAlgorithm = fmt.Errorf("unsupported host key algorithm")
	ErrInvalidKeyMaterial   = fmt.Errorf("invalid host key material")
	ErrKeyGen               = fmt.Errorf("failed to generate host key")
)

// HostKey is a server identity key. The zero value is not usable; construct
// one with ParseHostKey or GenerateHostKey.
type HostKey struct {
	algorithm string
	key       ed25519.PrivateKey
}

// ParseHostKey parses the single-line text form "<algorithm> <base64>".
//
// The base64 payload may be either a 32-byte ed25519 seed or a full 64-byte
// private key. Any other algorithm tag, malformed base64, or wrong-sized key
// material is reported as an error, never a panic.
func ParseHostKey(text string) (HostKey, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) != 2 {
		return HostKey{}, fmt.Errorf("%w: expected \"<algorithm> <base64>\"", ErrMalformedHostKey)
	}
	algorithm, payload := fields[0], fields[1]
	if algorithm != AlgorithmEd25519 {
		return HostKey{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return HostKey{}, fmt.Errorf("%w: %w", ErrMalformedHostKey, err)
	}
	var key ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(raw)
	default:
		return HostKey{}, fmt.Errorf("%w: got %d key bytes", ErrInvalidKeyMaterial, len(raw))
	}
	return HostKey{algorithm: algorithm, key: key}, nil
}

// GenerateHostKey creates a fresh ed25519 host key.
func GenerateHostKey() (HostKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return HostKey{}, fmt.Errorf("%w: %w", ErrKeyGen, err)
	}
	return HostKey{algorithm: AlgorithmEd25519, key: priv}, nil
}

// Algorithm returns the host key's algorithm tag.
func (k HostKey) Algorithm() string {
	return k.algorithm
}

// String serializes the host key back to its single-line text form. The
// payload is always the 32-byte seed, so String round-trips with ParseHostKey
// regardless of which encoding the key was parsed from.
func (k HostKey) String() string {
	return k.algorithm + " " + base64.StdEncoding.EncodeToString(k.key.Seed())
}

// Signer converts the host key to an ssh.Signer for use in a server
// configuration.
func (k HostKey) Signer() (ssh.Signer, error) {
	signer, err := ssh.NewSignerFromKey(k.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyMaterial, err)
	}
	return signer, nil
}

// Credential is the public key presented by a connecting client during
// public-key authentication.
type Credential struct {
	key ssh.PublicKey
}

// NewCredential wraps a transport-level public key.
func NewCredential(key ssh.PublicKey) Credential {
	return Credential{key: key}
}

// Algorithm returns the wire name of the credential's key type
// (e.g. "ssh-ed25519").
func (c Credential) Algorithm() string {
	if c.key == nil {
		return ""
	}
	return c.key.Type()
}

// Matches reports whether the credential equals the key on a single
// OpenSSH-format public key line. A malformed line or a differing algorithm
// is simply a non-match, not an error.
func (c Credential) Matches(openSSHLine string) bool {
	if c.key == nil {
		return false
	}
	parsed, _, _, _, err := ssh.ParseAuthorizedKey([]byte(openSSHLine))
	if err != nil {
		return false
	}
	if parsed.Type() != c.key.Type() {
		return false
	}
	return string(parsed.Marshal()) == string(c.key.Marshal())
}

// IsAuthorized reports whether any non-empty line of an authorized_keys style
// file matches the credential. Lines are trimmed of surrounding whitespace
// and blank lines are ignored.
func (c Credential) IsAuthorized(fileText string) bool {
	for _, line := range strings.Split(fileText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if c.Matches(line) {
			return true
		}
	}
	return false
}
