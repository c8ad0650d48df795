package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestHostKeyRoundTrip(t *testing.T) {
	t.Parallel()

	key, err := GenerateHostKey()
	require.NoError(t, err)
	require.Equal(t, AlgorithmEd25519, key.Algorithm())

	text := key.String()
	reparsed, err := ParseHostKey(text)
	require.NoError(t, err)
	require.Equal(t, text, reparsed.String())
}

func TestParseHostKeyAcceptsSeedAndFullKey(t *testing.T) {
	t.Parallel()

	seed := make([]byte, ed25519.SeedSize)
	_, err := rand.Read(seed)
	require.NoError(t, err)
	full := ed25519.NewKeyFromSeed(seed)

	fromSeed, err := ParseHostKey("ed25519 " + base64.StdEncoding.EncodeToString(seed))
	require.NoError(t, err)
	fromFull, err := ParseHostKey("ed25519 " + base64.StdEncoding.EncodeToString(full))
	require.NoError(t, err)

	// Both encodings serialize back to the seed form.
	require.Equal(t, fromSeed.String(), fromFull.String())
}

func TestParseHostKeyRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	validPayload := base64.StdEncoding.EncodeToString(make([]byte, ed25519.SeedSize))

	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"empty", "", ErrMalformedHostKey},
		{"missing payload", "ed25519", ErrMalformedHostKey},
		{"extra fields", "ed25519 " + validPayload + " trailing", ErrMalformedHostKey},
		{"unsupported algorithm", "rsa " + validPayload, ErrUnsupportedAlgorithm},
		{"unsupported wire name", "ssh-ed25519 " + validPayload, ErrUnsupportedAlgorithm},
		{"bad base64", "ed25519 not-base-64!!!", ErrMalformedHostKey},
		{"wrong key size", "ed25519 " + base64.StdEncoding.EncodeToString(make([]byte, 16)), ErrInvalidKeyMaterial},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseHostKey(tt.text)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHostKeySigner(t *testing.T) {
	t.Parallel()

	key, err := GenerateHostKey()
	require.NoError(t, err)

	signer, err := key.Signer()
	require.NoError(t, err)
	require.Equal(t, "ssh-ed25519", signer.PublicKey().Type())
}

// testCredential returns a credential plus its OpenSSH authorized_keys line.
func testCredential(t *testing.T) (Credential, string) {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
	return NewCredential(sshPub), line
}

func TestCredentialMatches(t *testing.T) {
	t.Parallel()

	cred, line := testCredential(t)
	_, otherLine := testCredential(t)

	require.True(t, cred.Matches(line))
	require.True(t, cred.Matches(line+" comment@host"))
	require.False(t, cred.Matches(otherLine))
	require.False(t, cred.Matches("not an openssh line"))
	require.False(t, cred.Matches(""))
}

func TestCredentialIsAuthorized(t *testing.T) {
	t.Parallel()

	cred, line := testCredential(t)
	_, otherLine := testCredential(t)

	tests := []struct {
		name     string
		fileText string
		want     bool
	}{
		{"single matching line", line, true},
		{"match with surrounding blanks", "\n\n  " + line + "  \n\n", true},
		{"match after non-matching lines", otherLine + "\n" + line + "\n", true},
		{"only non-matching", otherLine, false},
		{"only malformed", "garbage\nmore garbage\n", false},
		{"empty file", "", false},
		{"whitespace only", "  \n\t\n", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.want, cred.IsAuthorized(tt.fileText))
		})
	}
}
