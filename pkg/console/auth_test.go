package console

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"sshconsole/pkg/keys"
)

type fakeConnMetadata struct{ user string }

func (m fakeConnMetadata) User() string          { return m.user }
func (m fakeConnMetadata) SessionID() []byte     { return nil }
func (m fakeConnMetadata) ClientVersion() []byte { return nil }
func (m fakeConnMetadata) ServerVersion() []byte { return nil }
func (m fakeConnMetadata) RemoteAddr() net.Addr  { return nil }
func (m fakeConnMetadata) LocalAddr() net.Addr   { return nil }

func TestCompletionIsSingleShot(t *testing.T) {
	t.Parallel()

	d := &authDelegate{logger: testLogger()}
	complete, result := d.newCompletion()

	complete(true)
	complete(false) // dropped
	complete(true)  // dropped

	require.True(t, <-result)
	require.Empty(t, result)
}

func TestPasswordCallbackSuccessAndFailure(t *testing.T) {
	t.Parallel()

	var seenUser, seenPassword string
	d := &authDelegate{
		logger: testLogger(),
		password: func(username, password string, complete CompletionFunc) {
			seenUser, seenPassword = username, password
			complete(password == "secret")
		},
	}

	perms, err := d.passwordCallback(fakeConnMetadata{user: "alice"}, []byte("secret"))
	require.NoError(t, err)
	require.Nil(t, perms)
	require.Equal(t, "alice", seenUser)
	require.Equal(t, "secret", seenPassword)

	_, err = d.passwordCallback(fakeConnMetadata{user: "alice"}, []byte("wrong"))
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestPublicKeyCallbackDelegatesCredential(t *testing.T) {
	t.Parallel()

	hostKey, err := keys.GenerateHostKey()
	require.NoError(t, err)
	signer, err := hostKey.Signer()
	require.NoError(t, err)

	var seen keys.Credential
	d := &authDelegate{
		logger: testLogger(),
		publicKey: func(username string, credential keys.Credential, complete CompletionFunc) {
			seen = credential
			complete(true)
		},
	}

	_, err = d.publicKeyCallback(fakeConnMetadata{user: "bob"}, signer.PublicKey())
	require.NoError(t, err)
	require.Equal(t, "ssh-ed25519", seen.Algorithm())
}

func TestInstallOnlyAdvertisesConfiguredMethods(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		password      PasswordAuthenticator
		publicKey     PublicKeyAuthenticator
		wantPassword  bool
		wantPublicKey bool
	}{
		{"none", nil, nil, false, false},
		{"password only", func(string, string, CompletionFunc) {}, nil, true, false},
		{"public key only", nil, func(string, keys.Credential, CompletionFunc) {}, false, true},
		{
			"both",
			func(string, string, CompletionFunc) {},
			func(string, keys.Credential, CompletionFunc) {},
			true, true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := &authDelegate{password: tt.password, publicKey: tt.publicKey, logger: testLogger()}
			config := &ssh.ServerConfig{}
			d.install(config)

			require.Equal(t, tt.wantPassword, config.PasswordCallback != nil)
			require.Equal(t, tt.wantPublicKey, config.PublicKeyCallback != nil)
		})
	}
}
