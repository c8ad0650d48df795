package console

import (
	"github.com/charmbracelet/log"

	"sshconsole/pkg/keys"
)

// defaultServerVersion is the version banner sent during the handshake when
// the configuration does not override it.
const defaultServerVersion = "SSH-2.0-sshconsole"

// CommandRunner receives the one command a session channel is allowed to
// execute. It is invoked on the protocol goroutine: anything beyond trivial
// work must be handed off by the runner itself, holding the Output across
// that boundary and releasing it when done.
//
// username is the authenticated user, or empty when the transport could not
// supply one. env is a private snapshot of the environment variables the
// client sent before exec; later env requests are never reflected into it.
type CommandRunner func(command string, out *Output, username string, env map[string]string)

// PasswordAuthenticator decides a password authentication attempt. It may
// block (it runs off the transport goroutine) and must call complete exactly
// once.
type PasswordAuthenticator func(username, password string, complete CompletionFunc)

// PublicKeyAuthenticator decides a public-key authentication attempt under
// the same contract as PasswordAuthenticator.
type PublicKeyAuthenticator func(username string, credential keys.Credential, complete CompletionFunc)

// CompletionFunc resolves one authentication attempt. Resolving more than
// once is a contract violation; the extra resolution is dropped and logged.
type CompletionFunc func(ok bool)

// Config holds the immutable configuration of a Server. It is captured at
// Listen time and never modified afterwards.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (0 = auto-select).
	Port int
	// HostKeys are the server identity keys. At least one is required.
	HostKeys []keys.HostKey
	// PasswordAuth decides password attempts. When nil the password method
	// is never advertised and every password attempt fails.
	PasswordAuth PasswordAuthenticator
	// PublicKeyAuth decides public-key attempts. Same contract as
	// PasswordAuth.
	PublicKeyAuth PublicKeyAuthenticator
	// ServerVersion overrides the SSH version banner.
	ServerVersion string
	// Logger receives server and session events. Defaults to a prefixed
	// stderr logger.
	Logger *log.Logger
}
