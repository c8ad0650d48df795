package console

import (
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/ssh"

	"sshconsole/pkg/keys"
)

// ErrInvalidCredentials is returned to the transport layer for every failed
// authentication attempt. The transport applies its own retry policy; a
// failed attempt never closes the connection by itself.
var ErrInvalidCredentials = errors.New("invalid credentials")

// authDelegate bridges the transport's synchronous authentication callbacks
// to the configured authenticators. Each authenticator runs on its own
// goroutine, so it may perform blocking I/O (reading an authorized_keys
// file, querying PAM) without stalling the connection's reader.
type authDelegate struct {
	password  PasswordAuthenticator
	publicKey PublicKeyAuthenticator
	logger    *log.Logger
}

// install wires the delegate into an ssh.ServerConfig. A callback is set only
// for methods that have an authenticator, so the advertised-method set is the
// union of the configured ones; unconfigured methods (including
// keyboard-interactive and host-based, which are never supported) fail
// without invoking any user code.
func (d *authDelegate) install(config *ssh.ServerConfig) {
	if d.password != nil {
		config.PasswordCallback = d.passwordCallback
	}
	if d.publicKey != nil {
		config.PublicKeyCallback = d.publicKeyCallback
	}
}

func (d *authDelegate) passwordCallback(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
	complete, result := d.newCompletion()
	go d.password(conn.User(), string(password), complete)
	if <-result {
		d.logger.Info("password authentication succeeded", "user", conn.User())
		return nil, nil
	}
	d.logger.Info("password authentication failed", "user", conn.User())
	return nil, ErrInvalidCredentials
}

func (d *authDelegate) publicKeyCallback(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
	complete, result := d.newCompletion()
	go d.publicKey(conn.User(), keys.NewCredential(key), complete)
	if <-result {
		d.logger.Info("public key authentication succeeded", "user", conn.User(), "key", key.Type())
		return nil, nil
	}
	d.logger.Info("public key authentication failed", "user", conn.User(), "key", key.Type())
	return nil, ErrInvalidCredentials
}

// newCompletion returns a single-shot CompletionFunc and the channel carrying
// its result. The first resolution wins; any further one is dropped and
// logged as an error, so a misbehaving authenticator is observable instead of
// silently corrupting a later attempt.
func (d *authDelegate) newCompletion() (CompletionFunc, <-chan bool) {
	result := make(chan bool, 1)
	var once sync.Once
	complete := func(ok bool) {
		delivered := false
		once.Do(func() {
			result <- ok
			delivered = true
		})
		if !delivered {
			d.logger.Error("authentication completion resolved more than once")
		}
	}
	return complete, result
}
