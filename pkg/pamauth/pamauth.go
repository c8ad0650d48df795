// Package pamauth provides a console PasswordAuthenticator backed by PAM
// (Pluggable Authentication Modules), so the console server can authenticate
// against the host's system accounts.
package pamauth

import (
	pam "github.com/msteinert/pam/v2"

	"sshconsole/pkg/console"
)

// Authenticator returns a PasswordAuthenticator that validates credentials
// against the given PAM service (e.g. "sshd"). PAM transactions block on
// system facilities, which is fine here: the console runs authenticators off
// the transport goroutine.
func Authenticator(service string) console.PasswordAuthenticator {
	return func(username, password string, complete console.CompletionFunc) {
		complete(authenticate(service, username, password))
	}
}

// authenticate runs one PAM transaction for the user and reports whether it
// succeeded.
func authenticate(service, username, password string) bool {
	t, err := pam.StartFunc(service, username, func(s pam.Style, msg string) (string, error) {
		// Handle different PAM prompt styles.
		switch s {
		case pam.PromptEchoOff:
			// Password prompt (hidden input).
			return password, nil
		case pam.TextInfo:
			// Informational message, no input needed.
			return "", nil
		default:
			// Any other prompt, return empty.
			return "", nil
		}
	})
	if err != nil {
		return false
	}
	return t.Authenticate(0) == nil
}
