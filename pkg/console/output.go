package console

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/ssh"
)

// exitStatusMsg is the payload of the standard exit-status channel request.
type exitStatusMsg struct {
	Status uint32
}

// Output is the sink a CommandRunner writes results through. Exactly one
// Output exists per session channel. The underlying transport may buffer
// writes arbitrarily; everything is flushed when the channel closes.
//
// Output is a scoped handle: whoever holds it last must call Release, which
// reports exit status 0 and closes the channel. Release is idempotent, so
// both the runner and the session teardown path may call it safely.
type Output struct {
	ch     ssh.Channel
	logger *log.Logger
	once   sync.Once
}

func newOutput(ch ssh.Channel, logger *log.Logger) *Output {
	return &Output{ch: ch, logger: logger}
}

// Write appends text to the client's normal output stream. Terminate lines
// with "\r\n" for correct terminal rendering.
func (o *Output) Write(text string) error {
	if _, err := o.ch.Write([]byte(text)); err != nil {
		return fmt.Errorf("write to channel: %w", err)
	}
	return nil
}

// WriteError appends text to the client's error stream (extended data
// type 1).
func (o *Output) WriteError(text string) error {
	if _, err := o.ch.Stderr().Write([]byte(text)); err != nil {
		return fmt.Errorf("write to error stream: %w", err)
	}
	return nil
}

// Release flushes the channel and closes it, reporting exit status 0. Safe
// to call more than once; every call after the first is a no-op.
func (o *Output) Release() {
	o.closeWithStatus(0)
}

// closeWithStatus sends the exit-status request and closes the channel,
// exactly once. Failure and teardown paths use a nonzero status through the
// same guard, which is what makes double release harmless.
func (o *Output) closeWithStatus(status uint32) {
	o.once.Do(func() {
		if _, err := o.ch.SendRequest("exit-status", false, ssh.Marshal(&exitStatusMsg{Status: status})); err != nil {
			o.logger.Debug("exit-status not delivered", "error", err)
		}
		if err := o.ch.Close(); err != nil {
			o.logger.Debug("channel close", "error", err)
		}
	})
}
