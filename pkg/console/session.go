package console

import (
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/ssh"
)

// inputNotAccepted is the literal diagnostic a client receives on its error
// stream before the channel is closed when it tries to send input. Rejecting
// loudly keeps the zero-input contract visible instead of silently eating
// stray data.
const inputNotAccepted = "Input Not Accepted\r\n"

type sessionState int

const (
	// stateAwaitingExec is the initial state: env requests are merged,
	// the exec request is still outstanding.
	stateAwaitingExec sessionState = iota
	// stateDispatched means the one command has been handed to the runner.
	stateDispatched
	// stateClosed is terminal, reached through teardown or an inbound-data
	// violation.
	stateClosed
)

type envRequestMsg struct {
	Name  string
	Value string
}

type execRequestMsg struct {
	Command string
}

// session is the per-channel protocol adapter enforcing the exec-only,
// no-input contract. Env and exec requests arrive on a single request
// channel and are handled on one goroutine, so their ordering is serialized
// by construction; the mutex only covers the data-rejection goroutine's
// access to shared state.
type session struct {
	ch       ssh.Channel
	username string
	runner   CommandRunner
	logger   *log.Logger

	mu     sync.Mutex
	state  sessionState
	env    map[string]string
	output *Output
}

func newSession(ch ssh.Channel, username string, runner CommandRunner, logger *log.Logger) *session {
	return &session{
		ch:       ch,
		username: username,
		runner:   runner,
		logger:   logger,
		state:    stateAwaitingExec,
		env:      make(map[string]string),
	}
}

// run drives the session until the client closes the channel or a violation
// closes it first. It always releases the session's hold on the channel on
// the way out.
func (s *session) run(reqs <-chan *ssh.Request) {
	go s.rejectInput()
	for req := range reqs {
		s.handleRequest(req)
	}
	s.teardown()
}

func (s *session) handleRequest(req *ssh.Request) {
	switch req.Type {
	case "env":
		var payload envRequestMsg
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			s.logger.Error("malformed env request", "user", s.username, "error", err)
			s.reply(req, false)
			return
		}
		// Accepted in every state; after dispatch the merge is invisible to
		// the runner, which only ever sees the snapshot taken at exec time.
		s.mu.Lock()
		s.env[payload.Name] = payload.Value
		s.mu.Unlock()
		s.reply(req, true)

	case "exec":
		var payload execRequestMsg
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			s.logger.Error("malformed exec request", "user", s.username, "error", err)
			s.reply(req, false)
			return
		}
		s.dispatch(req, payload.Command)

	default:
		// Exec-only channel: shell, pty-req, subsystem and anything unknown
		// are refused.
		s.logger.Debug("refusing channel request", "type", req.Type, "user", s.username)
		s.reply(req, false)
	}
}

// dispatch hands the command to the runner exactly once per channel. A
// repeat exec request is refused without a fresh Output.
func (s *session) dispatch(req *ssh.Request, command string) {
	s.mu.Lock()
	if s.state != stateAwaitingExec {
		s.mu.Unlock()
		s.logger.Warn("repeat exec request refused", "user", s.username)
		s.reply(req, false)
		return
	}
	s.state = stateDispatched
	out := s.createOutputLocked()
	snapshot := make(map[string]string, len(s.env))
	for k, v := range s.env {
		snapshot[k] = v
	}
	s.mu.Unlock()

	s.reply(req, true)
	s.logger.Info("dispatching command", "user", s.username, "command", command)
	// Runs on the protocol goroutine; offloading long work is the runner's
	// responsibility.
	s.runner(command, out, s.username, snapshot)
}

// createOutputLocked creates the channel's one Output. A second creation is
// an internal logic error, not a network condition, and is fatal.
func (s *session) createOutputLocked() *Output {
	if s.output != nil {
		panic("console: second Output created for one channel")
	}
	s.output = newOutput(s.ch, s.logger)
	return s.output
}

func (s *session) reply(req *ssh.Request, ok bool) {
	if !req.WantReply {
		return
	}
	if err := req.Reply(ok, nil); err != nil {
		s.logger.Debug("request reply failed", "type", req.Type, "error", err)
	}
}

// rejectInput enforces the no-stdin contract. Any data the client manages to
// send, in any session state, poisons the channel: a fixed diagnostic goes
// out on the error stream and the channel is closed once that write
// completes.
func (s *session) rejectInput() {
	buf := make([]byte, 256)
	for {
		n, err := s.ch.Read(buf)
		if n > 0 {
			s.violate()
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *session) violate() {
	s.logger.Warn("inbound data on exec-only channel", "user", s.username)
	if _, err := s.ch.Stderr().Write([]byte(inputNotAccepted)); err != nil {
		s.logger.Debug("diagnostic write failed", "error", err)
	}
	s.mu.Lock()
	s.state = stateClosed
	if s.output == nil {
		s.output = newOutput(s.ch, s.logger)
	}
	out := s.output
	s.mu.Unlock()
	out.closeWithStatus(1)
}

// teardown drops the session's hold on the channel. If a runner already
// released the Output this is a no-op; if the client closed the channel
// before any exec arrived there is no Output and the bare channel is closed.
func (s *session) teardown() {
	s.mu.Lock()
	s.state = stateClosed
	out := s.output
	s.mu.Unlock()
	if out != nil {
		out.Release()
		return
	}
	if err := s.ch.Close(); err != nil {
		s.logger.Debug("channel close", "error", err)
	}
}
