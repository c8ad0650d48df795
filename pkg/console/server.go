package console

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/ssh"
)

const (
	// StateCreated indicates the server holds its configuration but is not
	// listening yet.
	StateCreated ServerState = iota
	// StateListening indicates the server is bound and accepting
	// connections.
	StateListening
	// StateStopped is terminal; a stopped server cannot be restarted.
	StateStopped
)

// ServerState represents the lifecycle state of a Server.
type ServerState int32

// String returns a human-readable representation of the server state.
func (s ServerState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	// ErrNoHostKeys is returned by Listen when the configuration carries no
	// host key.
	ErrNoHostKeys = errors.New("console: at least one host key is required")
	// ErrNilRunner is returned by Listen when no command runner is supplied.
	ErrNilRunner = errors.New("console: a command runner is required")
	// ErrNotListening is returned by Stop when the server is not in the
	// listening state, including repeat Stop calls.
	ErrNotListening = errors.New("console: server is not listening")
)

// Server owns the listening socket, the host keys, the authentication
// delegate and the per-connection session handling. A Server is single-use:
// once stopped, create a new one.
type Server struct {
	cfg    Config
	logger *log.Logger

	state atomic.Int32

	// Initialized during Listen, immutable afterwards.
	runner    CommandRunner
	sshConfig *ssh.ServerConfig
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc

	conns sync.Map // net.Conn -> struct{}
	wg    sync.WaitGroup
}

// New creates a Server in the created state. Call Listen to start accepting
// connections.
func New(cfg Config) *Server {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "console"})
	}
	s := &Server{cfg: cfg, logger: logger}
	s.state.Store(int32(StateCreated))
	return s
}

// Listen binds the configured address, installs the SSH protocol layer with
// the configured host keys and authenticators, and starts the accept loop.
// It returns once the listener is bound, not when connections finish.
func (s *Server) Listen(runner CommandRunner) error {
	if runner == nil {
		return ErrNilRunner
	}
	if len(s.cfg.HostKeys) == 0 {
		return ErrNoHostKeys
	}
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateListening)) {
		return fmt.Errorf("console: cannot listen in state %s", ServerState(s.state.Load()))
	}

	config := &ssh.ServerConfig{}
	config.ServerVersion = s.cfg.ServerVersion
	if config.ServerVersion == "" {
		config.ServerVersion = defaultServerVersion
	}
	delegate := &authDelegate{
		password:  s.cfg.PasswordAuth,
		publicKey: s.cfg.PublicKeyAuth,
		logger:    s.logger,
	}
	delegate.install(config)
	for _, key := range s.cfg.HostKeys {
		signer, err := key.Signer()
		if err != nil {
			s.state.Store(int32(StateStopped))
			return fmt.Errorf("console: host key: %w", err)
		}
		config.AddHostKey(signer)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.state.Store(int32(StateStopped))
		return fmt.Errorf("console: listen on %s: %w", addr, err)
	}

	s.runner = runner
	s.sshConfig = config
	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.logger.Info("listening", "address", listener.Addr().String())
	s.wg.Add(1)
	go s.serve()
	return nil
}

// Addr returns the bound listener address, or nil before Listen. With
// Port 0 this is how the auto-selected port is discovered.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// State returns the current lifecycle state.
func (s *Server) State() ServerState {
	return ServerState(s.state.Load())
}

// Stop closes the listening socket and every accepted connection, then waits
// for all handlers to finish. Only the first call does work; later calls
// (or Stop before Listen) return ErrNotListening.
func (s *Server) Stop() error {
	if !s.state.CompareAndSwap(int32(StateListening), int32(StateStopped)) {
		return ErrNotListening
	}
	s.cancel()
	if err := s.listener.Close(); err != nil {
		s.logger.Debug("listener close", "error", err)
	}
	s.conns.Range(func(key, _ any) bool {
		if conn, ok := key.(net.Conn); ok {
			_ = conn.Close()
		}
		return true
	})
	s.wg.Wait()
	s.logger.Info("server stopped")
	return nil
}

// serve accepts connections until the server is stopped. The short accept
// deadline lets the loop notice shutdown even when the listener close races
// with an accept.
func (s *Server) serve() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
			if tcpListener, ok := s.listener.(*net.TCPListener); ok {
				_ = tcpListener.SetDeadline(time.Now().Add(2 * time.Second))
			}
			conn, err := s.listener.Accept()
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				return
			}
			s.wg.Add(1)
			go s.handleConn(conn)
		}
	}
}

// handleConn runs one connection's pipeline: handshake, channel filtering,
// session handling. A deferred recover logs and force-closes the connection
// if anything below the session layer escapes, isolating the fault to this
// connection.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("connection pipeline failure", "remote", conn.RemoteAddr(), "panic", r)
			_ = conn.Close()
		}
	}()

	s.conns.Store(conn, struct{}{})
	defer s.conns.Delete(conn)

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.sshConfig)
	if err != nil {
		s.logger.Debug("handshake failed", "remote", conn.RemoteAddr(), "error", err)
		_ = conn.Close()
		return
	}
	s.logger.Info("connection authenticated", "user", sshConn.User(), "remote", conn.RemoteAddr())

	// Global requests are not part of the console protocol.
	go ssh.DiscardRequests(reqs)
	s.handleChannels(sshConn, chans)
	_ = sshConn.Close()
}

// handleChannels accepts session channels and rejects everything else.
// A rejected channel fails alone; the connection keeps running.
func (s *Server) handleChannels(conn *ssh.ServerConn, chans <-chan ssh.NewChannel) {
	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			s.logger.Warn("rejecting channel", "type", newChannel.ChannelType(), "user", conn.User())
			_ = newChannel.Reject(ssh.UnknownChannelType, "only exec sessions are supported")
			continue
		}
		ch, reqs, err := newChannel.Accept()
		if err != nil {
			s.logger.Error("channel accept failed", "user", conn.User(), "error", err)
			continue
		}
		sess := newSession(ch, conn.User(), s.runner, s.logger)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			sess.run(reqs)
		}()
	}
}
