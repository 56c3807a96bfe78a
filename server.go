package sftpfixture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/acolita/sftpfixture/internal/logging"
	"github.com/acolita/sftpfixture/internal/sshd"
	"github.com/acolita/sftpfixture/internal/vfs"
)

// Server is the handle test code uses to control a running in-memory
// SFTP server: query or change its port, register users and seed or
// inspect its virtual filesystem.
//
// A Server obtained from WithServer is only valid inside the callback.
// As soon as the callback returns the server is marked finished and
// every further operation fails with a StateError; this catches the
// common mistake of capturing the reference for assertions after the
// scope ended.
//
// A Server obtained from New stays valid until Close is called.
type Server struct {
	fs     *vfs.FileSystem
	creds  *sshd.Credentials
	srv    *sshd.Server
	logger *slog.Logger

	// startPort is the port requested via WithPort, 0 for ephemeral.
	startPort int

	mu       sync.Mutex
	finished bool
	broken   bool
	closed   bool
}

// WithServer starts an in-memory SFTP server, runs fn against it and
// shuts the server down afterwards, whether fn succeeds or fails.
//
//	err := sftpfixture.WithServer(func(server *sftpfixture.Server) error {
//	    if err := server.PutFile("/directory/file.bin", content); err != nil {
//	        return err
//	    }
//	    // run the code under test against server.Addr()
//	    return nil
//	})
//
// By default the server listens on an auto-allocated loopback port,
// obtainable via Port, and accepts every username/password pair until
// AddUser or WithUser restricts authentication.
//
// The error returned by fn is passed through. If teardown fails too,
// both errors are joined so neither is lost.
func WithServer(fn func(*Server) error, opts ...Option) error {
	server, err := New(opts...)
	if err != nil {
		return err
	}

	err = fn(server)
	server.finish()

	if closeErr := server.Close(); closeErr != nil {
		return errors.Join(err, closeErr)
	}
	return err
}

// New starts an in-memory SFTP server for manual lifecycle control,
// for use where a single callback is impractical (given/when/then
// style tests, fixtures shared across test phases). The caller must
// release it with Close.
//
//	server, err := sftpfixture.New()
//	if err != nil { ... }
//	defer server.Close()
//
// Unlike WithServer, New does not arm the finished guard: operations
// keep working until Close.
func New(opts ...Option) (*Server, error) {
	server := &Server{
		fs:    vfs.New(),
		creds: sshd.NewCredentials(),
	}
	for _, opt := range opts {
		if err := opt(server); err != nil {
			server.fs.Close()
			return nil, err
		}
	}

	server.srv = sshd.New(sshd.Config{
		FS:          server.fs,
		Credentials: server.creds,
		Logger:      logging.Component(server.logger, "sshd"),
	})
	if err := server.srv.Start(server.startPort); err != nil {
		server.fs.Close()
		return nil, fmt.Errorf("start sftp server: %w", err)
	}
	return server, nil
}

// Close stops the listener, force-closes open client sessions and
// releases the virtual filesystem. Close is idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	stopErr := s.srv.Stop()
	fsErr := s.fs.Close()
	return errors.Join(stopErr, fsErr)
}

// finish flips the lifecycle guard. Called by WithServer once the
// callback has returned; never by the Server itself.
func (s *Server) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
}

// guard rejects the operation if the server's scope has ended or a
// failed restart left it broken. action names the attempted operation
// in the resulting error.
func (s *Server) guard(action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return &StateError{Action: action}
	}
	if s.broken {
		return &StateError{Action: action, Cause: ErrServerBroken}
	}
	return nil
}

// markBroken records a failed restart; every later operation fails.
func (s *Server) markBroken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken = true
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() (int, error) {
	if err := s.guard("call Port()"); err != nil {
		return 0, err
	}
	return s.srv.Port(), nil
}

// Addr returns the server's dialable address, e.g. "127.0.0.1:42061".
func (s *Server) Addr() (string, error) {
	port, err := s.Port()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("127.0.0.1:%d", port), nil
}

// SetPort moves the server to a fixed port between 1 and 65535. The
// server is restarted, so open client sessions are disconnected; the
// virtual filesystem and registered users are kept.
func (s *Server) SetPort(port int) error {
	if port < 1 || port > 65535 {
		return newPortError(port)
	}
	if err := s.guard("set port"); err != nil {
		return err
	}
	if err := s.srv.Restart(port); err != nil {
		s.markBroken()
		return &StateError{
			Action: "set port",
			Cause:  fmt.Errorf("the SFTP server cannot be restarted: %w", err),
		}
	}
	return nil
}

// AddUser registers a password for a username. After the first AddUser
// only registered username/password pairs can authenticate; before it
// every pair is accepted. For a repeated username the last password
// wins. Changes take effect immediately, without a server restart.
func (s *Server) AddUser(username, password string) error {
	if err := s.guard("add user"); err != nil {
		return err
	}
	s.creds.Set(username, password)
	return nil
}
