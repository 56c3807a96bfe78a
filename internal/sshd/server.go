// Package sshd runs the SSH listener and the per-session SFTP request
// servers backing the fixture. It binds one listening server to one
// virtual filesystem and one credential store; the fixture facade owns
// both and drives Start, Stop and Restart.
package sshd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"

	"github.com/acolita/sftpfixture/internal/vfs"
)

// Config holds the collaborators of a Server.
type Config struct {
	// FS is the virtual filesystem shared by all client sessions.
	FS *vfs.FileSystem

	// Credentials backs password authentication.
	Credentials *Credentials

	// Logger receives session lifecycle events. If nil, logging is
	// disabled.
	Logger *slog.Logger
}

// Server accepts SSH connections and serves the SFTP subsystem over
// the configured virtual filesystem. A Server can be stopped and
// started again on a different port; the filesystem and credential
// store survive restarts.
type Server struct {
	fs    *vfs.FileSystem
	creds *Credentials
	log   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	port     int
	conns    map[net.Conn]struct{}
	group    *errgroup.Group
}

// New creates a Server. Call Start to begin listening.
func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{
		fs:    cfg.FS,
		creds: cfg.Credentials,
		log:   log,
	}
}

// Start binds a TCP listener on the loopback interface and begins
// accepting SSH connections. Port 0 requests an OS-assigned ephemeral
// port. A fresh host key is generated on every Start.
func (s *Server) Start(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("server already listening on port %d", s.port)
	}

	signer, err := generateHostKey()
	if err != nil {
		return err
	}

	config := &ssh.ServerConfig{
		PasswordCallback: s.creds.PasswordCallback,
	}
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.conns = make(map[net.Conn]struct{})
	s.group = &errgroup.Group{}

	group := s.group
	group.Go(func() error {
		s.acceptLoop(listener, config, group)
		return nil
	})

	s.log.Debug("sftp server listening", "port", s.port)
	return nil
}

// Port returns the port the server is (or was last) listening on.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Stop closes the listener, force-closes all open client connections
// and waits for their session goroutines to finish. Stopping an already
// stopped server is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	listener := s.listener
	group := s.group
	s.listener = nil
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = nil
	s.mu.Unlock()

	if listener == nil {
		return nil
	}
	err := listener.Close()
	if group != nil {
		group.Wait()
	}
	if err != nil {
		return fmt.Errorf("close listener: %w", err)
	}
	s.log.Debug("sftp server stopped")
	return nil
}

// Restart stops the server and starts it again on the given port.
func (s *Server) Restart(port int) error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Start(port)
}

// acceptLoop accepts connections until the listener is closed. Every
// connection handler joins the group so Stop can wait for full session
// teardown.
func (s *Server) acceptLoop(listener net.Listener, config *ssh.ServerConfig, group *errgroup.Group) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		if !s.track(conn) {
			conn.Close()
			return
		}
		group.Go(func() error {
			defer s.untrack(conn)
			s.handleConn(conn, config, group)
			return nil
		})
	}
}

// track registers an open connection so Stop can force-close it.
// It reports false if the server is already stopping.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

// handleConn performs the SSH handshake and dispatches session
// channels.
func (s *Server) handleConn(conn net.Conn, config *ssh.ServerConfig, group *errgroup.Group) {
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		conn.Close()
		s.log.Debug("ssh handshake failed", "error", err)
		return
	}
	defer sshConn.Close()

	s.log.Debug("client connected", "user", sshConn.User(), "remote", sshConn.RemoteAddr())
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "only session channels are supported")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			s.log.Debug("channel accept failed", "error", err)
			continue
		}
		group.Go(func() error {
			s.handleChannel(channel, requests)
			return nil
		})
	}
}

// handleChannel waits for the sftp subsystem request on a session
// channel. Shell, exec and pty requests are refused.
func (s *Server) handleChannel(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()

	for req := range requests {
		if req.Type == "subsystem" && len(req.Payload) > 4 && string(req.Payload[4:]) == "sftp" {
			if req.WantReply {
				req.Reply(true, nil)
			}
			s.serveSFTP(channel)
			return
		}
		if req.WantReply {
			req.Reply(false, nil)
		}
	}
}

// serveSFTP runs one SFTP request server over the channel. The session
// gets a non-closing view of the shared filesystem: the handle it
// closes at teardown is the view, never the filesystem itself.
func (s *Server) serveSFTP(channel ssh.Channel) {
	view := vfs.NonClosing(s.fs)
	defer view.Close()

	server := sftp.NewRequestServer(channel, newHandlers(view))
	err := server.Serve()
	server.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		s.log.Debug("sftp session ended with error", "error", err)
		return
	}
	s.log.Debug("sftp session ended")
}
