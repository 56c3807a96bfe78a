package sftpfixture

import "log/slog"

// Option is a functional option for configuring a Server before its
// listener starts.
type Option func(*Server) error

// WithPort makes the server listen on a fixed port instead of an
// OS-assigned ephemeral one. The port must be between 1 and 65535.
//
// Example:
//
//	server, err := sftpfixture.New(sftpfixture.WithPort(2222))
func WithPort(port int) Option {
	return func(s *Server) error {
		if port < 1 || port > 65535 {
			return newPortError(port)
		}
		s.startPort = port
		return nil
	}
}

// WithUser registers a username/password pair before the server starts
// accepting connections. It may be given multiple times; for a repeated
// username the last password wins, matching AddUser.
//
// Once at least one user is registered, only registered pairs can
// authenticate. Without any users every username/password pair is
// accepted.
func WithUser(username, password string) Option {
	return func(s *Server) error {
		s.creds.Set(username, password)
		return nil
	}
}

// WithLogger directs the server's session lifecycle events to the
// given structured logger. By default the server logs nothing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}
