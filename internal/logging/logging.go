// Package logging provides structured logging helpers for the fixture.
// Logging is off by default: tests rarely want server chatter, so the
// default logger discards everything and callers opt in with an
// explicit slog.Logger.
package logging

import "log/slog"

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Component returns a child logger tagged with the component name.
// A nil logger yields a discarding one, so callers never need nil
// checks before logging.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		return Discard()
	}
	return logger.With("component", name)
}
