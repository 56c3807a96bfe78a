package sftpfixture

import (
	"errors"
	"fmt"
)

// ErrServerFinished reports that a Server operation was attempted after
// its scope ended. Use errors.Is to detect it on any facade error.
var ErrServerFinished = errors.New("server is already finished")

// ErrServerBroken reports that an earlier restart failed and the server
// can no longer be relied upon.
var ErrServerBroken = errors.New("server is in a broken state after a failed restart")

// StateError reports an operation attempted in an invalid lifecycle
// state, for example after WithServer has returned. Action names the
// operation that was refused.
type StateError struct {
	// Action is the attempted operation, e.g. "upload file".
	Action string

	// Cause is the underlying state violation. If nil the server was
	// simply finished.
	Cause error
}

// Error implements the error interface.
func (e *StateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to %s: %v", e.Action, e.Cause)
	}
	return fmt.Sprintf("failed to %s because the server is already finished", e.Action)
}

// Unwrap exposes the state violation for errors.Is.
func (e *StateError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrServerFinished
}

// ArgumentError reports an invalid argument value, raised before any
// side effect takes place.
type ArgumentError struct {
	// Argument is the parameter name, e.g. "port".
	Argument string

	// Value is the rejected value.
	Value any

	// Valid describes the accepted range of values.
	Valid string
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s cannot be set to %v because only %s are valid", e.Argument, e.Value, e.Valid)
}

// newPortError builds the ArgumentError for a port outside [1, 65535].
func newPortError(port int) *ArgumentError {
	return &ArgumentError{
		Argument: "port",
		Value:    port,
		Valid:    "ports between 1 and 65535",
	}
}
