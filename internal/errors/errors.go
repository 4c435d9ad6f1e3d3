// Package errors provides domain-specific error types for mpcat.
//
// These types carry structured context (operation, device, offending
// response) that helps callers decide how to handle failures and
// provides better diagnostics than plain string wrapping.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrTransportUnsupported means no transport can open the
	// configured device spec.  Fatal to connect.
	ErrTransportUnsupported = errors.New("transport not supported")

	// ErrOpenCanceled means the operator backed out of opening the
	// transport (declined a password prompt, interrupted the dial).
	// Connect treats it as a negative result, not a failure.
	ErrOpenCanceled = errors.New("open canceled by user")

	// ErrDeviceUnresponsive means the retry budget elapsed with no
	// data from the device.  Session-level; the connection survives.
	ErrDeviceUnresponsive = errors.New("device unresponsive")

	// ErrNotConnected is returned by operations that need an open
	// connection.
	ErrNotConnected = errors.New("not connected")

	// ErrFileNotFound means the remote file does not exist.
	ErrFileNotFound = errors.New("remote file not found")

	// ErrTransferIncomplete means a download response was missing one
	// of the content delimiters.
	ErrTransferIncomplete = errors.New("transfer incomplete")
)

// ── Structured error types ───────────────────────────────────────────

// ConnectionError represents a failure to open or keep a device link.
type ConnectionError struct {
	Op     string // "open", "login", "read", "write"
	Device string // device spec involved
	Err    error  // underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Device, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RemoteError represents an exception raised by the interpreter on the
// device in response to a sent line.
type RemoteError struct {
	Line     string // the line that triggered the exception
	Response string // full response, including the traceback
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote exception for %q: %s", e.Line, firstLine(e.Response))
}

// ConfigError represents an invalid configuration value.  Field names
// the config item (a flag name or the positional action), Value holds
// the rejected input when there was one, and Hint suggests a fix.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := "config: " + e.Field
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// WrapConn creates a ConnectionError.
func WrapConn(op, device string, err error) *ConnectionError {
	return &ConnectionError{Op: op, Device: device, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsCanceled reports whether err stems from an operator cancellation
// rather than a genuine failure.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrOpenCanceled)
}

// firstLine trims a response down to its first non-empty line for
// compact error messages.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return strings.TrimSpace(s)
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use mpcat/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
