package dispatch

import (
	"errors"
	"fmt"

	"datar/session"
)

// InputError rejects a dispatch before any session or capability work
// happens. It maps to a 4xx response and is never retried by the service.
type InputError struct {
	Reason string
}

// Error implements the error interface for InputError.
func (e *InputError) Error() string { return e.Reason }

// ExecutionError wraps a capability fault raised while driving a run to
// completion. Timeout marks runs aborted by the configured execute deadline.
// Session metadata is never mutated on this path.
type ExecutionError struct {
	SessionID string
	Timeout   bool
	Err       error
}

// Error implements the error interface for ExecutionError.
func (e *ExecutionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("session %s: agent execution timed out: %v", e.SessionID, e.Err)
	}
	return fmt.Sprintf("session %s: agent execution failed: %v", e.SessionID, e.Err)
}

// Unwrap exposes the underlying capability error.
func (e *ExecutionError) Unwrap() error { return e.Err }

// IsInputError reports whether err is a client-input rejection.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// IsSessionFault reports whether err is a session creation failure.
func IsSessionFault(err error) bool {
	var ce *session.CreationError
	return errors.As(err, &ce)
}
