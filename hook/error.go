package hook

import "fmt"

// Error is the error type raised by hook handlers and surfaced by the
// dispatcher. Critical is an explicit, typed escalation flag: a critical
// error aborts the remainder of the chain and propagates to the dispatcher's
// caller, while a non-critical error is isolated to its instance.
//
// The dispatcher detects the flag with errors.As, never by string matching.
type Error struct {
	// Hook is the hook name being dispatched. Filled in by the dispatcher.
	Hook string

	// InstanceID identifies the failing instance. Filled in by the dispatcher.
	InstanceID string

	// Critical aborts the chain when true.
	Critical bool

	// Err is the underlying handler error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	severity := "hook error"
	if e.Critical {
		severity = "critical hook error"
	}
	if e.Hook == "" {
		return fmt.Sprintf("%s: %v", severity, e.Err)
	}
	return fmt.Sprintf("%s: %s (instance %s): %v", severity, e.Hook, e.InstanceID, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Critical wraps err as a chain-aborting hook error. Handlers return this
// when continuing the chain would be unsafe.
func Critical(err error) *Error {
	return &Error{Critical: true, Err: err}
}
