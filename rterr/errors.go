package rterr

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors for common runtime error conditions.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrPluginNotFound indicates the requested plugin is not installed.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrInstanceNotFound indicates the requested plugin instance does not exist.
	ErrInstanceNotFound = errors.New("plugin instance not found")

	// ErrSessionNotFound indicates the requested debug session does not exist.
	ErrSessionNotFound = errors.New("debug session not found")

	// ErrSuiteNotFound indicates the requested test suite does not exist.
	ErrSuiteNotFound = errors.New("test suite not found")

	// ErrInvalidConfig indicates a descriptor or instance configuration failed
	// validation. Nothing is persisted when this error is returned.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrPluginNotLoaded indicates an operation required a loaded plugin
	// object but the plugin has not been (successfully) loaded.
	ErrPluginNotLoaded = errors.New("plugin not loaded")

	// ErrPluginNotActive indicates a load was attempted while the plugin's
	// stored status is not active.
	ErrPluginNotActive = errors.New("plugin not active")

	// ErrSessionCompleted indicates a mutation was attempted on a debug
	// session that has reached its terminal state.
	ErrSessionCompleted = errors.New("debug session completed")

	// ErrSuiteRunning indicates a test suite run was requested while the
	// suite is already running.
	ErrSuiteRunning = errors.New("test suite already running")
)

// Error kinds categorize errors by their type.
const (
	// KindNotFound represents errors where an entity was not found.
	KindNotFound = "not_found"

	// KindValidation represents errors related to input validation.
	KindValidation = "validation"

	// KindExecution represents errors that occur during hook or test execution.
	KindExecution = "execution"

	// KindConfiguration represents errors related to configuration.
	KindConfiguration = "configuration"

	// KindLoad represents plugin load failures.
	KindLoad = "load"

	// KindTimeout represents errors related to operation timeouts.
	KindTimeout = "timeout"

	// KindState represents operations attempted in an illegal lifecycle state.
	KindState = "state"

	// KindInternal represents internal runtime errors.
	KindInternal = "internal"
)

// Error is a structured error type that wraps underlying errors with the
// operation that failed and the category of failure.
//
// Error implements the error interface and supports unwrapping, making it
// compatible with errors.Is() and errors.As().
type Error struct {
	// Op is the operation that failed (e.g., "Registry.Install").
	Op string

	// Kind categorizes the error (e.g., KindNotFound, KindValidation).
	Kind string

	// Err is the underlying error.
	Err error

	// Context provides additional context about the error (optional), such
	// as entity IDs or offending field names.
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("runtime: %s: %s", e.Op, e.Kind)
	}
	if len(e.Context) > 0 {
		return fmt.Sprintf("runtime: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}
	return fmt.Sprintf("runtime: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches either another *Error with the same Kind (and Op, when set on
// the target) or the underlying error chain.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}
	return errors.Is(e.Err, target)
}

// WithContext returns a copy of the error with the provided context merged in.
func (e *Error) WithContext(ctx map[string]any) *Error {
	newErr := *e
	if newErr.Context == nil {
		newErr.Context = make(map[string]any)
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// NewNotFoundError creates a new Error with KindNotFound.
func NewNotFoundError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindNotFound, Err: err}
}

// NewValidationError creates a new Error with KindValidation.
func NewValidationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindValidation, Err: err}
}

// NewExecutionError creates a new Error with KindExecution.
func NewExecutionError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindExecution, Err: err}
}

// NewConfigurationError creates a new Error with KindConfiguration.
func NewConfigurationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}

// NewLoadError creates a new Error with KindLoad.
func NewLoadError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindLoad, Err: err}
}

// NewTimeoutError creates a new Error with KindTimeout.
func NewTimeoutError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindTimeout, Err: err}
}

// NewStateError creates a new Error with KindState.
func NewStateError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindState, Err: err}
}

// NewInternalError creates a new Error with KindInternal.
func NewInternalError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInternal, Err: err}
}

// CloseWithLog attempts to close the provided resource and logs any error at
// warning level. Intended for defer statements so cleanup errors are not
// silently ignored. If logger is nil, slog.Default() is used.
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
