package runtime

import "github.com/plexa-ai/runtime/rterr"

// Error is the structured error type used across the runtime.
// It is defined in the rterr package and aliased here for callers.
type Error = rterr.Error

// Sentinel errors, re-exported from rterr for errors.Is checks at the
// runtime surface.
var (
	ErrPluginNotFound   = rterr.ErrPluginNotFound
	ErrInstanceNotFound = rterr.ErrInstanceNotFound
	ErrSessionNotFound  = rterr.ErrSessionNotFound
	ErrSuiteNotFound    = rterr.ErrSuiteNotFound
	ErrInvalidConfig    = rterr.ErrInvalidConfig
	ErrPluginNotLoaded  = rterr.ErrPluginNotLoaded
	ErrPluginNotActive  = rterr.ErrPluginNotActive
	ErrSessionCompleted = rterr.ErrSessionCompleted
	ErrSuiteRunning     = rterr.ErrSuiteRunning
)
