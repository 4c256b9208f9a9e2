// Package rterr defines the runtime's structured error type, error kinds,
// and sentinel errors shared by every runtime component.
//
// Errors carry the failing operation, a kind for categorization, and
// optional context, and support errors.Is/errors.As through Unwrap.
package rterr
