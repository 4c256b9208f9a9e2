// Package hook maintains priority-ordered hook registrations and executes
// them as a sequential middleware chain over a shared, mutable context.
//
// Dispatch is safe to call unconditionally: a hook with no registrations is
// an identity transform. Per-instance failures are isolated (recorded,
// emitted, chain continues) unless the error is explicitly marked critical,
// in which case the chain aborts and the error propagates to the caller.
package hook
