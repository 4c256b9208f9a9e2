// Package testkit executes ordered test suites against an agent, plugin, or
// workflow target through a caller-supplied Executor.
//
// Cases inside one suite run strictly sequentially so setup/teardown side
// effects stay deterministic; different suites may run concurrently. Case
// outcomes keep the error/failed distinction: error means setup, execution,
// or teardown raised, failed means clean execution with wrong output.
package testkit
