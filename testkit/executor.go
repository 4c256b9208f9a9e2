package testkit

import (
	"context"

	"github.com/plexa-ai/runtime/types"
)

// Target identifies what a suite runs against.
type Target struct {
	Type types.SessionType
	ID   string
}

// Executor is the external capability that actually runs test case code.
// The runtime treats execution targets as opaque collaborators: callers
// supply an Executor that knows how to drive their agents, plugins, or
// workflows.
//
// Every method receives the case input so setup/teardown code can reference
// the data under test. Returned errors classify the case as error (never
// failed); output mismatches are detected by the runner, not the executor.
type Executor interface {
	// Setup runs the case's setup reference. ref is never empty.
	Setup(ctx context.Context, ref string, input map[string]any) error

	// Execute runs the case input against the target and returns the actual
	// output for deep comparison with the expected output.
	Execute(ctx context.Context, target Target, c types.Case) (any, error)

	// Teardown runs the case's teardown reference. ref is never empty.
	Teardown(ctx context.Context, ref string, input map[string]any) error
}
