package testkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexa-ai/runtime/rterr"
	"github.com/plexa-ai/runtime/store"
	"github.com/plexa-ai/runtime/types"
)

// fakeExecutor scripts per-case behavior by case name.
type fakeExecutor struct {
	mu          sync.Mutex
	outputs     map[string]any
	execErrs    map[string]error
	setupErrs   map[string]error
	tearErrs    map[string]error
	delays      map[string]time.Duration
	setupCalls  []string
	tearCalls   []string
	execCalls   []string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		outputs:   make(map[string]any),
		execErrs:  make(map[string]error),
		setupErrs: make(map[string]error),
		tearErrs:  make(map[string]error),
		delays:    make(map[string]time.Duration),
	}
}

func (f *fakeExecutor) Setup(ctx context.Context, ref string, input map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setupCalls = append(f.setupCalls, ref)
	return f.setupErrs[ref]
}

func (f *fakeExecutor) Execute(ctx context.Context, target Target, c types.Case) (any, error) {
	f.mu.Lock()
	f.execCalls = append(f.execCalls, c.Name)
	delay := f.delays[c.Name]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.execErrs[c.Name]; err != nil {
		return nil, err
	}
	return f.outputs[c.Name], nil
}

func (f *fakeExecutor) Teardown(ctx context.Context, ref string, input map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tearCalls = append(f.tearCalls, ref)
	return f.tearErrs[ref]
}

func newTestRunner(t *testing.T) (*Runner, *fakeExecutor, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	executor := newFakeExecutor()
	return NewRunner(st, executor), executor, st
}

func caseResult(t *testing.T, results *types.Results, name string) types.CaseResult {
	t.Helper()
	for _, c := range results.Cases {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no result for case %s", name)
	return types.CaseResult{}
}

func TestRunSuiteMixedOutcomes(t *testing.T) {
	runner, executor, st := newTestRunner(t)
	ctx := context.Background()

	disabled := NewCase("disabled", types.CaseUnit, nil, nil)
	disabled.Enabled = false
	matching := NewCase("matching", types.CaseUnit, map[string]any{"in": 1}, map[string]any{"out": 1})
	mismatched := NewCase("mismatched", types.CaseUnit, nil, "expected")

	executor.outputs["matching"] = map[string]any{"out": 1}
	executor.outputs["mismatched"] = "actual"

	suite := NewSuite("mixed", types.SessionTypeAgent, "agent-1", disabled, matching, mismatched)
	MarkReady(suite)
	require.NoError(t, runner.Save(ctx, suite))

	results, err := runner.RunSuite(ctx, suite.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, results.Total)
	assert.Equal(t, 1, results.Skipped)
	assert.Equal(t, 1, results.Passed)
	assert.Equal(t, 1, results.Failed)
	assert.Equal(t, 0, results.Errored())

	skipped := caseResult(t, results, "disabled")
	assert.Equal(t, types.CaseSkipped, skipped.Status)
	assert.Zero(t, skipped.Duration)

	failed := caseResult(t, results, "mismatched")
	assert.Equal(t, types.CaseFailed, failed.Status)
	assert.Equal(t, "actual", failed.Actual)
	assert.NotEmpty(t, failed.Error)

	stored, err := st.GetSuite(ctx, suite.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SuiteFailed, stored.Status)
	require.NotNil(t, stored.LastRun)
	require.NotNil(t, stored.Results)
}

func TestRunSuiteAllPassing(t *testing.T) {
	runner, executor, st := newTestRunner(t)
	ctx := context.Background()

	c := NewCase("ok", types.CaseUnit, nil, "fine")
	executor.outputs["ok"] = "fine"

	suite := NewSuite("green", types.SessionTypeWorkflow, "wf-1", c)
	require.NoError(t, runner.Save(ctx, suite))

	results, err := runner.RunSuite(ctx, suite.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, results.Passed)

	stored, err := st.GetSuite(ctx, suite.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SuiteCompleted, stored.Status)
}

func TestSetupErrorYieldsErrorNotFailed(t *testing.T) {
	runner, executor, _ := newTestRunner(t)
	ctx := context.Background()

	c := NewCase("needs-setup", types.CaseIntegration, nil, "anything")
	c.Setup = "prepare-db"
	c.Teardown = "drop-db"
	executor.setupErrs["prepare-db"] = fmt.Errorf("database unavailable")

	suite := NewSuite("s", types.SessionTypeAgent, "agent-1", c)
	require.NoError(t, runner.Save(ctx, suite))

	results, err := runner.RunSuite(ctx, suite.ID)
	require.NoError(t, err)

	result := caseResult(t, results, "needs-setup")
	assert.Equal(t, types.CaseError, result.Status)
	assert.Contains(t, result.Error, "database unavailable")
	assert.Equal(t, 0, results.Failed)

	// Execution never ran, teardown still did.
	assert.Empty(t, executor.execCalls)
	assert.Equal(t, []string{"drop-db"}, executor.tearCalls)
}

func TestTeardownRunsAfterMismatch(t *testing.T) {
	runner, executor, _ := newTestRunner(t)
	ctx := context.Background()

	c := NewCase("mismatch", types.CaseUnit, nil, "want")
	c.Teardown = "cleanup"
	executor.outputs["mismatch"] = "got"

	suite := NewSuite("s", types.SessionTypeAgent, "agent-1", c)
	require.NoError(t, runner.Save(ctx, suite))

	results, err := runner.RunSuite(ctx, suite.ID)
	require.NoError(t, err)

	assert.Equal(t, types.CaseFailed, caseResult(t, results, "mismatch").Status)
	assert.Equal(t, []string{"cleanup"}, executor.tearCalls)
}

func TestTeardownErrorYieldsError(t *testing.T) {
	runner, executor, _ := newTestRunner(t)
	ctx := context.Background()

	c := NewCase("leaky", types.CaseUnit, nil, "fine")
	c.Teardown = "cleanup"
	executor.outputs["leaky"] = "fine"
	executor.tearErrs["cleanup"] = fmt.Errorf("teardown exploded")

	suite := NewSuite("s", types.SessionTypeAgent, "agent-1", c)
	require.NoError(t, runner.Save(ctx, suite))

	results, err := runner.RunSuite(ctx, suite.ID)
	require.NoError(t, err)

	result := caseResult(t, results, "leaky")
	assert.Equal(t, types.CaseError, result.Status)
	assert.Contains(t, result.Error, "teardown exploded")
}

func TestTimeoutYieldsError(t *testing.T) {
	runner, executor, _ := newTestRunner(t)
	ctx := context.Background()

	c := NewCase("slow", types.CaseUnit, nil, "done")
	c.Timeout = 20 * time.Millisecond
	executor.delays["slow"] = time.Second

	suite := NewSuite("s", types.SessionTypeAgent, "agent-1", c)
	require.NoError(t, runner.Save(ctx, suite))

	start := time.Now()
	results, err := runner.RunSuite(ctx, suite.ID)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "runner must not wait out the stuck case")

	result := caseResult(t, results, "slow")
	assert.Equal(t, types.CaseError, result.Status)
	assert.Contains(t, result.Error, "timeout")
	assert.GreaterOrEqual(t, result.Duration, 20*time.Millisecond)
}

func TestPerformanceCaseRunsWarmup(t *testing.T) {
	runner, executor, _ := newTestRunner(t)
	ctx := context.Background()

	c := NewCase("bench", types.CasePerformance, nil, 42)
	executor.outputs["bench"] = 42

	suite := NewSuite("s", types.SessionTypeAgent, "agent-1", c)
	require.NoError(t, runner.Save(ctx, suite))

	results, err := runner.RunSuite(ctx, suite.ID)
	require.NoError(t, err)
	assert.Equal(t, types.CasePassed, caseResult(t, results, "bench").Status)
	assert.Len(t, executor.execCalls, 2)
}

func TestRunningSuiteRejected(t *testing.T) {
	runner, _, st := newTestRunner(t)
	ctx := context.Background()

	suite := NewSuite("s", types.SessionTypeAgent, "agent-1")
	suite.Status = types.SuiteRunning
	require.NoError(t, st.CreateSuite(ctx, suite))

	_, err := runner.RunSuite(ctx, suite.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rterr.ErrSuiteRunning))
}

func TestUnknownSuite(t *testing.T) {
	runner, _, _ := newTestRunner(t)

	_, err := runner.RunSuite(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rterr.ErrSuiteNotFound))
}
