package testkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/plexa-ai/runtime/events"
	"github.com/plexa-ai/runtime/rterr"
	"github.com/plexa-ai/runtime/store"
	"github.com/plexa-ai/runtime/types"
)

// strategy holds the per-category execution policy. Performance cases get a
// discarded warmup invocation so the measured run is not dominated by cold
// caches; integration and security cases get longer default timeouts.
type strategy struct {
	defaultTimeout time.Duration
	warmup         bool
}

var strategies = map[types.CaseType]strategy{
	types.CaseUnit:        {defaultTimeout: 5 * time.Second},
	types.CaseIntegration: {defaultTimeout: 30 * time.Second},
	types.CasePerformance: {defaultTimeout: 60 * time.Second, warmup: true},
	types.CaseSecurity:    {defaultTimeout: 30 * time.Second},
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithEmitter sets the event emitter. Default: events.Nop.
func WithEmitter(emitter events.Emitter) Option {
	return func(r *Runner) { r.emitter = emitter }
}

// Runner executes test suites. A suite is locked while it runs; concurrent
// RunSuite calls for the same suite fail with ErrSuiteRunning, while calls
// for different suites proceed in parallel.
type Runner struct {
	store    store.SuiteStore
	executor Executor
	logger   *slog.Logger
	emitter  events.Emitter

	mu      sync.Mutex
	running map[string]bool
}

// NewRunner creates a runner over the given suite store and executor.
func NewRunner(st store.SuiteStore, executor Executor, opts ...Option) *Runner {
	r := &Runner{
		store:    st,
		executor: executor,
		logger:   slog.Default(),
		emitter:  events.Nop{},
		running:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save persists a new suite.
func (r *Runner) Save(ctx context.Context, suite *types.Suite) error {
	if err := r.store.CreateSuite(ctx, suite); err != nil {
		return rterr.NewInternalError("testkit.Save", err)
	}
	return nil
}

// Get returns the stored suite.
func (r *Runner) Get(ctx context.Context, id string) (*types.Suite, error) {
	suite, err := r.store.GetSuite(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, rterr.NewNotFoundError("testkit.Get", fmt.Errorf("%w: %s", rterr.ErrSuiteNotFound, id))
		}
		return nil, rterr.NewInternalError("testkit.Get", err)
	}
	return suite, nil
}

// RunSuite executes every case of the suite sequentially and returns the
// aggregated results.
//
// The suite transitions to running for the duration of the call and ends
// completed when no case failed or errored, failed otherwise. Disabled
// cases are skipped with zero execution time and excluded from the
// passed/failed tallies.
func (r *Runner) RunSuite(ctx context.Context, suiteID string) (*types.Results, error) {
	const op = "testkit.RunSuite"

	r.mu.Lock()
	if r.running[suiteID] {
		r.mu.Unlock()
		return nil, rterr.NewStateError(op, fmt.Errorf("%w: %s", rterr.ErrSuiteRunning, suiteID))
	}
	r.running[suiteID] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.running, suiteID)
		r.mu.Unlock()
	}()

	suite, err := r.Get(ctx, suiteID)
	if err != nil {
		return nil, err
	}
	if suite.Status == types.SuiteRunning {
		return nil, rterr.NewStateError(op, fmt.Errorf("%w: %s", rterr.ErrSuiteRunning, suiteID))
	}

	suite.Status = types.SuiteRunning
	suite.UpdatedAt = time.Now()
	if err := r.store.UpdateSuite(ctx, suite); err != nil {
		return nil, rterr.NewInternalError(op, err)
	}

	r.logger.Info("suite started",
		slog.String("suite_id", suiteID),
		slog.String("name", suite.Name),
		slog.Int("cases", len(suite.Cases)))

	target := Target{Type: suite.TargetType, ID: suite.TargetID}
	results := &types.Results{Cases: make([]types.CaseResult, 0, len(suite.Cases))}
	suiteStart := time.Now()

	for _, c := range suite.Cases {
		result := r.runCase(ctx, target, c)
		results.Total++
		switch result.Status {
		case types.CasePassed:
			results.Passed++
		case types.CaseFailed:
			results.Failed++
		case types.CaseSkipped:
			results.Skipped++
		}
		results.Cases = append(results.Cases, result)
	}
	results.TotalTime = time.Since(suiteStart)

	if results.Failed == 0 && results.Errored() == 0 {
		suite.Status = types.SuiteCompleted
	} else {
		suite.Status = types.SuiteFailed
	}
	now := time.Now()
	suite.LastRun = &now
	suite.Results = results
	suite.UpdatedAt = now
	if err := r.store.UpdateSuite(ctx, suite); err != nil {
		return nil, rterr.NewInternalError(op, err)
	}

	eventType := events.SuiteCompleted
	if suite.Status == types.SuiteFailed {
		eventType = events.SuiteFailed
	}
	r.emitter.Emit(events.New(eventType, map[string]any{
		"suite_id": suiteID,
		"total":    results.Total,
		"passed":   results.Passed,
		"failed":   results.Failed,
		"skipped":  results.Skipped,
		"errored":  results.Errored(),
	}))
	r.logger.Info("suite finished",
		slog.String("suite_id", suiteID),
		slog.String("status", string(suite.Status)),
		slog.Int("passed", results.Passed),
		slog.Int("failed", results.Failed),
		slog.Int("skipped", results.Skipped))

	return results, nil
}

// runCase executes one case and classifies the outcome. Teardown runs
// unconditionally once the case is admitted, even after a setup error or an
// output mismatch, so targets are never left half-configured.
func (r *Runner) runCase(ctx context.Context, target Target, c types.Case) types.CaseResult {
	result := types.CaseResult{CaseID: c.ID, Name: c.Name}

	if !c.Enabled {
		result.Status = types.CaseSkipped
		return result
	}

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
	}()

	var caseErr error

	if c.Setup != "" {
		caseErr = r.executor.Setup(ctx, c.Setup, c.Input)
	}

	var actual any
	executed := false
	if caseErr == nil {
		actual, caseErr = r.execute(ctx, target, c)
		executed = caseErr == nil
		if executed {
			result.Actual = actual
		}
	}

	if c.Teardown != "" {
		if err := r.executor.Teardown(ctx, c.Teardown, c.Input); err != nil && caseErr == nil {
			caseErr = err
		}
	}

	switch {
	case caseErr != nil:
		result.Status = types.CaseError
		result.Error = caseErr.Error()
	case !reflect.DeepEqual(actual, c.Expected):
		result.Status = types.CaseFailed
		result.Error = fmt.Sprintf("output mismatch: got %v, want %v", actual, c.Expected)
	default:
		result.Status = types.CasePassed
	}
	return result
}

// execute dispatches the case by category and enforces its timeout. The
// execution itself runs in a goroutine; when the deadline expires the case
// is classified as error without waiting for the stuck execution.
func (r *Runner) execute(ctx context.Context, target Target, c types.Case) (any, error) {
	strat, ok := strategies[c.Type]
	if !ok {
		return nil, fmt.Errorf("unknown test case type: %s", c.Type)
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = strat.defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		actual any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		if strat.warmup {
			if _, err := r.executor.Execute(ctx, target, c); err != nil {
				done <- outcome{err: err}
				return
			}
		}
		actual, err := r.executor.Execute(ctx, target, c)
		done <- outcome{actual: actual, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, rterr.NewTimeoutError("testkit.execute",
			fmt.Errorf("case %s exceeded timeout %s", c.Name, timeout))
	case out := <-done:
		return out.actual, out.err
	}
}
