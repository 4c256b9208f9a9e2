package types

import "time"

// CaseType selects the execution strategy for a test case.
type CaseType string

const (
	CaseUnit        CaseType = "unit"
	CaseIntegration CaseType = "integration"
	CasePerformance CaseType = "performance"
	CaseSecurity    CaseType = "security"
)

// SuiteStatus is the lifecycle state of a test suite.
type SuiteStatus string

const (
	SuiteDraft     SuiteStatus = "draft"
	SuiteReady     SuiteStatus = "ready"
	SuiteRunning   SuiteStatus = "running"
	SuiteCompleted SuiteStatus = "completed"
	SuiteFailed    SuiteStatus = "failed"
)

// CaseStatus classifies the outcome of a single test case run.
//
// CaseError (an exception during setup, execution, or teardown) and
// CaseFailed (clean execution, wrong output) are distinct outcomes and are
// never collapsed: they call for different remediation.
type CaseStatus string

const (
	CasePassed  CaseStatus = "passed"
	CaseFailed  CaseStatus = "failed"
	CaseError   CaseStatus = "error"
	CaseSkipped CaseStatus = "skipped"
)

// Case is a single test case inside a suite.
type Case struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     CaseType       `json:"type"`
	Input    map[string]any `json:"input,omitempty"`
	Expected any            `json:"expected,omitempty"`

	// Setup and Teardown are opaque code references resolved by the
	// executor supplied to the runner. Empty means no setup/teardown.
	Setup    string `json:"setup,omitempty"`
	Teardown string `json:"teardown,omitempty"`

	// Timeout bounds the execution phase. Zero means the runner default.
	Timeout time.Duration `json:"timeout,omitempty"`

	Enabled bool `json:"enabled"`
}

// CaseResult is the recorded outcome of one case run.
type CaseResult struct {
	CaseID   string        `json:"case_id"`
	Name     string        `json:"name"`
	Status   CaseStatus    `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Actual   any           `json:"actual,omitempty"`
}

// Results aggregates the outcomes of one suite run. Skipped cases count
// toward Total but are excluded from the passed/failed tallies.
type Results struct {
	Total     int           `json:"total"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	TotalTime time.Duration `json:"total_time"`
	Cases     []CaseResult  `json:"cases"`
}

// Errored counts cases that ended in CaseError.
func (r Results) Errored() int {
	n := 0
	for _, c := range r.Cases {
		if c.Status == CaseError {
			n++
		}
	}
	return n
}

// Suite is an ordered collection of test cases targeting an agent, plugin,
// or workflow.
type Suite struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	TargetType SessionType `json:"target_type"`
	TargetID   string      `json:"target_id"`
	Cases      []Case      `json:"cases"`
	Status     SuiteStatus `json:"status"`
	LastRun    *time.Time  `json:"last_run,omitempty"`
	Results    *Results    `json:"results,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
