package testkit

import (
	"time"

	"github.com/google/uuid"

	"github.com/plexa-ai/runtime/types"
)

// NewSuite creates a draft suite targeting the given agent, plugin, or
// workflow.
func NewSuite(name string, targetType types.SessionType, targetID string, cases ...types.Case) *types.Suite {
	now := time.Now()
	return &types.Suite{
		ID:         uuid.NewString(),
		Name:       name,
		TargetType: targetType,
		TargetID:   targetID,
		Cases:      cases,
		Status:     types.SuiteDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewCase creates an enabled case of the given category.
func NewCase(name string, caseType types.CaseType, input map[string]any, expected any) types.Case {
	return types.Case{
		ID:       uuid.NewString(),
		Name:     name,
		Type:     caseType,
		Input:    input,
		Expected: expected,
		Enabled:  true,
	}
}

// MarkReady transitions a draft suite to ready. Other states are left
// untouched.
func MarkReady(suite *types.Suite) {
	if suite.Status == types.SuiteDraft {
		suite.Status = types.SuiteReady
		suite.UpdatedAt = time.Now()
	}
}
