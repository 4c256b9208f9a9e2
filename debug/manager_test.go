package debug

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexa-ai/runtime/rterr"
	"github.com/plexa-ai/runtime/store"
	"github.com/plexa-ai/runtime/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(store.NewMemory())
	require.NoError(t, err)
	return m
}

func TestCreateSession(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateSession(ctx, "agent-1")
	require.NoError(t, err)

	session, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.SessionActive, session.Status)
	assert.Equal(t, types.SessionTypeAgent, session.Type)
	assert.Empty(t, session.Breakpoints)
	assert.Empty(t, session.Variables)
	assert.Empty(t, session.CallStack)
	assert.Empty(t, session.Logs)
}

func TestCreateSessionForPlugin(t *testing.T) {
	m := newTestManager(t)

	id, err := m.CreateSession(context.Background(), "agent-1", ForPlugin("plugin-7"))
	require.NoError(t, err)

	session, err := m.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.SessionTypePlugin, session.Type)
	assert.Equal(t, "plugin-7", session.PluginID)
}

func TestAddBreakpoint(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateSession(ctx, "agent-1")
	require.NoError(t, err)

	bpID, err := m.AddBreakpoint(ctx, id, "task.go:42", "")
	require.NoError(t, err)
	require.NotEmpty(t, bpID)

	session, err := m.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, session.Breakpoints, 1)
	assert.True(t, session.Breakpoints[0].Enabled)
	assert.Equal(t, "task.go:42", session.Breakpoints[0].Location)
}

func TestAddBreakpointRejectsInvalidCondition(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateSession(ctx, "agent-1")
	require.NoError(t, err)

	_, err = m.AddBreakpoint(ctx, id, "task.go:42", "vars.step >")
	require.Error(t, err)

	_, err = m.AddBreakpoint(ctx, id, "task.go:42", `"not a boolean"`)
	require.Error(t, err)

	session, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, session.Breakpoints)
}

func TestEvaluateBreakpoint(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateSession(ctx, "agent-1")
	require.NoError(t, err)
	bpID, err := m.AddBreakpoint(ctx, id, "task.go:42", "vars.step > 1")
	require.NoError(t, err)

	require.NoError(t, m.UpdateVariables(ctx, id, map[string]any{"step": 1}))
	hit, err := m.EvaluateBreakpoint(ctx, id, bpID)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, m.UpdateVariables(ctx, id, map[string]any{"step": 2}))
	hit, err = m.EvaluateBreakpoint(ctx, id, bpID)
	require.NoError(t, err)
	assert.True(t, hit)

	// A breakpoint without a condition always fires.
	plain, err := m.AddBreakpoint(ctx, id, "task.go:50", "")
	require.NoError(t, err)
	hit, err = m.EvaluateBreakpoint(ctx, id, plain)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestLogRingBuffer(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateSession(ctx, "agent-1")
	require.NoError(t, err)

	for i := 0; i < types.MaxSessionLogs+1; i++ {
		require.NoError(t, m.Log(ctx, id, "info", fmt.Sprintf("entry %d", i), nil))
	}

	session, err := m.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, session.Logs, types.MaxSessionLogs)
	// The oldest entry was evicted.
	assert.Equal(t, "entry 1", session.Logs[0].Message)
	assert.Equal(t, fmt.Sprintf("entry %d", types.MaxSessionLogs), session.Logs[len(session.Logs)-1].Message)
}

func TestConcurrentLogAppends(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateSession(ctx, "agent-1")
	require.NoError(t, err)

	const writers = 10
	const perWriter = 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = m.Log(ctx, id, "debug", fmt.Sprintf("w%d-%d", w, i), nil)
			}
		}(w)
	}
	wg.Wait()

	session, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, session.Logs, writers*perWriter)
}

func TestUpdateVariablesShallowMerge(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateSession(ctx, "agent-1")
	require.NoError(t, err)

	require.NoError(t, m.UpdateVariables(ctx, id, map[string]any{"a": 1, "b": "old"}))
	require.NoError(t, m.UpdateVariables(ctx, id, map[string]any{"b": "new", "c": true}))

	session, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": "new", "c": true}, session.Variables)
}

func TestCallStack(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateSession(ctx, "agent-1")
	require.NoError(t, err)

	require.NoError(t, m.PushFrame(ctx, id, types.Frame{Function: "main"}))
	require.NoError(t, m.PushFrame(ctx, id, types.Frame{Function: "handleTask"}))
	require.NoError(t, m.PopFrame(ctx, id))

	session, err := m.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, session.CallStack, 1)
	assert.Equal(t, "main", session.CallStack[0].Function)

	// Popping an empty stack is a no-op.
	require.NoError(t, m.PopFrame(ctx, id))
	require.NoError(t, m.PopFrame(ctx, id))
}

func TestStateMachine(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateSession(ctx, "agent-1")
	require.NoError(t, err)

	require.NoError(t, m.Pause(ctx, id))
	session, _ := m.Get(ctx, id)
	assert.Equal(t, types.SessionPaused, session.Status)

	require.NoError(t, m.Resume(ctx, id))
	session, _ = m.Get(ctx, id)
	assert.Equal(t, types.SessionActive, session.Status)

	require.NoError(t, m.Complete(ctx, id))
	session, _ = m.Get(ctx, id)
	assert.Equal(t, types.SessionCompleted, session.Status)
}

func TestCompletedSessionRejectsMutation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateSession(ctx, "agent-1")
	require.NoError(t, err)
	require.NoError(t, m.Complete(ctx, id))

	for _, err := range []error{
		m.Log(ctx, id, "info", "too late", nil),
		m.UpdateVariables(ctx, id, map[string]any{"a": 1}),
		m.PushFrame(ctx, id, types.Frame{Function: "f"}),
		m.Pause(ctx, id),
		m.Resume(ctx, id),
	} {
		require.Error(t, err)
		assert.True(t, errors.Is(err, rterr.ErrSessionCompleted))
	}

	_, err = m.AddBreakpoint(ctx, id, "task.go:1", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rterr.ErrSessionCompleted))
}

func TestUnknownSession(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rterr.ErrSessionNotFound))
}
