package debug

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/uuid"

	"github.com/plexa-ai/runtime/events"
	"github.com/plexa-ai/runtime/rterr"
	"github.com/plexa-ai/runtime/store"
	"github.com/plexa-ai/runtime/types"
)

// SessionOption configures a new session.
type SessionOption func(*types.Session)

// ForPlugin scopes the session to a specific plugin.
func ForPlugin(pluginID string) SessionOption {
	return func(s *types.Session) {
		s.PluginID = pluginID
		s.Type = types.SessionTypePlugin
	}
}

// OfType sets the session type. Default: agent.
func OfType(t types.SessionType) SessionOption {
	return func(s *types.Session) { s.Type = t }
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithEmitter sets the event emitter. Default: events.Nop.
func WithEmitter(emitter events.Emitter) Option {
	return func(m *Manager) { m.emitter = emitter }
}

// Manager owns debug session state. Breakpoint conditions are CEL
// expressions over the session's variable map, exposed to the expression as
// `vars` (for example `vars.step > 1`); they are compiled once when the
// breakpoint is added and evaluated on demand.
//
// Thread-safety: all methods are safe for concurrent use; per-session
// mutations are serialized by the manager lock.
type Manager struct {
	store   store.SessionStore
	logger  *slog.Logger
	emitter events.Emitter
	env     *cel.Env

	mu       sync.Mutex
	sessions map[string]*types.Session
	programs map[string]cel.Program
}

// NewManager creates a session manager over the given store.
func NewManager(st store.SessionStore, opts ...Option) (*Manager, error) {
	env, err := cel.NewEnv(
		cel.Variable("vars", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	m := &Manager{
		store:    st,
		logger:   slog.Default(),
		emitter:  events.Nop{},
		env:      env,
		sessions: make(map[string]*types.Session),
		programs: make(map[string]cel.Program),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CreateSession starts a new active session for the agent with empty
// breakpoints, variables, call stack, and logs.
func (m *Manager) CreateSession(ctx context.Context, agentID string, opts ...SessionOption) (string, error) {
	const op = "debug.CreateSession"

	if agentID == "" {
		return "", rterr.NewValidationError(op, fmt.Errorf("agent id is required"))
	}

	now := time.Now()
	session := &types.Session{
		ID:          uuid.NewString(),
		AgentID:     agentID,
		Type:        types.SessionTypeAgent,
		Status:      types.SessionActive,
		Breakpoints: []types.Breakpoint{},
		Variables:   make(map[string]any),
		CallStack:   []types.Frame{},
		Logs:        []types.LogEntry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, opt := range opts {
		opt(session)
	}

	if err := m.store.CreateSession(ctx, session); err != nil {
		return "", rterr.NewInternalError(op, err)
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	m.emitter.Emit(events.New(events.SessionCreated, map[string]any{
		"session_id": session.ID,
		"agent_id":   agentID,
		"type":       string(session.Type),
	}))
	m.logger.Info("debug session created",
		slog.String("session_id", session.ID),
		slog.String("agent_id", agentID))
	return session.ID, nil
}

// AddBreakpoint appends an enabled breakpoint to the session. A non-empty
// condition is compiled immediately; a condition that does not compile to a
// boolean CEL expression is a validation error and nothing is added.
func (m *Manager) AddBreakpoint(ctx context.Context, sessionID, location, condition string) (string, error) {
	const op = "debug.AddBreakpoint"

	if location == "" {
		return "", rterr.NewValidationError(op, fmt.Errorf("breakpoint location is required"))
	}

	var program cel.Program
	if condition != "" {
		ast, issues := m.env.Compile(condition)
		if issues != nil && issues.Err() != nil {
			return "", rterr.NewValidationError(op,
				fmt.Errorf("invalid breakpoint condition %q: %w", condition, issues.Err()))
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return "", rterr.NewValidationError(op,
				fmt.Errorf("breakpoint condition %q must evaluate to a boolean", condition))
		}
		var err error
		program, err = m.env.Program(ast)
		if err != nil {
			return "", rterr.NewValidationError(op,
				fmt.Errorf("invalid breakpoint condition %q: %w", condition, err))
		}
	}

	bp := types.Breakpoint{
		ID:        uuid.NewString(),
		Location:  location,
		Condition: condition,
		Enabled:   true,
	}

	err := m.mutate(ctx, op, sessionID, func(s *types.Session) {
		s.Breakpoints = append(s.Breakpoints, bp)
	})
	if err != nil {
		return "", err
	}

	if program != nil {
		m.mu.Lock()
		m.programs[bp.ID] = program
		m.mu.Unlock()
	}

	m.emitter.Emit(events.New(events.BreakpointAdded, map[string]any{
		"session_id":    sessionID,
		"breakpoint_id": bp.ID,
		"location":      location,
	}))
	return bp.ID, nil
}

// EvaluateBreakpoint reports whether the breakpoint should pause execution
// given the session's current variables. A disabled breakpoint never fires;
// a breakpoint without a condition always fires.
func (m *Manager) EvaluateBreakpoint(ctx context.Context, sessionID, breakpointID string) (bool, error) {
	const op = "debug.EvaluateBreakpoint"

	session, err := m.get(ctx, op, sessionID)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	var bp *types.Breakpoint
	for i := range session.Breakpoints {
		if session.Breakpoints[i].ID == breakpointID {
			bp = &session.Breakpoints[i]
			break
		}
	}
	if bp == nil {
		m.mu.Unlock()
		return false, rterr.NewNotFoundError(op, fmt.Errorf("breakpoint %s not found in session %s", breakpointID, sessionID))
	}
	enabled := bp.Enabled
	condition := bp.Condition
	program := m.programs[breakpointID]
	vars := make(map[string]any, len(session.Variables))
	for k, v := range session.Variables {
		vars[k] = v
	}
	m.mu.Unlock()

	if !enabled {
		return false, nil
	}
	if condition == "" {
		return true, nil
	}
	if program == nil {
		// Condition present but no compiled program: session restored from
		// the store. Compile lazily.
		ast, issues := m.env.Compile(condition)
		if issues != nil && issues.Err() != nil {
			return false, rterr.NewExecutionError(op, issues.Err())
		}
		program, err = m.env.Program(ast)
		if err != nil {
			return false, rterr.NewExecutionError(op, err)
		}
		m.mu.Lock()
		m.programs[breakpointID] = program
		m.mu.Unlock()
	}

	out, _, err := program.Eval(map[string]any{"vars": vars})
	if err != nil {
		return false, rterr.NewExecutionError(op, fmt.Errorf("breakpoint condition evaluation: %w", err))
	}
	hit, ok := out.Value().(bool)
	if !ok {
		return false, rterr.NewExecutionError(op, fmt.Errorf("breakpoint condition returned %T, want bool", out.Value()))
	}
	return hit, nil
}

// Log appends a timestamped entry to the session's bounded log buffer.
// When the buffer exceeds its capacity the oldest entries are evicted so
// exactly types.MaxSessionLogs remain.
func (m *Manager) Log(ctx context.Context, sessionID, level, message string, logCtx map[string]any) error {
	const op = "debug.Log"

	entry := types.LogEntry{
		Level:     level,
		Message:   message,
		Context:   logCtx,
		Timestamp: time.Now(),
	}

	err := m.mutate(ctx, op, sessionID, func(s *types.Session) {
		s.Logs = append(s.Logs, entry)
		if excess := len(s.Logs) - types.MaxSessionLogs; excess > 0 {
			s.Logs = append([]types.LogEntry(nil), s.Logs[excess:]...)
		}
	})
	if err != nil {
		return err
	}

	m.emitter.Emit(events.New(events.LogAppended, map[string]any{
		"session_id": sessionID,
		"level":      level,
	}))
	return nil
}

// UpdateVariables shallow-merges patch into the session's variable map:
// new keys are added, existing keys overwritten, untouched keys preserved.
func (m *Manager) UpdateVariables(ctx context.Context, sessionID string, patch map[string]any) error {
	const op = "debug.UpdateVariables"

	err := m.mutate(ctx, op, sessionID, func(s *types.Session) {
		if s.Variables == nil {
			s.Variables = make(map[string]any, len(patch))
		}
		for k, v := range patch {
			s.Variables[k] = v
		}
	})
	if err != nil {
		return err
	}

	m.emitter.Emit(events.New(events.VariablesUpdated, map[string]any{
		"session_id": sessionID,
	}))
	return nil
}

// PushFrame pushes a call-stack frame onto the session.
func (m *Manager) PushFrame(ctx context.Context, sessionID string, frame types.Frame) error {
	return m.mutate(ctx, "debug.PushFrame", sessionID, func(s *types.Session) {
		s.CallStack = append(s.CallStack, frame)
	})
}

// PopFrame pops the most recent call-stack frame. Popping an empty stack is
// a no-op.
func (m *Manager) PopFrame(ctx context.Context, sessionID string) error {
	return m.mutate(ctx, "debug.PopFrame", sessionID, func(s *types.Session) {
		if len(s.CallStack) > 0 {
			s.CallStack = s.CallStack[:len(s.CallStack)-1]
		}
	})
}

// Pause suspends an active session. Pausing a paused session is a no-op.
func (m *Manager) Pause(ctx context.Context, sessionID string) error {
	return m.mutate(ctx, "debug.Pause", sessionID, func(s *types.Session) {
		s.Status = types.SessionPaused
	})
}

// Resume reactivates a paused session. Resuming an active session is a
// no-op.
func (m *Manager) Resume(ctx context.Context, sessionID string) error {
	return m.mutate(ctx, "debug.Resume", sessionID, func(s *types.Session) {
		s.Status = types.SessionActive
	})
}

// Complete moves the session to its terminal state. Every subsequent
// mutation fails with ErrSessionCompleted.
func (m *Manager) Complete(ctx context.Context, sessionID string) error {
	err := m.mutate(ctx, "debug.Complete", sessionID, func(s *types.Session) {
		s.Status = types.SessionCompleted
	})
	if err != nil {
		return err
	}
	m.logger.Info("debug session completed", slog.String("session_id", sessionID))
	return nil
}

// Get returns a copy of the session.
func (m *Manager) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	session, err := m.get(ctx, "debug.Get", sessionID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *session
	cp.Breakpoints = append([]types.Breakpoint(nil), session.Breakpoints...)
	cp.CallStack = append([]types.Frame(nil), session.CallStack...)
	cp.Logs = append([]types.LogEntry(nil), session.Logs...)
	cp.Variables = make(map[string]any, len(session.Variables))
	for k, v := range session.Variables {
		cp.Variables[k] = v
	}
	return &cp, nil
}

// mutate applies fn to the session under the manager lock and persists the
// full record. Mutations of completed sessions are rejected.
func (m *Manager) mutate(ctx context.Context, op, sessionID string, fn func(*types.Session)) error {
	session, err := m.get(ctx, op, sessionID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if !session.Mutable() {
		m.mu.Unlock()
		return rterr.NewStateError(op, fmt.Errorf("%w: %s", rterr.ErrSessionCompleted, sessionID))
	}
	fn(session)
	session.UpdatedAt = time.Now()
	cp := *session
	m.mu.Unlock()

	if err := m.store.UpdateSession(ctx, &cp); err != nil {
		return rterr.NewInternalError(op, err)
	}
	return nil
}

func (m *Manager) get(ctx context.Context, op, sessionID string) (*types.Session, error) {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if ok {
		return session, nil
	}

	stored, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, rterr.NewNotFoundError(op, fmt.Errorf("%w: %s", rterr.ErrSessionNotFound, sessionID))
		}
		return nil, rterr.NewInternalError(op, err)
	}

	m.mu.Lock()
	m.sessions[sessionID] = stored
	m.mu.Unlock()
	return stored, nil
}
