package types

import "time"

// SessionType identifies what a debug session is inspecting.
type SessionType string

const (
	SessionTypeAgent    SessionType = "agent"
	SessionTypePlugin   SessionType = "plugin"
	SessionTypeWorkflow SessionType = "workflow"
)

// SessionStatus is the lifecycle state of a debug session.
// Active and paused are interchangeable; completed is terminal.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
)

// MaxSessionLogs bounds the per-session log buffer. Appending beyond the
// bound evicts the oldest entries so exactly MaxSessionLogs remain.
const MaxSessionLogs = 1000

// Breakpoint is a named pause location inside a debugged target, with an
// optional condition expression evaluated against the session's variables.
type Breakpoint struct {
	ID        string `json:"id"`
	Location  string `json:"location"`
	Condition string `json:"condition,omitempty"`
	Enabled   bool   `json:"enabled"`
}

// Frame is one entry of a debug session's call stack.
type Frame struct {
	Function string         `json:"function"`
	Location string         `json:"location,omitempty"`
	Locals   map[string]any `json:"locals,omitempty"`
}

// LogEntry is a single timestamped debug log record.
type LogEntry struct {
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Session is the stateful record of an interactive debugging session for a
// running agent, plugin, or workflow. Once Status reaches SessionCompleted
// no further mutation is permitted.
type Session struct {
	ID          string         `json:"id"`
	AgentID     string         `json:"agent_id"`
	PluginID    string         `json:"plugin_id,omitempty"`
	Type        SessionType    `json:"type"`
	Status      SessionStatus  `json:"status"`
	Breakpoints []Breakpoint   `json:"breakpoints"`
	Variables   map[string]any `json:"variables"`
	CallStack   []Frame        `json:"call_stack"`
	Logs        []LogEntry     `json:"logs"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Mutable reports whether the session still accepts mutations.
func (s *Session) Mutable() bool {
	return s.Status != SessionCompleted
}
