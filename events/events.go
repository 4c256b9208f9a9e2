package events

import "time"

// Type names every observable event the runtime raises.
type Type string

// Observable runtime events.
const (
	PluginLoaded      Type = "plugin.loaded"
	PluginError       Type = "plugin.error"
	PluginEnabled     Type = "plugin.enabled"
	PluginDisabled    Type = "plugin.disabled"
	PluginUninstalled Type = "plugin.uninstalled"

	InstanceCreated  Type = "instance.created"
	InstanceEnabled  Type = "instance.enabled"
	InstanceDisabled Type = "instance.disabled"

	HookError Type = "hook.error"

	SessionCreated   Type = "debug.session.created"
	BreakpointAdded  Type = "debug.breakpoint.added"
	LogAppended      Type = "debug.log.appended"
	VariablesUpdated Type = "debug.variables.updated"

	SuiteCompleted Type = "test.suite.completed"
	SuiteFailed    Type = "test.suite.failed"
)

// Event is one observable occurrence inside the runtime.
type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// New creates an event stamped with the current time.
func New(t Type, payload map[string]any) Event {
	return Event{Type: t, Timestamp: time.Now(), Payload: payload}
}

// Emitter delivers events to external subscribers. Emit must not block the
// caller; implementations buffer, drop, or hand off to a goroutine.
type Emitter interface {
	Emit(event Event)
}

// Nop is an Emitter that discards every event. It is the default when no
// emitter is configured.
type Nop struct{}

// Emit discards the event.
func (Nop) Emit(Event) {}
