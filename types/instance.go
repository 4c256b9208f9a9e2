package types

import "time"

// InstanceStatus represents the enablement state of a plugin instance.
type InstanceStatus string

const (
	// InstanceEnabled means the instance participates in hook dispatch.
	// An instance may only be enabled while its plugin is active.
	InstanceEnabled InstanceStatus = "enabled"

	// InstanceDisabled means the instance is registered but excluded from
	// every hook chain.
	InstanceDisabled InstanceStatus = "disabled"

	// InstanceError marks an instance that was disabled by the runtime
	// after repeated execution failures.
	InstanceError InstanceStatus = "error"
)

// Metrics holds per-instance execution statistics. The dispatcher updates
// the whole record after every hook call; partial in-place mutation is not
// allowed so interleaved updates never produce a torn record.
type Metrics struct {
	ExecutionCount int64         `json:"execution_count"`
	TotalTime      time.Duration `json:"total_time"`
	AverageTime    time.Duration `json:"average_time"`
	ErrorCount     int64         `json:"error_count"`
	LastExecution  time.Time     `json:"last_execution"`
}

// Record returns a copy of the metrics with one more execution folded in.
// The average is recomputed from the accumulated total so the record stays
// internally consistent regardless of update ordering.
func (m Metrics) Record(d time.Duration, failed bool) Metrics {
	next := m
	next.ExecutionCount++
	next.TotalTime += d
	next.AverageTime = next.TotalTime / time.Duration(next.ExecutionCount)
	next.LastExecution = time.Now()
	if failed {
		next.ErrorCount++
	}
	return next
}

// Instance binds an installed plugin to an owner (typically an agent) with a
// validated configuration and its own enablement lifecycle.
//
// Invariant: an instance may only be enabled while its plugin is active.
type Instance struct {
	ID        string         `json:"id"`
	PluginID  string         `json:"plugin_id"`
	OwnerID   string         `json:"owner_id"`
	Config    map[string]any `json:"config,omitempty"`

	// Hooks are the effective hook subscriptions of this instance: the
	// owning plugin's declarations, with any per-instance priority
	// overrides applied at creation time.
	Hooks []HookSubscription `json:"hooks,omitempty"`

	Status    InstanceStatus `json:"status"`
	Metrics   Metrics        `json:"metrics"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Enabled reports whether the instance participates in hook dispatch.
func (i *Instance) Enabled() bool {
	return i.Status == InstanceEnabled
}
