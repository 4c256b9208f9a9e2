package types

import (
	"fmt"
	"time"

	"github.com/plexa-ai/runtime/schema"
)

// Category classifies a plugin by the kind of capability it provides.
type Category string

// Known plugin categories.
const (
	CategoryUtility      Category = "utility"
	CategoryIntegration  Category = "integration"
	CategoryAIModel      Category = "ai-model"
	CategoryDataSource   Category = "data-source"
	CategoryNotification Category = "notification"
	CategorySecurity     Category = "security"
	CategoryMonitoring   Category = "monitoring"
)

// IsValid reports whether the category is one of the known values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryUtility, CategoryIntegration, CategoryAIModel,
		CategoryDataSource, CategoryNotification, CategorySecurity,
		CategoryMonitoring:
		return true
	}
	return false
}

// PluginStatus represents the lifecycle state of an installed plugin.
type PluginStatus string

const (
	// PluginInactive is the state of a freshly installed plugin. Inactive
	// plugins cannot be loaded and own no enabled instances.
	PluginInactive PluginStatus = "inactive"

	// PluginActive marks a plugin as eligible for loading. Only active
	// plugins may be loaded and only loaded plugins may receive hook calls.
	PluginActive PluginStatus = "active"

	// PluginError marks a plugin whose load attempt failed. The state is
	// observable and recoverable; re-enabling resets it.
	PluginError PluginStatus = "error"
)

// Permissions declares the capability flags a plugin requests at install
// time. Every flag must be explicitly declared; the registry rejects
// descriptors with missing permission declarations.
type Permissions struct {
	FileSystem bool `json:"file_system" yaml:"file_system"`
	Network    bool `json:"network" yaml:"network"`
	Database   bool `json:"database" yaml:"database"`
	Environment bool `json:"environment" yaml:"environment"`
	AgentComm  bool `json:"agent_communication" yaml:"agent_communication"`
}

// HookSubscription declares a plugin's interest in a named hook, with the
// priority its instances are inserted at. Priority 0 means "use the default"
// (50); lower priorities run earlier in the chain.
type HookSubscription struct {
	Name     string `json:"name" yaml:"name"`
	Priority int    `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Plugin is the stored descriptor of an installable extension unit.
//
// Invariant: a plugin can only be loaded while Status is PluginActive, and
// disabling or uninstalling it must first disable all of its instances.
type Plugin struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Version      string             `json:"version"`
	Description  string             `json:"description,omitempty"`
	Author       string             `json:"author,omitempty"`
	Category     Category           `json:"category"`
	Tags         []string           `json:"tags,omitempty"`

	// Main is the loader reference: a name understood by the local loader,
	// or a host:port target for the gRPC loader.
	Main string `json:"main"`

	Dependencies []string           `json:"dependencies,omitempty"`
	Permissions  *Permissions       `json:"permissions"`
	ConfigSchema schema.JSON        `json:"config_schema,omitempty"`
	Hooks        []HookSubscription `json:"hooks,omitempty"`
	Status       PluginStatus       `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Validate checks the descriptor fields required at install time.
func (p *Plugin) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("plugin name is required")
	}
	if p.Version == "" {
		return fmt.Errorf("plugin version is required")
	}
	if p.Main == "" {
		return fmt.Errorf("plugin main reference is required")
	}
	if p.Permissions == nil {
		return fmt.Errorf("plugin permissions must be declared")
	}
	if p.Category != "" && !p.Category.IsValid() {
		return fmt.Errorf("unknown plugin category: %s", p.Category)
	}
	for _, h := range p.Hooks {
		if h.Name == "" {
			return fmt.Errorf("hook subscription with empty name")
		}
		if h.Priority < 0 {
			return fmt.Errorf("hook %s: priority must not be negative", h.Name)
		}
	}
	return nil
}

// HookNames returns the names of all hooks the plugin subscribes to.
func (p *Plugin) HookNames() []string {
	names := make([]string, 0, len(p.Hooks))
	for _, h := range p.Hooks {
		names = append(names, h.Name)
	}
	return names
}
