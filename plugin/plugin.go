package plugin

import (
	"context"

	"github.com/plexa-ai/runtime/types"
)

// Plugin is the capability interface of a loaded plugin.
//
// A plugin extends the agent platform by subscribing to named hooks; the
// dispatcher invokes ExecuteHook once per enabled instance, threading the
// shared chain context through each call.
type Plugin interface {
	// Name returns the unique identifier of the plugin.
	Name() string

	// Version returns the semantic version of the plugin.
	Version() string

	// Description returns a human-readable description of the plugin.
	Description() string

	// Hooks returns the hook names this plugin implements handlers for.
	Hooks() []string

	// ExecuteHook invokes the plugin's handler for the named hook.
	//
	// hookCtx is the shared, mutable chain context; config is the invoking
	// instance's validated configuration. The returned map replaces hookCtx
	// for the rest of the chain. Implementations without a handler for the
	// hook must return hookCtx unchanged.
	ExecuteHook(ctx context.Context, hook string, hookCtx, config map[string]any) (map[string]any, error)

	// Initialize prepares the plugin for use. Called once after loading.
	Initialize(ctx context.Context, config map[string]any) error

	// Shutdown releases the plugin's resources. Called before unload.
	Shutdown(ctx context.Context) error

	// Health returns the current health status of the plugin.
	Health(ctx context.Context) types.HealthStatus
}
