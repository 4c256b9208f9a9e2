package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/plexa-ai/runtime/types"
)

// HookHandler is a function that handles one hook invocation. It receives
// the shared chain context and the invoking instance's configuration and
// returns the context to pass to the next instance in the chain.
type HookHandler func(ctx context.Context, hookCtx, config map[string]any) (map[string]any, error)

// InitFunc is called to initialize the plugin with configuration.
type InitFunc func(ctx context.Context, config map[string]any) error

// ShutdownFunc is called to gracefully shut down the plugin.
type ShutdownFunc func(ctx context.Context) error

// HealthFunc is called to report the plugin's health.
type HealthFunc func(ctx context.Context) types.HealthStatus

// Config holds the configuration for building an in-process plugin.
// Use NewConfig to create a configuration, the setter methods to populate
// it, and New to build the plugin.
type Config struct {
	name         string
	version      string
	description  string
	hooks        map[string]HookHandler
	hookOrder    []string
	initFunc     InitFunc
	shutdownFunc ShutdownFunc
	healthFunc   HealthFunc
}

// NewConfig creates a new plugin configuration with default no-op lifecycle
// functions.
func NewConfig() *Config {
	return &Config{
		hooks: make(map[string]HookHandler),
		initFunc: func(ctx context.Context, config map[string]any) error {
			return nil
		},
		shutdownFunc: func(ctx context.Context) error {
			return nil
		},
	}
}

// SetName sets the plugin name.
func (c *Config) SetName(name string) {
	c.name = name
}

// SetVersion sets the plugin version.
func (c *Config) SetVersion(version string) {
	c.version = version
}

// SetDescription sets the plugin description.
func (c *Config) SetDescription(desc string) {
	c.description = desc
}

// AddHook registers a handler for the named hook. Registering the same hook
// twice replaces the previous handler.
func (c *Config) AddHook(name string, handler HookHandler) {
	if _, exists := c.hooks[name]; !exists {
		c.hookOrder = append(c.hookOrder, name)
	}
	c.hooks[name] = handler
}

// SetInitFunc sets the initialization function.
func (c *Config) SetInitFunc(fn InitFunc) {
	c.initFunc = fn
}

// SetShutdownFunc sets the shutdown function.
func (c *Config) SetShutdownFunc(fn ShutdownFunc) {
	c.shutdownFunc = fn
}

// SetHealthFunc sets the health check function.
func (c *Config) SetHealthFunc(fn HealthFunc) {
	c.healthFunc = fn
}

// New creates a Plugin from the configuration.
// Returns an error if the configuration is invalid.
func New(cfg *Config) (Plugin, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.name == "" {
		return nil, fmt.Errorf("plugin name is required")
	}
	if cfg.version == "" {
		return nil, fmt.Errorf("plugin version is required")
	}
	for name, handler := range cfg.hooks {
		if name == "" {
			return nil, fmt.Errorf("hook name cannot be empty")
		}
		if handler == nil {
			return nil, fmt.Errorf("hook %s: handler cannot be nil", name)
		}
	}

	return &builtPlugin{
		name:         cfg.name,
		version:      cfg.version,
		description:  cfg.description,
		hooks:        cfg.hooks,
		hookOrder:    append([]string(nil), cfg.hookOrder...),
		initFunc:     cfg.initFunc,
		shutdownFunc: cfg.shutdownFunc,
		healthFunc:   cfg.healthFunc,
	}, nil
}

// builtPlugin is the in-process implementation of the Plugin interface.
type builtPlugin struct {
	name         string
	version      string
	description  string
	hooks        map[string]HookHandler
	hookOrder    []string
	initFunc     InitFunc
	shutdownFunc ShutdownFunc
	healthFunc   HealthFunc
	initialized  bool
	mu           sync.RWMutex
}

func (p *builtPlugin) Name() string {
	return p.name
}

func (p *builtPlugin) Version() string {
	return p.version
}

func (p *builtPlugin) Description() string {
	return p.description
}

// Hooks returns hook names in registration order.
func (p *builtPlugin) Hooks() []string {
	return append([]string(nil), p.hookOrder...)
}

// ExecuteHook invokes the registered handler for the named hook. Hooks the
// plugin does not handle pass the context through unchanged.
func (p *builtPlugin) ExecuteHook(ctx context.Context, hook string, hookCtx, config map[string]any) (map[string]any, error) {
	p.mu.RLock()
	handler, exists := p.hooks[hook]
	p.mu.RUnlock()

	if !exists {
		return hookCtx, nil
	}
	return handler(ctx, hookCtx, config)
}

// Initialize prepares the plugin for use.
func (p *builtPlugin) Initialize(ctx context.Context, config map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return fmt.Errorf("plugin already initialized")
	}
	if err := p.initFunc(ctx, config); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	p.initialized = true
	return nil
}

// Shutdown gracefully shuts down the plugin.
func (p *builtPlugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return fmt.Errorf("plugin not initialized")
	}
	if err := p.shutdownFunc(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	p.initialized = false
	return nil
}

// Health returns the plugin's health status.
func (p *builtPlugin) Health(ctx context.Context) types.HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.initialized {
		return types.NewUnhealthyStatus("plugin not initialized", nil)
	}
	if p.healthFunc != nil {
		return p.healthFunc(ctx)
	}
	return types.NewHealthyStatus("plugin operational")
}
