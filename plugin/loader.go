package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/plexa-ai/runtime/types"
)

// Loader turns an installed plugin descriptor into a callable Plugin.
//
// The loading mechanism is intentionally outside the runtime's contract:
// a loader may resolve an in-process factory, spawn a subprocess, or dial a
// remote host. The registry only requires that Load either returns a usable
// Plugin or an error; a failed load marks the descriptor status=error.
type Loader interface {
	// Load resolves the descriptor's Main reference into a Plugin.
	Load(ctx context.Context, descriptor *types.Plugin) (Plugin, error)
}

// Factory builds a Plugin for a descriptor. Factories are registered with a
// LocalLoader under the descriptor's Main reference.
type Factory func(ctx context.Context, descriptor *types.Plugin) (Plugin, error)

// LocalLoader serves plugins from an in-process factory table keyed by the
// descriptor's Main reference. It is the loading strategy used when plugin
// code is compiled into the host binary.
//
// Thread-safety: all methods are safe for concurrent use.
type LocalLoader struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewLocalLoader creates an empty local loader.
func NewLocalLoader() *LocalLoader {
	return &LocalLoader{factories: make(map[string]Factory)}
}

// RegisterFactory associates a factory with a Main reference.
// Returns an error if the reference is already taken.
func (l *LocalLoader) RegisterFactory(main string, factory Factory) error {
	if main == "" {
		return fmt.Errorf("main reference cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.factories[main]; exists {
		return fmt.Errorf("factory already registered: %s", main)
	}
	l.factories[main] = factory
	return nil
}

// RegisterPlugin associates an already-built plugin with a Main reference.
// This is a convenience for plugins constructed with the Builder API.
func (l *LocalLoader) RegisterPlugin(main string, p Plugin) error {
	return l.RegisterFactory(main, func(ctx context.Context, descriptor *types.Plugin) (Plugin, error) {
		return p, nil
	})
}

// Load resolves the descriptor's Main reference against the factory table.
func (l *LocalLoader) Load(ctx context.Context, descriptor *types.Plugin) (Plugin, error) {
	l.mu.RLock()
	factory, exists := l.factories[descriptor.Main]
	l.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no factory registered for main reference %q", descriptor.Main)
	}

	p, err := factory(ctx, descriptor)
	if err != nil {
		return nil, fmt.Errorf("factory %q failed: %w", descriptor.Main, err)
	}
	if p == nil {
		return nil, fmt.Errorf("factory %q returned nil plugin", descriptor.Main)
	}
	return p, nil
}
