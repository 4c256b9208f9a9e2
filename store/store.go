package store

import (
	"context"
	"errors"

	"github.com/plexa-ai/runtime/types"
)

// Common errors returned by store operations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("store: record not found")

	// ErrDuplicate is returned when creating a record whose ID is taken.
	ErrDuplicate = errors.New("store: record already exists")

	// ErrInvalidID is returned when an ID is empty or otherwise invalid.
	ErrInvalidID = errors.New("store: invalid record id")
)

// PluginStore persists plugin descriptors.
type PluginStore interface {
	CreatePlugin(ctx context.Context, p *types.Plugin) error
	GetPlugin(ctx context.Context, id string) (*types.Plugin, error)
	UpdatePlugin(ctx context.Context, p *types.Plugin) error
	DeletePlugin(ctx context.Context, id string) error
	ListPlugins(ctx context.Context) ([]*types.Plugin, error)
}

// InstanceStore persists plugin instances.
type InstanceStore interface {
	CreateInstance(ctx context.Context, in *types.Instance) error
	GetInstance(ctx context.Context, id string) (*types.Instance, error)
	UpdateInstance(ctx context.Context, in *types.Instance) error
	DeleteInstance(ctx context.Context, id string) error
	ListInstances(ctx context.Context) ([]*types.Instance, error)

	// ListInstancesByPlugin returns all instances bound to the plugin.
	// Used by the disable/uninstall cascades.
	ListInstancesByPlugin(ctx context.Context, pluginID string) ([]*types.Instance, error)
}

// SessionStore persists debug sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s *types.Session) error
	GetSession(ctx context.Context, id string) (*types.Session, error)
	UpdateSession(ctx context.Context, s *types.Session) error
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context) ([]*types.Session, error)
}

// SuiteStore persists test suites.
type SuiteStore interface {
	CreateSuite(ctx context.Context, s *types.Suite) error
	GetSuite(ctx context.Context, id string) (*types.Suite, error)
	UpdateSuite(ctx context.Context, s *types.Suite) error
	DeleteSuite(ctx context.Context, id string) error
	ListSuites(ctx context.Context) ([]*types.Suite, error)
}

// Store aggregates the per-entity repositories. Implementations must be
// safe for concurrent use.
type Store interface {
	PluginStore
	InstanceStore
	SessionStore
	SuiteStore
}
