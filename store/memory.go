package store

import (
	"context"
	"sync"

	"github.com/plexa-ai/runtime/types"
)

// Memory is an in-memory Store. The runtime uses it as the process-local
// mirror of active rows; tests construct isolated instances directly.
//
// Records are stored and returned as copies, so a caller mutating a returned
// record never changes the stored one until it calls Update — this is what
// gives metric updates their read-modify-write, full-replace semantics.
//
// Thread-safety: all methods are safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	plugins   map[string]types.Plugin
	instances map[string]types.Instance
	sessions  map[string]types.Session
	suites    map[string]types.Suite
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		plugins:   make(map[string]types.Plugin),
		instances: make(map[string]types.Instance),
		sessions:  make(map[string]types.Session),
		suites:    make(map[string]types.Suite),
	}
}

// CreatePlugin stores a new plugin record.
func (m *Memory) CreatePlugin(ctx context.Context, p *types.Plugin) error {
	if p == nil || p.ID == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.plugins[p.ID]; exists {
		return ErrDuplicate
	}
	m.plugins[p.ID] = *p
	return nil
}

// GetPlugin returns a copy of the plugin record.
func (m *Memory) GetPlugin(ctx context.Context, id string) (*types.Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, exists := m.plugins[id]
	if !exists {
		return nil, ErrNotFound
	}
	cp := p
	return &cp, nil
}

// UpdatePlugin replaces the stored plugin record.
func (m *Memory) UpdatePlugin(ctx context.Context, p *types.Plugin) error {
	if p == nil || p.ID == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.plugins[p.ID]; !exists {
		return ErrNotFound
	}
	m.plugins[p.ID] = *p
	return nil
}

// DeletePlugin removes the plugin record.
func (m *Memory) DeletePlugin(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.plugins[id]; !exists {
		return ErrNotFound
	}
	delete(m.plugins, id)
	return nil
}

// ListPlugins returns copies of all plugin records.
func (m *Memory) ListPlugins(ctx context.Context) ([]*types.Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		cp := p
		out = append(out, &cp)
	}
	return out, nil
}

// CreateInstance stores a new instance record.
func (m *Memory) CreateInstance(ctx context.Context, in *types.Instance) error {
	if in == nil || in.ID == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.instances[in.ID]; exists {
		return ErrDuplicate
	}
	m.instances[in.ID] = *in
	return nil
}

// GetInstance returns a copy of the instance record.
func (m *Memory) GetInstance(ctx context.Context, id string) (*types.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, exists := m.instances[id]
	if !exists {
		return nil, ErrNotFound
	}
	cp := in
	return &cp, nil
}

// UpdateInstance replaces the stored instance record.
func (m *Memory) UpdateInstance(ctx context.Context, in *types.Instance) error {
	if in == nil || in.ID == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.instances[in.ID]; !exists {
		return ErrNotFound
	}
	m.instances[in.ID] = *in
	return nil
}

// DeleteInstance removes the instance record.
func (m *Memory) DeleteInstance(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.instances[id]; !exists {
		return ErrNotFound
	}
	delete(m.instances, id)
	return nil
}

// ListInstances returns copies of all instance records.
func (m *Memory) ListInstances(ctx context.Context) ([]*types.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Instance, 0, len(m.instances))
	for _, in := range m.instances {
		cp := in
		out = append(out, &cp)
	}
	return out, nil
}

// ListInstancesByPlugin returns copies of all instances bound to the plugin.
func (m *Memory) ListInstancesByPlugin(ctx context.Context, pluginID string) ([]*types.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Instance
	for _, in := range m.instances {
		if in.PluginID == pluginID {
			cp := in
			out = append(out, &cp)
		}
	}
	return out, nil
}

// CreateSession stores a new debug session record.
func (m *Memory) CreateSession(ctx context.Context, s *types.Session) error {
	if s == nil || s.ID == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		return ErrDuplicate
	}
	m.sessions[s.ID] = *s
	return nil
}

// GetSession returns a copy of the session record.
func (m *Memory) GetSession(ctx context.Context, id string) (*types.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, exists := m.sessions[id]
	if !exists {
		return nil, ErrNotFound
	}
	cp := s
	return &cp, nil
}

// UpdateSession replaces the stored session record.
func (m *Memory) UpdateSession(ctx context.Context, s *types.Session) error {
	if s == nil || s.ID == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; !exists {
		return ErrNotFound
	}
	m.sessions[s.ID] = *s
	return nil
}

// DeleteSession removes the session record.
func (m *Memory) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[id]; !exists {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// ListSessions returns copies of all session records.
func (m *Memory) ListSessions(ctx context.Context) ([]*types.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		cp := s
		out = append(out, &cp)
	}
	return out, nil
}

// CreateSuite stores a new test suite record.
func (m *Memory) CreateSuite(ctx context.Context, s *types.Suite) error {
	if s == nil || s.ID == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.suites[s.ID]; exists {
		return ErrDuplicate
	}
	m.suites[s.ID] = *s
	return nil
}

// GetSuite returns a copy of the suite record.
func (m *Memory) GetSuite(ctx context.Context, id string) (*types.Suite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, exists := m.suites[id]
	if !exists {
		return nil, ErrNotFound
	}
	cp := s
	return &cp, nil
}

// UpdateSuite replaces the stored suite record.
func (m *Memory) UpdateSuite(ctx context.Context, s *types.Suite) error {
	if s == nil || s.ID == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.suites[s.ID]; !exists {
		return ErrNotFound
	}
	m.suites[s.ID] = *s
	return nil
}

// DeleteSuite removes the suite record.
func (m *Memory) DeleteSuite(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.suites[id]; !exists {
		return ErrNotFound
	}
	delete(m.suites, id)
	return nil
}

// ListSuites returns copies of all suite records.
func (m *Memory) ListSuites(ctx context.Context) ([]*types.Suite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Suite, 0, len(m.suites))
	for _, s := range m.suites {
		cp := s
		out = append(out, &cp)
	}
	return out, nil
}
