package store

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/plexa-ai/runtime/types"
)

// Entity key segments under the namespace.
const (
	etcdPlugins   = "plugins"
	etcdInstances = "instances"
	etcdSessions  = "sessions"
	etcdSuites    = "suites"
)

// EtcdConfig holds connection configuration for the etcd-backed store.
type EtcdConfig struct {
	// Endpoints is the list of etcd endpoints ("host:port").
	Endpoints []string

	// Namespace is the key prefix for all runtime records.
	// Records are stored at /{namespace}/{entity}/{id}. Default: "plexa".
	Namespace string

	// DialTimeout bounds connection establishment. Default: 5s.
	DialTimeout time.Duration

	// TLS enables secure communication when set.
	TLS *tls.Config
}

// Etcd is a durable Store backed by an etcd cluster. Every record is stored
// as a JSON value at /{namespace}/{entity}/{id}, so the wire format stays
// opaque CRUD as far as the runtime is concerned.
//
// Thread-safety: all methods are safe for concurrent use.
type Etcd struct {
	client    *clientv3.Client
	namespace string
}

// NewEtcd connects to the configured etcd cluster and verifies connectivity.
// The returned store must be closed with Close when no longer needed.
func NewEtcd(cfg EtcdConfig) (*Etcd, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd endpoints cannot be empty")
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "plexa"
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		TLS:         cfg.TLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	// Verify connectivity with a quick read.
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := cli.Get(ctx, "health-check"); err != nil && err != context.DeadlineExceeded {
		cli.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	return &Etcd{client: cli, namespace: namespace}, nil
}

// Close releases the etcd client connection.
func (e *Etcd) Close() error {
	return e.client.Close()
}

func (e *Etcd) key(entity, id string) string {
	return fmt.Sprintf("/%s/%s/%s", e.namespace, entity, id)
}

func (e *Etcd) prefix(entity string) string {
	return fmt.Sprintf("/%s/%s/", e.namespace, entity)
}

// create puts a record only if the key does not exist yet.
func (e *Etcd) create(ctx context.Context, entity, id string, record any) error {
	if id == "" {
		return ErrInvalidID
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	key := e.key(entity, id)
	resp, err := e.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(data))).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	if !resp.Succeeded {
		return ErrDuplicate
	}
	return nil
}

// update replaces a record only if the key already exists.
func (e *Etcd) update(ctx context.Context, entity, id string, record any) error {
	if id == "" {
		return ErrInvalidID
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	key := e.key(entity, id)
	resp, err := e.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), ">", 0)).
		Then(clientv3.OpPut(key, string(data))).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if !resp.Succeeded {
		return ErrNotFound
	}
	return nil
}

func (e *Etcd) get(ctx context.Context, entity, id string, out any) error {
	resp, err := e.client.Get(ctx, e.key(entity, id))
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return ErrNotFound
	}
	if err := json.Unmarshal(resp.Kvs[0].Value, out); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}

func (e *Etcd) delete(ctx context.Context, entity, id string) error {
	resp, err := e.client.Delete(ctx, e.key(entity, id))
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if resp.Deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// listRecords fetches every record under the entity prefix, skipping
// entries that fail to decode.
func listRecords[T any](ctx context.Context, e *Etcd, entity string) ([]*T, error) {
	resp, err := e.client.Get(ctx, e.prefix(entity), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	out := make([]*T, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var record T
		if err := json.Unmarshal(kv.Value, &record); err != nil {
			continue
		}
		out = append(out, &record)
	}
	return out, nil
}

// CreatePlugin stores a new plugin record.
func (e *Etcd) CreatePlugin(ctx context.Context, p *types.Plugin) error {
	return e.create(ctx, etcdPlugins, p.ID, p)
}

// GetPlugin returns the plugin record.
func (e *Etcd) GetPlugin(ctx context.Context, id string) (*types.Plugin, error) {
	var p types.Plugin
	if err := e.get(ctx, etcdPlugins, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePlugin replaces the stored plugin record.
func (e *Etcd) UpdatePlugin(ctx context.Context, p *types.Plugin) error {
	return e.update(ctx, etcdPlugins, p.ID, p)
}

// DeletePlugin removes the plugin record.
func (e *Etcd) DeletePlugin(ctx context.Context, id string) error {
	return e.delete(ctx, etcdPlugins, id)
}

// ListPlugins returns all plugin records.
func (e *Etcd) ListPlugins(ctx context.Context) ([]*types.Plugin, error) {
	return listRecords[types.Plugin](ctx, e, etcdPlugins)
}

// CreateInstance stores a new instance record.
func (e *Etcd) CreateInstance(ctx context.Context, in *types.Instance) error {
	return e.create(ctx, etcdInstances, in.ID, in)
}

// GetInstance returns the instance record.
func (e *Etcd) GetInstance(ctx context.Context, id string) (*types.Instance, error) {
	var in types.Instance
	if err := e.get(ctx, etcdInstances, id, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// UpdateInstance replaces the stored instance record.
func (e *Etcd) UpdateInstance(ctx context.Context, in *types.Instance) error {
	return e.update(ctx, etcdInstances, in.ID, in)
}

// DeleteInstance removes the instance record.
func (e *Etcd) DeleteInstance(ctx context.Context, id string) error {
	return e.delete(ctx, etcdInstances, id)
}

// ListInstances returns all instance records.
func (e *Etcd) ListInstances(ctx context.Context) ([]*types.Instance, error) {
	return listRecords[types.Instance](ctx, e, etcdInstances)
}

// ListInstancesByPlugin returns all instances bound to the plugin.
func (e *Etcd) ListInstancesByPlugin(ctx context.Context, pluginID string) ([]*types.Instance, error) {
	all, err := listRecords[types.Instance](ctx, e, etcdInstances)
	if err != nil {
		return nil, err
	}
	var out []*types.Instance
	for _, in := range all {
		if in.PluginID == pluginID {
			out = append(out, in)
		}
	}
	return out, nil
}

// CreateSession stores a new debug session record.
func (e *Etcd) CreateSession(ctx context.Context, s *types.Session) error {
	return e.create(ctx, etcdSessions, s.ID, s)
}

// GetSession returns the session record.
func (e *Etcd) GetSession(ctx context.Context, id string) (*types.Session, error) {
	var s types.Session
	if err := e.get(ctx, etcdSessions, id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSession replaces the stored session record.
func (e *Etcd) UpdateSession(ctx context.Context, s *types.Session) error {
	return e.update(ctx, etcdSessions, s.ID, s)
}

// DeleteSession removes the session record.
func (e *Etcd) DeleteSession(ctx context.Context, id string) error {
	return e.delete(ctx, etcdSessions, id)
}

// ListSessions returns all session records.
func (e *Etcd) ListSessions(ctx context.Context) ([]*types.Session, error) {
	return listRecords[types.Session](ctx, e, etcdSessions)
}

// CreateSuite stores a new test suite record.
func (e *Etcd) CreateSuite(ctx context.Context, s *types.Suite) error {
	return e.create(ctx, etcdSuites, s.ID, s)
}

// GetSuite returns the suite record.
func (e *Etcd) GetSuite(ctx context.Context, id string) (*types.Suite, error) {
	var s types.Suite
	if err := e.get(ctx, etcdSuites, id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSuite replaces the stored suite record.
func (e *Etcd) UpdateSuite(ctx context.Context, s *types.Suite) error {
	return e.update(ctx, etcdSuites, s.ID, s)
}

// DeleteSuite removes the suite record.
func (e *Etcd) DeleteSuite(ctx context.Context, id string) error {
	return e.delete(ctx, etcdSuites, id)
}

// ListSuites returns all suite records.
func (e *Etcd) ListSuites(ctx context.Context) ([]*types.Suite, error) {
	return listRecords[types.Suite](ctx, e, etcdSuites)
}
