package plugin

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/plexa-ai/runtime/types"
)

// gRPC method names exposed by an out-of-process plugin host.
const (
	methodExecuteHook = "/plexa.plugin.v1.PluginHost/ExecuteHook"
	methodInitialize  = "/plexa.plugin.v1.PluginHost/Initialize"
	methodShutdown    = "/plexa.plugin.v1.PluginHost/Shutdown"
	methodHealth      = "/plexa.plugin.v1.PluginHost/Health"
)

// GRPCLoader loads plugins that run as out-of-process hosts reachable over
// gRPC. The descriptor's Main reference is interpreted as the host's dial
// target ("host:port" or "unix:///path/to/socket").
//
// The wire format is structpb-encoded maps, so plugin hosts can be written
// in any language with protobuf support without sharing generated stubs.
type GRPCLoader struct {
	tlsConf     *tls.Config
	dialTimeout time.Duration
}

// GRPCLoaderOption configures a GRPCLoader.
type GRPCLoaderOption func(*GRPCLoader)

// WithTLS configures TLS for connections to plugin hosts.
// If not set, connections use insecure transport credentials.
func WithTLS(conf *tls.Config) GRPCLoaderOption {
	return func(l *GRPCLoader) {
		l.tlsConf = conf
	}
}

// WithDialTimeout bounds how long Load waits for the first RPC to the host.
func WithDialTimeout(d time.Duration) GRPCLoaderOption {
	return func(l *GRPCLoader) {
		l.dialTimeout = d
	}
}

// NewGRPCLoader creates a loader for gRPC plugin hosts.
func NewGRPCLoader(opts ...GRPCLoaderOption) *GRPCLoader {
	l := &GRPCLoader{
		dialTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load dials the descriptor's Main target and wraps the connection in a
// Plugin. The connection is lazy; host reachability is verified by the
// Initialize call the registry issues after loading.
func (l *GRPCLoader) Load(ctx context.Context, descriptor *types.Plugin) (Plugin, error) {
	if descriptor.Main == "" {
		return nil, fmt.Errorf("descriptor has no dial target")
	}

	var dialOpts []grpc.DialOption
	if l.tlsConf != nil {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(l.tlsConf)))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	dialOpts = append(dialOpts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
		Time:                10 * time.Second,
		Timeout:             5 * time.Second,
		PermitWithoutStream: true,
	}))

	conn, err := grpc.NewClient(descriptor.Main, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection to plugin host %s: %w", descriptor.Main, err)
	}

	hooks := make([]string, 0, len(descriptor.Hooks))
	for _, h := range descriptor.Hooks {
		hooks = append(hooks, h.Name)
	}

	return &remotePlugin{
		conn:        conn,
		name:        descriptor.Name,
		version:     descriptor.Version,
		description: descriptor.Description,
		hooks:       hooks,
		callTimeout: l.dialTimeout,
	}, nil
}

// remotePlugin proxies the Plugin capability to a gRPC plugin host.
type remotePlugin struct {
	conn        *grpc.ClientConn
	name        string
	version     string
	description string
	hooks       []string
	callTimeout time.Duration
}

func (p *remotePlugin) Name() string {
	return p.name
}

func (p *remotePlugin) Version() string {
	return p.version
}

func (p *remotePlugin) Description() string {
	return p.description
}

func (p *remotePlugin) Hooks() []string {
	return append([]string(nil), p.hooks...)
}

// ExecuteHook forwards the hook invocation to the host. The chain context
// and instance config must be structpb-representable (JSON-compatible).
func (p *remotePlugin) ExecuteHook(ctx context.Context, hook string, hookCtx, config map[string]any) (map[string]any, error) {
	req, err := structpb.NewStruct(map[string]any{
		"hook":    hook,
		"context": normalizeMap(hookCtx),
		"config":  normalizeMap(config),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode hook request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := p.conn.Invoke(ctx, methodExecuteHook, req, resp); err != nil {
		return nil, fmt.Errorf("hook %s on plugin host %s: %w", hook, p.name, err)
	}

	out := resp.AsMap()
	if next, ok := out["context"].(map[string]any); ok {
		return next, nil
	}
	// Host omitted the context field; treat as identity.
	return hookCtx, nil
}

func (p *remotePlugin) Initialize(ctx context.Context, config map[string]any) error {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	req, err := structpb.NewStruct(map[string]any{"config": normalizeMap(config)})
	if err != nil {
		return fmt.Errorf("failed to encode init request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := p.conn.Invoke(callCtx, methodInitialize, req, resp); err != nil {
		return fmt.Errorf("initialize plugin host %s: %w", p.name, err)
	}
	return nil
}

func (p *remotePlugin) Shutdown(ctx context.Context) error {
	req, _ := structpb.NewStruct(nil)
	resp := &structpb.Struct{}
	rpcErr := p.conn.Invoke(ctx, methodShutdown, req, resp)

	// Close the connection regardless of the RPC outcome.
	if closeErr := p.conn.Close(); closeErr != nil && rpcErr == nil {
		return fmt.Errorf("close connection to plugin host %s: %w", p.name, closeErr)
	}
	if rpcErr != nil {
		return fmt.Errorf("shutdown plugin host %s: %w", p.name, rpcErr)
	}
	return nil
}

func (p *remotePlugin) Health(ctx context.Context) types.HealthStatus {
	req, _ := structpb.NewStruct(nil)
	resp := &structpb.Struct{}
	if err := p.conn.Invoke(ctx, methodHealth, req, resp); err != nil {
		return types.NewUnhealthyStatus("plugin host unreachable", map[string]any{
			"target": p.conn.Target(),
			"error":  err.Error(),
		})
	}

	out := resp.AsMap()
	status, _ := out["status"].(string)
	message, _ := out["message"].(string)
	switch status {
	case types.StatusHealthy:
		return types.NewHealthyStatus(message)
	case types.StatusDegraded:
		return types.NewDegradedStatus(message, nil)
	default:
		return types.NewUnhealthyStatus(message, nil)
	}
}

// normalizeMap replaces a nil map with an empty one so structpb encoding
// never sees a nil value for a required field.
func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
