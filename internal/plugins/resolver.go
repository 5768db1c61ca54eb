package plugins

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mridang/dprint-go/internal/environment"
)

// BuiltinPrefix marks a reference to a plugin compiled into the host.
const BuiltinPrefix = "builtin:"

// ErrRemotePlugin is returned for plugin references that would need to be
// downloaded.
var ErrRemotePlugin = errors.New("downloading plugins is not supported; reference a local .wasm file instead")

// WasmLoader turns the bytes of a wasm module into a Plugin.
type WasmLoader func(ctx context.Context, wasmBytes []byte) (Plugin, error)

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithBuiltin makes "builtin:<name>" resolve to the plugin factory returns.
func WithBuiltin(name string, factory func() Plugin) ResolverOption {
	return func(r *Resolver) {
		r.builtins[name] = factory
	}
}

// WithWasmLoader sets how .wasm references are loaded.
func WithWasmLoader(loader WasmLoader) ResolverOption {
	return func(r *Resolver) {
		r.loadWasm = loader
	}
}

// Resolver turns plugin references into plugins. Each reference is loaded
// once; later scopes asking for it get the same Wrapper.
type Resolver struct {
	env      environment.Environment
	builtins map[string]func() Plugin
	loadWasm WasmLoader

	mu       sync.Mutex
	resolved map[string]*Wrapper

	configID atomic.Uint32
}

// NewResolver creates a resolver.
func NewResolver(env environment.Environment, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		env:      env,
		builtins: map[string]func() Plugin{},
		resolved: map[string]*Wrapper{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NextConfigID returns a configuration id never handed out before by this
// resolver. Ids start at 1.
func (r *Resolver) NextConfigID() uint32 {
	return r.configID.Add(1)
}

// ResolvePlugins resolves every reference, preserving order.
func (r *Resolver) ResolvePlugins(ctx context.Context, refs []string) ([]*Wrapper, error) {
	out := make([]*Wrapper, 0, len(refs))
	seen := map[string]bool{}
	for _, ref := range refs {
		w, err := r.resolvePlugin(ctx, ref)
		if err != nil {
			return nil, err
		}
		name := w.Info().Name
		if seen[name] {
			return nil, fmt.Errorf("plugin %s was specified more than once", name)
		}
		seen[name] = true
		out = append(out, w)
	}
	return out, nil
}

func (r *Resolver) resolvePlugin(ctx context.Context, ref string) (*Wrapper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.resolved[ref]; ok {
		return w, nil
	}

	r.env.LogVerbose("Resolving plugin: %s", ref)
	p, err := r.load(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("error resolving plugin %s: %w", ref, err)
	}
	w := NewWrapper(p)
	r.resolved[ref] = w
	return w, nil
}

func (r *Resolver) load(ctx context.Context, ref string) (Plugin, error) {
	switch {
	case strings.HasPrefix(ref, BuiltinPrefix):
		factory, ok := r.builtins[strings.TrimPrefix(ref, BuiltinPrefix)]
		if !ok {
			return nil, errors.New("unknown builtin plugin")
		}
		return factory(), nil
	case strings.Contains(ref, "://"):
		return nil, ErrRemotePlugin
	case strings.HasSuffix(strings.ToLower(ref), ".wasm"):
		if r.loadWasm == nil {
			return nil, errors.New("wasm plugins are not enabled")
		}
		b, err := r.env.ReadFileBytes(ref)
		if err != nil {
			return nil, err
		}
		return r.loadWasm(ctx, b)
	default:
		return nil, errors.New("unsupported plugin reference; expected builtin:<name> or a path to a .wasm file")
	}
}
