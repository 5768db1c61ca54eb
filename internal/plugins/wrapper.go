package plugins

import (
	"context"
	"fmt"
	"sync"

	"github.com/mridang/dprint-go/internal/dprint"
)

// Wrapper memoizes a plugin's initialization so that every scope sharing
// the plugin reference shares one started instance.
type Wrapper struct {
	plugin Plugin

	mu       sync.Mutex
	instance InitializedPlugin
}

// NewWrapper wraps p.
func NewWrapper(p Plugin) *Wrapper {
	return &Wrapper{plugin: p}
}

// Info returns the plugin's static information.
func (w *Wrapper) Info() dprint.PluginInfo {
	return w.plugin.Info()
}

// IsProcessPlugin reports whether the wrapped plugin runs out of process.
func (w *Wrapper) IsProcessPlugin() bool {
	return w.plugin.IsProcessPlugin()
}

// Initialize starts the plugin the first time it is called and returns the
// same instance afterwards. A failed start is not cached.
func (w *Wrapper) Initialize(ctx context.Context) (InitializedPlugin, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.instance != nil {
		return w.instance, nil
	}
	instance, err := w.plugin.Initialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing %s: %w", w.plugin.Info().Name, err)
	}
	w.instance = instance
	return instance, nil
}
