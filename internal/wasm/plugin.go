// Package wasm runs dprint plugins compiled to WebAssembly (plugin schema
// version 4) with wasmer-go.
package wasm

import (
	"context"
	"fmt"
	"sync"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/plugins"
)

// Plugin is a loaded wasm plugin. The module is compiled once; instances
// are created on demand and pooled, since an instance can only serve one
// call at a time and a plugin may be re-entered through host formatting.
type Plugin struct {
	engine   *wasmer.Engine
	compiled []byte
	info     dprint.PluginInfo

	mu   sync.Mutex
	idle []*instance
}

var _ plugins.WasmLoader = LoadPlugin

// LoadPlugin compiles wasmBytes and reads the plugin's information.
func LoadPlugin(_ context.Context, wasmBytes []byte) (plugins.Plugin, error) {
	if err := CheckPluginSchema(wasmBytes, dprint.PluginSchemaExport); err != nil {
		return nil, fmt.Errorf("only plugin schema version %d is supported: %w", dprint.PluginSchemaVersion, err)
	}
	wasmBytes = StripStartSection(wasmBytes)

	engine := wasmer.NewEngine()
	module, err := wasmer.NewModule(wasmer.NewStore(engine), wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("error compiling wasm module: %w", err)
	}
	compiled, err := module.Serialize()
	if err != nil {
		return nil, fmt.Errorf("error serializing wasm module: %w", err)
	}

	p := &Plugin{engine: engine, compiled: compiled}
	inst, err := p.acquire()
	if err != nil {
		return nil, err
	}
	if err := inst.receiveJSON("get_plugin_info", &p.info); err != nil {
		return nil, err
	}
	p.release(inst)
	return p, nil
}

func (p *Plugin) Info() dprint.PluginInfo {
	return p.info
}

func (p *Plugin) IsProcessPlugin() bool {
	return false
}

// Initialize returns the plugin itself; instances are created lazily.
func (p *Plugin) Initialize(context.Context) (plugins.InitializedPlugin, error) {
	return p, nil
}

func (p *Plugin) acquire() (*instance, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		inst := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return inst, nil
	}
	p.mu.Unlock()
	return newInstance(p.engine, p.compiled)
}

func (p *Plugin) release(inst *instance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle = append(p.idle, inst)
}

// withInstance runs f on a pooled instance. An instance that trapped is
// dropped instead of going back to the pool.
func (p *Plugin) withInstance(f func(inst *instance) error) error {
	inst, err := p.acquire()
	if err != nil {
		return err
	}
	err = f(inst)
	if inst.healthy() {
		p.release(inst)
	}
	return err
}

// withConfig is withInstance with config registered first.
func (p *Plugin) withConfig(config *dprint.FormatConfig, f func(inst *instance) error) error {
	return p.withInstance(func(inst *instance) error {
		if err := inst.ensureConfig(config); err != nil {
			return err
		}
		return f(inst)
	})
}

func (p *Plugin) LicenseText(context.Context) (string, error) {
	var text string
	err := p.withInstance(func(inst *instance) error {
		b, err := inst.receive("get_license_text")
		text = string(b)
		return err
	})
	return text, err
}

func (p *Plugin) ResolvedConfig(_ context.Context, config *dprint.FormatConfig) (string, error) {
	var text string
	err := p.withConfig(config, func(inst *instance) error {
		b, err := inst.receive("get_resolved_config", int32(config.ID)) //nolint:gosec // ids wrap like the plugin's u32
		text = string(b)
		return err
	})
	return text, err
}

func (p *Plugin) FileMatchingInfo(_ context.Context, config *dprint.FormatConfig) (dprint.FileMatchingInfo, error) {
	var info dprint.FileMatchingInfo
	err := p.withConfig(config, func(inst *instance) error {
		return inst.receiveJSON("get_config_file_matching", &info, int32(config.ID)) //nolint:gosec // ids wrap like the plugin's u32
	})
	return info, err
}

func (p *Plugin) ConfigDiagnostics(_ context.Context, config *dprint.FormatConfig) ([]dprint.ConfigurationDiagnostic, error) {
	var diagnostics []dprint.ConfigurationDiagnostic
	err := p.withConfig(config, func(inst *instance) error {
		return inst.receiveJSON("get_config_diagnostics", &diagnostics, int32(config.ID)) //nolint:gosec // ids wrap like the plugin's u32
	})
	return diagnostics, err
}

func (p *Plugin) FormatText(ctx context.Context, request plugins.FormatRequest) (dprint.FormatResult, error) {
	inst, err := p.acquire()
	if err != nil {
		return dprint.FormatResult{}, err
	}
	host := request.OnHostFormat
	if host == nil {
		host = dprint.NoopHostFormatter
	}
	result, err := inst.format(ctx, request.FilePath, request.FileText, request.OverrideConfig, request.Config, host)
	// a plugin reporting a syntax error is still healthy
	if inst.healthy() {
		p.release(inst)
	}
	return result, err
}
