// Package pluginstest provides a scriptable in-memory plugin for tests.
package pluginstest

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/plugins"
)

// FormatFunc implements a fake plugin's formatting.
type FormatFunc func(ctx context.Context, request plugins.FormatRequest) (dprint.FormatResult, error)

// Plugin is a fake plugin. Zero values are usable; set fields before the
// plugin is shared between goroutines.
type Plugin struct {
	PluginInfo  dprint.PluginInfo
	Process     bool
	InitErr     error
	Diagnostics []dprint.ConfigurationDiagnostic
	// DiagnosticsFunc overrides Diagnostics when set.
	DiagnosticsFunc func(config *dprint.FormatConfig) []dprint.ConfigurationDiagnostic
	Format          FormatFunc

	initCalls        atomic.Int32
	diagnosticsCalls atomic.Int32
	formatCalls      atomic.Int32

	mu        sync.Mutex
	formatted []string
}

// New returns a fake plugin matching the given extensions.
func New(name string, extensions ...string) *Plugin {
	return &Plugin{
		PluginInfo: dprint.PluginInfo{
			Name:           name,
			Version:        "1.0.0",
			ConfigKey:      name,
			FileExtensions: extensions,
		},
	}
}

// InitCalls is the number of times Initialize was called.
func (p *Plugin) InitCalls() int { return int(p.initCalls.Load()) }

// DiagnosticsCalls is the number of times ConfigDiagnostics was called.
func (p *Plugin) DiagnosticsCalls() int { return int(p.diagnosticsCalls.Load()) }

// FormatCalls is the number of times FormatText was called.
func (p *Plugin) FormatCalls() int { return int(p.formatCalls.Load()) }

// FormattedPaths lists the file paths passed to FormatText, in call order.
func (p *Plugin) FormattedPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.formatted...)
}

func (p *Plugin) Info() dprint.PluginInfo { return p.PluginInfo }

func (p *Plugin) IsProcessPlugin() bool { return p.Process }

func (p *Plugin) Initialize(context.Context) (plugins.InitializedPlugin, error) {
	p.initCalls.Add(1)
	if p.InitErr != nil {
		return nil, p.InitErr
	}
	return p, nil
}

func (p *Plugin) LicenseText(context.Context) (string, error) {
	return p.PluginInfo.Name + " license", nil
}

func (p *Plugin) ResolvedConfig(_ context.Context, config *dprint.FormatConfig) (string, error) {
	b, err := json.Marshal(config.Raw)
	return string(b), err
}

func (p *Plugin) FileMatchingInfo(context.Context, *dprint.FormatConfig) (dprint.FileMatchingInfo, error) {
	return dprint.FileMatchingInfo{
		FileExtensions: p.PluginInfo.FileExtensions,
		FileNames:      p.PluginInfo.FileNames,
	}, nil
}

func (p *Plugin) ConfigDiagnostics(_ context.Context, config *dprint.FormatConfig) ([]dprint.ConfigurationDiagnostic, error) {
	p.diagnosticsCalls.Add(1)
	if p.DiagnosticsFunc != nil {
		return p.DiagnosticsFunc(config), nil
	}
	return p.Diagnostics, nil
}

func (p *Plugin) FormatText(ctx context.Context, request plugins.FormatRequest) (dprint.FormatResult, error) {
	p.formatCalls.Add(1)
	p.mu.Lock()
	p.formatted = append(p.formatted, request.FilePath)
	p.mu.Unlock()
	if p.Format == nil {
		return dprint.Unchanged(), nil
	}
	return p.Format(ctx, request)
}
