// Package resolution turns a configuration into live plugin scopes and runs
// formatting requests through them, including requests plugins make back
// into the host for embedded content.
package resolution

import (
	"context"
	"sync"

	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/environment"
	"github.com/mridang/dprint-go/internal/hasher"
	"github.com/mridang/dprint-go/internal/plugins"
)

// DiagnosticsState is the memoized outcome of asking a plugin about its
// configuration: unchecked, checked with no problems, or checked with
// Count problems.
type DiagnosticsState struct {
	checked bool
	count   int
}

// Checked reports whether the plugin was asked.
func (s DiagnosticsState) Checked() bool { return s.checked }

// Count is the number of problems found. Zero when unchecked.
func (s DiagnosticsState) Count() int { return s.count }

// Blocked reports whether formatting must be refused.
func (s DiagnosticsState) Blocked() bool { return s.checked && s.count > 0 }

// NextDiagnosticsState records the result of a check. Once checked, the
// state never changes again.
func NextDiagnosticsState(s DiagnosticsState, found int) DiagnosticsState {
	if s.checked {
		return s
	}
	return DiagnosticsState{checked: true, count: found}
}

// GetPluginResult is either a ready plugin or the number of configuration
// problems that prevent using it.
type GetPluginResult struct {
	Plugin          InitializedPluginWithConfig
	DiagnosticCount int
}

// HadDiagnostics reports whether the plugin must not be used.
func (r GetPluginResult) HadDiagnostics() bool {
	return r.DiagnosticCount > 0
}

// PluginWithConfig is a plugin bound to the configuration of one scope.
type PluginWithConfig struct {
	Plugin *plugins.Wrapper
	// Associations override the plugin's default file matching. Nil when
	// the configuration did not set any.
	Associations []string
	FormatConfig *dprint.FormatConfig
	FileMatching dprint.FileMatchingInfo

	diagnosticsMu sync.Mutex
	diagnostics   DiagnosticsState
}

// NewPluginWithConfig binds plugin to formatConfig.
func NewPluginWithConfig(
	plugin *plugins.Wrapper,
	associations []string,
	formatConfig *dprint.FormatConfig,
	fileMatching dprint.FileMatchingInfo,
) *PluginWithConfig {
	return &PluginWithConfig{
		Plugin:       plugin,
		Associations: associations,
		FormatConfig: formatConfig,
		FileMatching: fileMatching,
	}
}

// Name is the plugin's name.
func (p *PluginWithConfig) Name() string {
	return p.Plugin.Info().Name
}

// Info is the plugin's static information.
func (p *PluginWithConfig) Info() dprint.PluginInfo {
	return p.Plugin.Info()
}

// DiagnosticsState returns the current memoized diagnostics state.
func (p *PluginWithConfig) DiagnosticsState() DiagnosticsState {
	p.diagnosticsMu.Lock()
	defer p.diagnosticsMu.Unlock()
	return p.diagnostics
}

// IncrementalHash feeds everything that affects this plugin's output into
// h. Used to tell whether an incremental cache is still valid.
func (p *PluginWithConfig) IncrementalHash(h *hasher.FastInsecureHasher) {
	info := p.Info()
	h.WriteStr(info.Name)
	h.WriteStr(info.Version)

	// sorted so the hash does not depend on map iteration order
	for _, key := range p.FormatConfig.Raw.SortedKeys() {
		h.WriteStr(key)
		dprint.HashValue(h, p.FormatConfig.Raw[key])
	}

	for _, association := range p.Associations {
		h.WriteStr(association)
	}
	p.FormatConfig.Global.Hash(h)
}

// Initialize starts the plugin if needed and binds the instance to this
// configuration.
func (p *PluginWithConfig) Initialize(ctx context.Context) (InitializedPluginWithConfig, error) {
	instance, err := p.Plugin.Initialize(ctx)
	if err != nil {
		return InitializedPluginWithConfig{}, err
	}
	return InitializedPluginWithConfig{plugin: p, instance: instance}, nil
}

// GetOrCreateCheckingConfigDiagnostics returns the plugin ready to format,
// unless its configuration has problems. The first caller asks the plugin
// and logs any problems; concurrent callers wait for that and then see the
// same result, so the problems are printed once per process.
func (p *PluginWithConfig) GetOrCreateCheckingConfigDiagnostics(ctx context.Context, env environment.Environment) (GetPluginResult, error) {
	p.diagnosticsMu.Lock()
	defer p.diagnosticsMu.Unlock()

	if p.diagnostics.Blocked() {
		return GetPluginResult{DiagnosticCount: p.diagnostics.Count()}, nil
	}

	instance, err := p.Initialize(ctx)
	if err != nil {
		return GetPluginResult{}, err
	}
	if p.diagnostics.Checked() {
		return GetPluginResult{Plugin: instance}, nil
	}

	report, err := instance.OutputConfigDiagnostics(ctx, env)
	if err != nil {
		return GetPluginResult{}, err
	}
	found := 0
	if report != nil {
		env.LogStderr(report.Error())
		found = report.DiagnosticCount()
	}
	p.diagnostics = NextDiagnosticsState(p.diagnostics, found)
	if p.diagnostics.Blocked() {
		return GetPluginResult{DiagnosticCount: p.diagnostics.Count()}, nil
	}
	return GetPluginResult{Plugin: instance}, nil
}
