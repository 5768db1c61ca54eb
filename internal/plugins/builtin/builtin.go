// Package builtin provides plugins that run in-process instead of as wasm
// modules. Each wraps a Go formatting library.
package builtin

import (
	"context"
	"encoding/json"
	"maps"

	"github.com/go-viper/mapstructure/v2"

	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/plugins"
)

// Version is reported by every builtin plugin.
const Version = "0.1.0"

const unknownPropertyMessage = "Unknown property in configuration."

// Options registers every builtin plugin with a resolver.
func Options() []plugins.ResolverOption {
	return []plugins.ResolverOption{
		plugins.WithBuiltin("gofmt", NewGofmt),
		plugins.WithBuiltin("shfmt", NewShfmt),
		plugins.WithBuiltin("hcl", NewHCL),
		plugins.WithBuiltin("markdown", NewMarkdown),
	}
}

// formatFunc formats request.FileText with a decoded configuration.
type formatFunc[C any] func(ctx context.Context, request plugins.FormatRequest, config C) (string, error)

// plugin adapts a formatting function to the plugin interfaces. C is the
// plugin's configuration struct; its json tags name the properties.
type plugin[C any] struct {
	info     dprint.PluginInfo
	license  string
	defaults func(global dprint.GlobalConfiguration) C
	format   formatFunc[C]
}

func (p *plugin[C]) Info() dprint.PluginInfo {
	return p.info
}

func (p *plugin[C]) IsProcessPlugin() bool {
	return false
}

// Initialize is free for builtins; the plugin is its own instance.
func (p *plugin[C]) Initialize(context.Context) (plugins.InitializedPlugin, error) {
	return p, nil
}

func (p *plugin[C]) LicenseText(context.Context) (string, error) {
	return p.license, nil
}

func (p *plugin[C]) ResolvedConfig(_ context.Context, config *dprint.FormatConfig) (string, error) {
	resolved, _ := p.resolve(config, nil)
	b, err := json.Marshal(resolved)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (p *plugin[C]) FileMatchingInfo(context.Context, *dprint.FormatConfig) (dprint.FileMatchingInfo, error) {
	return dprint.FileMatchingInfo{
		FileExtensions: p.info.FileExtensions,
		FileNames:      p.info.FileNames,
	}, nil
}

func (p *plugin[C]) ConfigDiagnostics(_ context.Context, config *dprint.FormatConfig) ([]dprint.ConfigurationDiagnostic, error) {
	_, diagnostics := p.resolve(config, nil)
	return diagnostics, nil
}

func (p *plugin[C]) FormatText(ctx context.Context, request plugins.FormatRequest) (dprint.FormatResult, error) {
	config, _ := p.resolve(request.Config, request.OverrideConfig)
	formatted, err := p.format(ctx, request, config)
	if err != nil {
		return dprint.FormatResult{}, err
	}
	if formatted == request.FileText {
		return dprint.Unchanged(), nil
	}
	return dprint.Changed(formatted), nil
}

// resolve decodes the raw properties over the defaults one key at a time,
// so every bad or unknown key gets its own diagnostic.
func (p *plugin[C]) resolve(config *dprint.FormatConfig, override dprint.ConfigKeyMap) (C, []dprint.ConfigurationDiagnostic) {
	resolved := p.defaults(config.Global)
	raw := config.Raw
	if len(override) > 0 {
		raw = raw.Clone()
		maps.Copy(raw, override)
	}

	var diagnostics []dprint.ConfigurationDiagnostic
	for _, key := range raw.SortedKeys() {
		var metadata mapstructure.Metadata
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:  "json",
			Result:   &resolved,
			Metadata: &metadata,
		})
		if err != nil {
			diagnostics = append(diagnostics, dprint.ConfigurationDiagnostic{PropertyName: key, Message: err.Error()})
			continue
		}
		if err := decoder.Decode(map[string]any{key: raw[key]}); err != nil {
			diagnostics = append(diagnostics, dprint.ConfigurationDiagnostic{PropertyName: key, Message: err.Error()})
			continue
		}
		if len(metadata.Unused) > 0 {
			diagnostics = append(diagnostics, dprint.ConfigurationDiagnostic{PropertyName: key, Message: unknownPropertyMessage})
		}
	}
	return resolved, diagnostics
}
