package resolution

import (
	"context"

	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/environment"
	"github.com/mridang/dprint-go/internal/plugins"
)

// InitializedPluginWithConfigFormatRequest is a format call on a plugin
// whose configuration is already bound.
type InitializedPluginWithConfigFormatRequest struct {
	FilePath       string
	FileText       string
	Range          *dprint.FormatRange
	OverrideConfig dprint.ConfigKeyMap
	OnHostFormat   dprint.HostFormatter
}

// InitializedPluginWithConfig is a started plugin together with the
// configuration it formats with. It is a small value; copy it freely.
type InitializedPluginWithConfig struct {
	plugin   *PluginWithConfig
	instance plugins.InitializedPlugin
}

// Info is the plugin's static information.
func (p InitializedPluginWithConfig) Info() dprint.PluginInfo {
	return p.plugin.Info()
}

func (p InitializedPluginWithConfig) ResolvedConfig(ctx context.Context) (string, error) {
	return p.instance.ResolvedConfig(ctx, p.plugin.FormatConfig)
}

func (p InitializedPluginWithConfig) FileMatchingInfo(ctx context.Context) (dprint.FileMatchingInfo, error) {
	return p.instance.FileMatchingInfo(ctx, p.plugin.FormatConfig)
}

func (p InitializedPluginWithConfig) LicenseText(ctx context.Context) (string, error) {
	return p.instance.LicenseText(ctx)
}

// OutputConfigDiagnostics asks the plugin about problems with its bound
// configuration. See plugins.OutputConfigDiagnostics.
func (p InitializedPluginWithConfig) OutputConfigDiagnostics(ctx context.Context, env environment.Environment) (*plugins.OutputConfigDiagnosticsError, error) {
	return plugins.OutputConfigDiagnostics(ctx, p.Info().Name, p.instance, p.plugin.FormatConfig, env)
}

// FormatText formats with the bound configuration.
func (p InitializedPluginWithConfig) FormatText(ctx context.Context, request InitializedPluginWithConfigFormatRequest) (dprint.FormatResult, error) {
	return p.instance.FormatText(ctx, plugins.FormatRequest{
		FilePath:       request.FilePath,
		FileText:       request.FileText,
		Range:          request.Range,
		Config:         p.plugin.FormatConfig,
		OverrideConfig: request.OverrideConfig,
		OnHostFormat:   request.OnHostFormat,
	})
}
