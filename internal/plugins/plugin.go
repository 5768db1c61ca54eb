// Package plugins defines the capabilities a formatting plugin exposes to
// the host, whether it runs in-process or inside a wasm sandbox, and the
// machinery for resolving and selecting plugins.
package plugins

import (
	"context"

	"github.com/mridang/dprint-go/internal/dprint"
)

// Plugin is a reference to a formatting plugin that can be started.
type Plugin interface {
	Info() dprint.PluginInfo
	// IsProcessPlugin reports whether the plugin runs outside the host's
	// own code (for example inside a wasm runtime).
	IsProcessPlugin() bool
	// Initialize starts the plugin. Implementations may return the same
	// instance on every call.
	Initialize(ctx context.Context) (InitializedPlugin, error)
}

// FormatRequest is a single formatting call on an initialized plugin.
type FormatRequest struct {
	FilePath       string
	FileText       string
	Range          *dprint.FormatRange
	Config         *dprint.FormatConfig
	OverrideConfig dprint.ConfigKeyMap
	// OnHostFormat formats embedded content with the scope that issued
	// this request.
	OnHostFormat dprint.HostFormatter
}

// InitializedPlugin is a started plugin ready to answer requests. It must
// be safe for concurrent use.
type InitializedPlugin interface {
	LicenseText(ctx context.Context) (string, error)
	ResolvedConfig(ctx context.Context, config *dprint.FormatConfig) (string, error)
	FileMatchingInfo(ctx context.Context, config *dprint.FormatConfig) (dprint.FileMatchingInfo, error)
	ConfigDiagnostics(ctx context.Context, config *dprint.FormatConfig) ([]dprint.ConfigurationDiagnostic, error)
	// FormatText returns dprint.Unchanged() when the text is already
	// formatted. Cancellation is observed through ctx.
	FormatText(ctx context.Context, request FormatRequest) (dprint.FormatResult, error)
}
