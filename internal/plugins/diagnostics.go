package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/environment"
)

// OutputConfigDiagnosticsError carries the configuration problems a plugin
// reported. Its message is the text shown to the user.
type OutputConfigDiagnosticsError struct {
	PluginName  string
	Diagnostics []dprint.ConfigurationDiagnostic
}

// DiagnosticCount is the number of problems reported.
func (e *OutputConfigDiagnosticsError) DiagnosticCount() int {
	return len(e.Diagnostics)
}

func (e *OutputConfigDiagnosticsError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error resolving plugin %s: Configuration had %d diagnostic(s).", e.PluginName, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		fmt.Fprintf(&b, "\n  [%s]: %s", d.PropertyName, d.Message)
	}
	return b.String()
}

// OutputConfigDiagnostics asks the plugin about problems with config. The
// first return is nil when there are none; the error is only for failing
// to ask.
func OutputConfigDiagnostics(
	ctx context.Context,
	pluginName string,
	instance InitializedPlugin,
	config *dprint.FormatConfig,
	env environment.Environment,
) (*OutputConfigDiagnosticsError, error) {
	env.LogVerbose("Getting configuration diagnostics for %s", pluginName)
	diagnostics, err := instance.ConfigDiagnostics(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error getting configuration diagnostics for %s: %w", pluginName, err)
	}
	if len(diagnostics) == 0 {
		return nil, nil //nolint:nilnil // no diagnostics is not an error
	}
	return &OutputConfigDiagnosticsError{PluginName: pluginName, Diagnostics: diagnostics}, nil
}
