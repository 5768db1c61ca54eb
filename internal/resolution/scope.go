package resolution

import (
	"context"
	"fmt"
	"strings"

	"github.com/mridang/dprint-go/internal/configuration"
	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/environment"
	"github.com/mridang/dprint-go/internal/hasher"
	"github.com/mridang/dprint-go/internal/paths"
	"github.com/mridang/dprint-go/internal/plugins"
)

// PluginsScope is every plugin of one configuration file, bound to that
// file's settings. It formats files and serves plugins' requests to format
// embedded content.
type PluginsScope struct {
	env    environment.Environment
	config *configuration.ResolvedConfig

	plugins []*PluginWithConfig
	byName  map[string]*PluginWithConfig

	nameMaps *plugins.NameResolutionMaps
}

// NewPluginsScope creates a scope. config may be nil for a scope that was
// built without a configuration file.
func NewPluginsScope(env environment.Environment, pluginsWithConfig []*PluginWithConfig, config *configuration.ResolvedConfig) (*PluginsScope, error) {
	basePath := ""
	if config != nil {
		basePath = config.BasePath
	}
	matching := make([]plugins.MatchingPlugin, 0, len(pluginsWithConfig))
	byName := make(map[string]*PluginWithConfig, len(pluginsWithConfig))
	for _, p := range pluginsWithConfig {
		name := p.Name()
		if _, ok := byName[name]; ok {
			return nil, fmt.Errorf("plugin %s was specified more than once", name)
		}
		byName[name] = p
		matching = append(matching, plugins.MatchingPlugin{
			Name:         name,
			FileMatching: p.FileMatching,
			Associations: p.Associations,
		})
	}
	nameMaps, err := plugins.NewNameResolutionMaps(matching, basePath)
	if err != nil {
		return nil, err
	}
	return &PluginsScope{
		env:      env,
		config:   config,
		plugins:  pluginsWithConfig,
		byName:   byName,
		nameMaps: nameMaps,
	}, nil
}

func emptyPluginsScope(env environment.Environment) *PluginsScope {
	return &PluginsScope{
		env:      env,
		byName:   map[string]*PluginWithConfig{},
		nameMaps: plugins.EmptyNameResolutionMaps(),
	}
}

// Config is the configuration the scope came from. Nil for a scope built
// without one.
func (s *PluginsScope) Config() *configuration.ResolvedConfig {
	return s.config
}

// NameMaps decides which plugins format a given path.
func (s *PluginsScope) NameMaps() *plugins.NameResolutionMaps {
	return s.nameMaps
}

// Plugins returns the plugins in declaration order.
func (s *PluginsScope) Plugins() []*PluginWithConfig {
	return s.plugins
}

// PluginCount is the number of plugins.
func (s *PluginsScope) PluginCount() int {
	return len(s.plugins)
}

// ProcessPluginCount is the number of plugins that run as separate
// processes.
func (s *PluginsScope) ProcessPluginCount() int {
	n := 0
	for _, p := range s.plugins {
		if p.Plugin.IsProcessPlugin() {
			n++
		}
	}
	return n
}

// GetPlugin looks a plugin up by name.
func (s *PluginsScope) GetPlugin(name string) (*PluginWithConfig, error) {
	p, ok := s.byName[name]
	if !ok {
		return nil, &UnknownPluginError{Name: name}
	}
	return p, nil
}

// PluginsHash summarizes every plugin's identity and configuration. Two
// scopes with equal hashes format identically.
func (s *PluginsScope) PluginsHash() uint64 {
	h := hasher.New()
	for _, p := range s.plugins {
		p.IncrementalHash(h)
	}
	return h.Finish()
}

// CreateHostFormatCallback returns the capability handed to plugins so they
// can format embedded content with this scope.
func (s *PluginsScope) CreateHostFormatCallback() dprint.HostFormatter {
	return dprint.HostFormatFunc(s.Format)
}

// Format runs request through the pipeline of plugins that match its path.
// Each plugin receives the previous plugin's output. The result is
// unchanged unless at least one plugin changed the text.
func (s *PluginsScope) Format(ctx context.Context, request dprint.HostFormatRequest) (dprint.FormatResult, error) {
	names := s.nameMaps.GetPluginNamesFromFilePath(request.FilePath)
	if s.env.IsVerbose() {
		s.env.LogVerbose("Host formatting %s - File length: %d - Plugins: [%s] - Range: %s",
			request.FilePath, len(request.FileText), strings.Join(names, ", "), formatRange(request.Range))
	}

	text := request.FileText
	changed := false
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return dprint.FormatResult{}, err
		}
		plugin, err := s.GetPlugin(name)
		if err != nil {
			return dprint.FormatResult{}, err
		}
		result, err := plugin.GetOrCreateCheckingConfigDiagnostics(ctx, s.env)
		if err != nil {
			return dprint.FormatResult{}, &CriticalFormatError{Err: err}
		}
		if result.HadDiagnostics() {
			return dprint.FormatResult{}, &ConfigDiagnosticsError{PluginName: name, Count: result.DiagnosticCount}
		}

		formatted, err := result.Plugin.FormatText(ctx, InitializedPluginWithConfigFormatRequest{
			FilePath:       request.FilePath,
			FileText:       text,
			Range:          request.Range,
			OverrideConfig: request.OverrideConfig,
			OnHostFormat:   s.CreateHostFormatCallback(),
		})
		if err != nil {
			return dprint.FormatResult{}, err
		}
		if formatted.Changed {
			text = formatted.Text
			changed = true
		}
	}

	if !changed {
		return dprint.Unchanged(), nil
	}
	return dprint.Changed(text), nil
}

func formatRange(r *dprint.FormatRange) string {
	if r == nil {
		return "None"
	}
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

// PluginsScopeAndPaths is a scope together with the files it formats,
// grouped by plugin pipeline.
type PluginsScopeAndPaths struct {
	Scope              *PluginsScope
	FilePathsByPlugins paths.FilePathsByPlugins
}
