package resolution

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/mridang/dprint-go/internal/configuration"
	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/environment"
	"github.com/mridang/dprint-go/internal/paths"
	"github.com/mridang/dprint-go/internal/plugins"
)

// ResolvePluginsOptions tunes scope resolution.
type ResolvePluginsOptions struct {
	// CheckTopLevelUnknownPropertyDiagnostics reports configuration keys
	// no plugin consumed.
	CheckTopLevelUnknownPropertyDiagnostics bool
}

func optionsFromArgs(args configuration.CliArgs) ResolvePluginsOptions {
	// a plugin list on the command line usually narrows the configured
	// plugins, leaving the others' keys unclaimed
	return ResolvePluginsOptions{CheckTopLevelUnknownPropertyDiagnostics: len(args.Plugins) == 0}
}

// ResolvePluginsScopeAndPaths resolves the configuration args point at,
// discovers the files to format, and does the same for every nested
// configuration file found under it. The top level scope is first.
func ResolvePluginsScopeAndPaths(
	ctx context.Context,
	args configuration.CliArgs,
	patterns paths.FilePatternArgs,
	env environment.Environment,
	resolver *plugins.Resolver,
) ([]*PluginsScopeAndPaths, error) {
	r := &scopeAndPathsResolver{
		args:     args,
		patterns: patterns,
		env:      env,
		resolver: resolver,
		options:  optionsFromArgs(args),
	}
	config, err := configuration.ResolveConfigFromArgs(args, env)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, config)
}

type scopeAndPathsResolver struct {
	args     configuration.CliArgs
	patterns paths.FilePatternArgs
	env      environment.Environment
	resolver *plugins.Resolver
	options  ResolvePluginsOptions
}

func (r *scopeAndPathsResolver) resolve(ctx context.Context, config *configuration.ResolvedConfig) ([]*PluginsScopeAndPaths, error) {
	scope, err := ResolvePluginsScopeAndErrIfEmpty(ctx, config, r.env, r.resolver, r.options)
	if err != nil {
		return nil, err
	}
	globOutput, err := paths.GetAndResolveFilePaths(config, r.patterns, scope.NameMaps(), r.env)
	if err != nil {
		return nil, err
	}
	byPlugins, err := paths.GetFilePathsByPlugins(scope.NameMaps(), globOutput.FilePaths)
	if err != nil {
		return nil, err
	}

	result := []*PluginsScopeAndPaths{{Scope: scope, FilePathsByPlugins: byPlugins}}
	for _, configFile := range globOutput.ConfigFiles {
		nested, err := r.resolveSubConfig(ctx, configFile, config)
		if err != nil {
			return nil, err
		}
		result = append(result, nested...)
	}
	return result, nil
}

func (r *scopeAndPathsResolver) resolveSubConfig(ctx context.Context, configFile string, parent *configuration.ResolvedConfig) ([]*PluginsScopeAndPaths, error) {
	r.env.LogVerbose("Analyzing config file %s", configFile)
	resolvedPath, err := r.env.Canonicalize(configFile)
	if err != nil {
		return nil, err
	}
	config, err := configuration.ResolveConfigFromPath(configuration.ResolvedConfigPath{
		ResolvedPath: resolvedPath,
		BasePath:     filepath.Dir(resolvedPath),
	}, r.env)
	if err != nil {
		return nil, err
	}
	if len(r.args.Plugins) > 0 {
		config.Plugins = parent.Plugins
	}
	return r.resolve(ctx, config)
}

// GetPluginsScopeFromArgs resolves the scope of the configuration args
// point at. When there is no usable configuration it returns an empty
// scope instead of failing, so commands that merely inspect plugins still
// work.
func GetPluginsScopeFromArgs(ctx context.Context, args configuration.CliArgs, env environment.Environment, resolver *plugins.Resolver) (*PluginsScope, error) {
	config, err := configuration.ResolveConfigFromArgs(args, env)
	if err != nil {
		env.LogVerbose("Ignoring configuration error: %v", err)
		return emptyPluginsScope(env), nil
	}
	return ResolvePluginsScope(ctx, config, env, resolver, optionsFromArgs(args))
}

// ResolvePluginsScopeAndErrIfEmpty is ResolvePluginsScope, failing with
// ErrNoPluginsFound when config declares no plugins.
func ResolvePluginsScopeAndErrIfEmpty(
	ctx context.Context,
	config *configuration.ResolvedConfig,
	env environment.Environment,
	resolver *plugins.Resolver,
	options ResolvePluginsOptions,
) (*PluginsScope, error) {
	scope, err := ResolvePluginsScope(ctx, config, env, resolver, options)
	if err != nil {
		return nil, err
	}
	if scope.PluginCount() == 0 {
		return nil, ErrNoPluginsFound
	}
	return scope, nil
}

// ResolvePluginsScope loads config's plugins, splits the configuration
// between them, and asks each which files it handles. Plugins are started
// concurrently.
func ResolvePluginsScope(
	ctx context.Context,
	config *configuration.ResolvedConfig,
	env environment.Environment,
	resolver *plugins.Resolver,
	options ResolvePluginsOptions,
) (*PluginsScope, error) {
	wrappers, err := resolver.ResolvePlugins(ctx, config.Plugins)
	if err != nil {
		return nil, err
	}

	configMap := config.ConfigMap.Clone()
	pluginConfigs := make([]configuration.PluginConfig, len(wrappers))
	for i, w := range wrappers {
		pluginConfig, err := configuration.GetPluginConfigMap(w.Info(), configMap)
		if err != nil {
			return nil, err
		}
		pluginConfigs[i] = pluginConfig
	}

	global, err := configuration.GetGlobalConfig(configMap, env, configuration.GetGlobalConfigOptions{
		CheckUnknownPropertyDiagnostics: options.CheckTopLevelUnknownPropertyDiagnostics,
	})
	if err != nil {
		return nil, err
	}

	// ids are handed out before starting so they follow declaration order
	formatConfigs := make([]*dprint.FormatConfig, len(wrappers))
	for i := range wrappers {
		formatConfigs[i] = &dprint.FormatConfig{
			ID:     resolver.NextConfigID(),
			Global: global,
			Raw:    pluginConfigs[i].Properties,
		}
	}

	resolved := make([]*PluginWithConfig, len(wrappers))
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range wrappers {
		i, w := i, w
		g.Go(func() error {
			instance, err := w.Initialize(gctx)
			if err != nil {
				return err
			}
			fileMatching, err := instance.FileMatchingInfo(gctx, formatConfigs[i])
			if err != nil {
				return fmt.Errorf("error getting file matching info for %s: %w", w.Info().Name, err)
			}
			resolved[i] = NewPluginWithConfig(w, pluginConfigs[i].Associations, formatConfigs[i], fileMatching)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NewPluginsScope(env, resolved, config)
}
