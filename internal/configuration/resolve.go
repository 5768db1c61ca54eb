// Package configuration reads dprint configuration files into a
// ResolvedConfig and splits it into per-plugin and global settings.
package configuration

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mridang/dprint-go/internal/environment"
)

// ConfigFileNames are the names a configuration file may have, in lookup
// order.
var ConfigFileNames = []string{ //nolint:gochecknoglobals // constant list
	"dprint.json",
	".dprint.json",
}

// ErrNoConfigFile is returned when no configuration file could be found
// walking up from the working directory.
var ErrNoConfigFile = errors.New("could not find a configuration file; create a dprint.json or pass one with --config")

// CliArgs are the parts of the command line configuration resolution cares
// about.
type CliArgs struct {
	// ConfigPath is an explicit configuration file. Empty means search.
	ConfigPath string
	// Plugins overrides the configuration's plugin list when non-empty.
	Plugins []string
}

// ResolvedConfigPath points at a configuration file on disk.
type ResolvedConfigPath struct {
	ResolvedPath string
	BasePath     string
}

// ResolvedConfig is a parsed configuration file. ConfigMap still holds the
// global and per-plugin keys; GetPluginConfigMap and GetGlobalConfig consume
// them.
type ResolvedConfig struct {
	ResolvedPath string
	BasePath     string
	// Plugins are plugin references in declaration order.
	Plugins []string
	// Includes is nil when the file did not specify any.
	Includes    []string
	Excludes    []string
	Incremental *bool
	ConfigMap   *ConfigMap
}

// IsIncremental reports whether the incremental cache should be used.
// It defaults to on.
func (c *ResolvedConfig) IsIncremental() bool {
	return c.Incremental == nil || *c.Incremental
}

// ResolveConfigFromArgs finds and parses the configuration the command line
// points at, then applies the plugin override.
func ResolveConfigFromArgs(args CliArgs, env environment.Environment) (*ResolvedConfig, error) {
	configPath, err := resolveConfigPath(args, env)
	if err != nil {
		return nil, err
	}
	config, err := ResolveConfigFromPath(configPath, env)
	if err != nil {
		return nil, err
	}
	if len(args.Plugins) > 0 {
		cwd, err := env.Cwd()
		if err != nil {
			return nil, err
		}
		config.Plugins = resolvePluginReferences(cwd, args.Plugins)
	}
	return config, nil
}

func resolveConfigPath(args CliArgs, env environment.Environment) (ResolvedConfigPath, error) {
	if args.ConfigPath != "" {
		path, err := env.Canonicalize(args.ConfigPath)
		if err != nil {
			return ResolvedConfigPath{}, err
		}
		return ResolvedConfigPath{ResolvedPath: path, BasePath: filepath.Dir(path)}, nil
	}
	cwd, err := env.Cwd()
	if err != nil {
		return ResolvedConfigPath{}, err
	}
	path, ok := FindConfigFile(cwd, env)
	if !ok {
		return ResolvedConfigPath{}, ErrNoConfigFile
	}
	return ResolvedConfigPath{ResolvedPath: path, BasePath: filepath.Dir(path)}, nil
}

// FindConfigFile looks for a configuration file in dir and its ancestors.
func FindConfigFile(dir string, env environment.Environment) (string, bool) {
	for {
		if path, ok := ConfigFileInDir(dir, env); ok {
			return path, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// ConfigFileInDir returns the configuration file directly inside dir.
func ConfigFileInDir(dir string, env environment.Environment) (string, bool) {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if info, err := env.Fs().Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// IsConfigFileName reports whether name is one of ConfigFileNames.
func IsConfigFileName(name string) bool {
	for _, n := range ConfigFileNames {
		if n == name {
			return true
		}
	}
	return false
}

// ResolveConfigFromPath reads and parses the configuration file at path.
func ResolveConfigFromPath(path ResolvedConfigPath, env environment.Environment) (*ResolvedConfig, error) {
	text, err := env.ReadFile(path.ResolvedPath)
	if err != nil {
		return nil, err
	}
	config, err := parseResolvedConfig(path, text)
	if err != nil {
		return nil, fmt.Errorf("error parsing configuration file %s: %w", path.ResolvedPath, err)
	}
	return config, nil
}

func parseResolvedConfig(path ResolvedConfigPath, text string) (*ResolvedConfig, error) {
	configMap, err := ParseConfigMap(text)
	if err != nil {
		return nil, err
	}
	config := &ResolvedConfig{
		ResolvedPath: path.ResolvedPath,
		BasePath:     path.BasePath,
		ConfigMap:    configMap,
	}

	configMap.Remove("$schema")
	if _, ok := configMap.Remove("extends"); ok {
		return nil, errors.New("the 'extends' property is not supported")
	}
	if value, ok := configMap.Remove("plugins"); ok {
		refs, err := stringSlice("plugins", value)
		if err != nil {
			return nil, err
		}
		config.Plugins = resolvePluginReferences(path.BasePath, refs)
	}
	if value, ok := configMap.Remove("includes"); ok {
		if config.Includes, err = stringSlice("includes", value); err != nil {
			return nil, err
		}
	}
	if value, ok := configMap.Remove("excludes"); ok {
		if config.Excludes, err = stringSlice("excludes", value); err != nil {
			return nil, err
		}
	}
	if value, ok := configMap.Remove("incremental"); ok {
		b, isBool := value.(bool)
		if !isBool {
			return nil, errors.New("expected 'incremental' to be a boolean")
		}
		config.Incremental = &b
	}
	return config, nil
}

// resolvePluginReferences makes relative file references absolute against
// base. URLs and builtin references are left alone.
func resolvePluginReferences(base string, refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		switch {
		case strings.Contains(ref, "://"), strings.HasPrefix(ref, "builtin:"), filepath.IsAbs(ref):
			out = append(out, ref)
		default:
			out = append(out, filepath.Join(base, ref))
		}
	}
	return out
}
