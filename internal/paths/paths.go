// Package paths discovers the files a configuration governs and groups
// them by the plugins that will format them.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/mridang/dprint-go/internal/configuration"
	"github.com/mridang/dprint-go/internal/environment"
	"github.com/mridang/dprint-go/internal/plugins"
)

// defaultExcludes are never walked into.
var defaultExcludes = []string{"**/.git"} //nolint:gochecknoglobals // constant list

const nodeModulesPattern = "**/node_modules"

// FilePatternArgs are the file selection flags given on the command line.
type FilePatternArgs struct {
	// IncludePatterns replace the configuration's includes when non-empty.
	// Relative patterns are relative to the working directory.
	IncludePatterns  []string
	ExcludePatterns  []string
	AllowNodeModules bool
}

// GlobOutput is the result of walking one configuration's directory.
type GlobOutput struct {
	FilePaths []string
	// ConfigFiles are nested configuration files. Their directories were
	// not walked; each becomes its own scope.
	ConfigFiles []string
}

type matcher struct {
	includes []string
	excludes []string
	// byPlugins is used when there are no include patterns at all.
	byPlugins *plugins.NameResolutionMaps
}

func (m *matcher) isExcluded(path string) bool {
	for _, pattern := range m.excludes {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

func (m *matcher) isIncluded(path string) bool {
	if len(m.includes) == 0 {
		return len(m.byPlugins.GetPluginNamesFromFilePath(path)) > 0
	}
	for _, pattern := range m.includes {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

// GetAndResolveFilePaths walks config's base directory and returns the
// files to format. Files the plugins in nameMaps do not recognize are only
// returned when include patterns ask for them explicitly.
func GetAndResolveFilePaths(
	config *configuration.ResolvedConfig,
	patterns FilePatternArgs,
	nameMaps *plugins.NameResolutionMaps,
	env environment.Environment,
) (GlobOutput, error) {
	cwd, err := env.Cwd()
	if err != nil {
		return GlobOutput{}, err
	}
	m := &matcher{byPlugins: nameMaps}
	if len(patterns.IncludePatterns) > 0 {
		m.includes = absolutePatterns(cwd, patterns.IncludePatterns)
	} else {
		m.includes = absolutePatterns(config.BasePath, config.Includes)
	}
	m.excludes = append(m.excludes, absolutePatterns(config.BasePath, config.Excludes)...)
	m.excludes = append(m.excludes, absolutePatterns(cwd, patterns.ExcludePatterns)...)
	m.excludes = append(m.excludes, absolutePatterns(config.BasePath, defaultExcludes)...)
	if !patterns.AllowNodeModules {
		m.excludes = append(m.excludes, absolutePatterns(config.BasePath, []string{nodeModulesPattern})...)
	}
	for _, pattern := range append(slices.Clone(m.includes), m.excludes...) {
		if !doublestar.ValidatePattern(pattern) {
			return GlobOutput{}, fmt.Errorf("invalid file pattern: %s", pattern)
		}
	}

	env.LogVerbose("Globbing %s with includes %v and excludes %v", config.BasePath, m.includes, m.excludes)

	var output GlobOutput
	err = afero.Walk(env.Fs(), config.BasePath, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		slashPath := filepath.ToSlash(path)
		if info.IsDir() {
			if path == config.BasePath {
				return nil
			}
			if m.isExcluded(slashPath) {
				return filepath.SkipDir
			}
			if configFile, ok := configuration.ConfigFileInDir(path, env); ok {
				output.ConfigFiles = append(output.ConfigFiles, configFile)
				return filepath.SkipDir
			}
			return nil
		}
		if m.isExcluded(slashPath) || !m.isIncluded(slashPath) {
			return nil
		}
		output.FilePaths = append(output.FilePaths, path)
		return nil
	})
	if err != nil {
		return GlobOutput{}, fmt.Errorf("error walking %s: %w", config.BasePath, err)
	}
	slices.Sort(output.FilePaths)
	return output, nil
}

func absolutePatterns(base string, patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if filepath.IsAbs(pattern) {
			out = append(out, filepath.ToSlash(pattern))
			continue
		}
		normalized := plugins.NormalizePattern(pattern)
		out = append(out, strings.TrimSuffix(filepath.ToSlash(base), "/")+"/"+normalized)
	}
	return out
}
