package paths

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mridang/dprint-go/internal/plugins"
)

const pluginNamesSeparator = "\x00"

// PluginNames is an ordered list of plugin names usable as a map key.
type PluginNames string

// NewPluginNames joins names into a key.
func NewPluginNames(names []string) PluginNames {
	return PluginNames(strings.Join(names, pluginNamesSeparator))
}

// Names splits the key back into the ordered names.
func (p PluginNames) Names() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), pluginNamesSeparator)
}

func (p PluginNames) String() string {
	return strings.Join(p.Names(), ", ")
}

// NoPluginsForFileError is returned when a discovered file has no plugin.
type NoPluginsForFileError struct {
	Path string
}

func (e *NoPluginsForFileError) Error() string {
	return fmt.Sprintf("No formatting plugins found for file: %s", e.Path)
}

// FilePathsByPlugins groups file paths by the exact plugin pipeline that
// formats them.
type FilePathsByPlugins map[PluginNames][]string

// SortedKeys returns the keys in a stable order.
func (f FilePathsByPlugins) SortedKeys() []PluginNames {
	keys := make([]PluginNames, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// FileCount is the total number of paths.
func (f FilePathsByPlugins) FileCount() int {
	n := 0
	for _, paths := range f {
		n += len(paths)
	}
	return n
}

// GetFilePathsByPlugins partitions filePaths. It fails on the first file no
// plugin claims.
func GetFilePathsByPlugins(nameMaps *plugins.NameResolutionMaps, filePaths []string) (FilePathsByPlugins, error) {
	result := FilePathsByPlugins{}
	for _, path := range filePaths {
		names := nameMaps.GetPluginNamesFromFilePath(path)
		if len(names) == 0 {
			return nil, &NoPluginsForFileError{Path: path}
		}
		key := NewPluginNames(names)
		result[key] = append(result[key], path)
	}
	return result, nil
}
