package plugins

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mridang/dprint-go/internal/dprint"
)

// MatchingPlugin is what name resolution needs to know about a plugin.
type MatchingPlugin struct {
	Name         string
	FileMatching dprint.FileMatchingInfo
	// Associations replace FileMatching when non-nil.
	Associations []string
}

type associationMatcher struct {
	pluginName string
	includes   []string
	excludes   []string
}

func (m associationMatcher) matches(relPath string) bool {
	matched := false
	for _, pattern := range m.includes {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, pattern := range m.excludes {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return false
		}
	}
	return true
}

// NameResolutionMaps decides which plugins format a file. Association
// patterns win over file names, which win over extensions.
type NameResolutionMaps struct {
	basePath          string
	extensionToPlugin map[string]string
	fileNameToPlugin  map[string]string
	associations      []associationMatcher
}

// NewNameResolutionMaps builds the maps. When two plugins claim the same
// extension or file name the one declared first wins. Association patterns
// are relative to basePath.
func NewNameResolutionMaps(plugins []MatchingPlugin, basePath string) (*NameResolutionMaps, error) {
	maps := &NameResolutionMaps{
		basePath:          basePath,
		extensionToPlugin: map[string]string{},
		fileNameToPlugin:  map[string]string{},
	}
	for _, p := range plugins {
		if p.Associations != nil {
			matcher := associationMatcher{pluginName: p.Name}
			for _, pattern := range p.Associations {
				exclude := strings.HasPrefix(pattern, "!")
				pattern = NormalizePattern(strings.TrimPrefix(pattern, "!"))
				if !doublestar.ValidatePattern(pattern) {
					return nil, fmt.Errorf("invalid association pattern %q for plugin %s", pattern, p.Name)
				}
				if exclude {
					matcher.excludes = append(matcher.excludes, pattern)
				} else {
					matcher.includes = append(matcher.includes, pattern)
				}
			}
			maps.associations = append(maps.associations, matcher)
			continue
		}
		for _, ext := range p.FileMatching.FileExtensions {
			ext = strings.ToLower(strings.TrimPrefix(ext, "."))
			if _, ok := maps.extensionToPlugin[ext]; !ok {
				maps.extensionToPlugin[ext] = p.Name
			}
		}
		for _, name := range p.FileMatching.FileNames {
			name = strings.ToLower(name)
			if _, ok := maps.fileNameToPlugin[name]; !ok {
				maps.fileNameToPlugin[name] = p.Name
			}
		}
	}
	return maps, nil
}

// EmptyNameResolutionMaps matches nothing.
func EmptyNameResolutionMaps() *NameResolutionMaps {
	return &NameResolutionMaps{extensionToPlugin: map[string]string{}, fileNameToPlugin: map[string]string{}}
}

// PluginNames returns every plugin name mentioned in the maps.
func (m *NameResolutionMaps) PluginNames() []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, a := range m.associations {
		add(a.pluginName)
	}
	for _, name := range m.extensionToPlugin {
		add(name)
	}
	for _, name := range m.fileNameToPlugin {
		add(name)
	}
	return out
}

// GetPluginNamesFromFilePath returns the plugins that format filePath, in
// the order they should run. An empty result means no plugin applies.
func (m *NameResolutionMaps) GetPluginNamesFromFilePath(filePath string) []string {
	var names []string
	if len(m.associations) > 0 {
		rel := m.relativePath(filePath)
		for _, a := range m.associations {
			if a.matches(rel) {
				names = append(names, a.pluginName)
			}
		}
	}
	if len(names) > 0 {
		return names
	}
	if name, ok := m.pluginNameFromFileNameOrExt(filePath); ok {
		return []string{name}
	}
	return nil
}

func (m *NameResolutionMaps) pluginNameFromFileNameOrExt(filePath string) (string, bool) {
	fileName := strings.ToLower(filepath.Base(filePath))
	if name, ok := m.fileNameToPlugin[fileName]; ok {
		return name, true
	}
	// longest extension first so "main.tftest.hcl" prefers "tftest.hcl"
	for i := 0; i < len(fileName); i++ {
		if fileName[i] != '.' {
			continue
		}
		if name, ok := m.extensionToPlugin[fileName[i+1:]]; ok {
			return name, true
		}
	}
	return "", false
}

func (m *NameResolutionMaps) relativePath(filePath string) string {
	if m.basePath != "" && filepath.IsAbs(filePath) {
		if rel, err := filepath.Rel(m.basePath, filePath); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(filePath)
}

// NormalizePattern anchors a pattern without a directory component so it
// matches at any depth, the way users expect "*.md" to behave.
func NormalizePattern(pattern string) string {
	pattern = filepath.ToSlash(pattern)
	pattern = strings.TrimPrefix(pattern, "./")
	if !strings.Contains(pattern, "/") {
		return "**/" + pattern
	}
	return pattern
}
