package configuration

import (
	"fmt"
	"strings"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/environment"
)

// PluginConfig is the slice of the configuration file belonging to a
// single plugin.
type PluginConfig struct {
	// Associations override the plugin's default file matching. Nil when
	// not specified.
	Associations []string
	Locked       bool
	Properties   dprint.ConfigKeyMap
}

// GetPluginConfigMap removes the plugin's object from configMap and splits
// out the host-level keys.
func GetPluginConfigMap(info dprint.PluginInfo, configMap *ConfigMap) (PluginConfig, error) {
	value, ok := configMap.Remove(info.ConfigKey)
	if !ok {
		return PluginConfig{Properties: dprint.ConfigKeyMap{}}, nil
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return PluginConfig{}, fmt.Errorf("expected the configuration property '%s' to be an object", info.ConfigKey)
	}

	config := PluginConfig{Properties: dprint.ConfigKeyMap{}}
	for key, v := range obj {
		switch key {
		case "associations":
			associations, err := stringSlice(info.ConfigKey+".associations", v)
			if err != nil {
				return PluginConfig{}, err
			}
			config.Associations = associations
		case "locked":
			locked, isBool := v.(bool)
			if !isBool {
				return PluginConfig{}, fmt.Errorf("expected '%s.locked' to be a boolean", info.ConfigKey)
			}
			config.Locked = locked
		default:
			config.Properties[key] = v
		}
	}
	return config, nil
}

// GetGlobalConfigOptions tunes GetGlobalConfig.
type GetGlobalConfigOptions struct {
	// CheckUnknownPropertyDiagnostics reports keys no plugin consumed.
	// Callers turn this off when the plugin list was narrowed on the
	// command line, since the other plugins' keys are then expected.
	CheckUnknownPropertyDiagnostics bool
}

// DiagnosticsError is returned when the global configuration had problems.
// The problems themselves were already written to stderr.
type DiagnosticsError struct {
	Count int
}

func (e *DiagnosticsError) Error() string {
	return fmt.Sprintf("Had %d config diagnostic(s).", e.Count)
}

// GetGlobalConfig consumes the global keys from configMap. Whatever is left
// afterwards was not claimed by any plugin.
func GetGlobalConfig(configMap *ConfigMap, env environment.Environment, opts GetGlobalConfigOptions) (dprint.GlobalConfiguration, error) {
	var global dprint.GlobalConfiguration
	var diagnostics []dprint.ConfigurationDiagnostic
	addDiagnostic := func(key, message string) {
		diagnostics = append(diagnostics, dprint.ConfigurationDiagnostic{PropertyName: key, Message: message})
	}

	if value, ok := configMap.Remove(dprint.LineWidthKey); ok {
		if n, isInt := value.(int64); isInt && n > 0 && n <= 1<<31 {
			width := uint32(n)
			global.LineWidth = &width
		} else {
			addDiagnostic(dprint.LineWidthKey, "Expected a positive integer.")
		}
	}
	if value, ok := configMap.Remove(dprint.IndentWidthKey); ok {
		if n, isInt := value.(int64); isInt && n >= 0 && n <= 255 {
			width := uint8(n)
			global.IndentWidth = &width
		} else {
			addDiagnostic(dprint.IndentWidthKey, "Expected an integer between 0 and 255.")
		}
	}
	if value, ok := configMap.Remove(dprint.UseTabsKey); ok {
		if b, isBool := value.(bool); isBool {
			global.UseTabs = &b
		} else {
			addDiagnostic(dprint.UseTabsKey, "Expected a boolean.")
		}
	}
	if value, ok := configMap.Remove(dprint.NewLineKindKey); ok {
		switch s, _ := value.(string); s {
		case "auto", "lf", "crlf", "system":
			global.NewLineKind = s
		default:
			addDiagnostic(dprint.NewLineKindKey, "Expected one of: auto, lf, crlf, system.")
		}
	}

	if opts.CheckUnknownPropertyDiagnostics {
		for _, key := range configMap.Keys() {
			addDiagnostic(key, "Unknown property in configuration.")
		}
	}

	if len(diagnostics) > 0 {
		for _, d := range diagnostics {
			env.LogStderr(fmt.Sprintf("[%s]: %s", d.PropertyName, d.Message))
		}
		return global, &DiagnosticsError{Count: len(diagnostics)}
	}
	return global, nil
}

// ResolvedPluginConfig is one plugin's resolved configuration as the
// plugin itself reports it.
type ResolvedPluginConfig struct {
	ConfigKey string
	// JSON is the plugin's resolved configuration document.
	JSON string
}

// RenderResolvedConfig builds a single pretty printed JSON object keyed by
// each plugin's config key.
func RenderResolvedConfig(configs []ResolvedPluginConfig) (string, error) {
	doc := "{}"
	for _, c := range configs {
		raw := strings.TrimSpace(c.JSON)
		if raw == "" {
			raw = "{}"
		}
		var err error
		doc, err = sjson.SetRaw(doc, escapePathKey(c.ConfigKey), raw)
		if err != nil {
			return "", fmt.Errorf("error rendering configuration for '%s': %w", c.ConfigKey, err)
		}
	}
	return string(pretty.Pretty([]byte(doc))), nil
}

// escapePathKey escapes the characters sjson treats as path syntax.
func escapePathKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
