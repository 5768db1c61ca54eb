package dprint

// Constants for the dprint WASM ABI
const (
	// PluginSchemaVersion Schema version supported by the host
	PluginSchemaVersion = 4

	// PluginSchemaExport is the export a module must carry to be loaded as a
	// schema version 4 plugin.
	PluginSchemaExport = "dprint_plugin_version_4"

	// HostImportModule is the import namespace the host functions live in.
	HostImportModule = "dprint"

	// FormatResultNoChange Format return values as defined by dprint WASM ABI
	FormatResultNoChange = 0 // No formatting changes needed
	FormatResultChanged  = 1 // Content was formatted and changed
	FormatResultError    = 2 // Formatting error occurred
)

// Global configuration keys shared by every plugin in a scope.
const (
	LineWidthKey   = "lineWidth"
	IndentWidthKey = "indentWidth"
	UseTabsKey     = "useTabs"
	NewLineKindKey = "newLineKind"
)
