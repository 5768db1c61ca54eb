package dprint

// PluginInfo represents the JSON structure returned by get_plugin_info.
// See: https://dprint.dev/plugins/wasm/#get_plugin_info
type PluginInfo struct {
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	ConfigKey       string   `json:"configKey"`
	FileExtensions  []string `json:"fileExtensions"`
	FileNames       []string `json:"fileNames"`
	HelpURL         string   `json:"helpUrl"`
	ConfigSchemaURL string   `json:"configSchemaUrl"`
}

// FileMatchingInfo represents the JSON structure returned by
// get_config_file_matching.
type FileMatchingInfo struct {
	FileExtensions []string `json:"fileExtensions"`
	FileNames      []string `json:"fileNames"`
}

// ConfigurationDiagnostic is a single problem a plugin found with the
// configuration it was given.
// See: https://dprint.dev/plugins/wasm/#get_config_diagnostics
type ConfigurationDiagnostic struct {
	PropertyName string `json:"propertyName"`
	Message      string `json:"message"`
}

// FormatRange is a byte range within the file text. A nil *FormatRange
// means the whole file.
type FormatRange struct {
	Start int
	End   int
}
