package resolution

import (
	"errors"
	"fmt"
)

// ErrNoPluginsFound is returned when a configuration resolves to no plugins.
var ErrNoPluginsFound = errors.New("No formatting plugins found. Ensure at least one is specified in the 'plugins' array of the configuration file.") //nolint:revive,staticcheck // user facing sentence

// ConfigDiagnosticsError is returned by Format when a plugin in the pipeline
// has configuration problems. The problems were logged when first found.
type ConfigDiagnosticsError struct {
	PluginName string
	Count      int
}

func (e *ConfigDiagnosticsError) Error() string {
	return fmt.Sprintf("Had %d configuration errors.", e.Count)
}

// CriticalFormatError means a plugin could not be brought into a state
// where it can format at all. Callers should not keep sending it files.
type CriticalFormatError struct {
	Err error
}

func (e *CriticalFormatError) Error() string {
	return e.Err.Error()
}

func (e *CriticalFormatError) Unwrap() error {
	return e.Err
}

// IsCriticalFormatError reports whether err is or wraps a CriticalFormatError.
func IsCriticalFormatError(err error) bool {
	var critical *CriticalFormatError
	return errors.As(err, &critical)
}

// UnknownPluginError means the name resolution maps pointed at a plugin the
// scope does not have. The maps are built from the same plugins, so this is
// a bug in the host rather than a user error.
type UnknownPluginError struct {
	Name string
}

func (e *UnknownPluginError) Error() string {
	return fmt.Sprintf("expected to find plugin in collection: %s", e.Name)
}
