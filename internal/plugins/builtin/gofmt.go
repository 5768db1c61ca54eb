package builtin

import (
	"context"
	gofmt "go/format"

	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/plugins"
)

// GoConfig has no options; gofmt is not configurable.
type GoConfig struct{}

// NewGofmt formats Go source with the standard library formatter.
func NewGofmt() plugins.Plugin {
	return &plugin[GoConfig]{
		info: dprint.PluginInfo{
			Name:           "dprint-plugin-gofmt",
			Version:        Version,
			ConfigKey:      "gofmt",
			FileExtensions: []string{"go"},
			FileNames:      []string{},
		},
		license: "Formatting is performed by the Go standard library (go/format), BSD-3-Clause.",
		defaults: func(dprint.GlobalConfiguration) GoConfig {
			return GoConfig{}
		},
		format: formatGo,
	}
}

func formatGo(_ context.Context, request plugins.FormatRequest, _ GoConfig) (string, error) {
	formatted, err := gofmt.Source([]byte(request.FileText))
	if err != nil {
		return "", err
	}
	return string(formatted), nil
}
