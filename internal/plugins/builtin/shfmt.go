package builtin

import (
	"context"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/plugins"
)

// ShellConfig maps a subset of shfmt's options.
type ShellConfig struct {
	Indent           int    `json:"indent"` // 0 means tabs
	BinaryNextLine   bool   `json:"binaryNextLine"`
	SpaceRedirects   bool   `json:"spaceRedirects"`
	KeepPadding      bool   `json:"keepPadding"`
	FunctionNextLine bool   `json:"functionNextLine"`
	SwitchCaseIndent bool   `json:"switchCaseIndent"`
	KeepComments     bool   `json:"keepComments"`
	Language         string `json:"language"` // auto, posix, bash or mksh
}

func defaultShellConfig(global dprint.GlobalConfiguration) ShellConfig {
	config := ShellConfig{KeepComments: true, Language: "auto"}
	useTabs := global.UseTabs == nil || *global.UseTabs
	if global.IndentWidth != nil && !useTabs {
		config.Indent = int(*global.IndentWidth)
	}
	return config
}

// NewShfmt formats shell scripts with mvdan.cc/sh.
func NewShfmt() plugins.Plugin {
	return &plugin[ShellConfig]{
		info: dprint.PluginInfo{
			Name:           "dprint-plugin-shfmt",
			Version:        Version,
			ConfigKey:      "shfmt",
			FileExtensions: []string{"sh", "bash"},
			FileNames:      []string{},
		},
		license:  "Formatting is performed by mvdan.cc/sh/v3, BSD-3-Clause.",
		defaults: defaultShellConfig,
		format:   formatShell,
	}
}

func formatShell(_ context.Context, request plugins.FormatRequest, config ShellConfig) (string, error) {
	parser := syntax.NewParser(parserOptions(config)...)
	file, err := parser.Parse(strings.NewReader(request.FileText), request.FilePath)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	printer := syntax.NewPrinter(printerOptions(config)...)
	if err := printer.Print(&out, file); err != nil {
		return "", err
	}
	return out.String(), nil
}

func parserOptions(config ShellConfig) []syntax.ParserOption {
	var opts []syntax.ParserOption
	switch strings.ToLower(strings.TrimSpace(config.Language)) {
	case "posix":
		opts = append(opts, syntax.Variant(syntax.LangPOSIX))
	case "bash":
		opts = append(opts, syntax.Variant(syntax.LangBash))
	case "mksh":
		opts = append(opts, syntax.Variant(syntax.LangMirBSDKorn))
	default:
		// auto: the parser's default
	}
	if config.KeepComments {
		opts = append(opts, syntax.KeepComments(true))
	}
	return opts
}

//goland:noinspection GoDeprecation
func printerOptions(config ShellConfig) []syntax.PrinterOption {
	var opts []syntax.PrinterOption
	if config.Indent > 0 {
		opts = append(opts, syntax.Indent(uint(config.Indent))) //nolint:gosec // checked above
	}
	if config.BinaryNextLine {
		opts = append(opts, syntax.BinaryNextLine(true))
	}
	if config.SpaceRedirects {
		opts = append(opts, syntax.SpaceRedirects(true))
	}
	if config.KeepPadding {
		opts = append(opts, syntax.KeepPadding(true)) //nolint:staticcheck // still honored by the printer
	}
	if config.FunctionNextLine {
		opts = append(opts, syntax.FunctionNextLine(true))
	}
	if config.SwitchCaseIndent {
		opts = append(opts, syntax.SwitchCaseIndent(true))
	}
	return opts
}
