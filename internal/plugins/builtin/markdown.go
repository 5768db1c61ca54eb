package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/plugins"
)

// MarkdownConfig controls the markdown plugin.
type MarkdownConfig struct {
	// FormatCodeBlocks sends fenced code blocks to the host for formatting.
	FormatCodeBlocks bool `json:"formatCodeBlocks"`
	// TrailingNewline ensures the document ends with exactly one newline.
	TrailingNewline bool `json:"trailingNewline"`
}

// languageExtensions maps fence info strings to the extension used to pick
// a plugin. Anything not listed is used as the extension directly.
var languageExtensions = map[string]string{ //nolint:gochecknoglobals // lookup table
	"golang":     "go",
	"bash":       "sh",
	"shell":      "sh",
	"zsh":        "sh",
	"terraform":  "tf",
	"markdown":   "md",
	"javascript": "js",
	"typescript": "ts",
}

// NewMarkdown formats the code blocks embedded in markdown documents by
// handing them back to the host.
func NewMarkdown() plugins.Plugin {
	return &plugin[MarkdownConfig]{
		info: dprint.PluginInfo{
			Name:           "dprint-plugin-markdown",
			Version:        Version,
			ConfigKey:      "markdown",
			FileExtensions: []string{"md", "markdown"},
			FileNames:      []string{},
		},
		license: "Markdown is parsed by github.com/yuin/goldmark, MIT.",
		defaults: func(dprint.GlobalConfiguration) MarkdownConfig {
			return MarkdownConfig{FormatCodeBlocks: true, TrailingNewline: true}
		},
		format: formatMarkdown,
	}
}

type codeBlock struct {
	start, stop int
	language    string
	code        string
	line        int
}

func formatMarkdown(ctx context.Context, request plugins.FormatRequest, config MarkdownConfig) (string, error) {
	text := request.FileText
	if config.FormatCodeBlocks && request.OnHostFormat != nil {
		formatted, err := formatCodeBlocks(ctx, request, text)
		if err != nil {
			return "", err
		}
		text = formatted
	}
	if config.TrailingNewline && text != "" {
		text = strings.TrimRight(text, "\r\n") + "\n"
	}
	return text, nil
}

func formatCodeBlocks(ctx context.Context, request plugins.FormatRequest, text string) (string, error) {
	src := []byte(text)
	blocks := findCodeBlocks(src)
	if len(blocks) == 0 {
		return text, nil
	}

	var b strings.Builder
	last := 0
	for _, block := range blocks {
		result, err := request.OnHostFormat.Format(ctx, dprint.HostFormatRequest{
			FilePath:       request.FilePath + "." + block.language,
			FileText:       block.code,
			OverrideConfig: request.OverrideConfig,
		})
		if err != nil {
			return "", fmt.Errorf("error formatting code block on line %d: %w", block.line, err)
		}
		b.WriteString(text[last:block.start])
		if result.Changed {
			code := result.Text
			if code != "" && !strings.HasSuffix(code, "\n") {
				code += "\n"
			}
			b.WriteString(code)
		} else {
			b.WriteString(block.code)
		}
		last = block.stop
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// findCodeBlocks returns the fenced code blocks whose content is one
// contiguous span of src, in document order. Blocks inside containers such
// as lists carry prefixes on every line and are skipped.
func findCodeBlocks(src []byte) []codeBlock {
	doc := goldmark.New().Parser().Parse(gmtext.NewReader(src))
	var blocks []codeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		language := strings.ToLower(string(fenced.Language(src)))
		lines := fenced.Lines()
		if language == "" || lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		if ext, ok := languageExtensions[language]; ok {
			language = ext
		}

		var code strings.Builder
		for i := 0; i < lines.Len(); i++ {
			segment := lines.At(i)
			code.Write(segment.Value(src))
		}
		start, stop := lines.At(0).Start, lines.At(lines.Len()-1).Stop
		if string(src[start:stop]) != code.String() {
			return ast.WalkSkipChildren, nil
		}
		blocks = append(blocks, codeBlock{
			start:    start,
			stop:     stop,
			language: language,
			code:     code.String(),
			line:     strings.Count(string(src[:start]), "\n") + 1,
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}
