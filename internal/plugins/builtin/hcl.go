package builtin

import (
	"context"
	"errors"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"

	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/plugins"
)

// HCLConfig controls the HCL formatter.
type HCLConfig struct {
	// NormalizeExpressions unwraps redundant "${...}" sequences and
	// upgrades legacy quoted variable types, the way terraform fmt does.
	NormalizeExpressions bool `json:"normalizeExpressions"`
}

// NewHCL formats HCL and Terraform files with hclwrite.
func NewHCL() plugins.Plugin {
	return &plugin[HCLConfig]{
		info: dprint.PluginInfo{
			Name:           "dprint-plugin-hcl",
			Version:        Version,
			ConfigKey:      "hcl",
			FileExtensions: []string{"hcl", "tf", "tfvars"},
			FileNames:      []string{},
		},
		license: "Formatting is performed by github.com/hashicorp/hcl/v2, MPL-2.0.",
		defaults: func(dprint.GlobalConfiguration) HCLConfig {
			return HCLConfig{NormalizeExpressions: true}
		},
		format: formatHCL,
	}
}

func formatHCL(_ context.Context, request plugins.FormatRequest, config HCLConfig) (string, error) {
	src := []byte(request.FileText)
	// hclwrite accepts some input the native syntax rejects
	if _, diags := hclsyntax.ParseConfig(src, request.FilePath, hcl.InitialPos); diags.HasErrors() {
		return "", errors.New(diags.Error())
	}
	file, diags := hclwrite.ParseConfig(src, request.FilePath, hcl.InitialPos)
	if diags.HasErrors() {
		return "", errors.New(diags.Error())
	}
	if config.NormalizeExpressions {
		normalizeBody(file.Body(), nil)
	}
	return string(hclwrite.Format(file.Bytes())), nil
}

func normalizeBody(body *hclwrite.Body, blockTypes []string) {
	inVariable := len(blockTypes) == 1 && blockTypes[0] == "variable"
	for name, attr := range body.Attributes() {
		tokens := attr.Expr().BuildTokens(nil)
		if inVariable && name == "type" {
			body.SetAttributeRaw(name, normalizeTypeExpr(tokens))
			continue
		}
		body.SetAttributeRaw(name, unwrapInterpolation(tokens))
	}
	for _, block := range body.Blocks() {
		// rewrites labels in the idiomatic quoted form
		block.SetLabels(block.Labels())
		normalizeBody(block.Body(), append(slices.Clip(blockTypes), block.Type()))
	}
}

// unwrapInterpolation turns "${expr}" into expr when the template holds
// nothing else.
func unwrapInterpolation(tokens hclwrite.Tokens) hclwrite.Tokens {
	// "${", at least one token, "}" and the two quotes
	if len(tokens) < 5 {
		return tokens
	}
	last := len(tokens) - 1
	if tokens[0].Type != hclsyntax.TokenOQuote ||
		tokens[1].Type != hclsyntax.TokenTemplateInterp ||
		tokens[last-1].Type != hclsyntax.TokenTemplateSeqEnd ||
		tokens[last].Type != hclsyntax.TokenCQuote {
		return tokens
	}
	inside := tokens[2 : last-1]
	if !isSingleInterpolation(inside) {
		return tokens
	}

	inside = trimNewlines(inside)
	multiLine := slices.ContainsFunc(inside, func(t *hclwrite.Token) bool { return t.Type == hclsyntax.TokenNewline })
	wrapped := len(inside) > 0 &&
		inside[0].Type == hclsyntax.TokenOParen &&
		inside[len(inside)-1].Type == hclsyntax.TokenCParen
	if !multiLine || wrapped {
		return inside
	}
	// multi-line expressions need parentheses to parse once unwrapped
	out := make(hclwrite.Tokens, 0, len(inside)+2)
	out = append(out, &hclwrite.Token{Type: hclsyntax.TokenOParen, Bytes: []byte("(")})
	out = append(out, inside...)
	return append(out, &hclwrite.Token{Type: hclsyntax.TokenCParen, Bytes: []byte(")")})
}

// isSingleInterpolation reports whether inside is one expression with no
// literal text or further template sequences at the outer quote level.
func isSingleInterpolation(inside hclwrite.Tokens) bool {
	depth := 0
	for _, token := range inside {
		switch {
		case token.Type == hclsyntax.TokenOQuote:
			depth++
		case token.Type == hclsyntax.TokenCQuote:
			depth--
		case depth > 0:
			// nested strings may contain their own templates
		case token.Type == hclsyntax.TokenTemplateInterp,
			token.Type == hclsyntax.TokenTemplateSeqEnd,
			token.Type == hclsyntax.TokenQuotedLit:
			return false
		}
	}
	return true
}

func trimNewlines(tokens hclwrite.Tokens) hclwrite.Tokens {
	start, end := 0, len(tokens)
	for start < end && tokens[start].Type == hclsyntax.TokenNewline {
		start++
	}
	for end > start && tokens[end-1].Type == hclsyntax.TokenNewline {
		end--
	}
	return tokens[start:end]
}

func identToken(name string) *hclwrite.Token {
	return &hclwrite.Token{Type: hclsyntax.TokenIdent, Bytes: []byte(name)}
}

// typeCall builds "collection(element)".
func typeCall(collection *hclwrite.Token, element string) hclwrite.Tokens {
	return hclwrite.Tokens{
		collection,
		{Type: hclsyntax.TokenOParen, Bytes: []byte("(")},
		identToken(element),
		{Type: hclsyntax.TokenCParen, Bytes: []byte(")")},
	}
}

// normalizeTypeExpr gives bare collection types an explicit element type
// and rewrites legacy quoted types such as "string".
func normalizeTypeExpr(tokens hclwrite.Tokens) hclwrite.Tokens {
	switch len(tokens) {
	case 1:
		if tokens[0].Type != hclsyntax.TokenIdent {
			return tokens
		}
		switch string(tokens[0].Bytes) {
		case "list", "map", "set":
			return typeCall(tokens[0], "any")
		}
	case 3:
		if tokens[0].Type != hclsyntax.TokenOQuote ||
			tokens[1].Type != hclsyntax.TokenQuotedLit ||
			tokens[2].Type != hclsyntax.TokenCQuote {
			return tokens
		}
		// legacy collections held strings, so keep that element type
		switch name := string(tokens[1].Bytes); name {
		case "string":
			return hclwrite.Tokens{identToken(name)}
		case "list", "map":
			return typeCall(identToken(name), "string")
		}
	}
	return tokens
}
