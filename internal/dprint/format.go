package dprint

import "context"

// HostFormatRequest asks the host to format some text. Plugins issue these
// for embedded content, so FilePath is often a virtual path whose extension
// only selects the plugin.
type HostFormatRequest struct {
	FilePath       string
	FileText       string
	Range          *FormatRange
	OverrideConfig ConfigKeyMap
}

// FormatResult is the outcome of a successful format. Changed is false when
// no formatter produced new text; Text is then meaningless.
type FormatResult struct {
	Text    string
	Changed bool
}

// Unchanged reports that nothing changed.
func Unchanged() FormatResult {
	return FormatResult{}
}

// Changed reports new text.
func Changed(text string) FormatResult {
	return FormatResult{Text: text, Changed: true}
}

// HostFormatter is the capability a plugin uses to delegate formatting back
// into the scope that is formatting it. The context carries cancellation.
type HostFormatter interface {
	Format(ctx context.Context, request HostFormatRequest) (FormatResult, error)
}

// HostFormatFunc adapts a function to HostFormatter.
type HostFormatFunc func(ctx context.Context, request HostFormatRequest) (FormatResult, error)

// Format calls f.
func (f HostFormatFunc) Format(ctx context.Context, request HostFormatRequest) (FormatResult, error) {
	return f(ctx, request)
}

// NoopHostFormatter never changes anything. Useful where a plugin is called
// outside of any scope.
var NoopHostFormatter HostFormatter = HostFormatFunc( //nolint:gochecknoglobals // stateless
	func(context.Context, HostFormatRequest) (FormatResult, error) {
		return Unchanged(), nil
	},
)
