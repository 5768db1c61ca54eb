package wasm_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/mridang/dprint-go/internal/configuration"
	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/environment"
	"github.com/mridang/dprint-go/internal/paths"
	"github.com/mridang/dprint-go/internal/plugins"
	"github.com/mridang/dprint-go/internal/resolution"
	"github.com/mridang/dprint-go/internal/wasm"
)

const (
	pluginInfoJSON   = `{"name":"test-wasm","version":"1.2.3","configKey":"test","fileExtensions":["txt"],"fileNames":[]}`
	diagnosticsJSON  = `[{"propertyName":"test","message":"Unsupported."}]`
	fileMatchingJSON = `{"fileExtensions":["txt"],"fileNames":[]}`
	licenseText      = "MIT License"
	errorText        = "bad input"
	embeddedPath     = "embedded.txt"
)

func watString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// testPluginWat is a schema version 4 plugin. It upper cases a leading
// lowercase letter, fails on a leading '!', checks for cancellation on a
// leading '~', and hands the rest of the text to the host on a leading '@'.
// Any plugin property produces a diagnostic.
func testPluginWat() string {
	return fmt.Sprintf(`(module
  (import "dprint" "host_write_buffer" (func $host_write_buffer (param i32)))
  (import "dprint" "host_format" (func $host_format (param i32 i32 i32 i32 i32 i32 i32 i32) (result i32)))
  (import "dprint" "host_get_formatted_text" (func $host_get_formatted_text (result i32)))
  (import "dprint" "host_get_error_text" (func $host_get_error_text (result i32)))
  (import "dprint" "host_has_cancelled" (func $host_has_cancelled (result i32)))
  (memory (export "memory") 2)
  (data (i32.const 0) "%s")
  (data (i32.const 512) "%s")
  (data (i32.const 600) "%s")
  (data (i32.const 640) "[]")
  (data (i32.const 650) "%s")
  (data (i32.const 768) "%s")
  (data (i32.const 896) "%s")
  (global $ptr (mut i32) (i32.const 0))
  (global $len (mut i32) (i32.const 0))
  (global $next (mut i32) (i32.const 4096))
  (global $cfgPtr (mut i32) (i32.const 0))
  (global $cfgLen (mut i32) (i32.const 0))
  (global $outPtr (mut i32) (i32.const 0))
  (global $outLen (mut i32) (i32.const 0))
  (global $errPtr (mut i32) (i32.const 0))
  (global $errLen (mut i32) (i32.const 0))
  (func $alloc (param $size i32) (result i32)
    (local $p i32)
    (local.set $p (global.get $next))
    (global.set $next (i32.add (global.get $next) (local.get $size)))
    (local.get $p))
  (func (export "dprint_plugin_version_4") (result i32) (i32.const 4))
  (func (export "get_shared_bytes_ptr") (result i32) (global.get $ptr))
  (func (export "clear_shared_bytes") (param $size i32) (result i32)
    (global.set $ptr (call $alloc (local.get $size)))
    (global.set $len (local.get $size))
    (global.get $ptr))
  (func (export "get_plugin_info") (result i32)
    (global.set $ptr (i32.const 0))
    (i32.const %d))
  (func (export "get_license_text") (result i32)
    (global.set $ptr (i32.const 896))
    (i32.const %d))
  (func (export "register_config") (param i32)
    (global.set $cfgPtr (global.get $ptr))
    (global.set $cfgLen (global.get $len)))
  (func (export "release_config") (param i32))
  (func (export "get_config_diagnostics") (param i32) (result i32)
    (if (result i32) (i32.eq (i32.load8_u (i32.add (global.get $cfgPtr) (i32.const 11))) (i32.const 125))
      (then (global.set $ptr (i32.const 640)) (i32.const 2))
      (else (global.set $ptr (i32.const 650)) (i32.const %d))))
  (func (export "get_resolved_config") (param i32) (result i32)
    (global.set $ptr (global.get $cfgPtr))
    (global.get $cfgLen))
  (func (export "get_config_file_matching") (param i32) (result i32)
    (global.set $ptr (i32.const 768))
    (i32.const %d))
  (func (export "set_file_path"))
  (func (export "set_override_config"))
  (func (export "get_formatted_text") (result i32)
    (global.set $ptr (global.get $outPtr))
    (global.get $outLen))
  (func (export "get_error_text") (result i32)
    (global.set $ptr (global.get $errPtr))
    (global.get $errLen))
  (func (export "format") (param $id i32) (result i32)
    (local $first i32) (local $r i32) (local $size i32) (local $dst i32)
    (if (i32.eqz (global.get $len)) (then (return (i32.const 0))))
    (local.set $first (i32.load8_u (global.get $ptr)))
    (if (i32.eq (local.get $first) (i32.const 33))
      (then
        (global.set $errPtr (i32.const 512))
        (global.set $errLen (i32.const %d))
        (return (i32.const 2))))
    (if (i32.eq (local.get $first) (i32.const 126))
      (then
        (if (call $host_has_cancelled)
          (then
            (global.set $errPtr (i32.const 512))
            (global.set $errLen (i32.const %d))
            (return (i32.const 2))))
        (return (i32.const 0))))
    (if (i32.eq (local.get $first) (i32.const 64))
      (then
        (local.set $r (call $host_format
          (i32.const 600) (i32.const %d)
          (i32.const 0) (i32.sub (global.get $len) (i32.const 1))
          (i32.const 0) (i32.const 0)
          (i32.add (global.get $ptr) (i32.const 1)) (i32.sub (global.get $len) (i32.const 1))))
        (if (i32.eq (local.get $r) (i32.const 1))
          (then
            (local.set $size (call $host_get_formatted_text))
            (local.set $dst (call $alloc (local.get $size)))
            (call $host_write_buffer (local.get $dst))
            (global.set $outPtr (local.get $dst))
            (global.set $outLen (local.get $size))
            (return (i32.const 1))))
        (if (i32.eq (local.get $r) (i32.const 2))
          (then
            (local.set $size (call $host_get_error_text))
            (local.set $dst (call $alloc (local.get $size)))
            (call $host_write_buffer (local.get $dst))
            (global.set $errPtr (local.get $dst))
            (global.set $errLen (local.get $size))
            (return (i32.const 2))))
        (return (i32.const 0))))
    (if (i32.and
          (i32.ge_u (local.get $first) (i32.const 97))
          (i32.le_u (local.get $first) (i32.const 122)))
      (then
        (i32.store8 (global.get $ptr) (i32.sub (local.get $first) (i32.const 32)))
        (global.set $outPtr (global.get $ptr))
        (global.set $outLen (global.get $len))
        (return (i32.const 1))))
    (i32.const 0)))`,
		watString(pluginInfoJSON), watString(errorText), watString(embeddedPath),
		watString(diagnosticsJSON), watString(fileMatchingJSON), watString(licenseText),
		len(pluginInfoJSON), len(licenseText), len(diagnosticsJSON), len(fileMatchingJSON),
		len(errorText), len(errorText), len(embeddedPath),
	)
}

func compileWat(t *testing.T, wat string) []byte {
	t.Helper()
	b, err := wasmer.Wat2Wasm(wat)
	if err != nil {
		t.Fatalf("wat2wasm: %v", err)
	}
	return b
}

func loadTestPlugin(t *testing.T) plugins.InitializedPlugin {
	t.Helper()
	p, err := wasm.LoadPlugin(context.Background(), compileWat(t, testPluginWat()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	instance, err := p.Initialize(context.Background())
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return instance
}

func emptyConfig(id uint32) *dprint.FormatConfig {
	return &dprint.FormatConfig{ID: id, Raw: dprint.ConfigKeyMap{}}
}

func TestListExports(t *testing.T) {
	exports, err := wasm.ListExports(compileWat(t, testPluginWat()))
	if err != nil {
		t.Fatalf("list exports: %v", err)
	}
	kinds := map[string]wasm.ExportKind{}
	for _, e := range exports {
		kinds[e.Name] = e.Kind
	}
	if kinds["memory"] != wasm.ExportMemory {
		t.Fatalf("memory export kind = %v", kinds["memory"])
	}
	if kind, ok := kinds["format"]; !ok || kind != wasm.ExportFunction {
		t.Fatalf("format export missing or wrong kind")
	}

	if _, err := wasm.ListExports([]byte("not wasm")); err == nil {
		t.Fatalf("expected an error for invalid bytes")
	}
}

func TestCheckPluginSchema(t *testing.T) {
	if err := wasm.CheckPluginSchema(compileWat(t, testPluginWat()), dprint.PluginSchemaExport); err != nil {
		t.Fatalf("schema: %v", err)
	}
	old := compileWat(t, `(module (func (export "dprint_plugin_version_3") (result i32) (i32.const 3)))`)
	if err := wasm.CheckPluginSchema(old, dprint.PluginSchemaExport); err == nil {
		t.Fatalf("expected schema error")
	}
	if _, err := wasm.LoadPlugin(context.Background(), old); err == nil {
		t.Fatalf("expected load to refuse old schema")
	}
}

func TestStripStartSection(t *testing.T) {
	withStart := compileWat(t, `(module (func $init) (start $init) (func (export "x")))`)
	stripped := wasm.StripStartSection(withStart)
	if len(stripped) >= len(withStart) {
		t.Fatalf("start section not removed (%d >= %d)", len(stripped), len(withStart))
	}
	exports, err := wasm.ListExports(stripped)
	if err != nil {
		t.Fatalf("stripped module no longer parses: %v", err)
	}
	if len(exports) != 1 || exports[0].Name != "x" {
		t.Fatalf("unexpected exports %+v", exports)
	}

	withoutStart := compileWat(t, `(module (func (export "x")))`)
	if diff := cmp.Diff(withoutStart, wasm.StripStartSection(withoutStart)); diff != "" {
		t.Fatalf("module without start section changed:\n%s", diff)
	}
}

func TestLoadPlugin_Info(t *testing.T) {
	p, err := wasm.LoadPlugin(context.Background(), compileWat(t, testPluginWat()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := dprint.PluginInfo{
		Name:           "test-wasm",
		Version:        "1.2.3",
		ConfigKey:      "test",
		FileExtensions: []string{"txt"},
		FileNames:      []string{},
	}
	if diff := cmp.Diff(want, p.Info()); diff != "" {
		t.Fatalf("info mismatch (-want +got):\n%s", diff)
	}

	instance, _ := p.Initialize(context.Background())
	license, err := instance.LicenseText(context.Background())
	if err != nil || license != licenseText {
		t.Fatalf("license = %q, %v", license, err)
	}
	matching, err := instance.FileMatchingInfo(context.Background(), emptyConfig(1))
	if err != nil {
		t.Fatalf("file matching: %v", err)
	}
	if diff := cmp.Diff([]string{"txt"}, matching.FileExtensions); diff != "" {
		t.Fatalf("extensions mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatText(t *testing.T) {
	instance := loadTestPlugin(t)
	format := func(text string) (dprint.FormatResult, error) {
		return instance.FormatText(context.Background(), plugins.FormatRequest{
			FilePath: "/project/a.txt",
			FileText: text,
			Config:   emptyConfig(1),
		})
	}

	result, err := format("hello")
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if diff := cmp.Diff(dprint.Changed("Hello"), result); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}

	result, err = format("Hello")
	if err != nil || result.Changed {
		t.Fatalf("expected unchanged, got %+v, %v", result, err)
	}

	_, err = format("!oops")
	if err == nil || err.Error() != errorText {
		t.Fatalf("expected %q, got %v", errorText, err)
	}

	// the instance stays usable after a reported error
	result, err = format("again")
	if err != nil || result.Text != "Again" {
		t.Fatalf("format after error: %+v, %v", result, err)
	}
}

func TestFormatText_Cancelled(t *testing.T) {
	instance := loadTestPlugin(t)
	ctx, cancel := context.WithCancel(context.Background())

	request := plugins.FormatRequest{FilePath: "/project/a.txt", FileText: "~wait", Config: emptyConfig(1)}
	if _, err := instance.FormatText(ctx, request); err != nil {
		t.Fatalf("format before cancel: %v", err)
	}
	cancel()
	if _, err := instance.FormatText(ctx, request); err == nil {
		t.Fatalf("expected the plugin to observe cancellation")
	}
}

func TestConfig_RegisteredPerID(t *testing.T) {
	instance := loadTestPlugin(t)
	width := uint32(80)
	config := &dprint.FormatConfig{
		ID:     7,
		Global: dprint.GlobalConfiguration{LineWidth: &width},
		Raw:    dprint.ConfigKeyMap{"indent": int64(2)},
	}

	resolved, err := instance.ResolvedConfig(context.Background(), config)
	if err != nil {
		t.Fatalf("resolved config: %v", err)
	}
	if resolved != `{"plugin":{"indent":2},"global":{"lineWidth":80}}` {
		t.Fatalf("resolved config = %s", resolved)
	}

	diagnostics, err := instance.ConfigDiagnostics(context.Background(), config)
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	want := []dprint.ConfigurationDiagnostic{{PropertyName: "test", Message: "Unsupported."}}
	if diff := cmp.Diff(want, diagnostics); diff != "" {
		t.Fatalf("diagnostics mismatch (-want +got):\n%s", diff)
	}

	diagnostics, err = instance.ConfigDiagnostics(context.Background(), emptyConfig(8))
	if err != nil || len(diagnostics) != 0 {
		t.Fatalf("expected no diagnostics, got %+v, %v", diagnostics, err)
	}
}

func scopeForWasm(t *testing.T, config string) (*resolution.PluginsScope, *environment.TestEnvironment) {
	t.Helper()
	env := environment.NewTestEnvironment()
	env.AddFile("/project/test.wasm", string(compileWat(t, testPluginWat())))
	env.AddFile("/project/dprint.json", config)
	env.AddFile("/project/a.txt", "text")
	env.SetCwd("/project")

	resolver := plugins.NewResolver(env, plugins.WithWasmLoader(wasm.LoadPlugin))
	scopes, err := resolution.ResolvePluginsScopeAndPaths(context.Background(), configuration.CliArgs{},
		paths.FilePatternArgs{}, env, resolver)
	if err != nil {
		t.Fatalf("resolve: %v (stderr: %s)", err, env)
	}
	return scopes[0].Scope, env
}

func TestScope_HostFormatReentersPlugin(t *testing.T) {
	scope, _ := scopeForWasm(t, `{"plugins": ["./test.wasm"]}`)

	result, err := scope.Format(context.Background(), dprint.HostFormatRequest{
		FilePath: "/project/a.txt",
		FileText: "@hello",
	})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if diff := cmp.Diff(dprint.Changed("Hello"), result); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestScope_DiagnosticsBlockFormatting(t *testing.T) {
	scope, env := scopeForWasm(t, `{"plugins": ["./test.wasm"], "test": {"bad": true}}`)

	_, err := scope.Format(context.Background(), dprint.HostFormatRequest{FilePath: "/project/a.txt", FileText: "hello"})
	var diagErr *resolution.ConfigDiagnosticsError
	if !errors.As(err, &diagErr) || diagErr.Count != 1 {
		t.Fatalf("expected diagnostics error, got %v", err)
	}
	want := []string{"Error resolving plugin test-wasm: Configuration had 1 diagnostic(s).\n  [test]: Unsupported."}
	if diff := cmp.Diff(want, env.StderrMessages()); diff != "" {
		t.Fatalf("stderr mismatch (-want +got):\n%s", diff)
	}
}
