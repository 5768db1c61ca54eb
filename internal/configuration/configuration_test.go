package configuration

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tidwall/gjson"

	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/environment"
)

func TestResolveConfigFromArgs_SearchesUpward(t *testing.T) {
	env := environment.NewTestEnvironment()
	env.AddFile("/project/dprint.json", `{
  "$schema": "https://dprint.dev/schemas/v0.json",
  "plugins": ["builtin:shfmt", "./plugins/md.wasm"],
  "includes": "**/*.sh",
  "excludes": ["vendor/**"],
  "incremental": false,
  "lineWidth": 100,
  "go-shfmt": {"indent": 2}
}`)
	env.AddFile("/project/sub/dir/file.sh", "echo hi\n")
	env.SetCwd("/project/sub/dir")

	config, err := ResolveConfigFromArgs(CliArgs{}, env)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if config.BasePath != "/project" {
		t.Fatalf("base path = %q", config.BasePath)
	}
	wantPlugins := []string{"builtin:shfmt", "/project/plugins/md.wasm"}
	if diff := cmp.Diff(wantPlugins, config.Plugins); diff != "" {
		t.Fatalf("plugins mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"**/*.sh"}, config.Includes); diff != "" {
		t.Fatalf("includes mismatch (-want +got):\n%s", diff)
	}
	if config.IsIncremental() {
		t.Fatalf("expected incremental to be off")
	}
	if diff := cmp.Diff([]string{"lineWidth", "go-shfmt"}, config.ConfigMap.Keys()); diff != "" {
		t.Fatalf("remaining keys mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveConfigFromArgs_PluginOverride(t *testing.T) {
	env := environment.NewTestEnvironment()
	env.AddFile("/project/dprint.json", `{"plugins": ["builtin:gofmt"]}`)
	env.SetCwd("/project")

	config, err := ResolveConfigFromArgs(CliArgs{ConfigPath: "dprint.json", Plugins: []string{"builtin:shfmt"}}, env)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if diff := cmp.Diff([]string{"builtin:shfmt"}, config.Plugins); diff != "" {
		t.Fatalf("plugins mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveConfigFromArgs_NoConfig(t *testing.T) {
	env := environment.NewTestEnvironment()
	env.AddFile("/project/file.sh", "")
	env.SetCwd("/project")

	if _, err := ResolveConfigFromArgs(CliArgs{}, env); !errors.Is(err, ErrNoConfigFile) {
		t.Fatalf("expected ErrNoConfigFile, got %v", err)
	}
}

func TestResolveConfigFromPath_InvalidJSON(t *testing.T) {
	env := environment.NewTestEnvironment()
	env.AddFile("/project/dprint.json", `{"plugins": [`)

	_, err := ResolveConfigFromPath(ResolvedConfigPath{ResolvedPath: "/project/dprint.json", BasePath: "/project"}, env)
	if err == nil || !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("expected invalid JSON error, got %v", err)
	}
}

func TestGetPluginConfigMap(t *testing.T) {
	m, err := ParseConfigMap(`{"md": {"associations": "**/*.mdx", "locked": true, "textWrap": "always"}, "other": 1}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	config, err := GetPluginConfigMap(dprint.PluginInfo{ConfigKey: "md"}, m)
	if err != nil {
		t.Fatalf("get plugin config: %v", err)
	}
	want := PluginConfig{
		Associations: []string{"**/*.mdx"},
		Locked:       true,
		Properties:   dprint.ConfigKeyMap{"textWrap": "always"},
	}
	if diff := cmp.Diff(want, config); diff != "" {
		t.Fatalf("plugin config mismatch (-want +got):\n%s", diff)
	}
	if _, ok := m.Get("md"); ok {
		t.Fatalf("plugin key should have been consumed")
	}

	if _, err := GetPluginConfigMap(dprint.PluginInfo{ConfigKey: "other"}, m); err == nil {
		t.Fatalf("expected an error for a non-object plugin config")
	}
}

func TestGetGlobalConfig_UnknownProperties(t *testing.T) {
	parse := func() *ConfigMap {
		m, err := ParseConfigMap(`{"lineWidth": 80, "useTabs": true, "typescript": {}, "unknown": 1}`)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		return m
	}

	env := environment.NewTestEnvironment()
	_, err := GetGlobalConfig(parse(), env, GetGlobalConfigOptions{CheckUnknownPropertyDiagnostics: true})
	var diagErr *DiagnosticsError
	if !errors.As(err, &diagErr) || diagErr.Count != 2 {
		t.Fatalf("expected 2 diagnostics, got %v", err)
	}
	want := []string{
		"[typescript]: Unknown property in configuration.",
		"[unknown]: Unknown property in configuration.",
	}
	if diff := cmp.Diff(want, env.StderrMessages()); diff != "" {
		t.Fatalf("stderr mismatch (-want +got):\n%s", diff)
	}

	// with the check disabled the same file is accepted silently
	quiet := environment.NewTestEnvironment()
	global, err := GetGlobalConfig(parse(), quiet, GetGlobalConfigOptions{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if global.LineWidth == nil || *global.LineWidth != 80 {
		t.Fatalf("lineWidth not read: %+v", global)
	}
	if global.UseTabs == nil || !*global.UseTabs {
		t.Fatalf("useTabs not read: %+v", global)
	}
	if msgs := quiet.StderrMessages(); len(msgs) != 0 {
		t.Fatalf("expected no output, got %v", msgs)
	}
}

func TestGetGlobalConfig_InvalidValuesAlwaysReported(t *testing.T) {
	m, err := ParseConfigMap(`{"lineWidth": "wide", "newLineKind": "cr"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	env := environment.NewTestEnvironment()
	_, err = GetGlobalConfig(m, env, GetGlobalConfigOptions{})
	var diagErr *DiagnosticsError
	if !errors.As(err, &diagErr) || diagErr.Count != 2 {
		t.Fatalf("expected 2 diagnostics, got %v", err)
	}
}

func TestRenderResolvedConfig(t *testing.T) {
	out, err := RenderResolvedConfig([]ResolvedPluginConfig{
		{ConfigKey: "go-shfmt", JSON: `{"indent":2}`},
		{ConfigKey: "markdown.v2", JSON: ""},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := gjson.Get(out, "go-shfmt.indent").Int(); got != 2 {
		t.Fatalf("indent = %d in %s", got, out)
	}
	if !gjson.Get(out, `markdown\.v2`).IsObject() {
		t.Fatalf("dotted key not rendered as an object: %s", out)
	}
}
