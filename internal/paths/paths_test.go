package paths

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mridang/dprint-go/internal/configuration"
	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/environment"
	"github.com/mridang/dprint-go/internal/plugins"
)

func testMaps(t *testing.T) *plugins.NameResolutionMaps {
	t.Helper()
	maps, err := plugins.NewNameResolutionMaps([]plugins.MatchingPlugin{
		{Name: "md", FileMatching: dprint.FileMatchingInfo{FileExtensions: []string{"md"}}},
		{Name: "sh", FileMatching: dprint.FileMatchingInfo{FileExtensions: []string{"sh"}}},
	}, "/project")
	if err != nil {
		t.Fatalf("maps: %v", err)
	}
	return maps
}

func testEnv() *environment.TestEnvironment {
	env := environment.NewTestEnvironment()
	env.AddFile("/project/dprint.json", `{}`)
	env.AddFile("/project/README.md", "")
	env.AddFile("/project/run.sh", "")
	env.AddFile("/project/notes.txt", "")
	env.AddFile("/project/node_modules/pkg/README.md", "")
	env.AddFile("/project/vendor/lib.sh", "")
	env.AddFile("/project/docs/guide.md", "")
	env.AddFile("/project/nested/dprint.json", `{}`)
	env.AddFile("/project/nested/inner.md", "")
	env.SetCwd("/project")
	return env
}

func TestGetAndResolveFilePaths_DefaultsToPluginMatching(t *testing.T) {
	env := testEnv()
	config := &configuration.ResolvedConfig{BasePath: "/project", Excludes: []string{"vendor/**"}}

	out, err := GetAndResolveFilePaths(config, FilePatternArgs{}, testMaps(t), env)
	if err != nil {
		t.Fatalf("glob: %v", err)
	}

	wantFiles := []string{"/project/README.md", "/project/docs/guide.md", "/project/run.sh"}
	if diff := cmp.Diff(wantFiles, out.FilePaths); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/project/nested/dprint.json"}, out.ConfigFiles); diff != "" {
		t.Fatalf("config files mismatch (-want +got):\n%s", diff)
	}
}

func TestGetAndResolveFilePaths_CliPatternsAndNodeModules(t *testing.T) {
	env := testEnv()
	config := &configuration.ResolvedConfig{BasePath: "/project", Includes: []string{"**/*.sh"}}

	out, err := GetAndResolveFilePaths(config, FilePatternArgs{
		IncludePatterns:  []string{"**/*.md"},
		ExcludePatterns:  []string{"docs/**"},
		AllowNodeModules: true,
	}, testMaps(t), env)
	if err != nil {
		t.Fatalf("glob: %v", err)
	}

	wantFiles := []string{"/project/README.md", "/project/node_modules/pkg/README.md"}
	if diff := cmp.Diff(wantFiles, out.FilePaths); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}
}

func TestGetFilePathsByPlugins(t *testing.T) {
	maps := testMaps(t)

	grouped, err := GetFilePathsByPlugins(maps, []string{"/project/a.md", "/project/b.sh", "/project/c.md"})
	if err != nil {
		t.Fatalf("partition: %v", err)
	}
	want := FilePathsByPlugins{
		NewPluginNames([]string{"md"}): {"/project/a.md", "/project/c.md"},
		NewPluginNames([]string{"sh"}): {"/project/b.sh"},
	}
	if diff := cmp.Diff(want, grouped); diff != "" {
		t.Fatalf("partition mismatch (-want +got):\n%s", diff)
	}
	if grouped.FileCount() != 3 {
		t.Fatalf("file count = %d", grouped.FileCount())
	}

	_, err = GetFilePathsByPlugins(maps, []string{"/project/a.md", "/project/notes.txt"})
	var noPlugins *NoPluginsForFileError
	if !errors.As(err, &noPlugins) || noPlugins.Path != "/project/notes.txt" {
		t.Fatalf("expected NoPluginsForFileError for notes.txt, got %v", err)
	}
}

func TestPluginNames_RoundTrip(t *testing.T) {
	names := NewPluginNames([]string{"md", "prettier"})
	if diff := cmp.Diff([]string{"md", "prettier"}, names.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if names.String() != "md, prettier" {
		t.Fatalf("String() = %q", names.String())
	}
	if NewPluginNames(nil).Names() != nil {
		t.Fatalf("empty names should split to nil")
	}
}
