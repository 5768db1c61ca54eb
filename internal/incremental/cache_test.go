package incremental_test

import (
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/mridang/dprint-go/internal/environment"
	"github.com/mridang/dprint-go/internal/incremental"
)

const configPath = "/project/dprint.json"

func TestCache_RoundTrip(t *testing.T) {
	env := environment.NewTestEnvironment()

	c, err := incremental.Load(env, configPath, 42)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.IsFileSame("/project/a.md", "# A\n") {
		t.Fatalf("empty cache reported a known file")
	}
	c.Update("/project/a.md", "# A\n")
	if err := c.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	again, err := incremental.Load(env, configPath, 42)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !again.IsFileSame("/project/a.md", "# A\n") {
		t.Fatalf("recorded file not found after reload")
	}
	if again.IsFileSame("/project/a.md", "# B\n") {
		t.Fatalf("different text matched")
	}
}

func TestCache_DiscardedWhenPluginsChange(t *testing.T) {
	env := environment.NewTestEnvironment()
	env.SetVerbose(true)

	c, _ := incremental.Load(env, configPath, 1)
	c.Update("/project/a.md", "text")
	if err := c.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	other, err := incremental.Load(env, configPath, 2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if other.Len() != 0 {
		t.Fatalf("expected an empty cache, got %d entries", other.Len())
	}
	found := false
	for _, msg := range env.VerboseMessages() {
		if strings.Contains(msg, "Discarding") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a verbose message, got %v", env.VerboseMessages())
	}
}

func TestCache_CorruptFileStartsEmpty(t *testing.T) {
	env := environment.NewTestEnvironment()
	path, err := incremental.CachePath(env, configPath)
	if err != nil {
		t.Fatalf("cache path: %v", err)
	}
	if err := afero.WriteFile(env.Fs(), path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := incremental.Load(env, configPath, 1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected an empty cache")
	}
	if err := c.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	b, _ := afero.ReadFile(env.Fs(), path)
	if !strings.Contains(string(b), `"pluginsHash":1`) {
		t.Fatalf("corrupt cache not replaced: %s", b)
	}
}

func TestCache_ForgetAndPerConfigPaths(t *testing.T) {
	env := environment.NewTestEnvironment()
	c, _ := incremental.Load(env, configPath, 1)
	c.Update("/project/a.md", "text")
	c.Forget("/project/a.md")
	if c.IsFileSame("/project/a.md", "text") {
		t.Fatalf("forgotten file still matches")
	}

	a, _ := incremental.CachePath(env, configPath)
	b, _ := incremental.CachePath(env, "/project/sub/dprint.json")
	if a == b {
		t.Fatalf("different configs share cache path %s", a)
	}
}
