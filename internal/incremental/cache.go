// Package incremental remembers which files were already formatted with a
// given plugin setup so unchanged files can be skipped on the next run.
package incremental

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/spf13/afero"

	"github.com/mridang/dprint-go/internal/environment"
	"github.com/mridang/dprint-go/internal/hasher"
)

// Cache maps file paths to the hash of their last known formatted text.
// It belongs to one configuration file and is only valid for the plugins
// hash it was created with. Safe for concurrent use.
type Cache struct {
	env         environment.Environment
	path        string
	pluginsHash uint64

	mu    sync.Mutex
	files map[string]uint64
	dirty bool
}

type cacheFile struct {
	PluginsHash uint64            `json:"pluginsHash"`
	Files       map[string]uint64 `json:"files"`
}

// CachePath is where the cache for the configuration at configPath lives.
func CachePath(env environment.Environment, configPath string) (string, error) {
	dir, err := env.CacheDir()
	if err != nil {
		return "", err
	}
	name := "incremental_" + strconv.FormatUint(hasher.HashString(configPath), 16) + ".json"
	return filepath.Join(dir, name), nil
}

// Load reads the cache for configPath. A missing or unreadable cache, or
// one written for a different plugins hash, gives an empty cache.
func Load(env environment.Environment, configPath string, pluginsHash uint64) (*Cache, error) {
	path, err := CachePath(env, configPath)
	if err != nil {
		return nil, err
	}
	c := &Cache{env: env, path: path, pluginsHash: pluginsHash, files: map[string]uint64{}}

	b, err := afero.ReadFile(env.Fs(), path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		env.LogVerbose("Could not read incremental cache %s: %v", path, err)
		return c, nil
	}

	var stored cacheFile
	if err := json.Unmarshal(b, &stored); err != nil {
		env.LogVerbose("Discarding corrupt incremental cache %s: %v", path, err)
		c.dirty = true
		return c, nil
	}
	if stored.PluginsHash != pluginsHash {
		env.LogVerbose("Plugins changed since the incremental cache was written. Discarding it.")
		c.dirty = true
		return c, nil
	}
	if stored.Files != nil {
		c.files = stored.Files
	}
	return c, nil
}

// IsFileSame reports whether text is what was recorded as the formatted
// text of path.
func (c *Cache) IsFileSame(path, text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash, ok := c.files[path]
	return ok && hash == hasher.HashString(text)
}

// Update records text as the formatted text of path.
func (c *Cache) Update(path, text string) {
	hash := hasher.HashString(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.files[path]; ok && old == hash {
		return
	}
	c.files[path] = hash
	c.dirty = true
}

// Forget drops what was recorded for path.
func (c *Cache) Forget(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.files[path]; ok {
		delete(c.files, path)
		c.dirty = true
	}
}

// Len is the number of recorded files.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.files)
}

// Save writes the cache back if anything changed since it was loaded.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	b, err := json.Marshal(cacheFile{PluginsHash: c.pluginsHash, Files: c.files})
	if err != nil {
		return err
	}
	fsys := c.env.Fs()
	if err := fsys.MkdirAll(filepath.Dir(c.path), 0o755); err != nil { //nolint:mnd // directory mode
		return fmt.Errorf("error creating cache directory: %w", err)
	}
	if err := afero.WriteFile(fsys, c.path, b, 0o644); err != nil { //nolint:mnd // file mode
		return fmt.Errorf("error writing incremental cache: %w", err)
	}
	c.dirty = false
	c.env.LogVerbose("Saved incremental cache with %d file(s) to %s", len(c.files), c.path)
	return nil
}
