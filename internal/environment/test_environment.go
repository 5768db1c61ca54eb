package environment

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// TestEnvironment is an in-memory Environment. Everything written to the
// error and verbose streams is kept so tests can assert on it.
type TestEnvironment struct {
	fs  afero.Fs
	cwd string

	mu      sync.Mutex
	stderr  []string
	logs    []string
	verbose bool
}

// NewTestEnvironment returns an environment over an empty memory file
// system with "/" as the working directory.
func NewTestEnvironment() *TestEnvironment {
	return &TestEnvironment{fs: afero.NewMemMapFs(), cwd: "/"}
}

// SetCwd changes the working directory.
func (e *TestEnvironment) SetCwd(dir string) {
	e.cwd = filepath.Clean(dir)
}

// SetVerbose turns verbose logging on or off.
func (e *TestEnvironment) SetVerbose(verbose bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.verbose = verbose
}

// AddFile writes a file, creating parent directories.
func (e *TestEnvironment) AddFile(path, text string) {
	_ = e.fs.MkdirAll(filepath.Dir(path), 0o755)
	_ = afero.WriteFile(e.fs, path, []byte(text), 0o644)
}

// StderrMessages returns a copy of everything passed to LogStderr.
func (e *TestEnvironment) StderrMessages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.stderr...)
}

// VerboseMessages returns a copy of every verbose line logged while
// verbose output was on.
func (e *TestEnvironment) VerboseMessages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.logs...)
}

func (e *TestEnvironment) Fs() afero.Fs {
	return e.fs
}

func (e *TestEnvironment) ReadFile(path string) (string, error) {
	b, err := e.ReadFileBytes(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (e *TestEnvironment) ReadFileBytes(path string) ([]byte, error) {
	b, err := afero.ReadFile(e.fs, e.abs(path))
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}
	return b, nil
}

func (e *TestEnvironment) WriteFile(path, text string) error {
	path = e.abs(path)
	if err := e.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(e.fs, path, []byte(text), 0o644)
}

func (e *TestEnvironment) Canonicalize(path string) (string, error) {
	path = e.abs(path)
	if _, err := e.fs.Stat(path); err != nil {
		return "", fmt.Errorf("error canonicalizing path %s: %w", path, err)
	}
	return path, nil
}

func (e *TestEnvironment) Cwd() (string, error) {
	return e.cwd, nil
}

func (e *TestEnvironment) CacheDir() (string, error) {
	return "/.cache/dprint-go", nil
}

func (e *TestEnvironment) LogStderr(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stderr = append(e.stderr, text)
}

func (e *TestEnvironment) LogVerbose(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.verbose {
		e.logs = append(e.logs, fmt.Sprintf(format, args...))
	}
}

func (e *TestEnvironment) IsVerbose() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.verbose
}

func (e *TestEnvironment) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(e.cwd, path)
}

// String renders the captured stderr output, handy in failure messages.
func (e *TestEnvironment) String() string {
	return strings.Join(e.StderrMessages(), "\n")
}
