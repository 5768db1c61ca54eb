// Package environment is the boundary between the formatting engine and the
// outside world: file system access, path canonicalization and output.
package environment

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// Environment is everything the engine needs from the host process.
// Implementations must be safe for concurrent use.
type Environment interface {
	// Fs is the file system files are discovered on and read from.
	Fs() afero.Fs
	ReadFile(path string) (string, error)
	ReadFileBytes(path string) ([]byte, error)
	WriteFile(path, text string) error
	// Canonicalize returns an absolute, cleaned path with symlinks
	// resolved where the file system supports it.
	Canonicalize(path string) (string, error)
	Cwd() (string, error)
	// CacheDir is where persisted state such as the incremental cache goes.
	CacheDir() (string, error)
	// LogStderr writes text to the error stream as is.
	LogStderr(text string)
	// LogVerbose writes a debug line when verbose output is on.
	LogVerbose(format string, args ...any)
	IsVerbose() bool
}

// RealEnvironment talks to the operating system.
type RealEnvironment struct {
	fs      afero.Fs
	stderr  *log.Logger
	verbose *log.Logger
	isDebug bool
}

// NewRealEnvironment creates an environment writing to os.Stderr.
func NewRealEnvironment(verbose bool) *RealEnvironment {
	return newRealEnvironment(os.Stderr, verbose)
}

func newRealEnvironment(w io.Writer, verbose bool) *RealEnvironment {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return &RealEnvironment{
		fs:     afero.NewOsFs(),
		stderr: log.NewWithOptions(w, log.Options{}),
		verbose: log.NewWithOptions(w, log.Options{
			Prefix:          "dprint",
			Level:           level,
			ReportTimestamp: true,
		}),
		isDebug: verbose,
	}
}

func (e *RealEnvironment) Fs() afero.Fs {
	return e.fs
}

func (e *RealEnvironment) ReadFile(path string) (string, error) {
	b, err := e.ReadFileBytes(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (e *RealEnvironment) ReadFileBytes(path string) ([]byte, error) {
	b, err := afero.ReadFile(e.fs, path)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}
	return b, nil
}

func (e *RealEnvironment) WriteFile(path, text string) error {
	if err := afero.WriteFile(e.fs, path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("error writing file %s: %w", path, err)
	}
	return nil
}

func (e *RealEnvironment) Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("error canonicalizing path %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("error canonicalizing path %s: %w", path, err)
	}
	return resolved, nil
}

func (e *RealEnvironment) Cwd() (string, error) {
	return os.Getwd()
}

func (e *RealEnvironment) CacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dprint-go"), nil
}

func (e *RealEnvironment) LogStderr(text string) {
	e.stderr.Print(text)
}

func (e *RealEnvironment) LogVerbose(format string, args ...any) {
	e.verbose.Debugf(format, args...)
}

func (e *RealEnvironment) IsVerbose() bool {
	return e.isDebug
}
