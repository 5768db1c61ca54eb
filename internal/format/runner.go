// Package format runs every file of every scope through its plugins, either
// writing the result back or reporting files that are not formatted.
package format

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/mridang/dprint-go/internal/dprint"
	"github.com/mridang/dprint-go/internal/environment"
	"github.com/mridang/dprint-go/internal/incremental"
	"github.com/mridang/dprint-go/internal/resolution"
)

// Mode selects what happens to a file whose formatted text differs.
type Mode int

const (
	// ModeFormat writes formatted text back to the file.
	ModeFormat Mode = iota
	// ModeCheck only reports the file.
	ModeCheck
)

// Options control a run.
type Options struct {
	Mode Mode
	// Concurrency limits how many files are formatted at once. Zero means
	// one per CPU.
	Concurrency int
	// Incremental enables the incremental cache for configurations that
	// do not turn it off.
	Incremental bool
}

// Summary is what a run did. Paths are sorted.
type Summary struct {
	// Formatted are the files that were rewritten.
	Formatted []string
	// NotFormatted are the files check mode found to differ.
	NotFormatted []string
	// Skipped are files the incremental cache knew to be formatted.
	Skipped int
	Total   int
}

// ErrNotFormatted is returned by check mode when a file differs from its
// formatted text.
var ErrNotFormatted = errors.New("found files that are not formatted")

// FileError is the failure to format one file.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("Error formatting %s. Message: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

type runner struct {
	env  environment.Environment
	opts Options

	mu      sync.Mutex
	summary Summary
	errs    *multierror.Error
}

// Run formats every file of every scope. Ordinary per-file failures are
// collected and returned together once all files were attempted; a
// critical failure stops the run.
func Run(ctx context.Context, env environment.Environment, scopes []*resolution.PluginsScopeAndPaths, opts Options) (*Summary, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	r := &runner{env: env, opts: opts}

	for _, scope := range scopes {
		if err := r.runScope(ctx, scope); err != nil {
			return r.finish(), err
		}
	}

	summary := r.finish()
	if err := r.errs.ErrorOrNil(); err != nil {
		return summary, err
	}
	if opts.Mode == ModeCheck && len(summary.NotFormatted) > 0 {
		return summary, ErrNotFormatted
	}
	return summary, nil
}

func (r *runner) finish() *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	slices.Sort(r.summary.Formatted)
	slices.Sort(r.summary.NotFormatted)
	summary := r.summary
	return &summary
}

func (r *runner) runScope(ctx context.Context, scopeAndPaths *resolution.PluginsScopeAndPaths) error {
	scope := scopeAndPaths.Scope
	cache, err := r.loadCache(scope)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for _, names := range scopeAndPaths.FilePathsByPlugins.SortedKeys() {
		for _, path := range scopeAndPaths.FilePathsByPlugins[names] {
			path := path
			g.Go(func() error {
				return r.runFile(ctx, scope, cache, path)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if cache != nil {
		if err := cache.Save(); err != nil {
			r.env.LogStderr(fmt.Sprintf("Error saving incremental cache: %v", err))
		}
	}
	return nil
}

func (r *runner) loadCache(scope *resolution.PluginsScope) (*incremental.Cache, error) {
	config := scope.Config()
	if !r.opts.Incremental || config == nil || !config.IsIncremental() {
		return nil, nil //nolint:nilnil // no cache for this scope
	}
	return incremental.Load(r.env, config.ResolvedPath, scope.PluginsHash())
}

func (r *runner) runFile(ctx context.Context, scope *resolution.PluginsScope, cache *incremental.Cache, path string) error {
	r.mu.Lock()
	r.summary.Total++
	r.mu.Unlock()

	text, err := r.env.ReadFile(path)
	if err != nil {
		r.fail(path, err)
		return nil
	}
	if cache != nil && cache.IsFileSame(path, text) {
		r.env.LogVerbose("No change: %s", path)
		r.mu.Lock()
		r.summary.Skipped++
		r.mu.Unlock()
		return nil
	}

	result, err := scope.Format(ctx, dprint.HostFormatRequest{FilePath: path, FileText: text})
	if err != nil {
		if resolution.IsCriticalFormatError(err) || errors.Is(err, context.Canceled) {
			return err
		}
		r.fail(path, err)
		return nil
	}

	switch {
	case !result.Changed:
		if cache != nil {
			cache.Update(path, text)
		}
	case r.opts.Mode == ModeCheck:
		r.mu.Lock()
		r.summary.NotFormatted = append(r.summary.NotFormatted, path)
		r.mu.Unlock()
	default:
		if err := r.env.WriteFile(path, result.Text); err != nil {
			r.fail(path, err)
			return nil
		}
		if cache != nil {
			cache.Update(path, result.Text)
		}
		r.mu.Lock()
		r.summary.Formatted = append(r.summary.Formatted, path)
		r.mu.Unlock()
	}
	return nil
}

func (r *runner) fail(path string, err error) {
	fileErr := &FileError{Path: path, Err: err}
	r.env.LogStderr(fileErr.Error())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = multierror.Append(r.errs, fileErr)
}
