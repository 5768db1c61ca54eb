package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/hashicorp/cli"

	"github.com/mridang/dprint-go/internal/configuration"
	"github.com/mridang/dprint-go/internal/environment"
	"github.com/mridang/dprint-go/internal/format"
	"github.com/mridang/dprint-go/internal/paths"
	"github.com/mridang/dprint-go/internal/plugins"
	"github.com/mridang/dprint-go/internal/resolution"
)

const (
	exitCodeOK    = 0
	exitCodeError = 1
	// exitCodeNotFormatted is what check returns when files differ.
	exitCodeNotFormatted = 20
)

// meta is what every command shares.
type meta struct {
	ctx             context.Context //nolint:containedctx // lives as long as the process
	ui              cli.Ui
	newEnv          func(verbose bool) environment.Environment
	resolverOptions []plugins.ResolverOption
}

func commands(m *meta) map[string]cli.CommandFactory {
	return map[string]cli.CommandFactory{
		"fmt": func() (cli.Command, error) {
			return &formatCommand{meta: m, mode: format.ModeFormat}, nil
		},
		"check": func() (cli.Command, error) {
			return &formatCommand{meta: m, mode: format.ModeCheck}, nil
		},
		"output-file-paths": func() (cli.Command, error) {
			return &outputFilePathsCommand{meta: m}, nil
		},
		"output-resolved-config": func() (cli.Command, error) {
			return &outputResolvedConfigCommand{meta: m}, nil
		},
		"license": func() (cli.Command, error) {
			return &licenseCommand{meta: m}, nil
		},
	}
}

// stringList is a flag that may be repeated or given comma separated
// values.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

// commonFlags are accepted by every command.
type commonFlags struct {
	config           string
	plugins          stringList
	excludes         stringList
	allowNodeModules bool
	verbose          bool
}

func (f *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.config, "config", "", "Path to the configuration file.")
	fs.Var(&f.plugins, "plugins", "Plugins to use instead of the configuration's.")
	fs.Var(&f.excludes, "excludes", "Patterns of files to exclude.")
	fs.BoolVar(&f.allowNodeModules, "allow-node-modules", false, "Also format files in node_modules.")
	fs.BoolVar(&f.verbose, "verbose", false, "Print debug output.")
}

func (f *commonFlags) cliArgs() configuration.CliArgs {
	return configuration.CliArgs{ConfigPath: f.config, Plugins: f.plugins}
}

func (f *commonFlags) patterns(includes []string) paths.FilePatternArgs {
	return paths.FilePatternArgs{
		IncludePatterns:  includes,
		ExcludePatterns:  f.excludes,
		AllowNodeModules: f.allowNodeModules,
	}
}

func (m *meta) parse(name string, args []string, flags *commonFlags, extra func(*flag.FlagSet)) ([]string, bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags.register(fs)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		m.ui.Error(err.Error())
		return nil, false
	}
	return fs.Args(), true
}

func (m *meta) resolveScopes(env environment.Environment, flags *commonFlags, includes []string) ([]*resolution.PluginsScopeAndPaths, error) {
	resolver := plugins.NewResolver(env, m.resolverOptions...)
	return resolution.ResolvePluginsScopeAndPaths(m.ctx, flags.cliArgs(), flags.patterns(includes), env, resolver)
}

const commonHelp = `
Options:

  -config=path           Path to the configuration file. Searched for from
                         the working directory upwards when not given.
  -plugins=a,b           Plugins to use instead of the configuration's.
  -excludes=a,b          Patterns of files to exclude.
  -allow-node-modules    Also format files in node_modules.
  -verbose               Print debug output.
`

type formatCommand struct {
	*meta
	mode format.Mode
}

func (c *formatCommand) Synopsis() string {
	if c.mode == format.ModeCheck {
		return "Checks for any files that haven't been formatted"
	}
	return "Formats the source files and writes the result to the file system"
}

func (c *formatCommand) Help() string {
	name := "fmt"
	if c.mode == format.ModeCheck {
		name = "check"
	}
	return fmt.Sprintf("Usage: dprint-go %s [options] [patterns...]\n\n  %s.\n%s"+
		"  -incremental=false     Ignore the incremental cache.\n", name, c.Synopsis(), commonHelp)
}

func (c *formatCommand) Run(args []string) int {
	var flags commonFlags
	incremental := true
	includes, ok := c.parse("fmt", args, &flags, func(fs *flag.FlagSet) {
		fs.BoolVar(&incremental, "incremental", true, "Use the incremental cache.")
	})
	if !ok {
		return exitCodeError
	}

	env := c.newEnv(flags.verbose)
	scopes, err := c.resolveScopes(env, &flags, includes)
	if err != nil {
		c.ui.Error(err.Error())
		return exitCodeError
	}

	summary, err := format.Run(c.ctx, env, scopes, format.Options{Mode: c.mode, Incremental: incremental})
	switch {
	case errors.Is(err, format.ErrNotFormatted):
		for _, path := range summary.NotFormatted {
			c.ui.Output("from " + path)
		}
		c.ui.Error(fmt.Sprintf("Found %d not formatted file(s).", len(summary.NotFormatted)))
		return exitCodeNotFormatted
	case err != nil:
		// per-file failures were already written as they happened
		var fileErr *format.FileError
		if !errors.As(err, &fileErr) {
			c.ui.Error(err.Error())
		}
		return exitCodeError
	}

	if c.mode == format.ModeFormat && len(summary.Formatted) > 0 {
		c.ui.Output(fmt.Sprintf("Formatted %d file(s).", len(summary.Formatted)))
	}
	return exitCodeOK
}

type outputFilePathsCommand struct {
	*meta
}

func (c *outputFilePathsCommand) Synopsis() string {
	return "Prints the resolved file paths"
}

func (c *outputFilePathsCommand) Help() string {
	return "Usage: dprint-go output-file-paths [options] [patterns...]\n\n  " + c.Synopsis() + ".\n" + commonHelp
}

func (c *outputFilePathsCommand) Run(args []string) int {
	var flags commonFlags
	includes, ok := c.parse("output-file-paths", args, &flags, nil)
	if !ok {
		return exitCodeError
	}
	env := c.newEnv(flags.verbose)
	scopes, err := c.resolveScopes(env, &flags, includes)
	if err != nil {
		c.ui.Error(err.Error())
		return exitCodeError
	}

	var all []string
	for _, scope := range scopes {
		for _, filePaths := range scope.FilePathsByPlugins {
			all = append(all, filePaths...)
		}
	}
	slices.Sort(all)
	for _, path := range all {
		c.ui.Output(path)
	}
	return exitCodeOK
}

type outputResolvedConfigCommand struct {
	*meta
}

func (c *outputResolvedConfigCommand) Synopsis() string {
	return "Prints the resolved configuration of every plugin"
}

func (c *outputResolvedConfigCommand) Help() string {
	return "Usage: dprint-go output-resolved-config [options]\n\n  " + c.Synopsis() + ".\n" + commonHelp
}

func (c *outputResolvedConfigCommand) Run(args []string) int {
	var flags commonFlags
	if _, ok := c.parse("output-resolved-config", args, &flags, nil); !ok {
		return exitCodeError
	}
	env := c.newEnv(flags.verbose)
	scopes, err := c.resolveScopes(env, &flags, nil)
	if err != nil {
		c.ui.Error(err.Error())
		return exitCodeError
	}

	for _, scope := range scopes {
		var configs []configuration.ResolvedPluginConfig
		for _, p := range scope.Scope.Plugins() {
			instance, err := p.Initialize(c.ctx)
			if err != nil {
				c.ui.Error(err.Error())
				return exitCodeError
			}
			text, err := instance.ResolvedConfig(c.ctx)
			if err != nil {
				c.ui.Error(fmt.Sprintf("error resolving configuration for %s: %v", p.Name(), err))
				return exitCodeError
			}
			configs = append(configs, configuration.ResolvedPluginConfig{ConfigKey: p.Info().ConfigKey, JSON: text})
		}
		out, err := configuration.RenderResolvedConfig(configs)
		if err != nil {
			c.ui.Error(err.Error())
			return exitCodeError
		}
		if len(scopes) > 1 {
			c.ui.Output(scope.Scope.Config().ResolvedPath + ":")
		}
		c.ui.Output(strings.TrimRight(out, "\n"))
	}
	return exitCodeOK
}

type licenseCommand struct {
	*meta
}

func (c *licenseCommand) Synopsis() string {
	return "Prints the licenses of the configured plugins"
}

func (c *licenseCommand) Help() string {
	return "Usage: dprint-go license [options]\n\n  " + c.Synopsis() + ".\n" + commonHelp
}

func (c *licenseCommand) Run(args []string) int {
	var flags commonFlags
	if _, ok := c.parse("license", args, &flags, nil); !ok {
		return exitCodeError
	}
	env := c.newEnv(flags.verbose)
	resolver := plugins.NewResolver(env, c.resolverOptions...)
	scope, err := resolution.GetPluginsScopeFromArgs(c.ctx, flags.cliArgs(), env, resolver)
	if err != nil {
		c.ui.Error(err.Error())
		return exitCodeError
	}

	for _, p := range scope.Plugins() {
		instance, err := p.Initialize(c.ctx)
		if err != nil {
			c.ui.Error(err.Error())
			return exitCodeError
		}
		text, err := instance.LicenseText(c.ctx)
		if err != nil {
			c.ui.Error(fmt.Sprintf("error getting license for %s: %v", p.Name(), err))
			return exitCodeError
		}
		c.ui.Output(fmt.Sprintf("==== %s LICENSE ====", strings.ToUpper(p.Name())))
		c.ui.Output(text)
	}
	return exitCodeOK
}
