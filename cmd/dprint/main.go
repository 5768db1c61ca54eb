// Command dprint-go formats files with dprint plugins: builtin plugins
// compiled into the binary and wasm plugins loaded from disk.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/hashicorp/cli"

	"github.com/mridang/dprint-go/internal/environment"
	"github.com/mridang/dprint-go/internal/plugins"
	"github.com/mridang/dprint-go/internal/plugins/builtin"
	"github.com/mridang/dprint-go/internal/wasm"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev" //nolint:gochecknoglobals // set by the linker

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := &meta{
		ctx: ctx,
		ui: &cli.BasicUi{
			Reader:      os.Stdin,
			Writer:      os.Stdout,
			ErrorWriter: os.Stderr,
		},
		newEnv: func(verbose bool) environment.Environment {
			return environment.NewRealEnvironment(verbose)
		},
		resolverOptions: append(builtin.Options(), plugins.WithWasmLoader(wasm.LoadPlugin)),
	}

	c := cli.NewCLI("dprint-go", version)
	c.Args = args
	c.Commands = commands(m)

	status, err := c.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeError
	}
	return status
}
