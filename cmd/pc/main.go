package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := buildRoot(command{
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		goos:       runtime.GOOS,
		isTerminal: isTerminal,
	})
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// buildRoot creates the pc command. pc has no subcommands: every positional
// argument is a port.
func buildRoot(c command) *cobra.Command {
	flags := &CheckFlags{}
	root := &cobra.Command{
		Use:   "pc [flags] PORT...",
		Short: "Check what's using a port",
		Long: `Cross-platform tool to inspect which process is listening on a given TCP port.
Supports multiple output formats: human (default), json, yaml, toml, xml, toon.

Examples:
  pc 8080
  pc -x 22 443 5432
  pc -f json 8080 | jq .pid
  pc --sudo 5432                 # reveal listeners owned by other users`,
		Version:       version,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Check(cmd.Context(), *flags, cmd.Flags(), args)
		},
	}
	flags.register(root)
	return root
}
