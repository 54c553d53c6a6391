// Package cli provides the command-line interface for WaitLens.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/waitlens/internal/cli/commands"
	"github.com/ccollicutt/waitlens/internal/cli/plugins"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	rootCmd := NewRootCommand()

	// A first argument that is not a flag or built-in may name a plugin.
	if len(os.Args) > 1 {
		potentialCommand := os.Args[1]
		if len(potentialCommand) > 0 && potentialCommand[0] != '-' && !isBuiltinCommand(rootCmd, potentialCommand) {
			if pluginPath, err := plugins.FindPlugin(potentialCommand); err == nil {
				return plugins.Execute(pluginPath, os.Args[2:])
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := Run(ctx, rootCmd)
	if err == nil || errors.Is(err, commands.ErrIssuesFound) {
		return commands.ExitCode(err)
	}

	if len(os.Args) > 1 {
		potentialCommand := os.Args[1]
		if len(potentialCommand) > 0 && potentialCommand[0] != '-' && !isBuiltinCommand(rootCmd, potentialCommand) {
			_, _ = fmt.Fprintln(os.Stderr, plugins.FormatNotFoundError(potentialCommand))
			return commands.ExitError
		}
	}

	// SilenceErrors keeps cobra from printing this itself
	_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return commands.ExitCode(err)
}

// isBuiltinCommand checks if a command name is a built-in cobra command.
func isBuiltinCommand(rootCmd *cobra.Command, name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name || cmd.HasAlias(name) {
			return true
		}
	}
	return name == "help" || name == "completion"
}

// Run executes root and flushes the logger of the command that ran, including
// when it failed.
func Run(ctx context.Context, root *cobra.Command) error {
	cmd, err := root.ExecuteContextC(ctx)
	if cmd != nil {
		_ = commands.Logger(cmd.Context()).Sync()
	}
	return err
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	var logLevel, logFormat string

	rootCmd := &cobra.Command{
		Use:   "waitlens",
		Short: "Aggregate waiting times between activities of an event log",
		Long: `WaitLens computes waiting-time statistics for the transitions of a
process-mining event log.

It reports, per directly-follows transition:
  - Naive waiting times taken from the event log alone
  - Any metric over a waiting-time reasons report (total, contention,
    batching, prioritization, unavailability, extraneous, simple)
  - Shading intensities on a per-series or global scale

The reconcile command fills the simple waiting time of a reasons report by
matching each row back to the event log.

PLUGINS:
  WaitLens supports plugins for extended functionality. Plugins are standalone
  binaries named waitlens-<command> that are automatically discovered and invoked.

  Plugin locations (searched in order):
    1. Same directory as the waitlens binary
    2. Directories listed in WAITLENS_PLUGIN_PATH
    3. ~/.waitlens/plugins/
    4. Anywhere in PATH`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
			if err != nil {
				return err
			}
			cmd.SetContext(commands.WithLogger(cmd.Context(), logger))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log encoding on stderr (console|json)")

	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewReconcileCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
