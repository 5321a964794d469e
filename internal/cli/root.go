// Package cli is the transportagent command line: one invocation performs one
// pass of an agent and exits with a code the scheduler can act on.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"transportagent/internal/config"
	"transportagent/internal/coordinator"
)

// runner carries the global flags and the exit code of the command that ran
type runner struct {
	configFile string
	logLevel   string
	fs         afero.Fs
	exitCode   int
}

// Execute runs the command line with args and returns the process exit code
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := &runner{fs: afero.NewOsFs()}
	root := r.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		return coordinator.ExitError
	}
	return r.exitCode
}

func (r *runner) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "transportagent",
		Short: "Batch market-data requests through the vendor transport",
		Long: `transportagent groups registered series into vendor requests, submits them,
polls for the answers and reconciles every returned row with its series.

Each invocation performs one pass; schedule "request" and "poll" periodically.
Exit codes: 0 work processed, 100 nothing to process, 1 error.`,
		SilenceUsage: true,
		Example: `  # Load series and the return-status table
  transportagent import items series.csv
  transportagent import statuses return_status.csv

  # Submit new series, then collect finished requests
  transportagent request
  transportagent poll

  # Show what is in the database
  transportagent report --status INVALID`,
	}

	rootCmd.PersistentFlags().StringVar(&r.configFile, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&r.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(r.newActionCmd("request", nil, "Group new series into batches and submit them"))
	rootCmd.AddCommand(r.newActionCmd("poll", []string{"polling"}, "Poll submitted batches and reconcile finished ones"))
	rootCmd.AddCommand(r.newImportCmd())
	rootCmd.AddCommand(r.newReportCmd())

	return rootCmd
}

// open loads the configuration and opens the run resources
func (r *runner) open(cmd *cobra.Command) (*app, error) {
	overrides := map[string]any{}
	if r.logLevel != "" {
		overrides["log_level"] = r.logLevel
	}
	cfg, err := config.Load(r.configFile, overrides)
	if err != nil {
		return nil, err
	}

	a, err := openApp(cfg, cmd.ErrOrStderr(), r.fs)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return a, nil
}

// fail records the error exit code and hands err back to cobra
func (r *runner) fail(err error) error {
	r.exitCode = coordinator.ExitError
	return err
}
