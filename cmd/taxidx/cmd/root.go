// Package cmd provides the CLI commands for taxidx.
package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/taxidx/internal/config"
	"github.com/Aman-CERP/taxidx/internal/errors"
	"github.com/Aman-CERP/taxidx/internal/logging"
	"github.com/Aman-CERP/taxidx/internal/profiling"
	"github.com/Aman-CERP/taxidx/pkg/version"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitError  = 1
	ExitConfig = 2
)

// app holds state shared by all subcommands of one invocation.
type app struct {
	configPath string
	debug      bool
	logFile    string
	profile    profiling.Options

	cfg        *config.Config
	profiler   *profiling.Session
	logCleanup func()
}

// NewRootCmd creates the root command for the taxidx CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxidx",
		Short: "Parallel bulk loader for NYC taxi trips",
		Long: `taxidx splits a newline-delimited JSON file of NYC taxi trips into
byte ranges, parses them on parallel workers and writes every trip into a
shared search index (Bleve or SQLite). The index can then be searched and
benchmarked.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}
	cmd.SetVersionTemplate("taxidx version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: ./.taxidx.yaml if present)")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging to ~/.taxidx/logs/")
	cmd.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Write JSON logs to this file")
	cmd.PersistentFlags().StringVar(&a.profile.CPUPath, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.HeapPath, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.TracePath, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newIngestCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newBenchCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newLogsCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads configuration, then starts logging and profiling.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	cfg, err := config.Load(cwd, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	cleanup, err := logging.SetupDefault(a.loggingConfig(cmd.ErrOrStderr()))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	a.logCleanup = cleanup

	if a.profile.Enabled() {
		session, err := profiling.Start(a.profile)
		if err != nil {
			return err
		}
		a.profiler = session
	}

	slog.Debug("command_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("version", version.Version))
	return nil
}

// loggingConfig derives the logger from config and flags. Without a log
// file only errors reach stderr, since the progress display already
// reports skips and commits there.
func (a *app) loggingConfig(stderr io.Writer) logging.Config {
	lc := logging.Config{
		Level:     a.cfg.Logging.Level,
		FilePath:  a.cfg.Logging.File,
		MaxSizeMB: a.cfg.Logging.MaxSizeMB,
		MaxFiles:  a.cfg.Logging.MaxFiles,
		Stderr:    stderr,
	}
	if a.logFile != "" {
		lc.FilePath = a.logFile
	}
	if a.debug {
		lc.Level = "debug"
		if lc.FilePath == "" {
			lc.FilePath = logging.DefaultLogPath()
		}
	}
	if lc.FilePath == "" && logging.LevelFromString(lc.Level) < slog.LevelError {
		lc.Level = "error"
	}
	return lc
}

// teardown stops profiling and flushes logs. Safe to call twice.
func (a *app) teardown() error {
	var err error
	if a.profiler != nil {
		err = a.profiler.Stop()
		a.profiler = nil
	}
	if a.logCleanup != nil {
		a.logCleanup()
		a.logCleanup = nil
	}
	return err
}

// Main runs the CLI with os.Args and returns the process exit code.
// Errors are printed to stderr.
func Main(stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	// PersistentPostRunE does not run when a command fails.
	_ = a.teardown()

	printError(stderr, err)
	return ExitCode(err)
}

// printError prints every error of a multierror on its own.
func printError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var merr *multierror.Error
	if stderrors.As(err, &merr) && len(merr.Errors) > 1 {
		for _, e := range merr.Errors {
			_, _ = fmt.Fprint(w, errors.FormatForCLI(e))
		}
		return
	}
	_, _ = fmt.Fprint(w, errors.FormatForCLI(err))
}

// ExitCode maps an error to the process exit code: 2 for configuration
// errors, 1 for anything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.IsConfig(err):
		return ExitConfig
	default:
		return ExitError
	}
}
