package cmd

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/taxidx/internal/config"
	"github.com/Aman-CERP/taxidx/internal/errors"
	"github.com/Aman-CERP/taxidx/internal/index"
	"github.com/Aman-CERP/taxidx/internal/preflight"
	"github.com/Aman-CERP/taxidx/internal/profiling"
	"github.com/Aman-CERP/taxidx/internal/telemetry"
	"github.com/Aman-CERP/taxidx/internal/ui"
)

type ingestFlags struct {
	input           string
	output          string
	workers         int
	commitThreshold int
	bufferSize      int
	backend         string
	strict          bool
	noTUI           bool
	quiet           bool
	skipCheck       bool
	metricsFile     string
}

func newIngestCmd(a *app) *cobra.Command {
	var f ingestFlags

	cmd := &cobra.Command{
		Use:   "ingest [workers input output docs-per-commit]",
		Short: "Load an NDJSON trip file into an index",
		Long: `Split the input file into one byte range per worker, parse every line
as a taxi trip and add it to a shared index. Each worker commits after
adding docs-per-commit documents and once more when it finishes.

Malformed lines are reported and skipped. A worker that hits an IO error
stops; the others finish and the run reports every failure.

By default each worker starts one byte before its range, as the classic
loader did, so a line crossing a boundary can be indexed twice or in part.
--strict moves every boundary to the next line start instead.`,
		Example: `  # Four positional arguments
  taxidx ingest 8 trips.json trips.bleve 10000

  # Flags, SQLite engine, plain progress output
  taxidx ingest --input trips.json --output trips.db --backend sqlite --no-tui

  # Line-aligned partitions and a metrics dump
  taxidx ingest -i trips.json -o trips.bleve --strict --metrics-file ingest.prom`,
		Args: ingestArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyIngestArgs(a.cfg, cmd, f, args); err != nil {
				return err
			}
			return runIngest(cmd, a.cfg)
		},
	}

	cmd.Flags().StringVarP(&f.input, "input", "i", "", "NDJSON input file")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Index location (directory for bleve, file for sqlite)")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Number of parallel workers (default: CPU count)")
	cmd.Flags().IntVarP(&f.commitThreshold, "commit-threshold", "c", 0, "Documents per worker between commits (default 10000)")
	cmd.Flags().IntVar(&f.bufferSize, "buffer-size", 0, "Read chunk size in bytes (default 1024)")
	cmd.Flags().StringVarP(&f.backend, "backend", "b", "", "Index engine: bleve or sqlite")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Align partitions to line starts")
	cmd.Flags().BoolVar(&f.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Plain mode: only print start, failure and summary lines")
	cmd.Flags().BoolVar(&f.skipCheck, "skip-check", false, "Skip pre-flight system checks")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file when done")

	return cmd
}

// ingestArgs accepts either no positional arguments or all four.
func ingestArgs(_ *cobra.Command, args []string) error {
	if len(args) == 0 || len(args) == 4 {
		return nil
	}
	return errors.ConfigError(
		fmt.Sprintf("ingest takes 0 or 4 arguments, got %d", len(args)), nil).
		WithSuggestion("Use 'taxidx ingest <workers> <input> <output> <docs-per-commit>' or the --input/--output flags")
}

// applyIngestArgs layers positional arguments, then explicitly set flags,
// over the loaded configuration.
func applyIngestArgs(cfg *config.Config, cmd *cobra.Command, f ingestFlags, args []string) error {
	in := &cfg.Ingest

	if len(args) == 4 {
		workers, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.New(errors.ErrCodeInvalidWorkers,
				fmt.Sprintf("workers must be an integer, got %q", args[0]), err)
		}
		threshold, err := strconv.Atoi(args[3])
		if err != nil {
			return errors.New(errors.ErrCodeInvalidBatchSize,
				fmt.Sprintf("docs-per-commit must be an integer, got %q", args[3]), err)
		}
		in.Workers, in.Input, in.Output, in.CommitThreshold = workers, args[1], args[2], threshold
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		in.Input = f.input
	}
	if flags.Changed("output") {
		in.Output = f.output
	}
	if flags.Changed("workers") {
		in.Workers = f.workers
	}
	if flags.Changed("commit-threshold") {
		in.CommitThreshold = f.commitThreshold
	}
	if flags.Changed("buffer-size") {
		in.BufferSize = f.bufferSize
	}
	if flags.Changed("backend") {
		in.Backend = f.backend
	}
	if flags.Changed("strict") {
		in.StrictBoundaries = f.strict
	}
	if flags.Changed("skip-check") {
		in.SkipPreflight = f.skipCheck
	}
	if flags.Changed("no-tui") {
		cfg.UI.NoTUI = f.noTUI
	}
	if flags.Changed("quiet") {
		cfg.UI.Quiet = f.quiet
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.File = f.metricsFile
	}
	return nil
}

func runIngest(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()

	if err := cfg.ValidateJob(); err != nil {
		return err
	}

	if !cfg.Ingest.SkipPreflight {
		checker := preflight.New(preflight.WithOutput(cmd.ErrOrStderr()), preflight.WithVerbose(true))
		results := checker.RunAll(ctx, preflight.Target{
			Input:           cfg.Ingest.Input,
			Output:          cfg.Ingest.Output,
			Workers:         cfg.Ingest.Workers,
			CommitThreshold: cfg.Ingest.CommitThreshold,
		})
		for _, r := range results {
			slog.Debug("preflight_check",
				slog.String("check", r.Name),
				slog.String("status", r.Status.String()),
				slog.String("message", r.Message))
		}
		if checker.HasCriticalFailures(results) {
			checker.PrintResults(results)
			return errors.New(errors.ErrCodePreflight, "system check failed", nil).
				WithSuggestion("Fix the failures above or rerun with --skip-check")
		}
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(cfg.UI.NoTUI),
		ui.WithNoColor(cfg.UI.NoColor),
		ui.WithSpinnerStyle(cfg.UI.Spinner),
		ui.WithQuiet(cfg.UI.Quiet),
		ui.WithTitle(cfg.Ingest.Input),
	))
	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start progress display: %w", err)
	}

	metrics := telemetry.NewIngestMetrics()
	_, runErr := index.Ingest(ctx, index.RunnerConfig{
		Input:            cfg.Ingest.Input,
		Output:           cfg.Ingest.Output,
		Workers:          cfg.Ingest.Workers,
		CommitThreshold:  cfg.Ingest.CommitThreshold,
		BufferSize:       cfg.Ingest.BufferSize,
		Backend:          cfg.Ingest.Backend,
		StrictBoundaries: cfg.Ingest.StrictBoundaries,
	}, renderer, metrics)

	if err := renderer.Stop(); err != nil {
		slog.Warn("renderer_stop_failed", slog.String("error", err.Error()))
	}
	profiling.LogMemStats("ingest_memstats")

	if cfg.Metrics.File != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.File); err != nil {
			slog.Error("metrics_write_failed", slog.String("path", cfg.Metrics.File), slog.String("error", err.Error()))
			if runErr == nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
		}
	}
	return runErr
}
