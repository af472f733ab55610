package cmd

import (
	"context"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/taxidx/internal/errors"
	"github.com/Aman-CERP/taxidx/internal/logging"
)

type logsFlags struct {
	follow  bool
	lines   int
	level   string
	filter  string
	event   string
	workers []int
	noColor bool
	file    string
}

func newLogsCmd(a *app) *cobra.Command {
	var f logsFlags

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View taxidx debug logs",
		Long: `View and filter the structured logs written by --debug or --log-file.

Entries can be narrowed by level, by event name prefix (for example
ingest_parse to see skipped lines), by worker, or by a regular expression
on the raw line.`,
		Example: `  taxidx logs                     # last 50 entries
  taxidx logs -f                  # follow new entries
  taxidx logs --level warn        # warnings and errors only
  taxidx logs --event ingest_commit --worker 2
  taxidx logs --filter "partition-3"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			explicit := f.file
			if explicit == "" && a.cfg != nil {
				explicit = a.cfg.Logging.File
			}
			return runLogs(cmd, explicit, f)
		},
	}

	cmd.Flags().BoolVarP(&f.follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&f.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&f.level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&f.filter, "filter", "", "Regular expression matched against each line")
	cmd.Flags().StringVar(&f.event, "event", "", "Only entries whose event starts with this prefix")
	cmd.Flags().IntSliceVar(&f.workers, "worker", nil, "Only entries of these workers")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "Disable colors")
	cmd.Flags().StringVar(&f.file, "file", "", "Log file to read (default: ~/.taxidx/logs/taxidx.log)")

	return cmd
}

func runLogs(cmd *cobra.Command, explicit string, f logsFlags) error {
	path, err := logging.FindLogFile(explicit)
	if err != nil {
		return errors.New(errors.ErrCodeReadFailed, err.Error(), nil).
			WithSuggestion("Pass --file or run a command with --debug")
	}

	vc := logging.ViewerConfig{
		Level:   f.level,
		Event:   f.event,
		Workers: f.workers,
		NoColor: f.noColor,
	}
	if f.filter != "" {
		re, err := regexp.Compile(f.filter)
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("invalid --filter pattern %q", f.filter), err)
		}
		vc.Pattern = re
	}

	out := cmd.OutOrStdout()
	viewer := logging.NewViewer(vc, out)

	entries, err := viewer.Tail(path, f.lines)
	if err != nil {
		return errors.IOError("failed to read log file", err)
	}
	viewer.Print(entries)

	if !f.follow {
		return nil
	}
	return followLogs(cmd.Context(), viewer, path)
}

func followLogs(ctx context.Context, viewer *logging.Viewer, path string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan logging.LogEntry, 64)
	errCh := make(chan error, 1)
	go func() {
		errCh <- viewer.Follow(ctx, path, ch)
	}()

	for {
		select {
		case entry := <-ch:
			viewer.Print([]logging.LogEntry{entry})
		case err := <-errCh:
			if err != nil {
				return errors.IOError("failed to follow log file", err)
			}
			return nil
		}
	}
}
