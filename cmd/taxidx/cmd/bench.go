package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/taxidx/internal/bench"
	"github.com/Aman-CERP/taxidx/internal/config"
	"github.com/Aman-CERP/taxidx/internal/output"
	"github.com/Aman-CERP/taxidx/internal/taxi"
	"github.com/Aman-CERP/taxidx/internal/ui"
)

func newBenchCmd(a *app) *cobra.Command {
	var (
		backend    string
		iterations int
		size       int
		workers    int
		field      string
		rng        string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "bench <index>",
		Short: "Time match-all and range queries",
		Long: `Run a match-all query and a numeric range query a fixed number of times
each against a committed index and report the total time per query kind.

Defaults come from the bench section of the configuration: 500 iterations,
2000 hits per query, totalAmount in [5, 15], one query in flight.`,
		Example: `  taxidx bench trips.bleve
  taxidx bench trips.db --iterations 100 --concurrency 4
  taxidx bench trips.bleve --field tripDistance --range 1,3 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			b := &a.cfg.Bench
			if flags.Changed("iterations") {
				b.Iterations = iterations
			}
			if flags.Changed("size") {
				b.ResultSize = size
			}
			if flags.Changed("concurrency") {
				b.Concurrency = workers
			}
			if flags.Changed("field") {
				b.RangeField = field
			}
			if flags.Changed("range") {
				lo, hi, err := parseRange(rng)
				if err != nil {
					return err
				}
				b.RangeMin, b.RangeMax = lo, hi
			}
			return runBench(cmd, args[0], backend, *b, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&backend, "backend", "b", "", "Index engine (default: detected)")
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "Runs per query kind (default 500)")
	cmd.Flags().IntVar(&size, "size", 0, "Hits requested per query (default 2000)")
	cmd.Flags().IntVar(&workers, "concurrency", 0, "Queries in flight (default 1)")
	cmd.Flags().StringVar(&field, "field", "", "Range query field (default totalAmount)")
	cmd.Flags().StringVar(&rng, "range", "", "Range query bounds min,max (default 5,15)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runBench(cmd *cobra.Command, path, backend string, bc config.BenchConfig, jsonOutput bool) error {
	field, err := queryField(bc.RangeField, taxi.FieldTotalAmount)
	if err != nil {
		return err
	}

	idx, err := openIndex(path, backend)
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	report, err := bench.Run(cmd.Context(), idx, bench.Config{
		Iterations:  bc.Iterations,
		ResultSize:  bc.ResultSize,
		Concurrency: bc.Concurrency,
		RangeField:  field,
		RangeMin:    bc.RangeMin,
		RangeMax:    bc.RangeMax,
	})
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout()).WithColor(!ui.DetectNoColor() && ui.IsTTY(cmd.OutOrStdout()))
	if jsonOutput {
		return out.JSON(report)
	}

	out.Statusf("→", "%s: %d documents, %d iterations, %d hits per query", path, report.Documents, bc.Iterations, bc.ResultSize)
	rows := make([][]string, 0, len(report.Queries))
	for _, q := range report.Queries {
		rows = append(rows, []string{
			q.Name,
			strconv.FormatFloat(q.Elapsed.Seconds(), 'f', 3, 64),
			q.Mean().String(),
			q.P99.String(),
			fmt.Sprintf("%d", q.Total),
		})
	}
	out.Table([]string{"query", "total (s)", "mean", "p99", "hits"}, rows)
	return nil
}
