package cmd

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/taxidx/internal/errors"
	"github.com/Aman-CERP/taxidx/internal/output"
	"github.com/Aman-CERP/taxidx/internal/store"
	"github.com/Aman-CERP/taxidx/internal/taxi"
	"github.com/Aman-CERP/taxidx/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	backend string
	field   string
	rng     string // "min,max"
	text    string
	geo     string // "topLeftLon,topLeftLat,bottomRightLon,bottomRightLat"
	id      string
	limit   int
	fields  []string
	format  string // "text", "json"
}

func newSearchCmd(a *app) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <index>",
		Short: "Query a trip index",
		Long: `Run one query against a committed index. Without a query flag every
document matches.

Query kinds:
  --range min,max   numeric range on --field (default totalAmount), inclusive
  --text words      full-text match on --field (default description)
  --geo l,t,r,b     bounding box on --field (default pickUpLocation)
  --id doc-id       stored fields of one document`,
		Example: `  taxidx search trips.bleve --range 5,15
  taxidx search trips.db --field tipAmount --range 10,100 --limit 5
  taxidx search trips.bleve --text "passengers" --fields totalAmount,description
  taxidx search trips.bleve --geo -74.0,40.8,-73.9,40.7
  taxidx search trips.bleve --id 3-1207 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.backend, "backend", "b", "", "Index engine (default: detected)")
	cmd.Flags().StringVar(&opts.field, "field", "", "Field the query applies to")
	cmd.Flags().StringVar(&opts.rng, "range", "", "Numeric range min,max")
	cmd.Flags().StringVar(&opts.text, "text", "", "Full-text query")
	cmd.Flags().StringVar(&opts.geo, "geo", "", "Bounding box topLeftLon,topLeftLat,bottomRightLon,bottomRightLat")
	cmd.Flags().StringVar(&opts.id, "id", "", "Document ID")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of hits")
	cmd.Flags().StringSliceVar(&opts.fields, "fields", nil, "Stored fields to show (default: all)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.MarkFlagsMutuallyExclusive("range", "text", "geo", "id")

	return cmd
}

func runSearch(cmd *cobra.Command, path string, opts searchOptions) error {
	ctx := cmd.Context()
	if opts.format != "text" && opts.format != "json" {
		return errors.ConfigError(fmt.Sprintf("unknown format %q", opts.format), nil).
			WithSuggestion("Use --format text or --format json")
	}
	for _, name := range opts.fields {
		if _, err := taxi.LookupField(name); err != nil {
			return err
		}
	}

	idx, err := openIndex(path, opts.backend)
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	out := output.New(cmd.OutOrStdout()).WithColor(!ui.DetectNoColor() && ui.IsTTY(cmd.OutOrStdout()))

	if opts.id != "" {
		fields, err := idx.Stored(ctx, opts.id)
		if err != nil {
			return err
		}
		res := &store.Result{Total: 1, Hits: []store.Hit{{ID: opts.id, Fields: fields}}}
		if opts.format == "json" {
			return out.JSON(res)
		}
		out.Hits(res, opts.fields)
		return nil
	}

	var res *store.Result
	kind := "match_all"
	switch {
	case opts.rng != "":
		kind = "range"
		field, err := queryField(opts.field, taxi.FieldTotalAmount)
		if err != nil {
			return err
		}
		lo, hi, err := parseRange(opts.rng)
		if err != nil {
			return err
		}
		res, err = idx.NumericRange(ctx, field, lo, hi, opts.limit)
		if err != nil {
			return err
		}
	case opts.text != "":
		kind = "text"
		field, err := queryField(opts.field, taxi.FieldDescription)
		if err != nil {
			return err
		}
		res, err = idx.Text(ctx, field, opts.text, opts.limit)
		if err != nil {
			return err
		}
	case opts.geo != "":
		kind = "geo"
		field, err := queryField(opts.field, taxi.FieldPickupLocation)
		if err != nil {
			return err
		}
		topLeft, bottomRight, err := parseBox(opts.geo)
		if err != nil {
			return err
		}
		res, err = idx.GeoBox(ctx, field, topLeft, bottomRight, opts.limit)
		if err != nil {
			return err
		}
	default:
		res, err = idx.MatchAll(ctx, opts.limit)
		if err != nil {
			return err
		}
	}

	slog.Info("search_done",
		slog.String("index", path),
		slog.String("kind", kind),
		slog.Uint64("total", res.Total),
		slog.Int("returned", len(res.Hits)))

	if opts.format == "json" {
		return out.JSON(res)
	}
	out.Hits(res, opts.fields)
	return nil
}

// queryField resolves the --field value, falling back to def.
func queryField(name string, def taxi.Field) (string, error) {
	if name == "" {
		return def.Name(), nil
	}
	f, err := taxi.LookupField(name)
	if err != nil {
		return "", err
	}
	return f.Name(), nil
}

func parseFloats(s string, n int, flag string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, errors.ConfigError(
			fmt.Sprintf("--%s needs %d comma-separated numbers, got %q", flag, n, s), nil)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("--%s: %q is not a number", flag, p), err)
		}
		out[i] = v
	}
	return out, nil
}

func parseRange(s string) (float64, float64, error) {
	v, err := parseFloats(s, 2, "range")
	if err != nil {
		return 0, 0, err
	}
	if v[0] > v[1] {
		return 0, 0, errors.ConfigError(fmt.Sprintf("--range min %g is greater than max %g", v[0], v[1]), nil)
	}
	return v[0], v[1], nil
}

func parseBox(s string) (store.GeoPoint, store.GeoPoint, error) {
	v, err := parseFloats(s, 4, "geo")
	if err != nil {
		return store.GeoPoint{}, store.GeoPoint{}, err
	}
	return store.GeoPoint{Lon: v[0], Lat: v[1]}, store.GeoPoint{Lon: v[2], Lat: v[3]}, nil
}
