package cmd

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/taxidx/internal/errors"
	"github.com/Aman-CERP/taxidx/internal/store"
	"github.com/Aman-CERP/taxidx/internal/taxi"
	"github.com/Aman-CERP/taxidx/internal/ui"
)

func newStatusCmd(_ *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <index>",
		Short: "Show index size, document count and fields",
		Long: `Display information about an index: engine, committed document count,
size on disk, last modification time, whether an ingest currently holds
its lock, and the field schema.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := collectStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
			if jsonOutput {
				return renderer.RenderJSON(info)
			}
			return renderer.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func collectStatus(ctx context.Context, path string) (ui.StatusInfo, error) {
	backend := store.DetectBackend(path)
	if backend == "" {
		return ui.StatusInfo{}, errors.New(errors.ErrCodeIndexNotFound,
			"no index found at "+path, nil).
			WithSuggestion("Run 'taxidx ingest' to create one")
	}

	info := ui.StatusInfo{
		Path:    path,
		Backend: string(backend),
		Fields:  statusFields(),
	}
	info.Size, info.LastModified = diskUsage(path)

	// A running ingest holds the lock; its engine files are busy too.
	lock := store.NewIndexLock(path)
	if err := lock.TryLock(); err != nil {
		if errors.GetCode(err) != errors.ErrCodeIndexLocked {
			return info, err
		}
		info.Locked = true
		return info, nil
	}
	defer func() { _ = lock.Unlock() }()

	idx, err := store.Open(string(backend), path, taxi.Schema())
	if err != nil {
		return info, err
	}
	defer func() { _ = idx.Close() }()

	count, err := idx.DocCount(ctx)
	if err != nil {
		return info, err
	}
	info.Documents = count
	return info, nil
}

func statusFields() []ui.StatusField {
	schema := taxi.Schema()
	out := make([]ui.StatusField, 0, len(schema))
	for _, f := range schema {
		var flags []string
		if f.Range {
			flags = append(flags, "range")
		}
		if f.Text {
			flags = append(flags, "text")
		}
		if f.Stored {
			flags = append(flags, "stored")
		}
		out = append(out, ui.StatusField{Name: f.Name, Kind: f.Kind.String(), Flags: strings.Join(flags, ",")})
	}
	return out
}

// diskUsage sums file sizes below path and returns the newest mtime.
func diskUsage(path string) (size int64, modified time.Time) {
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		size += fi.Size()
		if fi.ModTime().After(modified) {
			modified = fi.ModTime()
		}
		return nil
	})
	return size, modified
}
