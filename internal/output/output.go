// Package output formats command results for the terminal: status lines,
// result tables and JSON.
package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	jsoniter "github.com/json-iterator/go"

	"github.com/Aman-CERP/taxidx/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	useColor bool
}

// New creates a new output Writer. Colors are off unless enabled with
// WithColor.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// WithColor enables or disables colored icons and table headers.
func (w *Writer) WithColor(on bool) *Writer {
	w.useColor = on
	return w
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "  %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status(w.paint("✓", "154"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.paint("⚠", "214"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.paint("✗", "196"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Table prints rows under headers with aligned columns.
func (w *Writer) Table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).BorderBottom(false).BorderLeft(false).BorderRight(false).
		BorderColumn(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingRight(2)
			if row == table.HeaderRow && w.useColor {
				s = s.Bold(true).Foreground(lipgloss.Color("154"))
			}
			return s
		})
	_, _ = fmt.Fprintln(w.out, t.Render())
}

// Hits prints a search result. Columns are the document ID followed by
// fields in order; with no fields every stored field of the hits is shown,
// sorted by name.
func (w *Writer) Hits(res *store.Result, fields []string) {
	if res == nil {
		return
	}
	_, _ = fmt.Fprintf(w.out, "%d total hits, showing %d\n", res.Total, len(res.Hits))
	if len(res.Hits) == 0 {
		return
	}

	if len(fields) == 0 {
		fields = hitFields(res.Hits)
	}
	headers := append([]string{"id"}, fields...)
	rows := make([][]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		row := make([]string, 0, len(headers))
		row = append(row, h.ID)
		for _, f := range fields {
			row = append(row, FormatValue(h.Fields[f]))
		}
		rows = append(rows, row)
	}
	w.Table(headers, rows)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatValue renders a stored field value compactly.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case store.GeoPoint:
		return "[" + FormatValue(x.Lon) + ", " + FormatValue(x.Lat) + "]"
	case []any:
		parts := make([]string, len(x))
		for i, p := range x {
			parts[i] = FormatValue(p)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(x)
	}
}

func hitFields(hits []store.Hit) []string {
	seen := map[string]struct{}{}
	for _, h := range hits {
		for k := range h.Fields {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (w *Writer) paint(icon, color string) string {
	if !w.useColor {
		return icon
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(icon)
}
