package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/taxidx/internal/store"
)

func TestWriter_StatusLines(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"status", func(w *Writer) { w.Status("→", "opening index") }, "→ opening index\n"},
		{"no icon", func(w *Writer) { w.Status("", "indented") }, "  indented\n"},
		{"statusf", func(w *Writer) { w.Statusf("→", "%d docs", 3) }, "→ 3 docs\n"},
		{"success", func(w *Writer) { w.Successf("wrote %s", "cfg.yaml") }, "✓ wrote cfg.yaml\n"},
		{"warning", func(w *Writer) { w.Warningf("%d skipped", 2) }, "⚠ 2 skipped\n"},
		{"error", func(w *Writer) { w.Errorf("bad %s", "input") }, "✗ bad input\n"},
		{"newline", func(w *Writer) { w.Newline() }, "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a writer without color
			buf := &bytes.Buffer{}
			w := New(buf)

			// When: writing
			tt.write(w)

			// Then: output is plain
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_Table(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Table([]string{"query", "seconds"}, [][]string{
		{"match_all", "0.12"},
		{"range", "0.5"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "query")
	assert.Contains(t, lines[0], "seconds")
	assert.Contains(t, buf.String(), "match_all")
	assert.Contains(t, buf.String(), "0.5")
}

func TestWriter_Hits(t *testing.T) {
	// Given: a result with two hits
	res := &store.Result{
		Total: 7,
		Hits: []store.Hit{
			{ID: "0-0", Fields: map[string]any{"totalAmount": 10.0, "vendorId": "2"}},
			{ID: "1-4", Fields: map[string]any{"totalAmount": 12.5}},
		},
	}

	// When: printing with selected fields
	buf := &bytes.Buffer{}
	New(buf).Hits(res, []string{"totalAmount"})

	// Then: header line plus one row per hit
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "7 total hits, showing 2\n"))
	assert.Contains(t, out, "0-0")
	assert.Contains(t, out, "12.5")
	assert.NotContains(t, out, "vendorId")
}

func TestWriter_HitsAllFields(t *testing.T) {
	res := &store.Result{Total: 1, Hits: []store.Hit{
		{ID: "0-0", Fields: map[string]any{"vendorId": "2", "totalAmount": 10.0}},
	}}

	buf := &bytes.Buffer{}
	New(buf).Hits(res, nil)

	out := buf.String()
	assert.Less(t, strings.Index(out, "totalAmount"), strings.Index(out, "vendorId"))
}

func TestWriter_HitsEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Hits(&store.Result{}, nil)
	assert.Equal(t, "0 total hits, showing 0\n", buf.String())

	buf.Reset()
	New(buf).Hits(nil, nil)
	assert.Empty(t, buf.String())
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, New(buf).JSON(map[string]int{"written": 3}))
	assert.Equal(t, "{\n  \"written\": 3\n}\n", buf.String())
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{10.0, "10"},
		{12.25, "12.25"},
		{int64(3), "3"},
		{"CSH", "CSH"},
		{store.GeoPoint{Lon: -73.5, Lat: 40.25}, "[-73.5, 40.25]"},
		{[]any{-73.5, 40.0}, "[-73.5, 40]"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}

func TestWriter_ColorOnlyWhenEnabled(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).WithColor(false).Success("done")
	assert.NotContains(t, buf.String(), "\x1b[")
}
