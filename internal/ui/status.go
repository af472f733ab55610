package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes an index on disk.
type StatusInfo struct {
	Path         string        `json:"path"`
	Backend      string        `json:"backend"`
	Documents    uint64        `json:"documents"`
	Size         int64         `json:"size_bytes"`
	LastModified time.Time     `json:"last_modified"`
	Locked       bool          `json:"locked"`
	Fields       []StatusField `json:"fields,omitempty"`
}

// StatusField is one schema field as shown by status.
type StatusField struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Flags string `json:"flags"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+info.Path))

	_, _ = fmt.Fprintf(r.out, "  Backend:       %s\n", info.Backend)
	_, _ = fmt.Fprintf(r.out, "  Documents:     %d\n", info.Documents)
	_, _ = fmt.Fprintf(r.out, "  Size:          %s\n", FormatBytes(info.Size))
	if !info.LastModified.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last modified: %s\n", formatTime(info.LastModified))
	}
	lock := r.styles.Success.Render("free")
	if info.Locked {
		lock = r.styles.Warning.Render("held (ingest running)")
	}
	_, _ = fmt.Fprintf(r.out, "  Lock:          %s\n", lock)

	if len(info.Fields) > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "  Fields:")
		for _, f := range info.Fields {
			_, _ = fmt.Fprintf(r.out, "    %-22s %-6s %s\n", f.Name, f.Kind, r.styles.Label.Render(f.Flags))
		}
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
