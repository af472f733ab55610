package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer provides rich terminal UI using bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *ingestModel
	tracker *ProgressTracker
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer.
// Returns an error if TUI initialization fails (e.g., non-TTY output).
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newIngestModel(tracker, cfg.Title, cfg.SpinnerStyle)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	opts = append(opts, tea.WithAltScreen(), tea.WithContext(r.ctx))

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event WorkerEvent) {
	r.tracker.Update(event)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(workerUpdateMsg(event))
	}
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.tracker.AddError(event)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(errorMsg(event))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.tracker.SetPhase(PhaseComplete)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program != nil {
		r.program.Quit()

		// Wait with timeout to avoid hanging on unresponsive TUI
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
		}
	}
	if r.cancel != nil {
		r.cancel()
	}

	// The alt screen is gone; leave the summary on the normal screen.
	if r.model.complete {
		_, _ = fmt.Fprint(r.cfg.Output, r.model.renderComplete())
	}
	return nil
}

// Message types for bubbletea
type workerUpdateMsg WorkerEvent
type errorMsg ErrorEvent
type completeMsg CompletionStats
type tickMsg time.Time

// ingestModel is the bubbletea model for ingestion progress.
type ingestModel struct {
	tracker     *ProgressTracker
	width       int
	height      int
	quitting    bool
	complete    bool
	stats       CompletionStats
	spinner     spinner.Model
	progressBar progress.Model
	workerBar   progress.Model
	styles      Styles
	title       string
}

func newIngestModel(tracker *ProgressTracker, title, spinnerStyle string) *ingestModel {
	s := spinner.New()
	s.Spinner = spinnerFor(spinnerStyle)
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	return &ingestModel{
		tracker: tracker,
		spinner: s,
		progressBar: progress.New(
			progress.WithSolidFill(ColorLime),
			progress.WithWidth(50),
			progress.WithoutPercentage(),
		),
		workerBar: progress.New(
			progress.WithSolidFill(ColorLimeDim),
			progress.WithWidth(30),
			progress.WithoutPercentage(),
		),
		styles: DefaultStyles(),
		width:  80,
		height: 24,
		title:  title,
	}
}

// spinnerFor maps a config spinner name to a bubbles spinner.
func spinnerFor(name string) spinner.Spinner {
	switch name {
	case "line":
		return spinner.Line
	case "minidot":
		return spinner.MiniDot
	case "pulse":
		return spinner.Pulse
	case "points":
		return spinner.Points
	default:
		return spinner.Dot
	}
}

// Init implements tea.Model.
func (m *ingestModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *ingestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progressBar.Width = max(msg.Width-20, 20)
		m.workerBar.Width = max(msg.Width/3, 10)

	case workerUpdateMsg, errorMsg:
		// Already handled by tracker in renderer
		return m, nil

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *ingestModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	contentWidth := max(m.width-4, 40)
	stats := m.tracker.Stats()

	sections := []string{
		m.renderOverall(stats),
		m.renderSpeedMetrics(stats),
		m.renderDivider(contentWidth),
		m.renderWorkers(stats),
		m.renderDivider(contentWidth),
		m.renderSparkline(contentWidth),
	}

	title := "taxidx ingest"
	if m.title != "" {
		title = fmt.Sprintf("taxidx ingest • %s", m.title)
	}
	panel := m.wrapInPanel(title, strings.Join(sections, "\n"), contentWidth)
	return panel + "\n" + m.renderStatusBar(stats)
}

// renderOverall renders the combined progress bar over all partitions.
func (m *ingestModel) renderOverall(stats ProgressStats) string {
	if stats.Phase == PhasePreparing || stats.BytesTotal == 0 {
		return fmt.Sprintf("%s %s...", m.spinner.View(), stats.Phase.String())
	}

	bar := m.progressBar.ViewAs(stats.Progress)
	pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100))
	counts := m.styles.Label.Render(fmt.Sprintf("%d written • %d skipped • %d commits • %s / %s",
		stats.Written, stats.Skipped, stats.Commits,
		FormatBytes(int64(stats.BytesRead)), FormatBytes(int64(stats.BytesTotal))))
	return fmt.Sprintf("%s  %s\n%s", bar, pct, counts)
}

// renderWorkers renders one row per worker.
func (m *ingestModel) renderWorkers(stats ProgressStats) string {
	if len(stats.Workers) == 0 {
		return m.styles.Dim.Render("waiting for workers")
	}

	rows := make([]string, 0, len(stats.Workers))
	for _, w := range stats.Workers {
		var icon string
		var style lipgloss.Style
		switch w.State {
		case WorkerDone:
			icon, style = "●", m.styles.Success
		case WorkerFailed:
			icon, style = "✗", m.styles.Error
		default:
			icon, style = m.spinner.View(), m.styles.Active
		}
		rows = append(rows, fmt.Sprintf("%s %s %s %s",
			style.Render(fmt.Sprintf("%s W%-2d", icon, w.Worker)),
			m.workerBar.ViewAs(w.Progress()),
			m.styles.Active.Render(fmt.Sprintf("%3.0f%%", w.Progress()*100)),
			m.styles.Label.Render(fmt.Sprintf("%d written, %d skipped", w.Written, w.Skipped))))
	}
	return strings.Join(rows, "\n")
}

// renderSpeedMetrics renders speed stats (current/avg/peak) and ETA.
func (m *ingestModel) renderSpeedMetrics(stats ProgressStats) string {
	var parts []string

	speedStr := fmt.Sprintf("Speed: %.0f docs/s", stats.Speed.Current)
	if stats.Speed.Avg > 0 {
		speedStr += fmt.Sprintf(" (avg: %.0f, peak: %.0f)", stats.Speed.Avg, stats.Speed.Peak)
	}
	parts = append(parts, m.styles.Speed.Render(speedStr))

	if e := stats.ETA; e > 0 {
		parts = append(parts, m.styles.Label.Render("ETA: "+formatDuration(e)))
	}
	return strings.Join(parts, m.styles.Dim.Render("  •  "))
}

// renderSparkline renders the throughput sparkline.
func (m *ingestModel) renderSparkline(width int) string {
	spark := m.tracker.RenderSparkline(max(width-14, 10))
	return m.styles.Sparkline.Render(spark) + " " + m.styles.Dim.Render("throughput ─")
}

func (m *ingestModel) renderDivider(width int) string {
	return m.styles.Border.Render(strings.Repeat("─", width))
}

// wrapInPanel wraps content in a box border with title.
func (m *ingestModel) wrapInPanel(title, content string, width int) string {
	panel := m.styles.Panel.Width(width)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(title),
		panel.Render(content),
	)
}

// renderStatusBar renders the bottom status bar with warnings/errors.
func (m *ingestModel) renderStatusBar(stats ProgressStats) string {
	var parts []string
	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d lines skipped", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d workers failed", stats.ErrorCount)))
	}
	if len(parts) == 0 {
		return m.styles.Dim.Render("q to quit")
	}

	separator := m.styles.Dim.Render("  │  ")
	return strings.Join(parts, separator) + m.styles.Dim.Render("  │  q to quit")
}

// renderComplete renders the completion summary.
func (m *ingestModel) renderComplete() string {
	contentWidth := max(m.width-4, 40)

	header := m.styles.Success.Render("✓ Ingestion Complete")
	if m.stats.FailedWorkers > 0 {
		header = m.styles.Warning.Render(fmt.Sprintf("⚠ Ingestion finished, %d of %d workers failed",
			m.stats.FailedWorkers, m.stats.Workers))
	}

	row := func(label string, value string) string {
		return fmt.Sprintf("%s %s", m.styles.Label.Render(fmt.Sprintf("%-10s", label)), m.styles.Active.Render(value))
	}
	lines := []string{
		header,
		"",
		row("Written:", fmt.Sprintf("%d", m.stats.Written)),
		row("Skipped:", fmt.Sprintf("%d", m.stats.Skipped)),
		row("Commits:", fmt.Sprintf("%d", m.stats.Commits)),
		row("Read:", FormatBytes(int64(m.stats.Bytes))),
		row("Duration:", formatDuration(m.stats.Duration)),
	}
	if m.stats.Output != "" {
		lines = append(lines, row("Index:", fmt.Sprintf("%s (%s)", m.stats.Output, m.stats.Backend)))
	}
	if len(m.stats.TopErrors) > 0 {
		lines = append(lines, "", m.styles.Warning.Render("Most frequent parse errors:"))
		for _, rc := range m.stats.TopErrors {
			lines = append(lines, m.styles.Dim.Render(fmt.Sprintf("  %6d  %s", rc.Count, rc.Reason)))
		}
	}

	border := ColorLime
	if m.stats.FailedWorkers > 0 {
		border = ColorYellow
	}
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Padding(1, 2).
		Width(contentWidth)

	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, m)
}

var _ Renderer = (*TUIRenderer)(nil)
