package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := NewConfig(buf)

	assert.Equal(t, buf, cfg.Output)
	assert.Equal(t, "dots", cfg.SpinnerStyle)
	assert.False(t, cfg.ForcePlain)
	assert.False(t, cfg.Quiet)
}

func TestNewConfig_Options(t *testing.T) {
	cfg := NewConfig(&bytes.Buffer{},
		WithForcePlain(true),
		WithNoColor(true),
		WithSpinnerStyle("line"),
		WithTitle("trips.json"),
		WithQuiet(true),
	)

	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "line", cfg.SpinnerStyle)
	assert.Equal(t, "trips.json", cfg.Title)
	assert.True(t, cfg.Quiet)
}

func TestNewRenderer_PlainForNonTTY(t *testing.T) {
	// Given: a non-terminal output
	buf := &bytes.Buffer{}

	// When: choosing a renderer
	r := NewRenderer(NewConfig(buf))

	// Then: plain text is used
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewRenderer_ForcePlain(t *testing.T) {
	r := NewRenderer(NewConfig(&bytes.Buffer{}, WithForcePlain(true)))
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestIsTTY_NonFile(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}

func TestDetectCI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.True(t, DetectCI())
}

func TestPhaseAndStateStrings(t *testing.T) {
	assert.Equal(t, "Preparing", PhasePreparing.String())
	assert.Equal(t, "Ingesting", PhaseIngesting.String())
	assert.Equal(t, "Complete", PhaseComplete.String())
	assert.Equal(t, "running", WorkerRunning.String())
	assert.Equal(t, "done", WorkerDone.String())
	assert.Equal(t, "failed", WorkerFailed.String())
}

func TestNopRenderer(t *testing.T) {
	var r Renderer = NopRenderer{}
	assert.NoError(t, r.Start(t.Context()))
	r.UpdateProgress(WorkerEvent{})
	r.AddError(ErrorEvent{})
	r.Complete(CompletionStats{})
	assert.NoError(t, r.Stop())
}
