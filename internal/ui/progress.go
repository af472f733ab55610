package ui

import (
	"sort"
	"sync"
	"time"
)

// ProgressTracker aggregates worker snapshots. It is safe for concurrent use.
type ProgressTracker struct {
	mu        sync.RWMutex
	phase     Phase
	workers   map[int]WorkerEvent
	startTime time.Time
	errors    []ErrorEvent
	warnCount int

	// ETA smoothing to prevent wild fluctuations
	lastETA time.Duration

	// Throughput tracking in documents per second
	lastWritten   int64
	lastSpeedCalc time.Time
	currentSpeed  float64
	avgSpeed      float64
	peakSpeed     float64
	speedSamples  int
	sparkline     *Sparkline
}

// SpeedStats contains speed metrics for display.
type SpeedStats struct {
	Current float64 // Current docs/sec
	Avg     float64 // Rolling average
	Peak    float64 // Maximum observed
}

// ProgressStats contains a snapshot of current progress.
type ProgressStats struct {
	Phase      Phase
	Workers    []WorkerEvent // Ordered by worker index
	BytesRead  uint64
	BytesTotal uint64
	Written    int64
	Skipped    int64
	Commits    int64
	Progress   float64
	ETA        time.Duration
	ErrorCount int
	WarnCount  int
	Speed      SpeedStats
}

// maxKeptWarnings bounds memory when a file is mostly malformed.
const maxKeptWarnings = 100

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		phase:         PhasePreparing,
		workers:       make(map[int]WorkerEvent),
		startTime:     now,
		lastSpeedCalc: now,
		sparkline:     NewSparkline(60),
	}
}

// SetPhase transitions to a new phase.
func (p *ProgressTracker) SetPhase(phase Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = phase
}

// Update records a worker snapshot.
func (p *ProgressTracker) Update(event WorkerEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase == PhasePreparing {
		p.phase = PhaseIngesting
	}
	p.workers[event.Worker] = event

	// Calculate speed every 500ms to avoid noise
	now := time.Now()
	elapsed := now.Sub(p.lastSpeedCalc)
	if elapsed >= 500*time.Millisecond {
		written := p.writtenLocked()
		delta := written - p.lastWritten
		if delta > 0 {
			speed := float64(delta) / elapsed.Seconds()
			p.currentSpeed = speed

			p.speedSamples++
			if p.speedSamples == 1 {
				p.avgSpeed = speed
			} else {
				p.avgSpeed = 0.2*speed + 0.8*p.avgSpeed
			}
			if speed > p.peakSpeed {
				p.peakSpeed = speed
			}
			p.sparkline.Add(speed)
		}
		p.lastWritten = written
		p.lastSpeedCalc = now
	}
}

// AddError records an error; warnings are only counted past a small sample.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnCount++
		if p.warnCount > maxKeptWarnings {
			return
		}
	}
	p.errors = append(p.errors, event)
}

// Errors returns recorded errors and the first warnings, in arrival order.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.errors))
	copy(result, p.errors)
	return result
}

// Elapsed returns time since tracker creation.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.startTime)
}

// Stats returns current statistics snapshot.
// Uses write lock because calculateETA modifies lastETA for smoothing.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := ProgressStats{
		Phase:     p.phase,
		Workers:   make([]WorkerEvent, 0, len(p.workers)),
		WarnCount: p.warnCount,
		Speed: SpeedStats{
			Current: p.currentSpeed,
			Avg:     p.avgSpeed,
			Peak:    p.peakSpeed,
		},
	}
	for _, w := range p.workers {
		stats.Workers = append(stats.Workers, w)
		stats.BytesRead += w.BytesRead
		stats.BytesTotal += w.BytesTotal
		stats.Written += w.Written
		stats.Skipped += w.Skipped
		stats.Commits += w.Commits
	}
	sort.Slice(stats.Workers, func(i, j int) bool {
		return stats.Workers[i].Worker < stats.Workers[j].Worker
	})
	for _, e := range p.errors {
		if !e.IsWarn {
			stats.ErrorCount++
		}
	}
	if stats.BytesTotal > 0 {
		stats.Progress = min(float64(stats.BytesRead)/float64(stats.BytesTotal), 1.0)
	}
	stats.ETA = p.calculateETA(stats.Progress)
	return stats
}

func (p *ProgressTracker) writtenLocked() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Written
	}
	return n
}

// etaSmoothingFactor controls how much weight is given to new ETA values.
const etaSmoothingFactor = 0.3

// calculateETA calculates ETA with exponential smoothing (must be called with lock held).
func (p *ProgressTracker) calculateETA(progress float64) time.Duration {
	if progress <= 0 || progress >= 1.0 {
		return 0
	}

	elapsed := time.Since(p.startTime)
	rawRemaining := time.Duration(float64(elapsed)/progress) - elapsed
	if rawRemaining < 0 {
		return 0
	}

	if p.lastETA == 0 {
		p.lastETA = rawRemaining
		return rawRemaining
	}
	smoothed := time.Duration(
		etaSmoothingFactor*float64(rawRemaining) +
			(1-etaSmoothingFactor)*float64(p.lastETA),
	)
	p.lastETA = smoothed
	return smoothed
}

// RenderSparkline returns the throughput sparkline.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sparkline.Render(width)
}
