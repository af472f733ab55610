package ui

import "strings"

// Sparkline renders a ring buffer of samples with Unicode block characters.
type Sparkline struct {
	samples []float64
	head    int
	count   int
}

// SparklineChars are the eight bar heights, lowest first.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// NewSparkline creates a sparkline holding up to capacity samples.
func NewSparkline(capacity int) *Sparkline {
	if capacity <= 0 {
		capacity = 60
	}
	return &Sparkline{samples: make([]float64, capacity)}
}

// Add appends a sample, evicting the oldest when full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % len(s.samples)
	s.count++
}

// Count returns the number of samples added.
func (s *Sparkline) Count() int {
	return s.count
}

// Render draws the most recent width samples, scaled to the largest of
// them, right-aligned and padded with spaces.
func (s *Sparkline) Render(width int) string {
	capacity := len(s.samples)
	if width <= 0 || width > capacity {
		width = capacity
	}

	n := min(s.count, capacity, width)
	recent := make([]float64, n)
	for i := 0; i < n; i++ {
		idx := (s.head - n + i + capacity) % capacity
		recent[i] = s.samples[idx]
	}

	peak := 0.0
	for _, v := range recent {
		peak = max(peak, v)
	}

	var sb strings.Builder
	sb.Grow(width * 3)
	sb.WriteString(strings.Repeat(" ", width-n))
	for _, v := range recent {
		level := 0
		if peak > 0 {
			level = int(v / peak * float64(len(SparklineChars)-1))
		}
		level = max(0, min(level, len(SparklineChars)-1))
		sb.WriteRune(SparklineChars[level])
	}
	return sb.String()
}
