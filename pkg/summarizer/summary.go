// Package summarizer provides summary generation for frame capture runs.
package summarizer

import "time"

// Summary contains all data collected during a capture run.
type Summary struct {
	// Metadata
	GeneratedAt time.Time

	// Where frames came from and went to
	Source    string
	OutputDir string

	// Timing
	StartedAt time.Time
	Duration  time.Duration

	// Frame counts
	Frames FrameInfo
}

// FrameInfo contains frame counters of a run.
type FrameInfo struct {
	Saved   int
	Dropped uint64
	Failed  int
	Bytes   int64
}

// FPS returns the average saved frame rate, or 0 for an empty run.
func (s *Summary) FPS() float64 {
	if s.Duration <= 0 || s.Frames.Saved == 0 {
		return 0
	}
	return float64(s.Frames.Saved) / s.Duration.Seconds()
}

// AverageFrameSize returns the mean size of a saved frame in bytes.
func (s *Summary) AverageFrameSize() int64 {
	if s.Frames.Saved == 0 {
		return 0
	}
	return s.Frames.Bytes / int64(s.Frames.Saved)
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSource sets the frame source description.
func (b *Builder) WithSource(source string) *Builder {
	b.summary.Source = source
	return b
}

// WithOutputDir sets the directory frames were written to.
func (b *Builder) WithOutputDir(dir string) *Builder {
	b.summary.OutputDir = dir
	return b
}

// WithTiming sets when the run started and how long it lasted.
func (b *Builder) WithTiming(started time.Time, duration time.Duration) *Builder {
	b.summary.StartedAt = started
	b.summary.Duration = duration
	return b
}

// WithFrames sets frame counters.
func (b *Builder) WithFrames(frames FrameInfo) *Builder {
	b.summary.Frames = frames
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
