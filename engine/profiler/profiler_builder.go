package profiler

import "time"

// ProfilerBuilderOption is a functional option for configuring a Profiler via NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often statistics are reported. Non-positive values keep the
// default of one second.
//
// Parameters:
//   - interval: the reporting interval
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the interval to a profiler
func WithInterval(interval time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithClock replaces time.Now as the profiler's time source.
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// WithoutMemoryStats skips reading runtime memory statistics, which stops the world
// briefly on every report.
func WithoutMemoryStats() ProfilerBuilderOption {
	return func(p *Profiler) {
		p.memory = false
	}
}

// WithReport sets a callback receiving every report, for example to show the frame rate
// in a window title.
func WithReport(fn func(Stats)) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.report = fn
	}
}
