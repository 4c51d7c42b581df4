// Package profiler reports frame rate, frame times, draw calls and memory statistics of
// the render loop at a fixed interval.
package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/prism/internal/logx"
)

var log = logx.Logger("profiler")

// Stats summarizes the frames of one reporting interval.
type Stats struct {
	Frames      int
	FPS         float64
	MeanFrame   time.Duration
	MaxFrame    time.Duration
	DrawCalls   int
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	SysMB       float64
}

// Profiler tracks frame timing and memory statistics for performance monitoring.
// It logs a summary once per interval.
type Profiler struct {
	now      func() time.Time
	interval time.Duration
	memory   bool
	report   func(Stats)

	start     time.Time
	lastFrame time.Time
	frames    int
	draws     int
	maxFrame  time.Duration

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Stats
}

// NewProfiler creates a new Profiler. The interval defaults to 1 second and memory
// statistics are read on every report.
//
// Parameters:
//   - options: a variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		now:      time.Now,
		interval: time.Second,
		memory:   true,
	}
	for _, option := range options {
		option(p)
	}
	p.start = p.now()
	p.lastFrame = p.start
	return p
}

// Last returns the statistics of the most recent report.
func (p *Profiler) Last() Stats { return p.last }

// Tick should be called once per frame with the number of draw calls the frame recorded.
// Statistics are logged and handed to the report callback when the interval has elapsed.
//
// Parameters:
//   - draws: the draw calls of the frame
//
// Returns:
//   - bool: true if stats were reported this tick, false otherwise
func (p *Profiler) Tick(draws int) bool {
	now := p.now()
	p.frames++
	p.draws += draws
	p.maxFrame = max(p.maxFrame, now.Sub(p.lastFrame))
	p.lastFrame = now

	elapsed := now.Sub(p.start)
	if elapsed < p.interval {
		return false
	}

	s := Stats{
		Frames:    p.frames,
		FPS:       float64(p.frames) / elapsed.Seconds(),
		MeanFrame: elapsed / time.Duration(p.frames),
		MaxFrame:  p.maxFrame,
		DrawCalls: p.draws / p.frames,
	}
	if p.memory {
		p.readMemory(&s, elapsed)
	}
	log.Info("frame stats",
		"fps", s.FPS,
		"mean", s.MeanFrame,
		"max", s.MaxFrame,
		"draws", s.DrawCalls,
		"heapMB", s.HeapMB,
		"allocRateMB", s.AllocRateMB,
		"gc", s.GCCount,
		"lastPauseUs", s.LastPauseUs,
		"maxPauseUs", s.MaxPauseUs,
		"sysMB", s.SysMB,
	)
	if p.report != nil {
		p.report(s)
	}

	p.last = s
	p.start = now
	p.frames = 0
	p.draws = 0
	p.maxFrame = 0
	return true
}

// readMemory fills the memory fields of s from the runtime.
// Alloc is the live heap, TotalAlloc grows forever and tracks churn, Sys is the process
// footprint obtained from the OS.
func (p *Profiler) readMemory(s *Stats, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	s.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	s.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	s.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	s.GCCount = gcCount
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses
		s.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			s.MaxPauseUs = max(s.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}
