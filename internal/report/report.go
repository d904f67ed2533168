// Package report provides an injected progress/diagnostics sink for the
// pipeline controller, replacing ad hoc global console writes with a
// concurrency-safe interface that tests can stub out with NopReporter.
package report

import (
	"log"
	"sync"
	"time"
)

// Reporter receives progress and diagnostic events from the pipeline
// controller. Implementations must be safe for concurrent use: multiple
// channel workers may report in parallel.
type Reporter interface {
	Progress(framesDone, framesTotal int64)
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
}

// minProgressInterval throttles how often Progress actually emits a line,
// so a multi-million-frame conversion doesn't flood stderr.
const minProgressInterval = 200 * time.Millisecond

// LogReporter writes to a *log.Logger, rate-limiting progress lines.
type LogReporter struct {
	logger *log.Logger

	mu       sync.Mutex
	lastShow time.Time
}

// NewLogReporter wraps logger (nil selects log.Default()).
func NewLogReporter(logger *log.Logger) *LogReporter {
	if logger == nil {
		logger = log.Default()
	}
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Progress(framesDone, framesTotal int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if now.Sub(r.lastShow) < minProgressInterval && framesDone < framesTotal {
		return
	}
	r.lastShow = now
	if framesTotal > 0 {
		pct := float64(framesDone) / float64(framesTotal) * 100
		r.logger.Printf("progress: %.1f%% (%d/%d frames)", pct, framesDone, framesTotal)
		return
	}
	r.logger.Printf("progress: %d frames", framesDone)
}

func (r *LogReporter) Warnf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Printf("warning: "+format, args...)
}

func (r *LogReporter) Infof(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Printf(format, args...)
}

// NopReporter discards everything; useful for tests and library callers
// who don't want console output.
type NopReporter struct{}

func (NopReporter) Progress(int64, int64) {}
func (NopReporter) Warnf(string, ...any)  {}
func (NopReporter) Infof(string, ...any)  {}
