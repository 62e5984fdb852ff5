// Package progress reports the advance of long-running batch operations
// as a single self-overwriting line.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Tracker tracks and reports progress towards a known total.
// A nil *Tracker is valid and reports nothing.
type Tracker struct {
	writer         io.Writer
	label          string
	unit           string
	total          int
	current        int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
// total: total number of items to process
// reportInterval: report progress every N items
func NewTracker(writer io.Writer, label string, total, reportInterval int) *Tracker {
	if reportInterval <= 0 {
		reportInterval = 1
	}
	return &Tracker{
		writer:         writer,
		label:          label,
		unit:           "records",
		total:          total,
		reportInterval: reportInterval,
	}
}

// WithUnit sets the noun used in the rate, e.g. "vectors".
func (p *Tracker) WithUnit(unit string) *Tracker {
	if p != nil {
		p.unit = unit
	}
	return p
}

// Start begins tracking progress from initial, which lets a resumed
// operation report its absolute position.
func (p *Tracker) Start(initial int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = min(initial, p.total)
	p.lastReported = p.current
}

// Update sets the current progress to the specified value.
func (p *Tracker) Update(current int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.current = min(current, p.total)
	p.maybeReport()
}

// Increment increases the current progress by the specified amount.
func (p *Tracker) Increment(delta int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.current = min(p.current+delta, p.total)
	p.maybeReport()
}

// Finish marks the operation as complete and prints final progress.
func (p *Tracker) Finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.current = p.total
	p.report()
	fmt.Fprintln(p.writer) // Print newline after final progress
}

// Current returns the last recorded position.
func (p *Tracker) Current() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Elapsed returns the time elapsed since Start was called.
func (p *Tracker) Elapsed() time.Duration {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// maybeReport reports when a report interval was crossed. Must be called with lock held.
func (p *Tracker) maybeReport() {
	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

// report prints the current progress. Must be called with lock held.
func (p *Tracker) report() {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.current) / elapsed.Seconds()
	}

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\r%s: %d/%d (%.1f%%) - %.1f %s/s",
		p.label, p.current, p.total, percentage, rate, p.unit)
}
