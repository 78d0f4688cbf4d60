package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressReporter reports progress for long-running operations.
type ProgressReporter interface {
	Start(total int64)
	Update(current int64)
	Finish()
	Error(err error)
}

// SimpleProgress renders a single-line progress bar over a byte count.
// Updates are drawn at most every RenderInterval; Start and Finish always draw.
type SimpleProgress struct {
	mu       sync.Mutex
	total    int64
	current  int64
	started  time.Time
	rendered time.Time
	writer   io.Writer

	// Label prefixes the bar (default: "Progress").
	Label string

	// RenderInterval throttles redraws (default: 100ms).
	RenderInterval time.Duration
}

// NewProgressReporter creates a new progress reporter that writes to w.
// If w is nil, it defaults to os.Stderr.
func NewProgressReporter(w io.Writer) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &SimpleProgress{
		writer:         w,
		Label:          "Progress",
		RenderInterval: 100 * time.Millisecond,
	}
}

// Start initializes the progress reporter with the total number of bytes.
func (p *SimpleProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.current = 0
	p.started = time.Now()

	p.render()
}

// Update updates the current progress.
func (p *SimpleProgress) Update(current int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if time.Since(p.rendered) >= p.RenderInterval {
		p.render()
	}
}

// Finish marks the progress as complete.
func (p *SimpleProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = p.total
	p.render()
	fmt.Fprintln(p.writer)
}

// Error reports an error during progress.
func (p *SimpleProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.writer, "\n✗ Error: %v\n", err)
}

func (p *SimpleProgress) render() {
	p.rendered = time.Now()
	if p.total <= 0 {
		return
	}

	percent := float64(p.current) / float64(p.total) * 100
	barWidth := 40
	filled := min(int(float64(barWidth)*percent/100), barWidth)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	var rate uint64
	if elapsed := time.Since(p.started).Seconds(); elapsed > 0 {
		rate = uint64(float64(p.current) / elapsed)
	}

	label := p.Label
	if label == "" {
		label = "Progress"
	}
	fmt.Fprintf(p.writer, "\r%s: [%s] %.1f%% (%s/%s) %s/s",
		label, bar, percent,
		humanize.IBytes(uint64(p.current)), humanize.IBytes(uint64(p.total)), humanize.IBytes(rate))
}
