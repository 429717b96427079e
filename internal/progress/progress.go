// Package progress renders a single-line status display while mirroring.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Snapshot is the state shown by one update.
type Snapshot struct {
	Pages  int
	Queued int
	Assets int
	Errors int
	Bytes  int64
}

// Display manages the progress line.
type Display struct {
	mu      sync.Mutex
	out     io.Writer
	started bool
	stopped bool

	last      Snapshot
	startTime time.Time
	target    string
	lastLine  string
	clock     func() time.Time
}

// New creates a display that writes to out, usually os.Stderr.
func New(out io.Writer) *Display {
	return &Display{out: out, clock: time.Now}
}

// Start begins the progress display.
func (d *Display) Start(target string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}

	d.started = true
	d.startTime = d.clock()
	d.target = target
}

// Update redraws the line with s.
func (d *Display) Update(s Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = s
	if !d.started || d.stopped {
		return
	}

	elapsed := d.clock().Sub(d.startTime)
	speed := float64(0)
	if elapsed.Seconds() > 0 {
		speed = float64(s.Pages) / elapsed.Seconds()
	}

	line := fmt.Sprintf("\rPages: %d | Queue: %d | Assets: %d | Errors: %d | %s | %.1f p/s | %s",
		s.Pages, s.Queued, s.Assets, s.Errors, humanize.Bytes(uint64(s.Bytes)), speed, formatDuration(elapsed))

	// Clear leftovers of a longer previous line.
	if len(line) < len(d.lastLine) {
		fmt.Fprint(d.out, "\r"+strings.Repeat(" ", len(d.lastLine)))
	}
	fmt.Fprint(d.out, line)
	d.lastLine = line
}

// Stop ends the display and moves past the progress line.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.started {
		return
	}

	d.stopped = true
	fmt.Fprintln(d.out)
}

// Last returns the most recent snapshot.
func (d *Display) Last() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
