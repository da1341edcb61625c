// Package progress provides progress bar display for script downloads.
package progress

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Display manages progress bar display during the download phase.
type Display struct {
	mu      sync.Mutex
	started bool
	stopped bool

	// Stats
	scriptsDiscovered atomic.Int64
	scriptsDownloaded atomic.Int64
	bytesDownloaded   atomic.Int64
	cacheHits         atomic.Int64
	errors            atomic.Int64

	// Timing
	startTime  time.Time
	lastUpdate time.Time
	target     string

	// Display
	lastLine string
}

// New creates a new progress display.
func New() *Display {
	return &Display{}
}

// Start begins the progress display.
func (d *Display) Start(target string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}

	d.started = true
	d.startTime = time.Now()
	d.lastUpdate = time.Now()
	d.target = target
}

// SetDiscovered records the total number of script URLs queued for download.
func (d *Display) SetDiscovered(n int) {
	d.scriptsDiscovered.Store(int64(n))
}

// RecordDownload records one completed download and redraws the bar.
func (d *Display) RecordDownload(bytes int64, cached bool) {
	d.scriptsDownloaded.Add(1)
	d.bytesDownloaded.Add(bytes)
	if cached {
		d.cacheHits.Add(1)
	}
	d.redraw()
}

// RecordError records one failed download and redraws the bar.
func (d *Display) RecordError() {
	d.errors.Add(1)
	d.redraw()
}

func (d *Display) redraw() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.stopped {
		return
	}

	discovered := d.scriptsDiscovered.Load()
	done := d.scriptsDownloaded.Load() + d.errors.Load()

	total := discovered
	if total == 0 {
		total = 1
	}

	progress := int((float64(done) / float64(total)) * 100)
	if progress > 100 {
		progress = 100
	}

	// Calculate speed
	elapsed := time.Since(d.startTime)
	speed := float64(0)
	if elapsed.Seconds() > 0 {
		speed = float64(d.scriptsDownloaded.Load()) / elapsed.Seconds()
	}

	// Build progress bar
	barWidth := 30
	filled := int(float64(progress) / 100 * float64(barWidth))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	// Build status line
	line := fmt.Sprintf("\r[%s] %3d%% | Scripts: %d/%d | %s | Errors: %d | %.1f f/s | %s",
		bar, progress, d.scriptsDownloaded.Load(), discovered,
		formatBytes(d.bytesDownloaded.Load()), d.errors.Load(), speed, formatDuration(elapsed))

	// Clear previous line and print new one
	if len(line) < len(d.lastLine) {
		fmt.Fprint(os.Stderr, "\r"+strings.Repeat(" ", len(d.lastLine)))
	}
	fmt.Fprint(os.Stderr, line)
	d.lastLine = line
	d.lastUpdate = time.Now()
}

// Stop stops the progress display.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.started {
		return
	}

	d.stopped = true

	// Print newline to move past progress bar
	fmt.Fprintln(os.Stderr)
}

// Stats returns current download statistics.
func (d *Display) Stats() (discovered, downloaded, cacheHits, errors int64) {
	return d.scriptsDiscovered.Load(),
		d.scriptsDownloaded.Load(),
		d.cacheHits.Load(),
		d.errors.Load()
}

// formatBytes formats a byte count for display.
func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// formatDuration formats a duration for display.
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
