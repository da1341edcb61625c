// Package metrics collects counters for a scan run.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects and aggregates scan metrics.
type Collector struct {
	// Counters
	requestsTotal     atomic.Int64
	errorsTotal       atomic.Int64
	scriptsDiscovered atomic.Int64
	scriptsDownloaded atomic.Int64
	filesAnalyzed     atomic.Int64
	endpointsFound    atomic.Int64
	bytesTotal        atomic.Int64
	retriesTotal      atomic.Int64
	cacheHits         atomic.Int64

	// Response time tracking
	responseTimesSum atomic.Int64
	responseTimesNum atomic.Int64

	// Error breakdown
	errorCounts map[string]*atomic.Int64
	errorMu     sync.RWMutex

	// Status code breakdown
	statusCodes map[int]*atomic.Int64
	statusMu    sync.RWMutex

	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		errorCounts: make(map[string]*atomic.Int64),
		statusCodes: make(map[int]*atomic.Int64),
		startTime:   time.Now(),
	}
}

// RecordRequest records an HTTP request.
func (c *Collector) RecordRequest() {
	c.requestsTotal.Add(1)
}

// RecordError records an error by type.
func (c *Collector) RecordError(errorType string) {
	c.errorsTotal.Add(1)

	c.errorMu.Lock()
	if c.errorCounts[errorType] == nil {
		c.errorCounts[errorType] = &atomic.Int64{}
	}
	c.errorCounts[errorType].Add(1)
	c.errorMu.Unlock()
}

// RecordStatusCode records an HTTP response status.
func (c *Collector) RecordStatusCode(code int) {
	c.statusMu.Lock()
	if c.statusCodes[code] == nil {
		c.statusCodes[code] = &atomic.Int64{}
	}
	c.statusCodes[code].Add(1)
	c.statusMu.Unlock()
}

// RecordResponseTime records a download or render duration.
func (c *Collector) RecordResponseTime(d time.Duration) {
	c.responseTimesSum.Add(d.Milliseconds())
	c.responseTimesNum.Add(1)
}

// RecordScriptsDiscovered adds to the discovered-script counter.
func (c *Collector) RecordScriptsDiscovered(n int) {
	c.scriptsDiscovered.Add(int64(n))
}

// RecordScriptDownloaded records one fetched bundle and its size.
func (c *Collector) RecordScriptDownloaded(bytes int64) {
	c.scriptsDownloaded.Add(1)
	c.bytesTotal.Add(bytes)
}

// RecordCacheHit records a bundle served from the manifest cache.
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Add(1)
}

// RecordFileAnalyzed records one scanned bundle.
func (c *Collector) RecordFileAnalyzed() {
	c.filesAnalyzed.Add(1)
}

// RecordEndpointsFound sets the endpoint count after analysis.
func (c *Collector) RecordEndpointsFound(n int) {
	c.endpointsFound.Store(int64(n))
}

// RecordRetry records a retry attempt.
func (c *Collector) RecordRetry() {
	c.retriesTotal.Add(1)
}

// GetAverageResponseTime returns the mean recorded duration.
func (c *Collector) GetAverageResponseTime() time.Duration {
	sum := c.responseTimesSum.Load()
	num := c.responseTimesNum.Load()
	if num == 0 {
		return 0
	}
	return time.Duration(sum/num) * time.Millisecond
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		Timestamp:           time.Now(),
		Uptime:              time.Since(c.startTime),
		RequestsTotal:       c.requestsTotal.Load(),
		ErrorsTotal:         c.errorsTotal.Load(),
		ScriptsDiscovered:   c.scriptsDiscovered.Load(),
		ScriptsDownloaded:   c.scriptsDownloaded.Load(),
		FilesAnalyzed:       c.filesAnalyzed.Load(),
		EndpointsFound:      c.endpointsFound.Load(),
		BytesTotal:          c.bytesTotal.Load(),
		RetriesTotal:        c.retriesTotal.Load(),
		CacheHits:           c.cacheHits.Load(),
		AverageResponseTime: c.GetAverageResponseTime(),
		ErrorCounts:         make(map[string]int64),
		StatusCodes:         make(map[int]int64),
	}

	c.errorMu.RLock()
	for k, v := range c.errorCounts {
		s.ErrorCounts[k] = v.Load()
	}
	c.errorMu.RUnlock()

	c.statusMu.RLock()
	for k, v := range c.statusCodes {
		s.StatusCodes[k] = v.Load()
	}
	c.statusMu.RUnlock()

	return s
}

// Reset resets all metrics.
func (c *Collector) Reset() {
	c.requestsTotal.Store(0)
	c.errorsTotal.Store(0)
	c.scriptsDiscovered.Store(0)
	c.scriptsDownloaded.Store(0)
	c.filesAnalyzed.Store(0)
	c.endpointsFound.Store(0)
	c.bytesTotal.Store(0)
	c.retriesTotal.Store(0)
	c.cacheHits.Store(0)
	c.responseTimesSum.Store(0)
	c.responseTimesNum.Store(0)

	c.errorMu.Lock()
	c.errorCounts = make(map[string]*atomic.Int64)
	c.errorMu.Unlock()

	c.statusMu.Lock()
	c.statusCodes = make(map[int]*atomic.Int64)
	c.statusMu.Unlock()

	c.startTime = time.Now()
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp           time.Time        `json:"timestamp"`
	Uptime              time.Duration    `json:"uptime"`
	RequestsTotal       int64            `json:"requests_total"`
	ErrorsTotal         int64            `json:"errors_total"`
	ScriptsDiscovered   int64            `json:"scripts_discovered"`
	ScriptsDownloaded   int64            `json:"scripts_downloaded"`
	FilesAnalyzed       int64            `json:"files_analyzed"`
	EndpointsFound      int64            `json:"endpoints_found"`
	BytesTotal          int64            `json:"bytes_total"`
	RetriesTotal        int64            `json:"retries_total"`
	CacheHits           int64            `json:"cache_hits"`
	AverageResponseTime time.Duration    `json:"average_response_time"`
	ErrorCounts         map[string]int64 `json:"error_counts"`
	StatusCodes         map[int]int64    `json:"status_codes"`
}

// ErrorRate returns the error rate (errors/requests).
func (s *Snapshot) ErrorRate() float64 {
	if s.RequestsTotal == 0 {
		return 0
	}
	return float64(s.ErrorsTotal) / float64(s.RequestsTotal)
}

// Summary returns a loggable summary map.
func (s *Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"uptime":               s.Uptime.String(),
		"requests_total":       s.RequestsTotal,
		"errors_total":         s.ErrorsTotal,
		"error_rate":           s.ErrorRate(),
		"scripts_discovered":   s.ScriptsDiscovered,
		"scripts_downloaded":   s.ScriptsDownloaded,
		"files_analyzed":       s.FilesAnalyzed,
		"endpoints_found":      s.EndpointsFound,
		"bytes_total":          s.BytesTotal,
		"cache_hits":           s.CacheHits,
		"avg_response_time_ms": s.AverageResponseTime.Milliseconds(),
	}
}

// Global metrics collector.
var globalCollector = New()

// SetGlobal sets the global metrics collector.
func SetGlobal(c *Collector) {
	globalCollector = c
}

// Global returns the global metrics collector.
func Global() *Collector {
	return globalCollector
}
