// Package scanner provides the main API discovery pipeline: render the
// target, download its JavaScript bundles, extract endpoint references,
// and write the result artifacts.
package scanner

import (
	"time"

	"github.com/apiscout/apiscout/internal/analyzer"
)

// ScanInfo describes one scan session.
type ScanInfo struct {
	ID                string    `json:"id"`
	Target            string    `json:"target"`
	StartedAt         time.Time `json:"started_at"`
	CompletedAt       time.Time `json:"completed_at,omitempty"`
	ScriptsFound      int       `json:"scripts_found"`
	ScriptsDownloaded int       `json:"scripts_downloaded"`
	DownloadErrors    int       `json:"download_errors"`
	FilesAnalyzed     int       `json:"files_analyzed"`
}

// ScanResult is the complete result of a scan session. It is what gets
// written to results/api_query_results.json.
type ScanResult struct {
	Scan             ScanInfo                       `json:"scan"`
	BackendEndpoints map[string]*analyzer.Endpoint  `json:"backend_endpoints"`
	ExternalDomains  map[string]map[string][]string `json:"external_domains,omitempty"`

	// BackendCalls are the coarse per-file API call sightings: quoted
	// relative /api strings and API-shaped absolute URLs.
	BackendCalls map[string][]analyzer.BackendCall `json:"backend_calls,omitempty"`

	// FirstPartyDomains groups absolute first-party URLs found in script
	// text: domain -> file -> urls. Kept for the console report; relative
	// backend calls land in BackendEndpoints instead.
	FirstPartyDomains map[string]map[string][]string `json:"-"`
}

// Analysis returns the endpoint findings as an analyzer result, the form
// the HTML and OpenAPI writers consume.
func (r *ScanResult) Analysis() *analyzer.Result {
	return &analyzer.Result{BackendEndpoints: r.BackendEndpoints}
}

// RateLimitConfig defines download rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`
	// HostDelay adds a minimum gap between requests to the same host.
	HostDelay time.Duration `json:"host_delay" yaml:"host_delay"`
}

// ScopeRules defines which hosts count as first-party and which URLs are
// never fetched.
type ScopeRules struct {
	AllowedDomains  []string `json:"allowed_domains" yaml:"allowed_domains"`
	ExcludePatterns []string `json:"exclude_patterns" yaml:"exclude_patterns"`
}

// OutputConfig defines where artifacts are written and which ones.
type OutputConfig struct {
	ScriptsDir string `json:"scripts_dir" yaml:"scripts_dir"`
	ResultsDir string `json:"results_dir" yaml:"results_dir"`
	HTML       bool   `json:"html" yaml:"html"`
	OpenAPI    bool   `json:"openapi" yaml:"openapi"`
}

// CacheConfig defines the download manifest used for analyze-only mode and
// skip-unchanged downloads.
type CacheConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Path       string `json:"path" yaml:"path"`
	SkipCached bool   `json:"skip_cached" yaml:"skip_cached"`
}
