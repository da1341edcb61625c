package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/apiscout/apiscout/internal/analyzer"
	"github.com/apiscout/apiscout/internal/browser"
	"github.com/apiscout/apiscout/internal/cache"
	scanerrors "github.com/apiscout/apiscout/internal/errors"
	"github.com/apiscout/apiscout/internal/fetcher"
	"github.com/apiscout/apiscout/internal/logger"
	"github.com/apiscout/apiscout/internal/metrics"
	"github.com/apiscout/apiscout/internal/progress"
	"github.com/apiscout/apiscout/internal/report"
	"github.com/apiscout/apiscout/internal/scope"
	"github.com/apiscout/apiscout/internal/scripturl"
)

// Result artifact filenames within the results directory.
const (
	JSONResultsFile = "api_query_results.json"
	HTMLReportFile  = "api_report.html"
	OpenAPIFile     = "api_openapi_spec.json"
)

// Scanner is the main pipeline orchestrator.
type Scanner struct {
	config     *Config
	logger     *logger.Logger
	metrics    *metrics.Collector
	classifier *scope.Classifier
	renderer   *browser.Renderer
	fetcher    *fetcher.Fetcher
	extractor  *scripturl.Extractor
	manifest   *cache.Manifest

	running   atomic.Bool
	startTime time.Time

	// Progress display
	progress     *progress.Display
	showProgress bool
}

// New creates a new scanner with the given options.
func New(opts ...Option) (*Scanner, error) {
	s := &Scanner{
		config: DefaultConfig(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	// Validate config
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize logger based on config
	if s.logger == nil {
		logLevel := logger.InfoLevel
		if s.config.Debug {
			logLevel = logger.DebugLevel
		} else if !s.config.Verbose {
			logLevel = logger.WarnLevel
		}
		s.logger = logger.New(logger.Config{
			Level:     logLevel,
			Pretty:    true,
			Component: "scanner",
		})
	}

	// Initialize metrics collector
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	return s, nil
}

// initialize sets up the pipeline components.
func (s *Scanner) initialize() error {
	var err error

	// Create domain classifier when a target is known. Analyze-only runs
	// without a target treat every absolute URL as external.
	if s.config.Target != "" {
		s.classifier, err = scope.NewClassifier(s.config.Target, scope.Rules{
			AllowedDomains:  s.config.Scope.AllowedDomains,
			ExcludePatterns: s.config.Scope.ExcludePatterns,
		})
		if err != nil {
			return fmt.Errorf("failed to create domain classifier: %w", err)
		}
	}

	s.extractor = scripturl.NewExtractor(s.logger)

	// Create the downloader
	s.fetcher = fetcher.New(fetcher.Config{
		OutputDir:         s.config.Output.ScriptsDir,
		Concurrency:       s.config.Concurrency,
		RequestsPerSecond: s.config.RateLimit.RequestsPerSecond,
		Burst:             s.config.RateLimit.Burst,
		HostDelay:         s.config.RateLimit.HostDelay,
		Timeout:           s.config.Timeout,
		UserAgent:         s.config.UserAgent,
		Headers:           s.config.CustomHeaders,
		SkipTLSVerify:     s.config.Browser.IgnoreHTTPSErrors,
		SkipCached:        s.config.Cache.SkipCached,
	}, s.logger)
	s.fetcher.SetMetrics(s.metrics)
	if s.classifier != nil {
		s.fetcher.SetClassifier(s.classifier)
	}

	// Open the download manifest
	if s.config.Cache.Enabled && s.config.Cache.Path != "" {
		s.manifest, err = cache.Open(s.config.Cache.Path)
		if err != nil {
			return fmt.Errorf("failed to open download manifest: %w", err)
		}
		s.fetcher.SetManifest(s.manifest)
	}

	// Launch the browser only when the render step will run
	if !s.config.AnalyzeOnly && !s.config.NoBrowser {
		s.renderer, err = browser.New(s.config.Browser, s.logger)
		if err != nil {
			return scanerrors.NewBrowserError(s.config.Target, "launch", err)
		}
	}

	return nil
}

// cleanup releases pipeline resources.
func (s *Scanner) cleanup() {
	if s.renderer != nil {
		if err := s.renderer.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close browser")
		}
		s.renderer = nil
	}
	if s.fetcher != nil {
		s.fetcher.Close()
	}
	if s.manifest != nil {
		if err := s.manifest.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close download manifest")
		}
		s.manifest = nil
	}
}

// Run executes the pipeline and returns the scan result. In analyze-only
// mode the render and download steps are skipped and the existing scripts
// directory is reused; a missing scripts directory is an error.
func (s *Scanner) Run(ctx context.Context) (*ScanResult, error) {
	if s.running.Load() {
		return nil, fmt.Errorf("scanner is already running")
	}
	s.running.Store(true)
	s.startTime = time.Now()
	defer s.running.Store(false)

	if err := s.initialize(); err != nil {
		return nil, err
	}
	defer s.cleanup()

	result := &ScanResult{
		Scan: ScanInfo{
			ID:        uuid.NewString(),
			Target:    s.config.Target,
			StartedAt: s.startTime.UTC(),
		},
	}

	var runtimeRequests []string
	if !s.config.AnalyzeOnly {
		scriptURLs, xhrURLs, err := s.discoverScripts(ctx)
		if err != nil {
			return nil, err
		}
		runtimeRequests = xhrURLs
		result.Scan.ScriptsFound = len(scriptURLs)
		s.metrics.RecordScriptsDiscovered(len(scriptURLs))

		downloaded, failed := s.downloadScripts(ctx, scriptURLs)
		result.Scan.ScriptsDownloaded = downloaded
		result.Scan.DownloadErrors = failed
	}

	// Analyze
	if _, err := os.Stat(s.config.Output.ScriptsDir); err != nil {
		return nil, fmt.Errorf("scripts directory %s not found: %w", s.config.Output.ScriptsDir, err)
	}
	a := analyzer.New(s.logger)
	analysis, err := a.AnalyzeDir(s.config.Output.ScriptsDir)
	if err != nil {
		return nil, err
	}
	result.BackendEndpoints = analysis.BackendEndpoints
	s.metrics.RecordEndpointsFound(len(result.BackendEndpoints))

	// Coarse reference scan for domain classification
	refs, analyzed, err := s.scanReferences(runtimeRequests)
	if err != nil {
		return nil, err
	}
	result.Scan.FilesAnalyzed = analyzed
	result.BackendCalls = refs.BackendCalls
	if s.classifier != nil {
		result.FirstPartyDomains, result.ExternalDomains = scope.SplitByParty(s.classifier, refs.ByDomain)
	} else {
		result.ExternalDomains = refs.ByDomain
	}

	result.Scan.CompletedAt = time.Now().UTC()

	if err := s.writeArtifacts(result); err != nil {
		return nil, err
	}

	s.logger.StatsEvent(s.metrics.Snapshot().Summary())
	return result, nil
}

// discoverScripts renders (or plainly fetches) the target page and returns
// the script URLs referenced by it, plus any XHR/Fetch request URLs the
// browser observed while the page settled.
func (s *Scanner) discoverScripts(ctx context.Context) (scriptURLs, xhrURLs []string, err error) {
	pageURL := s.config.Target

	var html string
	if s.renderer != nil {
		rendered, err := s.renderer.Render(ctx, pageURL, s.config.CustomHeaders)
		if err != nil {
			return nil, nil, err
		}
		html = rendered.HTML
		if rendered.FinalURL != "" {
			pageURL = rendered.FinalURL
		}
		for _, req := range rendered.XHRRequests {
			xhrURLs = append(xhrURLs, req.URL)
		}
		s.logger.Infof("Rendered %s (%d XHR requests observed)", pageURL, len(xhrURLs))
	} else {
		html, err = s.fetcher.FetchHTML(ctx, pageURL)
		if err != nil {
			return nil, nil, err
		}
		s.logger.Infof("Fetched %s without rendering", pageURL)
	}

	scriptURLs, err = s.extractor.Extract(html, pageURL)
	if err != nil {
		return nil, nil, err
	}
	if len(scriptURLs) == 0 {
		s.logger.WithURL(pageURL).Warn("No script URLs found in page")
	}
	return scriptURLs, xhrURLs, nil
}

// downloadScripts fetches every script URL (plus one round of webpack chunk
// references) and returns success/failure counts.
func (s *Scanner) downloadScripts(ctx context.Context, urls []string) (downloaded, failed int) {
	if s.showProgress {
		s.progress = progress.New()
		s.progress.Start(s.config.Target)
		s.progress.SetDiscovered(len(urls))
		defer s.progress.Stop()
	}

	s.fetcher.OnComplete(func(d fetcher.Download) {
		if d.Err != nil {
			s.metrics.RecordError(scanerrors.GetErrorType(d.Err).String())
			if s.progress != nil {
				s.progress.RecordError()
			}
			return
		}
		s.metrics.RecordScriptDownloaded(d.Size)
		if d.Cached {
			s.metrics.RecordCacheHit()
		}
		if s.progress != nil {
			s.progress.RecordDownload(d.Size, d.Cached)
		}
	})

	results := s.fetcher.DownloadWithChunks(ctx, urls)
	for _, d := range results {
		if d.Err != nil {
			failed++
			s.logger.ErrorEvent(d.Err, d.URL, "download")
			continue
		}
		downloaded++
	}
	return downloaded, failed
}

// scanReferences runs the coarse reference patterns over every downloaded
// script and groups absolute URLs by domain. Runtime-observed XHR requests
// are folded in under a synthetic filename.
func (s *Scanner) scanReferences(runtimeRequests []string) (*analyzer.References, int, error) {
	entries, err := os.ReadDir(s.config.Output.ScriptsDir)
	if err != nil {
		return nil, 0, fmt.Errorf("reading script directory %s: %w", s.config.Output.ScriptsDir, err)
	}

	matches := make(map[string][]string)
	analyzed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".js") && !strings.HasSuffix(name, ".cjs") && !strings.HasSuffix(name, ".mjs") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.config.Output.ScriptsDir, name))
		if err != nil {
			s.logger.WithFile(name).WithError(err).Warn("Skipping unreadable file")
			continue
		}
		if refs := analyzer.ScanReferences(string(data)); len(refs) > 0 {
			matches[name] = refs
		}
		s.metrics.RecordFileAnalyzed()
		analyzed++
	}

	if len(runtimeRequests) > 0 {
		matches["(runtime)"] = append(matches["(runtime)"], runtimeRequests...)
	}

	return analyzer.CategorizeReferences(matches), analyzed, nil
}

// writeArtifacts serializes the scan result to the configured artifacts.
func (s *Scanner) writeArtifacts(result *ScanResult) error {
	jsonPath := filepath.Join(s.config.Output.ResultsDir, JSONResultsFile)
	if err := report.WriteJSON(jsonPath, result); err != nil {
		return err
	}
	s.logger.WithFile(jsonPath).Info("Wrote JSON results")

	analysis := result.Analysis()

	if s.config.Output.HTML {
		htmlPath := filepath.Join(s.config.Output.ResultsDir, HTMLReportFile)
		if err := report.WriteHTML(htmlPath, analysis); err != nil {
			return err
		}
		s.logger.WithFile(htmlPath).Info("Wrote HTML report")
	}

	if s.config.Output.OpenAPI {
		specPath := filepath.Join(s.config.Output.ResultsDir, OpenAPIFile)
		if err := report.WriteOpenAPI(specPath, analysis); err != nil {
			return err
		}
		s.logger.WithFile(specPath).Info("Wrote OpenAPI document")
	}

	return nil
}

// Summary builds the console summary for a completed scan.
func (s *Scanner) Summary(result *ScanResult) report.Summary {
	return report.SummaryFromResult(report.Summary{
		Target:            result.Scan.Target,
		SessionID:         result.Scan.ID,
		Duration:          result.Scan.CompletedAt.Sub(result.Scan.StartedAt),
		ScriptsFound:      result.Scan.ScriptsFound,
		ScriptsDownloaded: result.Scan.ScriptsDownloaded,
		DownloadErrors:    result.Scan.DownloadErrors,
		ResultsDir:        s.config.Output.ResultsDir,
	}, result.Analysis())
}

// Config returns the scanner's configuration.
func (s *Scanner) Config() *Config {
	return s.config
}

// Metrics returns the scanner's metrics collector.
func (s *Scanner) Metrics() *metrics.Collector {
	return s.metrics
}
