// Package fetcher downloads JavaScript bundles concurrently with rate
// limiting, retries, and per-host circuit breaking.
package fetcher

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/apiscout/apiscout/internal/cache"
	"github.com/apiscout/apiscout/internal/errors"
	"github.com/apiscout/apiscout/internal/logger"
	"github.com/apiscout/apiscout/internal/metrics"
	"github.com/apiscout/apiscout/internal/ratelimit"
	"github.com/apiscout/apiscout/internal/scope"
	"github.com/apiscout/apiscout/internal/scripturl"
)

// Config holds configuration for the bundle downloader.
type Config struct {
	OutputDir           string
	Concurrency         int
	RequestsPerSecond   float64
	Burst               int
	Timeout             time.Duration
	UserAgent           string
	Headers             map[string]string
	SkipTLSVerify       bool
	MaxBodySize         int64
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	// HostDelay enforces a minimum gap between requests to the same host.
	HostDelay time.Duration
	// SkipCached skips URLs already present in the download manifest.
	SkipCached bool
}

// DefaultConfig returns downloader defaults tuned for SPA bundles.
func DefaultConfig() Config {
	return Config{
		OutputDir:           "downloaded_js",
		Concurrency:         8,
		RequestsPerSecond:   10,
		Burst:               5,
		Timeout:             20 * time.Second,
		UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		SkipTLSVerify:       true,
		MaxBodySize:         20 * 1024 * 1024,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
	}
}

// Download is the outcome of fetching one script URL.
type Download struct {
	URL      string
	Path     string
	Filename string
	SHA256   string
	Size     int64
	Duration time.Duration
	Cached   bool
	// Duplicate marks a URL whose bytes matched an already-downloaded
	// bundle; the redundant copy is removed.
	Duplicate bool
	Err       error
}

// Fetcher downloads script files.
type Fetcher struct {
	config     Config
	client     *http.Client
	limiter    *ratelimit.AdaptiveLimiter
	retrier    *errors.Retrier
	breakers   *errors.HostCircuitBreakers
	dedup      *Deduplicator
	log        *logger.Logger
	metrics    *metrics.Collector
	mu         sync.RWMutex
	classifier *scope.Classifier
	manifest   *cache.Manifest
	onComplete func(Download)
}

// New creates a downloader.
func New(config Config, log *logger.Logger) *Fetcher {
	if log == nil {
		log = logger.NewDefault()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConfig().Concurrency
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = DefaultConfig().Burst
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultConfig().MaxBodySize
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.SkipTLSVerify,
		},
	}

	// Downloads back off to a quarter of the configured rate when a host
	// keeps failing, and recover toward it once responses come back clean.
	minRate := config.RequestsPerSecond / 4
	if minRate < 1 {
		minRate = 1
	}
	limiter := ratelimit.NewAdaptiveLimiter(minRate, config.RequestsPerSecond, config.Burst)
	if config.HostDelay > 0 {
		limiter.SetHostDelay(config.HostDelay)
	}

	return &Fetcher{
		config: config,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		limiter:  limiter,
		retrier:  errors.NewDefaultRetrier(),
		breakers: errors.NewHostCircuitBreakers(errors.DefaultCircuitBreakerConfig()),
		dedup:    NewDeduplicator(5000),
		log:      log.WithComponent("fetcher"),
		metrics:  metrics.Global(),
	}
}

// SetMetrics installs the collector that receives request, retry, and
// status-code counts. Defaults to the global collector.
func (f *Fetcher) SetMetrics(m *metrics.Collector) {
	if m == nil {
		return
	}
	f.mu.Lock()
	f.metrics = m
	f.mu.Unlock()
}

// SetClassifier installs a domain classifier; URLs it rejects are skipped.
func (f *Fetcher) SetClassifier(c *scope.Classifier) {
	f.mu.Lock()
	f.classifier = c
	f.mu.Unlock()
}

// SetManifest installs a download manifest for cross-run caching.
func (f *Fetcher) SetManifest(m *cache.Manifest) {
	f.mu.Lock()
	f.manifest = m
	f.mu.Unlock()
}

// OnComplete registers a callback invoked after each URL finishes,
// successfully or not. Used for progress display.
func (f *Fetcher) OnComplete(fn func(Download)) {
	f.mu.Lock()
	f.onComplete = fn
	f.mu.Unlock()
}

// SetRetryConfig overrides the retry policy.
func (f *Fetcher) SetRetryConfig(config errors.RetryConfig) {
	f.retrier = errors.NewRetrier(config)
}

// DownloadAll fetches every URL concurrently and returns one Download
// per attempted URL. Failures are recorded on the Download, never
// returned as a batch error; a scan should keep going when individual
// bundles fail.
func (f *Fetcher) DownloadAll(ctx context.Context, urls []string) []Download {
	if err := os.MkdirAll(f.config.OutputDir, 0755); err != nil {
		f.log.Errorf("cannot create output dir %s: %v", f.config.OutputDir, err)
		return nil
	}

	var (
		results []Download
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, f.config.Concurrency)
	)

	for _, u := range urls {
		if !f.dedup.Add(u) {
			continue
		}
		if !f.shouldFetch(u) {
			f.log.Debugf("skipping out-of-policy URL %s", u)
			continue
		}

		wg.Add(1)
		go func(scriptURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			d := f.downloadOne(ctx, scriptURL)

			f.mu.RLock()
			cb := f.onComplete
			f.mu.RUnlock()
			if cb != nil {
				cb(d)
			}

			mu.Lock()
			results = append(results, d)
			mu.Unlock()
		}(u)
	}

	wg.Wait()
	return results
}

// DownloadWithChunks runs DownloadAll, then scans the downloaded
// bundles for lazy-loaded chunk filenames and downloads those too,
// resolved against the static base inferred from the first successful
// bundle URL. One extra round is enough in practice; chunks referencing
// further chunks share the same manifest.
func (f *Fetcher) DownloadWithChunks(ctx context.Context, urls []string) []Download {
	results := f.DownloadAll(ctx, urls)

	baseStatic := ""
	for _, d := range results {
		if d.Err == nil {
			if base, err := scripturl.InferBaseStaticURL(d.URL); err == nil {
				baseStatic = base
				break
			}
		}
	}
	if baseStatic == "" {
		return results
	}

	chunkURLs := f.collectChunkURLs(results, baseStatic)
	if len(chunkURLs) == 0 {
		return results
	}

	f.log.Infof("found %d additional chunk files", len(chunkURLs))
	return append(results, f.DownloadAll(ctx, chunkURLs)...)
}

// collectChunkURLs reads each downloaded bundle and resolves chunk
// references against the static base URL.
func (f *Fetcher) collectChunkURLs(results []Download, baseStatic string) []string {
	var chunkURLs []string
	seen := make(map[string]struct{})
	for _, d := range results {
		if d.Err != nil {
			continue
		}
		content, err := os.ReadFile(d.Path)
		if err != nil {
			f.log.Warnf("cannot re-read %s for chunk scan: %v", d.Path, err)
			continue
		}
		for _, ref := range scripturl.ChunkRefs(string(content)) {
			full, err := scope.ResolveURL(baseStatic, ref)
			if err != nil {
				continue
			}
			if _, ok := seen[full]; ok {
				continue
			}
			seen[full] = struct{}{}
			if !f.dedup.HasSeen(full) {
				chunkURLs = append(chunkURLs, full)
			}
		}
	}
	return chunkURLs
}

func (f *Fetcher) shouldFetch(scriptURL string) bool {
	f.mu.RLock()
	c := f.classifier
	f.mu.RUnlock()
	if c != nil {
		return c.ShouldFetch(scriptURL)
	}
	parsed, err := url.Parse(scriptURL)
	if err != nil {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}

// downloadOne fetches a single script URL to disk.
func (f *Fetcher) downloadOne(ctx context.Context, scriptURL string) Download {
	start := time.Now()
	d := Download{
		URL:      scriptURL,
		Filename: scripturl.FilenameFromURL(scriptURL),
	}
	d.Path = filepath.Join(f.config.OutputDir, d.Filename)

	f.mu.RLock()
	manifest := f.manifest
	f.mu.RUnlock()

	if f.config.SkipCached && manifest != nil {
		if entry, found, err := manifest.Get(scriptURL); err == nil && found {
			if _, statErr := os.Stat(filepath.Join(f.config.OutputDir, entry.Filename)); statErr == nil {
				d.Filename = entry.Filename
				d.Path = filepath.Join(f.config.OutputDir, entry.Filename)
				d.Size = entry.Size
				d.SHA256 = entry.SHA256
				d.Cached = true
				d.Duration = time.Since(start)
				// Seed the content dedup so other URLs serving the same
				// bytes are discarded this run too.
				f.dedup.AddContentHash(scriptURL, entry.SHA256)
				f.log.Debugf("cache hit for %s", scriptURL)
				return d
			}
		}
	}

	host := hostOf(scriptURL)
	breaker := f.breakers.Get(host)
	if !breaker.Allow() {
		d.Err = &errors.CircuitOpenError{Host: host}
		d.Duration = time.Since(start)
		f.log.Warnf("circuit open for %s, skipping %s", host, scriptURL)
		return d
	}

	retryResult := f.retrier.Do(ctx, "download_script", scriptURL, func(ctx context.Context) error {
		if err := f.limiter.WaitHost(ctx, host); err != nil {
			return errors.NewCancelledError(scriptURL, "rate_limit_wait")
		}
		size, digest, err := f.fetchToFile(ctx, scriptURL, d.Path)
		if err != nil {
			return err
		}
		d.Size = size
		d.SHA256 = digest
		return nil
	})
	d.Duration = time.Since(start)

	m := f.collector()
	m.RecordResponseTime(d.Duration)
	for i := 1; i < retryResult.Attempts; i++ {
		m.RecordRetry()
	}

	if !retryResult.Success {
		breaker.RecordFailure()
		f.limiter.RecordError()
		d.Err = retryResult.LastError
		f.log.ErrorEvent(d.Err, scriptURL, "download")
		return d
	}
	breaker.RecordSuccess()
	f.limiter.RecordSuccess()

	// Identical bytes from a second URL add nothing to the analysis.
	if origin, dup := f.dedup.AddContentHash(scriptURL, d.SHA256); dup {
		d.Duplicate = true
		if err := os.Remove(d.Path); err != nil {
			f.log.Warnf("cannot remove duplicate bundle %s: %v", d.Path, err)
		}
		f.log.Debugf("content of %s already downloaded from %s", scriptURL, origin)
		return d
	}

	if manifest != nil {
		if err := manifest.Put(cache.Entry{URL: scriptURL, Filename: d.Filename, SHA256: d.SHA256, Size: d.Size}); err != nil {
			f.log.Warnf("manifest write failed for %s: %v", scriptURL, err)
		}
	}

	f.log.DownloadEvent(scriptURL, d.Filename, d.Size, d.Duration)
	return d
}

func (f *Fetcher) collector() *metrics.Collector {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.metrics
}

// fetchToFile performs the GET and streams the body to path, hashing
// the bytes on the way through.
func (f *Fetcher) fetchToFile(ctx context.Context, scriptURL, path string) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scriptURL, nil)
	if err != nil {
		return 0, "", errors.NewParseError(scriptURL, "request_creation", err)
	}

	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "*/*")
	for k, v := range f.config.Headers {
		req.Header.Set(k, v)
	}

	f.collector().RecordRequest()
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, "", errors.Categorize(err, scriptURL)
	}
	defer resp.Body.Close()
	f.collector().RecordStatusCode(resp.StatusCode)

	if resp.StatusCode == http.StatusTooManyRequests {
		// The host asked us to slow down; halve its bucket for the rest
		// of the run.
		f.limiter.SetHostRate(hostOf(scriptURL), f.config.RequestsPerSecond/2, 1)
	}

	if httpErr := errors.CategorizeHTTPStatus(resp.StatusCode, scriptURL); httpErr != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, "", httpErr
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, "", errors.NewScanError(errors.Unknown, scriptURL, "file_create", "cannot create output file", err)
	}
	defer out.Close()

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, hasher), io.LimitReader(resp.Body, f.config.MaxBodySize))
	if err != nil {
		return n, "", errors.NewNetworkError(scriptURL, "body_read", err)
	}
	return n, hex.EncodeToString(hasher.Sum(nil)), nil
}

// FetchHTML retrieves a page without a browser. Used when headless
// rendering is disabled; server-rendered apps still expose their
// script tags this way.
func (f *Fetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", errors.NewParseError(pageURL, "request_creation", err)
	}

	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range f.config.Headers {
		req.Header.Set(k, v)
	}

	f.collector().RecordRequest()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.Categorize(err, pageURL)
	}
	defer resp.Body.Close()
	f.collector().RecordStatusCode(resp.StatusCode)

	if httpErr := errors.CategorizeHTTPStatus(resp.StatusCode, pageURL); httpErr != nil {
		return "", httpErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize))
	if err != nil {
		return "", errors.NewNetworkError(pageURL, "body_read", err)
	}
	return string(body), nil
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}

func hostOf(rawURL string) string {
	host, err := scope.ExtractDomain(rawURL)
	if err != nil || host == "" {
		return rawURL
	}
	return strings.ToLower(host)
}
