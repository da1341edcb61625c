package scanner

import (
	"time"

	"github.com/apiscout/apiscout/internal/logger"
	"github.com/apiscout/apiscout/internal/metrics"
)

// Option is a functional option for configuring the Scanner.
type Option func(*Scanner) error

// WithTarget sets the target URL to scan.
func WithTarget(url string) Option {
	return func(s *Scanner) error {
		s.config.Target = url
		return nil
	}
}

// WithConcurrency sets the number of concurrent downloads.
func WithConcurrency(n int) Option {
	return func(s *Scanner) error {
		if n < 1 {
			n = 1
		}
		s.config.Concurrency = n
		return nil
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Scanner) error {
		s.config.Timeout = timeout
		return nil
	}
}

// WithAnalyzeOnly skips rendering and downloading, reusing previously
// fetched scripts.
func WithAnalyzeOnly(enabled bool) Option {
	return func(s *Scanner) error {
		s.config.AnalyzeOnly = enabled
		return nil
	}
}

// WithBrowser enables/disables headless rendering. When disabled the target
// HTML is fetched over plain HTTP.
func WithBrowser(enabled bool) Option {
	return func(s *Scanner) error {
		s.config.NoBrowser = !enabled
		return nil
	}
}

// WithScriptsDir sets the directory downloaded bundles are written to.
func WithScriptsDir(dir string) Option {
	return func(s *Scanner) error {
		s.config.Output.ScriptsDir = dir
		return nil
	}
}

// WithResultsDir sets the directory result artifacts are written to.
func WithResultsDir(dir string) Option {
	return func(s *Scanner) error {
		s.config.Output.ResultsDir = dir
		return nil
	}
}

// WithHTMLReport enables/disables the HTML report artifact.
func WithHTMLReport(enabled bool) Option {
	return func(s *Scanner) error {
		s.config.Output.HTML = enabled
		return nil
	}
}

// WithOpenAPIDoc enables/disables the OpenAPI document artifact.
func WithOpenAPIDoc(enabled bool) Option {
	return func(s *Scanner) error {
		s.config.Output.OpenAPI = enabled
		return nil
	}
}

// WithAllowedDomains adds domains treated as first-party.
func WithAllowedDomains(domains ...string) Option {
	return func(s *Scanner) error {
		s.config.Scope.AllowedDomains = append(s.config.Scope.AllowedDomains, domains...)
		return nil
	}
}

// WithExcludePatterns adds URL patterns never fetched.
func WithExcludePatterns(patterns ...string) Option {
	return func(s *Scanner) error {
		s.config.Scope.ExcludePatterns = append(s.config.Scope.ExcludePatterns, patterns...)
		return nil
	}
}

// WithRateLimit sets the download rate limiting configuration.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Scanner) error {
		s.config.RateLimit.RequestsPerSecond = rps
		s.config.RateLimit.Burst = burst
		return nil
	}
}

// WithUserAgent sets the user agent string.
func WithUserAgent(ua string) Option {
	return func(s *Scanner) error {
		s.config.UserAgent = ua
		s.config.Browser.UserAgent = ua
		return nil
	}
}

// WithCustomHeaders sets custom headers for all requests.
func WithCustomHeaders(headers map[string]string) Option {
	return func(s *Scanner) error {
		if s.config.CustomHeaders == nil {
			s.config.CustomHeaders = make(map[string]string)
		}
		for k, v := range headers {
			s.config.CustomHeaders[k] = v
		}
		return nil
	}
}

// WithManifest enables/disables the download manifest and sets its path.
func WithManifest(enabled bool, path string) Option {
	return func(s *Scanner) error {
		s.config.Cache.Enabled = enabled
		if path != "" {
			s.config.Cache.Path = path
		}
		return nil
	}
}

// WithSkipCached skips URLs already recorded in the manifest.
func WithSkipCached(skip bool) Option {
	return func(s *Scanner) error {
		s.config.Cache.SkipCached = skip
		return nil
	}
}

// WithVerbose enables/disables verbose logging.
func WithVerbose(verbose bool) Option {
	return func(s *Scanner) error {
		s.config.Verbose = verbose
		return nil
	}
}

// WithDebug enables/disables debug mode.
func WithDebug(debug bool) Option {
	return func(s *Scanner) error {
		s.config.Debug = debug
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scanner) error {
		s.logger = l
		return nil
	}
}

// WithMetrics sets a custom metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Scanner) error {
		s.metrics = m
		return nil
	}
}

// WithConfig sets the entire configuration.
func WithConfig(config *Config) Option {
	return func(s *Scanner) error {
		s.config = config
		return nil
	}
}

// WithProgress enables/disables the progress bar display.
func WithProgress(enabled bool) Option {
	return func(s *Scanner) error {
		s.showProgress = enabled
		return nil
	}
}
