package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/apiscout/apiscout/internal/browser"
	"github.com/apiscout/apiscout/internal/scope"
)

// Config holds all scanner configuration.
type Config struct {
	// Target URL whose bundles get scanned
	Target string `json:"target" yaml:"target"`

	// Number of concurrent downloads
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Per-request timeout
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Skip render and download, reuse a previously fetched scripts directory
	AnalyzeOnly bool `json:"analyze_only" yaml:"analyze_only"`

	// Fetch the raw HTML over plain HTTP instead of rendering it
	NoBrowser bool `json:"no_browser" yaml:"no_browser"`

	// Scope rules
	Scope ScopeRules `json:"scope" yaml:"scope"`

	// Rate limiting
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	// Browser configuration
	Browser browser.Config `json:"browser" yaml:"browser"`

	// Output configuration
	Output OutputConfig `json:"output" yaml:"output"`

	// Download manifest
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Custom headers to include in all requests
	CustomHeaders map[string]string `json:"custom_headers" yaml:"custom_headers"`

	// User agent for plain HTTP downloads
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// Verbose logging
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Debug mode
	Debug bool `json:"debug" yaml:"debug"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Concurrency: 8,
		Timeout:     20 * time.Second,
		Scope: ScopeRules{
			ExcludePatterns: append([]string(nil), scope.DefaultExcludePatterns...),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Browser: browser.DefaultConfig(),
		Output: OutputConfig{
			ScriptsDir: "downloaded_js",
			ResultsDir: "results",
			HTML:       true,
			OpenAPI:    true,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Path:       "results/manifest.db",
			SkipCached: false,
		},
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		Verbose:   false,
		Debug:     false,
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if len(path) > 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Target == "" && !c.AnalyzeOnly {
		return fmt.Errorf("target URL is required")
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}

	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}

	if c.Output.ScriptsDir == "" {
		return fmt.Errorf("scripts directory is required")
	}

	if c.Output.ResultsDir == "" {
		return fmt.Errorf("results directory is required")
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	json.Unmarshal(data, clone)
	return clone
}
