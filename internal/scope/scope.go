// Package scope classifies discovered hosts as first-party or external
// relative to the scan target, and provides URL helpers shared by the
// script extractor and downloader.
package scope

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Classifier decides whether a host belongs to the target application.
type Classifier struct {
	mu             sync.RWMutex
	targetHost     string
	targetBase     string // registrable domain (eTLD+1) of the target
	allowedDomains map[string]struct{}
	excludeRegexps []*regexp.Regexp
}

// NewClassifier builds a classifier for the given target URL.
func NewClassifier(targetURL string, rules Rules) (*Classifier, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return nil, err
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("target URL has no host: %s", targetURL)
	}

	c := &Classifier{
		targetHost:     strings.ToLower(parsed.Hostname()),
		allowedDomains: make(map[string]struct{}),
	}

	// Registrable domain lets app.example.com and api.example.com classify
	// together. Hosts without a public suffix (localhost, IPs) fall back to
	// exact matching.
	if base, err := publicsuffix.EffectiveTLDPlusOne(c.targetHost); err == nil {
		c.targetBase = base
	}

	for _, domain := range rules.AllowedDomains {
		c.allowedDomains[strings.ToLower(strings.TrimSpace(domain))] = struct{}{}
	}

	for _, pattern := range rules.ExcludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		c.excludeRegexps = append(c.excludeRegexps, re)
	}

	return c, nil
}

// TargetHost returns the lowercased hostname of the scan target.
func (c *Classifier) TargetHost() string {
	return c.targetHost
}

// Classify categorizes a bare hostname.
func (c *Classifier) Classify(host string) Category {
	if c.IsFirstParty(host) {
		return CategoryFirstParty
	}
	return CategoryExternal
}

// IsFirstParty reports whether a host belongs to the target application.
// A host matches if it equals the target host, shares the target's
// registrable domain, or appears in the allowed-domain list (including
// as a subdomain).
func (c *Classifier) IsFirstParty(host string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	host = strings.ToLower(host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	if host == "" {
		return false
	}

	if host == c.targetHost {
		return true
	}
	if c.targetBase != "" {
		if host == c.targetBase || strings.HasSuffix(host, "."+c.targetBase) {
			return true
		}
	}

	for domain := range c.allowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// AddAllowedDomain extends the first-party set at runtime.
func (c *Classifier) AddAllowedDomain(domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowedDomains[strings.ToLower(strings.TrimSpace(domain))] = struct{}{}
}

// ShouldFetch reports whether a script URL may be downloaded. External
// hosts are fetched too since bundles often live on CDNs; only exclude
// patterns veto a URL.
func (c *Classifier) ShouldFetch(urlStr string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	for _, re := range c.excludeRegexps {
		if re.MatchString(urlStr) {
			return false
		}
	}
	return true
}

// SplitByParty partitions a domain-keyed map into first-party and
// external groups.
func SplitByParty[V any](c *Classifier, byDomain map[string]V) (firstParty, external map[string]V) {
	firstParty = make(map[string]V)
	external = make(map[string]V)
	for domain, v := range byDomain {
		if c.IsFirstParty(domain) {
			firstParty[domain] = v
		} else {
			external[domain] = v
		}
	}
	return firstParty, external
}

// NormalizeURL normalizes a URL for deduplication.
func NormalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	// Remove default ports
	if (parsed.Scheme == "http" && strings.HasSuffix(parsed.Host, ":80")) ||
		(parsed.Scheme == "https" && strings.HasSuffix(parsed.Host, ":443")) {
		parsed.Host = parsed.Host[:strings.LastIndex(parsed.Host, ":")]
	}

	parsed.Fragment = ""

	if parsed.Path != "/" && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}
	if parsed.Path == "" {
		parsed.Path = "/"
	}

	// Sort query parameters for consistent comparison
	if parsed.RawQuery != "" {
		values := parsed.Query()
		parsed.RawQuery = values.Encode()
	}

	return parsed.String(), nil
}

// ResolveURL resolves a relative URL against a base URL.
func ResolveURL(baseURL, relativeURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(relativeURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// ExtractDomain extracts the host from a URL.
func ExtractDomain(urlStr string) (string, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}
	return parsed.Host, nil
}
