package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/apiscout/apiscout/internal/scope"
)

// Coarse patterns for API-related references. These cast a wide net; the
// endpoint strategies in analyzer.go do the precise extraction.
var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`https?://[^\s'"]+`),
	regexp.MustCompile(`['"]/api/[^\s'"]+`),
	regexp.MustCompile(`\.fetch\s*\(|fetch\s*\(`),
	regexp.MustCompile(`axios\.(get|post|put|delete)\s*\(`),
}

// BackendCall is a single relative API reference with any inline query
// parameters.
type BackendCall struct {
	URL      string            `json:"url"`
	Endpoint string            `json:"endpoint"`
	Params   map[string]string `json:"params"`
}

// References holds the coarse scan output for a set of files.
type References struct {
	// ByDomain groups absolute URLs: domain -> file -> urls.
	ByDomain map[string]map[string][]string `json:"by_domain"`
	// BackendCalls groups relative API references: file -> calls.
	BackendCalls map[string][]BackendCall `json:"backend_calls"`
}

// ScanReferences extracts unique API-related fragments from file content.
func ScanReferences(content string) []string {
	seen := make(map[string]struct{})
	for _, re := range referencePatterns {
		for _, m := range re.FindAllString(content, -1) {
			seen[m] = struct{}{}
		}
	}

	refs := make([]string, 0, len(seen))
	for r := range seen {
		refs = append(refs, r)
	}
	sort.Strings(refs)
	return refs
}

// CategorizeReferences splits raw references per file into absolute URLs
// grouped by domain and relative backend calls.
func CategorizeReferences(matches map[string][]string) *References {
	refs := &References{
		ByDomain:     make(map[string]map[string][]string),
		BackendCalls: make(map[string][]BackendCall),
	}

	for file, urls := range matches {
		for _, raw := range urls {
			raw = strings.TrimSpace(raw)

			switch {
			case strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://"):
				domain := hostOf(raw)
				if domain == "" {
					continue
				}
				if refs.ByDomain[domain] == nil {
					refs.ByDomain[domain] = make(map[string][]string)
				}
				refs.ByDomain[domain][file] = append(refs.ByDomain[domain][file], raw)

				// Absolute URLs whose path looks like an API call are
				// backend calls too, not just domain sightings.
				if path := pathOf(raw); scope.IsAPIPath(path) {
					endpoint, params := splitEndpointQuery(path)
					refs.BackendCalls[file] = append(refs.BackendCalls[file], BackendCall{
						URL:      raw,
						Endpoint: endpoint,
						Params:   params,
					})
				}

			case strings.HasPrefix(raw, `"/api`) || strings.HasPrefix(raw, "'/api"):
				endpoint, params := splitEndpointQuery(trimQuotes(raw))
				refs.BackendCalls[file] = append(refs.BackendCalls[file], BackendCall{
					URL:      raw,
					Endpoint: endpoint,
					Params:   params,
				})

			case strings.HasPrefix(raw, ".fetch") || raw == "fetch(":
				refs.BackendCalls[file] = append(refs.BackendCalls[file], BackendCall{
					URL:      raw,
					Endpoint: raw,
					Params:   map[string]string{},
				})
			}
		}
	}

	return refs
}

// splitEndpointQuery separates an API URL into path and query parameters.
func splitEndpointQuery(u string) (string, map[string]string) {
	params := make(map[string]string)
	if !strings.Contains(u, "?") {
		return u, params
	}

	parts := strings.SplitN(u, "?", 2)
	for _, pair := range strings.Split(parts[1], "&") {
		if kv := strings.SplitN(pair, "=", 2); len(kv) == 2 {
			params[kv[0]] = kv[1]
		} else {
			params[pair] = ""
		}
	}
	return parts[0], params
}

// pathOf returns the path and query portion of an absolute URL.
func pathOf(raw string) string {
	rest := raw
	if idx := strings.Index(rest, "://"); idx != -1 {
		rest = rest[idx+3:]
	}
	if idx := strings.Index(rest, "/"); idx != -1 {
		return rest[idx:]
	}
	return ""
}

// hostOf extracts the host portion of an absolute URL without requiring it
// to be fully well-formed.
func hostOf(raw string) string {
	rest := raw
	if idx := strings.Index(rest, "://"); idx != -1 {
		rest = rest[idx+3:]
	}
	for _, sep := range []string{"/", "?", "#"} {
		if idx := strings.Index(rest, sep); idx != -1 {
			rest = rest[:idx]
		}
	}
	return rest
}
