package scope

import (
	"strings"
)

// DefaultExcludePatterns contains URL patterns that should never be fetched.
var DefaultExcludePatterns = []string{
	`.*[?&]logout.*`,
	`.*[?&]signout.*`,
	`.*\/logout.*`,
	`.*\/signout.*`,
	`.*\.pdf$`,
	`.*\.zip$`,
	`.*\.exe$`,
	`.*\.dmg$`,
}

// CommonAPIPatterns contains common API path patterns.
var CommonAPIPatterns = []string{
	`/api/`,
	`/v[0-9]+/`,
	`/graphql`,
	`/rest/`,
	`/rpc/`,
	`/ajax/`,
}

// hasVersionSegment reports whether the path contains a versioned
// segment like /v1/ or /v12/.
func hasVersionSegment(path string) bool {
	for i := 0; i+2 < len(path); i++ {
		if path[i] == '/' && path[i+1] == 'v' {
			j := i + 2
			for j < len(path) && path[j] >= '0' && path[j] <= '9' {
				j++
			}
			if j > i+2 && j < len(path) && path[j] == '/' {
				return true
			}
		}
	}
	return false
}

// IsAPIPath checks if a path looks like an API endpoint.
func IsAPIPath(path string) bool {
	path = strings.ToLower(path)

	for _, pattern := range CommonAPIPatterns {
		if pattern == `/v[0-9]+/` {
			if hasVersionSegment(path) {
				return true
			}
			continue
		}
		if strings.Contains(path, pattern) {
			return true
		}
	}

	indicators := []string{
		".json",
		"format=json",
		"callback=",
	}
	for _, ind := range indicators {
		if strings.Contains(path, ind) {
			return true
		}
	}
	return false
}
