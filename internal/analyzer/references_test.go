package analyzer

import "testing"

func TestScanReferences(t *testing.T) {
	content := `
fetch('/api/users');
axios.get('/api/items?limit=5');
const cdn = "https://cdn.example.com/lib.js";
window.analytics.fetch ("https://metrics.example.io/collect");
`
	refs := ScanReferences(content)

	if len(refs) == 0 {
		t.Fatal("expected references")
	}

	containsRef := func(want string) bool {
		for _, r := range refs {
			if r == want {
				return true
			}
		}
		return false
	}

	if !containsRef(`https://cdn.example.com/lib.js`) {
		t.Errorf("missing absolute URL, got %v", refs)
	}
	if !containsRef(`'/api/users`) {
		t.Errorf("missing quoted API path, got %v", refs)
	}
}

func TestScanReferences_Dedup(t *testing.T) {
	content := `fetch('/api/a'); fetch('/api/a');`
	refs := ScanReferences(content)

	seen := make(map[string]int)
	for _, r := range refs {
		seen[r]++
		if seen[r] > 1 {
			t.Errorf("duplicate reference %q", r)
		}
	}
}

func TestCategorizeReferences(t *testing.T) {
	matches := map[string][]string{
		"main.js": {
			`https://cdn.example.com/lib.js`,
			`"/api/users?role=admin"`,
			`fetch(`,
		},
		"vendor.js": {
			`https://cdn.example.com/other.js`,
		},
	}

	refs := CategorizeReferences(matches)

	files, ok := refs.ByDomain["cdn.example.com"]
	if !ok {
		t.Fatalf("domain cdn.example.com missing, got %v", refs.ByDomain)
	}
	if len(files) != 2 {
		t.Errorf("domain files = %d, want 2", len(files))
	}

	calls := refs.BackendCalls["main.js"]
	if len(calls) != 2 {
		t.Fatalf("backend calls = %d, want 2", len(calls))
	}

	var apiCall *BackendCall
	for i := range calls {
		if calls[i].Endpoint == "/api/users" {
			apiCall = &calls[i]
		}
	}
	if apiCall == nil {
		t.Fatalf("missing /api/users call, got %+v", calls)
	}
	if apiCall.Params["role"] != "admin" {
		t.Errorf("params = %v, want role=admin", apiCall.Params)
	}
}

func TestCategorizeReferences_AbsoluteAPIURLs(t *testing.T) {
	matches := map[string][]string{
		"app.js": {
			`https://api.partner.io/v2/accounts?active=true`,
			`https://backend.example.com/graphql`,
			`https://cdn.example.com/lib.js`,
		},
	}

	refs := CategorizeReferences(matches)

	calls := refs.BackendCalls["app.js"]
	if len(calls) != 2 {
		t.Fatalf("backend calls = %d, want 2 (API-shaped absolute URLs only), got %+v", len(calls), calls)
	}

	byEndpoint := make(map[string]BackendCall)
	for _, c := range calls {
		byEndpoint[c.Endpoint] = c
	}
	accounts, ok := byEndpoint["/v2/accounts"]
	if !ok {
		t.Fatalf("missing /v2/accounts call, got %+v", calls)
	}
	if accounts.Params["active"] != "true" {
		t.Errorf("params = %v, want active=true", accounts.Params)
	}
	if _, ok := byEndpoint["/graphql"]; !ok {
		t.Errorf("missing /graphql call, got %+v", calls)
	}

	// Plain asset URLs still group by domain without becoming calls.
	if _, ok := refs.ByDomain["cdn.example.com"]; !ok {
		t.Errorf("cdn.example.com missing from ByDomain, got %v", refs.ByDomain)
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/path", "example.com"},
		{"http://api.example.com?x=1", "api.example.com"},
		{"https://cdn.example.com", "cdn.example.com"},
		{"https://example.com#frag", "example.com"},
	}

	for _, tt := range tests {
		if got := hostOf(tt.url); got != tt.want {
			t.Errorf("hostOf(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
