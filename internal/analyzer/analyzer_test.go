package analyzer

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestAnalyzer() *Analyzer {
	return New(nil)
}

func hasValue(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// =============================================================================
// Static Query Parameter Tests
// =============================================================================

func TestAnalyze_StaticQueryParams(t *testing.T) {
	a := newTestAnalyzer()
	a.AnalyzeContent(`const res = await fetch("/api/users?active=true&page=2");`, "main.js")

	result := a.Result()
	ep, ok := result.BackendEndpoints["/api/users"]
	if !ok {
		t.Fatalf("endpoint /api/users not found, got %v", result.Endpoints())
	}

	if !hasValue(ep.Params["active"], "true") {
		t.Errorf("Params[active] = %v, want to contain true", ep.Params["active"])
	}
	if !hasValue(ep.Params["page"], "2") {
		t.Errorf("Params[page] = %v, want to contain 2", ep.Params["page"])
	}
	if !hasValue(ep.Files, "main.js") {
		t.Errorf("Files = %v, want to contain main.js", ep.Files)
	}
}

func TestAnalyze_StaticQueryParams_URLDecoding(t *testing.T) {
	a := newTestAnalyzer()
	a.AnalyzeContent(`get("/api/search?q=hello%20world")`, "search.js")

	ep := a.Result().BackendEndpoints["/api/search"]
	if ep == nil {
		t.Fatal("endpoint /api/search not found")
	}
	if !hasValue(ep.Params["q"], "hello world") {
		t.Errorf("Params[q] = %v, want decoded value", ep.Params["q"])
	}
}

func TestAnalyze_StaticQueryParams_BareParam(t *testing.T) {
	a := newTestAnalyzer()
	a.AnalyzeContent(`fetch("/api/items?verbose&limit=5")`, "items.js")

	ep := a.Result().BackendEndpoints["/api/items"]
	if ep == nil {
		t.Fatal("endpoint /api/items not found")
	}
	if _, ok := ep.Params["verbose"]; !ok {
		t.Error("bare parameter verbose should be recorded")
	}
	if !hasValue(ep.Params["limit"], "5") {
		t.Errorf("Params[limit] = %v, want 5", ep.Params["limit"])
	}
}

func TestAnalyze_DefaultMethodIsGET(t *testing.T) {
	a := newTestAnalyzer()
	a.AnalyzeContent(`const u = "/api/things?x=1";`, "things.js")

	ep := a.Result().BackendEndpoints["/api/things"]
	if ep == nil {
		t.Fatal("endpoint /api/things not found")
	}
	if len(ep.HTTPMethods) != 1 || ep.HTTPMethods[0] != "GET" {
		t.Errorf("HTTPMethods = %v, want [GET]", ep.HTTPMethods)
	}
}

// =============================================================================
// Template Literal Tests
// =============================================================================

func TestAnalyze_TemplatePathParams(t *testing.T) {
	a := newTestAnalyzer()
	a.AnalyzeContent("axios.get(`/api/users/${userId}/posts`)", "users.js")

	ep := a.Result().BackendEndpoints["/api/users/{PARAM}/posts"]
	if ep == nil {
		t.Fatal("normalized endpoint not found")
	}
	if !hasValue(ep.TemplateParams, "userId") {
		t.Errorf("TemplateParams = %v, want userId", ep.TemplateParams)
	}
	if !hasValue(ep.HTTPMethods, "GET") {
		t.Errorf("HTTPMethods = %v, want GET", ep.HTTPMethods)
	}
}

func TestAnalyze_TemplateMethodSniffing(t *testing.T) {
	tests := []struct {
		name    string
		content string
		method  string
	}{
		{"post", "api.post(`/api/users/${id}`)", "POST"},
		{"put", "client.put(`/api/users/${id}`)", "PUT"},
		{"delete", "http.delete(`/api/users/${id}`)", "DELETE"},
		{"patch", "svc.patch(`/api/users/${id}`)", "PATCH"},
		{"default", "load(`/api/users/${id}`)", "GET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyzer()
			a.AnalyzeContent(tt.content, "m.js")

			ep := a.Result().BackendEndpoints["/api/users/{PARAM}"]
			if ep == nil {
				t.Fatal("normalized endpoint not found")
			}
			if !hasValue(ep.HTTPMethods, tt.method) {
				t.Errorf("HTTPMethods = %v, want %s", ep.HTTPMethods, tt.method)
			}
		})
	}
}

func TestAnalyze_TemplateQueryParams(t *testing.T) {
	a := newTestAnalyzer()
	a.AnalyzeContent("load(`/api/search?q=${query}&limit=10`)", "search.js")

	ep := a.Result().BackendEndpoints["/api/search"]
	if ep == nil {
		t.Fatal("endpoint /api/search not found")
	}
	if !hasValue(ep.TemplateParams, "query") {
		t.Errorf("TemplateParams = %v, want query", ep.TemplateParams)
	}
	if !hasValue(ep.DynamicPatterns, "q=dynamic") {
		t.Errorf("DynamicPatterns = %v, want q=dynamic", ep.DynamicPatterns)
	}
	if !hasValue(ep.Params["limit"], "10") {
		t.Errorf("Params[limit] = %v, want 10", ep.Params["limit"])
	}
}

func TestAnalyze_TemplateComplexExpressions(t *testing.T) {
	a := newTestAnalyzer()
	a.AnalyzeContent("axios.get(`/api/orders/${order.id}/items`)", "orders.js")

	ep := a.Result().BackendEndpoints["/api/orders/{PARAM}/items"]
	if ep == nil {
		t.Fatal("normalized endpoint not found")
	}
	if !hasValue(ep.TemplateParams, "order.id") {
		t.Errorf("TemplateParams = %v, want full expression order.id", ep.TemplateParams)
	}
}

func TestAnalyze_TemplateNonAPIIgnored(t *testing.T) {
	a := newTestAnalyzer()
	a.AnalyzeContent("load(`/static/js/${chunk}.js`)", "loader.js")

	if n := len(a.Result().BackendEndpoints); n != 0 {
		t.Errorf("non-API templates should be ignored, got %d endpoints", n)
	}
}

// =============================================================================
// URLSearchParams Tests
// =============================================================================

func TestAnalyze_SearchParams(t *testing.T) {
	content := `
const url = new URL('/api/products');
url.searchParams.append('category', 'books');
url.searchParams.set('sort', sortOrder);
`
	a := newTestAnalyzer()
	a.AnalyzeContent(content, "products.js")

	ep := a.Result().BackendEndpoints["/api/products"]
	if ep == nil {
		t.Fatal("endpoint /api/products not found")
	}
	if !hasValue(ep.Params["category"], "books") {
		t.Errorf("Params[category] = %v, want books", ep.Params["category"])
	}
	if !hasValue(ep.DynamicPatterns, "sort=dynamic") {
		t.Errorf("DynamicPatterns = %v, want sort=dynamic", ep.DynamicPatterns)
	}
}

func TestAnalyze_SearchParams_NoUsage(t *testing.T) {
	a := newTestAnalyzer()
	a.AnalyzeContent(`const url = new URL('/api/plain');`, "plain.js")

	if _, ok := a.Result().BackendEndpoints["/api/plain"]; ok {
		t.Error("URL without searchParams usage should not be recorded")
	}
}

// =============================================================================
// Axios / Fetch Call Tests
// =============================================================================

func TestAnalyze_AxiosCallWithParams(t *testing.T) {
	content := `axios.get('/api/reports', { params: { year: '2023', region: region } })`
	a := newTestAnalyzer()
	a.AnalyzeContent(content, "reports.js")

	ep := a.Result().BackendEndpoints["/api/reports"]
	if ep == nil {
		t.Fatal("endpoint /api/reports not found")
	}
	if !hasValue(ep.HTTPMethods, "GET") {
		t.Errorf("HTTPMethods = %v, want GET", ep.HTTPMethods)
	}
	if !hasValue(ep.Params["year"], "2023") {
		t.Errorf("Params[year] = %v, want 2023", ep.Params["year"])
	}
	if !hasValue(ep.DynamicPatterns, "region=dynamic") {
		t.Errorf("DynamicPatterns = %v, want region=dynamic", ep.DynamicPatterns)
	}
}

func TestAnalyze_AxiosInstanceCall(t *testing.T) {
	content := `
const apiClient = axios.create({ baseURL: '/' });
apiClient.post('/api/login', credentials);
`
	a := newTestAnalyzer()
	a.AnalyzeContent(content, "auth.js")

	ep := a.Result().BackendEndpoints["/api/login"]
	if ep == nil {
		t.Fatal("endpoint /api/login not found")
	}
	if !hasValue(ep.HTTPMethods, "POST") {
		t.Errorf("HTTPMethods = %v, want POST", ep.HTTPMethods)
	}
}

func TestAnalyze_NonAxiosInstanceIgnored(t *testing.T) {
	content := `someClient.post('/api/other', data);`
	a := newTestAnalyzer()
	a.AnalyzeContent(content, "other.js")

	if _, ok := a.Result().BackendEndpoints["/api/other"]; ok {
		t.Error("calls on undeclared instances should be ignored")
	}
}

func TestAnalyze_FetchMethodFromOptions(t *testing.T) {
	content := `fetch('/api/orders', { method: 'POST', body: JSON.stringify({ item: 'book', qty: 2 }) })`
	a := newTestAnalyzer()
	a.AnalyzeContent(content, "orders.js")

	ep := a.Result().BackendEndpoints["/api/orders"]
	if ep == nil {
		t.Fatal("endpoint /api/orders not found")
	}
	if !hasValue(ep.HTTPMethods, "POST") {
		t.Errorf("HTTPMethods = %v, want POST", ep.HTTPMethods)
	}

	if len(ep.RequestBodies) == 0 {
		t.Fatal("request body should be extracted from JSON.stringify")
	}
	props := ep.RequestBodies[0].Properties
	if props["item"].Type != "string" {
		t.Errorf("item type = %s, want string", props["item"].Type)
	}
	if props["qty"].Type != "number" {
		t.Errorf("qty type = %s, want number", props["qty"].Type)
	}
}

func TestAnalyze_FetchMethodCaseInsensitive(t *testing.T) {
	content := `fetch('/api/notes', { method: "put" })`
	a := newTestAnalyzer()
	a.AnalyzeContent(content, "notes.js")

	ep := a.Result().BackendEndpoints["/api/notes"]
	if ep == nil {
		t.Fatal("endpoint /api/notes not found")
	}
	if !hasValue(ep.HTTPMethods, "PUT") {
		t.Errorf("HTTPMethods = %v, want PUT", ep.HTTPMethods)
	}
}

func TestAnalyze_AxiosInlineBody(t *testing.T) {
	content := `axios.post('/api/profile', { user: { id: 1, name: "Bo" }, tags: [1, 2] })`
	a := newTestAnalyzer()
	a.AnalyzeContent(content, "profile.js")

	ep := a.Result().BackendEndpoints["/api/profile"]
	if ep == nil {
		t.Fatal("endpoint /api/profile not found")
	}
	if len(ep.RequestBodies) == 0 {
		t.Fatal("request body should be extracted")
	}

	props := ep.RequestBodies[0].Properties
	user, ok := props["user"]
	if !ok || user.Type != "object" {
		t.Fatalf("user property = %+v, want object", props["user"])
	}
	if user.Properties["id"].Type != "number" {
		t.Errorf("user.id type = %s, want number", user.Properties["id"].Type)
	}
	if user.Properties["name"].Type != "string" {
		t.Errorf("user.name type = %s, want string", user.Properties["name"].Type)
	}

	tags, ok := props["tags"]
	if !ok || tags.Type != "array" {
		t.Fatalf("tags property = %+v, want array", props["tags"])
	}
	if tags.Items == nil || tags.Items.Type != "number" {
		t.Errorf("tags items = %+v, want number", tags.Items)
	}
}

func TestAnalyze_AxiosBodyVariable(t *testing.T) {
	content := `
const payload = { name: "Alice", age: 30, active: true };
axios.post('/api/users', payload);
`
	a := newTestAnalyzer()
	a.AnalyzeContent(content, "users.js")

	ep := a.Result().BackendEndpoints["/api/users"]
	if ep == nil {
		t.Fatal("endpoint /api/users not found")
	}
	if len(ep.RequestBodies) == 0 {
		t.Fatal("request body should be resolved from variable definition")
	}

	props := ep.RequestBodies[0].Properties
	if props["name"].Type != "string" || props["name"].Example != "Alice" {
		t.Errorf("name = %+v, want string Alice", props["name"])
	}
	if props["age"].Type != "number" {
		t.Errorf("age type = %s, want number", props["age"].Type)
	}
	if props["active"].Type != "boolean" || props["active"].Example != true {
		t.Errorf("active = %+v, want boolean true", props["active"])
	}
}

func TestAnalyze_BodyDeduplication(t *testing.T) {
	content := `
axios.post('/api/events', { kind: "click", ts: 1 });
axios.post('/api/events', { kind: "view", ts: 2 });
`
	a := newTestAnalyzer()
	a.AnalyzeContent(content, "events.js")

	ep := a.Result().BackendEndpoints["/api/events"]
	if ep == nil {
		t.Fatal("endpoint /api/events not found")
	}
	if len(ep.RequestBodies) != 1 {
		t.Errorf("structurally equal bodies should dedup, got %d", len(ep.RequestBodies))
	}
}

func TestAnalyze_MultipleFilesMerge(t *testing.T) {
	a := newTestAnalyzer()
	a.AnalyzeContent(`axios.get('/api/users?page=1')`, "a.js")
	a.AnalyzeContent(`axios.delete('/api/users?page=2')`, "b.js")

	ep := a.Result().BackendEndpoints["/api/users"]
	if ep == nil {
		t.Fatal("endpoint /api/users not found")
	}
	if len(ep.Files) != 2 {
		t.Errorf("Files = %v, want both a.js and b.js", ep.Files)
	}
	if !hasValue(ep.Params["page"], "1") || !hasValue(ep.Params["page"], "2") {
		t.Errorf("Params[page] = %v, want both values", ep.Params["page"])
	}
}

// =============================================================================
// AnalyzeDir Tests
// =============================================================================

func TestAnalyzeDir(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"main.js":    `axios.get('/api/users?active=true')`,
		"chunk.cjs":  "load(`/api/items/${itemId}`)",
		"styles.css": `body { background: url('/api/fake?x=1'); }`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	result, err := New(nil).AnalyzeDir(dir)
	if err != nil {
		t.Fatalf("AnalyzeDir() error = %v", err)
	}

	if _, ok := result.BackendEndpoints["/api/users"]; !ok {
		t.Error("should analyze .js files")
	}
	if _, ok := result.BackendEndpoints["/api/items/{PARAM}"]; !ok {
		t.Error("should analyze .cjs files")
	}
	if _, ok := result.BackendEndpoints["/api/fake"]; ok {
		t.Error("should skip non-JS files")
	}
}

func TestAnalyzeDir_MissingDirectory(t *testing.T) {
	_, err := New(nil).AnalyzeDir("/nonexistent/path/here")
	if err == nil {
		t.Error("AnalyzeDir() should fail for a missing directory")
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestMatchCallEnd(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			"simple call",
			`axios.get('/api/x')`,
			`axios.get('/api/x'`,
		},
		{
			"nested parens",
			`axios.get('/api/x', { transform: fn(a, b) })`,
			`axios.get('/api/x', { transform: fn(a, b) }`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end := matchCallEnd(tt.content, 0)
			if end == -1 {
				t.Fatal("matchCallEnd() = -1")
			}
			if got := tt.content[:end]; got != tt.want {
				t.Errorf("call content = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseQueryString(t *testing.T) {
	params := parseQueryString("a=1&b=two&flag&a=3")

	if len(params["a"]) != 2 {
		t.Errorf("a values = %v, want two entries", params["a"])
	}
	if len(params["flag"]) != 1 || params["flag"][0] != "" {
		t.Errorf("flag = %v, want single empty value", params["flag"])
	}
	if params["b"][0] != "two" {
		t.Errorf("b = %v, want two", params["b"])
	}
}
