package analyzer

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/apiscout/apiscout/internal/logger"
)

// objLiteral matches a single-level-nested object literal. Two levels of
// nesting is as far as the heuristics go; deeper bodies get truncated.
const objLiteral = `\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`

// callScanLimit bounds how far past a call site the paren matcher scans.
const callScanLimit = 2000

var (
	staticQueryRe    = regexp.MustCompile("['\"`](/api/[^'\"`?]+)\\?([^'\"`]+)['\"`]")
	templateRe       = regexp.MustCompile("`([^`]*?/api/[^`]*?)`")
	templateVarRe    = regexp.MustCompile(`\$\{([^}]+)\}`)
	templateSubRe    = regexp.MustCompile(`\$\{[^}]+\}`)
	newURLRe         = regexp.MustCompile(`new URL\(['"](/api/[^'"]+)['"]\)`)
	searchParamsRe   = regexp.MustCompile(`searchParams\.(append|set)\s*\(\s*['"]([^'"]+)['"]\s*,\s*([^)]+)\)`)
	axiosCallRe      = regexp.MustCompile(`axios\.(get|post|put|delete|patch)\s*\(\s*['"]([^'"]*/api/[^'"]+)['"]`)
	instanceCallRe   = regexp.MustCompile(`([a-zA-Z0-9_]+)\.(get|post|put|delete|patch)\s*\(\s*['"]([^'"]*/api/[^'"]+)['"]`)
	fetchCallRe      = regexp.MustCompile("fetch\\s*\\(\\s*['\"`]([^'\"`]*/api/[^'\"]+)['\"`]")
	fetchMethodRe    = regexp.MustCompile(`(?i)method\s*:\s*['"]([a-zA-Z]+)['"]`)
	paramsObjectRe   = regexp.MustCompile(`params\s*:\s*(` + objLiteral + `)`)
	objectPairRe     = regexp.MustCompile(`(\w+)\s*:\s*([^,}]+)`)
	axiosBodyObjRe   = regexp.MustCompile(`axios\.[a-z]+\s*\(\s*['"][^'"]+['"]\s*,\s*(` + objLiteral + `)`)
	axiosBodyVarRe   = regexp.MustCompile(`axios\.[a-z]+\s*\(\s*['"][^'"]+['"]\s*,\s*([a-zA-Z0-9_]+)`)
	jsonStringifyRe  = regexp.MustCompile(`JSON\.stringify\s*\(([^)]+)\)`)
	bodyObjectRe     = regexp.MustCompile(`body\s*:\s*(` + objLiteral + `)`)
	bodyExprRe       = regexp.MustCompile(`body\s*:\s*([^,}]+)`)
	dataObjectRe     = regexp.MustCompile(`data\s*:\s*(` + objLiteral + `)`)
	funcNameRe       = regexp.MustCompile(`function\s+(\w+)`)
	funcCallObjectRe = regexp.MustCompile(`\w+\(\s*(` + objLiteral + `)\s*\)`)
)

// methodKeywords maps lowercase hints found near a call site to HTTP methods.
// Order matters: the first keyword present in the context wins.
var methodKeywords = []struct {
	keyword string
	method  string
}{
	{"get", "GET"},
	{"post", "POST"},
	{"put", "PUT"},
	{"delete", "DELETE"},
	{"patch", "PATCH"},
}

// Analyzer scans JavaScript source text for backend endpoint references.
type Analyzer struct {
	log       *logger.Logger
	endpoints map[string]*record
}

// New creates an Analyzer.
func New(log *logger.Logger) *Analyzer {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Analyzer{
		log:       log.WithComponent("analyzer"),
		endpoints: make(map[string]*record),
	}
}

// AnalyzeDir analyzes every .js, .cjs and .mjs file in dir. Unreadable files
// are skipped with a warning; a missing directory is an error.
func (a *Analyzer) AnalyzeDir(dir string) (*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading script directory %s: %w", dir, err)
	}

	analyzed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".js") && !strings.HasSuffix(name, ".cjs") && !strings.HasSuffix(name, ".mjs") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			a.log.WithFile(name).WithError(err).Warn("Skipping unreadable file")
			continue
		}
		a.AnalyzeContent(string(data), name)
		analyzed++
	}

	a.log.Infof("Analyzed %d script files, found %d endpoints", analyzed, len(a.endpoints))
	return a.Result(), nil
}

// AnalyzeContent runs all extraction strategies over a single file's content.
func (a *Analyzer) AnalyzeContent(content, filename string) {
	a.findStaticQueryParams(content, filename)
	a.findTemplateLiteralParams(content, filename)
	a.findSearchParamsUsage(content, filename)
	a.findAxiosFetchCalls(content, filename)
}

// Result converts the accumulated state into the exportable form.
func (a *Analyzer) Result() *Result {
	out := &Result{BackendEndpoints: make(map[string]*Endpoint, len(a.endpoints))}
	for path, rec := range a.endpoints {
		out.BackendEndpoints[path] = rec.serialize()
	}
	return out
}

func (a *Analyzer) record(endpoint string) *record {
	rec, ok := a.endpoints[endpoint]
	if !ok {
		rec = newRecord()
		a.endpoints[endpoint] = rec
	}
	return rec
}

// findStaticQueryParams extracts quoted '/api/...?k=v' URLs and their query
// strings.
func (a *Analyzer) findStaticQueryParams(content, filename string) {
	for _, m := range staticQueryRe.FindAllStringSubmatch(content, -1) {
		endpoint, query := m[1], m[2]

		rec := a.record(endpoint)
		rec.addFile(filename)

		for key, values := range parseQueryString(query) {
			for _, value := range values {
				rec.addParam(key, value)
			}
		}
	}
}

// findTemplateLiteralParams extracts endpoints from backtick template
// literals, recording ${...} expressions as template parameters and any
// static query pairs alongside them.
func (a *Analyzer) findTemplateLiteralParams(content, filename string) {
	for _, loc := range templateRe.FindAllStringSubmatchIndex(content, -1) {
		template := content[loc[2]:loc[3]]

		contextStart := loc[0] - 30
		if contextStart < 0 {
			contextStart = 0
		}
		method := sniffMethod(content[contextStart:loc[0]])

		// Dynamic path segments: `/api/users/${id}` and friends.
		if strings.Contains(template, "${") && strings.Contains(template, "}") {
			basePath := strings.SplitN(template, "${", 2)[0]
			if strings.HasPrefix(basePath, "/api/") {
				normalized := templateSubRe.ReplaceAllString(template, "{PARAM}")
				rec := a.record(normalized)
				rec.addFile(filename)
				rec.addMethod(method)
				for _, vm := range templateVarRe.FindAllStringSubmatch(template, -1) {
					rec.addTemplateParam(vm[1])
				}
			}
		}

		// Query strings inside templates: `/api/items?page=${page}&sort=asc`.
		if strings.Contains(template, "/api/") && strings.Contains(template, "?") {
			parts := strings.SplitN(template, "?", 2)
			endpoint := parts[0]
			if !strings.HasPrefix(endpoint, "/api/") {
				continue
			}

			rec := a.record(endpoint)
			rec.addFile(filename)

			if len(parts) < 2 || parts[1] == "" {
				continue
			}
			queryTemplate := parts[1]

			for _, vm := range templateVarRe.FindAllStringSubmatch(queryTemplate, -1) {
				rec.addTemplateParam(vm[1])
			}

			// Static pairs survive placeholder substitution intact.
			withPlaceholders := templateSubRe.ReplaceAllString(queryTemplate, "TEMPLATE_VAR")
			for _, pair := range strings.Split(withPlaceholders, "&") {
				if !strings.Contains(pair, "=") {
					continue
				}
				if strings.Contains(pair, "TEMPLATE_VAR") {
					key := strings.SplitN(pair, "=", 2)[0]
					rec.addDynamicPattern(key + "=dynamic")
				} else {
					kv := strings.SplitN(pair, "=", 2)
					rec.addParam(kv[0], kv[1])
				}
			}
		}
	}
}

// findSearchParamsUsage extracts endpoints built with new URL(...) followed
// by searchParams.append/set calls.
func (a *Analyzer) findSearchParamsUsage(content, filename string) {
	for _, loc := range newURLRe.FindAllStringSubmatchIndex(content, -1) {
		endpoint := content[loc[2]:loc[3]]

		chunkEnd := loc[0] + 500
		if chunkEnd > len(content) {
			chunkEnd = len(content)
		}
		chunk := content[loc[0]:chunkEnd]

		matches := searchParamsRe.FindAllStringSubmatch(chunk, -1)
		if len(matches) == 0 {
			continue
		}

		rec := a.record(endpoint)
		rec.addFile(filename)

		for _, pm := range matches {
			name, value := pm[2], strings.TrimSpace(pm[3])
			if isQuoted(value) {
				rec.addParam(name, trimQuotes(value))
			} else {
				rec.addDynamicPattern(name + "=dynamic")
			}
		}
	}
}

// findAxiosFetchCalls extracts endpoints from axios.*, axios-instance, and
// fetch call sites, including params objects and request bodies.
func (a *Analyzer) findAxiosFetchCalls(content, filename string) {
	for _, loc := range axiosCallRe.FindAllStringSubmatchIndex(content, -1) {
		method := strings.ToUpper(content[loc[2]:loc[3]])
		endpoint := ensureLeadingSlash(content[loc[4]:loc[5]])
		a.processCall(content, loc[0], endpoint, filename, method)
	}

	for _, loc := range instanceCallRe.FindAllStringSubmatchIndex(content, -1) {
		instance := content[loc[2]:loc[3]]
		if !isAxiosInstance(content, instance) {
			continue
		}
		method := strings.ToUpper(content[loc[4]:loc[5]])
		endpoint := ensureLeadingSlash(content[loc[6]:loc[7]])
		a.processCall(content, loc[0], endpoint, filename, method)
	}

	for _, loc := range fetchCallRe.FindAllStringSubmatchIndex(content, -1) {
		endpoint := ensureLeadingSlash(content[loc[2]:loc[3]])

		// Method usually lives in the options object after the URL, but a
		// variable assignment before the call can also carry a hint.
		contextStart := loc[0] - 50
		if contextStart < 0 {
			contextStart = 0
		}
		contextEnd := loc[0] + 300
		if contextEnd > len(content) {
			contextEnd = len(content)
		}
		method := "GET"
		if mm := fetchMethodRe.FindStringSubmatch(content[contextStart:contextEnd]); mm != nil {
			method = strings.ToUpper(mm[1])
		}

		a.processCall(content, loc[0], endpoint, filename, method)
	}
}

// processCall captures the full call expression, then extracts the params
// object and, for body-carrying methods, the request body shape.
func (a *Analyzer) processCall(content string, startPos int, endpoint, filename, method string) {
	endPos := matchCallEnd(content, startPos)
	if endPos == -1 {
		return
	}
	callContent := content[startPos:endPos]

	rec := a.record(endpoint)
	rec.addFile(filename)
	rec.addMethod(method)
	a.log.EndpointEvent(endpoint, method, filename)

	if pm := paramsObjectRe.FindStringSubmatch(callContent); pm != nil {
		for _, pair := range objectPairRe.FindAllStringSubmatch(pm[1], -1) {
			key, value := strings.TrimSpace(pair[1]), strings.TrimSpace(pair[2])
			if isQuoted(value) {
				rec.addParam(key, trimQuotes(value))
			} else {
				rec.addDynamicPattern(key + "=dynamic")
			}
		}
	}

	if method != "POST" && method != "PUT" && method != "PATCH" {
		return
	}

	lineStart := strings.LastIndex(content[:startPos], "\n")
	if lineStart == -1 {
		lineStart = 0
	}
	broaderStart := lineStart - 100
	if broaderStart < 0 {
		broaderStart = 0
	}
	broaderEnd := endPos + 300
	if broaderEnd > len(content) {
		broaderEnd = len(content)
	}
	broader := content[broaderStart:broaderEnd]

	varStart := startPos - 1000
	if varStart < 0 {
		varStart = 0
	}
	varEnd := startPos + 1000
	if varEnd > len(content) {
		varEnd = len(content)
	}
	varContext := content[varStart:varEnd]

	nearStart := startPos - 10
	if nearStart < 0 {
		nearStart = 0
	}
	nearEnd := startPos + 10
	if nearEnd > len(content) {
		nearEnd = len(content)
	}

	// axios.post('/api/x', body) carries the body as the second argument.
	if strings.Contains(content[nearStart:nearEnd], "axios.") {
		if dm := axiosBodyObjRe.FindStringSubmatch(broader); dm != nil {
			a.extractBodyStructure(endpoint, dm[1])
		} else if vm := axiosBodyVarRe.FindStringSubmatch(broader); vm != nil {
			a.findVariableDefinition(endpoint, vm[1], varContext)
		}
	}

	// fetch bodies show up as JSON.stringify(...) or a body: property.
	if strings.Contains(broader, "fetch(") {
		if sm := jsonStringifyRe.FindStringSubmatch(broader); sm != nil {
			bodyVar := strings.TrimSpace(sm[1])
			if strings.HasPrefix(bodyVar, "{") && strings.HasSuffix(bodyVar, "}") {
				a.extractBodyStructure(endpoint, bodyVar)
			} else {
				a.findVariableDefinition(endpoint, bodyVar, varContext)
			}
		}

		if bm := bodyObjectRe.FindStringSubmatch(broader); bm != nil {
			a.extractBodyStructure(endpoint, bm[1])
		} else if bm := bodyExprRe.FindStringSubmatch(broader); bm != nil {
			expr := strings.TrimSpace(bm[1])
			if !strings.HasPrefix(expr, `"`) && !strings.HasPrefix(expr, "'") {
				a.findVariableDefinition(endpoint, expr, varContext)
			}
		}
	}

	// data: inside an options object is the axios config form.
	if dm := dataObjectRe.FindStringSubmatch(broader); dm != nil {
		a.extractBodyStructure(endpoint, dm[1])
	}
}

// matchCallEnd finds the index just past the call's closing parenthesis,
// honoring nesting. Scanning is bounded; an unbalanced call falls back to
// the first closing paren.
func matchCallEnd(content string, startPos int) int {
	open := strings.IndexByte(content[startPos:], '(')
	if open == -1 {
		return -1
	}
	pos := startPos + open
	limit := startPos + callScanLimit
	if limit > len(content) {
		limit = len(content)
	}

	depth := 0
	for ; pos < limit; pos++ {
		switch content[pos] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return pos
			}
		}
	}

	fallback := strings.IndexByte(content[startPos:], ')')
	if fallback == -1 {
		return -1
	}
	return startPos + fallback
}

// sniffMethod guesses the HTTP method from the text immediately before a
// template literal. Defaults to GET.
func sniffMethod(contextBefore string) string {
	lower := strings.ToLower(contextBefore)
	for _, mk := range methodKeywords {
		if strings.Contains(lower, mk.keyword) {
			return mk.method
		}
	}
	return "GET"
}

// isAxiosInstance checks whether name was declared as an axios instance
// somewhere in the file.
func isAxiosInstance(content, name string) bool {
	re := regexp.MustCompile(`(?:const|let|var)\s+` + regexp.QuoteMeta(name) + `\s*=\s*axios`)
	return re.MatchString(content)
}

// parseQueryString splits a raw query string into parameter values,
// URL-decoding where possible. Bare parameters map to an empty value.
func parseQueryString(query string) map[string][]string {
	params := make(map[string][]string)
	for _, pair := range strings.Split(query, "&") {
		if kv := strings.SplitN(pair, "=", 2); len(kv) == 2 {
			value := kv[1]
			if decoded, err := url.QueryUnescape(value); err == nil {
				value = decoded
			}
			params[kv[0]] = append(params[kv[0]], value)
		} else {
			params[pair] = append(params[pair], "")
		}
	}
	return params
}

func ensureLeadingSlash(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		return "/" + endpoint
	}
	return endpoint
}

func isQuoted(s string) bool {
	return (strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") && len(s) >= 2) ||
		(strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2)
}

func trimQuotes(s string) string {
	return strings.Trim(s, `'"`)
}
