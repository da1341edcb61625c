// Package analyzer extracts API endpoint references, query parameters, and
// request body shapes from downloaded JavaScript bundles using regex
// heuristics. It does not parse JavaScript; fragments that don't match any
// heuristic are skipped.
package analyzer

import "sort"

// BodyItems describes the element type of an array property.
type BodyItems struct {
	Type string `json:"type"`
}

// BodyProperty describes a single property of an inferred request body.
type BodyProperty struct {
	Type       string                  `json:"type"`
	Example    interface{}             `json:"example"`
	Items      *BodyItems              `json:"items,omitempty"`
	Properties map[string]BodyProperty `json:"properties,omitempty"`
}

// BodyStructure is an inferred request body shape.
type BodyStructure struct {
	ContentType string                  `json:"contentType"`
	Properties  map[string]BodyProperty `json:"properties"`
}

// Endpoint aggregates everything observed about a single backend endpoint
// across all analyzed files.
type Endpoint struct {
	Files           []string            `json:"files"`
	Params          map[string][]string `json:"params"`
	TemplateParams  []string            `json:"template_params"`
	DynamicPatterns []string            `json:"dynamic_patterns"`
	HTTPMethods     []string            `json:"http_methods"`
	RequestBodies   []BodyStructure     `json:"request_bodies"`
}

// Result is the full analysis output, keyed by normalized endpoint path.
type Result struct {
	BackendEndpoints map[string]*Endpoint `json:"backend_endpoints"`
}

// Endpoints returns the endpoint paths in sorted order.
func (r *Result) Endpoints() []string {
	paths := make([]string, 0, len(r.BackendEndpoints))
	for p := range r.BackendEndpoints {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// record is the mutable aggregation state for one endpoint. Sets keep
// observations unique; serialization converts them to sorted slices.
type record struct {
	files           map[string]struct{}
	params          map[string]map[string]struct{}
	templateParams  map[string]struct{}
	dynamicPatterns map[string]struct{}
	httpMethods     map[string]struct{}
	requestBodies   []BodyStructure
}

func newRecord() *record {
	return &record{
		files:           make(map[string]struct{}),
		params:          make(map[string]map[string]struct{}),
		templateParams:  make(map[string]struct{}),
		dynamicPatterns: make(map[string]struct{}),
		httpMethods:     make(map[string]struct{}),
	}
}

func (r *record) addFile(name string) {
	r.files[name] = struct{}{}
}

func (r *record) addParam(key, value string) {
	if r.params[key] == nil {
		r.params[key] = make(map[string]struct{})
	}
	r.params[key][value] = struct{}{}
}

func (r *record) addTemplateParam(expr string) {
	r.templateParams[expr] = struct{}{}
}

func (r *record) addDynamicPattern(pattern string) {
	r.dynamicPatterns[pattern] = struct{}{}
}

func (r *record) addMethod(method string) {
	r.httpMethods[method] = struct{}{}
}

// addBody appends a body structure unless a structurally equivalent one is
// already recorded.
func (r *record) addBody(body BodyStructure) bool {
	for _, existing := range r.requestBodies {
		if sameBodyStructure(existing, body) {
			return false
		}
	}
	r.requestBodies = append(r.requestBodies, body)
	return true
}

// sameBodyStructure reports whether two body shapes have the same content
// type and the same property names with the same types. Examples are ignored.
func sameBodyStructure(a, b BodyStructure) bool {
	if a.ContentType != b.ContentType {
		return false
	}
	if len(a.Properties) != len(b.Properties) {
		return false
	}
	for key, propA := range a.Properties {
		propB, ok := b.Properties[key]
		if !ok {
			return false
		}
		if propA.Type != propB.Type {
			return false
		}
	}
	return true
}

// serialize converts the record to its exportable form with sorted slices.
// Endpoints with no observed method default to GET.
func (r *record) serialize() *Endpoint {
	ep := &Endpoint{
		Files:           sortedKeys(r.files),
		Params:          make(map[string][]string, len(r.params)),
		TemplateParams:  sortedKeys(r.templateParams),
		DynamicPatterns: sortedKeys(r.dynamicPatterns),
		HTTPMethods:     sortedKeys(r.httpMethods),
		RequestBodies:   r.requestBodies,
	}
	for key, values := range r.params {
		ep.Params[key] = sortedKeys(values)
	}
	if len(ep.HTTPMethods) == 0 {
		ep.HTTPMethods = []string{"GET"}
	}
	if ep.RequestBodies == nil {
		ep.RequestBodies = []BodyStructure{}
	}
	return ep
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
