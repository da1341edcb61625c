package analyzer

import (
	"reflect"
	"testing"
)

func TestInferProperty(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		wantType string
	}{
		{"boolean true", "true", "boolean"},
		{"boolean false", "false", "boolean"},
		{"integer", "42", "number"},
		{"negative", "-7", "number"},
		{"float", "3.14", "number"},
		{"array", "[1, 2, 3]", "array"},
		{"object", `{ a: 1 }`, "object"},
		{"double quoted", `"hello"`, "string"},
		{"single quoted", `'hello'`, "string"},
		{"date", "new Date()", "string"},
		{"variable", "someVar", "string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inferProperty(tt.value); got.Type != tt.wantType {
				t.Errorf("inferProperty(%q).Type = %s, want %s", tt.value, got.Type, tt.wantType)
			}
		})
	}
}

func TestInferProperty_NumberExamples(t *testing.T) {
	if got := inferProperty("42"); got.Example != int64(42) {
		t.Errorf("integer example = %v (%T), want int64 42", got.Example, got.Example)
	}
	if got := inferProperty("3.5"); got.Example != 3.5 {
		t.Errorf("float example = %v, want 3.5", got.Example)
	}
}

func TestInferProperty_DateExample(t *testing.T) {
	got := inferProperty("new Date()")
	if got.Example != "2023-01-01T00:00:00Z" {
		t.Errorf("date example = %v, want ISO placeholder", got.Example)
	}
}

func TestInferArrayItemType(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"1, 2, 3", "number"},
		{"true, false", "boolean"},
		{`{ a: 1 }, { a: 2 }`, "object"},
		{`"x", "y"`, "string"},
		{"", "string"},
	}

	for _, tt := range tests {
		if got := inferArrayItemType(tt.content); got != tt.want {
			t.Errorf("inferArrayItemType(%q) = %s, want %s", tt.content, got, tt.want)
		}
	}
}

func TestSplitTopLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			"flat",
			`a: 1, b: "two"`,
			[]string{`a: 1`, `b: "two"`},
		},
		{
			"nested object",
			`user: { id: 1, name: "x" }, active: true`,
			[]string{`user: { id: 1, name: "x" }`, `active: true`},
		},
		{
			"nested array",
			`tags: [1, 2, 3], kind: "a"`,
			[]string{`tags: [1, 2, 3]`, `kind: "a"`},
		},
		{
			"comma inside string",
			`msg: "hello, world", n: 1`,
			[]string{`msg: "hello, world"`, `n: 1`},
		},
		{
			"mixed quotes",
			`a: 'it"s', b: 2`,
			[]string{`a: 'it"s'`, `b: 2`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitTopLevel(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitTopLevel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBodyStructure_EmptyObject(t *testing.T) {
	a := newTestAnalyzer()
	a.extractBodyStructure("/api/ping", "{}")

	ep := a.Result().BackendEndpoints["/api/ping"]
	if ep == nil {
		t.Fatal("endpoint not recorded")
	}
	if len(ep.RequestBodies) != 1 {
		t.Fatalf("RequestBodies = %d, want 1", len(ep.RequestBodies))
	}
	prop, ok := ep.RequestBodies[0].Properties["emptyObject"]
	if !ok || prop.Type != "object" {
		t.Errorf("empty object marker = %+v", prop)
	}
}

func TestExtractBodyStructure_NotAnObject(t *testing.T) {
	a := newTestAnalyzer()
	a.extractBodyStructure("/api/x", "someVariable")

	if _, ok := a.Result().BackendEndpoints["/api/x"]; ok {
		t.Error("non-object fragments should be skipped")
	}
}

func TestExtractBodyStructure_QuotedKeys(t *testing.T) {
	a := newTestAnalyzer()
	a.extractBodyStructure("/api/cfg", `{ "mode": "dark", 'size': 10 }`)

	ep := a.Result().BackendEndpoints["/api/cfg"]
	if ep == nil {
		t.Fatal("endpoint not recorded")
	}
	props := ep.RequestBodies[0].Properties
	if _, ok := props["mode"]; !ok {
		t.Errorf("double-quoted key should be stripped, got %v", props)
	}
	if _, ok := props["size"]; !ok {
		t.Errorf("single-quoted key should be stripped, got %v", props)
	}
}

func TestFindVariableDefinition_Declaration(t *testing.T) {
	a := newTestAnalyzer()
	context := `const body = { id: 7, label: "x" }; send(body);`
	a.findVariableDefinition("/api/send", "body", context)

	ep := a.Result().BackendEndpoints["/api/send"]
	if ep == nil || len(ep.RequestBodies) == 0 {
		t.Fatal("variable declaration should resolve to a body")
	}
	if ep.RequestBodies[0].Properties["id"].Type != "number" {
		t.Errorf("id type = %s, want number", ep.RequestBodies[0].Properties["id"].Type)
	}
}

func TestFindVariableDefinition_Assignment(t *testing.T) {
	a := newTestAnalyzer()
	context := `payload = { status: "done" };`
	a.findVariableDefinition("/api/status", "payload", context)

	ep := a.Result().BackendEndpoints["/api/status"]
	if ep == nil || len(ep.RequestBodies) == 0 {
		t.Fatal("assignment should resolve to a body")
	}
}

func TestFindVariableDefinition_PropertyPath(t *testing.T) {
	a := newTestAnalyzer()
	context := `const state = { form: { email: "a@b.c", consent: true } };`
	a.findVariableDefinition("/api/subscribe", "state.form", context)

	ep := a.Result().BackendEndpoints["/api/subscribe"]
	if ep == nil || len(ep.RequestBodies) == 0 {
		t.Fatal("property path should resolve to the nested object")
	}
	props := ep.RequestBodies[0].Properties
	if props["email"].Type != "string" {
		t.Errorf("email type = %s, want string", props["email"].Type)
	}
	if props["consent"].Type != "boolean" {
		t.Errorf("consent type = %s, want boolean", props["consent"].Type)
	}
}

func TestFindVariableDefinition_FunctionArgument(t *testing.T) {
	a := newTestAnalyzer()
	context := `
function submitForm(data) { post(data); }
submitForm({ field: "value" });
`
	a.findVariableDefinition("/api/form", "data", context)

	ep := a.Result().BackendEndpoints["/api/form"]
	if ep == nil || len(ep.RequestBodies) == 0 {
		t.Fatal("function argument should resolve via a call site")
	}
}

func TestFindVariableDefinition_Unresolvable(t *testing.T) {
	a := newTestAnalyzer()
	a.findVariableDefinition("/api/mystery", "ghost", `const other = 1;`)

	if _, ok := a.Result().BackendEndpoints["/api/mystery"]; ok {
		t.Error("unresolvable variables should be skipped silently")
	}
}

func TestExtractNestedProperty(t *testing.T) {
	object := `{ form: { email: "a@b.c", meta: { source: "web" } }, n: 1 }`

	tests := []struct {
		name string
		path []string
		want string
	}{
		{"one level", []string{"n"}, "1"},
		{"object value", []string{"form", "email"}, `"a@b.c"`},
		{"two levels", []string{"form", "meta", "source"}, `"web"`},
		{"missing", []string{"nope"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractNestedProperty(object, tt.path); got != tt.want {
				t.Errorf("extractNestedProperty(%v) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestSameBodyStructure(t *testing.T) {
	a := BodyStructure{
		ContentType: "application/json",
		Properties: map[string]BodyProperty{
			"id":   {Type: "number", Example: int64(1)},
			"name": {Type: "string", Example: "x"},
		},
	}
	b := BodyStructure{
		ContentType: "application/json",
		Properties: map[string]BodyProperty{
			"id":   {Type: "number", Example: int64(99)},
			"name": {Type: "string", Example: "y"},
		},
	}
	c := BodyStructure{
		ContentType: "application/json",
		Properties: map[string]BodyProperty{
			"id": {Type: "string", Example: "1"},
		},
	}

	if !sameBodyStructure(a, b) {
		t.Error("structures with same keys and types should match regardless of examples")
	}
	if sameBodyStructure(a, c) {
		t.Error("structures with different keys should not match")
	}
}
