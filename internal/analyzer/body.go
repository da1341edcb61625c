package analyzer

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

	// Value alternatives for nested property lookup: object, array, or a
	// bare expression up to the next delimiter.
	nestedValueAlt = `(` + objLiteral + `|\[[^\[\]]*(?:\[[^\[\]]*\][^\[\]]*)*\]|[^,}]+)`
)

// extractBodyStructure infers a request body shape from an object literal
// fragment and records it against the endpoint.
func (a *Analyzer) extractBodyStructure(endpoint, body string) {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "{") || !strings.HasSuffix(body, "}") {
		return
	}

	properties := make(map[string]BodyProperty)
	inside := strings.TrimSpace(body[1 : len(body)-1])

	if inside == "" {
		properties["emptyObject"] = BodyProperty{Type: "object", Example: "{}"}
	} else {
		for _, token := range splitTopLevel(inside) {
			key, value, ok := splitKeyValue(token)
			if !ok {
				continue
			}
			properties[key] = inferProperty(value)
		}
	}

	if len(properties) == 0 {
		return
	}

	structure := BodyStructure{
		ContentType: "application/json",
		Properties:  properties,
	}
	if a.record(endpoint).addBody(structure) {
		a.log.Debugf("Added request body for endpoint: %s", endpoint)
	}
}

// inferProperty determines the type and example of a single property value.
func inferProperty(value string) BodyProperty {
	switch {
	case value == "true" || value == "false":
		return BodyProperty{Type: "boolean", Example: value == "true"}

	case numberRe.MatchString(value):
		prop := BodyProperty{Type: "number", Example: value}
		if strings.Contains(value, ".") {
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				prop.Example = f
			}
		} else if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			prop.Example = n
		}
		return prop

	case strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]"):
		return BodyProperty{
			Type:    "array",
			Example: value,
			Items:   &BodyItems{Type: inferArrayItemType(value[1 : len(value)-1])},
		}

	case strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}"):
		nested := extractNestedProperties(value)
		if len(nested) > 0 {
			return BodyProperty{Type: "object", Example: value, Properties: nested}
		}
		return BodyProperty{Type: "string", Example: value}

	case strings.HasPrefix(value, `"`) || strings.HasPrefix(value, "'"):
		return BodyProperty{Type: "string", Example: trimQuotes(value)}

	case strings.HasPrefix(value, "new ") && strings.Contains(value, "Date"):
		return BodyProperty{Type: "string", Example: "2023-01-01T00:00:00Z"}

	default:
		return BodyProperty{Type: "string", Example: value}
	}
}

// inferArrayItemType guesses the element type from the first array item.
func inferArrayItemType(arrayContent string) string {
	arrayContent = strings.TrimSpace(arrayContent)
	if arrayContent == "" {
		return "string"
	}

	items := splitTopLevel(arrayContent)
	if len(items) == 0 {
		return "string"
	}

	first := items[0]
	switch {
	case numberRe.MatchString(first):
		return "number"
	case first == "true" || first == "false":
		return "boolean"
	case strings.HasPrefix(first, "{") && strings.HasSuffix(first, "}"):
		return "object"
	default:
		return "string"
	}
}

// extractNestedProperties extracts one level of properties from a nested
// object literal. Nested values keep their raw text as the example.
func extractNestedProperties(object string) map[string]BodyProperty {
	properties := make(map[string]BodyProperty)
	if !strings.HasPrefix(object, "{") || !strings.HasSuffix(object, "}") {
		return properties
	}

	inside := strings.TrimSpace(object[1 : len(object)-1])
	for _, token := range splitTopLevel(inside) {
		key, value, ok := splitKeyValue(token)
		if !ok {
			continue
		}

		propType := "string"
		switch {
		case value == "true" || value == "false":
			propType = "boolean"
		case numberRe.MatchString(value):
			propType = "number"
		case strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]"):
			propType = "array"
		case strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}"):
			propType = "object"
		case strings.HasPrefix(value, `"`) || strings.HasPrefix(value, "'"):
			value = trimQuotes(value)
		}

		properties[key] = BodyProperty{Type: propType, Example: value}
	}
	return properties
}

// splitKeyValue splits a "key: value" token, stripping quotes from the key.
func splitKeyValue(token string) (key, value string, ok bool) {
	idx := strings.Index(token, ":")
	if idx == -1 {
		return "", "", false
	}
	key = strings.TrimSpace(token[:idx])
	if isQuoted(key) {
		key = key[1 : len(key)-1]
	}
	value = strings.TrimSpace(token[idx+1:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

// splitTopLevel splits an object or array body on commas that are outside
// strings, braces, and brackets.
func splitTopLevel(s string) []string {
	var tokens []string
	var current strings.Builder
	inString := false
	var delimiter byte
	braceDepth := 0
	bracketDepth := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case (c == '"' || c == '\'') && (!inString || c == delimiter):
			if inString {
				inString = false
				delimiter = 0
			} else {
				inString = true
				delimiter = c
			}
			current.WriteByte(c)
		case c == '{':
			braceDepth++
			current.WriteByte(c)
		case c == '}':
			braceDepth--
			current.WriteByte(c)
		case c == '[':
			bracketDepth++
			current.WriteByte(c)
		case c == ']':
			bracketDepth--
			current.WriteByte(c)
		case c == ',' && !inString && braceDepth == 0 && bracketDepth == 0:
			if tok := strings.TrimSpace(current.String()); tok != "" {
				tokens = append(tokens, tok)
			}
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}

	if tok := strings.TrimSpace(current.String()); tok != "" {
		tokens = append(tokens, tok)
	}
	return tokens
}

// findVariableDefinition resolves a variable referenced as a request body to
// its object literal definition in the surrounding context. Handles direct
// declarations, reassignments, property paths, and function arguments.
func (a *Analyzer) findVariableDefinition(endpoint, varName, context string) {
	varName = strings.Trim(strings.TrimSpace(varName), "{}():")
	if varName == "" {
		return
	}

	if strings.Contains(varName, ".") {
		parts := strings.Split(varName, ".")
		baseVar, propPath := parts[0], parts[1:]

		baseRe := regexp.MustCompile(`(?:const|let|var)\s+` + regexp.QuoteMeta(baseVar) + `\s*=\s*(` + objLiteral + `)`)
		if bm := baseRe.FindStringSubmatch(context); bm != nil {
			if extracted := extractNestedProperty(bm[1], propPath); extracted != "" {
				a.extractBodyStructure(endpoint, extracted)
				return
			}
		}

		// Destructured function parameter: find an object literal being
		// passed to the function instead.
		destructureRe := regexp.MustCompile(`function\s+\w+\s*\(\s*\{.*?` + regexp.QuoteMeta(baseVar) + `.*?\}\s*\)`)
		if destructureRe.MatchString(context) {
			if cm := funcCallObjectRe.FindStringSubmatch(context); cm != nil {
				a.extractBodyStructure(endpoint, cm[1])
				return
			}
		}
	}

	declRe := regexp.MustCompile(`(?:const|let|var)\s+` + regexp.QuoteMeta(varName) + `\s*=\s*(` + objLiteral + `)`)
	if dm := declRe.FindStringSubmatch(context); dm != nil {
		a.extractBodyStructure(endpoint, dm[1])
		return
	}

	assignRe := regexp.MustCompile(regexp.QuoteMeta(varName) + `\s*=\s*(` + objLiteral + `)`)
	if am := assignRe.FindStringSubmatch(context); am != nil {
		a.extractBodyStructure(endpoint, am[1])
		return
	}

	// The variable may be a plain function argument; look for a call to
	// that function with an object literal.
	argRe := regexp.MustCompile(`function\s+\w+\s*\([^)]*` + regexp.QuoteMeta(varName) + `[^)]*\)`)
	if argRe.MatchString(context) {
		fn := funcNameRe.FindStringSubmatch(context)
		if fn == nil {
			return
		}
		callRe := regexp.MustCompile(regexp.QuoteMeta(fn[1]) + `\(\s*(` + objLiteral + `)`)
		if cm := callRe.FindStringSubmatch(context); cm != nil {
			a.extractBodyStructure(endpoint, cm[1])
		}
	}
}

// extractNestedProperty follows a property path into an object literal and
// returns the raw text of the value at the end of the path.
func extractNestedProperty(object string, propPath []string) string {
	if len(propPath) == 0 {
		return object
	}

	propRe := regexp.MustCompile(`\b` + regexp.QuoteMeta(propPath[0]) + `\s*:\s*` + nestedValueAlt)
	pm := propRe.FindStringSubmatch(object)
	if pm == nil {
		return ""
	}

	value := strings.TrimSpace(pm[1])
	if len(propPath) == 1 {
		return value
	}

	if strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}") {
		return extractNestedProperty(value, propPath[1:])
	}
	return ""
}
