// Package report renders analysis results as JSON, HTML, and an
// OpenAPI document, plus a console summary.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apiscout/apiscout/internal/analyzer"
)

// WriteJSON writes a results document to path as indented JSON. The document
// is either a bare *analyzer.Result or the scanner's full scan document.
func WriteJSON(path string, doc interface{}) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadJSON reads a previously written results file. Used by the report
// command to regenerate HTML/OpenAPI output without re-scanning.
func LoadJSON(path string) (*analyzer.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var result analyzer.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse results file %s: %w", path, err)
	}
	return &result, nil
}
