// Package scripturl extracts JavaScript bundle URLs from rendered HTML
// and from already-downloaded bundles (webpack chunk references).
package scripturl

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/apiscout/apiscout/internal/logger"
	"github.com/apiscout/apiscout/internal/scope"
)

var (
	// Webpack/SPA bundles referenced outside <script> tags, e.g. in the
	// runtime chunk manifest.
	bundleNameRe = regexp.MustCompile(`["']([^"']*?(?:chunk|bundle|main|runtime|vendor)[^"']*?\.js)["']`)

	// Dynamic imports in modern frameworks.
	dynamicImportRe = regexp.MustCompile(`(?:import|loadModule|require)\s*\(\s*['"]([^"']+\.js)['"]`)

	// Any other quoted .js reference.
	plainJSRefRe = regexp.MustCompile(`["']([^"']+\.js)["']`)

	// Lazy-loaded chunk filenames inside a downloaded bundle.
	chunkFileRe = regexp.MustCompile(`["']([^"']+?chunk[^"']+?\.js)["']`)
)

// Extractor finds script URLs in page HTML.
type Extractor struct {
	log *logger.Logger
}

// NewExtractor creates a script URL extractor.
func NewExtractor(log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Extractor{log: log.WithComponent("scripturl")}
}

// Extract returns all script URLs referenced by the HTML, resolved
// against baseURL, in discovery order without duplicates. <script src>
// tags come first, then bundle-name matches, dynamic imports, and plain
// .js references found anywhere in the markup.
func (e *Extractor) Extract(html, baseURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var urls []string
	seen := make(map[string]struct{})
	add := func(ref string) {
		if ref == "" || strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "blob:") {
			return
		}
		full, err := scope.ResolveURL(baseURL, ref)
		if err != nil {
			e.log.Debugf("skipping unresolvable script ref %q: %v", ref, err)
			return
		}
		if _, ok := seen[full]; ok {
			return
		}
		seen[full] = struct{}{}
		urls = append(urls, full)
	}

	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src)
		}
	})

	for _, m := range bundleNameRe.FindAllStringSubmatch(html, -1) {
		add(m[1])
	}
	for _, m := range dynamicImportRe.FindAllStringSubmatch(html, -1) {
		add(m[1])
	}
	for _, m := range plainJSRefRe.FindAllStringSubmatch(html, -1) {
		add(m[1])
	}

	e.log.Debugf("extracted %d script URLs from %s", len(urls), baseURL)
	return urls, nil
}

// ChunkRefs returns chunk filenames referenced by a bundle's source
// text. These are webpack lazy-loaded chunks that never appear in the
// page HTML.
func ChunkRefs(content string) []string {
	var refs []string
	seen := make(map[string]struct{})
	for _, m := range chunkFileRe.FindAllStringSubmatch(content, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		refs = append(refs, m[1])
	}
	return refs
}

// InferBaseStaticURL derives the static-asset base from a bundle URL by
// dropping the last path segment: https://x.com/static/js/main.js
// becomes https://x.com/static/js/.
func InferBaseStaticURL(scriptURL string) (string, error) {
	parsed, err := url.Parse(scriptURL)
	if err != nil {
		return "", err
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) >= 2 {
		return parsed.Scheme + "://" + parsed.Host + "/" + strings.Join(parts[:len(parts)-1], "/") + "/", nil
	}
	return parsed.Scheme + "://" + parsed.Host + "/", nil
}

// FilenameFromURL returns the final path segment of a script URL,
// suitable as a local filename. Query strings and fragments are
// ignored; an empty basename falls back to "script.js".
func FilenameFromURL(scriptURL string) string {
	parsed, err := url.Parse(scriptURL)
	if err != nil {
		return "script.js"
	}
	path := parsed.Path
	if idx := strings.LastIndex(path, "/"); idx != -1 {
		path = path[idx+1:]
	}
	if path == "" {
		return "script.js"
	}
	return path
}
