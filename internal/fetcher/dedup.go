package fetcher

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/apiscout/apiscout/internal/scope"
)

// Deduplicator tracks already-queued script URLs using a Bloom filter,
// plus content digests so the same bundle served from two URLs is only
// analyzed once. URLs are normalized before matching, so trivial
// variants (default ports, fragments, unsorted queries) dedupe too.
type Deduplicator struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	exact  map[string]struct{} // exact matching backs up Bloom false positives
	hashes map[string]string   // content sha256 -> first URL seen with it
	count  int
}

// NewDeduplicator creates a deduplicator sized for the expected number
// of script URLs.
func NewDeduplicator(estimatedItems int) *Deduplicator {
	if estimatedItems < 1000 {
		estimatedItems = 1000
	}
	return &Deduplicator{
		filter: bloom.NewWithEstimates(uint(estimatedItems), 0.001),
		exact:  make(map[string]struct{}),
		hashes: make(map[string]string),
	}
}

// canonical normalizes a URL for matching. Unparseable URLs are matched
// verbatim.
func canonical(url string) string {
	if norm, err := scope.NormalizeURL(url); err == nil {
		return norm
	}
	return url
}

// Add marks a URL as seen. Returns true if the URL was new.
func (d *Deduplicator) Add(url string) bool {
	url = canonical(url)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.exact[url]; exists {
		return false
	}
	d.filter.AddString(url)
	d.exact[url] = struct{}{}
	d.count++
	return true
}

// HasSeen checks if a URL has been seen before.
func (d *Deduplicator) HasSeen(url string) bool {
	url = canonical(url)

	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.filter.TestString(url) {
		return false
	}
	_, exists := d.exact[url]
	return exists
}

// AddContentHash records the content digest for a URL. When the same
// digest was already recorded for another URL it returns that URL and
// true; the caller can then discard the duplicate copy.
func (d *Deduplicator) AddContentHash(url, hash string) (string, bool) {
	if hash == "" {
		return "", false
	}
	url = canonical(url)

	d.mu.Lock()
	defer d.mu.Unlock()

	if origin, exists := d.hashes[hash]; exists && origin != url {
		return origin, true
	}
	if _, exists := d.hashes[hash]; !exists {
		d.hashes[hash] = url
	}
	return "", false
}

// Count returns the number of unique URLs seen.
func (d *Deduplicator) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.count
}

// Reset clears the deduplicator.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.filter.ClearAll()
	d.exact = make(map[string]struct{})
	d.hashes = make(map[string]string)
	d.count = 0
}
