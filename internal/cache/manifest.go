// Package cache persists a manifest of downloaded bundles so repeated
// scans of the same target can skip URLs that were already fetched.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketDownloads = []byte("downloads")

// Entry records one downloaded bundle.
type Entry struct {
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	SHA256    string    `json:"sha256"`
	Size      int64     `json:"size"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Manifest is a BoltDB-backed download manifest.
type Manifest struct {
	db   *bolt.DB
	path string
}

// Open opens (or creates) a manifest database at path.
func Open(path string) (*Manifest, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDownloads)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Manifest{db: db, path: path}, nil
}

// Put records a downloaded bundle.
func (m *Manifest) Put(entry Entry) error {
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	return m.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDownloads)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(entry.URL), data)
	})
}

// Get returns the entry for a URL, or found=false.
func (m *Manifest) Get(url string) (Entry, bool, error) {
	var entry Entry
	var found bool

	err := m.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDownloads)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		data := b.Get([]byte(url))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return Entry{}, false, err
	}
	return entry, found, nil
}

// Has reports whether a URL has already been downloaded.
func (m *Manifest) Has(url string) bool {
	_, found, err := m.Get(url)
	return err == nil && found
}

// All returns every recorded entry.
func (m *Manifest) All() ([]Entry, error) {
	var entries []Entry
	err := m.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDownloads)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.ForEach(func(_, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Clear removes all entries.
func (m *Manifest) Clear() error {
	return m.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketDownloads); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketDownloads)
		return err
	})
}

// Close closes the database.
func (m *Manifest) Close() error {
	return m.db.Close()
}
