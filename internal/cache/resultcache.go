// Package cache implements the per-query, on-disk SearchResult store that
// every paginated HTML-scraping CrawlerApi consults before hitting the
// network. One query, one file; a crash-resumable alternative to re-scraping
// a whole query pool from scratch.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/corplens/sizeprobe/internal/applog"
	"github.com/corplens/sizeprobe/internal/models"
)

// sentinelName is a marker file Wipe always preserves, so the cache
// directory itself survives a full wipe (and, not incidentally, so an empty
// cache directory is still tracked by version control in a checked-out
// working tree).
const sentinelName = ".sentinel"

// ResultCache persists one models.SearchResult per query under dir. Keying
// on the raw query string is unsafe on most filesystems — queries may
// contain '/', ':', NUL, or arbitrary Unicode — so the on-disk filename is
// the hex SHA-256 digest of the query rather than the query itself. This
// resolves the cache-filename-escaping question left open by the source
// spec: digest-based naming sidesteps every character-set restriction and
// needs no escaping/unescaping logic, at the cost of filenames that are not
// human-inspectable. The original query string is never recovered from the
// filename; callers always address entries by query, never by scanning the
// directory.
type ResultCache struct {
	dir string
	mu  sync.Mutex
}

// New creates (if needed) dir and its sentinel marker, returning a
// ResultCache rooted there.
func New(dir string) (*ResultCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	c := &ResultCache{dir: dir}
	if err := c.ensureSentinel(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ResultCache) ensureSentinel() error {
	path := filepath.Join(c.dir, sentinelName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte("sizeprobe result cache\n"), 0o644)
}

func (c *ResultCache) pathFor(query string) string {
	sum := sha256.Sum256([]byte(query))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".cache")
}

// Get returns the persisted SearchResult for query, if present and
// deserialisable. A missing file or a corrupted/unreadable blob is reported
// as (zero, false) rather than an error — cache misses and cache corruption
// are both just "not present" to the caller.
func (c *ResultCache) Get(query string) (models.SearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := os.ReadFile(c.pathFor(query))
	if err != nil {
		return models.SearchResult{}, false
	}

	var result models.SearchResult
	dec := gob.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&result); err != nil {
		applog.Warnf("cache: discarding corrupt entry for query %q: %v", query, err)
		return models.SearchResult{}, false
	}
	return result, true
}

// Put persists result under query, overwriting any existing entry. Last
// write wins; Put calls for any queries are serialised by the one
// cache-wide lock.
func (c *ResultCache) Put(query string, result models.SearchResult) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(result); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return os.WriteFile(c.pathFor(query), buf.Bytes(), 0o644)
}

// Wipe deletes every cached entry except the sentinel marker. Failure to
// unlink an individual file is logged and otherwise ignored — a stuck file
// on a crash-interrupted run should not block estimator startup.
func (c *ResultCache) Wipe() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Name() == sentinelName {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			applog.Warnf("cache: failed to remove %s during wipe: %v", entry.Name(), err)
		}
	}
	return nil
}
