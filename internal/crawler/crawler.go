// Package crawler mediates every query the estimator engine issues against
// a search engine: building requests, paginating, caching, and enforcing
// the result-cap and retry contracts documented on Api.
package crawler

import (
	"context"
	"sync"

	"github.com/corplens/sizeprobe/internal/models"
)

// Api is the query interface every estimator algorithm programs against. An
// estimator never touches the network or the result cache directly; every
// document it sees arrived through one of these four methods.
type Api interface {
	// Download returns the complete retrievable set of documents matching
	// query, subject to LimitResultsPerQuery, each Data projected per
	// wantID/wantContent.
	Download(ctx context.Context, query string, wantID, wantContent bool) (models.SearchResult, error)

	// DownloadItem returns a one-element SearchResult containing the
	// document at position index in the engine's ordering for query, with
	// NumberResults set to the total match count. index >= NumberResults is
	// a fatal condition (*terminator.FatalError).
	DownloadItem(ctx context.Context, query string, index int) (models.SearchResult, error)

	// RetrieveNumberMatches is equivalent to
	// Download(query, true, false).NumberResults, potentially implemented
	// via a cheaper minimal query.
	RetrieveNumberMatches(ctx context.Context, query string) (int, error)

	// DownloadEntireDataSet returns every document the engine holds.
	// Supported only by engines whose protocol allows a wildcard query; web
	// scrapers return a *terminator.FatalError.
	DownloadEntireDataSet(ctx context.Context) (models.SearchResult, error)

	DownloadCount() int64
	LimitResultsPerQuery() int
	SetLimitResultsPerQuery(n int)
	ThreadLimit() int

	// CleanUpDataFolder is invoked once at estimator start, before the first
	// query is issued.
	CleanUpDataFolder() error
}

// downloadCounter is a Crawler-owned, lock-protected counter incremented
// exactly once per successful network round-trip. Cache hits never touch
// it.
type downloadCounter struct {
	mu sync.Mutex
	n  int64
}

func (d *downloadCounter) inc() {
	d.mu.Lock()
	d.n++
	d.mu.Unlock()
}

func (d *downloadCounter) get() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}

func (d *downloadCounter) reset() {
	d.mu.Lock()
	d.n = 0
	d.mu.Unlock()
}
