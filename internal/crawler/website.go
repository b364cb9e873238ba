package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/corplens/sizeprobe/internal/applog"
	"github.com/corplens/sizeprobe/internal/cache"
	"github.com/corplens/sizeprobe/internal/models"
	"github.com/corplens/sizeprobe/internal/terminator"
)

const (
	// numberAttemptsGetExpectedAmountOfData bounds how many times a single
	// page is re-fetched when its extracted item count disagrees with the
	// page-occupancy invariant before falling back to handleInconsistentPage.
	numberAttemptsGetExpectedAmountOfData = 5

	// downloadTryNumber bounds how many times a fetch attempt (navigate +
	// wait + extract) is retried after a transport-level failure before the
	// crawler gives up and raises a fatal error.
	downloadTryNumber = 10000

	// crawlDelay is enforced before every fetch attempt against a scraped
	// site, the crawler's only politeness mechanism.
	crawlDelay = 1 * time.Second
)

// SiteConfig captures everything that differs between the two HTML-scraped
// search engines the website crawler supports: URL templating, pagination
// arithmetic, and DOM extraction rules. A concrete *WebsiteCrawler is built
// by pairing one SiteConfig with a PageFetcher and a ResultCache.
type SiteConfig struct {
	Name string

	// PageSize is both the occupancy-rule page size and the
	// "max results per page" threshold below which a query needs no
	// additional page fetches.
	PageSize int

	// BuildURL renders the page URL for query at the given engine-specific
	// offset (as returned by CalculateOffset).
	BuildURL func(query string, offset int) string

	// CalculateOffset maps "items already downloaded for this query" to the
	// engine-specific offset/page-number parameter for the next fetch.
	CalculateOffset func(alreadyDownloaded int) int

	// ExtractNumberMatches parses the claimed total match count out of a
	// rendered page. ok is false when no recognisable number-matches marker
	// (nor a no-results marker, which should map to (0, true)) is found.
	ExtractNumberMatches func(html string) (numberMatches int, ok bool)

	// ExtractItems parses the per-item containers on a rendered page into
	// Data values carrying identifier and content.
	ExtractItems func(html string) []models.Data

	// HandleInconsistentPage is invoked when a page's extracted item count
	// never matches the occupancy invariant after
	// numberAttemptsGetExpectedAmountOfData retries. It receives the last
	// extraction attempt's items and returns what should be kept — either
	// the passthrough, or an empty slice.
	HandleInconsistentPage func(lastExtracted []models.Data) []models.Data
}

// WebsiteCrawler implements Api against a single paginated HTML search
// engine, backed by a ResultCache and a PageFetcher.
type WebsiteCrawler struct {
	site    SiteConfig
	fetcher PageFetcher
	cache   *cache.ResultCache
	term    *terminator.Terminator

	limit       int
	threadLimit int
	counter     downloadCounter

	// crawlDelay overrides the package-level crawlDelay constant; tests set
	// this to 0 to avoid a real-time sleep per fetch.
	crawlDelay time.Duration
}

// NewWebsiteCrawler wires a SiteConfig to a fetcher and a cache directory.
func NewWebsiteCrawler(site SiteConfig, fetcher PageFetcher, resultCache *cache.ResultCache, limitResultsPerQuery, threadLimit int) *WebsiteCrawler {
	return &WebsiteCrawler{
		site:        site,
		fetcher:     fetcher,
		cache:       resultCache,
		term:        terminator.New(),
		limit:       limitResultsPerQuery,
		threadLimit: threadLimit,
		crawlDelay:  crawlDelay,
	}
}

func (w *WebsiteCrawler) DownloadCount() int64          { return w.counter.get() }
func (w *WebsiteCrawler) LimitResultsPerQuery() int      { return w.limit }
func (w *WebsiteCrawler) SetLimitResultsPerQuery(n int)  { w.limit = n }
func (w *WebsiteCrawler) ThreadLimit() int               { return w.threadLimit }
func (w *WebsiteCrawler) CleanUpDataFolder() error       { return w.cache.Wipe() }

// DownloadEntireDataSet is never supported by a web-scraped engine.
func (w *WebsiteCrawler) DownloadEntireDataSet(ctx context.Context) (models.SearchResult, error) {
	return models.SearchResult{}, w.term.Terminate(fmt.Sprintf("%s: download_entire_data_set is not supported by a paginated HTML engine", w.site.Name))
}

// attemptDownload fetches pageURL, enforcing the crawl delay and retrying
// transport failures up to downloadTryNumber times before raising a fatal
// error.
func (w *WebsiteCrawler) attemptDownload(ctx context.Context, pageURL string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < downloadTryNumber; attempt++ {
		if w.crawlDelay > 0 {
			select {
			case <-time.After(w.crawlDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		html, err := w.fetcher.FetchPage(ctx, pageURL)
		if err == nil {
			w.counter.inc()
			return html, nil
		}
		lastErr = err
		applog.Warnf("crawler: fetch attempt %d/%d failed for %s: %v", attempt+1, downloadTryNumber, pageURL, err)
	}
	return "", w.term.TerminateWithCause(fmt.Sprintf("%s: exhausted %d fetch attempts", w.site.Name, downloadTryNumber), lastErr)
}

// fetchPage fetches one page for query at the given already-downloaded
// offset and returns the page's items.
// When the extraction's item count disagrees with the occupancy invariant,
// it retries the whole fetch up to numberAttemptsGetExpectedAmountOfData
// times before falling back to HandleInconsistentPage.
func (w *WebsiteCrawler) fetchPage(ctx context.Context, query string, alreadyDownloaded, numberMatches int) (items []models.Data, err error) {
	offset := w.site.CalculateOffset(alreadyDownloaded)
	pageURL := w.site.BuildURL(query, offset)

	expected := expectedPageOccupancy(numberMatches, alreadyDownloaded, w.site.PageSize)

	var lastItems []models.Data
	for attempt := 0; attempt < numberAttemptsGetExpectedAmountOfData; attempt++ {
		html, err := w.attemptDownload(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		lastItems = w.site.ExtractItems(html)
		if len(lastItems) == expected {
			return lastItems, nil
		}
		applog.Warnf("crawler: %s page occupancy mismatch for query %q at offset %d: got %d items, want %d (attempt %d/%d)",
			w.site.Name, query, offset, len(lastItems), expected, attempt+1, numberAttemptsGetExpectedAmountOfData)
	}

	applog.Warnf("crawler: %s page occupancy mismatch for query %q IGNORED after %d attempts; falling back",
		w.site.Name, query, numberAttemptsGetExpectedAmountOfData)
	return w.site.HandleInconsistentPage(lastItems), nil
}

// expectedPageOccupancy is the page-occupancy invariant from the pagination
// contract: a page beyond offset `already` must contain exactly page_size
// items, unless fewer than page_size matches remain, in which case it must
// contain exactly that remainder.
func expectedPageOccupancy(numberMatches, already, pageSize int) int {
	remaining := numberMatches - already
	if remaining < 0 {
		remaining = 0
	}
	if remaining >= pageSize {
		return pageSize
	}
	return remaining
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// fetchFirstPageAndMatches determines number_matches and the first page's
// items for query. It returns numberMatches == 0, empty items, and nil
// error when the engine reports zero matches outright.
func (w *WebsiteCrawler) fetchFirstPageAndMatches(ctx context.Context, query string) (numberMatches int, items []models.Data, err error) {
	offset := w.site.CalculateOffset(0)
	pageURL := w.site.BuildURL(query, offset)

	html, err := w.attemptDownload(ctx, pageURL)
	if err != nil {
		return 0, nil, err
	}

	numberMatches, ok := w.site.ExtractNumberMatches(html)
	if !ok {
		return 0, nil, w.term.Terminate(fmt.Sprintf("%s: could not extract number_matches for query %q", w.site.Name, query))
	}
	if numberMatches == 0 {
		return 0, nil, nil
	}

	items = w.site.ExtractItems(html)
	if len(items) == expectedPageOccupancy(numberMatches, 0, w.site.PageSize) {
		return numberMatches, items, nil
	}
	items, err = w.fetchPage(ctx, query, 0, numberMatches)
	return numberMatches, items, err
}

// Download implements the paginated-scraping contract documented in the
// CrawlerApi pagination algorithm: cache check, first-page fetch,
// additional-page planning, assembly, persistence, and projection.
func (w *WebsiteCrawler) Download(ctx context.Context, query string, wantID, wantContent bool) (models.SearchResult, error) {
	if cached, ok := w.cache.Get(query); ok {
		return cached.Project(wantID, wantContent), nil
	}

	numberMatches, firstPage, err := w.fetchFirstPageAndMatches(ctx, query)
	if err != nil {
		return models.SearchResult{}, err
	}
	if numberMatches == 0 {
		empty := models.SearchResult{NumberResults: 0, Results: nil}
		if err := w.cache.Put(query, empty); err != nil {
			applog.Warnf("crawler: failed to persist empty result for query %q: %v", query, err)
		}
		return empty.Project(wantID, wantContent), nil
	}

	results := append([]models.Data(nil), firstPage...)

	additionalPages := 0
	switch {
	case numberMatches <= w.site.PageSize:
		additionalPages = 0
	case w.limit < numberMatches:
		additionalPages = ceilDiv(w.limit-len(results), w.site.PageSize)
	default:
		additionalPages = ceilDiv(numberMatches-len(results), w.site.PageSize)
	}

	for i := 0; i < additionalPages; i++ {
		page, err := w.fetchPage(ctx, query, len(results), numberMatches)
		if err != nil {
			return models.SearchResult{}, err
		}
		results = append(results, page...)
	}

	if len(results) > w.limit {
		overshoot := len(results) - w.limit
		if overshoot >= w.site.PageSize {
			applog.Warnf("crawler: %s query %q overshot limit_results_per_query by a full page (%d items); truncating", w.site.Name, query, overshoot)
		}
		results = results[:w.limit]
	}

	sr := models.SearchResult{NumberResults: numberMatches, Results: results}
	if err := w.cache.Put(query, sr); err != nil {
		applog.Warnf("crawler: failed to persist result for query %q: %v", query, err)
	}
	return sr.Project(wantID, wantContent), nil
}

// RetrieveNumberMatches is equivalent to an id-only Download, discarding the
// results list.
func (w *WebsiteCrawler) RetrieveNumberMatches(ctx context.Context, query string) (int, error) {
	sr, err := w.Download(ctx, query, true, false)
	if err != nil {
		return 0, err
	}
	return sr.NumberResults, nil
}

// DownloadItem returns the single document at position index in query's
// ordering. index >= NumberResults is fatal; an engine that refuses or
// returns an empty page at the computed offset yields an empty-results
// SearchResult carrying the same number_matches.
func (w *WebsiteCrawler) DownloadItem(ctx context.Context, query string, index int) (models.SearchResult, error) {
	if index < 0 {
		return models.SearchResult{}, w.term.Terminate(fmt.Sprintf("%s: download_item index %d is negative", w.site.Name, index))
	}

	pageSize := w.site.PageSize
	alreadyDownloaded := (index / pageSize) * pageSize

	offset := w.site.CalculateOffset(alreadyDownloaded)
	pageURL := w.site.BuildURL(query, offset)

	html, err := w.attemptDownload(ctx, pageURL)
	if err != nil {
		return models.SearchResult{}, err
	}

	numberMatches, ok := w.site.ExtractNumberMatches(html)
	if !ok {
		return models.SearchResult{}, w.term.Terminate(fmt.Sprintf("%s: could not extract number_matches for query %q", w.site.Name, query))
	}
	if index >= numberMatches {
		return models.SearchResult{}, w.term.Terminate(fmt.Sprintf("%s: download_item index %d out of range (number_matches=%d)", w.site.Name, index, numberMatches))
	}

	items := w.site.ExtractItems(html)
	within := index % pageSize
	if within >= len(items) {
		return models.SearchResult{NumberResults: numberMatches, Results: nil}, nil
	}
	return models.SearchResult{NumberResults: numberMatches, Results: []models.Data{items[within]}}, nil
}
