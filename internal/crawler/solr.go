package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/rehttp"

	"github.com/corplens/sizeprobe/internal/models"
	"github.com/corplens/sizeprobe/internal/terminator"
)

// solrRetryAttempts is the transient-network retry budget for the
// direct-JSON transport — much tighter than the scraping crawler's, since a
// plain HTTP GET against a JSON API has far fewer transient failure modes
// than driving a browser.
const solrRetryAttempts = 5

// SolrConfig configures a SolrCrawler against one Solr-like search handler.
type SolrConfig struct {
	// BaseURL is the select handler endpoint, e.g. "https://example.org/solr/select".
	BaseURL string
	// SearchField is substituted for {field} in the q parameter (field:query).
	SearchField string
	// IdentifierField and ContentField name the document fields mapped into
	// Data.Identifier / Data.Content.
	IdentifierField string
	ContentField    string
	ThreadLimit     int
}

// SolrCrawler implements Api against a direct-JSON, Solr-like search
// handler: one HTTP GET per call, no cache, no pagination — the engine
// returns everything in a single round trip.
type SolrCrawler struct {
	cfg     SolrConfig
	client  *http.Client
	limit   int
	term    *terminator.Terminator
	counter downloadCounter
}

// NewSolrCrawler builds a SolrCrawler with the given default result limit.
// Network errors the transport reports as temporary are retried
// transport-side (at most twice) with exponential-jitter backoff before they
// ever reach the application-level retry loop in get; non-200 responses,
// 5xx included, are retried only by that loop. This is the same
// division of labour the reference pack's HTTP fetchers use between a
// retrying transport and their own higher-level error handling.
func NewSolrCrawler(cfg SolrConfig, defaultLimit int) *SolrCrawler {
	transport := rehttp.NewTransport(
		http.DefaultTransport,
		rehttp.RetryAll(
			rehttp.RetryMaxRetries(2),
			rehttp.RetryTemporaryErr(),
		),
		rehttp.ExpJitterDelay(200*time.Millisecond, 2*time.Second),
	)
	return &SolrCrawler{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second, Transport: transport},
		limit:  defaultLimit,
		term:   terminator.New(),
	}
}

func (s *SolrCrawler) DownloadCount() int64         { return s.counter.get() }
func (s *SolrCrawler) LimitResultsPerQuery() int    { return s.limit }
func (s *SolrCrawler) SetLimitResultsPerQuery(n int) { s.limit = n }
func (s *SolrCrawler) ThreadLimit() int             { return s.cfg.ThreadLimit }

// CleanUpDataFolder is a no-op: the direct-JSON transport keeps no on-disk
// cache to clean up.
func (s *SolrCrawler) CleanUpDataFolder() error { return nil }

type solrResponse struct {
	Response struct {
		NumFound int                          `json:"numFound"`
		Docs     []map[string]json.RawMessage `json:"docs"`
	} `json:"response"`
}

func fieldString(doc map[string]json.RawMessage, field string) (string, bool) {
	raw, ok := doc[field]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var multi []string
	if err := json.Unmarshal(raw, &multi); err == nil && len(multi) > 0 {
		return strings.Join(multi, " "), true
	}
	return string(raw), true
}

func (s *SolrCrawler) buildURL(query string, offset, limit int, wantID, wantContent bool) string {
	var fields []string
	if wantID {
		fields = append(fields, s.cfg.IdentifierField)
	}
	if wantContent {
		fields = append(fields, s.cfg.ContentField)
	}

	v := url.Values{}
	v.Set("q", fmt.Sprintf("%s:%s", s.cfg.SearchField, query))
	v.Set("start", strconv.Itoa(offset))
	v.Set("rows", strconv.Itoa(limit))
	if len(fields) > 0 {
		v.Set("fl", strings.Join(fields, ","))
	}
	v.Set("wt", "json")
	return s.cfg.BaseURL + "?" + v.Encode()
}

func (s *SolrCrawler) get(ctx context.Context, requestURL string) (*solrResponse, error) {
	var lastErr error
	for attempt := 0; attempt < solrRetryAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("solr: unexpected status %d", resp.StatusCode)
			continue
		}

		var parsed solrResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			lastErr = err
			continue
		}
		s.counter.inc()
		return &parsed, nil
	}
	return nil, s.term.TerminateWithCause(fmt.Sprintf("solr: exhausted %d GET attempts against %s", solrRetryAttempts, requestURL), lastErr)
}

func (s *SolrCrawler) toSearchResult(resp *solrResponse, wantID, wantContent bool) models.SearchResult {
	results := make([]models.Data, 0, len(resp.Response.Docs))
	for _, doc := range resp.Response.Docs {
		var idPtr, contentPtr *string
		if wantID {
			if v, ok := fieldString(doc, s.cfg.IdentifierField); ok {
				idPtr = &v
			}
		}
		if wantContent {
			if v, ok := fieldString(doc, s.cfg.ContentField); ok {
				contentPtr = &v
			}
		}
		results = append(results, models.NewData(idPtr, contentPtr))
	}
	return models.SearchResult{NumberResults: resp.Response.NumFound, Results: results}
}

// Download issues a single GET for query at offset 0, rows=limit, with
// fields chosen by wantID/wantContent.
func (s *SolrCrawler) Download(ctx context.Context, query string, wantID, wantContent bool) (models.SearchResult, error) {
	resp, err := s.get(ctx, s.buildURL(query, 0, s.limit, wantID, wantContent))
	if err != nil {
		return models.SearchResult{}, err
	}
	return s.toSearchResult(resp, wantID, wantContent), nil
}

// RetrieveNumberMatches issues an id-only, zero-rows-equivalent query and
// returns numFound.
func (s *SolrCrawler) RetrieveNumberMatches(ctx context.Context, query string) (int, error) {
	resp, err := s.get(ctx, s.buildURL(query, 0, 0, true, false))
	if err != nil {
		return 0, err
	}
	return resp.Response.NumFound, nil
}

// DownloadItem fetches a single row at the given offset.
func (s *SolrCrawler) DownloadItem(ctx context.Context, query string, index int) (models.SearchResult, error) {
	if index < 0 {
		return models.SearchResult{}, s.term.Terminate(fmt.Sprintf("solr: download_item index %d is negative", index))
	}
	resp, err := s.get(ctx, s.buildURL(query, index, 1, true, true))
	if err != nil {
		return models.SearchResult{}, err
	}
	if index >= resp.Response.NumFound {
		return models.SearchResult{}, s.term.Terminate(fmt.Sprintf("solr: download_item index %d out of range (numFound=%d)", index, resp.Response.NumFound))
	}
	return s.toSearchResult(resp, true, true), nil
}

// DownloadEntireDataSet issues a wildcard "*:*" query, relying on the
// caller to have set LimitResultsPerQuery high enough to cover the corpus.
func (s *SolrCrawler) DownloadEntireDataSet(ctx context.Context) (models.SearchResult, error) {
	v := url.Values{}
	v.Set("q", "*:*")
	v.Set("start", "0")
	v.Set("rows", strconv.Itoa(s.limit))
	v.Set("fl", strings.Join([]string{s.cfg.IdentifierField, s.cfg.ContentField}, ","))
	v.Set("wt", "json")

	resp, err := s.get(ctx, s.cfg.BaseURL+"?"+v.Encode())
	if err != nil {
		return models.SearchResult{}, err
	}
	return s.toSearchResult(resp, true, true), nil
}
