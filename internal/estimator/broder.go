package estimator

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	"github.com/corplens/sizeprobe/internal/crawler"
	"github.com/corplens/sizeprobe/internal/models"
	"github.com/corplens/sizeprobe/internal/parallel"
)

// BroderConfig parameterises one BroderEtAl run.
type BroderConfig struct {
	QueryRandomSampleSize    int
	DocumentRandomSampleSize int
}

// BroderEtAl estimates corpus size from the ratio between a query's average
// "weight" (how uniquely its results are covered by the pool) and the
// fraction of a random document sample the pool can reach at all.
type BroderEtAl struct {
	crawler crawler.Api
	pool    string
	cfg     BroderConfig
}

// NewBroderEtAl builds a BroderEtAl estimator. c must support
// DownloadEntireDataSet (a web-scraping Crawler returns a fatal error here).
func NewBroderEtAl(c crawler.Api, queryPoolPath string, cfg BroderConfig) *BroderEtAl {
	return &BroderEtAl{crawler: c, pool: queryPoolPath, cfg: cfg}
}

func (b *BroderEtAl) DownloadCount() int64 { return downloadCounterOf(b.crawler) }

func (b *BroderEtAl) ExperimentDetails() map[string]any {
	return map[string]any{
		"algorithm":                   "BroderEtAl",
		"query_random_sample_size":    b.cfg.QueryRandomSampleSize,
		"document_random_sample_size": b.cfg.DocumentRandomSampleSize,
	}
}

// matches is the local substring predicate shared by BroderEtAl and SumEst:
// query q matches document d iff q.lower() occurs within d.content.lower().
func matches(query string, d models.Data) bool {
	if !d.HasContent() {
		return false
	}
	return strings.Contains(strings.ToLower(d.ContentOrEmpty()), strings.ToLower(query))
}

func sampleWithoutReplacement[T any](items []T, n int) []T {
	if n > len(items) {
		n = len(items)
	}
	perm := rand.Perm(len(items))
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = items[perm[i]]
	}
	return out
}

func (b *BroderEtAl) Estimate(ctx context.Context) (float64, error) {
	if err := b.crawler.CleanUpDataFolder(); err != nil {
		return 0, err
	}

	entire, err := b.crawler.DownloadEntireDataSet(ctx)
	if err != nil {
		return 0, err
	}
	documents := sampleWithoutReplacement(entire.Results, b.cfg.DocumentRandomSampleSize)

	poolQueries, err := ReadQueryPool(b.pool)
	if err != nil {
		return 0, err
	}
	sampledQueries := sampleWithoutReplacement(poolQueries, b.cfg.QueryRandomSampleSize)

	threadLimit := b.crawler.ThreadLimit()
	if threadLimit < 1 {
		threadLimit = 1
	}

	var weightSum float64
	var downloadErr error
	var errMu sync.Mutex

	parallel.Fold(threadLimit, sampledQueries, func(query string) float64 {
		sr, err := b.crawler.Download(ctx, query, false, true)
		if err != nil {
			errMu.Lock()
			if downloadErr == nil {
				downloadErr = err
			}
			errMu.Unlock()
			return 0
		}

		var queryWeight float64
		for _, d := range sr.Results {
			degree := 0
			for _, q2 := range poolQueries {
				if matches(q2, d) {
					degree++
				}
			}
			if degree > 0 {
				queryWeight += 1.0 / float64(degree)
			}
		}
		return queryWeight
	}, func(partial float64) { weightSum += partial })
	if downloadErr != nil {
		return 0, downloadErr
	}

	var visible int64
	parallel.Fold(threadLimit, documents, func(d models.Data) int64 {
		for _, q := range poolQueries {
			if matches(q, d) {
				return 1
			}
		}
		return 0
	}, func(partial int64) { visible += partial })

	q := float64(len(sampledQueries))
	if q == 0 {
		return Undefined, nil
	}
	averageWeight := weightSum / q

	d := float64(len(documents))
	if d == 0 || visible == 0 {
		return Undefined, nil
	}

	return (averageWeight * float64(len(poolQueries))) / (float64(visible) / d), nil
}
