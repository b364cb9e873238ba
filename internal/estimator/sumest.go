package estimator

import (
	"context"
	"math/rand"
	"sync"

	"github.com/corplens/sizeprobe/internal/applog"
	"github.com/corplens/sizeprobe/internal/crawler"
	"github.com/corplens/sizeprobe/internal/models"
	"github.com/corplens/sizeprobe/internal/parallel"
)

// maxRejectionSamplingAttempts bounds SumEst's rejection-sampling draw for
// a (query, document) pair, and maxInverseDegreeDraws bounds the
// with-replacement sampling used to estimate a document's inverse degree.
// The source this was ported from left both unbounded; a query pool with
// no query/document pair satisfying the substring predicate would spin
// forever. A bounded attempt count turns that into a skipped iteration
// (logged) instead of a hang — see the SumEst open question on quadratic
// matching-query scans for the related tradeoff.
const (
	maxRejectionSamplingAttempts = 200
	maxInverseDegreeDraws        = 10000
)

// SumEstConfig parameterises one SumEst run.
type SumEstConfig struct {
	IterationNumber int
	PoolSampleSize  int
}

// SumEst estimates corpus size via a Horvitz-Thompson-style sum over
// randomly sampled query-document pairs: pool coverage gives a rough query
// count, and each sampled pair's inverse-degree weight (estimated by
// sampling with replacement from its matching queries) turns that into a
// document-count estimate.
type SumEst struct {
	crawler crawler.Api
	pool    string
	cfg     SumEstConfig
}

// NewSumEst builds a SumEst estimator reading queries from queryPoolPath.
func NewSumEst(c crawler.Api, queryPoolPath string, cfg SumEstConfig) *SumEst {
	return &SumEst{crawler: c, pool: queryPoolPath, cfg: cfg}
}

func (s *SumEst) DownloadCount() int64 { return downloadCounterOf(s.crawler) }

func (s *SumEst) ExperimentDetails() map[string]any {
	return map[string]any{
		"algorithm":        "SumEst",
		"iteration_number": s.cfg.IterationNumber,
		"pool_sample_size": s.cfg.PoolSampleSize,
	}
}

type sumEstIteration struct {
	value float64
	ok    bool
}

// Estimate runs the pool-coverage pass followed by ITERATION_NUMBER
// query-document sampling rounds, each contributing
// pool_size * degree(q) * inverse_degree(d) to the running total.
func (s *SumEst) Estimate(ctx context.Context) (float64, error) {
	if err := s.crawler.CleanUpDataFolder(); err != nil {
		return 0, err
	}

	pool, err := ReadQueryPool(s.pool)
	if err != nil {
		return 0, err
	}

	threadLimit := s.crawler.ThreadLimit()
	if threadLimit < 1 {
		threadLimit = 1
	}

	poolSize, err := s.estimatePoolSize(ctx, pool, threadLimit)
	if err != nil {
		return 0, err
	}
	// A zero pool-size estimate means no sampled query ever matched a
	// returned document under the substring predicate; the main sampling
	// loop below could never find a usable (query, document) pair either,
	// so treat this the same as the other "insufficient data" conditions.
	if poolSize <= 0 {
		return Undefined, nil
	}

	if s.cfg.IterationNumber <= 0 {
		return Undefined, nil
	}

	iterations := make([]int, s.cfg.IterationNumber)
	for i := range iterations {
		iterations[i] = i
	}

	var total float64
	var firstErr error
	var errMu sync.Mutex

	parallel.Fold(threadLimit, iterations, func(_ int) sumEstIteration {
		value, ok, err := s.runIteration(ctx, pool, poolSize, threadLimit)
		if err != nil {
			errMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			errMu.Unlock()
			return sumEstIteration{}
		}
		return sumEstIteration{value: value, ok: ok}
	}, func(partial sumEstIteration) {
		if partial.ok {
			total += partial.value
		}
	})
	if firstErr != nil {
		return 0, firstErr
	}

	return total / float64(s.cfg.IterationNumber), nil
}

// estimatePoolSize runs POOL_SAMPLE_SIZE independent trials, each scoring 1
// if a randomly drawn query's results contain any document matching the
// substring predicate, and scales the hit rate by the pool size.
func (s *SumEst) estimatePoolSize(ctx context.Context, pool []string, threadLimit int) (float64, error) {
	if s.cfg.PoolSampleSize <= 0 {
		return Undefined, nil
	}

	trials := make([]int, s.cfg.PoolSampleSize)
	var hits int64
	var firstErr error
	var errMu sync.Mutex

	parallel.Fold(threadLimit, trials, func(_ int) int64 {
		query := pool[rand.Intn(len(pool))]
		sr, err := s.crawler.Download(ctx, query, true, true)
		if err != nil {
			errMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			errMu.Unlock()
			return 0
		}
		for _, d := range sr.Results {
			if matches(query, d) {
				return 1
			}
		}
		return 0
	}, func(partial int64) { hits += partial })
	if firstErr != nil {
		return 0, firstErr
	}

	return float64(len(pool)) * float64(hits) / float64(s.cfg.PoolSampleSize), nil
}

// runIteration performs one sampling round: pick a (query, document) pair
// by rejection sampling, build the document's matching-query list, estimate
// its inverse degree, and combine with the query's degree and the pool-size
// estimate. ok is false when the round could not find usable data within
// its attempt budget — the caller skips it rather than polluting the total.
func (s *SumEst) runIteration(ctx context.Context, pool []string, poolSize float64, threadLimit int) (float64, bool, error) {
	query, candidates, found, err := s.pickQueryDocumentPair(ctx, pool)
	if err != nil {
		return 0, false, err
	}
	if !found {
		applog.Warnf("sumest: rejection sampling found no matching query/document pair after %d attempts", maxRejectionSamplingAttempts)
		return 0, false, nil
	}

	doc := candidates[rand.Intn(len(candidates))]
	degree := len(candidates)

	matchingQueries := s.matchingQueryList(pool, doc, threadLimit)
	if len(matchingQueries) == 0 {
		return 0, false, nil
	}

	inverseDegree, ok, err := s.estimateInverseDegree(ctx, matchingQueries, doc)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}

	_ = query // query's identity only mattered for producing `candidates`/`degree`
	return poolSize * float64(degree) * inverseDegree, true, nil
}

// pickQueryDocumentPair draws random queries until one yields at least one
// document actually matching it (the substring predicate over Download's
// claimed results may include documents the engine considers a match but
// the local predicate does not).
func (s *SumEst) pickQueryDocumentPair(ctx context.Context, pool []string) (string, []models.Data, bool, error) {
	for attempt := 0; attempt < maxRejectionSamplingAttempts; attempt++ {
		query := pool[rand.Intn(len(pool))]
		sr, err := s.crawler.Download(ctx, query, true, true)
		if err != nil {
			return "", nil, false, err
		}
		var matched []models.Data
		for _, d := range sr.Results {
			if matches(query, d) {
				matched = append(matched, d)
			}
		}
		if len(matched) > 0 {
			return query, matched, true, nil
		}
	}
	return "", nil, false, nil
}

// matchingQueryList filters pool down to the queries whose substring
// predicate matches doc's content, in parallel across threadLimit workers.
func (s *SumEst) matchingQueryList(pool []string, doc models.Data, threadLimit int) []string {
	var mu sync.Mutex
	var out []string
	parallel.Execute(threadLimit, pool, func(q string) {
		if matches(q, doc) {
			mu.Lock()
			out = append(out, q)
			mu.Unlock()
		}
	})
	return out
}

// estimateInverseDegree samples with replacement from matchingQueries,
// downloading each draw and checking whether doc's identifier appears in
// the result set; the draw count at first success, divided by the
// candidate list size, estimates 1/degree(doc).
func (s *SumEst) estimateInverseDegree(ctx context.Context, matchingQueries []string, doc models.Data) (float64, bool, error) {
	targetID := doc.IdentifierOrEmpty()
	for k := 1; k <= maxInverseDegreeDraws; k++ {
		q := matchingQueries[rand.Intn(len(matchingQueries))]
		sr, err := s.crawler.Download(ctx, q, true, false)
		if err != nil {
			return 0, false, err
		}
		for _, d := range sr.Results {
			if d.IdentifierOrEmpty() == targetID {
				return float64(k) / float64(len(matchingQueries)), true, nil
			}
		}
	}
	applog.Warnf("sumest: inverse-degree sampling did not recover the target document after %d draws", maxInverseDegreeDraws)
	return 0, false, nil
}
