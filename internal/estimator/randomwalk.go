package estimator

import (
	"context"
	"math/rand"

	"github.com/corplens/sizeprobe/internal/applog"
	"github.com/corplens/sizeprobe/internal/crawler"
	"github.com/corplens/sizeprobe/internal/wordextract"
)

// maxSeedAttempts bounds how many random draws the seed step will make
// looking for a query whose number_matches clears the threshold, and
// maxBackoffAttempts bounds how many times a single walk step may retry
// after a failed download_item or an under-length document before the walk
// gives up on that step.
//
// The source this was ported from left both cases unbounded — a pool with
// no qualifying seed query, or a pathological run of empty/short documents,
// would spin forever. Both are capped: an exhausted back-off re-seeds from
// the query pool, and an exhausted seed search surfaces Undefined. This
// resolves that open question: the walk treats prolonged failure to
// find usable data as "no defined estimate" rather than a crawler fault.
const (
	maxSeedAttempts    = 200
	maxBackoffAttempts = 50
)

// RandomWalkConfig parameterises one random-walk sample.
type RandomWalkConfig struct {
	SampleSize                  int
	MinNumberMatchesForSeedQuery int
	MinNumberWords              int
}

// RandomWalk estimates corpus size by a Bar-Yossef/Gurevich-style random
// walk over the document-word bipartite graph: visit a document, jump to
// one of its words, fetch that word's matching documents, visit one of
// those, and so on, tracking how often each document recurs.
type RandomWalk struct {
	crawler crawler.Api
	pool    string
	cfg     RandomWalkConfig
	words   *wordextract.Extractor
}

// NewRandomWalk builds a RandomWalk estimator reading seed queries from
// queryPoolPath.
func NewRandomWalk(c crawler.Api, queryPoolPath string, cfg RandomWalkConfig) *RandomWalk {
	return &RandomWalk{crawler: c, pool: queryPoolPath, cfg: cfg, words: wordextract.New()}
}

func (r *RandomWalk) DownloadCount() int64 { return downloadCounterOf(r.crawler) }

func (r *RandomWalk) ExperimentDetails() map[string]any {
	return map[string]any{
		"algorithm":                        "RandomWalk",
		"random_walk_sample_size":          r.cfg.SampleSize,
		"min_number_matches_for_seed_query": r.cfg.MinNumberMatchesForSeedQuery,
		"min_number_words":                 r.cfg.MinNumberWords,
	}
}

// seed repeatedly draws a random query from the pool until one clears
// MinNumberMatchesForSeedQuery, returning that query and its number_matches.
func (r *RandomWalk) seed(ctx context.Context, pool []string) (string, int, bool) {
	for attempt := 0; attempt < maxSeedAttempts; attempt++ {
		query := pool[rand.Intn(len(pool))]
		n, err := r.crawler.RetrieveNumberMatches(ctx, query)
		if err != nil {
			continue
		}
		if n >= r.cfg.MinNumberMatchesForSeedQuery {
			return query, n, true
		}
	}
	return "", 0, false
}

// Estimate runs the walk. It is strictly sequential: each step's choice of
// document and next query depends on the previous step's result, so no
// parallelism is applicable.
func (r *RandomWalk) Estimate(ctx context.Context) (float64, error) {
	if err := r.crawler.CleanUpDataFolder(); err != nil {
		return 0, err
	}

	pool, err := ReadQueryPool(r.pool)
	if err != nil {
		return 0, err
	}

	query, numberMatches, ok := r.seed(ctx, pool)
	if !ok {
		applog.Warnf("randomwalk: no seed query cleared min_number_matches_for_seed_query=%d after %d attempts", r.cfg.MinNumberMatchesForSeedQuery, maxSeedAttempts)
		return Undefined, nil
	}

	var degrees []int
	nodeFrequency := make(map[string]int)
	currentWords := []string{}

	for len(degrees) < r.cfg.SampleSize {
		if numberMatches <= 0 {
			query, numberMatches, ok = r.backoff(ctx, pool, currentWords)
			if !ok {
				return Undefined, nil
			}
			continue
		}

		idx := rand.Intn(numberMatches)
		sr, err := r.crawler.DownloadItem(ctx, query, idx)
		if err != nil || len(sr.Results) == 0 {
			query, numberMatches, ok = r.backoff(ctx, pool, currentWords)
			if !ok {
				return Undefined, nil
			}
			continue
		}

		doc := sr.Results[0]
		words := r.words.ExtractWords(doc.ContentOrEmpty())
		if len(words) < r.cfg.MinNumberWords {
			query, numberMatches, ok = r.backoff(ctx, pool, currentWords)
			if !ok {
				return Undefined, nil
			}
			continue
		}

		id := doc.IdentifierOrEmpty()
		degrees = append(degrees, len(words))
		nodeFrequency[id]++
		currentWords = words

		nextQuery := words[rand.Intn(len(words))]
		n, err := r.crawler.RetrieveNumberMatches(ctx, nextQuery)
		if err != nil {
			n = 0
		}
		query, numberMatches = nextQuery, n
	}

	return computeWalkEstimate(degrees, nodeFrequency), nil
}

// backoff recovers from a failed download_item or an under-length document
// by drawing a new query from the just-extracted word list (if any) and
// re-seeding its number_matches; if the word list is empty or exhausted
// (e.g. the very first step failed before any words were ever extracted),
// it falls back to the ordinary pool-based seed procedure.
func (r *RandomWalk) backoff(ctx context.Context, pool []string, currentWords []string) (string, int, bool) {
	for attempt := 0; attempt < maxBackoffAttempts; attempt++ {
		var candidate string
		if len(currentWords) > 0 {
			candidate = currentWords[rand.Intn(len(currentWords))]
		} else {
			candidate = pool[rand.Intn(len(pool))]
		}
		n, err := r.crawler.RetrieveNumberMatches(ctx, candidate)
		if err != nil || n <= 0 {
			continue
		}
		return candidate, n, true
	}
	applog.Warnf("randomwalk: exhausted %d back-off attempts, re-seeding from the query pool", maxBackoffAttempts)
	return r.seed(ctx, pool)
}

func computeWalkEstimate(degrees []int, nodeFrequency map[string]int) float64 {
	n := len(degrees)
	if n == 0 {
		return Undefined
	}

	var sum float64
	var reciprocalSum float64
	for _, d := range degrees {
		sum += float64(d)
		if d > 0 {
			reciprocalSum += 1.0 / float64(d)
		}
	}
	dw := sum / float64(n)
	if reciprocalSum == 0 {
		return Undefined
	}
	dh := float64(n) / reciprocalSum

	freqOfFreq := make(map[int]int)
	for _, count := range nodeFrequency {
		freqOfFreq[count]++
	}

	combinations := func(x int) float64 {
		return float64(x*(x-1)) / 2
	}

	var c float64
	for x, count := range freqOfFreq {
		if x <= 1 {
			continue
		}
		c += combinations(x) * float64(count)
	}
	if c == 0 {
		return Undefined
	}

	return (dw / dh) * combinations(n) / c
}
