package estimator

import (
	"context"
	"math"
	"sync"

	"github.com/corplens/sizeprobe/internal/crawler"
	"github.com/corplens/sizeprobe/internal/parallel"
)

// ShokouhiConfig parameterises the shared preamble of the Shokouhi family
// (MCR, CH, and their log-regressed variants): how many results the engine
// is capped to per query (K), the minimum claimed number_results a sampled
// query must clear to be retained, and how many queries to draw from the
// pool before that filter is applied.
type ShokouhiConfig struct {
	FactorK          int
	MinNumberMatches int
	QuerySampleSize  int
}

// shokouhiBase runs the shared preamble: cap the crawler's
// limit_results_per_query at FactorK, draw QuerySampleSize queries from the
// pool, and retain each query's returned identifier list when the query's
// claimed number_results (not the capped row count) clears MinNumberMatches.
// MCR and CH differ only in what they compute from the retained list S.
type shokouhiBase struct {
	crawler crawler.Api
	pool    string
	cfg     ShokouhiConfig
}

func (b *shokouhiBase) sample(ctx context.Context) ([][]string, error) {
	if err := b.crawler.CleanUpDataFolder(); err != nil {
		return nil, err
	}
	b.crawler.SetLimitResultsPerQuery(b.cfg.FactorK)

	pool, err := ReadQueryPool(b.pool)
	if err != nil {
		return nil, err
	}
	sampled := sampleWithoutReplacement(pool, b.cfg.QuerySampleSize)

	threadLimit := b.crawler.ThreadLimit()
	if threadLimit < 1 {
		threadLimit = 1
	}

	var mu sync.Mutex
	var retained [][]string
	var firstErr error
	var errMu sync.Mutex

	parallel.Execute(threadLimit, sampled, func(query string) {
		sr, err := b.crawler.Download(ctx, query, true, false)
		if err != nil {
			errMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			errMu.Unlock()
			return
		}
		if sr.NumberResults <= b.cfg.MinNumberMatches {
			return
		}
		ids := make([]string, 0, len(sr.Results))
		for _, d := range sr.Results {
			if d.HasIdentifier() {
				ids = append(ids, d.IdentifierOrEmpty())
			}
		}
		mu.Lock()
		retained = append(retained, ids)
		mu.Unlock()
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return retained, nil
}

func (b *shokouhiBase) downloadCount() int64 { return downloadCounterOf(b.crawler) }

func (b *shokouhiBase) experimentDetails(algorithm string) map[string]any {
	return map[string]any{
		"algorithm":          algorithm,
		"factor_k":           b.cfg.FactorK,
		"min_number_matches": b.cfg.MinNumberMatches,
		"query_sample_size":  b.cfg.QuerySampleSize,
	}
}

// intersectCount counts how many ids in b also appear in a.
func intersectCount(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	n := 0
	for _, id := range b {
		if _, ok := set[id]; ok {
			n++
		}
	}
	return n
}

// MCR estimates corpus size from the duplicate-identifier rate across every
// unordered pair of retained result lists: more overlap between pairs
// implies a smaller corpus relative to the result cap K.
type MCR struct{ shokouhiBase }

// NewMCR builds an MCR estimator.
func NewMCR(c crawler.Api, queryPoolPath string, cfg ShokouhiConfig) *MCR {
	return &MCR{shokouhiBase{crawler: c, pool: queryPoolPath, cfg: cfg}}
}

func (m *MCR) DownloadCount() int64              { return m.downloadCount() }
func (m *MCR) ExperimentDetails() map[string]any { return m.experimentDetails("MCR") }

// Estimate computes T(T-1)K^2 / (2D) where D sums pairwise identifier
// overlaps across the T retained result lists.
func (m *MCR) Estimate(ctx context.Context) (float64, error) {
	s, err := m.sample(ctx)
	if err != nil {
		return 0, err
	}
	t := len(s)
	if t < 2 {
		return Undefined, nil
	}

	var d int
	for i := 0; i < t; i++ {
		for j := i + 1; j < t; j++ {
			d += intersectCount(s[i], s[j])
		}
	}
	if d == 0 {
		return Undefined, nil
	}

	k := float64(m.cfg.FactorK)
	return float64(t) * float64(t-1) * k * k / (2 * float64(d)), nil
}

// CH estimates corpus size a la Chao's capture-recapture estimator,
// maintaining a running "marked" identifier set across the retained result
// lists in encounter order rather than summing every pairwise overlap.
type CH struct{ shokouhiBase }

// NewCH builds a CH estimator.
func NewCH(c crawler.Api, queryPoolPath string, cfg ShokouhiConfig) *CH {
	return &CH{shokouhiBase{crawler: c, pool: queryPoolPath, cfg: cfg}}
}

func (c *CH) DownloadCount() int64              { return c.downloadCount() }
func (c *CH) ExperimentDetails() map[string]any { return c.experimentDetails("CH") }

// Estimate walks the retained result lists in order, accumulating
// K*|marked|^2 into the numerator and |S_i ∩ marked|*|marked| into the
// denominator before extending marked by S_i's identifiers.
func (c *CH) Estimate(ctx context.Context) (float64, error) {
	s, err := c.sample(ctx)
	if err != nil {
		return 0, err
	}

	k := float64(c.cfg.FactorK)
	marked := make(map[string]struct{})
	var numerator, denominator float64

	for _, ids := range s {
		m := float64(len(marked))
		numerator += k * m * m

		overlap := 0
		for _, id := range ids {
			if _, ok := marked[id]; ok {
				overlap++
			}
		}
		denominator += float64(overlap) * m

		for _, id := range ids {
			marked[id] = struct{}{}
		}
	}

	if denominator == 0 {
		return Undefined, nil
	}
	return numerator / denominator, nil
}

// Fixed log-linear regression constants published alongside MCR and CH to
// correct their systematic bias; see MCRReg/CHReg.
const (
	mcrRegA = 1.5767
	mcrRegB = 0.5911
	chRegA  = 1.4208
	chRegB  = 0.6429
)

// regress applies the 10^((log10(raw) - a) / b) correction. raw must be
// strictly positive for the correction to be defined.
func regress(raw, a, b float64) float64 {
	if raw <= 0 {
		return Undefined
	}
	return math.Pow(10, (math.Log10(raw)-a)/b)
}

// MCRReg is MCR with the published log-linear bias correction applied to
// its raw estimate.
type MCRReg struct{ *MCR }

// NewMCRReg builds an MCRReg estimator.
func NewMCRReg(c crawler.Api, queryPoolPath string, cfg ShokouhiConfig) *MCRReg {
	return &MCRReg{NewMCR(c, queryPoolPath, cfg)}
}

func (r *MCRReg) ExperimentDetails() map[string]any {
	details := r.MCR.ExperimentDetails()
	details["algorithm"] = "MCRReg"
	return details
}

func (r *MCRReg) Estimate(ctx context.Context) (float64, error) {
	raw, err := r.MCR.Estimate(ctx)
	if err != nil {
		return 0, err
	}
	if raw == Undefined {
		return Undefined, nil
	}
	return regress(raw, mcrRegA, mcrRegB), nil
}

// CHReg is CH with the published log-linear bias correction applied to its
// raw estimate.
type CHReg struct{ *CH }

// NewCHReg builds a CHReg estimator.
func NewCHReg(c crawler.Api, queryPoolPath string, cfg ShokouhiConfig) *CHReg {
	return &CHReg{NewCH(c, queryPoolPath, cfg)}
}

func (r *CHReg) ExperimentDetails() map[string]any {
	details := r.CH.ExperimentDetails()
	details["algorithm"] = "CHReg"
	return details
}

func (r *CHReg) Estimate(ctx context.Context) (float64, error) {
	raw, err := r.CH.Estimate(ctx)
	if err != nil {
		return 0, err
	}
	if raw == Undefined {
		return Undefined, nil
	}
	return regress(raw, chRegA, chRegB), nil
}
