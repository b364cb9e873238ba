package estimator

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/corplens/sizeprobe/internal/crawler"
	"github.com/corplens/sizeprobe/internal/parallel"
)

// MHRConfig bounds the sample MHR (and its ExactMHR variant) accepts:
// a query is only folded into the accumulators when its claimed match count
// falls within [MinNumberMatches, MaxNumberMatches].
type MHRConfig struct {
	NumberQueries    int
	MinNumberMatches int
	MaxNumberMatches int

	// OnAccepted, if set, is called once per accepted sample (never per
	// rejected draw) — the contract's "report progress only on accepted
	// samples".
	OnAccepted func(accepted int)
}

// MHR estimates corpus size via multiple capture-recapture: repeatedly
// sampling queries, accumulating how many documents each returns versus how
// many distinct documents appear across the whole sample, and turning the
// resulting overflow/overlap rates into a size estimate.
type MHR struct {
	crawler crawler.Api
	pool    string
	cfg     MHRConfig

	mu                sync.Mutex
	queryCount        int
	totalMatches      int
	totalDocsReturned int
	documentFrequency map[string]int
}

// NewMHR builds an MHR estimator reading queries from queryPoolPath.
func NewMHR(c crawler.Api, queryPoolPath string, cfg MHRConfig) *MHR {
	return &MHR{crawler: c, pool: queryPoolPath, cfg: cfg}
}

func (m *MHR) DownloadCount() int64 { return downloadCounterOf(m.crawler) }

func (m *MHR) ExperimentDetails() map[string]any {
	return map[string]any{
		"algorithm":          "MHR",
		"number_queries":     m.cfg.NumberQueries,
		"min_number_matches": m.cfg.MinNumberMatches,
		"max_number_matches": m.cfg.MaxNumberMatches,
	}
}

func (m *MHR) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCount = 0
	m.totalMatches = 0
	m.totalDocsReturned = 0
	m.documentFrequency = make(map[string]int)
}

// accept folds one accepted sample's SearchResult into the accumulators.
// Exposed as a method (rather than inlined in Estimate) so ExactMHR, which
// embeds MHR, can reuse it verbatim.
func (m *MHR) accept(numberResults int, ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCount++
	m.totalMatches += numberResults
	m.totalDocsReturned += len(ids)
	for _, id := range ids {
		m.documentFrequency[id]++
	}
}

// Estimate runs the capture-recapture sample and computes the MHR formula.
// Two locks are in play: the accumulator lock (accept, above) and the
// draw-and-remove query pool lock, which parallel.Pool owns internally.
func (m *MHR) Estimate(ctx context.Context) (float64, error) {
	if err := m.crawler.CleanUpDataFolder(); err != nil {
		return 0, err
	}
	m.reset()

	queries, err := ReadQueryPool(m.pool)
	if err != nil {
		return 0, err
	}
	rand.Shuffle(len(queries), func(i, j int) { queries[i], queries[j] = queries[j], queries[i] })
	drawPool := parallel.NewPool(queries)

	threadLimit := m.crawler.ThreadLimit()
	if threadLimit < 1 {
		threadLimit = 1
	}

	var accepted int
	var acceptedMu sync.Mutex
	var firstErr error
	var errMu sync.Mutex

	worker := func() {
		for {
			acceptedMu.Lock()
			done := accepted >= m.cfg.NumberQueries
			acceptedMu.Unlock()
			if done {
				return
			}
			query, ok := drawPool.Draw()
			if !ok {
				return
			}

			sr, err := m.crawler.Download(ctx, query, true, false)
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				return
			}

			if sr.NumberResults < m.cfg.MinNumberMatches || sr.NumberResults > m.cfg.MaxNumberMatches {
				continue
			}

			ids := make([]string, 0, len(sr.Results))
			for _, d := range sr.Results {
				if d.HasIdentifier() {
					ids = append(ids, d.IdentifierOrEmpty())
				}
			}
			m.accept(sr.NumberResults, ids)

			acceptedMu.Lock()
			accepted++
			n := accepted
			acceptedMu.Unlock()
			if m.cfg.OnAccepted != nil {
				m.cfg.OnAccepted(n)
			}
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < threadLimit; i++ {
		wg.Add(1)
		go func() { defer wg.Done(); worker() }()
	}
	wg.Wait()

	if firstErr != nil {
		return 0, firstErr
	}

	return m.computeEstimate(), nil
}

func (m *MHR) computeEstimate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.totalDocsReturned == 0 {
		return Undefined
	}
	uniqueCount := len(m.documentFrequency)
	if uniqueCount == 0 {
		return Undefined
	}

	overflow := float64(m.totalMatches) / float64(m.totalDocsReturned)
	overlap := float64(m.totalDocsReturned) / float64(uniqueCount)
	if overlap == 1 {
		return Undefined
	}
	return overflow * float64(uniqueCount) / (1 - math.Pow(overlap, -1.1))
}

// ExactMHR is MHR with tighter acceptance bounds; it shares every other
// behaviour with MHR, so it is implemented as a thin constructor rather
// than a distinct type.
type ExactMHR struct {
	*MHR
}

// NewExactMHR builds an ExactMHR estimator. Conventionally cfg carries a
// narrower [MinNumberMatches, MaxNumberMatches] window than a plain MHR run.
func NewExactMHR(c crawler.Api, queryPoolPath string, cfg MHRConfig) *ExactMHR {
	return &ExactMHR{MHR: NewMHR(c, queryPoolPath, cfg)}
}

func (e *ExactMHR) ExperimentDetails() map[string]any {
	details := e.MHR.ExperimentDetails()
	details["algorithm"] = "ExactMHR"
	return details
}

// TeacherMHR redefines what counts as a "new" document: rather than a
// global unique-id set across the whole sample, it only tracks documents
// absent from the immediately preceding iteration's result list. Its
// overlap rate is computed from that running count instead of the
// distinct-ids-ever-seen count MHR uses.
type TeacherMHR struct {
	crawler crawler.Api
	pool    string
	cfg     MHRConfig

	mu                 sync.Mutex
	queryCount         int
	totalMatches       int
	totalDocsReturned  int
	runningUniqueCount int
	previousIDs        map[string]bool
}

// NewTeacherMHR builds a TeacherMHR estimator.
func NewTeacherMHR(c crawler.Api, queryPoolPath string, cfg MHRConfig) *TeacherMHR {
	return &TeacherMHR{crawler: c, pool: queryPoolPath, cfg: cfg}
}

func (t *TeacherMHR) DownloadCount() int64 { return downloadCounterOf(t.crawler) }

func (t *TeacherMHR) ExperimentDetails() map[string]any {
	return map[string]any{
		"algorithm":          "TeacherMHR",
		"number_queries":     t.cfg.NumberQueries,
		"min_number_matches": t.cfg.MinNumberMatches,
		"max_number_matches": t.cfg.MaxNumberMatches,
	}
}

func (t *TeacherMHR) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queryCount = 0
	t.totalMatches = 0
	t.totalDocsReturned = 0
	t.runningUniqueCount = 0
	t.previousIDs = nil
}

// Estimate is sequential by necessity: each sample's "new document" count
// depends on the immediately preceding sample's result set, so draws cannot
// be parallelised the way plain MHR's can without losing that ordering.
func (t *TeacherMHR) Estimate(ctx context.Context) (float64, error) {
	if err := t.crawler.CleanUpDataFolder(); err != nil {
		return 0, err
	}
	t.reset()

	queries, err := ReadQueryPool(t.pool)
	if err != nil {
		return 0, err
	}
	rand.Shuffle(len(queries), func(i, j int) { queries[i], queries[j] = queries[j], queries[i] })
	drawPool := parallel.NewPool(queries)

	for t.queryCount < t.cfg.NumberQueries {
		query, ok := drawPool.Draw()
		if !ok {
			break
		}

		sr, err := t.crawler.Download(ctx, query, true, false)
		if err != nil {
			return 0, err
		}
		if sr.NumberResults < t.cfg.MinNumberMatches || sr.NumberResults > t.cfg.MaxNumberMatches {
			continue
		}

		currentIDs := make(map[string]bool, len(sr.Results))
		for _, d := range sr.Results {
			if d.HasIdentifier() {
				currentIDs[d.IdentifierOrEmpty()] = true
			}
		}

		newCount := 0
		for id := range currentIDs {
			if !t.previousIDs[id] {
				newCount++
			}
		}

		t.mu.Lock()
		t.queryCount++
		t.totalMatches += sr.NumberResults
		t.totalDocsReturned += len(sr.Results)
		t.runningUniqueCount += newCount
		t.mu.Unlock()

		t.previousIDs = currentIDs
		if t.cfg.OnAccepted != nil {
			t.cfg.OnAccepted(t.queryCount)
		}
	}

	return t.computeEstimate(), nil
}

func (t *TeacherMHR) computeEstimate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.totalDocsReturned == 0 || t.runningUniqueCount == 0 {
		return Undefined
	}
	overflow := float64(t.totalMatches) / float64(t.totalDocsReturned)
	overlap := float64(t.totalDocsReturned) / float64(t.runningUniqueCount)
	if overlap == 1 {
		return Undefined
	}
	return overflow * float64(t.runningUniqueCount) / (1 - math.Pow(overlap, -1.1))
}
