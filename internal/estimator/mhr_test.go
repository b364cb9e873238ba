package estimator

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/corplens/sizeprobe/internal/models"
)

// fakeCrawler is a fixed-response Api double keyed by query string, letting
// estimator tests exercise the sampling algorithms without a real crawler.
type fakeCrawler struct {
	byQuery     map[string]models.SearchResult
	limit       int
	threads     int
	downloads   int64
	entireSet   models.SearchResult
	entireSetOK bool
}

func (f *fakeCrawler) Download(ctx context.Context, query string, wantID, wantContent bool) (models.SearchResult, error) {
	f.downloads++
	sr, ok := f.byQuery[query]
	if !ok {
		return models.Empty(), nil
	}
	return sr.Project(wantID, wantContent), nil
}

func (f *fakeCrawler) DownloadItem(ctx context.Context, query string, index int) (models.SearchResult, error) {
	sr := f.byQuery[query]
	if index < 0 || index >= len(sr.Results) {
		return models.SearchResult{}, nil
	}
	return models.SearchResult{NumberResults: sr.NumberResults, Results: []models.Data{sr.Results[index]}}, nil
}

func (f *fakeCrawler) RetrieveNumberMatches(ctx context.Context, query string) (int, error) {
	return f.byQuery[query].NumberResults, nil
}

func (f *fakeCrawler) DownloadEntireDataSet(ctx context.Context) (models.SearchResult, error) {
	return f.entireSet, nil
}

func (f *fakeCrawler) DownloadCount() int64          { return f.downloads }
func (f *fakeCrawler) LimitResultsPerQuery() int     { return f.limit }
func (f *fakeCrawler) SetLimitResultsPerQuery(n int) { f.limit = n }
func (f *fakeCrawler) ThreadLimit() int              { return f.threads }
func (f *fakeCrawler) CleanUpDataFolder() error      { return nil }

func strp(s string) *string { return &s }

func writePool(t *testing.T, queries ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.txt")
	content := ""
	for _, q := range queries {
		content += q + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing pool: %v", err)
	}
	return path
}

// TestMHR_FourDocumentSyntheticEngine is the spec's worked scenario 1:
// three queries each returning two overlapping ids, yielding
// overflow=1, overlap=1.5, estimate ≈ 10.1.
func TestMHR_FourDocumentSyntheticEngine(t *testing.T) {
	c := &fakeCrawler{
		threads: 2,
		byQuery: map[string]models.SearchResult{
			"a": {NumberResults: 2, Results: []models.Data{models.NewData(strp("1"), nil), models.NewData(strp("2"), nil)}},
			"b": {NumberResults: 2, Results: []models.Data{models.NewData(strp("2"), nil), models.NewData(strp("3"), nil)}},
			"c": {NumberResults: 2, Results: []models.Data{models.NewData(strp("3"), nil), models.NewData(strp("4"), nil)}},
		},
	}
	pool := writePool(t, "a", "b", "c")

	m := NewMHR(c, pool, MHRConfig{NumberQueries: 3, MinNumberMatches: 1, MaxNumberMatches: 10})
	got, err := m.Estimate(context.Background())
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}

	// Closed form: overflow=1, overlap=1.5, unique=4 — computed directly
	// rather than hard-coded, since the formula's output is sensitive to
	// floating-point rounding in math.Pow.
	want := 1.0 * 4 / (1 - math.Pow(1.5, -1.1))
	if math.Abs(got-want)/want > 0.01 {
		t.Errorf("estimate = %v, want within 1%% of %v", got, want)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.totalDocsReturned != 6 {
		t.Errorf("totalDocsReturned = %d, want 6", m.totalDocsReturned)
	}
	var sumFreq int
	for _, n := range m.documentFrequency {
		sumFreq += n
	}
	if sumFreq != m.totalDocsReturned {
		t.Errorf("sum(document_frequency) = %d, want totalDocsReturned = %d", sumFreq, m.totalDocsReturned)
	}
}

// TestMHR_Undefined is the spec's worked scenario 2: a single-query pool
// whose one sample drives overlap to exactly 1, which is undefined.
func TestMHR_Undefined(t *testing.T) {
	c := &fakeCrawler{
		threads: 1,
		byQuery: map[string]models.SearchResult{
			"a": {NumberResults: 1, Results: []models.Data{models.NewData(strp("1"), nil)}},
		},
	}
	pool := writePool(t, "a")

	m := NewMHR(c, pool, MHRConfig{NumberQueries: 1, MinNumberMatches: 1, MaxNumberMatches: 10})
	got, err := m.Estimate(context.Background())
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if got != Undefined {
		t.Errorf("estimate = %v, want Undefined (-1)", got)
	}
}

func TestMHR_RejectsOutOfBoundsMatches(t *testing.T) {
	c := &fakeCrawler{
		threads: 1,
		byQuery: map[string]models.SearchResult{
			"a": {NumberResults: 100, Results: []models.Data{models.NewData(strp("1"), nil)}},
			"b": {NumberResults: 2, Results: []models.Data{models.NewData(strp("2"), nil), models.NewData(strp("3"), nil)}},
		},
	}
	pool := writePool(t, "a", "b")

	var accepted []int
	// NumberQueries is set above what the pool can actually satisfy (only
	// "b" qualifies) so both queries are drawn regardless of draw order,
	// and the loop only stops once the two-item pool is exhausted.
	m := NewMHR(c, pool, MHRConfig{
		NumberQueries: 2, MinNumberMatches: 1, MaxNumberMatches: 10,
		OnAccepted: func(n int) { accepted = append(accepted, n) },
	})
	_, err := m.Estimate(context.Background())
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if len(accepted) != 1 {
		t.Fatalf("accepted callbacks = %v, want exactly one (query a's 100 matches must be rejected)", accepted)
	}
}

func TestExactMHR_ReportsOwnAlgorithmName(t *testing.T) {
	c := &fakeCrawler{threads: 1, byQuery: map[string]models.SearchResult{
		"a": {NumberResults: 1, Results: []models.Data{models.NewData(strp("1"), nil)}},
	}}
	pool := writePool(t, "a")
	e := NewExactMHR(c, pool, MHRConfig{NumberQueries: 1, MinNumberMatches: 1, MaxNumberMatches: 10})
	if name := e.ExperimentDetails()["algorithm"]; name != "ExactMHR" {
		t.Errorf("algorithm = %v, want ExactMHR", name)
	}
	if _, err := e.Estimate(context.Background()); err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
}

// TestTeacherMHR_OnlyCountsDocumentsNewSincePreviousIteration exercises the
// running-unique-count redefinition: query "a" and "b" share document 2,
// visited back-to-back, so document 2 must not be counted as new twice.
func TestTeacherMHR_OnlyCountsDocumentsNewSincePreviousIteration(t *testing.T) {
	c := &fakeCrawler{
		threads: 1,
		byQuery: map[string]models.SearchResult{
			"a": {NumberResults: 2, Results: []models.Data{models.NewData(strp("1"), nil), models.NewData(strp("2"), nil)}},
			"b": {NumberResults: 2, Results: []models.Data{models.NewData(strp("2"), nil), models.NewData(strp("3"), nil)}},
		},
	}
	pool := writePool(t, "a", "b")

	tm := NewTeacherMHR(c, pool, MHRConfig{NumberQueries: 2, MinNumberMatches: 1, MaxNumberMatches: 10})
	if _, err := tm.Estimate(context.Background()); err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	// ids {1,2} from "a" are all new (previousIDs starts empty); from "b",
	// only id 3 is new since id 2 was present in the immediately preceding
	// iteration. runningUniqueCount = 2 + 1 = 3.
	if tm.runningUniqueCount != 3 {
		t.Errorf("runningUniqueCount = %d, want 3", tm.runningUniqueCount)
	}
}
