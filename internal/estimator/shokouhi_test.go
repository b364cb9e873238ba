package estimator

import (
	"context"
	"math"
	"testing"

	"github.com/corplens/sizeprobe/internal/models"
)

// idResult builds a fixed SearchResult out of bare identifiers, with
// NumberResults equal to the returned count (so the MinNumberMatches filter
// in shokouhiBase.sample, which operates on NumberResults, behaves the same
// as filtering on the id list here).
func idResult(ids ...string) models.SearchResult {
	results := make([]models.Data, len(ids))
	for i, id := range ids {
		results[i] = models.NewData(strp(id), nil)
	}
	return models.SearchResult{NumberResults: len(ids), Results: results}
}

// TestMCR_PairwiseOverlap builds three queries whose result lists overlap
// by exactly one document in every pair (3 pairs * 1 overlap = D=3), with
// K=2, T=3: estimate = T(T-1)K^2/(2D) = 3*2*4/(2*3) = 4.0.
func TestMCR_PairwiseOverlap(t *testing.T) {
	c := &fakeCrawler{
		threads: 2,
		byQuery: map[string]models.SearchResult{
			"a": idResult("1", "2"),
			"b": idResult("2", "3"),
			"c": idResult("3", "1"),
		},
	}
	poolPath := writePool(t, "a", "b", "c")

	est := NewMCR(c, poolPath, ShokouhiConfig{FactorK: 2, MinNumberMatches: 1, QuerySampleSize: 3})
	got, err := est.Estimate(context.Background())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if math.Abs(got-4.0) > 1e-9 {
		t.Fatalf("estimate = %v, want 4.0", got)
	}
}

func TestMCR_NoOverlapIsUndefined(t *testing.T) {
	c := &fakeCrawler{
		threads: 1,
		byQuery: map[string]models.SearchResult{
			"a": idResult("1", "2"),
			"b": idResult("3", "4"),
		},
	}
	poolPath := writePool(t, "a", "b")

	est := NewMCR(c, poolPath, ShokouhiConfig{FactorK: 2, MinNumberMatches: 1, QuerySampleSize: 2})
	got, err := est.Estimate(context.Background())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if got != Undefined {
		t.Fatalf("estimate = %v, want Undefined", got)
	}
}

// TestCH_RunningMarkedSet walks three result lists that pairwise share one
// document ({1,2}, {2,3}, {3,1}). The sample order is random, but the
// fixture is symmetric, so every order gives the same totals. Marked starts
// empty, so the first list contributes nothing; after it |marked|=2. The
// second list shares one id with marked: numerator += K*2^2 = 8,
// denominator += 1*2 = 2, then |marked|=3. The third list lies wholly
// inside marked: numerator += K*3^2 = 18, denominator += 2*3 = 6. Totals:
// numerator=26, denominator=8, estimate=3.25.
func TestCH_RunningMarkedSet(t *testing.T) {
	c := &fakeCrawler{
		threads: 1,
		byQuery: map[string]models.SearchResult{
			"a": idResult("1", "2"),
			"b": idResult("2", "3"),
			"c": idResult("3", "1"),
		},
	}
	poolPath := writePool(t, "a", "b", "c")

	est := NewCH(c, poolPath, ShokouhiConfig{FactorK: 2, MinNumberMatches: 1, QuerySampleSize: 3})
	got, err := est.Estimate(context.Background())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if math.Abs(got-3.25) > 1e-9 {
		t.Fatalf("estimate = %v, want 3.25", got)
	}
}

// TestMCRReg_AppliesRegression checks the regression wrapper against the
// closed-form correction on the same fixture as TestMCR_PairwiseOverlap
// (raw estimate 4.0).
func TestMCRReg_AppliesRegression(t *testing.T) {
	c := &fakeCrawler{
		threads: 2,
		byQuery: map[string]models.SearchResult{
			"a": idResult("1", "2"),
			"b": idResult("2", "3"),
			"c": idResult("3", "1"),
		},
	}
	poolPath := writePool(t, "a", "b", "c")

	est := NewMCRReg(c, poolPath, ShokouhiConfig{FactorK: 2, MinNumberMatches: 1, QuerySampleSize: 3})
	got, err := est.Estimate(context.Background())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	want := math.Pow(10, (math.Log10(4.0)-mcrRegA)/mcrRegB)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("estimate = %v, want %v", got, want)
	}
	if details := est.ExperimentDetails(); details["algorithm"] != "MCRReg" {
		t.Fatalf("algorithm = %v, want MCRReg", details["algorithm"])
	}
}

func TestCHReg_UndefinedPassesThrough(t *testing.T) {
	c := &fakeCrawler{
		threads: 1,
		byQuery: map[string]models.SearchResult{
			"a": idResult("1", "2"),
		},
	}
	poolPath := writePool(t, "a")

	est := NewCHReg(c, poolPath, ShokouhiConfig{FactorK: 2, MinNumberMatches: 1, QuerySampleSize: 1})
	got, err := est.Estimate(context.Background())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if got != Undefined {
		t.Fatalf("estimate = %v, want Undefined", got)
	}
}
