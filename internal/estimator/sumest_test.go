package estimator

import (
	"context"
	"testing"

	"github.com/corplens/sizeprobe/internal/models"
)

// TestSumEst_DeterministicSingleQuery builds a corpus where every query in
// the pool returns the same single document, so rejection sampling always
// succeeds immediately, the matching-query list is the whole pool, and the
// inverse-degree sampler finds the target document on its first draw no
// matter which query it picks. pool_size_estimate should equal len(pool)
// (every trial hits), degree(q) == 1 for every query, and inverse_degree ==
// 1/len(pool), so the final estimate collapses to len(pool) * 1 * (1/len(pool)) == 1.
func TestSumEst_DeterministicSingleQuery(t *testing.T) {
	doc := models.NewData(strp("doc-1"), strp("shared content"))
	pool := []string{"shared", "content"}

	byQuery := map[string]models.SearchResult{
		"shared":  {NumberResults: 1, Results: []models.Data{doc}},
		"content": {NumberResults: 1, Results: []models.Data{doc}},
	}
	c := &fakeCrawler{threads: 2, byQuery: byQuery}
	poolPath := writePool(t, pool...)

	est := NewSumEst(c, poolPath, SumEstConfig{IterationNumber: 5, PoolSampleSize: 10})
	got, err := est.Estimate(context.Background())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if got < 0.99 || got > 1.01 {
		t.Fatalf("estimate = %v, want ~1.0", got)
	}
}

func TestSumEst_NoMatchingDocumentYieldsUndefined(t *testing.T) {
	c := &fakeCrawler{threads: 1, byQuery: map[string]models.SearchResult{
		"a": models.Empty(),
	}}
	poolPath := writePool(t, "a")

	est := NewSumEst(c, poolPath, SumEstConfig{IterationNumber: 3, PoolSampleSize: 5})
	got, err := est.Estimate(context.Background())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if got != Undefined {
		t.Fatalf("estimate = %v, want Undefined (no document ever matches)", got)
	}
}

func TestSumEst_ExperimentDetails(t *testing.T) {
	est := NewSumEst(&fakeCrawler{threads: 1}, "unused", SumEstConfig{IterationNumber: 7, PoolSampleSize: 11})
	details := est.ExperimentDetails()
	if details["algorithm"] != "SumEst" {
		t.Fatalf("algorithm = %v, want SumEst", details["algorithm"])
	}
	if details["iteration_number"] != 7 || details["pool_sample_size"] != 11 {
		t.Fatalf("unexpected details: %+v", details)
	}
}
