package estimator

import (
	"context"
	"math"
	"testing"

	"github.com/corplens/sizeprobe/internal/models"
)

// walkCrawler is a deterministic Api double for RandomWalk: documents carry
// pre-baked content so ExtractWords produces a known word list, and
// RetrieveNumberMatches/DownloadItem are driven off a fixed adjacency map.
type walkCrawler struct {
	matches map[string]int
	docs    map[string][]models.Data // query -> ordered document list
}

func (w *walkCrawler) Download(ctx context.Context, query string, wantID, wantContent bool) (models.SearchResult, error) {
	docs := w.docs[query]
	return models.SearchResult{NumberResults: w.matches[query], Results: docs}, nil
}

func (w *walkCrawler) DownloadItem(ctx context.Context, query string, index int) (models.SearchResult, error) {
	docs := w.docs[query]
	if index < 0 || index >= len(docs) {
		return models.SearchResult{}, nil
	}
	return models.SearchResult{NumberResults: w.matches[query], Results: []models.Data{docs[index]}}, nil
}

func (w *walkCrawler) RetrieveNumberMatches(ctx context.Context, query string) (int, error) {
	return w.matches[query], nil
}

func (w *walkCrawler) DownloadEntireDataSet(ctx context.Context) (models.SearchResult, error) {
	return models.Empty(), nil
}

func (w *walkCrawler) DownloadCount() int64          { return 0 }
func (w *walkCrawler) LimitResultsPerQuery() int     { return 1000 }
func (w *walkCrawler) SetLimitResultsPerQuery(n int) {}
func (w *walkCrawler) ThreadLimit() int              { return 1 }
func (w *walkCrawler) CleanUpDataFolder() error      { return nil }

// TestRandomWalk_ProducesEstimateOnACycle builds a tiny closed graph — every
// query leads back into the same two documents and words — so the walk
// never needs to back off and always has somewhere to go.
func TestRandomWalk_ProducesEstimateOnACycle(t *testing.T) {
	docA := models.NewData(strp("doc-a"), strp("alpha beta gamma delta"))
	docB := models.NewData(strp("doc-b"), strp("alpha beta gamma delta"))

	c := &walkCrawler{
		matches: map[string]int{"seed": 2, "alpha": 2, "beta": 2, "gamma": 2, "delta": 2},
		docs: map[string][]models.Data{
			"seed":  {docA, docB},
			"alpha": {docA, docB},
			"beta":  {docA, docB},
			"gamma": {docA, docB},
			"delta": {docA, docB},
		},
	}
	pool := writePool(t, "seed")

	rw := NewRandomWalk(c, pool, RandomWalkConfig{SampleSize: 20, MinNumberMatchesForSeedQuery: 1, MinNumberWords: 2})
	got, err := rw.Estimate(context.Background())
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if got == Undefined {
		t.Fatalf("estimate is Undefined, want a defined value on a well-connected graph")
	}
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("estimate = %v, want a finite number", got)
	}
}

func TestRandomWalk_UndefinedWhenNoSeedQualifies(t *testing.T) {
	c := &walkCrawler{matches: map[string]int{"seed": 0}}
	pool := writePool(t, "seed")

	rw := NewRandomWalk(c, pool, RandomWalkConfig{SampleSize: 5, MinNumberMatchesForSeedQuery: 1, MinNumberWords: 1})
	got, err := rw.Estimate(context.Background())
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if got != Undefined {
		t.Errorf("estimate = %v, want Undefined", got)
	}
}

func TestComputeWalkEstimate_EmptyDegreesIsUndefined(t *testing.T) {
	if got := computeWalkEstimate(nil, map[string]int{}); got != Undefined {
		t.Errorf("computeWalkEstimate(nil) = %v, want Undefined", got)
	}
}

func TestComputeWalkEstimate_NoRecurrenceIsUndefined(t *testing.T) {
	degrees := []int{3, 4, 5}
	freq := map[string]int{"a": 1, "b": 1, "c": 1}
	if got := computeWalkEstimate(degrees, freq); got != Undefined {
		t.Errorf("computeWalkEstimate with no repeated visits = %v, want Undefined (c=0)", got)
	}
}
