// Package estimator implements the five published corpus-size estimation
// algorithms (MHR, RandomWalk, BroderEtAl, SumEst, and the Shokouhi family),
// each sharing a query-pool reader and a CrawlerApi handle; RandomWalk also
// uses a WordExtractor.
package estimator

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/corplens/sizeprobe/internal/crawler"
)

// Estimator is the contract every algorithm family implements: a single
// scalar estimate per call, plus the parameters that produced it for
// logging by an external collaborator.
type Estimator interface {
	// Estimate wipes the crawler's cache (CleanUpDataFolder), runs the
	// sampling algorithm, and returns the scalar corpus-size estimate. The
	// crawler's download counter is not reset, so DownloadCount accumulates
	// across calls on the same crawler.
	// A return value of -1 is the documented sentinel for "undefined" —
	// not an error; the caller should still log it.
	Estimate(ctx context.Context) (float64, error)

	// ExperimentDetails maps human-readable parameter names to values, for
	// an external Logger to record alongside the estimate.
	ExperimentDetails() map[string]any

	// DownloadCount reads through to the crawler's counter.
	DownloadCount() int64
}

// Undefined is the sentinel Estimate returns when too little data was
// collected to compute a meaningful value (e.g. MHR's overlap rate of
// exactly 1, or zero accepted samples).
const Undefined = -1.0

// ReadQueryPool loads path as a query pool: one query per line, trailing CR
// or LF stripped, insertion order preserved. Blank lines are dropped — a
// Query is defined as a non-empty string (see the data model's QueryPool
// entity), so an empty line can never itself be a valid query. The pool
// must not end up empty.
func ReadQueryPool(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("estimator: opening query pool %s: %w", path, err)
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("estimator: reading query pool %s: %w", path, err)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("estimator: query pool %s is empty", path)
	}
	return queries, nil
}

// downloadCounterOf is a tiny adapter so every estimator's DownloadCount()
// reads through to its crawler without repeating the one-line forward.
func downloadCounterOf(c crawler.Api) int64 {
	return c.DownloadCount()
}
