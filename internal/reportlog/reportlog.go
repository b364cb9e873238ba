// Package reportlog implements the Estimator -> Logger contract: an
// external collaborator that records an estimator's experiment parameters
// and per-iteration results for later analysis. The Estimator engine only
// ever supplies a numeric estimate and its experiment_details mapping; this
// package owns everything about where that goes and how it is formatted.
package reportlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/corplens/sizeprobe/internal/applog"
)

// Logger is the contract documented in the specification's external
// interfaces section: a Factory wires one Logger per (Estimator, Crawler)
// bundle, and the estimator's caller drives these four calls around each
// estimate() invocation.
type Logger interface {
	WriteHeader() error
	WriteExperimentDetails(details map[string]any) error
	WriteResultIteration(iteration int, estimation float64, duration time.Duration, downloadCount int64) error
	WriteFinalResult(estimations []float64, totalDuration time.Duration, totalDownloads int64) error
}

// CSVLogger persists one row per iteration to a CSV file under dir, named
// for a fresh run ID, and mirrors every write as a human-readable line
// through applog. The run ID (not the experiment name, which the caller
// already knows) is what lets two runs of the same experiment be told
// apart after the fact.
type CSVLogger struct {
	runID      string
	experiment string

	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVLogger creates dir if needed and opens a fresh "<experiment>-<run
// id>.csv" file inside it.
func NewCSVLogger(dir, experiment string) (*CSVLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("reportlog: creating %s: %w", dir, err)
	}

	runID := uuid.NewString()
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.csv", experiment, runID))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("reportlog: creating %s: %w", path, err)
	}

	return &CSVLogger{
		runID:      runID,
		experiment: experiment,
		file:       f,
		writer:     csv.NewWriter(f),
	}, nil
}

// Close flushes and closes the underlying CSV file.
func (l *CSVLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer.Flush()
	return l.file.Close()
}

func (l *CSVLogger) WriteHeader() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Write([]string{"run_id", "experiment", "row_type", "key", "value"}); err != nil {
		return err
	}
	l.writer.Flush()
	applog.Infof("reportlog: starting run %s for experiment %s", l.runID, l.experiment)
	return l.writer.Error()
}

// WriteExperimentDetails writes one row per parameter, sorted by key so
// repeated runs of the same experiment diff cleanly.
func (l *CSVLogger) WriteExperimentDetails(details map[string]any) error {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		row := []string{l.runID, l.experiment, "param", k, fmt.Sprintf("%v", details[k])}
		if err := l.writer.Write(row); err != nil {
			return err
		}
	}
	l.writer.Flush()
	applog.Infof("reportlog: %s experiment_details: %v", l.experiment, details)
	return l.writer.Error()
}

func (l *CSVLogger) WriteResultIteration(iteration int, estimation float64, duration time.Duration, downloadCount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	row := []string{
		l.runID,
		l.experiment,
		"iteration",
		fmt.Sprintf("%d", iteration),
		fmt.Sprintf("%g|%s|%d", estimation, duration, downloadCount),
	}
	if err := l.writer.Write(row); err != nil {
		return err
	}
	l.writer.Flush()
	applog.Infof("reportlog: %s iteration %d estimate=%s duration=%s downloads=%d",
		l.experiment, iteration, humanize.CommafWithDigits(estimation, 1), duration, downloadCount)
	return l.writer.Error()
}

func (l *CSVLogger) WriteFinalResult(estimations []float64, totalDuration time.Duration, totalDownloads int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	row := []string{
		l.runID,
		l.experiment,
		"final",
		"summary",
		fmt.Sprintf("n=%d|duration=%s|downloads=%d", len(estimations), totalDuration, totalDownloads),
	}
	if err := l.writer.Write(row); err != nil {
		return err
	}
	l.writer.Flush()

	applog.Infof("reportlog: %s finished: %d estimates over %s, %s downloads total",
		l.experiment, len(estimations), totalDuration, humanize.Comma(totalDownloads))
	for i, e := range estimations {
		applog.Infof("reportlog: %s estimate[%d] = %s", l.experiment, i, humanize.CommafWithDigits(e, 1))
	}
	return l.writer.Error()
}
