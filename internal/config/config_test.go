package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ExplicitMissingFileErrors(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	if err == nil {
		t.Fatalf("Load() with an explicit missing file should error, got cfg=%+v", cfg)
	}
}

func TestLoad_AppliesDefaultsAroundExplicitValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
query_pool: custom-pool.txt
solr:
  base_url: http://solr.example.org/select
estimators:
  mhr:
    number_queries: 42
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.QueryPool != "custom-pool.txt" {
		t.Errorf("QueryPool = %q, want custom-pool.txt", cfg.QueryPool)
	}
	if cfg.Solr.BaseURL != "http://solr.example.org/select" {
		t.Errorf("Solr.BaseURL = %q", cfg.Solr.BaseURL)
	}
	if cfg.Solr.SearchField != "text" {
		t.Errorf("Solr.SearchField default = %q, want text", cfg.Solr.SearchField)
	}
	if cfg.Estimators.MHR.NumberQueries != 42 {
		t.Errorf("Estimators.MHR.NumberQueries = %d, want 42", cfg.Estimators.MHR.NumberQueries)
	}
	if cfg.Estimators.MHR.MaxNumberMatches != 1000000 {
		t.Errorf("Estimators.MHR.MaxNumberMatches default = %d, want 1000000", cfg.Estimators.MHR.MaxNumberMatches)
	}
	if cfg.Estimators.Shokouhi.FactorK != 10 {
		t.Errorf("Estimators.Shokouhi.FactorK default = %d, want 10", cfg.Estimators.Shokouhi.FactorK)
	}
	if cfg.Archive.ThreadLimit != 2 {
		t.Errorf("Archive.ThreadLimit default = %d, want 2", cfg.Archive.ThreadLimit)
	}
}
