package applog

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("Level = %v, want info", cfg.Level)
	}
	if cfg.LogDir != "logs" {
		t.Errorf("LogDir = %v, want logs", cfg.LogDir)
	}
	if cfg.MaxBackups != 3 {
		t.Errorf("MaxBackups = %v, want 3", cfg.MaxBackups)
	}
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.LogDir = dir

	if err := Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Infof("hello %s", "world")
	Warnf("careful %d", 1)
}

func TestFilteredWriter(t *testing.T) {
	var buf countingWriter
	fw := &FilteredWriter{Writer: &buf, MinLevel: 2}

	if _, err := fw.WriteLevel(1, []byte("dropped")); err != nil {
		t.Fatalf("WriteLevel() error = %v", err)
	}
	if buf.n != 0 {
		t.Errorf("expected below-threshold write to be dropped, got %d bytes", buf.n)
	}

	if _, err := fw.WriteLevel(3, []byte("kept")); err != nil {
		t.Fatalf("WriteLevel() error = %v", err)
	}
	if buf.n == 0 {
		t.Errorf("expected at-or-above-threshold write to pass through")
	}
}

type countingWriter struct{ n int }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += len(p)
	return len(p), nil
}
