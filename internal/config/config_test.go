package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("PLANETALIGN_CONFIG", filepath.Join(t.TempDir(), "nope.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected defaults, got %v", err)
	}
	if cfg.Processing.ThresholdPct != 2 {
		t.Fatalf("expected default threshold 2, got %d", cfg.Processing.ThresholdPct)
	}
	if cfg.Processing.CropRatio != 3.5 {
		t.Fatalf("expected default crop ratio 3.5, got %g", cfg.Processing.CropRatio)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"processing": {"threshold_pct": 5, "crop_workers": 8}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PLANETALIGN_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	if cfg.Processing.ThresholdPct != 5 {
		t.Fatalf("expected threshold 5 from file, got %d", cfg.Processing.ThresholdPct)
	}
	if cfg.Processing.CropWorkers != 8 {
		t.Fatalf("expected 8 crop workers from file, got %d", cfg.Processing.CropWorkers)
	}
	// Untouched fields keep their defaults.
	if cfg.Processing.SearchRadius != 150 {
		t.Fatalf("expected default search radius 150, got %d", cfg.Processing.SearchRadius)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"processing": {"threshold_pct": 0}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PLANETALIGN_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for threshold_pct 0")
	}
}

func TestValidateRejectsBadStrides(t *testing.T) {
	cfg := Default()
	cfg.Processing.StrideSequence = []int{16, 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for zero stride")
	}

	cfg = Default()
	cfg.Processing.StrideSequence = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty stride sequence")
	}
}
