package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	defaultConfigPath = "~/.config/planetalign/config.json"
	defaultWorkers    = 4
)

// Config holds user-editable settings for the aligner.
type Config struct {
	Processing Processing      `json:"processing"`
	Logging    Logging         `json:"logging"`
	Paths      Paths           `json:"paths"`
	Tools      ToolPreferences `json:"tools"`
	Watch      Watch           `json:"watch"`
}

// Processing captures the centroid-detection and cropping parameters.
type Processing struct {
	// ThresholdPct is the percentage used to binarize frames before
	// centroid detection. Suggested range is 1-10; lower values work
	// better on dim frames.
	ThresholdPct int `json:"threshold_pct"`

	// StrideSequence lists the lattice spacings tried during the seed
	// search, coarsest first.
	StrideSequence []int `json:"stride_sequence_px"`

	// SearchRadius bounds the refinement window around the seed pixel.
	SearchRadius int `json:"search_radius_px"`

	// CropRatio scales the largest detected object size to the output
	// frame size. A 100x100 planet with ratio 3.5 crops to 350x350.
	CropRatio float64 `json:"crop_ratio"`

	// DetectWorkers and CropWorkers size the two worker pools
	// independently.
	DetectWorkers int `json:"detect_workers"`
	CropWorkers   int `json:"crop_workers"`

	TempDir string `json:"temp_dir"`
}

// Logging controls logging verbosity and destinations.
type Logging struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // text, json
	FileOutput bool   `json:"file_output"`
	LogDir     string `json:"log_dir"`
}

// Paths configures default input/output locations.
type Paths struct {
	DefaultOutput string `json:"default_output"`
}

// ToolPreferences defines which implementation handles the external
// image operations, with fallbacks tried in order.
type ToolPreferences struct {
	Threshold ToolChoice `json:"threshold"`
	Crop      ToolChoice `json:"crop"`
}

type ToolChoice struct {
	Preferred string   `json:"preferred"` // "imagemagick", "native"
	Fallbacks []string `json:"fallbacks"`
}

// Watch configures the capture-directory watch mode.
type Watch struct {
	// SettleSeconds is how long the capture directory must stay quiet
	// before the accumulated frames are submitted as a batch.
	SettleSeconds int `json:"settle_seconds"`
}

// Load reads configuration from disk, falling back to sensible defaults.
// The config path can be overridden with PLANETALIGN_CONFIG.
func Load() (*Config, error) {
	cfg := Default()

	configPath := os.Getenv("PLANETALIGN_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	expanded, err := expandUser(configPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Processing: Processing{
			ThresholdPct:   2,
			StrideSequence: []int{64, 32, 16, 8, 4, 2, 1},
			SearchRadius:   150,
			CropRatio:      3.5,
			DetectWorkers:  defaultWorkers,
			CropWorkers:    defaultWorkers,
			TempDir:        os.TempDir(),
		},
		Logging: Logging{
			Level:      "info",
			Format:     "text",
			FileOutput: false,
			LogDir:     "./logs",
		},
		Paths: Paths{
			DefaultOutput: "./aligned",
		},
		Tools: ToolPreferences{
			Threshold: ToolChoice{Preferred: "imagemagick", Fallbacks: []string{"native"}},
			Crop:      ToolChoice{Preferred: "imagemagick", Fallbacks: []string{"native"}},
		},
		Watch: Watch{
			SettleSeconds: 5,
		},
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	return c.Processing.Validate()
}

// Validate checks the detection and crop parameters.
func (p Processing) Validate() error {
	if p.ThresholdPct < 1 || p.ThresholdPct > 100 {
		return fmt.Errorf("threshold_pct must be in [1, 100], got %d", p.ThresholdPct)
	}
	if len(p.StrideSequence) == 0 {
		return errors.New("stride_sequence_px must not be empty")
	}
	for _, s := range p.StrideSequence {
		if s < 1 {
			return fmt.Errorf("stride values must be >= 1, got %d", s)
		}
	}
	if p.SearchRadius < 1 {
		return fmt.Errorf("search_radius_px must be >= 1, got %d", p.SearchRadius)
	}
	if p.CropRatio < 1 {
		return fmt.Errorf("crop_ratio must be >= 1, got %g", p.CropRatio)
	}
	if p.DetectWorkers < 1 || p.CropWorkers < 1 {
		return errors.New("worker pool sizes must be >= 1")
	}
	return nil
}

func expandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}

	return filepath.Join(home, path[2:]), nil
}
