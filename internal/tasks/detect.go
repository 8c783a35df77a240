package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"planetalign/internal/centroid"
	"planetalign/internal/config"
	"planetalign/internal/geom"
)

// Detector locates the bright-object centroid in a source frame by
// thresholding it to a temporary monochrome image and scanning that.
type Detector struct {
	log         *slog.Logger
	thresholder Thresholder
	open        centroid.Opener
	opts        config.Processing
}

// NewDetector wires a detector with the given thresholder and pixel
// reader. A nil opener defaults to the MagickWand reader.
func NewDetector(logger *slog.Logger, thresholder Thresholder, open centroid.Opener, opts config.Processing) *Detector {
	if open == nil {
		open = centroid.OpenWand
	}
	return &Detector{log: logger, thresholder: thresholder, open: open, opts: opts}
}

// Detect returns the centroid of the frame at framePath.
//
// A missing source file fails with an error wrapping fs.ErrNotExist.
// A frame with no detectable bright object fails with
// centroid.ErrNotFound. The temporary monochrome file is removed on
// every exit path.
func (d *Detector) Detect(ctx context.Context, framePath string) (centroid.Centroid, error) {
	start := time.Now()

	if _, err := os.Stat(framePath); err != nil {
		return centroid.Centroid{}, fmt.Errorf("open frame %s: %w", framePath, err)
	}

	tmp, err := os.CreateTemp(d.opts.TempDir, "planetalign-*"+filepath.Ext(framePath))
	if err != nil {
		return centroid.Centroid{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := d.thresholder.Threshold(ctx, framePath, d.opts.ThresholdPct, tmpPath); err != nil {
		return centroid.Centroid{}, err
	}

	img, err := d.open(tmpPath)
	if err != nil {
		return centroid.Centroid{}, err
	}

	c, err := centroid.Locate(img, d.opts.StrideSequence, d.opts.SearchRadius)
	if err != nil {
		return centroid.Centroid{}, err
	}

	d.log.Info("found center",
		"frame", filepath.Base(framePath),
		"center_x", c.Center.X,
		"center_y", c.Center.Y,
		"size", fmt.Sprintf("%dx%d", c.Size.Width, c.Size.Height),
		"elapsed_ms", geom.Millis(start),
	)
	return c, nil
}
