package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"planetalign/internal/centroid"
	"planetalign/internal/config"
	"planetalign/internal/geom"
	"planetalign/internal/tasks"
)

// Job is one alignment batch: a set of source frames and the directory
// the aligned copies are written to.
type Job struct {
	ID        string   `json:"id"`
	Frames    []string `json:"frames"`
	OutputDir string   `json:"output_dir"`
}

// FrameResult associates a source frame with its detection outcome.
// A frame without a centroid never reaches the crop phase.
type FrameResult struct {
	Path     string             `json:"path"`
	Centroid *centroid.Centroid `json:"centroid,omitempty"`
	Err      error              `json:"-"`
}

// Found reports whether detection produced a centroid for this frame.
func (r FrameResult) Found() bool { return r.Centroid != nil }

// Summary describes a completed batch. SkipReasons maps each skipped
// frame to the error that took it out of the batch.
type Summary struct {
	PlannedSize  geom.Size         `json:"planned_size"`
	Aligned      []string          `json:"aligned"`
	SkippedPaths []string          `json:"skipped,omitempty"`
	SkipReasons  map[string]string `json:"skip_reasons,omitempty"`
	DetectMillis int64             `json:"detect_ms"`
	CropMillis   int64             `json:"crop_ms"`
}

type frameDetector interface {
	Detect(ctx context.Context, framePath string) (centroid.Centroid, error)
}

type frameCropper interface {
	Crop(ctx context.Context, req tasks.CropRequest) (string, error)
}

// Aligner drives the two batch phases: concurrent centroid detection,
// then concurrent cropping to one planned size. The phases form a hard
// barrier; the crop size depends on the complete detection result set.
type Aligner struct {
	log      *slog.Logger
	detector frameDetector
	cropper  frameCropper
	opts     config.Processing
}

// NewAligner builds the batch orchestrator.
func NewAligner(logger *slog.Logger, detector frameDetector, cropper frameCropper, opts config.Processing) *Aligner {
	return &Aligner{log: logger, detector: detector, cropper: cropper, opts: opts}
}

// Run processes one batch. Per-frame failures in either phase skip the
// frame and keep the batch going; a batch in which no frame yields a
// centroid aborts with tasks.ErrNoCentroids before anything is cropped.
// notify, when non-nil, receives per-frame progress events.
func (a *Aligner) Run(ctx context.Context, job Job, notify func(Event)) (Summary, error) {
	if notify == nil {
		notify = func(Event) {}
	}
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output directory: %w", err)
	}

	detectStart := time.Now()
	results := a.detectAll(ctx, job, notify)

	var found []FrameResult
	var skipped []string
	reasons := make(map[string]string)
	for _, res := range results {
		if res.Found() {
			found = append(found, res)
			continue
		}
		skipped = append(skipped, res.Path)
		if res.Err != nil {
			reasons[res.Path] = res.Err.Error()
		}
	}

	summary := Summary{
		SkippedPaths: skipped,
		SkipReasons:  reasons,
		DetectMillis: geom.Millis(detectStart),
	}

	if len(skipped) > 0 {
		a.log.Warn("some frames were discarded after detection",
			"batch", job.ID, "discarded", len(skipped), "of", len(job.Frames))
	}
	if len(found) == 0 {
		return summary, tasks.ErrNoCentroids
	}
	a.log.Info("centroid detection complete",
		"batch", job.ID, "frames", len(found), "elapsed_ms", summary.DetectMillis)

	centroids := make([]centroid.Centroid, len(found))
	for i, res := range found {
		centroids[i] = *res.Centroid
	}
	size, err := tasks.PlanCropSize(centroids, a.opts.CropRatio)
	if err != nil {
		return summary, err
	}
	summary.PlannedSize = size
	a.log.Info("planned output size",
		"batch", job.ID, "width", size.Width, "height", size.Height)

	cropStart := time.Now()
	aligned, failed := a.cropAll(ctx, job, found, size, notify)
	summary.Aligned = aligned
	for path, reason := range failed {
		summary.SkippedPaths = append(summary.SkippedPaths, path)
		summary.SkipReasons[path] = reason
	}
	summary.CropMillis = geom.Millis(cropStart)

	return summary, nil
}

// detectAll fans the batch out over the detection worker pool. Every
// frame produces exactly one FrameResult; failures are captured, not
// propagated, so one bad frame cannot sink the pool.
func (a *Aligner) detectAll(ctx context.Context, job Job, notify func(Event)) []FrameResult {
	jobs := make(chan string)
	out := make(chan FrameResult)

	var wg sync.WaitGroup
	for i := 0; i < a.opts.DetectWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				out <- a.detectOne(ctx, job.ID, path, notify)
			}
		}()
	}

	go func() {
		for _, f := range job.Frames {
			jobs <- f
		}
		close(jobs)
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]FrameResult, 0, len(job.Frames))
	for res := range out {
		results = append(results, res)
	}
	return results
}

func (a *Aligner) detectOne(ctx context.Context, batchID, path string, notify func(Event)) FrameResult {
	c, err := a.detector.Detect(ctx, path)
	switch {
	case err == nil:
		notify(Event{Type: EventFrameDetected, BatchID: batchID, Frame: path, Centroid: &c, Time: time.Now()})
		return FrameResult{Path: path, Centroid: &c}
	case errors.Is(err, centroid.ErrNotFound):
		a.log.Warn("no centroid found", "frame", filepath.Base(path))
	case errors.Is(err, fs.ErrNotExist):
		a.log.Warn("frame file missing, skipping", "frame", path)
	default:
		a.log.Error("frame detection failed", "frame", filepath.Base(path), "error", err)
	}
	notify(Event{Type: EventFrameSkipped, BatchID: batchID, Frame: path, Error: err.Error(), Time: time.Now()})
	return FrameResult{Path: path, Err: err}
}

// cropAll crops every detected frame to the planned size on its own
// worker pool, sized independently of the detection pool. failed maps
// each frame that could not be cropped to the tool error.
func (a *Aligner) cropAll(ctx context.Context, job Job, found []FrameResult, size geom.Size, notify func(Event)) (aligned []string, failed map[string]string) {
	jobs := make(chan FrameResult)
	type cropOutcome struct {
		path   string
		output string
		err    error
	}
	out := make(chan cropOutcome)

	var wg sync.WaitGroup
	for i := 0; i < a.opts.CropWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for res := range jobs {
				outPath, err := a.cropper.Crop(ctx, tasks.CropRequest{
					FramePath: res.Path,
					Center:    res.Centroid.Center,
					Size:      size,
					OutputDir: job.OutputDir,
				})
				out <- cropOutcome{path: res.Path, output: outPath, err: err}
			}
		}()
	}

	go func() {
		for _, res := range found {
			jobs <- res
		}
		close(jobs)
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	failed = make(map[string]string)
	for oc := range out {
		if oc.err != nil {
			a.log.Error("crop failed", "frame", filepath.Base(oc.path), "error", oc.err)
			notify(Event{Type: EventFrameSkipped, BatchID: job.ID, Frame: oc.path, Error: oc.err.Error(), Time: time.Now()})
			failed[oc.path] = oc.err.Error()
			continue
		}
		a.log.Info("frame aligned",
			"frame", filepath.Base(oc.path), "output", oc.output,
			"size", fmt.Sprintf("%dx%d", size.Width, size.Height))
		notify(Event{Type: EventFrameCropped, BatchID: job.ID, Frame: oc.path, Output: oc.output, Time: time.Now()})
		aligned = append(aligned, oc.output)
	}
	return aligned, failed
}
