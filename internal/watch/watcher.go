// Package watch monitors a capture directory and submits an alignment
// batch once new frames stop arriving.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"planetalign/internal/fsutil"
	"planetalign/internal/pipeline"
)

// Submitter accepts alignment batches. Satisfied by pipeline.Pipeline.
type Submitter interface {
	Submit(job pipeline.Job) bool
}

// Watcher collects frame files written to a directory and flushes them
// as one batch after the settle period passes without further writes.
// Capture software drops frames one at a time; the settle period keeps
// a half-written session from being split across batches.
type Watcher struct {
	log       *slog.Logger
	pipe      Submitter
	dir       string
	outputDir string
	settle    time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	batches int
}

// New creates a watcher for dir that submits batches targeting outputDir.
func New(logger *slog.Logger, pipe Submitter, dir, outputDir string, settle time.Duration) *Watcher {
	return &Watcher{
		log:       logger,
		pipe:      pipe,
		dir:       dir,
		outputDir: outputDir,
		settle:    settle,
		pending:   make(map[string]struct{}),
	}
}

// Run watches until ctx is cancelled. A batch still settling when the
// context ends is flushed before returning.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.log.Info("watching for frames", "dir", w.dir, "settle", w.settle)

	for {
		select {
		case <-ctx.Done():
			w.flush()
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				w.flush()
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !fsutil.IsFrameFile(event.Name) {
				continue
			}
			w.add(event.Name)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) add(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settle, w.flush)
}

// flush submits everything collected so far as one batch.
func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	frames := make([]string, 0, len(w.pending))
	for f := range w.pending {
		frames = append(frames, f)
	}
	w.pending = make(map[string]struct{})
	w.batches++
	id := fmt.Sprintf("watch-%d", w.batches)
	w.mu.Unlock()

	job := pipeline.Job{ID: id, Frames: frames, OutputDir: w.outputDir}
	if !w.pipe.Submit(job) {
		w.log.Warn("batch rejected by pipeline", "batch", id, "frames", len(frames))
		return
	}
	w.log.Info("settled batch submitted", "batch", id, "frames", len(frames))
}
