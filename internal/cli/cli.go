// Package cli wires the cobra command tree to the alignment pipeline.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"planetalign/internal/config"
	"planetalign/internal/fsutil"
	"planetalign/internal/logging"
	"planetalign/internal/pipeline"
	"planetalign/internal/tasks"
)

type toolManager interface {
	GetToolStatus() map[string]map[string]tasks.ToolStatus
	Thresholder() (tasks.Thresholder, error)
	Cropper() (tasks.Cropper, error)
}

type toolManagerFactory func(*config.Config) toolManager

type pipelineFactory func(ctx context.Context, opts config.Processing) (*pipeline.Pipeline, error)

// Root carries the shared state behind every subcommand.
type Root struct {
	cfg         *config.Config
	log         *slog.Logger
	toolFactory toolManagerFactory
	pipeFactory pipelineFactory
}

// NewRoot constructs the CLI root state.
func NewRoot(cfg *config.Config, logger *slog.Logger) *Root {
	r := &Root{
		cfg: cfg,
		log: logger,
		toolFactory: func(cfg *config.Config) toolManager {
			return tasks.NewToolManager(cfg)
		},
	}
	r.pipeFactory = r.defaultPipeline
	return r
}

func (r *Root) newToolManager() toolManager {
	return r.toolFactory(r.cfg)
}

// defaultPipeline builds a pipeline around the first available
// threshold and crop tools.
func (r *Root) defaultPipeline(ctx context.Context, opts config.Processing) (*pipeline.Pipeline, error) {
	tm := r.newToolManager()
	for category, tools := range tm.GetToolStatus() {
		for name, st := range tools {
			logging.LogToolStatus(r.log, category+"/"+name, st.Available, st.Version, st.Path, st.Error)
		}
	}
	thresholder, err := tm.Thresholder()
	if err != nil {
		return nil, err
	}
	cropper, err := tm.Cropper()
	if err != nil {
		return nil, err
	}
	r.log.Info("tools selected",
		"threshold", thresholder.Name(), "crop", cropper.Name())

	detector := tasks.NewDetector(r.log, thresholder, nil, opts)
	aligner := pipeline.NewAligner(r.log, detector, cropper, opts)
	return pipeline.New(ctx, r.log, aligner), nil
}

// resolveFrames expands a single directory argument into its frame
// files; explicit file arguments pass through untouched.
func resolveFrames(args []string) ([]string, error) {
	if len(args) == 1 {
		if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
			frames, err := fsutil.ListFrames(args[0])
			if err != nil {
				return nil, err
			}
			if len(frames) == 0 {
				return nil, fmt.Errorf("no frames found in %s", args[0])
			}
			return frames, nil
		}
	}
	return args, nil
}

// enqueueAndWait submits the batch and blocks until its terminal event.
func (r *Root) enqueueAndWait(ctx context.Context, pipe *pipeline.Pipeline, job pipeline.Job) error {
	events, unsubscribe := pipe.Subscribe()
	defer unsubscribe()

	if !pipe.Submit(job) {
		return fmt.Errorf("pipeline rejected batch %s", job.ID)
	}
	r.log.Info("batch queued", "id", job.ID, "frames", len(job.Frames))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("pipeline stopped before completion")
			}
			if ev.BatchID != job.ID {
				continue
			}
			switch ev.Type {
			case pipeline.EventBatchComplete:
				return nil
			case pipeline.EventBatchFailed:
				return fmt.Errorf("batch %s failed: %s", job.ID, ev.Error)
			}
		}
	}
}

func newID(prefix string) string {
	ts := time.Now().UTC().Format("20060102T150405")
	return fmt.Sprintf("%s-%s-%04d", prefix, ts, rand.Intn(10000))
}
