package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"planetalign/internal/centroid"
	"planetalign/internal/logging"
)

// EventType tags the progress events a pipeline publishes.
type EventType string

const (
	EventFrameDetected EventType = "frame_detected"
	EventFrameSkipped  EventType = "frame_skipped"
	EventFrameCropped  EventType = "frame_cropped"
	EventBatchComplete EventType = "batch_complete"
	EventBatchFailed   EventType = "batch_failed"
)

// Event is one progress notification, frame- or batch-scoped.
type Event struct {
	Type     EventType          `json:"type"`
	BatchID  string             `json:"batch_id"`
	Frame    string             `json:"frame,omitempty"`
	Centroid *centroid.Centroid `json:"centroid,omitempty"`
	Output   string             `json:"output,omitempty"`
	Error    string             `json:"error,omitempty"`
	Summary  *Summary           `json:"summary,omitempty"`
	Time     time.Time          `json:"time"`
}

// Result is the terminal record of a submitted batch.
type Result struct {
	Job      Job       `json:"job"`
	Summary  Summary   `json:"summary"`
	Error    string    `json:"error,omitempty"`
	Finished time.Time `json:"finished"`
}

const recentLimit = 32

// Pipeline queues alignment batches and runs them one at a time. Each
// batch saturates its own detect and crop worker pools, so batches are
// not run concurrently with each other.
type Pipeline struct {
	log     *slog.Logger
	aligner *Aligner

	jobs     chan Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	mu        sync.Mutex
	subs      map[int]chan Event
	nextSubID int
	recent    []Result
}

// New creates a pipeline and starts its batch worker.
func New(ctx context.Context, logger *slog.Logger, aligner *Aligner) *Pipeline {
	ctx, cancel := context.WithCancel(ctx)
	p := &Pipeline{
		log:     logger,
		aligner: aligner,
		jobs:    make(chan Job, 16),
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[int]chan Event),
	}
	p.wg.Add(1)
	go p.worker()
	return p
}

// Submit queues a batch. It returns false once the pipeline is
// stopping or the queue is full.
func (p *Pipeline) Submit(job Job) bool {
	select {
	case <-p.ctx.Done():
		return false
	default:
	}
	select {
	case p.jobs <- job:
		return true
	case <-p.ctx.Done():
		return false
	default:
		p.log.Warn("batch queue full, rejecting", "batch", job.ID)
		return false
	}
}

// Stop cancels the pipeline and waits for the in-flight batch.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()

		p.mu.Lock()
		for id, ch := range p.subs {
			close(ch)
			delete(p.subs, id)
		}
		p.mu.Unlock()
	})
}

// Subscribe registers a progress listener. The returned function
// unregisters it; events are dropped when a subscriber lags.
func (p *Pipeline) Subscribe() (<-chan Event, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSubID
	p.nextSubID++
	ch := make(chan Event, 64)
	p.subs[id] = ch

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subs[id]; ok {
			close(sub)
			delete(p.subs, id)
		}
	}
}

// Recent returns the most recent batch results, newest first.
func (p *Pipeline) Recent() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Result, len(p.recent))
	for i, r := range p.recent {
		out[len(p.recent)-1-i] = r
	}
	return out
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.jobs:
			p.run(job)
		}
	}
}

func (p *Pipeline) run(job Job) {
	start := time.Now()
	logging.LogBatchStart(p.log, job.ID, job.OutputDir, len(job.Frames))

	summary, err := p.aligner.Run(p.ctx, job, p.publish)

	result := Result{Job: job, Summary: summary, Finished: time.Now()}
	if err != nil {
		result.Error = err.Error()
	}

	// Record before publishing so a listener reacting to the terminal
	// event already sees the batch in Recent.
	p.mu.Lock()
	p.recent = append(p.recent, result)
	if len(p.recent) > recentLimit {
		p.recent = p.recent[len(p.recent)-recentLimit:]
	}
	p.mu.Unlock()

	if err != nil {
		logging.LogBatchError(p.log, job.ID, time.Since(start), err)
		p.publish(Event{Type: EventBatchFailed, BatchID: job.ID, Error: err.Error(), Summary: &summary, Time: result.Finished})
		return
	}
	logging.LogBatchComplete(p.log, job.ID, time.Since(start), map[string]any{
		"aligned": len(summary.Aligned),
		"skipped": len(summary.SkippedPaths),
		"size":    summary.PlannedSize,
	})
	p.publish(Event{Type: EventBatchComplete, BatchID: job.ID, Summary: &summary, Time: result.Finished})
}

func (p *Pipeline) publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
