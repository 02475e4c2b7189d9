package thumbnail

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

// DefaultJobTimeout bounds a single queued thumbnail job.
const DefaultJobTimeout = 30 * time.Second

// Worker processes uploaded image keys on a bounded pool of goroutines.
type Worker struct {
	proc        *Processor
	jobs        chan string
	concurrency int
	jobTimeout  time.Duration

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewWorker creates a worker with the given pool size and queue length.
func NewWorker(proc *Processor, concurrency, queueSize int) *Worker {
	if concurrency <= 0 {
		concurrency = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Worker{
		proc:        proc,
		jobs:        make(chan string, queueSize),
		concurrency: concurrency,
		jobTimeout:  DefaultJobTimeout,
	}
}

// Start launches the pool. Workers run until Stop closes the queue; jobs
// still run after ctx is cancelled, each bounded by the job timeout.
func (w *Worker) Start(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for key := range w.jobs {
				jobCtx, cancel := context.WithTimeout(base, w.jobTimeout)
				// Errors are logged and counted by the processor.
				_, _ = w.proc.ProcessKey(jobCtx, key)
				cancel()
			}
		}()
	}
}

// Enqueue schedules key without blocking. It returns false when the queue is
// full or the worker is stopped.
func (w *Worker) Enqueue(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return false
	}
	select {
	case w.jobs <- key:
		return true
	default:
		w.proc.cfg.Logger.Warn("thumbnail queue full, dropping", "key", key)
		return false
	}
}

// Stop rejects new work, lets the pool finish every queued key and waits
// for it.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.jobs)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// Hook returns an AfterImageUpload hook that enqueues uploaded images.
func (w *Worker) Hook() catalog.AfterImageUploadHook {
	return func(hctx *catalog.HookContext, img catalog.UploadedImage) error {
		w.Enqueue(img.Key)
		return nil
	}
}

// BackfillReport summarizes a Backfill run.
type BackfillReport struct {
	Scanned int
	Created int
	Skipped int
	Failed  int
}

// Backfill thumbnails every source object under prefix that has no
// thumbnail yet. Individual failures are counted, not returned.
func (p *Processor) Backfill(ctx context.Context, prefix string, concurrency int) (*BackfillReport, error) {
	if p.cfg.Source == nil {
		return nil, errNoSource
	}
	keys, err := p.cfg.Source.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	var mu sync.Mutex
	report := &BackfillReport{Scanned: len(keys)}
	count := func(o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case o == OutcomeCreated:
			report.Created++
		case o.Skipped():
			report.Skipped++
		default:
			report.Failed++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, key := range keys {
		if outcome := p.Classify(key, 1); outcome.Skipped() {
			count(outcome)
			continue
		}
		g.Go(func() error {
			exists, err := p.cfg.Store.Exists(gctx, p.ThumbnailKey(key))
			if err == nil && exists {
				count(OutcomeSkippedExists)
				return nil
			}
			res, _ := p.ProcessKey(gctx, key)
			if res == nil {
				count(OutcomeFailed)
				return nil
			}
			count(res.Outcome)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, ctx.Err()
}
