package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Handler func(ctx context.Context, job Job) error

type Runner struct {
	queue       Queue
	handlers    map[string]Handler
	concurrency int
	wait        time.Duration
	log         *zap.Logger
}

func NewRunner(queue Queue, concurrency int, log *zap.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{
		queue:       queue,
		handlers:    make(map[string]Handler),
		concurrency: concurrency,
		wait:        2 * time.Second,
		log:         log,
	}
}

// Register must be called before Run.
func (r *Runner) Register(jobType string, h Handler) {
	r.handlers[jobType] = h
}

// Run starts the workers and blocks until ctx is cancelled and every in-flight job
// has returned. Handlers run on a context detached from ctx so a shutdown does not
// abort a job halfway; handlers bound their own runtime.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < r.concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r.loop(ctx, worker)
		}(i)
	}

	r.log.Info("job runner started", zap.Int("concurrency", r.concurrency))
	wg.Wait()
	r.log.Info("job runner stopped")
}

func (r *Runner) loop(ctx context.Context, worker int) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := r.queue.Dequeue(ctx, r.wait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error("dequeue failed", zap.Int("worker", worker), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}

		r.dispatch(context.WithoutCancel(ctx), *job)
	}
}

func (r *Runner) dispatch(ctx context.Context, job Job) {
	log := r.log.With(zap.String("job_id", job.ID.String()), zap.String("job_type", job.Type))

	h, ok := r.handlers[job.Type]
	if !ok {
		log.Error("no handler registered for job type")
		return
	}

	start := time.Now()
	if err := r.safeCall(ctx, h, job); err != nil {
		log.Error("job failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return
	}
	log.Info("job done", zap.Duration("duration", time.Since(start)))
}

func (r *Runner) safeCall(ctx context.Context, h Handler, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in job handler: %v", rec)
		}
	}()
	return h(ctx, job)
}
