// internal/sweeper/runner.go
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is a recurring idempotent task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner runs each job on its own ticker. Jobs are independent: a slow or
// failing job never delays another.
type Runner struct {
	jobs []Job
	log  logrus.FieldLogger
}

// NewRunner returns a Runner for jobs.
func NewRunner(log logrus.FieldLogger, jobs ...Job) *Runner {
	return &Runner{jobs: jobs, log: log}
}

// Run starts every job immediately and then once per interval, until ctx
// ends. It returns after all jobs have stopped.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range r.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			r.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	logger := r.log.WithField("job", job.Name)
	logger.Infof("scheduled every %s", job.Interval)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		r.runOnce(ctx, job, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job, logger logrus.FieldLogger) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		// The next tick is the retry.
		logger.Warnf("run failed: %v", err)
		return
	}
	logger.Debugf("run finished in %s", time.Since(start))
}
