// Package scheduler runs jobs on independent fixed intervals.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Job struct {
	Name     string
	Interval time.Duration
	// RunOnStart runs the job once immediately instead of waiting for the first tick.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

type Scheduler struct {
	jobs   []*Job
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewScheduler(l *zap.Logger) *Scheduler {
	return &Scheduler{logger: l}
}

// Add registers a job. Jobs with a non-positive interval are ignored.
func (s *Scheduler) Add(job *Job) {
	if job.Interval <= 0 {
		s.logger.Sugar().Warnw("Job has no interval, not scheduling", zap.String("job", job.Name))
		return
	}
	s.jobs = append(s.jobs, job)
}

func (s *Scheduler) Jobs() []*Job {
	return s.jobs
}

// Start runs every job on its own loop until ctx is cancelled. A job never overlaps with itself;
// a tick that fires while the job is still running is dropped.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go func(job *Job) {
			defer s.wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	s.logger.Sugar().Infow("Scheduler started", zap.Int("jobs", len(s.jobs)))
}

func (s *Scheduler) loop(ctx context.Context, job *Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	if job.RunOnStart {
		s.runJob(ctx, job)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, job)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job *Job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Sugar().Errorw("Job panicked", zap.String("job", job.Name), zap.Any("panic", r))
		}
	}()

	if err := job.Run(ctx); err != nil {
		s.logger.Sugar().Errorw("Job failed",
			zap.String("job", job.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	s.logger.Sugar().Debugw("Job finished",
		zap.String("job", job.Name),
		zap.Duration("duration", time.Since(start)),
	)
}

// Wait blocks until every job loop has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
