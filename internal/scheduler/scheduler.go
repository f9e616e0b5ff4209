// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"condomini/internal/log"
)

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to the Job interface.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// Scheduler wraps a cron runner whose jobs share one cancellable context.
// Overlapping runs of the same job are skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler using standard five-field cron expressions
// and descriptors such as "@every 15m".
func New(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger.WithComponent(log.ComponentScheduler),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers job under schedule.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() { s.runJob(job) })
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", job.Name(), err)
	}
	s.logger.Info("Job registered", "job", job.Name(), "schedule", schedule)
	return nil
}

// RunNow executes job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	s.logger.InfoContext(ctx, "Running job immediately", "job", job.Name())
	return job.Run(ctx)
}

func (s *Scheduler) runJob(job Job) {
	start := time.Now()
	s.logger.Debug("Running job", "job", job.Name())
	if err := job.Run(s.ctx); err != nil {
		s.logger.Error("Job failed",
			"job", job.Name(),
			log.FieldError, err,
			log.FieldDuration, time.Since(start).Milliseconds())
		return
	}
	s.logger.Debug("Job completed",
		"job", job.Name(),
		log.FieldDuration, time.Since(start).Milliseconds())
}

// Len reports the number of registered jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits
// for running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("Scheduler started", "jobs", s.Len())

	<-ctx.Done()

	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
	return nil
}
