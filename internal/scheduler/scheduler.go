// Package scheduler runs periodic jobs such as pipeline rebuilds and model
// reloads.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Job is a named periodic task. Runs of the same job never overlap.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds one run; zero means no limit beyond Stop.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler runs jobs on fixed intervals. The first run of each job waits
// one interval.
type Scheduler struct {
	cron   *gocron.Scheduler
	logger *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	names   map[string]bool
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// New creates a scheduler in UTC.
func New(logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   gocron.NewScheduler(time.UTC),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		names:  make(map[string]bool),
	}
}

// Add registers job.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a run function")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.names[job.Name] {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	_, err := s.cron.Every(job.Interval).Tag(job.Name).SingletonMode().WaitForSchedule().Do(s.runner(job))
	if err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name, err)
	}
	s.names[job.Name] = true
	s.logger.Info("job scheduled", "job", job.Name, "interval", job.Interval)
	return nil
}

func (s *Scheduler) runner(job Job) func() {
	return func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()
		ctx, cancel := s.ctx, context.CancelFunc(func() {})
		if job.Timeout > 0 {
			ctx, cancel = context.WithTimeout(s.ctx, job.Timeout)
		}
		defer cancel()

		start := time.Now()
		s.logger.Info("job started", "job", job.Name)
		if err := job.Run(ctx); err != nil {
			s.logger.Error("job failed", "job", job.Name, "duration", time.Since(start), "error", err)
			return
		}
		s.logger.Info("job finished", "job", job.Name, "duration", time.Since(start))
	}
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.StartAsync()
}

// RunNow triggers a registered job immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	known := s.names[name]
	s.mu.Unlock()
	if !known {
		return fmt.Errorf("unknown job %s", name)
	}
	return s.cron.RunByTag(name)
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.cron.Stop()
	s.wg.Wait()
}
