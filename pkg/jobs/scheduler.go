package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/meetup/pkg/observability"
)

// DefaultRunTimeout bounds a single job run
const DefaultRunTimeout = 5 * time.Minute

// Job is a named unit of periodic work
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler runs jobs on cron schedules
type Scheduler struct {
	cron    *cron.Cron
	logger  logrus.FieldLogger
	metrics *observability.Metrics
	timeout time.Duration

	mu   sync.Mutex
	jobs map[string]Job
}

// NewScheduler creates a scheduler. Overlapping runs of the same job are
// skipped. metrics may be nil.
func NewScheduler(logger *logrus.Logger, metrics *observability.Metrics) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	cronLogger := cron.PrintfLogger(logger.WithField("component", "cron"))

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
		),
		logger:  logger.WithField("component", "jobs"),
		metrics: metrics,
		timeout: DefaultRunTimeout,
		jobs:    make(map[string]Job),
	}
}

// SetTimeout changes the per-run timeout
func (s *Scheduler) SetTimeout(timeout time.Duration) {
	s.timeout = timeout
}

// Add registers a job. An empty schedule registers the job for RunNow
// without scheduling it.
func (s *Scheduler) Add(job Job, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}

	if schedule != "" {
		if _, err := s.cron.AddFunc(schedule, func() { _ = s.run(context.Background(), job) }); err != nil {
			return fmt.Errorf("failed to schedule job %s: %w", job.Name, err)
		}
		s.logger.WithField("job", job.Name).WithField("schedule", schedule).Info("Job scheduled")
	}
	s.jobs[job.Name] = job
	return nil
}

// Names lists the registered jobs
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunNow runs a registered job immediately and returns its error
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	return s.run(ctx, job)
}

// Start starts the cron loop in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs or ctx, whichever ends first
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) (err error) {
	log := s.logger.WithField("job", job.Name)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
		if s.metrics != nil {
			s.metrics.RecordJobRun(job.Name, err)
		}
		log = log.WithField("duration", time.Since(start))
		if err != nil {
			log.WithError(err).Error("Job failed")
			return
		}
		log.Info("Job completed")
	}()

	log.Debug("Job started")
	return job.Run(ctx)
}
