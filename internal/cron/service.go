package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const defaultInterval = 5 * time.Minute

// Recorder receives one call per finished job. *metrics.CronJobMetrics
// satisfies it.
type Recorder interface {
	JobFinished(job string, took time.Duration, processed int, err error)
	CycleSkipped()
}

type nopRecorder struct{}

func (nopRecorder) JobFinished(string, time.Duration, int, error) {}
func (nopRecorder) CycleSkipped()                                 {}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  Recorder
	Interval time.Duration
	// JobTimeout bounds each job; zero means jobs share the cycle context.
	JobTimeout time.Duration
	Clock      func() time.Time
}

// Service runs every registered job once per interval, on one replica at a time.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    Recorder
	interval   time.Duration
	jobTimeout time.Duration
	now        func() time.Time
}

// JobResult is what one job did during a cycle.
type JobResult struct {
	Job       string
	Took      time.Duration
	Processed int
	Err       error
}

// CycleReport summarises a cycle. Skipped is set when the lock was held elsewhere.
type CycleReport struct {
	Skipped bool
	Results []JobResult
}

// Failed lists the jobs that returned an error.
func (r CycleReport) Failed() []string {
	var names []string
	for _, res := range r.Results {
		if res.Err != nil {
			names = append(names, res.Job)
		}
	}
	return names
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("cron: logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("cron: lock required")
	}
	s := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
		now:        params.Clock,
	}
	if s.registry == nil {
		s.registry = &Registry{}
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes one locked cycle. Job failures are reported, not returned;
// the error is reserved for lock problems.
func (s *Service) RunOnce(ctx context.Context) (CycleReport, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return CycleReport{}, fmt.Errorf("acquire cron lock: %w", err)
	}
	if !locked {
		s.metrics.CycleSkipped()
		s.logg.Info(ctx, "cron lock held by another replica, skipping cycle")
		return CycleReport{Skipped: true}, nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "release cron lock", err)
		}
	}()

	jobs := s.registry.Jobs()
	report := CycleReport{Results: make([]JobResult, 0, len(jobs))}
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		report.Results = append(report.Results, s.runJob(ctx, job))
	}
	if failed := report.Failed(); len(failed) > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "failed_jobs", failed), "cron cycle finished with failures")
	}
	return report, nil
}

func (s *Service) runJob(ctx context.Context, job Job) JobResult {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, s.jobTimeout)
		defer cancel()
	}

	started := s.now()
	err := runGuarded(jobCtx, job)
	res := JobResult{Job: name, Took: s.now().Sub(started), Err: err}
	if c, ok := job.(counted); ok && err == nil {
		res.Processed = c.Processed()
	}
	s.metrics.JobFinished(name, res.Took, res.Processed, err)

	logCtx := s.logg.WithFields(jobCtx, map[string]any{
		"duration_ms": res.Took.Milliseconds(),
		"processed":   res.Processed,
	})
	if err != nil {
		s.logg.Error(logCtx, "cron job failed", err)
	} else {
		s.logg.Info(logCtx, "cron job done")
	}
	return res
}

// runGuarded turns a panicking job into an ordinary failure so the rest of
// the cycle still runs.
func runGuarded(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}
