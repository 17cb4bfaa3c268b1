package cron

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/pkg/logger"
	"github.com/kicksnairobi/footwear-backend/pkg/metrics"
)

const defaultInterval = time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	Now      func() time.Time
}

// Service ticks at Interval and, while holding the cluster lock, runs every
// job whose own cadence has elapsed.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
	lastRun  map[string]time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		now:      params.Now,
		lastRun:  map[string]time.Time{},
	}
	if s.registry == nil {
		s.registry, _ = NewRegistry()
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
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	due := s.dueJobs()
	if len(due) == 0 {
		return nil
	}
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !locked {
		s.metrics.IncSkippedCycle()
		s.logg.Info(ctx, "cron.lock_held_elsewhere")
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron.lock_release_failed", err)
		}
	}()

	for i, job := range due {
		if i > 0 {
			// Long jobs can outlast the TTL; stop rather than run alongside a new holder.
			if err := s.lock.Extend(ctx); err != nil {
				return err
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		s.runJob(ctx, job)
	}
	return nil
}

// dueJobs returns jobs that never ran or whose cadence has elapsed. Jobs
// without a cadence run every tick.
func (s *Service) dueJobs() []Job {
	now := s.now()
	var due []Job
	for _, job := range s.registry.Jobs() {
		last, ran := s.lastRun[job.Name()]
		if ran && now.Sub(last) < cadenceOf(job, s.interval) {
			continue
		}
		due = append(due, job)
	}
	return due
}

func (s *Service) runJob(ctx context.Context, job Job) {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)
	s.lastRun[name] = s.now()

	start := time.Now()
	err := job.Run(ctx)
	took := time.Since(start)
	s.metrics.ObserveRun(name, took, s.now(), err)

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron.job_failed", err)
		return
	}
	s.logg.Info(ctx, "cron.job_done")
}
