package cron

import (
	"context"
	"fmt"
	"time"
)

// Job is a unit of scheduled work run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Cadenced is implemented by jobs that should run less often than the
// service tick.
type Cadenced interface {
	Cadence() time.Duration
}

func cadenceOf(job Job, fallback time.Duration) time.Duration {
	if c, ok := job.(Cadenced); ok && c.Cadence() > 0 {
		return c.Cadence()
	}
	return fallback
}

// Registry keeps jobs in registration order. Names key the cadence
// bookkeeping and metric labels, so they must be unique.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register adds job. Nil jobs are ignored.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("cron job %T has no name", job)
	}
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}
