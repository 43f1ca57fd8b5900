package cron

import (
	"context"
	"fmt"
)

// Job is one unit of periodic work. Jobs run sequentially in registration
// order, so a slow job delays the ones after it.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// counted jobs report how many records their last run touched.
type counted interface {
	Processed() int
}

type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

// NewRegistry registers jobs in order. Nil entries are skipped so optional
// jobs can be passed straight from the wiring code.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{names: make(map[string]struct{}, len(jobs))}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register rejects a second job with the same name; metrics and logs are
// keyed by it.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if r.names == nil {
		r.names = map[string]struct{}{}
	}
	if _, dup := r.names[job.Name()]; dup {
		return fmt.Errorf("cron job %q registered twice", job.Name())
	}
	r.names[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}
