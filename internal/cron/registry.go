package cron

import "context"

// Job is a unit of scheduled work, such as the auction close sweep.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a worker executes each cycle, in registration
// order. A job name may only be registered once; later duplicates are
// ignored so a misconfigured worker cannot sweep twice per cycle.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

// NewRegistry builds a registry from the given jobs, skipping nils.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{names: make(map[string]struct{})}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register appends a job unless its name is already taken.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	if _, exists := r.names[job.Name()]; exists {
		return
	}
	r.names[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}

// Len reports how many jobs are registered.
func (r *Registry) Len() int {
	return len(r.jobs)
}
