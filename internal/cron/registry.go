package cron

import (
	"context"
	"time"
)

// Job is one housekeeping task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule pairs a job with its cadence. A zero Every means the job runs on every tick.
type Schedule struct {
	Job   Job
	Every time.Duration
}

// Registry holds jobs in registration order along with when each last ran.
type Registry struct {
	schedules []Schedule
	lastRun   map[string]time.Time
}

// NewRegistry registers each job to run on every tick.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{lastRun: map[string]time.Time{}}
	for _, job := range jobs {
		r.Register(job, 0)
	}
	return r
}

func (r *Registry) Register(job Job, every time.Duration) {
	if job == nil {
		return
	}
	if every < 0 {
		every = 0
	}
	r.schedules = append(r.schedules, Schedule{Job: job, Every: every})
}

// Schedules returns a copy of the registrations in order.
func (r *Registry) Schedules() []Schedule {
	return append([]Schedule(nil), r.schedules...)
}

// Find looks a job up by name.
func (r *Registry) Find(name string) (Job, bool) {
	for _, s := range r.schedules {
		if s.Job.Name() == name {
			return s.Job, true
		}
	}
	return nil, false
}

// Jobs returns a copy of every registered job.
func (r *Registry) Jobs() []Job {
	out := make([]Job, 0, len(r.schedules))
	for _, s := range r.schedules {
		out = append(out, s.Job)
	}
	return out
}

// Due lists jobs whose cadence has elapsed at now. Jobs that never ran are always due.
func (r *Registry) Due(now time.Time) []Job {
	var due []Job
	for _, s := range r.schedules {
		last, ran := r.lastRun[s.Job.Name()]
		if !ran || s.Every == 0 || !now.Before(last.Add(s.Every)) {
			due = append(due, s.Job)
		}
	}
	return due
}

// MarkRan records an attempt, successful or not, so a failing job waits for its next slot.
func (r *Registry) MarkRan(name string, at time.Time) {
	r.lastRun[name] = at
}
