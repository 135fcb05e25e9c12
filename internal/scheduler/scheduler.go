// Package scheduler runs the periodic pipeline and maintenance jobs.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/signalscope/internal/scheduler/base"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job.
type Job interface {
	Run() error
	Name() string
}

// statusReporter is implemented by jobs embedding JobBase.
type statusReporter interface {
	Status() base.Status
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name     string       `json:"name"`
	Schedule string       `json:"schedule"`
	Next     time.Time    `json:"next_run"`
	Status   *base.Status `json:"status,omitempty"`
}

type registration struct {
	schedule string
	job      Job
	entry    cron.EntryID
}

// Scheduler manages background jobs.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]registration
}

// New creates a new scheduler.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
		jobs: make(map[string]registration),
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job under a cron schedule with a leading seconds
// field, e.g. "0 30 18 * * *" or "@every 30s". Job names must be unique.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %s is already registered", job.Name())
	}
	id, err := s.cron.AddFunc(schedule, func() {
		s.run(job)
	})
	if err != nil {
		return err
	}
	s.jobs[job.Name()] = registration{schedule: schedule, job: job, entry: id}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")
	return nil
}

func (s *Scheduler) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Interface("panic", r).
				Str("job", job.Name()).
				Msg("Job panicked")
		}
	}()

	s.log.Debug().Str("job", job.Name()).Msg("Running job")
	err := job.Run()
	if errors.Is(err, base.ErrAlreadyRunning) {
		s.log.Warn().Str("job", job.Name()).Msg("Previous run still in progress, skipping tick")
		return
	}
	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Msg("Job failed")
		return
	}
	s.log.Debug().Str("job", job.Name()).Msg("Job completed")
}

// RunNow executes a job immediately (outside schedule).
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}

// Lookup returns the registered job called name.
func (s *Scheduler) Lookup(name string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.jobs[name]
	return reg.job, ok
}

// Jobs lists registered jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for name, reg := range s.jobs {
		info := JobInfo{
			Name:     name,
			Schedule: reg.schedule,
			Next:     s.cron.Entry(reg.entry).Next,
		}
		if sr, ok := reg.job.(statusReporter); ok {
			status := sr.Status()
			info.Status = &status
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
