// Package base provides the run bookkeeping shared by scheduler jobs.
package base

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned when a job is triggered while a previous run
// has not finished.
var ErrAlreadyRunning = errors.New("job already running")

// Status describes the run history of a job.
type Status struct {
	Running      bool          `json:"running"`
	Runs         int           `json:"runs"`
	Failures     int           `json:"failures"`
	LastStarted  time.Time     `json:"last_started,omitempty"`
	LastDuration time.Duration `json:"last_duration_ns"`
	LastError    string        `json:"last_error,omitempty"`
}

// JobBase guards a job against overlapping runs and records its outcome.
// Jobs embed it and wrap their work in Execute.
type JobBase struct {
	mu     sync.Mutex
	status Status
}

// Execute runs fn unless a previous Execute is still in progress.
// A panic in fn is recorded and returned as an error.
func (j *JobBase) Execute(fn func() error) (err error) {
	j.mu.Lock()
	if j.status.Running {
		j.mu.Unlock()
		return ErrAlreadyRunning
	}
	j.status.Running = true
	started := time.Now()
	j.status.LastStarted = started
	j.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}

		j.mu.Lock()
		defer j.mu.Unlock()
		j.status.Running = false
		j.status.Runs++
		j.status.LastDuration = time.Since(started)
		j.status.LastError = ""
		if err != nil {
			j.status.Failures++
			j.status.LastError = err.Error()
		}
	}()

	return fn()
}

// Status returns a snapshot of the run history.
func (j *JobBase) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}
