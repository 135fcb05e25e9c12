package scheduler

import "github.com/aristath/signalscope/internal/scheduler/base"

// JobBase re-exports base.JobBase so jobs in this package can embed it directly.
type JobBase = base.JobBase

// ErrAlreadyRunning is returned by Run while a previous run is in progress.
var ErrAlreadyRunning = base.ErrAlreadyRunning
