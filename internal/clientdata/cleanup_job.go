package clientdata

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/signalscope/internal/scheduler/base"
)

// CleanupJob sweeps cache.db: expired rows first, then rows built from bars
// older than StaleBarAge.
type CleanupJob struct {
	base.JobBase
	repo *Repository
	log  zerolog.Logger
}

// NewCleanupJob creates the cache sweep job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}

// Run sweeps every cache table.
func (j *CleanupJob) Run() error {
	return j.Execute(j.sweep)
}

func (j *CleanupJob) sweep() error {
	expired, err := j.repo.DeleteAllExpired()
	if err != nil {
		return err
	}

	cutoff := j.repo.now().Add(-StaleBarAge)
	var expiredTotal, staleTotal int64
	for _, table := range AllTables {
		stale, err := j.repo.DeleteBuiltBefore(table, cutoff)
		if err != nil {
			return fmt.Errorf("stale sweep: %w", err)
		}
		if expired[table] > 0 || stale > 0 {
			j.log.Debug().
				Str("table", table).
				Int64("expired", expired[table]).
				Int64("stale", stale).
				Msg("Swept cache table")
		}
		expiredTotal += expired[table]
		staleTotal += stale
	}

	j.log.Info().
		Int64("expired", expiredTotal).
		Int64("stale", staleTotal).
		Time("stale_cutoff", cutoff).
		Msg("Cache cleanup completed")
	return nil
}
