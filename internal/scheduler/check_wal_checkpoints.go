package scheduler

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/aristath/signalscope/internal/database"
)

// walFrameWarning is the WAL size in frames above which a lagging store
// gets a RESTART checkpoint.
const walFrameWarning = 1000

// CheckWALCheckpointsJob watches WAL growth on every store.
type CheckWALCheckpointsJob struct {
	JobBase
	log       zerolog.Logger
	databases map[string]*database.DB
}

// NewCheckWALCheckpointsJob creates the WAL watch job.
func NewCheckWALCheckpointsJob(databases map[string]*database.DB, log zerolog.Logger) *CheckWALCheckpointsJob {
	return &CheckWALCheckpointsJob{
		log:       log.With().Str("job", "check_wal_checkpoints").Logger(),
		databases: databases,
	}
}

// Name returns the job name.
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run checks every store. A store that cannot be probed fails the run.
func (j *CheckWALCheckpointsJob) Run() error {
	return j.Execute(func() error {
		_, err := j.check(context.Background())
		return err
	})
}

func (j *CheckWALCheckpointsJob) check(ctx context.Context) (map[string]database.WALStatus, error) {
	statuses := make(map[string]database.WALStatus, len(j.databases))
	var errs []error

	for _, name := range sortedNames(j.databases) {
		db := j.databases[name]
		if db == nil {
			continue
		}

		st, err := db.CheckpointStatus(ctx)
		if err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("Failed to probe WAL")
			errs = append(errs, err)
			continue
		}
		statuses[name] = st

		event := j.log.Debug()
		lagging := st.Frames > walFrameWarning && st.Checkpointed < st.Frames
		if lagging {
			event = j.log.Warn()
		}
		event.
			Str("database", name).
			Bool("busy", st.Busy).
			Int("wal_frames", st.Frames).
			Int("checkpointed", st.Checkpointed).
			Msg("WAL status")

		if lagging && !st.Busy {
			if err := db.WALCheckpoint("RESTART"); err != nil {
				j.log.Warn().Err(err).Str("database", name).Msg("RESTART checkpoint failed")
			}
		}
	}

	j.log.Info().Int("checked", len(statuses)).Int("failed", len(errs)).Msg("WAL check completed")
	return statuses, errors.Join(errs...)
}
