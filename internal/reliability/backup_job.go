package reliability

import (
	"context"
	"time"

	"github.com/aristath/signalscope/internal/scheduler/base"
	"github.com/rs/zerolog"
)

// BackupJob uploads a fresh backup and rotates old ones.
type BackupJob struct {
	base.JobBase
	service *BackupService
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates the scheduled backup job.
func NewBackupJob(service *BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service: service,
		timeout: 30 * time.Minute,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup.
func (j *BackupJob) Run() error {
	return j.Execute(j.run)
}

func (j *BackupJob) run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.service.CreateAndUpload(ctx); err != nil {
		j.log.Error().Err(err).Msg("Backup failed")
		return err
	}

	// Rotation failures leave extra backups behind, never fewer
	if _, err := j.service.RotateOldBackups(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}
