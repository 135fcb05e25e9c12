package reliability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/signalscope/internal/database"
	"github.com/aristath/signalscope/internal/scheduler/base"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Disk space thresholds in bytes.
const (
	diskCriticalBytes = 500 * 1000 * 1000
	diskLowBytes      = 5 * 1000 * 1000 * 1000
)

// DiskUsageFunc reports free bytes on the filesystem holding path.
type DiskUsageFunc func(ctx context.Context, path string) (uint64, error)

func gopsutilFreeBytes(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// MaintenanceJob checkpoints and compacts the databases and checks free disk
// space. The signals ledger is checkpointed but never vacuumed.
type MaintenanceJob struct {
	base.JobBase
	databases map[string]*database.DB
	dataDir   string
	freeBytes DiskUsageFunc
	log       zerolog.Logger
}

// NewMaintenanceJob creates the periodic maintenance job.
func NewMaintenanceJob(databases map[string]*database.DB, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		freeBytes: gopsutilFreeBytes,
		log:       log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance job.
func (j *MaintenanceJob) Run() error {
	return j.Execute(j.run)
}

func (j *MaintenanceJob) run() error {
	j.log.Info().Msg("Starting maintenance")
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := j.checkDiskSpace(ctx); err != nil {
		return err
	}

	names := make([]string, 0, len(j.databases))
	for name := range j.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		db := j.databases[name]
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
		}
		if db.Profile() == database.ProfileLedger {
			continue
		}
		if err := j.vacuum(ctx, db); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("VACUUM failed")
		}
	}

	j.log.Info().Dur("duration_ms", time.Since(startTime)).Msg("Maintenance completed")
	return nil
}

func (j *MaintenanceJob) vacuum(ctx context.Context, db *database.DB) error {
	before, err := db.GetStats()
	if err != nil {
		return err
	}
	if _, err := db.Conn().ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("VACUUM failed: %w", err)
	}
	after, err := db.GetStats()
	if err != nil {
		return err
	}

	j.log.Info().
		Str("database", db.Name()).
		Int64("pages_before", before.PageCount).
		Int64("pages_after", after.PageCount).
		Int64("reclaimed_bytes", (before.PageCount-after.PageCount)*after.PageSize).
		Msg("VACUUM completed")
	return nil
}

func (j *MaintenanceJob) checkDiskSpace(ctx context.Context) error {
	free, err := j.freeBytes(ctx, j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to read disk usage: %w", err)
	}

	switch {
	case free < diskCriticalBytes:
		j.log.Error().Uint64("free_bytes", free).Msg("Insufficient disk space, skipping maintenance")
		return fmt.Errorf("only %d bytes free on %s", free, j.dataDir)
	case free < diskLowBytes:
		j.log.Warn().Uint64("free_bytes", free).Msg("Disk space running low")
	default:
		j.log.Debug().Uint64("free_bytes", free).Msg("Disk space check")
	}
	return nil
}
