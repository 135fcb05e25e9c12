package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/signalscope/internal/config"
	"github.com/aristath/signalscope/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:     t.TempDir(),
		Port:        8080,
		WorkerCount: 2,
		Schedules: config.ScheduleConfig{
			Scoring:      "0 30 18 * * *",
			Lifecycle:    "0 0 19 * * *",
			Aggregate:    "0 30 19 * * *",
			CacheCleanup: "0 0 3 * * *",
			Backup:       "0 0 4 * * *",
			HealthCheck:  "@hourly",
			Maintenance:  "@weekly",
		},
		Backup: config.BackupConfig{RetentionDays: 30},
	}
}

func TestInitializeDatabases(t *testing.T) {
	cfg := testConfig(t)

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.HistoryDB)
	assert.NotNil(t, container.SignalsDB)
	assert.NotNil(t, container.CacheDB)
	assert.Equal(t, database.ProfileLedger, container.SignalsDB.Profile())
	assert.Equal(t, database.ProfileCache, container.CacheDB.Profile())
	assert.Len(t, container.Databases(), 3)

	for _, name := range []string{"history.db", "signals.db", "cache.db"} {
		assert.FileExists(t, filepath.Join(cfg.DataDir, name))
	}
}

func TestInitializeRepositoriesRequiresDatabases(t *testing.T) {
	assert.Error(t, InitializeRepositories(&Container{}, zerolog.Nop()))
	assert.Error(t, InitializeRepositories(nil, zerolog.Nop()))
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	assert.NotNil(t, container.PipelineService)
	assert.NotNil(t, container.EventManager)
	assert.NotNil(t, container.Metrics)
	assert.NotNil(t, container.Scheduler)
	assert.Nil(t, container.BackupService, "backups are disabled without a bucket")

	assert.Len(t, jobs.Scoring, 3)
	assert.Len(t, jobs.Lifecycle, 2, "buy queue signals are not tracked")
	assert.Nil(t, jobs.Backup)

	// three scoring, two lifecycle, aggregate, cleanup, two checks, maintenance
	assert.Len(t, container.Scheduler.Jobs(), 10)
	_, ok := container.Scheduler.Lookup("scoring_golden_key")
	assert.True(t, ok)
	_, ok = container.Scheduler.Lookup("lifecycle_buy_queue")
	assert.False(t, ok)
}

func TestWireRunsScoringEndToEnd(t *testing.T) {
	cfg := testConfig(t)

	container, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	summary, err := container.PipelineService.RunScoringCycle(context.Background(), "golden_key")
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, summary.CandidatesFound)
}

func TestWireWithBackups(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup = config.BackupConfig{
		Endpoint:        "http://127.0.0.1:9000",
		Bucket:          "signalscope",
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
		Region:          "auto",
		RetentionDays:   14,
	}

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	assert.NotNil(t, container.BackupService)
	require.NotNil(t, jobs.Backup)
	assert.Equal(t, "backup", jobs.Backup.Name())
	assert.Len(t, container.Scheduler.Jobs(), 11)
}

func TestWireBadPipelinesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.PipelinesFile = filepath.Join(cfg.DataDir, "pipelines.yaml")
	require.NoError(t, os.WriteFile(cfg.PipelinesFile, []byte("pipelines: [unclosed"), 0644))

	_, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "failed to initialize services")
}

func TestWireBadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedules.Maintenance = "not a schedule"

	_, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "failed to register job maintenance")
}
