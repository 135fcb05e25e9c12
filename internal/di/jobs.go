package di

import (
	"fmt"

	"github.com/aristath/signalscope/internal/clientdata"
	"github.com/aristath/signalscope/internal/config"
	"github.com/aristath/signalscope/internal/reliability"
	"github.com/aristath/signalscope/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates every scheduled job and registers it with a new
// scheduler stored on the container. The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.PipelineService == nil {
		return nil, fmt.Errorf("services must be initialized before jobs")
	}

	sched := scheduler.New(log)
	instances := &JobInstances{
		Scoring:   make(map[string]scheduler.Job),
		Lifecycle: make(map[string]scheduler.Job),
	}

	register := func(schedule string, job scheduler.Job) error {
		if err := sched.AddJob(schedule, job); err != nil {
			return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
		}
		return nil
	}

	// Scoring runs for every pipeline; lifecycle only for tracked ones
	for _, source := range container.Registry.Sources() {
		job := scheduler.NewScoringJob(container.PipelineService, source, log)
		if err := register(cfg.Schedules.Scoring, job); err != nil {
			return nil, err
		}
		instances.Scoring[string(source)] = job
	}
	for _, source := range container.Registry.TrackedSources() {
		job := scheduler.NewLifecycleJob(container.PipelineService, source, log)
		if err := register(cfg.Schedules.Lifecycle, job); err != nil {
			return nil, err
		}
		instances.Lifecycle[string(source)] = job
	}

	instances.Aggregate = scheduler.NewAggregateJob(container.PipelineService, log)
	instances.CacheCleanup = clientdata.NewCleanupJob(container.CacheRepo, log)
	instances.CheckDatabases = scheduler.NewCheckDatabasesJob(container.Databases(), log)
	instances.CheckWALCheckpoints = scheduler.NewCheckWALCheckpointsJob(container.Databases(), log)
	instances.Maintenance = reliability.NewMaintenanceJob(container.Databases(), cfg.DataDir, log)

	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.Schedules.Aggregate, instances.Aggregate},
		{cfg.Schedules.CacheCleanup, instances.CacheCleanup},
		{cfg.Schedules.HealthCheck, instances.CheckDatabases},
		{cfg.Schedules.HealthCheck, instances.CheckWALCheckpoints},
		{cfg.Schedules.Maintenance, instances.Maintenance},
	}
	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, log)
		jobs = append(jobs, struct {
			schedule string
			job      scheduler.Job
		}{cfg.Schedules.Backup, instances.Backup})
	}

	for _, j := range jobs {
		if err := register(j.schedule, j.job); err != nil {
			return nil, err
		}
	}

	container.Scheduler = sched
	log.Info().Int("jobs", len(sched.Jobs())).Msg("Jobs registered")
	return instances, nil
}
