package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aristath/signalscope/internal/clientdata"
	"github.com/aristath/signalscope/internal/config"
	"github.com/aristath/signalscope/internal/events"
	"github.com/aristath/signalscope/internal/metrics"
	"github.com/aristath/signalscope/internal/modules/indicators"
	"github.com/aristath/signalscope/internal/modules/performance"
	"github.com/aristath/signalscope/internal/modules/pipeline"
	"github.com/aristath/signalscope/internal/modules/ranking"
	"github.com/aristath/signalscope/internal/modules/signals"
	"github.com/aristath/signalscope/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices builds the pipeline stack, the event bus, metrics and
// the optional backup service.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.SignalRepo == nil {
		return fmt.Errorf("repositories must be initialized before services")
	}

	settings, err := config.LoadPipelines(cfg.PipelinesFile)
	if err != nil {
		return err
	}
	container.Pipelines = settings

	registry, err := pipeline.NewRegistry(settings, log)
	if err != nil {
		return fmt.Errorf("failed to build pipeline registry: %w", err)
	}
	container.Registry = registry

	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)
	container.Metrics = metrics.New()
	container.SeriesCache = clientdata.NewSeriesCache(container.CacheRepo, log)

	container.LifecycleManager = signals.NewManager(
		container.SignalRepo,
		container.HistoryRepo,
		registry.Policies(),
		log,
	)
	container.Aggregator = performance.NewAggregator(
		container.SignalRepo,
		container.PerformanceRepo,
		registry.TrackedSources(),
		log,
	)

	container.PipelineService = pipeline.NewService(pipeline.Deps{
		Registry:   registry,
		Source:     container.HistoryRepo,
		Cache:      container.SeriesCache,
		Classifier: ranking.NewClassifier(settings.Classification),
		Scores:     container.ScoreRepo,
		Signals:    container.SignalRepo,
		Lifecycle:  container.LifecycleManager,
		Aggregator: container.Aggregator,
		Events:     container.EventManager,
		Metrics:    container.Metrics,
		Params:     indicators.DefaultParams(),
		Workers:    cfg.WorkerCount,
	}, log)

	if cfg.Backup.Enabled() {
		client, err := reliability.NewS3Client(ctx, reliability.S3Config{
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			Bucket:          cfg.Backup.Bucket,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}
		container.BackupService = reliability.NewBackupService(
			container.Databases(),
			client,
			filepath.Join(cfg.DataDir, "backup-staging"),
			cfg.Backup.RetentionDays,
			log,
		)
	}

	log.Info().
		Int("pipelines", len(registry.Sources())).
		Bool("backups", container.BackupService != nil).
		Msg("Services initialized")
	return nil
}
