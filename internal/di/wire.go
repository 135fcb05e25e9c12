package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/signalscope/internal/config"
)

// Wire builds the container in dependency order: databases, repositories,
// services, jobs. Databases opened before a failing stage are closed.
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	var jobs *JobInstances
	stages := []struct {
		name string
		run  func() error
	}{
		{"repositories", func() error { return InitializeRepositories(container, log) }},
		{"services", func() error { return InitializeServices(ctx, container, cfg, log) }},
		{"jobs", func() (err error) {
			jobs, err = RegisterJobs(container, cfg, log)
			return err
		}},
	}
	for _, stage := range stages {
		if err := stage.run(); err != nil {
			log.Error().Err(err).Str("stage", stage.name).Msg("Wiring failed")
			container.Close()
			return nil, nil, fmt.Errorf("failed to initialize %s: %w", stage.name, err)
		}
	}

	log.Info().
		Strs("databases", sortedKeys(container.Databases())).
		Int("jobs", len(container.Scheduler.Jobs())).
		Msg("Dependency injection wiring completed")
	return container, jobs, nil
}
