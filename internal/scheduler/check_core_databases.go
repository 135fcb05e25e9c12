package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/signalscope/internal/database"
	"github.com/rs/zerolog"
)

// CheckDatabasesJob verifies the integrity of every SQLite database.
type CheckDatabasesJob struct {
	JobBase
	log       zerolog.Logger
	databases map[string]*database.DB
}

// NewCheckDatabasesJob creates a new CheckDatabasesJob.
func NewCheckDatabasesJob(databases map[string]*database.DB, log zerolog.Logger) *CheckDatabasesJob {
	return &CheckDatabasesJob{
		log:       log.With().Str("job", "check_databases").Logger(),
		databases: databases,
	}
}

// Name returns the job name.
func (j *CheckDatabasesJob) Name() string {
	return "check_databases"
}

// Run executes the integrity check.
func (j *CheckDatabasesJob) Run() error {
	return j.Execute(j.run)
}

func (j *CheckDatabasesJob) run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var errs []error
	for _, name := range sortedNames(j.databases) {
		db := j.databases[name]
		if db == nil {
			j.log.Warn().Str("database", name).Msg("Database not initialized, skipping")
			continue
		}

		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().
				Err(err).
				Str("database", name).
				Msg("Database integrity check failed")
			errs = append(errs, fmt.Errorf("database %s is corrupted: %w", name, err))
			continue
		}

		j.log.Debug().Str("database", name).Msg("Database integrity OK")
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	j.log.Info().Msg("All databases passed integrity check")
	return nil
}

func sortedNames(databases map[string]*database.DB) []string {
	names := make([]string, 0, len(databases))
	for name := range databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
