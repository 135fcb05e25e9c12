package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/signalscope/internal/config"
	"github.com/aristath/signalscope/internal/database"
	"github.com/rs/zerolog"
)

// databaseSpecs lists the databases in initialization order.
var databaseSpecs = []struct {
	name    string
	profile database.DatabaseProfile
}{
	{database.NameHistory, database.ProfileStandard},
	{database.NameSignals, database.ProfileLedger}, // Maximum safety for the audit trail
	{database.NameCache, database.ProfileCache},
}

// InitializeDatabases opens and migrates the history, signals and cache databases.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	for _, spec := range databaseSpecs {
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, spec.name+".db"),
			Profile: spec.profile,
			Name:    spec.name,
		})
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to initialize %s database: %w", spec.name, err)
		}

		switch spec.name {
		case database.NameHistory:
			container.HistoryDB = db
		case database.NameSignals:
			container.SignalsDB = db
		case database.NameCache:
			container.CacheDB = db
		}

		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply %s schema: %w", spec.name, err)
		}
	}

	log.Info().Int("databases", len(databaseSpecs)).Msg("Databases initialized")
	return container, nil
}
