package di

import (
	"fmt"

	"github.com/aristath/signalscope/internal/clientdata"
	"github.com/aristath/signalscope/internal/modules/history"
	"github.com/aristath/signalscope/internal/modules/performance"
	"github.com/aristath/signalscope/internal/modules/signals"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories on top of the open databases.
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.HistoryDB == nil || container.SignalsDB == nil || container.CacheDB == nil {
		return fmt.Errorf("databases must be initialized before repositories")
	}

	container.HistoryRepo = history.NewRepository(container.HistoryDB.Conn(), log)
	container.ScoreRepo = signals.NewScoreRepository(container.SignalsDB.Conn(), log)
	container.SignalRepo = signals.NewRepository(container.SignalsDB.Conn(), log)
	container.PerformanceRepo = performance.NewRepository(container.SignalsDB.Conn(), log)
	container.CacheRepo = clientdata.NewRepository(container.CacheDB.Conn())

	log.Debug().Msg("Repositories initialized")
	return nil
}
