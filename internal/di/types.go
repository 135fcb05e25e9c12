// Package di provides dependency injection wiring and initialization.
//
// The Container is the single source of truth for every service instance and
// is handed to the HTTP server and the scheduler.
package di

import (
	"sort"

	"github.com/aristath/signalscope/internal/clientdata"
	"github.com/aristath/signalscope/internal/config"
	"github.com/aristath/signalscope/internal/database"
	"github.com/aristath/signalscope/internal/events"
	"github.com/aristath/signalscope/internal/metrics"
	"github.com/aristath/signalscope/internal/modules/history"
	"github.com/aristath/signalscope/internal/modules/performance"
	"github.com/aristath/signalscope/internal/modules/pipeline"
	"github.com/aristath/signalscope/internal/modules/signals"
	"github.com/aristath/signalscope/internal/reliability"
	"github.com/aristath/signalscope/internal/scheduler"
)

// Container holds all application dependencies.
type Container struct {
	// Databases.
	HistoryDB *database.DB // market data supplied by data acquisition
	SignalsDB *database.DB // score results, signals, performance (audit trail)
	CacheDB   *database.DB // derived series and indicator snapshots

	// Repositories.
	HistoryRepo     *history.Repository
	ScoreRepo       *signals.ScoreRepository
	SignalRepo      *signals.Repository
	PerformanceRepo *performance.Repository
	CacheRepo       *clientdata.Repository

	// Services.
	Pipelines        *config.PipelineSettings
	Registry         *pipeline.Registry
	SeriesCache      *clientdata.SeriesCache
	LifecycleManager *signals.Manager
	Aggregator       *performance.Aggregator
	PipelineService  *pipeline.Service
	EventBus         *events.Bus
	EventManager     *events.Manager
	Metrics          *metrics.Recorder
	BackupService    *reliability.BackupService // nil when backups are disabled

	Scheduler *scheduler.Scheduler
}

// Databases returns the databases keyed by name.
func (c *Container) Databases() map[string]*database.DB {
	dbs := make(map[string]*database.DB, 3)
	for name, db := range map[string]*database.DB{
		database.NameHistory: c.HistoryDB,
		database.NameSignals: c.SignalsDB,
		database.NameCache:   c.CacheDB,
	} {
		if db != nil {
			dbs[name] = db
		}
	}
	return dbs
}

func sortedKeys(dbs map[string]*database.DB) []string {
	names := make([]string, 0, len(dbs))
	for name := range dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every open database.
func (c *Container) Close() {
	for _, db := range c.Databases() {
		_ = db.Close()
	}
}

// JobInstances holds the registered jobs for manual triggering and tests.
type JobInstances struct {
	Scoring             map[string]scheduler.Job
	Lifecycle           map[string]scheduler.Job
	Aggregate           scheduler.Job
	CacheCleanup        scheduler.Job
	CheckDatabases      scheduler.Job
	CheckWALCheckpoints scheduler.Job
	Maintenance         scheduler.Job
	Backup              scheduler.Job // nil when backups are disabled
}
