package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/signalscope/internal/database"
	"github.com/aristath/signalscope/internal/events"
)

// StatusMonitor pings the databases periodically and emits an event whenever
// one becomes reachable or unreachable.
type StatusMonitor struct {
	eventManager *events.Manager
	databases    map[string]*database.DB
	log          zerolog.Logger

	mu        sync.Mutex
	available map[string]bool
	stop      chan struct{}
	done      chan struct{}
}

// NewStatusMonitor creates a new status monitor.
func NewStatusMonitor(eventManager *events.Manager, databases map[string]*database.DB, log zerolog.Logger) *StatusMonitor {
	return &StatusMonitor{
		eventManager: eventManager,
		databases:    databases,
		log:          log.With().Str("component", "status_monitor").Logger(),
		available:    make(map[string]bool),
	}
}

// Start begins periodic status monitoring.
func (m *StatusMonitor) Start(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.monitor(interval, m.stop, m.done)
}

// Stop ends monitoring and waits for the loop to exit.
func (m *StatusMonitor) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (m *StatusMonitor) monitor(interval time.Duration, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.checkDatabases()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.checkDatabases()
		}
	}
}

// checkDatabases pings every database and emits on state changes.
// The first observation of a reachable database is not reported.
func (m *StatusMonitor) checkDatabases() {
	names := make([]string, 0, len(m.databases))
	for name := range m.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := m.databases[name].QuickCheck(ctx)
		cancel()

		up := err == nil
		m.mu.Lock()
		previous, seen := m.available[name]
		m.available[name] = up
		m.mu.Unlock()

		if (!seen && up) || (seen && previous == up) {
			continue
		}

		data := &events.StoreStatusData{Database: name, Available: up}
		if err != nil {
			data.Error = err.Error()
			m.log.Error().Err(err).Str("database", name).Msg("Database unreachable")
		} else {
			m.log.Info().Str("database", name).Msg("Database reachable again")
		}
		m.eventManager.Publish("status_monitor", data)
	}
}
