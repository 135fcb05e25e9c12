package domain

import (
	"context"
	"time"
)

// MarketDataSource is the data-acquisition boundary.
// Implementations return ErrExternalFetchFailure (wrapped) when data cannot be
// obtained and a nil bar or empty series when the instrument simply has none.
type MarketDataSource interface {
	// ListInstruments returns every known instrument.
	// A failure here means the store is unreachable.
	ListInstruments(ctx context.Context) ([]Instrument, error)

	// GetDailyBars returns up to limit most recent bars, oldest first
	GetDailyBars(ctx context.Context, instrumentID string, limit int) (PriceSeries, error)

	// GetLatestBar returns the most recent bar
	GetLatestBar(ctx context.Context, instrumentID string) (*Bar, error)
}

// ScoreStore persists ScoreResults keyed by (instrument, source, date).
type ScoreStore interface {
	UpsertScoreResult(ctx context.Context, r ScoreResult) error
	GetScoreResult(ctx context.Context, instrumentID string, source Source, asOf time.Time) (*ScoreResult, error)
	ListScoreResults(ctx context.Context, source Source, asOf time.Time, selectedOnly bool) ([]ScoreResult, error)
	LatestScoreDate(ctx context.Context, source Source) (*time.Time, error)
	// ResetSelection clears the selected flag of every result of one cycle
	ResetSelection(ctx context.Context, source Source, asOf time.Time) error
}

// SignalStore persists Signals. Signals are never deleted.
type SignalStore interface {
	GetByID(ctx context.Context, id string) (*Signal, error)
	GetActive(ctx context.Context, instrumentID string, source Source) (*Signal, error)
	ListActive(ctx context.Context, source Source) ([]Signal, error)
	// Insert fails with ErrPersistenceConflict when an active signal already
	// exists for the same (instrument, source)
	Insert(ctx context.Context, s Signal) error
	// Reaffirm refreshes score fields of an active signal, keeping entry data
	Reaffirm(ctx context.Context, s Signal) error
	// Close transitions an active signal to a terminal status.
	// It reports false when the signal was not active (no-op).
	Close(ctx context.Context, s Signal) (bool, error)
	List(ctx context.Context, filter SignalFilter) ([]Signal, error)
	// ListTerminalSince returns closed signals with entry date on or after since.
	// A nil source matches every pipeline.
	ListTerminalSince(ctx context.Context, source *Source, since time.Time) ([]Signal, error)
}

// PerformanceStore persists AggregatedPerformanceRecords keyed by (date, period, source).
type PerformanceStore interface {
	Upsert(ctx context.Context, rec AggregatedPerformanceRecord) error
	Get(ctx context.Context, reportDate time.Time, period PeriodType, source Source) (*AggregatedPerformanceRecord, error)
	List(ctx context.Context, source *Source, limit int) ([]AggregatedPerformanceRecord, error)
}
