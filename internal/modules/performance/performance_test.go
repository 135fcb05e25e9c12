package performance

import (
	"context"
	"testing"

	"github.com/aristath/signalscope/internal/domain"
	"github.com/aristath/signalscope/internal/modules/signals"
	testingpkg "github.com/aristath/signalscope/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closedSignal(id string, source domain.Source, status domain.SignalStatus, entryDay int, pnl float64) domain.Signal {
	exitDate := testingpkg.Day(entryDay + 3)
	exitPrice := 1000 * (1 + pnl/100)
	return domain.Signal{
		ID:           id,
		InstrumentID: "I" + id,
		Source:       source,
		EntryDate:    testingpkg.Day(entryDay),
		EntryPrice:   1000,
		Status:       status,
		ExitDate:     &exitDate,
		ExitPrice:    &exitPrice,
		PnLPercent:   &pnl,
	}
}

func TestBuild(t *testing.T) {
	closed := []domain.Signal{
		closedSignal("1", domain.SourceGoldenKey, domain.StatusClosedWin, 0, 6),
		closedSignal("2", domain.SourceGoldenKey, domain.StatusClosedWin, 0, 8),
		closedSignal("3", domain.SourceGoldenKey, domain.StatusClosedLoss, 0, -4),
		closedSignal("4", domain.SourceGoldenKey, domain.StatusClosedNeutral, 0, 1),
	}

	rec := Build(testingpkg.Day(10), domain.PeriodWeekly, domain.SourceGoldenKey, closed)
	assert.Equal(t, 4, rec.TotalSignals)
	assert.Equal(t, 2, rec.SuccessfulSignals)
	assert.InDelta(t, 50.0, rec.WinRate, 1e-9)
	assert.InDelta(t, 14.0, rec.TotalProfitPercent, 1e-9)
	assert.InDelta(t, -4.0, rec.TotalLossPercent, 1e-9)
	assert.InDelta(t, 7.0, rec.AverageProfitPerWin, 1e-9)
	assert.InDelta(t, -4.0, rec.AverageLossPerLoss, 1e-9)
	assert.InDelta(t, rec.TotalProfitPercent+rec.TotalLossPercent, rec.NetProfitPercent, 1e-9)
	assert.Equal(t, testingpkg.Day(10), rec.ReportDate)
}

func TestBuild_EmptyIsAllZero(t *testing.T) {
	rec := Build(testingpkg.Day(10), domain.PeriodDaily, domain.SourceOverall, nil)
	assert.Equal(t, domain.AggregatedPerformanceRecord{
		ReportDate: testingpkg.Day(10),
		PeriodType: domain.PeriodDaily,
		Source:     domain.SourceOverall,
	}, rec)
}

func TestBuild_IgnoresActiveSignals(t *testing.T) {
	active := domain.Signal{ID: "a", Status: domain.StatusActive}
	rec := Build(testingpkg.Day(10), domain.PeriodDaily, domain.SourceOverall, []domain.Signal{active})
	assert.Equal(t, 0, rec.TotalSignals)
	assert.Equal(t, 0.0, rec.WinRate)
}

type aggregatorFixture struct {
	signals    *signals.Repository
	records    *Repository
	aggregator *Aggregator
}

func newAggregatorFixture(t *testing.T) *aggregatorFixture {
	t.Helper()
	db := testingpkg.NewTestDB(t, "signals")
	sigs := signals.NewRepository(db.Conn(), zerolog.Nop())
	records := NewRepository(db.Conn(), zerolog.Nop())
	return &aggregatorFixture{
		signals:    sigs,
		records:    records,
		aggregator: NewAggregator(sigs, records, []domain.Source{domain.SourceGoldenKey, domain.SourceWeeklyWatchlist}, zerolog.Nop()),
	}
}

// store inserts s as active, then closes it.
func (f *aggregatorFixture) store(t *testing.T, s domain.Signal) {
	t.Helper()
	ctx := context.Background()
	open := s
	open.Status = domain.StatusActive
	open.ExitDate, open.ExitPrice, open.PnLPercent = nil, nil, nil
	require.NoError(t, f.signals.Insert(ctx, open))
	ok, err := f.signals.Close(ctx, s)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAggregator_ComputeWindowAndSource(t *testing.T) {
	f := newAggregatorFixture(t)
	ctx := context.Background()

	f.store(t, closedSignal("old", domain.SourceGoldenKey, domain.StatusClosedWin, 0, 9))
	f.store(t, closedSignal("gk", domain.SourceGoldenKey, domain.StatusClosedWin, 10, 6))
	f.store(t, closedSignal("ww", domain.SourceWeeklyWatchlist, domain.StatusClosedLoss, 12, -5))

	today := testingpkg.Day(14)

	golden, err := f.aggregator.Compute(ctx, domain.PeriodWeekly, domain.SourceGoldenKey, today)
	require.NoError(t, err)
	assert.Equal(t, 1, golden.TotalSignals, "entries before the window are ignored")
	assert.InDelta(t, 6.0, golden.NetProfitPercent, 1e-9)

	overall, err := f.aggregator.Compute(ctx, domain.PeriodWeekly, domain.SourceOverall, today)
	require.NoError(t, err)
	assert.Equal(t, 2, overall.TotalSignals)
	assert.InDelta(t, 50.0, overall.WinRate, 1e-9)
	assert.InDelta(t, 1.0, overall.NetProfitPercent, 1e-9)

	annual, err := f.aggregator.Compute(ctx, domain.PeriodAnnual, domain.SourceOverall, today)
	require.NoError(t, err)
	assert.Equal(t, 3, annual.TotalSignals)

	stored, err := f.records.Get(ctx, today, domain.PeriodWeekly, domain.SourceOverall)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 2, stored.TotalSignals)
}

func TestAggregator_RecomputeOverwrites(t *testing.T) {
	f := newAggregatorFixture(t)
	ctx := context.Background()
	today := testingpkg.Day(14)

	_, err := f.aggregator.Compute(ctx, domain.PeriodWeekly, domain.SourceGoldenKey, today)
	require.NoError(t, err)

	f.store(t, closedSignal("gk", domain.SourceGoldenKey, domain.StatusClosedWin, 10, 6))
	_, err = f.aggregator.Compute(ctx, domain.PeriodWeekly, domain.SourceGoldenKey, today)
	require.NoError(t, err)

	source := domain.SourceGoldenKey
	all, err := f.records.List(ctx, &source, 0)
	require.NoError(t, err)
	require.Len(t, all, 1, "one record per key")
	assert.Equal(t, 1, all[0].TotalSignals)
}

func TestAggregator_EmptyStillStoresRecord(t *testing.T) {
	f := newAggregatorFixture(t)
	ctx := context.Background()

	rec, err := f.aggregator.Compute(ctx, domain.PeriodDaily, domain.SourceWeeklyWatchlist, testingpkg.Day(1))
	require.NoError(t, err)
	assert.Equal(t, 0, rec.TotalSignals)
	assert.Equal(t, 0.0, rec.WinRate)

	stored, err := f.records.Get(ctx, testingpkg.Day(1), domain.PeriodDaily, domain.SourceWeeklyWatchlist)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestAggregator_RejectsUnknownPeriod(t *testing.T) {
	f := newAggregatorFixture(t)
	_, err := f.aggregator.Compute(context.Background(), domain.PeriodType("hourly"), domain.SourceOverall, testingpkg.Day(1))
	assert.Error(t, err)
}

func TestAggregator_ComputeAll(t *testing.T) {
	f := newAggregatorFixture(t)
	ctx := context.Background()

	records, err := f.aggregator.ComputeAll(ctx, testingpkg.Day(14))
	require.NoError(t, err)
	assert.Len(t, records, 3*len(domain.AllPeriods))

	all, err := f.records.List(ctx, nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3*len(domain.AllPeriods))
}

func TestAggregator_Summary(t *testing.T) {
	f := newAggregatorFixture(t)
	ctx := context.Background()
	today := testingpkg.Day(14)

	f.store(t, closedSignal("a", domain.SourceGoldenKey, domain.StatusClosedWin, 0, 6))
	f.store(t, closedSignal("b", domain.SourceGoldenKey, domain.StatusClosedNeutral, 1, 1))
	f.store(t, closedSignal("c", domain.SourceWeeklyWatchlist, domain.StatusClosedLoss, 12, -5))

	_, err := f.aggregator.Compute(ctx, domain.PeriodWeekly, domain.SourceOverall, today)
	require.NoError(t, err)

	summary, err := f.aggregator.Summary(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalSignals)
	assert.InDelta(t, 100.0/3, summary.WinRate, 1e-9)
	assert.InDelta(t, 2.0, summary.NetProfitPercent, 1e-9)

	golden := summary.BySource[domain.SourceGoldenKey]
	assert.Equal(t, 2, golden.TotalSignals)
	assert.Equal(t, 1, golden.Wins)
	assert.Equal(t, 1, golden.Neutral)
	assert.InDelta(t, 50.0, golden.WinRate, 1e-9)
	assert.InDelta(t, 7.0, golden.NetProfitPercent, 1e-9)

	require.NotNil(t, summary.Weekly)
	assert.Equal(t, 1, summary.Weekly.TotalSignals)
	assert.Nil(t, summary.Monthly)
}
