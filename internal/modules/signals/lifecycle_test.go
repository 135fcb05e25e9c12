package signals

import (
	"context"
	"testing"

	"github.com/aristath/signalscope/internal/domain"
	testingpkg "github.com/aristath/signalscope/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPolicy = Policy{
	ProfitThreshold: 5,
	LossThreshold:   -3,
	MaxHoldDays:     7,
	MinHoldDays:     1,
}

type panickingPrices struct{}

func (panickingPrices) GetLatestBar(ctx context.Context, instrumentID string) (*domain.Bar, error) {
	panic("feed exploded")
}

type lifecycleFixture struct {
	repo    *Repository
	prices  *testingpkg.MockMarketDataSource
	manager *Manager
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	repo := newTestRepository(t)
	prices := testingpkg.NewMockMarketDataSource()
	return &lifecycleFixture{
		repo:    repo,
		prices:  prices,
		manager: NewManager(repo, prices, map[domain.Source]Policy{domain.SourceGoldenKey: testPolicy}, zerolog.Nop()),
	}
}

// priceAt gives id a history whose latest bar closes at price on day.
func (f *lifecycleFixture) priceAt(id string, day int, price float64) {
	s := testingpkg.FlatSeries(id, day, 1000, 1000)
	s = testingpkg.AppendBar(s, testingpkg.FlatBar(0, price, 1000))
	f.prices.SetSeries(id, s)
}

func TestPolicy_Decide(t *testing.T) {
	s := domain.Signal{EntryDate: testingpkg.Day(0)}
	tests := []struct {
		name     string
		pnl      float64
		today    int
		expected domain.SignalStatus
	}{
		{name: "profit threshold reached", pnl: 5, today: 2, expected: domain.StatusClosedWin},
		{name: "loss threshold reached", pnl: -3, today: 2, expected: domain.StatusClosedLoss},
		{name: "within band", pnl: 1, today: 2, expected: domain.StatusActive},
		{name: "horizon reached", pnl: 1, today: 7, expected: domain.StatusClosedNeutral},
		{name: "win beats horizon", pnl: 8, today: 9, expected: domain.StatusClosedWin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, testPolicy.Decide(s, tt.pnl, testingpkg.Day(tt.today)))
		})
	}
}

func TestPnLPercent(t *testing.T) {
	assert.InDelta(t, 6.0, PnLPercent(1000, 1060), 1e-9)
	assert.InDelta(t, -4.0, PnLPercent(1000, 960), 1e-9)
	assert.Equal(t, 0.0, PnLPercent(0, 960))
}

func TestManager_ClosesWinner(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.Insert(ctx, activeSignal("y", "Y", domain.SourceGoldenKey, 0, 1000)))
	f.priceAt("Y", 3, 1060)

	summary, err := f.manager.Evaluate(ctx, domain.SourceGoldenKey, testingpkg.Day(4))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Evaluated)
	assert.Equal(t, 1, summary.ClosedWin)
	assert.Equal(t, 0, summary.ForceClosed)
	require.Len(t, summary.Closed, 1)

	got, err := f.repo.GetByID(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosedWin, got.Status)
	require.NotNil(t, got.ExitPrice)
	assert.Equal(t, 1060.0, *got.ExitPrice)
	require.NotNil(t, got.PnLPercent)
	assert.InDelta(t, 6.0, *got.PnLPercent, 1e-9)
	require.NotNil(t, got.ExitDate)
	assert.Equal(t, testingpkg.Day(4), *got.ExitDate)
}

func TestManager_ForceClosesWithoutPrice(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.Insert(ctx, activeSignal("z", "Z", domain.SourceGoldenKey, 0, 1000)))

	summary, err := f.manager.Evaluate(ctx, domain.SourceGoldenKey, testingpkg.Day(8))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ClosedNeutral)
	assert.Equal(t, 1, summary.ForceClosed)

	got, err := f.repo.GetByID(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosedNeutral, got.Status)
	assert.Equal(t, 1000.0, *got.ExitPrice)
	assert.Equal(t, 0.0, *got.PnLPercent)
}

func TestManager_LossHorizonAndStillActive(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.Insert(ctx, activeSignal("loss", "L", domain.SourceGoldenKey, 0, 1000)))
	require.NoError(t, f.repo.Insert(ctx, activeSignal("flat", "F", domain.SourceGoldenKey, 0, 1000)))
	require.NoError(t, f.repo.Insert(ctx, activeSignal("old", "O", domain.SourceGoldenKey, -5, 1000)))
	require.NoError(t, f.repo.Insert(ctx, activeSignal("new", "N", domain.SourceGoldenKey, 3, 1000)))
	f.priceAt("L", 2, 960)
	f.priceAt("F", 2, 1010)
	f.priceAt("O", 2, 1010)
	f.priceAt("N", 2, 1100)

	summary, err := f.manager.Evaluate(ctx, domain.SourceGoldenKey, testingpkg.Day(3))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Evaluated)
	assert.Equal(t, 1, summary.TooRecent)
	assert.Equal(t, 1, summary.ClosedLoss)
	assert.Equal(t, 1, summary.ClosedNeutral)
	assert.Equal(t, 1, summary.StillActive)

	old, err := f.repo.GetByID(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosedNeutral, old.Status)
	assert.Equal(t, 1010.0, *old.ExitPrice)
	assert.InDelta(t, 1.0, *old.PnLPercent, 1e-9)

	flat, err := f.repo.GetByID(ctx, "flat")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, flat.Status)

	fresh, err := f.repo.GetByID(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, fresh.Status, "held less than the minimum period")
}

func TestManager_TerminalSignalsAreNotReevaluated(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.Insert(ctx, activeSignal("y", "Y", domain.SourceGoldenKey, 0, 1000)))
	f.priceAt("Y", 3, 1060)

	_, err := f.manager.Evaluate(ctx, domain.SourceGoldenKey, testingpkg.Day(4))
	require.NoError(t, err)

	f.priceAt("Y", 5, 900)
	summary, err := f.manager.Evaluate(ctx, domain.SourceGoldenKey, testingpkg.Day(6))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Evaluated)

	got, err := f.repo.GetByID(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosedWin, got.Status)
	assert.Equal(t, 1060.0, *got.ExitPrice)
}

func TestManager_PanicForceCloses(t *testing.T) {
	repo := newTestRepository(t)
	manager := NewManager(repo, panickingPrices{}, map[domain.Source]Policy{domain.SourceGoldenKey: testPolicy}, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, activeSignal("p", "P", domain.SourceGoldenKey, 0, 1000)))

	summary, err := manager.Evaluate(ctx, domain.SourceGoldenKey, testingpkg.Day(2))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ForceClosed)

	got, err := repo.GetByID(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosedNeutral, got.Status)
	assert.Equal(t, 1000.0, *got.ExitPrice)
}

func TestManager_UnknownSource(t *testing.T) {
	f := newLifecycleFixture(t)
	_, err := f.manager.Evaluate(context.Background(), domain.SourceBuyQueue, testingpkg.Day(2))
	assert.ErrorIs(t, err, domain.ErrUnknownSource)
}
