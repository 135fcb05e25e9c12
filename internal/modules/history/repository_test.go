package history

import (
	"context"
	"testing"

	"github.com/aristath/signalscope/internal/domain"
	testingpkg "github.com/aristath/signalscope/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db := testingpkg.NewTestDB(t, "history")
	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestRepository_Instruments(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, inst := range testingpkg.NewInstrumentFixtures() {
		require.NoError(t, repo.UpsertInstrument(ctx, inst))
	}

	got, err := repo.ListInstruments(ctx)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "IRO1FOLD0001", got[0].ID)
	require.NotNil(t, got[0].PE)
	assert.Equal(t, 8.5, *got[0].PE)
	require.NotNil(t, got[0].EPS)
	assert.Equal(t, 1200.0, *got[0].EPS)
	assert.Equal(t, domain.CategoryStock, got[0].Category)

	for _, inst := range got {
		if inst.ID == "IRO1KHOD0001" {
			assert.Nil(t, inst.PE)
			assert.Nil(t, inst.EPS)
		}
	}

	renamed := testingpkg.NewInstrumentFixtures()[0]
	renamed.Name = "Foolad Mobarakeh"
	require.NoError(t, repo.UpsertInstrument(ctx, renamed))
	got, err = repo.ListInstruments(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, "Foolad Mobarakeh", got[0].Name)

	assert.ErrorIs(t, repo.UpsertInstrument(ctx, domain.Instrument{}), domain.ErrDataInvalid)
}

func TestRepository_Bars(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	inst := testingpkg.NewInstrumentFixtures()[0]
	require.NoError(t, repo.UpsertInstrument(ctx, inst))

	series := testingpkg.TrendSeries(inst.ID, 10, 100, 1, 5000)
	series.Bars[9].BuyIVolume = 3000
	series.Bars[9].BuyCountI = 12
	series.Bars[9].Depth[0] = domain.DepthLevel{BidCount: 60, BidVolume: 600000, BidPrice: 109}
	require.NoError(t, repo.UpsertBars(ctx, inst.ID, series.Bars))

	all, err := repo.GetDailyBars(ctx, inst.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 10, all.Len())
	assert.Equal(t, inst.ID, all.InstrumentID)
	assert.Equal(t, testingpkg.Day(0), all.Bars[0].Date)
	assert.Equal(t, series.Closes(), all.Closes())

	recent, err := repo.GetDailyBars(ctx, inst.ID, 3)
	require.NoError(t, err)
	require.Equal(t, 3, recent.Len())
	assert.Equal(t, testingpkg.Day(7), recent.Bars[0].Date, "oldest of the most recent bars first")
	assert.Equal(t, testingpkg.Day(9), recent.Bars[2].Date)

	latest, err := repo.GetLatestBar(ctx, inst.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 109.0, latest.Close)
	assert.Equal(t, 3000.0, latest.BuyIVolume)
	assert.Equal(t, 12.0, latest.BuyCountI)
	assert.Equal(t, 600000.0, latest.Depth[0].BidVolume)
	assert.Equal(t, 60.0, latest.Depth[0].BidCount)
	assert.Equal(t, 0.0, latest.Depth[1].BidVolume)
}

func TestRepository_BarsReplaceSameDay(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	inst := testingpkg.NewInstrumentFixtures()[1]
	require.NoError(t, repo.UpsertInstrument(ctx, inst))

	require.NoError(t, repo.UpsertBars(ctx, inst.ID, []domain.Bar{testingpkg.FlatBar(0, 100, 1000)}))
	corrected := testingpkg.FlatBar(0, 104, 1200)
	require.NoError(t, repo.UpsertBars(ctx, inst.ID, []domain.Bar{corrected}))

	series, err := repo.GetDailyBars(ctx, inst.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, series.Len())
	assert.Equal(t, 104.0, series.Bars[0].Close)
	assert.Equal(t, 1200.0, series.Bars[0].Volume)
}

func TestRepository_NoBars(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	series, err := repo.GetDailyBars(ctx, "UNKNOWN", 50)
	require.NoError(t, err)
	assert.Equal(t, 0, series.Len())

	latest, err := repo.GetLatestBar(ctx, "UNKNOWN")
	require.NoError(t, err)
	assert.Nil(t, latest)
}
