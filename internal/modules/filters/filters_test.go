package filters

import (
	"errors"
	"math"
	"testing"

	"github.com/aristath/signalscope/internal/domain"
	"github.com/aristath/signalscope/internal/modules/indicators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func always(v bool) Predicate {
	return func(*Input) (bool, error) { return v, nil }
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// blankSnapshot returns an n-bar snapshot with every series undefined.
func blankSnapshot(n int) *indicators.Snapshot {
	return &indicators.Snapshot{
		RSI:      nanSeries(n),
		MACD:     indicators.MACDResult{MACD: nanSeries(n), Signal: nanSeries(n), Histogram: nanSeries(n)},
		SMAShort: nanSeries(n),
		SMALong:  nanSeries(n),
		Bands:    indicators.Bands{Upper: nanSeries(n), Middle: nanSeries(n), Lower: nanSeries(n)},
		ATR:      nanSeries(n),
		VolShort: nanSeries(n),
		VolMid:   nanSeries(n),
		VolLong:  nanSeries(n),
		Flow:     make([]indicators.Flow, n),
	}
}

func twoBars(prevClose, close, volume float64) domain.PriceSeries {
	return domain.PriceSeries{InstrumentID: "X", Bars: []domain.Bar{
		{Open: prevClose, High: prevClose, Low: prevClose, Close: prevClose, Volume: 1000},
		{Open: close, High: close, Low: close, Close: close, Volume: volume},
	}}
}

func TestNewCatalog(t *testing.T) {
	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := NewCatalog("v1",
			Filter{Name: "a", Weight: 1, Predicate: always(true)},
			Filter{Name: "a", Weight: 2, Predicate: always(true)},
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate filter name")
	})

	t.Run("rejects missing predicate", func(t *testing.T) {
		_, err := NewCatalog("v1", Filter{Name: "a"})
		assert.Error(t, err)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := NewCatalog("v1", Filter{Predicate: always(true)})
		assert.Error(t, err)
	})

	t.Run("rejects empty catalog", func(t *testing.T) {
		_, err := NewCatalog("v1")
		assert.Error(t, err)
	})

	t.Run("ordered lookups", func(t *testing.T) {
		c, err := NewCatalog("v1",
			Filter{Name: "a", Category: CategoryVolume, Weight: 1, Rationale: "A", Predicate: always(true)},
			Filter{Name: "b", Category: CategoryMomentum, Weight: -2, Rationale: "B", Predicate: always(false)},
		)
		require.NoError(t, err)

		assert.Equal(t, "v1", c.Version())
		assert.Equal(t, 2, c.Len())
		assert.Equal(t, []string{"a", "b"}, c.Names())

		rank, ok := c.Rank("b")
		assert.True(t, ok)
		assert.Equal(t, 1, rank)
		_, ok = c.Rank("zzz")
		assert.False(t, ok)

		f, ok := c.Lookup("b")
		require.True(t, ok)
		assert.Equal(t, -2.0, f.Weight)

		defs := c.Definitions()
		assert.Equal(t, Definition{Name: "a", Category: CategoryVolume, Weight: 1, Rationale: "A"}, defs[0])

		filters := c.Filters()
		filters[0].Name = "mutated"
		_, ok = c.Lookup("a")
		assert.True(t, ok, "Filters must return a copy")
		assert.Equal(t, "a", c.Names()[0])
	})
}

func TestOutlookLabel(t *testing.T) {
	assert.Equal(t, OutlookBullish, Outlook{Fixed: OutlookBullish}.Label(domain.NewFilterSet()))
	assert.Equal(t, "", Outlook{}.Label(domain.NewFilterSet("a")))

	o := Outlook{Bullish: []string{"macd_bullish", "rsi_oversold"}}
	assert.Equal(t, OutlookBullish, o.Label(domain.NewFilterSet("price_above_sma20", "rsi_oversold")))
	assert.Equal(t, OutlookNeutral, o.Label(domain.NewFilterSet("price_above_sma20")))
}

func TestBuiltInCatalogs(t *testing.T) {
	gk := GoldenKey()
	assert.Equal(t, 13, gk.Len())
	assert.Equal(t, []string{
		ResistanceBreakoutSMA50, RSIOversoldVolume, GoldenCross, HammerDojiVolume,
		IndividualBuyPower, DoubleBottomBreakout, DescendingTrendlineBreak,
		MACDBullishDivergence, RSIOversoldExit, MonthlyVolumeStrongCandle,
		SupportBreakdown, RSIOverbought, MACDSellCross,
	}, gk.Names())

	var bullish, bearish float64
	for _, f := range gk.Filters() {
		if f.Weight > 0 {
			bullish += f.Weight
		} else {
			bearish += f.Weight
		}
	}
	assert.Equal(t, 127.0, bullish)
	assert.Equal(t, -30.0, bearish)
	assert.Equal(t, OutlookBullish, gk.Outlook().Fixed)

	ww := WeeklyWatchlist()
	assert.Equal(t, 19, ww.Len())
	for _, f := range ww.Filters() {
		assert.Equal(t, 1.0, math.Abs(f.Weight), f.Name)
	}

	bq := BuyQueue()
	assert.Equal(t, 10, bq.Len())
	for _, f := range bq.Filters() {
		assert.Greater(t, f.Weight, 0.0, f.Name)
	}

	for _, src := range []domain.Source{domain.SourceGoldenKey, domain.SourceWeeklyWatchlist, domain.SourceBuyQueue} {
		c, err := ForSource(src)
		require.NoError(t, err)
		assert.NotNil(t, c)
	}
	_, err := ForSource("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownSource)
}

func TestSnapshotPredicatesNeedData(t *testing.T) {
	in := NewInput(domain.Instrument{ID: "X"}, twoBars(100, 100, 1000), nil)
	for _, c := range []*Catalog{GoldenKey(), WeeklyWatchlist()} {
		f, ok := c.Lookup("rsi_overbought")
		require.True(t, ok)
		_, err := f.Predicate(in)
		assert.ErrorIs(t, err, domain.ErrDataInsufficient)
	}

	in.Snapshot = blankSnapshot(2)
	ok, err := rsiOverbought(in)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, domain.ErrDataInsufficient))
}

func TestRSIOversoldWithVolume(t *testing.T) {
	snap := blankSnapshot(2)
	snap.RSI[1] = 25
	snap.VolShort[1] = 1000

	ok, err := rsiOversoldWithVolume(NewInput(domain.Instrument{}, twoBars(100, 98, 2500), snap))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rsiOversoldWithVolume(NewInput(domain.Instrument{}, twoBars(100, 98, 1500), snap))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGoldenCross(t *testing.T) {
	snap := blankSnapshot(2)
	copy(snap.SMAShort, []float64{99, 101})
	copy(snap.SMALong, []float64{100, 100.5})

	ok, err := goldenCross(NewInput(domain.Instrument{}, twoBars(100, 102, 1000), snap))
	require.NoError(t, err)
	assert.True(t, ok)

	// Already above on the previous bar is not a cross
	snap.SMAShort[0] = 100.2
	ok, err = goldenCross(NewInput(domain.Instrument{}, twoBars(100, 102, 1000), snap))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMACDCrosses(t *testing.T) {
	sell := blankSnapshot(2)
	copy(sell.MACD.MACD, []float64{0, -1})
	copy(sell.MACD.Signal, []float64{0, -0.2})
	ok, err := macdSellCross(NewInput(domain.Instrument{}, twoBars(100, 96, 1000), sell))
	require.NoError(t, err)
	assert.True(t, ok)

	buy := blankSnapshot(2)
	copy(buy.MACD.MACD, []float64{-1, -0.5})
	copy(buy.MACD.Signal, []float64{-0.8, -0.6})

	// Divergence needs a lower close while MACD rises
	ok, err = macdBullishDivergence(NewInput(domain.Instrument{}, twoBars(100, 99, 1000), buy))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = macdBullishDivergence(NewInput(domain.Instrument{}, twoBars(100, 101, 1000), buy))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = macdBullishCross(NewInput(domain.Instrument{}, twoBars(100, 101, 1000), buy))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRSIOversoldExit(t *testing.T) {
	snap := blankSnapshot(2)
	copy(snap.RSI, []float64{28, 33})

	ok, err := rsiOversoldExit(NewInput(domain.Instrument{}, twoBars(100, 101, 1000), snap))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rsiOversoldExit(NewInput(domain.Instrument{}, twoBars(100, 99, 1000), snap))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFundamentalFilters(t *testing.T) {
	pe, eps := 8.5, -3.0
	in := NewInput(domain.Instrument{PE: &pe, EPS: &eps}, twoBars(100, 100, 1000), nil)

	reasonable, _ := WeeklyWatchlist().Lookup(WatchReasonablePE)
	ok, err := reasonable.Predicate(in)
	require.NoError(t, err)
	assert.True(t, ok)

	negative, _ := WeeklyWatchlist().Lookup(WatchNegativeEPS)
	ok, err = negative.Predicate(in)
	require.NoError(t, err)
	assert.True(t, ok)

	in.Instrument = domain.Instrument{}
	_, err = reasonable.Predicate(in)
	assert.ErrorIs(t, err, domain.ErrDataInsufficient)
}

func TestBuyPowerNeedsOrderFlow(t *testing.T) {
	weak, _ := WeeklyWatchlist().Lookup(WatchWeakBuyPower)

	series := twoBars(100, 100, 1000)
	snap := indicators.Compute(series, indicators.DefaultParams())
	_, err := weak.Predicate(NewInput(domain.Instrument{}, series, snap))
	assert.ErrorIs(t, err, domain.ErrDataInsufficient)

	series.Bars[1].BuyIVolume = 500
	series.Bars[1].SellIVolume = 1000
	snap = indicators.Compute(series, indicators.DefaultParams())
	ok, err := weak.Predicate(NewInput(domain.Instrument{}, series, snap))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRealMoneyFlow(t *testing.T) {
	series := twoBars(100, 100, 1000)
	series.Bars[1].Value = 100000
	series.Bars[1].BuyIVolume = 9000
	series.Bars[1].SellIVolume = 1000
	snap := indicators.Compute(series, indicators.DefaultParams())
	in := NewInput(domain.Instrument{}, series, snap)

	ok, err := realMoneyFlow(true, watchRealMoneyValueShare)(in)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = realMoneyFlow(false, watchRealMoneyValueShare)(in)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuyQueueOrderBookFilters(t *testing.T) {
	series := twoBars(100, 100, 1000)
	series.Bars[1].Depth[0] = domain.DepthLevel{BidVolume: 600000, BidCount: 60}
	in := NewInput(domain.Instrument{}, series, nil)

	ok, err := buyQueuePresence(in)
	require.NoError(t, err)
	assert.True(t, ok)

	series.Bars[1].Depth[0].BidCount = 10
	ok, err = buyQueuePresence(NewInput(domain.Instrument{}, series, nil))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCloseNearHigh(t *testing.T) {
	tests := []struct {
		name     string
		bar      domain.Bar
		expected bool
	}{
		{"final near high", domain.Bar{High: 100, Final: 99.5, Close: 97}, true},
		{"close fallback near high", domain.Bar{High: 100, Close: 99.9}, true},
		{"far from high", domain.Bar{High: 100, Final: 98}, false},
		{"no high", domain.Bar{Final: 98}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewInput(domain.Instrument{}, domain.PriceSeries{Bars: []domain.Bar{tt.bar}}, nil)
			ok, err := closeNearHigh(in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestBullishCandlestick(t *testing.T) {
	bars := []domain.Bar{
		{Open: 100, High: 101, Low: 99, Close: 100},
		{Open: 105, High: 106, Low: 99, Close: 100},
		{Open: 99, High: 107, Low: 98, Close: 106},
	}
	ok, err := bullishCandlestick(NewInput(domain.Instrument{}, domain.PriceSeries{Bars: bars}, nil))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = bullishCandlestick(NewInput(domain.Instrument{}, domain.PriceSeries{Bars: bars[1:]}, nil))
	assert.ErrorIs(t, err, domain.ErrDataInsufficient)
}
