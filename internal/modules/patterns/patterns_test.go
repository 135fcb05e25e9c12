package patterns

import (
	"testing"

	"github.com/aristath/signalscope/internal/domain"
	testingpkg "github.com/aristath/signalscope/internal/testing"
	"github.com/stretchr/testify/assert"
)

func ohlc(o, h, l, c float64) domain.Bar {
	return domain.Bar{Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

func TestIsBullishEngulfing(t *testing.T) {
	tests := []struct {
		name      string
		prev, cur domain.Bar
		expected  bool
	}{
		{"engulfing", ohlc(105, 106, 99, 100), ohlc(99, 107, 98, 106), true},
		{"previous bar bullish", ohlc(100, 106, 99, 105), ohlc(99, 107, 98, 106), false},
		{"current bar bearish", ohlc(105, 106, 99, 100), ohlc(106, 107, 98, 99), false},
		{"opens above prior close", ohlc(105, 106, 99, 100), ohlc(101, 107, 98, 106), false},
		{"closes below prior open", ohlc(105, 106, 99, 100), ohlc(99, 107, 98, 104), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsBullishEngulfing(tt.prev, tt.cur))
		})
	}
}

func hammerBars() []domain.Bar {
	bars := make([]domain.Bar, 0, 10)
	for i := 0; i < 9; i++ {
		c := 109 - float64(i)
		bars = append(bars, ohlc(c+0.5, c+1, c-0.5, c))
	}
	return append(bars, ohlc(100, 100.52, 97, 100.5))
}

func TestIsHammer(t *testing.T) {
	assert.True(t, IsHammer(hammerBars()))

	// Without ten bars of context there is no downtrend
	assert.False(t, IsHammer(hammerBars()[1:]))
	assert.False(t, IsHammer(hammerBars()[9:]))

	// Same candle after a rally is not a hammer
	rally := hammerBars()
	for i := range rally[:9] {
		c := 90 + float64(i)
		rally[i] = ohlc(c-0.5, c+0.5, c-1, c)
	}
	assert.False(t, IsHammer(rally))

	// Upper shadow too long
	long := hammerBars()
	long[9].High = 101
	assert.False(t, IsHammer(long))

	// Zero body
	flat := hammerBars()
	flat[9].Close = flat[9].Open
	assert.False(t, IsHammer(flat))
}

func TestIsDoji(t *testing.T) {
	assert.True(t, IsDoji(ohlc(100, 102, 98, 100.1)))
	assert.False(t, IsDoji(ohlc(100, 102, 98, 101)))
	assert.False(t, IsDoji(ohlc(100, 100, 100, 100)), "zero range is not a doji")
}

func TestIsStrongBullishCandle(t *testing.T) {
	assert.True(t, IsStrongBullishCandle(ohlc(100, 105, 99, 104)))
	assert.False(t, IsStrongBullishCandle(ohlc(100, 105, 95, 102)))
	assert.False(t, IsStrongBullishCandle(ohlc(104, 105, 99, 100)))
	assert.False(t, IsStrongBullishCandle(ohlc(100, 100, 100, 100)))
}

func levelBars(n int, lastClose float64) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = ohlc(100, 101, 99, 100)
	}
	bars[n-1].Close = lastClose
	return bars
}

func TestResistanceAndSupport(t *testing.T) {
	assert.True(t, IsResistanceBreakout(levelBars(21, 102), DefaultLevelWindow))
	assert.False(t, IsResistanceBreakout(levelBars(21, 100.5), DefaultLevelWindow))
	assert.True(t, IsSupportBreakdown(levelBars(21, 98), DefaultLevelWindow))
	assert.False(t, IsSupportBreakdown(levelBars(21, 99.5), DefaultLevelWindow))

	// Exactly window bars uses every prior bar
	assert.True(t, IsResistanceBreakout(levelBars(20, 102), DefaultLevelWindow))

	// Too short
	assert.False(t, IsResistanceBreakout(levelBars(19, 102), DefaultLevelWindow))
	assert.False(t, IsSupportBreakdown(levelBars(19, 90), DefaultLevelWindow))
	assert.False(t, IsSupportBreakdown(nil, DefaultLevelWindow))
}

func doubleBottomBars() []domain.Bar {
	bars := make([]domain.Bar, 40)
	for i := range bars {
		var c float64
		switch {
		case i <= 10:
			c = 100 - 2*float64(i)
		case i <= 20:
			c = 80 + 1.5*float64(i-10)
		case i <= 30:
			c = 95 - 1.4*float64(i-20)
		default:
			c = 81 + float64(i-30)
		}
		bars[i] = ohlc(c, c+1, c-1, c)
	}
	bars[39] = domain.Bar{Open: 90, High: 101, Low: 89, Close: 100, Volume: 3000}
	return bars
}

func TestIsDoubleBottomBreakout(t *testing.T) {
	assert.True(t, IsDoubleBottomBreakout(doubleBottomBars()))

	t.Run("needs forty bars", func(t *testing.T) {
		assert.False(t, IsDoubleBottomBreakout(doubleBottomBars()[1:]))
	})

	t.Run("no volume confirmation", func(t *testing.T) {
		bars := doubleBottomBars()
		bars[39].Volume = 1000
		assert.False(t, IsDoubleBottomBreakout(bars))
	})

	t.Run("close below neckline", func(t *testing.T) {
		bars := doubleBottomBars()
		bars[39].Close = 94
		assert.False(t, IsDoubleBottomBreakout(bars))
	})

	t.Run("bottoms too far apart", func(t *testing.T) {
		bars := doubleBottomBars()
		bars[30].Close = 70
		assert.False(t, IsDoubleBottomBreakout(bars))
	})
}

func trendlineBars() []domain.Bar {
	bars := make([]domain.Bar, 30)
	for i := range bars {
		h := 120 - 0.5*float64(i)
		if i == 5 || i == 15 {
			h += 5
		}
		c := h - 1
		bars[i] = domain.Bar{Open: c + 0.5, High: h, Low: c - 1, Close: c, Volume: 1000}
	}
	// Line through (5, 122.5) and (15, 117.5) projects to 110.5 at bar 29
	bars[29] = domain.Bar{Open: 104, High: 112.5, Low: 103.5, Close: 112, Volume: 3000}
	return bars
}

func TestIsDescendingTrendlineBreakout(t *testing.T) {
	assert.True(t, IsDescendingTrendlineBreakout(trendlineBars()))

	t.Run("needs thirty bars", func(t *testing.T) {
		assert.False(t, IsDescendingTrendlineBreakout(trendlineBars()[1:]))
	})

	t.Run("close below projection", func(t *testing.T) {
		bars := trendlineBars()
		bars[29] = domain.Bar{Open: 104, High: 109.5, Low: 103.5, Close: 109, Volume: 3000}
		assert.False(t, IsDescendingTrendlineBreakout(bars))
	})

	t.Run("weak confirmation candle", func(t *testing.T) {
		bars := trendlineBars()
		bars[29] = domain.Bar{Open: 110.8, High: 113, Low: 104, Close: 111, Volume: 3000}
		assert.False(t, IsDescendingTrendlineBreakout(bars))
	})

	t.Run("no volume confirmation", func(t *testing.T) {
		bars := trendlineBars()
		bars[29].Volume = 1100
		assert.False(t, IsDescendingTrendlineBreakout(bars))
	})

	t.Run("rising peaks", func(t *testing.T) {
		bars := make([]domain.Bar, 30)
		for i := range bars {
			h := 100 + 0.5*float64(i)
			if i%7 == 3 {
				h += 3
			}
			bars[i] = domain.Bar{Open: h - 1.5, High: h, Low: h - 2, Close: h - 0.5, Volume: 1000}
		}
		bars[29].Volume = 5000
		assert.False(t, IsDescendingTrendlineBreakout(bars))
	})
}

// A flat instrument that drops 4% on heavy volume shows no bullish structure.
func TestFlatThenDropHasNoBullishPattern(t *testing.T) {
	series := testingpkg.FlatSeries("X", 10, 100, 1000)
	series = testingpkg.AppendBar(series, domain.Bar{Open: 100, High: 100, Low: 96, Close: 96, Final: 96, Volume: 3000})
	bars := series.Bars

	assert.False(t, IsDoubleBottomBreakout(bars))
	assert.False(t, IsDescendingTrendlineBreakout(bars))
	assert.False(t, IsResistanceBreakout(bars, DefaultLevelWindow))
	assert.False(t, IsHammer(bars))
	assert.False(t, IsBullishEngulfing(bars[9], bars[10]))
	assert.False(t, IsStrongBullishCandle(bars[10]))
}
