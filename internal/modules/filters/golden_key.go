package filters

import (
	"github.com/aristath/signalscope/internal/domain"
	"github.com/aristath/signalscope/internal/modules/patterns"
)

// Golden key filter names.
const (
	ResistanceBreakoutSMA50   = "resistance_breakout_sma50"
	RSIOversoldVolume         = "rsi_oversold_volume"
	GoldenCross               = "golden_cross"
	HammerDojiVolume          = "hammer_doji_volume"
	IndividualBuyPower        = "individual_buy_power"
	DoubleBottomBreakout      = "double_bottom_breakout"
	DescendingTrendlineBreak  = "descending_trendline_breakout"
	MACDBullishDivergence     = "macd_bullish_divergence"
	RSIOversoldExit           = "rsi_oversold_exit"
	MonthlyVolumeStrongCandle = "monthly_volume_strong_candle"
	SupportBreakdown          = "support_breakdown"
	RSIOverbought             = "rsi_overbought"
	MACDSellCross             = "macd_sell_cross"
)

const (
	goldenKeyVersion           = "golden_key/v1"
	rsiOversoldLevel           = 30.0
	rsiOverboughtLevel         = 70.0
	goldenKeyBuyPowerThreshold = 2.0
)

var goldenKey = mustCatalog(goldenKeyVersion,
	Filter{
		Name:      ResistanceBreakoutSMA50,
		Category:  CategoryPriceTrend,
		Weight:    10,
		Rationale: "Broke a major resistance and closed above the 50-day moving average",
		Predicate: resistanceBreakoutAboveSMA50,
	},
	Filter{
		Name:      RSIOversoldVolume,
		Category:  CategoryDivergence,
		Weight:    12,
		Rationale: "RSI oversold with a sharp volume increase",
		Predicate: rsiOversoldWithVolume,
	},
	Filter{
		Name:      GoldenCross,
		Category:  CategoryMovingAverages,
		Weight:    15,
		Rationale: "Golden cross of the 20 and 50-day moving averages",
		Predicate: goldenCross,
	},
	Filter{
		Name:      HammerDojiVolume,
		Category:  CategoryClassicPatterns,
		Weight:    10,
		Rationale: "Hammer or doji on high volume at the bottom of a downtrend",
		Predicate: hammerOrDojiWithVolume,
	},
	Filter{
		Name:      IndividualBuyPower,
		Category:  CategoryMoneyFlow,
		Weight:    18,
		Rationale: "Individual buyer power rising with smart money inflow",
		Predicate: individualBuyPowerAbove(goldenKeyBuyPowerThreshold),
	},
	Filter{
		Name:      DoubleBottomBreakout,
		Category:  CategoryClassicPatterns,
		Weight:    15,
		Rationale: "Double bottom with a neckline breakout",
		Predicate: barsPattern(patterns.IsDoubleBottomBreakout),
	},
	Filter{
		Name:      DescendingTrendlineBreak,
		Category:  CategoryPriceTrend,
		Weight:    13,
		Rationale: "Descending trendline broken with a confirming candle",
		Predicate: barsPattern(patterns.IsDescendingTrendlineBreakout),
	},
	Filter{
		Name:      MACDBullishDivergence,
		Category:  CategoryDivergence,
		Weight:    14,
		Rationale: "Positive MACD divergence with a bullish signal-line cross",
		Predicate: macdBullishDivergence,
	},
	Filter{
		Name:      RSIOversoldExit,
		Category:  CategoryPriceTrend,
		Weight:    11,
		Rationale: "RSI left the oversold zone on a rising close",
		Predicate: rsiOversoldExit,
	},
	Filter{
		Name:      MonthlyVolumeStrongCandle,
		Category:  CategoryVolume,
		Weight:    9,
		Rationale: "Monthly average volume above the six-month average with a strong bullish candle",
		Predicate: monthlyVolumeWithStrongCandle,
	},
	Filter{
		Name:      SupportBreakdown,
		Category:  CategoryPriceTrend,
		Weight:    -8,
		Rationale: "Broke a major support",
		Predicate: supportBreakdown,
	},
	Filter{
		Name:      RSIOverbought,
		Category:  CategoryPriceTrend,
		Weight:    -10,
		Rationale: "RSI is above 70",
		Predicate: rsiOverbought,
	},
	Filter{
		Name:      MACDSellCross,
		Category:  CategoryDivergence,
		Weight:    -12,
		Rationale: "Bearish MACD cross",
		Predicate: macdSellCross,
	},
).WithOutlook(Outlook{Fixed: OutlookBullish})

// GoldenKey is the weighted multi-filter breakout catalog.
func GoldenKey() *Catalog {
	return goldenKey
}

func resistanceBreakoutAboveSMA50(in *Input) (bool, error) {
	snap, err := in.snapshot()
	if err != nil {
		return false, err
	}
	sma50, err := latest("sma_long", snap.SMALong)
	if err != nil {
		return false, err
	}
	cur, err := in.current()
	if err != nil {
		return false, err
	}
	return patterns.IsResistanceBreakout(in.bars(), patterns.DefaultLevelWindow) && cur.Close > sma50, nil
}

func rsiOversoldWithVolume(in *Input) (bool, error) {
	snap, err := in.snapshot()
	if err != nil {
		return false, err
	}
	rsi, err := latest("rsi", snap.RSI)
	if err != nil {
		return false, err
	}
	volMA, err := latest("volume_ma_short", snap.VolShort)
	if err != nil {
		return false, err
	}
	cur, err := in.current()
	if err != nil {
		return false, err
	}
	return rsi < rsiOversoldLevel && cur.Volume > 2*volMA, nil
}

func goldenCross(in *Input) (bool, error) {
	snap, err := in.snapshot()
	if err != nil {
		return false, err
	}
	s20, s20Prev, err := latestTwo("sma_short", snap.SMAShort)
	if err != nil {
		return false, err
	}
	s50, s50Prev, err := latestTwo("sma_long", snap.SMALong)
	if err != nil {
		return false, err
	}
	cur, err := in.current()
	if err != nil {
		return false, err
	}
	return cur.Close > s20 && cur.Close > s50 && crossedAbove(s20, s20Prev, s50, s50Prev), nil
}

func hammerOrDojiWithVolume(in *Input) (bool, error) {
	snap, err := in.snapshot()
	if err != nil {
		return false, err
	}
	volMA, err := latest("volume_ma_short", snap.VolShort)
	if err != nil {
		return false, err
	}
	cur, err := in.current()
	if err != nil {
		return false, err
	}
	candle := patterns.IsHammer(in.bars()) || patterns.IsDoji(cur)
	return candle && cur.Volume > 1.5*volMA, nil
}

func individualBuyPowerAbove(threshold float64) Predicate {
	return func(in *Input) (bool, error) {
		snap, err := in.snapshot()
		if err != nil {
			return false, err
		}
		return snap.LastFlow().IndividualBuyPower > threshold, nil
	}
}

func barsPattern(detect func([]domain.Bar) bool) Predicate {
	return func(in *Input) (bool, error) {
		return detect(in.bars()), nil
	}
}

func macdBullishDivergence(in *Input) (bool, error) {
	snap, err := in.snapshot()
	if err != nil {
		return false, err
	}
	macd, macdPrev, err := latestTwo("macd", snap.MACD.MACD)
	if err != nil {
		return false, err
	}
	sig, sigPrev, err := latestTwo("macd_signal", snap.MACD.Signal)
	if err != nil {
		return false, err
	}
	cur, prev, err := in.currentAndPrevious()
	if err != nil {
		return false, err
	}
	return crossedAbove(macd, macdPrev, sig, sigPrev) &&
		cur.Close < prev.Close && macd > macdPrev, nil
}

func rsiOversoldExit(in *Input) (bool, error) {
	snap, err := in.snapshot()
	if err != nil {
		return false, err
	}
	rsi, rsiPrev, err := latestTwo("rsi", snap.RSI)
	if err != nil {
		return false, err
	}
	cur, prev, err := in.currentAndPrevious()
	if err != nil {
		return false, err
	}
	return rsi > rsiOversoldLevel && rsiPrev <= rsiOversoldLevel && cur.Close > prev.Close, nil
}

func monthlyVolumeWithStrongCandle(in *Input) (bool, error) {
	snap, err := in.snapshot()
	if err != nil {
		return false, err
	}
	month, err := latest("volume_ma_mid", snap.VolMid)
	if err != nil {
		return false, err
	}
	halfYear, err := latest("volume_ma_long", snap.VolLong)
	if err != nil {
		return false, err
	}
	cur, err := in.current()
	if err != nil {
		return false, err
	}
	return month > 1.2*halfYear && patterns.IsStrongBullishCandle(cur), nil
}

func supportBreakdown(in *Input) (bool, error) {
	return patterns.IsSupportBreakdown(in.bars(), patterns.DefaultLevelWindow), nil
}

func rsiOverbought(in *Input) (bool, error) {
	snap, err := in.snapshot()
	if err != nil {
		return false, err
	}
	rsi, err := latest("rsi", snap.RSI)
	if err != nil {
		return false, err
	}
	return rsi > rsiOverboughtLevel, nil
}

func macdSellCross(in *Input) (bool, error) {
	snap, err := in.snapshot()
	if err != nil {
		return false, err
	}
	macd, macdPrev, err := latestTwo("macd", snap.MACD.MACD)
	if err != nil {
		return false, err
	}
	sig, sigPrev, err := latestTwo("macd_signal", snap.MACD.Signal)
	if err != nil {
		return false, err
	}
	return crossedBelow(macd, macdPrev, sig, sigPrev), nil
}
