package filters

import (
	"math"

	"github.com/aristath/signalscope/internal/modules/indicators"
)

// Weekly watchlist filter names.
const (
	WatchRSIOversold         = "rsi_oversold"
	WatchRSIOverbought       = "rsi_overbought"
	WatchRSIStrongMomentum   = "rsi_strong_momentum"
	WatchMACDBullish         = "macd_bullish"
	WatchMACDBearish         = "macd_bearish"
	WatchPriceAboveSMA20     = "price_above_sma20"
	WatchPriceAboveSMA50     = "price_above_sma50"
	WatchBollingerLowerTouch = "bollinger_lower_touch"
	WatchBollingerUpperBreak = "bollinger_upper_breakout"
	WatchHighVolume          = "high_volume"
	WatchHighVolatility      = "high_volatility"
	WatchStrongBuyPower      = "strong_individual_buy_power"
	WatchWeakBuyPower        = "weak_individual_buy_power"
	WatchPositiveRealMoney   = "positive_real_money_flow"
	WatchNegativeRealMoney   = "negative_real_money_flow"
	WatchReasonablePE        = "reasonable_pe"
	WatchHighPE              = "high_pe"
	WatchPositiveEPS         = "positive_eps"
	WatchNegativeEPS         = "negative_eps"
)

const (
	weeklyWatchlistVersion    = "weekly_watchlist/v1"
	watchRealMoneyValueShare  = 0.05
	watchVolatilityPercent    = 3.0
	watchReasonablePECeiling  = 20.0
	watchStrongBuyPowerLevel  = 1.2
	watchWeakBuyPowerLevel    = 0.8
	watchHighVolumeMultiplier = 1.5
)

var weeklyWatchlist = mustCatalog(weeklyWatchlistVersion,
	Filter{Name: WatchRSIOversold, Category: CategoryMomentum, Weight: 1,
		Rationale: "RSI is oversold", Predicate: rsiBelow(rsiOversoldLevel)},
	Filter{Name: WatchRSIOverbought, Category: CategoryMomentum, Weight: -1,
		Rationale: "RSI is overbought", Predicate: rsiOverbought},
	Filter{Name: WatchRSIStrongMomentum, Category: CategoryMomentum, Weight: 1,
		Rationale: "RSI between 50 and 70 shows strong momentum", Predicate: rsiStrongMomentum},
	Filter{Name: WatchMACDBullish, Category: CategoryDivergence, Weight: 1,
		Rationale: "MACD above its signal line with a positive histogram", Predicate: macdState(true)},
	Filter{Name: WatchMACDBearish, Category: CategoryDivergence, Weight: -1,
		Rationale: "MACD below its signal line with a negative histogram", Predicate: macdState(false)},
	Filter{Name: WatchPriceAboveSMA20, Category: CategoryMovingAverages, Weight: 1,
		Rationale: "Price is above the 20-day moving average", Predicate: closeAbove("sma_short", func(s *indicators.Snapshot) []float64 { return s.SMAShort })},
	Filter{Name: WatchPriceAboveSMA50, Category: CategoryMovingAverages, Weight: 1,
		Rationale: "Price is above the 50-day moving average", Predicate: closeAbove("sma_long", func(s *indicators.Snapshot) []float64 { return s.SMALong })},
	Filter{Name: WatchBollingerLowerTouch, Category: CategoryVolatility, Weight: 1,
		Rationale: "Price touched the lower Bollinger band", Predicate: bollingerLowerTouch},
	Filter{Name: WatchBollingerUpperBreak, Category: CategoryVolatility, Weight: 1,
		Rationale: "Price broke above the upper Bollinger band", Predicate: bollingerUpperBreakout},
	Filter{Name: WatchHighVolume, Category: CategoryVolume, Weight: 1,
		Rationale: "Volume is well above its 20-day average", Predicate: volumeAboveMid(watchHighVolumeMultiplier)},
	Filter{Name: WatchHighVolatility, Category: CategoryVolatility, Weight: 1,
		Rationale: "Average true range exceeds 3% of price", Predicate: highVolatility},
	Filter{Name: WatchStrongBuyPower, Category: CategoryMoneyFlow, Weight: 1,
		Rationale: "Individual buy power is strong", Predicate: buyPower(func(p float64) bool { return p > watchStrongBuyPowerLevel })},
	Filter{Name: WatchWeakBuyPower, Category: CategoryMoneyFlow, Weight: -1,
		Rationale: "Individual buy power is weak", Predicate: buyPower(func(p float64) bool { return p < watchWeakBuyPowerLevel })},
	Filter{Name: WatchPositiveRealMoney, Category: CategoryMoneyFlow, Weight: 1,
		Rationale: "Positive real money flow", Predicate: realMoneyFlow(true, watchRealMoneyValueShare)},
	Filter{Name: WatchNegativeRealMoney, Category: CategoryMoneyFlow, Weight: -1,
		Rationale: "Negative real money flow", Predicate: realMoneyFlow(false, watchRealMoneyValueShare)},
	Filter{Name: WatchReasonablePE, Category: CategoryFundamental, Weight: 1,
		Rationale: "P/E ratio is reasonable", Predicate: peRatio(func(pe float64) bool { return pe > 0 && pe < watchReasonablePECeiling })},
	Filter{Name: WatchHighPE, Category: CategoryFundamental, Weight: -1,
		Rationale: "P/E ratio is high", Predicate: peRatio(func(pe float64) bool { return pe >= watchReasonablePECeiling })},
	Filter{Name: WatchPositiveEPS, Category: CategoryFundamental, Weight: 1,
		Rationale: "EPS is positive", Predicate: epsSign(1)},
	Filter{Name: WatchNegativeEPS, Category: CategoryFundamental, Weight: -1,
		Rationale: "EPS is negative", Predicate: epsSign(-1)},
).WithOutlook(Outlook{Bullish: []string{WatchMACDBullish, WatchRSIOversold}})

// WeeklyWatchlist is the one-point-per-condition technical and fundamental
// catalog. Bullish conditions add a point and bearish ones take one away.
func WeeklyWatchlist() *Catalog {
	return weeklyWatchlist
}

func rsiBelow(level float64) Predicate {
	return func(in *Input) (bool, error) {
		snap, err := in.snapshot()
		if err != nil {
			return false, err
		}
		rsi, err := latest("rsi", snap.RSI)
		if err != nil {
			return false, err
		}
		return rsi < level, nil
	}
}

func rsiStrongMomentum(in *Input) (bool, error) {
	snap, err := in.snapshot()
	if err != nil {
		return false, err
	}
	rsi, err := latest("rsi", snap.RSI)
	if err != nil {
		return false, err
	}
	return rsi >= 50 && rsi <= rsiOverboughtLevel, nil
}

func macdState(bullish bool) Predicate {
	return func(in *Input) (bool, error) {
		snap, err := in.snapshot()
		if err != nil {
			return false, err
		}
		macd, err := latest("macd", snap.MACD.MACD)
		if err != nil {
			return false, err
		}
		sig, err := latest("macd_signal", snap.MACD.Signal)
		if err != nil {
			return false, err
		}
		hist, err := latest("macd_histogram", snap.MACD.Histogram)
		if err != nil {
			return false, err
		}
		if bullish {
			return macd > sig && hist > 0, nil
		}
		return macd < sig && hist < 0, nil
	}
}

func closeAbove(name string, series func(*indicators.Snapshot) []float64) Predicate {
	return func(in *Input) (bool, error) {
		snap, err := in.snapshot()
		if err != nil {
			return false, err
		}
		level, err := latest(name, series(snap))
		if err != nil {
			return false, err
		}
		cur, err := in.current()
		if err != nil {
			return false, err
		}
		return cur.Close > level, nil
	}
}

func bollingerLowerTouch(in *Input) (bool, error) {
	snap, err := in.snapshot()
	if err != nil {
		return false, err
	}
	lower, err := latest("bollinger_lower", snap.Bands.Lower)
	if err != nil {
		return false, err
	}
	cur, err := in.current()
	if err != nil {
		return false, err
	}
	return cur.Close < lower, nil
}

func bollingerUpperBreakout(in *Input) (bool, error) {
	snap, err := in.snapshot()
	if err != nil {
		return false, err
	}
	upper, err := latest("bollinger_upper", snap.Bands.Upper)
	if err != nil {
		return false, err
	}
	cur, err := in.current()
	if err != nil {
		return false, err
	}
	return cur.Close > upper, nil
}

func volumeAboveMid(multiplier float64) Predicate {
	return func(in *Input) (bool, error) {
		snap, err := in.snapshot()
		if err != nil {
			return false, err
		}
		volMA, err := latest("volume_ma_mid", snap.VolMid)
		if err != nil {
			return false, err
		}
		cur, err := in.current()
		if err != nil {
			return false, err
		}
		return volMA > 0 && cur.Volume > multiplier*volMA, nil
	}
}

func highVolatility(in *Input) (bool, error) {
	snap, err := in.snapshot()
	if err != nil {
		return false, err
	}
	atr, err := latest("atr", snap.ATR)
	if err != nil {
		return false, err
	}
	cur, err := in.current()
	if err != nil {
		return false, err
	}
	if atr <= 0 || cur.Close <= 0 {
		return false, nil
	}
	return atr/cur.Close*100 > watchVolatilityPercent, nil
}

// buyPower applies test to the latest individual buy power. Bars without
// any individual order flow cannot be judged.
func buyPower(test func(float64) bool) Predicate {
	return func(in *Input) (bool, error) {
		snap, err := in.snapshot()
		if err != nil {
			return false, err
		}
		cur, err := in.current()
		if err != nil {
			return false, err
		}
		if cur.BuyIVolume <= 0 && cur.SellIVolume <= 0 {
			return false, insufficient("no individual order flow")
		}
		return test(snap.LastFlow().IndividualBuyPower), nil
	}
}

// realMoneyFlow compares the latest individual net flow with a share of the
// day's traded value.
func realMoneyFlow(positive bool, share float64) Predicate {
	return func(in *Input) (bool, error) {
		snap, err := in.snapshot()
		if err != nil {
			return false, err
		}
		cur, err := in.current()
		if err != nil {
			return false, err
		}
		net := snap.LastFlow().NetFlow
		threshold := cur.Value * share
		if positive {
			return net > 0 && net > threshold, nil
		}
		return net < 0 && math.Abs(net) > threshold, nil
	}
}

func peRatio(test func(float64) bool) Predicate {
	return func(in *Input) (bool, error) {
		if in.Instrument.PE == nil {
			return false, insufficient("no P/E ratio")
		}
		return test(*in.Instrument.PE), nil
	}
}

func epsSign(sign float64) Predicate {
	return func(in *Input) (bool, error) {
		if in.Instrument.EPS == nil {
			return false, insufficient("no EPS")
		}
		return *in.Instrument.EPS*sign > 0, nil
	}
}
