package filters

import (
	"github.com/aristath/signalscope/internal/modules/patterns"
)

// Buy queue filter names.
const (
	QueueBuyQueuePresence = "buy_queue_presence"
	QueueRealBuyerPower   = "real_buyer_power"
	QueueCloseNearHigh    = "close_near_high"
	QueueVolumeSpike      = "volume_spike"
	QueueRSINearOversold  = "rsi_near_oversold"
	QueueRSIRising        = "rsi_rising"
	QueueMACDBullishCross = "macd_bullish_cross"
	QueueSMACross         = "sma_cross"
	QueueBullishCandle    = "bullish_candlestick"
	QueueSmartMoneyInflow = "smart_money_inflow"
)

const (
	buyQueueVersion = "buy_queue/v1"

	// A best bid holding more than this volume across more than this many
	// orders counts as a queue
	queueMinVolume = 500000
	queueMinOrders = 50

	queueBuyerPowerLevel    = 1.8
	queueNearHighFraction   = 0.01
	queueVolumeSpikeFactor  = 2.5
	queueRSINearOversold    = 35.0
	queueInflowValueShare   = 0.03
	queueCandlestickMinBars = 3
)

var buyQueue = mustCatalog(buyQueueVersion,
	Filter{Name: QueueBuyQueuePresence, Category: CategoryOrderBook, Weight: 25,
		Rationale: "Significant buy queue", Predicate: buyQueuePresence},
	Filter{Name: QueueRealBuyerPower, Category: CategoryMoneyFlow, Weight: 20,
		Rationale: "High individual buyer power per trade", Predicate: realBuyerPower},
	Filter{Name: QueueCloseNearHigh, Category: CategoryPriceTrend, Weight: 15,
		Rationale: "Closing price near the daily high", Predicate: closeNearHigh},
	Filter{Name: QueueVolumeSpike, Category: CategoryVolume, Weight: 15,
		Rationale: "Suspicious volume spike", Predicate: volumeAboveMid(queueVolumeSpikeFactor)},
	Filter{Name: QueueRSINearOversold, Category: CategoryMomentum, Weight: 5,
		Rationale: "RSI close to the oversold zone", Predicate: rsiBelow(queueRSINearOversold)},
	Filter{Name: QueueRSIRising, Category: CategoryMomentum, Weight: 10,
		Rationale: "RSI rising", Predicate: rsiRising},
	Filter{Name: QueueMACDBullishCross, Category: CategoryDivergence, Weight: 20,
		Rationale: "Bullish MACD cross", Predicate: macdBullishCross},
	Filter{Name: QueueSMACross, Category: CategoryMovingAverages, Weight: 15,
		Rationale: "20-day moving average crossed above the 50-day", Predicate: smaCross},
	Filter{Name: QueueBullishCandle, Category: CategoryClassicPatterns, Weight: 20,
		Rationale: "Bullish candlestick pattern", Predicate: bullishCandlestick},
	Filter{Name: QueueSmartMoneyInflow, Category: CategoryMoneyFlow, Weight: 18,
		Rationale: "Smart money inflow from individuals", Predicate: realMoneyFlow(true, queueInflowValueShare)},
)

// BuyQueue is the catalog for instruments likely to form a buy queue.
// Weights add up to a likelihood percentage.
func BuyQueue() *Catalog {
	return buyQueue
}

func buyQueuePresence(in *Input) (bool, error) {
	cur, err := in.current()
	if err != nil {
		return false, err
	}
	best := cur.Depth[0]
	return best.BidVolume > queueMinVolume && best.BidCount > queueMinOrders, nil
}

func realBuyerPower(in *Input) (bool, error) {
	snap, err := in.snapshot()
	if err != nil {
		return false, err
	}
	return snap.LastFlow().PerTradeRatio() > queueBuyerPowerLevel, nil
}

func closeNearHigh(in *Input) (bool, error) {
	cur, err := in.current()
	if err != nil {
		return false, err
	}
	price := cur.ReliablePrice()
	if cur.High <= 0 || price <= 0 {
		return false, nil
	}
	return (cur.High-price)/cur.High < queueNearHighFraction, nil
}

func rsiRising(in *Input) (bool, error) {
	snap, err := in.snapshot()
	if err != nil {
		return false, err
	}
	rsi, rsiPrev, err := latestTwo("rsi", snap.RSI)
	if err != nil {
		return false, err
	}
	return rsi > rsiPrev && rsi < rsiOverboughtLevel, nil
}

func macdBullishCross(in *Input) (bool, error) {
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
	return crossedAbove(macd, macdPrev, sig, sigPrev), nil
}

func smaCross(in *Input) (bool, error) {
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
	return crossedAbove(s20, s20Prev, s50, s50Prev), nil
}

func bullishCandlestick(in *Input) (bool, error) {
	bars := in.bars()
	if len(bars) < queueCandlestickMinBars {
		return false, insufficient("fewer than 3 bars")
	}
	cur, prev := bars[len(bars)-1], bars[len(bars)-2]
	return patterns.IsHammer(bars) || patterns.IsBullishEngulfing(prev, cur), nil
}
