package indicators

import (
	"math"

	"github.com/aristath/signalscope/internal/domain"
)

// Flow is the order-flow breakdown of one bar for individual participants.
type Flow struct {
	// IndividualBuyPower is individual buy volume over individual sell volume (0 without sells).
	IndividualBuyPower float64 `msgpack:"p"`
	// NetFlow is individual buy volume minus individual sell volume.
	NetFlow            float64 `msgpack:"n"`
	// BuyPerTrade is individual buy volume per buy trade (0 without trades).
	BuyPerTrade        float64 `msgpack:"b"`
	// SellPerTrade is individual sell volume per sell trade (0 without trades).
	SellPerTrade       float64 `msgpack:"s"`
}

// PerTradeRatio compares the average individual buy and sell ticket size.
// It is 0 when either side has no trades.
func (f Flow) PerTradeRatio() float64 {
	if f.BuyPerTrade <= 0 || f.SellPerTrade <= 0 {
		return 0
	}
	return f.BuyPerTrade / f.SellPerTrade
}

// SmartMoneyFlow derives individual order-flow ratios for every bar.
// Missing or malformed fields count as zero.
func SmartMoneyFlow(bars []domain.Bar) []Flow {
	out := make([]Flow, len(bars))
	for i, b := range bars {
		b.Sanitize()
		out[i] = Flow{
			IndividualBuyPower: ratio(b.BuyIVolume, b.SellIVolume),
			NetFlow:            b.BuyIVolume - b.SellIVolume,
			BuyPerTrade:        ratio(b.BuyIVolume, b.BuyCountI),
			SellPerTrade:       ratio(b.SellIVolume, b.SellCountI),
		}
	}
	return out
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
