package indicators

import (
	"time"

	"github.com/aristath/signalscope/internal/domain"
)

// Params holds indicator windows.
type Params struct {
	RSIWindow  int     `msgpack:"rsi"`
	MACDFast   int     `msgpack:"mf"`
	MACDSlow   int     `msgpack:"ms"`
	MACDSignal int     `msgpack:"mg"`
	SMAShort   int     `msgpack:"ss"`
	SMALong    int     `msgpack:"sl"`
	BBWindow   int     `msgpack:"bw"`
	BBK        float64 `msgpack:"bk"`
	ATRWindow  int     `msgpack:"aw"`
	VolShort   int     `msgpack:"vs"`
	VolMid     int     `msgpack:"vm"`
	VolLong    int     `msgpack:"vl"`
}

// DefaultParams returns the standard daily windows.
func DefaultParams() Params {
	return Params{
		RSIWindow:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		SMAShort:   20,
		SMALong:    50,
		BBWindow:   20,
		BBK:        2,
		ATRWindow:  14,
		VolShort:   5,
		VolMid:     20,
		VolLong:    120,
	}
}

// Snapshot is every derived series for one instrument, index-aligned with
// its PriceSeries. It has no identity of its own and is rebuilt whenever a
// new bar arrives.
type Snapshot struct {
	InstrumentID string    `msgpack:"id"`
	LastBarDate  time.Time `msgpack:"d"`
	Params       Params    `msgpack:"p"`

	RSI      []float64  `msgpack:"rsi"`
	MACD     MACDResult `msgpack:"macd"`
	SMAShort []float64  `msgpack:"sma_s"`
	SMALong  []float64  `msgpack:"sma_l"`
	Bands    Bands      `msgpack:"bb"`
	ATR      []float64  `msgpack:"atr"`
	VolShort []float64  `msgpack:"vol_s"`
	VolMid   []float64  `msgpack:"vol_m"`
	VolLong  []float64  `msgpack:"vol_l"`
	Flow     []Flow     `msgpack:"flow"`
}

// Compute builds the snapshot for series.
func Compute(series domain.PriceSeries, p Params) *Snapshot {
	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()
	volumes := series.Volumes()

	return &Snapshot{
		InstrumentID: series.InstrumentID,
		LastBarDate:  series.LastDate(),
		Params:       p,
		RSI:          RSI(closes, p.RSIWindow),
		MACD:         MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal),
		SMAShort:     SMA(closes, p.SMAShort),
		SMALong:      SMA(closes, p.SMALong),
		Bands:        Bollinger(closes, p.BBWindow, p.BBK),
		ATR:          ATR(highs, lows, closes, p.ATRWindow),
		VolShort:     VolumeMA(volumes, p.VolShort),
		VolMid:       VolumeMA(volumes, p.VolMid),
		VolLong:      VolumeMA(volumes, p.VolLong),
		Flow:         SmartMoneyFlow(series.Bars),
	}
}

// Len returns the number of bars covered.
func (s *Snapshot) Len() int {
	return len(s.RSI)
}

// Matches reports whether the snapshot was built for series with params p.
func (s *Snapshot) Matches(series domain.PriceSeries, p Params) bool {
	return s != nil &&
		s.InstrumentID == series.InstrumentID &&
		s.Len() == series.Len() &&
		s.LastBarDate.Equal(series.LastDate()) &&
		s.Params == p
}

// LastFlow returns the most recent flow entry (zero value when empty).
func (s *Snapshot) LastFlow() Flow {
	if len(s.Flow) == 0 {
		return Flow{}
	}
	return s.Flow[len(s.Flow)-1]
}
