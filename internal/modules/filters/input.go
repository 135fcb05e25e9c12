package filters

import (
	"fmt"

	"github.com/aristath/signalscope/internal/domain"
	"github.com/aristath/signalscope/internal/modules/indicators"
)

// Input is everything a predicate may look at for one instrument.
type Input struct {
	Instrument domain.Instrument
	Series     domain.PriceSeries
	Snapshot   *indicators.Snapshot
}

// NewInput bundles an instrument with its series and snapshot.
func NewInput(inst domain.Instrument, series domain.PriceSeries, snap *indicators.Snapshot) *Input {
	return &Input{Instrument: inst, Series: series, Snapshot: snap}
}

func insufficient(what string) error {
	return fmt.Errorf("%w: %s", domain.ErrDataInsufficient, what)
}

func (in *Input) bars() []domain.Bar {
	return in.Series.Bars
}

// current returns the latest bar.
func (in *Input) current() (domain.Bar, error) {
	n := len(in.Series.Bars)
	if n == 0 {
		return domain.Bar{}, insufficient("no bars")
	}
	return in.Series.Bars[n-1], nil
}

// currentAndPrevious returns the latest two bars.
func (in *Input) currentAndPrevious() (cur, prev domain.Bar, err error) {
	n := len(in.Series.Bars)
	if n < 2 {
		return cur, prev, insufficient("fewer than 2 bars")
	}
	return in.Series.Bars[n-1], in.Series.Bars[n-2], nil
}

func (in *Input) snapshot() (*indicators.Snapshot, error) {
	if in.Snapshot == nil || in.Snapshot.Len() == 0 {
		return nil, insufficient("no indicator snapshot")
	}
	return in.Snapshot, nil
}

// latest returns the final value of an indicator series.
func latest(name string, values []float64) (float64, error) {
	v := indicators.Last(values)
	if !indicators.IsDefined(v) {
		return 0, insufficient(name + " undefined")
	}
	return v, nil
}

// latestTwo returns the final two values of an indicator series.
func latestTwo(name string, values []float64) (cur, prev float64, err error) {
	cur, prev = indicators.Last(values), indicators.Prev(values)
	if !indicators.IsDefined(cur) || !indicators.IsDefined(prev) {
		return 0, 0, insufficient(name + " undefined")
	}
	return cur, prev, nil
}

// crossedAbove reports a crossing of a over b on the latest bar.
func crossedAbove(aCur, aPrev, bCur, bPrev float64) bool {
	return aCur > bCur && aPrev <= bPrev
}

// crossedBelow reports a crossing of a under b on the latest bar.
func crossedBelow(aCur, aPrev, bCur, bPrev float64) bool {
	return aCur < bCur && aPrev >= bPrev
}
