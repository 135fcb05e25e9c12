package patterns

import (
	"math"

	"github.com/aristath/signalscope/internal/domain"
)

// DefaultLevelWindow is the lookback for support and resistance levels.
const DefaultLevelWindow = 20

// priorBars returns up to window bars before the last one, or nil when the
// series is shorter than window.
func priorBars(bars []domain.Bar, window int) []domain.Bar {
	if window < 1 || len(bars) < window || len(bars) < 2 {
		return nil
	}
	start := len(bars) - 1 - window
	if start < 0 {
		start = 0
	}
	return bars[start : len(bars)-1]
}

// IsResistanceBreakout reports a close above the highest high of the prior
// window bars.
func IsResistanceBreakout(bars []domain.Bar, window int) bool {
	prior := priorBars(bars, window)
	if prior == nil {
		return false
	}
	highest := math.Inf(-1)
	for _, b := range prior {
		highest = math.Max(highest, b.High)
	}
	return bars[len(bars)-1].Close > highest
}

// IsSupportBreakdown reports a close below the lowest low of the prior
// window bars.
func IsSupportBreakdown(bars []domain.Bar, window int) bool {
	prior := priorBars(bars, window)
	if prior == nil {
		return false
	}
	lowest := math.Inf(1)
	for _, b := range prior {
		lowest = math.Min(lowest, b.Low)
	}
	return bars[len(bars)-1].Close < lowest
}
