package patterns

import (
	"sort"

	"github.com/aristath/signalscope/internal/domain"
)

const trendlineWindow = 30

// IsDescendingTrendlineBreakout finds local peaks among the last 30 highs
// (a high equal to the max of itself and both neighbours), keeps peaks that
// take part in a descending pair, fits a line through the two most recent
// and fires when the current bar closes above that line's projection with a
// strong bullish body and volume above 1.5x the trailing 10-bar average.
func IsDescendingTrendlineBreakout(bars []domain.Bar) bool {
	if len(bars) < trendlineWindow {
		return false
	}
	offset := len(bars) - trendlineWindow
	window := bars[offset:]

	// Peaks need both neighbours, so the window edges never qualify
	var peaks []int
	for i := 1; i < len(window)-1; i++ {
		h := window[i].High
		if h >= window[i-1].High && h >= window[i+1].High {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) < 2 {
		return false
	}

	descending := make(map[int]bool)
	for i := 0; i+1 < len(peaks); i++ {
		if window[peaks[i]].High > window[peaks[i+1]].High {
			descending[peaks[i]] = true
			descending[peaks[i+1]] = true
		}
	}
	if len(descending) < 2 {
		return false
	}
	ordered := make([]int, 0, len(descending))
	for idx := range descending {
		ordered = append(ordered, idx)
	}
	sort.Ints(ordered)

	p1 := ordered[len(ordered)-2]
	p2 := ordered[len(ordered)-1]
	slope := (window[p2].High - window[p1].High) / float64(p2-p1)
	if slope >= 0 {
		return false
	}

	current := len(window) - 1
	projected := window[p2].High + slope*float64(current-p2)

	cur := window[current]
	return cur.Close > projected &&
		IsStrongBullishCandle(cur) &&
		volumeSurge(bars)
}
