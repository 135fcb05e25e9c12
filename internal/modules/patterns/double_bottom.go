package patterns

import (
	"github.com/aristath/signalscope/internal/domain"
	"gonum.org/v1/gonum/stat"
)

const (
	doubleBottomWindow    = 40
	doubleBottomTolerance = 0.05
	breakoutVolumeWindow  = 10
	breakoutVolumeFactor  = 1.5
)

// IsDoubleBottomBreakout looks for two comparable lows in the last 40 closes
// (one in each half, within 5% of each other) and fires when the current
// close clears the highest close between them on volume above 1.5x the
// trailing 10-bar average.
func IsDoubleBottomBreakout(bars []domain.Bar) bool {
	if len(bars) < doubleBottomWindow {
		return false
	}
	window := bars[len(bars)-doubleBottomWindow:]
	half := doubleBottomWindow / 2

	b1 := argMinClose(window[:half])
	b2 := half + argMinClose(window[half:])
	low1, low2 := window[b1].Close, window[b2].Close
	if low1 <= 0 {
		return false
	}
	if low2 < (1-doubleBottomTolerance)*low1 || low2 > (1+doubleBottomTolerance)*low1 {
		return false
	}

	neckline := window[b1].Close
	for _, b := range window[b1 : b2+1] {
		if b.Close > neckline {
			neckline = b.Close
		}
	}

	cur := bars[len(bars)-1]
	return cur.Close > neckline && volumeSurge(bars)
}

// volumeSurge reports current volume above 1.5x the mean of the last ten
// volumes (current bar included).
func volumeSurge(bars []domain.Bar) bool {
	if len(bars) < breakoutVolumeWindow {
		return false
	}
	recent := bars[len(bars)-breakoutVolumeWindow:]
	vols := make([]float64, len(recent))
	for i, b := range recent {
		vols[i] = b.Volume
	}
	return bars[len(bars)-1].Volume > breakoutVolumeFactor*stat.Mean(vols, nil)
}

// argMinClose returns the index of the first lowest close.
func argMinClose(bars []domain.Bar) int {
	idx := 0
	for i, b := range bars {
		if b.Close < bars[idx].Close {
			idx = i
		}
	}
	return idx
}
