// Package patterns recognizes candlestick and multi-bar chart patterns.
//
// Every detector is a pure function over the trailing bars of a series
// (oldest first). Below its minimum bar count a detector returns false.
package patterns

import (
	"math"

	"github.com/aristath/signalscope/internal/domain"
)

// downtrendLookback is the number of closes inspected for hammer context.
const downtrendLookback = 10

func body(b domain.Bar) float64 {
	return math.Abs(b.Close - b.Open)
}

func candleRange(b domain.Bar) float64 {
	return b.High - b.Low
}

// IsBullishEngulfing reports a bearish bar followed by a bullish bar that
// opens below the prior close and closes above the prior open.
func IsBullishEngulfing(prev, cur domain.Bar) bool {
	return prev.Close < prev.Open &&
		cur.Close > cur.Open &&
		cur.Open < prev.Close &&
		cur.Close > prev.Open
}

// IsHammer reports a small-bodied bar with a long lower shadow and almost no
// upper shadow, closing near the low of a downtrend.
func IsHammer(bars []domain.Bar) bool {
	if len(bars) < 2 {
		return false
	}
	cur := bars[len(bars)-1]

	r := candleRange(cur)
	bd := body(cur)
	if r <= 0 || bd <= 0 || bd >= 0.3*r {
		return false
	}

	lowerShadow := math.Min(cur.Open, cur.Close) - cur.Low
	upperShadow := cur.High - math.Max(cur.Open, cur.Close)
	if lowerShadow < 2*bd || upperShadow >= 0.1*bd {
		return false
	}

	return inDowntrend(bars)
}

// inDowntrend reports whether the last close sits within 2% of the lowest of
// the last ten closes and below the first of them.
func inDowntrend(bars []domain.Bar) bool {
	if len(bars) < downtrendLookback {
		return false
	}
	recent := bars[len(bars)-downtrendLookback:]
	lowest := math.Inf(1)
	for _, b := range recent {
		lowest = math.Min(lowest, b.Close)
	}
	if lowest <= 0 {
		return false
	}
	c := recent[len(recent)-1].Close
	return c <= lowest*1.02 && recent[0].Close > c
}

// IsDoji reports a bar whose body is at most a tenth of its range.
func IsDoji(b domain.Bar) bool {
	r := candleRange(b)
	return r > 0 && body(b) <= 0.1*r
}

// IsStrongBullishCandle reports a rising bar whose body exceeds half its range.
func IsStrongBullishCandle(b domain.Bar) bool {
	r := candleRange(b)
	return r > 0 && b.Close > b.Open && (b.Close-b.Open) > 0.5*r
}
