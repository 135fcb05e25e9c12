// Package indicators provides technical indicator series over daily bars.
//
// Every function returns a slice with exactly the input length. Entries that
// cannot be computed yet (warm-up) or at all (short input) are NaN; use
// IsDefined to test them. Inputs are never mutated and never cause a panic.
package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
)

// IsDefined reports whether v holds a computed value.
func IsDefined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// At returns values[i], or NaN when i is out of range.
func At(values []float64, i int) float64 {
	if i < 0 || i >= len(values) {
		return math.NaN()
	}
	return values[i]
}

// Last returns the final entry, or NaN for an empty slice.
func Last(values []float64) float64 {
	return At(values, len(values)-1)
}

// Prev returns the entry before the final one, or NaN.
func Prev(values []float64) float64 {
	return At(values, len(values)-2)
}

// sanitize copies values, replacing non-finite entries with the last finite
// value seen (zero before the first one).
func sanitize(values []float64) []float64 {
	out := make([]float64, len(values))
	last := 0.0
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = last
		}
		out[i] = v
		last = v
	}
	return out
}

func undefined(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// maskWarmup marks the first n entries as undefined.
func maskWarmup(values []float64, n int) []float64 {
	for i := 0; i < n && i < len(values); i++ {
		values[i] = math.NaN()
	}
	return values
}

// SMA is the simple moving average.
func SMA(values []float64, window int) []float64 {
	if window < 1 || len(values) < window {
		return undefined(len(values))
	}
	return maskWarmup(talib.Sma(sanitize(values), window), window-1)
}

// EMA is the exponential moving average seeded with the first window's SMA.
func EMA(values []float64, window int) []float64 {
	if window < 1 || len(values) < window {
		return undefined(len(values))
	}
	return maskWarmup(talib.Ema(sanitize(values), window), window-1)
}

// VolumeMA is the simple moving average of volume.
func VolumeMA(volumes []float64, window int) []float64 {
	return SMA(volumes, window)
}

// RSI is Wilder's relative strength index, within [0,100] wherever defined.
// The first window entries are undefined. A series that has not moved at all
// reads 50.
func RSI(closes []float64, window int) []float64 {
	if window < 2 || len(closes) <= window {
		return undefined(len(closes))
	}

	clean := sanitize(closes)
	out := maskWarmup(talib.Rsi(clean, window), window)

	moved := 0.0
	for i := 1; i < len(clean); i++ {
		moved += math.Abs(clean[i] - clean[i-1])
		if !IsDefined(out[i]) {
			continue
		}
		switch {
		case moved == 0:
			out[i] = 50
		case out[i] < 0:
			out[i] = 0
		case out[i] > 100:
			out[i] = 100
		}
	}
	return out
}

// MACDResult holds the three index-aligned MACD series.
type MACDResult struct {
	MACD      []float64 `msgpack:"m"`
	Signal    []float64 `msgpack:"s"`
	Histogram []float64 `msgpack:"h"`
}

// MACD is the fast/slow EMA spread with an EMA signal line over the spread.
// The spread is defined from index slow-1, the signal and histogram from
// index slow+signal-2.
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	n := len(closes)
	res := MACDResult{MACD: undefined(n), Signal: undefined(n), Histogram: undefined(n)}
	if fast < 1 || signal < 1 || slow <= fast || n < slow {
		return res
	}

	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	start := slow - 1
	for i := start; i < n; i++ {
		res.MACD[i] = fastEMA[i] - slowEMA[i]
	}

	if n-start < signal {
		return res
	}
	sig := talib.Ema(res.MACD[start:], signal)
	for j := signal - 1; j < len(sig); j++ {
		i := start + j
		res.Signal[i] = sig[j]
		res.Histogram[i] = res.MACD[i] - sig[j]
	}
	return res
}

// Bands holds Bollinger bands.
type Bands struct {
	Upper  []float64 `msgpack:"u"`
	Middle []float64 `msgpack:"m"`
	Lower  []float64 `msgpack:"l"`
}

// Bollinger computes an SMA middle band with bands k population standard
// deviations away.
func Bollinger(closes []float64, window int, k float64) Bands {
	n := len(closes)
	if window < 2 || n < window {
		return Bands{Upper: undefined(n), Middle: undefined(n), Lower: undefined(n)}
	}
	upper, middle, lower := talib.BBands(sanitize(closes), window, k, k, talib.SMA)
	return Bands{
		Upper:  maskWarmup(upper, window-1),
		Middle: maskWarmup(middle, window-1),
		Lower:  maskWarmup(lower, window-1),
	}
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|).
// The first bar has no previous close and uses high-low.
func TrueRange(high, low, closes []float64) []float64 {
	n := len(closes)
	if len(high) != n || len(low) != n {
		return undefined(n)
	}
	if n == 0 {
		return []float64{}
	}
	h, l := sanitize(high), sanitize(low)
	out := talib.TRange(h, l, sanitize(closes))
	out[0] = h[0] - l[0]
	return out
}

// ATR is the Wilder-smoothed average true range. The first window entries
// are undefined.
func ATR(high, low, closes []float64, window int) []float64 {
	n := len(closes)
	if window < 2 || len(high) != n || len(low) != n || n <= window {
		return undefined(n)
	}
	return maskWarmup(talib.Atr(sanitize(high), sanitize(low), sanitize(closes), window), window)
}

// RollingMax is the maximum over a trailing window including the current entry.
func RollingMax(values []float64, window int) []float64 {
	return rolling(values, window, talib.Max)
}

// RollingMin is the minimum over a trailing window including the current entry.
func RollingMin(values []float64, window int) []float64 {
	return rolling(values, window, talib.Min)
}

func rolling(values []float64, window int, fn func([]float64, int) []float64) []float64 {
	if window < 1 || len(values) < window {
		return undefined(len(values))
	}
	if window == 1 {
		return sanitize(values)
	}
	return maskWarmup(fn(sanitize(values), window), window-1)
}
