package testing

import (
	"time"

	"github.com/aristath/signalscope/internal/domain"
)

// BaseDate is the first bar date of every generated series.
var BaseDate = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

// Day returns BaseDate shifted by n days.
func Day(n int) time.Time {
	return BaseDate.AddDate(0, 0, n)
}

// NewInstrumentFixtures returns one instrument per category.
func NewInstrumentFixtures() []domain.Instrument {
	pe := 8.5
	eps := 1200.0
	return []domain.Instrument{
		{ID: "IRO1FOLD0001", Symbol: "FOLD", Name: "Foolad Steel", Category: domain.CategoryStock, PE: &pe, EPS: &eps},
		{ID: "IRO1KHOD0001", Symbol: "KHOD", Name: "Khodro Motors", Category: domain.CategoryStock},
		{ID: "IRT1ETF00001", Symbol: "AYAR", Name: "Ayar Gold ETF", Category: domain.CategoryFund},
		{ID: "IRR1FOLD0101", Symbol: "FOLDR", Name: "Foolad Steel Rights", Category: domain.CategoryRights},
	}
}

// FlatBar returns a bar with every price at p and the given volume.
func FlatBar(day int, p, volume float64) domain.Bar {
	return domain.Bar{
		Date:   Day(day),
		Open:   p,
		High:   p,
		Low:    p,
		Close:  p,
		Final:  p,
		Volume: volume,
		Value:  p * volume,
	}
}

// FlatSeries returns n bars at price p with constant volume.
func FlatSeries(id string, n int, p, volume float64) domain.PriceSeries {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = FlatBar(i, p, volume)
	}
	return domain.PriceSeries{InstrumentID: id, Bars: bars}
}

// TrendSeries returns n bars starting at start and moving by step each day.
// Each bar has a 1% range around its close and opens at the previous close.
func TrendSeries(id string, n int, start, step, volume float64) domain.PriceSeries {
	bars := make([]domain.Bar, n)
	prev := start
	for i := range bars {
		c := start + step*float64(i)
		hi, lo := c*1.005, c*0.995
		if prev > hi {
			hi = prev
		}
		if prev < lo {
			lo = prev
		}
		bars[i] = domain.Bar{
			Date:   Day(i),
			Open:   prev,
			High:   hi,
			Low:    lo,
			Close:  c,
			Final:  c,
			Volume: volume,
			Value:  c * volume,
		}
		prev = c
	}
	return domain.PriceSeries{InstrumentID: id, Bars: bars}
}

// AppendBar adds b after the last bar of s, dated one day later.
func AppendBar(s domain.PriceSeries, b domain.Bar) domain.PriceSeries {
	b.Date = s.LastDate().AddDate(0, 0, 1)
	if len(s.Bars) == 0 {
		b.Date = BaseDate
	}
	s.Bars = append(append([]domain.Bar(nil), s.Bars...), b)
	return s
}
