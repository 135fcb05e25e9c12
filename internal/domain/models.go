// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"math"
	"time"
)

// Source identifies the pipeline that produced a candidate or signal.
type Source string

const (
	// SourceGoldenKey is the weighted multi-filter breakout pipeline
	SourceGoldenKey Source = "golden_key"
	// SourceWeeklyWatchlist is the weekly technical/fundamental watchlist
	SourceWeeklyWatchlist Source = "weekly_watchlist"
	// SourceBuyQueue detects instruments likely to form a buy queue
	SourceBuyQueue Source = "buy_queue"
	// SourceOverall aggregates every pipeline (performance reports only)
	SourceOverall Source = "overall"
)

// InstrumentCategory classifies an instrument for eligibility rules.
type InstrumentCategory string

const (
	CategoryStock  InstrumentCategory = "stock"
	CategoryFund   InstrumentCategory = "fund"
	CategoryRights InstrumentCategory = "rights"
)

// Instrument is a tradable security.
type Instrument struct {
	ID       string             `json:"id"`
	Symbol   string             `json:"symbol"`
	Name     string             `json:"name"`
	Category InstrumentCategory `json:"category"`
	PE       *float64           `json:"pe,omitempty"`  // Optional fundamentals
	EPS      *float64           `json:"eps,omitempty"` // Optional fundamentals
}

// DepthLevel is one order-book level (bid and ask side).
type DepthLevel struct {
	BidCount  float64 `json:"bid_count" msgpack:"zd"`
	BidVolume float64 `json:"bid_volume" msgpack:"qd"`
	BidPrice  float64 `json:"bid_price" msgpack:"pd"`
	AskCount  float64 `json:"ask_count" msgpack:"zo"`
	AskVolume float64 `json:"ask_volume" msgpack:"qo"`
	AskPrice  float64 `json:"ask_price" msgpack:"po"`
}

// DepthLevels is the number of order-book levels carried on a bar.
const DepthLevels = 5

// Bar is one trading day for an instrument.
// Every numeric field defaults to zero, which is the neutral value for all
// indicator and filter computations.
type Bar struct {
	Date           time.Time `json:"date" msgpack:"d"`
	Open           float64   `json:"open" msgpack:"o"`
	High           float64   `json:"high" msgpack:"h"`
	Low            float64   `json:"low" msgpack:"l"`
	Close          float64   `json:"close" msgpack:"c"`
	Final          float64   `json:"final" msgpack:"f"`
	YesterdayPrice float64   `json:"yesterday_price" msgpack:"y"`
	Volume         float64   `json:"volume" msgpack:"v"`
	Value          float64   `json:"value" msgpack:"val"`
	NumTrades      float64   `json:"num_trades" msgpack:"n"`

	// Order flow split by individual (I) and institutional (N) participants.
	BuyCountI   float64 `json:"buy_count_i" msgpack:"bci"`
	BuyCountN   float64 `json:"buy_count_n" msgpack:"bcn"`
	SellCountI  float64 `json:"sell_count_i" msgpack:"sci"`
	SellCountN  float64 `json:"sell_count_n" msgpack:"scn"`
	BuyIVolume  float64 `json:"buy_i_volume" msgpack:"biv"`
	BuyNVolume  float64 `json:"buy_n_volume" msgpack:"bnv"`
	SellIVolume float64 `json:"sell_i_volume" msgpack:"siv"`
	SellNVolume float64 `json:"sell_n_volume" msgpack:"snv"`

	Depth [DepthLevels]DepthLevel `json:"depth" msgpack:"dp"`
}

// ReliablePrice returns the final trade price, falling back to close when
// final is missing or non-positive. Zero means no usable price.
func (b Bar) ReliablePrice() float64 {
	if finite(b.Final) && b.Final > 0 {
		return b.Final
	}
	if finite(b.Close) && b.Close > 0 {
		return b.Close
	}
	return 0
}

// Sanitize coerces non-finite numbers to zero and negative sizes to zero.
func (b *Bar) Sanitize() {
	for _, f := range []*float64{
		&b.Open, &b.High, &b.Low, &b.Close, &b.Final, &b.YesterdayPrice,
		&b.Value, &b.NumTrades,
	} {
		if !finite(*f) {
			*f = 0
		}
	}
	for _, f := range []*float64{
		&b.Volume,
		&b.BuyCountI, &b.BuyCountN, &b.SellCountI, &b.SellCountN,
		&b.BuyIVolume, &b.BuyNVolume, &b.SellIVolume, &b.SellNVolume,
	} {
		if !finite(*f) || *f < 0 {
			*f = 0
		}
	}
	for i := range b.Depth {
		lvl := &b.Depth[i]
		for _, f := range []*float64{
			&lvl.BidCount, &lvl.BidVolume, &lvl.BidPrice,
			&lvl.AskCount, &lvl.AskVolume, &lvl.AskPrice,
		} {
			if !finite(*f) || *f < 0 {
				*f = 0
			}
		}
	}
}

// PriceSeries is the ordered daily history of one instrument (oldest first).
type PriceSeries struct {
	InstrumentID string `json:"instrument_id" msgpack:"id"`
	Bars         []Bar  `json:"bars" msgpack:"b"`
}

// Len returns the number of bars.
func (s PriceSeries) Len() int {
	return len(s.Bars)
}

// Last returns the most recent bar, or nil for an empty series.
func (s PriceSeries) Last() *Bar {
	if len(s.Bars) == 0 {
		return nil
	}
	return &s.Bars[len(s.Bars)-1]
}

// LastDate returns the date of the most recent bar (zero time when empty).
func (s PriceSeries) LastDate() time.Time {
	if last := s.Last(); last != nil {
		return last.Date
	}
	return time.Time{}
}

// Opens returns the open column.
func (s PriceSeries) Opens() []float64 {
	return s.column(func(b Bar) float64 { return b.Open })
}

// Highs returns the high column.
func (s PriceSeries) Highs() []float64 {
	return s.column(func(b Bar) float64 { return b.High })
}

// Lows returns the low column.
func (s PriceSeries) Lows() []float64 {
	return s.column(func(b Bar) float64 { return b.Low })
}

// Closes returns the close column.
func (s PriceSeries) Closes() []float64 {
	return s.column(func(b Bar) float64 { return b.Close })
}

// Volumes returns the volume column.
func (s PriceSeries) Volumes() []float64 {
	return s.column(func(b Bar) float64 { return b.Volume })
}

func (s PriceSeries) column(get func(Bar) float64) []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = get(b)
	}
	return out
}

// Validate sanitizes every bar and rejects out-of-order dates or
// contradictory bars (high below low).
func (s *PriceSeries) Validate() error {
	for i := range s.Bars {
		s.Bars[i].Sanitize()
		b := s.Bars[i]
		if b.High > 0 && b.Low > 0 && b.High < b.Low {
			return fmt.Errorf("%w: bar %s has high %.2f below low %.2f",
				ErrDataInvalid, b.Date.Format("2006-01-02"), b.High, b.Low)
		}
		if i > 0 && !b.Date.After(s.Bars[i-1].Date) {
			return fmt.Errorf("%w: bar dates not strictly ascending at %s",
				ErrDataInvalid, b.Date.Format("2006-01-02"))
		}
	}
	return nil
}

// SignalStatus is the lifecycle state of a Signal.
type SignalStatus string

const (
	StatusActive        SignalStatus = "active"
	StatusClosedWin     SignalStatus = "closed_win"
	StatusClosedLoss    SignalStatus = "closed_loss"
	StatusClosedNeutral SignalStatus = "closed_neutral"
)

// TerminalStatuses lists every closed state.
var TerminalStatuses = []SignalStatus{StatusClosedWin, StatusClosedLoss, StatusClosedNeutral}

// IsTerminal reports whether no further transitions are allowed.
func (s SignalStatus) IsTerminal() bool {
	return s == StatusClosedWin || s == StatusClosedLoss || s == StatusClosedNeutral
}

// Valid reports whether s is a known status.
func (s SignalStatus) Valid() bool {
	return s == StatusActive || s.IsTerminal()
}

// Signal is a tracked recommendation from entry until a closing condition fires.
type Signal struct {
	ID           string       `json:"id"`
	InstrumentID string       `json:"instrument_id"`
	Symbol       string       `json:"symbol"`
	Source       Source       `json:"source"`
	EntryDate    time.Time    `json:"entry_date"`
	EntryPrice   float64      `json:"entry_price"`
	Outlook      string       `json:"outlook,omitempty"`
	Rationale    string       `json:"rationale"`
	Score        float64      `json:"score"`
	Satisfied    FilterSet    `json:"satisfied_filters"`
	Probability  float64      `json:"probability_percent"`
	Status       SignalStatus `json:"status"`
	ExitDate     *time.Time   `json:"exit_date,omitempty"`
	ExitPrice    *float64     `json:"exit_price,omitempty"`
	PnLPercent   *float64     `json:"profit_loss_percent,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// HeldDays returns whole calendar days between entry and asOf.
func (s Signal) HeldDays(asOf time.Time) int {
	return DaysBetween(s.EntryDate, asOf)
}

// SignalFilter narrows signal history queries. Nil fields match everything.
type SignalFilter struct {
	Source *Source
	Status *SignalStatus
	Limit  int
}

// ScoreResult is the outcome of scoring one instrument on one date for one pipeline.
type ScoreResult struct {
	InstrumentID     string    `json:"instrument_id"`
	Symbol           string    `json:"symbol"`
	Source           Source    `json:"source"`
	AsOf             time.Time `json:"as_of"`
	Score            float64   `json:"score"`
	Satisfied        FilterSet `json:"satisfied_filters"`
	Rationale        string    `json:"rationale"`
	RecommendedPrice float64   `json:"recommended_price"`
	Probability      float64   `json:"probability_percent"`
	Outlook          string    `json:"outlook,omitempty"`
	StatusLabel      string    `json:"status_label,omitempty"`
	Group            string    `json:"group"`
	LeadRank         int       `json:"-"`
	Selected         bool      `json:"selected"`
}

// Candidate groups used by ranking.
const (
	GroupGeneral = "general"
	GroupFund    = "fund"
)

// PeriodType is the window of a performance aggregate.
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
	PeriodAnnual  PeriodType = "annual"
)

// AllPeriods lists every supported period type.
var AllPeriods = []PeriodType{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAnnual}

// Days returns the window length in calendar days (0 for unknown periods).
func (p PeriodType) Days() int {
	switch p {
	case PeriodDaily:
		return 1
	case PeriodWeekly:
		return 7
	case PeriodMonthly:
		return 30
	case PeriodAnnual:
		return 365
	}
	return 0
}

// ParsePeriodType validates a period name.
func ParsePeriodType(s string) (PeriodType, error) {
	p := PeriodType(s)
	if p.Days() == 0 {
		return "", fmt.Errorf("unknown period type %q", s)
	}
	return p, nil
}

// AggregatedPerformanceRecord summarizes closed signals for one period and source.
type AggregatedPerformanceRecord struct {
	ReportDate          time.Time  `json:"report_date"`
	PeriodType          PeriodType `json:"period_type"`
	Source              Source     `json:"source"`
	TotalSignals        int        `json:"total_signals"`
	SuccessfulSignals   int        `json:"successful_signals"`
	WinRate             float64    `json:"win_rate"`
	TotalProfitPercent  float64    `json:"total_profit_percent"`
	TotalLossPercent    float64    `json:"total_loss_percent"`
	AverageProfitPerWin float64    `json:"average_profit_per_win"`
	AverageLossPerLoss  float64    `json:"average_loss_per_loss"`
	NetProfitPercent    float64    `json:"net_profit_percent"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
