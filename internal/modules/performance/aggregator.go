// Package performance rolls closed signals into period and source
// aggregates.
package performance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/signalscope/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Build computes the aggregate of closed signals. Neutral closes count
// toward the total but not toward profit or loss. An empty set yields a
// record of zeros.
func Build(reportDate time.Time, period domain.PeriodType, source domain.Source, closed []domain.Signal) domain.AggregatedPerformanceRecord {
	rec := domain.AggregatedPerformanceRecord{
		ReportDate: domain.DateOf(reportDate),
		PeriodType: period,
		Source:     source,
	}

	var wins, losses []float64
	for _, s := range closed {
		if !s.Status.IsTerminal() {
			continue
		}
		rec.TotalSignals++
		if s.Status == domain.StatusClosedWin {
			rec.SuccessfulSignals++
		}
		if s.PnLPercent == nil {
			continue
		}
		switch s.Status {
		case domain.StatusClosedWin:
			wins = append(wins, *s.PnLPercent)
		case domain.StatusClosedLoss:
			losses = append(losses, *s.PnLPercent)
		}
	}

	if rec.TotalSignals > 0 {
		rec.WinRate = float64(rec.SuccessfulSignals) / float64(rec.TotalSignals) * 100
	}
	rec.TotalProfitPercent = sum(wins)
	rec.TotalLossPercent = sum(losses)
	rec.AverageProfitPerWin = mean(wins)
	rec.AverageLossPerLoss = mean(losses)
	rec.NetProfitPercent = rec.TotalProfitPercent + rec.TotalLossPercent
	return rec
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Aggregator computes and stores performance records.
type Aggregator struct {
	signals domain.SignalStore
	store   domain.PerformanceStore
	sources []domain.Source
	log     zerolog.Logger
}

// NewAggregator creates an aggregator. sources lists the pipelines that
// track signals; ComputeAll covers each of them plus overall.
func NewAggregator(signals domain.SignalStore, store domain.PerformanceStore, sources []domain.Source, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		signals: signals,
		store:   store,
		sources: sources,
		log:     log.With().Str("component", "performance_aggregator").Logger(),
	}
}

// Compute recomputes the record for (today, period, source) from closed
// signals entered within the period window and upserts it. The overall
// source spans every pipeline.
func (a *Aggregator) Compute(ctx context.Context, period domain.PeriodType, source domain.Source, today time.Time) (*domain.AggregatedPerformanceRecord, error) {
	if _, err := domain.ParsePeriodType(string(period)); err != nil {
		return nil, err
	}

	today = domain.DateOf(today)
	since := today.AddDate(0, 0, -period.Days())

	var filter *domain.Source
	if source != domain.SourceOverall {
		filter = &source
	}
	closed, err := a.signals.ListTerminalSince(ctx, filter, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load closed signals: %w", err)
	}

	rec := Build(today, period, source, closed)
	if err := a.store.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save aggregate: %w", err)
	}

	a.log.Info().
		Str("source", string(source)).
		Str("period", string(period)).
		Int("total_signals", rec.TotalSignals).
		Float64("win_rate", rec.WinRate).
		Float64("net_profit_percent", rec.NetProfitPercent).
		Msg("Aggregate computed")
	return &rec, nil
}

// ComputeAll computes every period for each tracked pipeline and overall.
// A failure for one key is logged and the rest still run; the joined errors
// are returned.
func (a *Aggregator) ComputeAll(ctx context.Context, today time.Time) ([]domain.AggregatedPerformanceRecord, error) {
	sources := append(append([]domain.Source(nil), a.sources...), domain.SourceOverall)

	var (
		out  []domain.AggregatedPerformanceRecord
		errs []error
	)
	for _, source := range sources {
		for _, period := range domain.AllPeriods {
			rec, err := a.Compute(ctx, period, source, today)
			if err != nil {
				a.log.Error().
					Err(err).
					Str("source", string(source)).
					Str("period", string(period)).
					Msg("Failed to compute aggregate")
				errs = append(errs, err)
				continue
			}
			out = append(out, *rec)
		}
	}
	return out, errors.Join(errs...)
}

// SourceBreakdown summarizes the closed signals of one pipeline.
type SourceBreakdown struct {
	TotalSignals     int     `json:"total_signals"`
	Wins             int     `json:"wins"`
	Losses           int     `json:"losses"`
	Neutral          int     `json:"neutral"`
	WinRate          float64 `json:"win_rate"`
	NetProfitPercent float64 `json:"net_profit_percent"`
}

// Summary is the all-time performance overview.
type Summary struct {
	TotalSignals        int                                 `json:"total_signals_evaluated"`
	WinRate             float64                             `json:"overall_win_rate"`
	AverageProfitPerWin float64                             `json:"average_profit_per_win_overall"`
	AverageLossPerLoss  float64                             `json:"average_loss_per_loss_overall"`
	NetProfitPercent    float64                             `json:"overall_net_profit_percent"`
	BySource            map[domain.Source]SourceBreakdown   `json:"signals_by_source"`
	Weekly              *domain.AggregatedPerformanceRecord `json:"weekly_overall_performance,omitempty"`
	Monthly             *domain.AggregatedPerformanceRecord `json:"monthly_overall_performance,omitempty"`
}

// Summary builds the all-time overview with a per-pipeline breakdown. The
// weekly and monthly overall records of today are attached when stored.
func (a *Aggregator) Summary(ctx context.Context, today time.Time) (*Summary, error) {
	closed, err := a.signals.ListTerminalSince(ctx, nil, time.Unix(0, 0).UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to load closed signals: %w", err)
	}

	overall := Build(today, domain.PeriodAnnual, domain.SourceOverall, closed)
	summary := &Summary{
		TotalSignals:        overall.TotalSignals,
		WinRate:             overall.WinRate,
		AverageProfitPerWin: overall.AverageProfitPerWin,
		AverageLossPerLoss:  overall.AverageLossPerLoss,
		BySource:            make(map[domain.Source]SourceBreakdown),
	}

	for _, s := range closed {
		b := summary.BySource[s.Source]
		b.TotalSignals++
		switch s.Status {
		case domain.StatusClosedWin:
			b.Wins++
		case domain.StatusClosedLoss:
			b.Losses++
		case domain.StatusClosedNeutral:
			b.Neutral++
		}
		if s.PnLPercent != nil {
			b.NetProfitPercent += *s.PnLPercent
			summary.NetProfitPercent += *s.PnLPercent
		}
		summary.BySource[s.Source] = b
	}
	for source, b := range summary.BySource {
		b.WinRate = float64(b.Wins) / float64(b.TotalSignals) * 100
		summary.BySource[source] = b
	}

	if summary.Weekly, err = a.store.Get(ctx, today, domain.PeriodWeekly, domain.SourceOverall); err != nil {
		return nil, err
	}
	if summary.Monthly, err = a.store.Get(ctx, today, domain.PeriodMonthly, domain.SourceOverall); err != nil {
		return nil, err
	}
	return summary, nil
}
