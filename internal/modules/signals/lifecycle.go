package signals

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aristath/signalscope/internal/config"
	"github.com/aristath/signalscope/internal/domain"
	"github.com/rs/zerolog"
)

// PriceSource supplies the latest bar of an instrument.
type PriceSource interface {
	GetLatestBar(ctx context.Context, instrumentID string) (*domain.Bar, error)
}

// Policy holds the closing rules of one pipeline. Thresholds are P&L
// percentages; holding periods are calendar days.
type Policy struct {
	ProfitThreshold float64
	LossThreshold   float64
	MaxHoldDays     int
	MinHoldDays     int
}

// PolicyFrom extracts the closing rules from a pipeline configuration.
func PolicyFrom(cfg config.PipelineConfig) Policy {
	return Policy{
		ProfitThreshold: cfg.ProfitThreshold,
		LossThreshold:   cfg.LossThreshold,
		MaxHoldDays:     cfg.MaxHoldDays,
		MinHoldDays:     cfg.MinHoldDays,
	}
}

// Decide returns the status a signal moves to for a P&L of pnl on today.
// Active means it stays open.
func (p Policy) Decide(s domain.Signal, pnl float64, today time.Time) domain.SignalStatus {
	switch {
	case pnl >= p.ProfitThreshold:
		return domain.StatusClosedWin
	case pnl <= p.LossThreshold:
		return domain.StatusClosedLoss
	case s.HeldDays(today) >= p.MaxHoldDays:
		return domain.StatusClosedNeutral
	}
	return domain.StatusActive
}

// PnLPercent is (exit - entry) / entry * 100.
func PnLPercent(entry, exit float64) float64 {
	if entry <= 0 {
		return 0
	}
	return (exit - entry) / entry * 100
}

// LifecycleSummary counts the outcome of one evaluation run.
type LifecycleSummary struct {
	Source        domain.Source   `json:"source"`
	Evaluated     int             `json:"evaluated"`
	ClosedWin     int             `json:"closed_win"`
	ClosedLoss    int             `json:"closed_loss"`
	ClosedNeutral int             `json:"closed_neutral"`
	ForceClosed   int             `json:"force_closed"`
	StillActive   int             `json:"still_active"`
	TooRecent     int             `json:"too_recent"`
	Failed        int             `json:"failed"`
	Closed        []domain.Signal `json:"-"`
}

// Manager owns active to terminal transitions of signals.
type Manager struct {
	store    domain.SignalStore
	prices   PriceSource
	policies map[domain.Source]Policy
	log      zerolog.Logger
}

// NewManager creates a lifecycle manager with one policy per pipeline.
func NewManager(store domain.SignalStore, prices PriceSource, policies map[domain.Source]Policy, log zerolog.Logger) *Manager {
	return &Manager{
		store:    store,
		prices:   prices,
		policies: policies,
		log:      log.With().Str("component", "lifecycle_manager").Logger(),
	}
}

// Evaluate checks every active signal of source held at least the minimum
// holding period on today. A signal that cannot be priced, or whose
// evaluation fails, is force-closed neutral at its entry price. Only a
// failure to list signals is returned.
func (m *Manager) Evaluate(ctx context.Context, source domain.Source, today time.Time) (*LifecycleSummary, error) {
	policy, ok := m.policies[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSource, source)
	}

	active, err := m.store.ListActive(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to list active signals: %w", err)
	}

	today = domain.DateOf(today)
	summary := &LifecycleSummary{Source: source}
	for _, s := range active {
		if s.HeldDays(today) < policy.MinHoldDays {
			summary.TooRecent++
			continue
		}
		summary.Evaluated++

		next, forced := m.evaluate(ctx, s, policy, today)
		if next.Status == domain.StatusActive {
			summary.StillActive++
			continue
		}

		closed, err := m.store.Close(ctx, next)
		if err != nil {
			summary.Failed++
			m.log.Error().
				Err(err).
				Str("signal_id", s.ID).
				Str("instrument", s.InstrumentID).
				Str("source", string(source)).
				Msg("Failed to close signal")
			if errors.Is(err, domain.ErrStoreUnavailable) {
				return summary, err
			}
			continue
		}
		if !closed {
			// Closed concurrently; terminal signals never transition again
			continue
		}

		if forced {
			summary.ForceClosed++
		}
		switch next.Status {
		case domain.StatusClosedWin:
			summary.ClosedWin++
		case domain.StatusClosedLoss:
			summary.ClosedLoss++
		case domain.StatusClosedNeutral:
			summary.ClosedNeutral++
		}
		summary.Closed = append(summary.Closed, next)

		m.log.Info().
			Str("signal_id", s.ID).
			Str("instrument", s.InstrumentID).
			Str("source", string(source)).
			Str("status", string(next.Status)).
			Float64("pnl_percent", *next.PnLPercent).
			Bool("forced", forced).
			Msg("Signal closed")
	}

	m.log.Info().
		Str("source", string(source)).
		Int("evaluated", summary.Evaluated).
		Int("closed_win", summary.ClosedWin).
		Int("closed_loss", summary.ClosedLoss).
		Int("closed_neutral", summary.ClosedNeutral).
		Int("still_active", summary.StillActive).
		Msg("Lifecycle evaluation completed")
	return summary, nil
}

// evaluate prices one signal and returns it with its next status and, when
// closing, its exit fields. forced reports a neutral close at entry.
func (m *Manager) evaluate(ctx context.Context, s domain.Signal, policy Policy, today time.Time) (next domain.Signal, forced bool) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().
				Str("signal_id", s.ID).
				Str("instrument", s.InstrumentID).
				Interface("panic", r).
				Msg("Signal evaluation panicked")
			next, forced = forceClose(s, today), true
		}
	}()

	price, err := m.latestPrice(ctx, s.InstrumentID)
	if err != nil || s.EntryPrice <= 0 {
		m.log.Warn().
			Err(err).
			Str("signal_id", s.ID).
			Str("instrument", s.InstrumentID).
			Float64("entry_price", s.EntryPrice).
			Msg("No usable price, force-closing signal")
		return forceClose(s, today), true
	}

	pnl := PnLPercent(s.EntryPrice, price)
	status := policy.Decide(s, pnl, today)
	if status == domain.StatusActive {
		return s, false
	}
	return closeAt(s, status, price, today), false
}

func (m *Manager) latestPrice(ctx context.Context, instrumentID string) (float64, error) {
	bar, err := m.prices.GetLatestBar(ctx, instrumentID)
	if err != nil {
		return 0, err
	}
	if bar == nil {
		return 0, fmt.Errorf("%w: no bars for %s", domain.ErrExternalFetchFailure, instrumentID)
	}
	price := bar.ReliablePrice()
	if price <= 0 || math.IsNaN(price) {
		return 0, fmt.Errorf("%w: no reliable price for %s", domain.ErrDataInvalid, instrumentID)
	}
	return price, nil
}

func closeAt(s domain.Signal, status domain.SignalStatus, price float64, today time.Time) domain.Signal {
	exitDate := domain.DateOf(today)
	exitPrice := price
	pnl := PnLPercent(s.EntryPrice, price)
	s.Status = status
	s.ExitDate = &exitDate
	s.ExitPrice = &exitPrice
	s.PnLPercent = &pnl
	return s
}

func forceClose(s domain.Signal, today time.Time) domain.Signal {
	return closeAt(s, domain.StatusClosedNeutral, s.EntryPrice, today)
}
