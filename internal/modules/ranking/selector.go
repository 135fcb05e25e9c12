package ranking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/signalscope/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PersistResult reports what a cycle wrote.
type PersistResult struct {
	// Saved is the number of selected results persisted.
	Saved      int
	Upserted   int
	Reaffirmed int
	Failed     int
	Opened     []domain.Signal
}

// Selector persists a ranked cycle and opens or re-affirms signals for the
// selected instruments.
type Selector struct {
	scores  domain.ScoreStore
	signals domain.SignalStore
	newID   func() string
	log     zerolog.Logger
}

// NewSelector creates a selector over the score and signal stores.
func NewSelector(scores domain.ScoreStore, signals domain.SignalStore, log zerolog.Logger) *Selector {
	return &Selector{
		scores:  scores,
		signals: signals,
		newID:   uuid.NewString,
		log:     log.With().Str("component", "selector").Logger(),
	}
}

// Persist stores every ranked result of one cycle, with Selected marking the
// chosen ones. Selections from an earlier run on the same date are cleared
// first. When track is set, each selected instrument gets an active signal.
// Only domain.ErrStoreUnavailable is returned; other failures are counted.
func (s *Selector) Persist(ctx context.Context, source domain.Source, asOf time.Time, ranked []domain.ScoreResult, track bool) (*PersistResult, error) {
	asOf = domain.DateOf(asOf)
	res := &PersistResult{}

	if err := s.scores.ResetSelection(ctx, source, asOf); err != nil {
		return res, fmt.Errorf("failed to reset selection: %w", err)
	}

	for _, r := range ranked {
		r.Source = source
		r.AsOf = asOf
		if err := s.scores.UpsertScoreResult(ctx, r); err != nil {
			if errors.Is(err, domain.ErrStoreUnavailable) {
				return res, err
			}
			res.Failed++
			s.log.Error().
				Err(err).
				Str("instrument", r.InstrumentID).
				Str("source", string(source)).
				Msg("Failed to save score result")
			continue
		}
		res.Upserted++
		if !r.Selected {
			continue
		}
		res.Saved++

		if !track {
			continue
		}
		if err := s.track(ctx, r, res); err != nil {
			if errors.Is(err, domain.ErrStoreUnavailable) {
				return res, err
			}
			res.Failed++
			s.log.Error().
				Err(err).
				Str("instrument", r.InstrumentID).
				Str("source", string(source)).
				Msg("Failed to track signal")
		}
	}

	s.log.Info().
		Str("source", string(source)).
		Time("as_of", asOf).
		Int("upserted", res.Upserted).
		Int("saved", res.Saved).
		Int("opened", len(res.Opened)).
		Int("reaffirmed", res.Reaffirmed).
		Int("failed", res.Failed).
		Msg("Cycle persisted")
	return res, nil
}

// track re-affirms the active signal of r's instrument or opens a new one.
// A concurrent insert for the same instrument turns into a re-affirm.
func (s *Selector) track(ctx context.Context, r domain.ScoreResult, res *PersistResult) error {
	active, err := s.signals.GetActive(ctx, r.InstrumentID, r.Source)
	if err != nil {
		return err
	}
	if active != nil {
		return s.reaffirm(ctx, *active, r, res)
	}

	if r.RecommendedPrice <= 0 {
		s.log.Warn().
			Str("instrument", r.InstrumentID).
			Str("source", string(r.Source)).
			Msg("No reliable price, signal not opened")
		return nil
	}

	sig := domain.Signal{
		ID:           s.newID(),
		InstrumentID: r.InstrumentID,
		Symbol:       r.Symbol,
		Source:       r.Source,
		EntryDate:    r.AsOf,
		EntryPrice:   r.RecommendedPrice,
		Outlook:      r.Outlook,
		Rationale:    r.Rationale,
		Score:        r.Score,
		Satisfied:    r.Satisfied,
		Probability:  r.Probability,
		Status:       domain.StatusActive,
	}
	err = s.signals.Insert(ctx, sig)
	if errors.Is(err, domain.ErrPersistenceConflict) {
		active, err = s.signals.GetActive(ctx, r.InstrumentID, r.Source)
		if err != nil {
			return err
		}
		if active == nil {
			return fmt.Errorf("%w: active signal for %s vanished", domain.ErrPersistenceConflict, r.InstrumentID)
		}
		return s.reaffirm(ctx, *active, r, res)
	}
	if err != nil {
		return err
	}

	res.Opened = append(res.Opened, sig)
	s.log.Info().
		Str("signal_id", sig.ID).
		Str("instrument", sig.InstrumentID).
		Str("source", string(sig.Source)).
		Float64("entry_price", sig.EntryPrice).
		Float64("score", sig.Score).
		Msg("Signal opened")
	return nil
}

func (s *Selector) reaffirm(ctx context.Context, active domain.Signal, r domain.ScoreResult, res *PersistResult) error {
	active.Outlook = r.Outlook
	active.Rationale = r.Rationale
	active.Score = r.Score
	active.Satisfied = r.Satisfied
	active.Probability = r.Probability
	if err := s.signals.Reaffirm(ctx, active); err != nil {
		return err
	}
	res.Reaffirmed++
	return nil
}
