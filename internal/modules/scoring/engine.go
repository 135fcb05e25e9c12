// Package scoring evaluates a filter catalog against one instrument and
// produces its composite score.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aristath/signalscope/internal/config"
	"github.com/aristath/signalscope/internal/domain"
	"github.com/aristath/signalscope/internal/modules/filters"
	"github.com/rs/zerolog"
)

// Status labels by score band.
const (
	StatusStrong   = "strong_signal"
	StatusPossible = "possible_growth"
	StatusWeak     = "weak_signal"
)

// RationaleSeparator joins the rationale of satisfied filters.
const RationaleSeparator = "; "

// Options are the pipeline-specific annotations applied to a score.
type Options struct {
	Probability   config.ProbabilityMode
	StrongScore   float64
	PossibleScore float64
}

// OptionsFrom extracts scoring options from a pipeline configuration.
func OptionsFrom(cfg config.PipelineConfig) Options {
	return Options{
		Probability:   cfg.Probability,
		StrongScore:   cfg.StrongScore,
		PossibleScore: cfg.PossibleScore,
	}
}

// Engine scores instruments against one catalog.
type Engine struct {
	catalog *filters.Catalog
	opts    Options
	log     zerolog.Logger
}

// NewEngine creates an engine for catalog.
func NewEngine(catalog *filters.Catalog, opts Options, log zerolog.Logger) *Engine {
	return &Engine{
		catalog: catalog,
		opts:    opts,
		log:     log.With().Str("component", "scoring_engine").Str("catalog", catalog.Version()).Logger(),
	}
}

// Catalog returns the catalog the engine evaluates.
func (e *Engine) Catalog() *filters.Catalog {
	return e.catalog
}

// Score evaluates every filter for in. A predicate that errors or panics
// counts as not satisfied and the remaining filters still run.
func (e *Engine) Score(in *filters.Input, asOf time.Time, source domain.Source) domain.ScoreResult {
	res := domain.ScoreResult{
		InstrumentID: in.Instrument.ID,
		Symbol:       in.Instrument.Symbol,
		Source:       source,
		AsOf:         domain.DateOf(asOf),
		Group:        domain.GroupGeneral,
		LeadRank:     e.catalog.Len(),
	}
	if in.Instrument.Category == domain.CategoryFund {
		res.Group = domain.GroupFund
	}
	if last := in.Series.Last(); last != nil {
		res.RecommendedPrice = last.ReliablePrice()
	}

	var rationale []string
	leadWeight := math.Inf(-1)
	for rank, f := range e.catalog.Filters() {
		ok, err := e.evaluate(f, in)
		if err != nil {
			e.log.Debug().
				Err(err).
				Str("instrument", in.Instrument.ID).
				Str("source", string(source)).
				Str("filter", f.Name).
				Msg("Filter not evaluated")
			continue
		}
		if !ok {
			continue
		}

		res.Satisfied.Add(f.Name)
		res.Score += f.Weight
		rationale = append(rationale, f.Rationale)
		if f.Weight > leadWeight {
			leadWeight = f.Weight
			res.LeadRank = rank
		}
	}

	res.Rationale = strings.Join(rationale, RationaleSeparator)
	res.Probability = e.probability(res.Score)
	res.StatusLabel = e.statusLabel(res.Score)
	res.Outlook = e.catalog.Outlook().Label(res.Satisfied)
	return res
}

func (e *Engine) evaluate(f filters.Filter, in *filters.Input) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().
				Str("instrument", in.Instrument.ID).
				Str("filter", f.Name).
				Interface("panic", r).
				Msg("Filter panicked")
			ok, err = false, fmt.Errorf("filter %s panicked: %v", f.Name, r)
		}
	}()
	return f.Predicate(in)
}

func (e *Engine) probability(score float64) float64 {
	switch e.opts.Probability {
	case config.ProbabilityScaled:
		return clampPercent(score * 10)
	case config.ProbabilityScore:
		return clampPercent(score)
	}
	return 0
}

func (e *Engine) statusLabel(score float64) string {
	if e.opts.StrongScore <= 0 && e.opts.PossibleScore <= 0 {
		return ""
	}
	switch {
	case score >= e.opts.StrongScore:
		return StatusStrong
	case score >= e.opts.PossibleScore:
		return StatusPossible
	}
	return StatusWeak
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
