package ranking

import (
	"fmt"

	"github.com/aristath/signalscope/internal/config"
	"github.com/aristath/signalscope/internal/domain"
)

// Eligibility decides whether an instrument takes part in a pipeline cycle.
type Eligibility struct {
	MinBars           int
	ExcludeCategories []domain.InstrumentCategory
}

// EligibilityFrom extracts the eligibility rules of a pipeline.
func EligibilityFrom(cfg config.PipelineConfig) Eligibility {
	return Eligibility{
		MinBars:           cfg.MinBars,
		ExcludeCategories: cfg.ExcludeCategories,
	}
}

// CheckCategory fails with domain.ErrExcluded when category is excluded.
// It runs before any history is fetched.
func (e Eligibility) CheckCategory(category domain.InstrumentCategory) error {
	for _, ex := range e.ExcludeCategories {
		if ex == category {
			return fmt.Errorf("%w: category %s", domain.ErrExcluded, category)
		}
	}
	return nil
}

// CheckHistory fails with domain.ErrDataInsufficient when the series is
// shorter than MinBars.
func (e Eligibility) CheckHistory(series domain.PriceSeries) error {
	if series.Len() < e.MinBars {
		return fmt.Errorf("%w: %d bars, need %d", domain.ErrDataInsufficient, series.Len(), e.MinBars)
	}
	return nil
}

// Check applies both rules to an already classified instrument.
func (e Eligibility) Check(inst domain.Instrument, series domain.PriceSeries) error {
	if err := e.CheckCategory(inst.Category); err != nil {
		return err
	}
	return e.CheckHistory(series)
}
