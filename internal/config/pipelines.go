package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/aristath/signalscope/internal/domain"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ProbabilityMode selects how a composite score maps to a probability estimate.
type ProbabilityMode string

const (
	// ProbabilityNone leaves probability unset
	ProbabilityNone ProbabilityMode = "none"
	// ProbabilityScaled is min(100, score*10)
	ProbabilityScaled ProbabilityMode = "score_x10"
	// ProbabilityScore is min(100, score)
	ProbabilityScore ProbabilityMode = "score"
)

// PipelineConfig tunes one scoring pipeline.
// Thresholds are percentages; holding periods are calendar days.
type PipelineConfig struct {
	Source  domain.Source `yaml:"source" validate:"required,oneof=golden_key weekly_watchlist buy_queue"`
	Enabled bool          `yaml:"enabled"`

	// Selection.
	TopN     int     `yaml:"top_n" default:"10" validate:"min=1,max=50"`
	FundTopN int     `yaml:"fund_top_n" validate:"min=0,max=50"`
	MinScore float64 `yaml:"min_score"`

	// Eligibility.
	MinBars           int                         `yaml:"min_bars" default:"30" validate:"min=2"`
	HistoryBars       int                         `yaml:"history_bars" default:"250" validate:"gtefield=MinBars"`
	ExcludeCategories []domain.InstrumentCategory `yaml:"exclude_categories" validate:"dive,oneof=stock fund rights"`

	// Annotations.
	Probability   ProbabilityMode `yaml:"probability" default:"none" validate:"oneof=none score_x10 score"`
	StrongScore   float64         `yaml:"strong_score"`
	PossibleScore float64         `yaml:"possible_score" validate:"ltefield=StrongScore"`

	// Lifecycle.
	TrackSignals    bool    `yaml:"track_signals"`
	ProfitThreshold float64 `yaml:"profit_threshold" validate:"gt=0"`
	LossThreshold   float64 `yaml:"loss_threshold" validate:"lt=0"`
	MaxHoldDays     int     `yaml:"max_hold_days" default:"7" validate:"min=1"`
	MinHoldDays     int     `yaml:"min_hold_days" default:"1" validate:"min=1,ltefield=MaxHoldDays"`
}

// Excludes reports whether the category is excluded from this pipeline.
func (p PipelineConfig) Excludes(c domain.InstrumentCategory) bool {
	for _, ex := range p.ExcludeCategories {
		if ex == c {
			return true
		}
	}
	return false
}

// ClassificationConfig holds the name rules used to classify instruments
// whose category the data source did not supply.
type ClassificationConfig struct {
	FundKeywords   []string `yaml:"fund_keywords" default:"[\"fund\",\"etf\",\"صندوق\"]"`
	RightsSuffixes []string `yaml:"rights_suffixes" default:"[\"ح\"]"`
	RightsKeywords []string `yaml:"rights_keywords" default:"[\"rights\",\"حق تقدم\"]"`
}

// PipelineSettings is the full pipeline tuning document.
type PipelineSettings struct {
	Classification ClassificationConfig `yaml:"classification"`
	Pipelines      []PipelineConfig     `yaml:"pipelines"`
}

// Get returns the configuration for source.
func (s *PipelineSettings) Get(source domain.Source) (PipelineConfig, bool) {
	for _, p := range s.Pipelines {
		if p.Source == source {
			return p, true
		}
	}
	return PipelineConfig{}, false
}

// Enabled returns enabled pipelines in declaration order.
func (s *PipelineSettings) Enabled() []PipelineConfig {
	var out []PipelineConfig
	for _, p := range s.Pipelines {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

var validate = validator.New()

// DefaultPipelines returns the built-in pipelines.
func DefaultPipelines() *PipelineSettings {
	settings := &PipelineSettings{
		Pipelines: []PipelineConfig{
			{
				Source:            domain.SourceGoldenKey,
				Enabled:           true,
				TopN:              8,
				MinBars:           120,
				HistoryBars:       250,
				ExcludeCategories: []domain.InstrumentCategory{domain.CategoryFund, domain.CategoryRights},
				Probability:       ProbabilityNone,
				StrongScore:       50,
				PossibleScore:     30,
				TrackSignals:      true,
				ProfitThreshold:   5,
				LossThreshold:     -3,
				MaxHoldDays:       7,
				MinHoldDays:       1,
			},
			{
				Source:            domain.SourceWeeklyWatchlist,
				Enabled:           true,
				TopN:              4,
				MinScore:          2,
				MinBars:           60,
				HistoryBars:       250,
				ExcludeCategories: []domain.InstrumentCategory{domain.CategoryFund, domain.CategoryRights},
				Probability:       ProbabilityScaled,
				TrackSignals:      true,
				ProfitThreshold:   10,
				LossThreshold:     -5,
				MaxHoldDays:       7,
				MinHoldDays:       1,
			},
			{
				Source:            domain.SourceBuyQueue,
				Enabled:           true,
				TopN:              10,
				FundTopN:          5,
				MinScore:          35,
				MinBars:           30,
				HistoryBars:       120,
				ExcludeCategories: []domain.InstrumentCategory{domain.CategoryRights},
				Probability:       ProbabilityScore,
				TrackSignals:      false,
				ProfitThreshold:   5,
				LossThreshold:     -3,
				MaxHoldDays:       7,
				MinHoldDays:       1,
			},
		},
	}
	// Classification defaults come from struct tags
	_ = defaults.Set(&settings.Classification)
	return settings
}

// LoadPipelines reads the YAML tuning file at path and overlays it on the
// built-in pipelines. An empty path returns the built-in pipelines.
func LoadPipelines(path string) (*PipelineSettings, error) {
	settings := DefaultPipelines()
	if path == "" {
		return settings, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipelines file: %w", err)
	}

	var doc struct {
		Classification yaml.Node   `yaml:"classification"`
		Pipelines      []yaml.Node `yaml:"pipelines"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse pipelines file: %w", err)
	}

	// Kind is zero when the file has no classification block
	if doc.Classification.Kind != 0 {
		if err := doc.Classification.Decode(&settings.Classification); err != nil {
			return nil, fmt.Errorf("failed to decode classification: %w", err)
		}
	}

	for i := range doc.Pipelines {
		node := &doc.Pipelines[i]

		var head struct {
			Source domain.Source `yaml:"source"`
		}
		if err := node.Decode(&head); err != nil {
			return nil, fmt.Errorf("failed to decode pipeline %d: %w", i, err)
		}

		idx := -1
		for j, p := range settings.Pipelines {
			if p.Source == head.Source {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("pipeline %d: %w: %q", i, domain.ErrUnknownSource, head.Source)
		}

		// Decoding into the built-in value keeps every key the file omits
		merged := settings.Pipelines[idx]
		if err := node.Decode(&merged); err != nil {
			return nil, fmt.Errorf("failed to decode pipeline %s: %w", head.Source, err)
		}
		settings.Pipelines[idx] = merged
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate fills tag defaults and checks every pipeline's bounds.
func (s *PipelineSettings) Validate() error {
	if err := defaults.Set(&s.Classification); err != nil {
		return fmt.Errorf("failed to apply classification defaults: %w", err)
	}

	for i := range s.Pipelines {
		p := &s.Pipelines[i]
		if err := defaults.Set(p); err != nil {
			return fmt.Errorf("failed to apply defaults for %s: %w", p.Source, err)
		}
		if err := validate.Struct(p); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				fe := verrs[0]
				return fmt.Errorf("invalid pipeline %s: field %s failed %s=%s",
					p.Source, fe.Field(), fe.Tag(), fe.Param())
			}
			return fmt.Errorf("invalid pipeline %s: %w", p.Source, err)
		}
	}
	return nil
}
