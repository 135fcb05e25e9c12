// Package pipeline runs scoring cycles, signal lifecycle evaluation and
// performance aggregation for the configured pipelines.
package pipeline

import (
	"fmt"

	"github.com/aristath/signalscope/internal/config"
	"github.com/aristath/signalscope/internal/domain"
	"github.com/aristath/signalscope/internal/modules/filters"
	"github.com/aristath/signalscope/internal/modules/ranking"
	"github.com/aristath/signalscope/internal/modules/scoring"
	"github.com/aristath/signalscope/internal/modules/signals"
	"github.com/rs/zerolog"
)

// Pipeline bundles everything one scoring pipeline needs.
type Pipeline struct {
	Config      config.PipelineConfig
	Catalog     *filters.Catalog
	Engine      *scoring.Engine
	Eligibility ranking.Eligibility
	Rules       ranking.Rules
}

// Registry holds the enabled pipelines in declaration order.
type Registry struct {
	order     []domain.Source
	pipelines map[domain.Source]*Pipeline
}

// NewRegistry builds a pipeline for every enabled entry of settings.
func NewRegistry(settings *config.PipelineSettings, log zerolog.Logger) (*Registry, error) {
	reg := &Registry{pipelines: make(map[domain.Source]*Pipeline)}
	for _, cfg := range settings.Enabled() {
		catalog, err := filters.ForSource(cfg.Source)
		if err != nil {
			return nil, err
		}
		if _, dup := reg.pipelines[cfg.Source]; dup {
			return nil, fmt.Errorf("pipeline %s configured twice", cfg.Source)
		}
		reg.pipelines[cfg.Source] = &Pipeline{
			Config:      cfg,
			Catalog:     catalog,
			Engine:      scoring.NewEngine(catalog, scoring.OptionsFrom(cfg), log),
			Eligibility: ranking.EligibilityFrom(cfg),
			Rules:       ranking.RulesFrom(cfg),
		}
		reg.order = append(reg.order, cfg.Source)
	}
	return reg, nil
}

// Get returns the pipeline registered under source.
func (r *Registry) Get(source domain.Source) (*Pipeline, error) {
	p, ok := r.pipelines[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSource, source)
	}
	return p, nil
}

// Sources returns the registered sources in declaration order.
func (r *Registry) Sources() []domain.Source {
	out := make([]domain.Source, len(r.order))
	copy(out, r.order)
	return out
}

// TrackedSources returns the sources whose selections open signals.
func (r *Registry) TrackedSources() []domain.Source {
	var out []domain.Source
	for _, s := range r.order {
		if r.pipelines[s].Config.TrackSignals {
			out = append(out, s)
		}
	}
	return out
}

// Policies returns the lifecycle policy of every tracked pipeline.
func (r *Registry) Policies() map[domain.Source]signals.Policy {
	out := make(map[domain.Source]signals.Policy)
	for _, s := range r.TrackedSources() {
		out[s] = signals.PolicyFrom(r.pipelines[s].Config)
	}
	return out
}
