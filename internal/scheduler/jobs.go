package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/signalscope/internal/domain"
	"github.com/aristath/signalscope/internal/modules/pipeline"
	"github.com/aristath/signalscope/internal/modules/signals"
	"github.com/rs/zerolog"
)

// DefaultJobTimeout bounds a single run of a pipeline job.
const DefaultJobTimeout = 30 * time.Minute

// ScoringRunner runs scoring cycles.
type ScoringRunner interface {
	RunScoringCycle(ctx context.Context, source domain.Source) (*pipeline.ScoringSummary, error)
}

// LifecycleRunner evaluates active signals.
type LifecycleRunner interface {
	RunLifecycleEvaluation(ctx context.Context, source domain.Source) (*signals.LifecycleSummary, error)
}

// AggregateRunner refreshes every performance aggregate.
type AggregateRunner interface {
	ComputeAllAggregates(ctx context.Context) ([]domain.AggregatedPerformanceRecord, error)
}

// ScoringJob runs the scoring cycle of one pipeline.
type ScoringJob struct {
	JobBase
	runner  ScoringRunner
	source  domain.Source
	timeout time.Duration
	log     zerolog.Logger
}

// NewScoringJob creates the scoring job of source.
func NewScoringJob(runner ScoringRunner, source domain.Source, log zerolog.Logger) *ScoringJob {
	return &ScoringJob{
		runner:  runner,
		source:  source,
		timeout: DefaultJobTimeout,
		log:     log.With().Str("job", "scoring").Str("source", string(source)).Logger(),
	}
}

// Name returns the job name.
func (j *ScoringJob) Name() string {
	return "scoring_" + string(j.source)
}

// Run executes one scoring cycle.
func (j *ScoringJob) Run() error {
	return j.Execute(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()

		summary, err := j.runner.RunScoringCycle(ctx, j.source)
		if err != nil {
			return fmt.Errorf("scoring cycle %s: %w", j.source, err)
		}
		j.log.Info().
			Int("candidates_found", summary.CandidatesFound).
			Int("candidates_saved", summary.CandidatesSaved).
			Msg("Scoring job finished")
		return nil
	})
}

// LifecycleJob evaluates the active signals of one pipeline.
type LifecycleJob struct {
	JobBase
	runner  LifecycleRunner
	source  domain.Source
	timeout time.Duration
	log     zerolog.Logger
}

// NewLifecycleJob creates the lifecycle job of source.
func NewLifecycleJob(runner LifecycleRunner, source domain.Source, log zerolog.Logger) *LifecycleJob {
	return &LifecycleJob{
		runner:  runner,
		source:  source,
		timeout: DefaultJobTimeout,
		log:     log.With().Str("job", "lifecycle").Str("source", string(source)).Logger(),
	}
}

// Name returns the job name.
func (j *LifecycleJob) Name() string {
	return "lifecycle_" + string(j.source)
}

// Run executes one lifecycle evaluation.
func (j *LifecycleJob) Run() error {
	return j.Execute(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()

		summary, err := j.runner.RunLifecycleEvaluation(ctx, j.source)
		if err != nil {
			return fmt.Errorf("lifecycle evaluation %s: %w", j.source, err)
		}
		j.log.Info().
			Int("evaluated", summary.Evaluated).
			Int("closed_win", summary.ClosedWin).
			Int("closed_loss", summary.ClosedLoss).
			Int("closed_neutral", summary.ClosedNeutral).
			Msg("Lifecycle job finished")
		return nil
	})
}

// AggregateJob recomputes every performance aggregate.
type AggregateJob struct {
	JobBase
	runner  AggregateRunner
	timeout time.Duration
	log     zerolog.Logger
}

// NewAggregateJob creates the aggregate job.
func NewAggregateJob(runner AggregateRunner, log zerolog.Logger) *AggregateJob {
	return &AggregateJob{
		runner:  runner,
		timeout: DefaultJobTimeout,
		log:     log.With().Str("job", "aggregate").Logger(),
	}
}

// Name returns the job name.
func (j *AggregateJob) Name() string {
	return "aggregate_performance"
}

// Run recomputes the aggregates. Records that could be computed are kept
// even when others fail.
func (j *AggregateJob) Run() error {
	return j.Execute(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()

		records, err := j.runner.ComputeAllAggregates(ctx)
		j.log.Info().Int("records", len(records)).Msg("Aggregate job finished")
		return err
	})
}
