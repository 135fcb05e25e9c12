package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/signalscope/internal/domain"
	"github.com/aristath/signalscope/internal/events"
	"github.com/aristath/signalscope/internal/metrics"
	"github.com/aristath/signalscope/internal/modules/filters"
	"github.com/aristath/signalscope/internal/modules/indicators"
	"github.com/aristath/signalscope/internal/modules/performance"
	"github.com/aristath/signalscope/internal/modules/ranking"
	"github.com/aristath/signalscope/internal/modules/signals"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const moduleName = "pipeline"

// Cache stores fetched series and computed snapshots keyed by last bar date.
type Cache interface {
	GetSeries(instrumentID string, limit int, lastBarDate time.Time) (domain.PriceSeries, bool)
	PutSeries(series domain.PriceSeries, limit int)
	GetSnapshot(instrumentID string, limit int, lastBarDate time.Time, params indicators.Params) *indicators.Snapshot
	PutSnapshot(snap *indicators.Snapshot, limit int)
}

// Deps are the collaborators of a Service. Cache, Events and Metrics are optional.
type Deps struct {
	Registry   *Registry
	Source     domain.MarketDataSource
	Cache      Cache
	Classifier *ranking.Classifier
	Scores     domain.ScoreStore
	Signals    domain.SignalStore
	Lifecycle  *signals.Manager
	Aggregator *performance.Aggregator
	Events     *events.Manager
	Metrics    *metrics.Recorder
	Params     indicators.Params
	Workers    int
	Clock      func() time.Time
}

// Service is the entry point of every pipeline operation.
type Service struct {
	registry   *Registry
	source     domain.MarketDataSource
	cache      Cache
	classifier *ranking.Classifier
	selector   *ranking.Selector
	scores     domain.ScoreStore
	signals    domain.SignalStore
	lifecycle  *signals.Manager
	aggregator *performance.Aggregator
	events     *events.Manager
	metrics    *metrics.Recorder
	params     indicators.Params
	workers    int
	now        func() time.Time
	log        zerolog.Logger
}

// NewService creates the pipeline service.
func NewService(deps Deps, log zerolog.Logger) *Service {
	workers := deps.Workers
	if workers < 1 {
		workers = 1
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		registry:   deps.Registry,
		source:     deps.Source,
		cache:      deps.Cache,
		classifier: deps.Classifier,
		selector:   ranking.NewSelector(deps.Scores, deps.Signals, log),
		scores:     deps.Scores,
		signals:    deps.Signals,
		lifecycle:  deps.Lifecycle,
		aggregator: deps.Aggregator,
		events:     deps.Events,
		metrics:    deps.Metrics,
		params:     deps.Params,
		workers:    workers,
		now:        clock,
		log:        log.With().Str("service", "pipeline").Logger(),
	}
}

// Sources returns the registered pipelines.
func (s *Service) Sources() []domain.Source {
	return s.registry.Sources()
}

// TrackedSources returns the pipelines that open signals.
func (s *Service) TrackedSources() []domain.Source {
	return s.registry.TrackedSources()
}

func (s *Service) today() time.Time {
	return domain.DateOf(s.now())
}

// ScoringSummary reports one scoring cycle.
type ScoringSummary struct {
	Source          domain.Source  `json:"source"`
	AsOf            time.Time      `json:"as_of"`
	CandidatesFound int            `json:"candidates_found"`
	CandidatesSaved int            `json:"candidates_saved"`
	SignalsOpened   int            `json:"signals_opened"`
	Processed       int            `json:"processed"`
	Skipped         map[string]int `json:"skipped"`
}

// RunScoringCycle scores every instrument for source, selects the top
// candidates and persists them. Per-instrument failures are counted in
// Skipped. Only an unreachable store aborts the cycle.
func (s *Service) RunScoringCycle(ctx context.Context, source domain.Source) (*ScoringSummary, error) {
	p, err := s.registry.Get(source)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	asOf := s.today()
	log := s.log.With().Str("source", string(source)).Time("as_of", asOf).Logger()

	instruments, err := s.source.ListInstruments(ctx)
	if err != nil {
		err = fmt.Errorf("failed to list instruments: %w", err)
		s.events.PublishError(moduleName, err, map[string]interface{}{"source": string(source)})
		return nil, err
	}

	var (
		mu      sync.Mutex
		results []domain.ScoreResult
		skipped = make(map[string]int)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, inst := range instruments {
		inst := inst
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.scoreInstrument(gctx, p, inst, asOf)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				reason := domain.SkipReason(err)
				skipped[reason]++
				log.Debug().Err(err).Str("instrument", inst.ID).Str("reason", reason).Msg("Instrument skipped")
				return nil
			}
			results = append(results, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranked := ranking.Select(results, p.Rules)
	persisted, err := s.selector.Persist(ctx, source, asOf, ranked, p.Config.TrackSignals)
	if err != nil {
		s.events.PublishError(moduleName, err, map[string]interface{}{"source": string(source)})
		return nil, err
	}

	summary := &ScoringSummary{
		Source:          source,
		AsOf:            asOf,
		CandidatesFound: len(ranking.Chosen(ranked)),
		CandidatesSaved: persisted.Saved,
		SignalsOpened:   len(persisted.Opened),
		Processed:       len(results),
		Skipped:         skipped,
	}

	s.metrics.RecordInstruments(string(source), "scored", len(results))
	for reason, n := range skipped {
		s.metrics.RecordInstruments(string(source), reason, n)
	}
	for _, sig := range persisted.Opened {
		s.metrics.RecordSignalOpened(string(source))
		s.events.Publish(moduleName, &events.SignalOpenedData{
			SignalID:     sig.ID,
			InstrumentID: sig.InstrumentID,
			Symbol:       sig.Symbol,
			Source:       string(sig.Source),
			EntryDate:    sig.EntryDate,
			EntryPrice:   sig.EntryPrice,
			Score:        sig.Score,
		})
	}
	elapsed := time.Since(start)
	s.metrics.ObserveCycle(string(source), metrics.KindScoring, elapsed)
	s.refreshActiveGauge(ctx, source)
	s.events.Publish(moduleName, &events.CycleCompletedData{
		Source:          string(source),
		AsOf:            asOf,
		CandidatesFound: summary.CandidatesFound,
		CandidatesSaved: summary.CandidatesSaved,
		Processed:       summary.Processed,
		Skipped:         skipped,
		DurationMs:      elapsed.Milliseconds(),
	})

	log.Info().
		Int("instruments", len(instruments)).
		Int("processed", summary.Processed).
		Int("candidates_found", summary.CandidatesFound).
		Int("candidates_saved", summary.CandidatesSaved).
		Int("signals_opened", summary.SignalsOpened).
		Interface("skipped", skipped).
		Dur("duration", elapsed).
		Msg("Scoring cycle completed")

	return summary, nil
}

// scoreInstrument runs one instrument through classification, eligibility,
// history, indicators and scoring. A panic is returned as an error.
func (s *Service) scoreInstrument(ctx context.Context, p *Pipeline, inst domain.Instrument, asOf time.Time) (res domain.ScoreResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic scoring %s: %v", inst.ID, r)
		}
	}()

	inst.Category = s.classifier.Classify(inst)
	if err := p.Eligibility.CheckCategory(inst.Category); err != nil {
		return res, err
	}

	series, err := s.loadSeries(ctx, inst.ID, p.Config.HistoryBars)
	if err != nil {
		return res, err
	}
	if err := p.Eligibility.CheckHistory(series); err != nil {
		return res, err
	}

	snap := s.snapshot(series, p.Config.HistoryBars)
	return p.Engine.Score(filters.NewInput(inst, series, snap), asOf, p.Config.Source), nil
}

// loadSeries returns the validated history of an instrument, from cache when
// the cached copy ends at the current last bar.
func (s *Service) loadSeries(ctx context.Context, instrumentID string, limit int) (domain.PriceSeries, error) {
	latest, err := s.source.GetLatestBar(ctx, instrumentID)
	if err != nil {
		return domain.PriceSeries{}, err
	}
	if latest == nil {
		return domain.PriceSeries{}, fmt.Errorf("%w: no bars for %s", domain.ErrDataInsufficient, instrumentID)
	}

	if s.cache != nil {
		if series, ok := s.cache.GetSeries(instrumentID, limit, latest.Date); ok {
			return series, nil
		}
	}

	series, err := s.source.GetDailyBars(ctx, instrumentID, limit)
	if err != nil {
		return domain.PriceSeries{}, err
	}
	series.InstrumentID = instrumentID
	if err := series.Validate(); err != nil {
		return domain.PriceSeries{}, err
	}
	if s.cache != nil {
		s.cache.PutSeries(series, limit)
	}
	return series, nil
}

func (s *Service) snapshot(series domain.PriceSeries, limit int) *indicators.Snapshot {
	if s.cache != nil {
		if snap := s.cache.GetSnapshot(series.InstrumentID, limit, series.LastDate(), s.params); snap.Matches(series, s.params) {
			return snap
		}
	}
	snap := indicators.Compute(series, s.params)
	if s.cache != nil {
		s.cache.PutSnapshot(snap, limit)
	}
	return snap
}

// RunLifecycleEvaluation closes the active signals of source that reached a
// threshold or their holding horizon. Pipelines that do not track signals
// yield an empty summary.
func (s *Service) RunLifecycleEvaluation(ctx context.Context, source domain.Source) (*signals.LifecycleSummary, error) {
	p, err := s.registry.Get(source)
	if err != nil {
		return nil, err
	}
	if !p.Config.TrackSignals {
		return &signals.LifecycleSummary{Source: source}, nil
	}

	start := time.Now()
	summary, err := s.lifecycle.Evaluate(ctx, source, s.today())
	if err != nil {
		return nil, err
	}

	for _, sig := range summary.Closed {
		s.metrics.RecordSignalClosed(string(source), string(sig.Status))
		data := &events.SignalClosedData{
			SignalID:     sig.ID,
			InstrumentID: sig.InstrumentID,
			Symbol:       sig.Symbol,
			Source:       string(sig.Source),
			Status:       string(sig.Status),
		}
		if sig.ExitDate != nil {
			data.ExitDate = *sig.ExitDate
			data.HeldDays = sig.HeldDays(*sig.ExitDate)
		}
		if sig.ExitPrice != nil {
			data.ExitPrice = *sig.ExitPrice
		}
		if sig.PnLPercent != nil {
			data.PnLPercent = *sig.PnLPercent
		}
		s.events.Publish(moduleName, data)
	}
	s.metrics.ObserveCycle(string(source), metrics.KindLifecycle, time.Since(start))
	s.refreshActiveGauge(ctx, source)
	return summary, nil
}

func (s *Service) refreshActiveGauge(ctx context.Context, source domain.Source) {
	if s.metrics == nil {
		return
	}
	active, err := s.signals.ListActive(ctx, source)
	if err != nil {
		s.log.Warn().Err(err).Str("source", string(source)).Msg("Failed to count active signals")
		return
	}
	s.metrics.SetActiveSignals(string(source), len(active))
}

// ComputeAggregate computes and stores the performance record of period for
// source, which may be a pipeline or overall.
func (s *Service) ComputeAggregate(ctx context.Context, period domain.PeriodType, source domain.Source) (*domain.AggregatedPerformanceRecord, error) {
	if source != domain.SourceOverall {
		if _, err := s.registry.Get(source); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	rec, err := s.aggregator.Compute(ctx, period, source, s.today())
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveCycle(string(source), metrics.KindAggregate, time.Since(start))
	s.emitAggregate(*rec)
	return rec, nil
}

// ComputeAllAggregates refreshes every period of every tracked pipeline and overall.
func (s *Service) ComputeAllAggregates(ctx context.Context) ([]domain.AggregatedPerformanceRecord, error) {
	start := time.Now()
	records, err := s.aggregator.ComputeAll(ctx, s.today())
	for _, rec := range records {
		s.emitAggregate(rec)
	}
	s.metrics.ObserveCycle(string(domain.SourceOverall), metrics.KindAggregate, time.Since(start))
	return records, err
}

func (s *Service) emitAggregate(rec domain.AggregatedPerformanceRecord) {
	s.events.Publish(moduleName, &events.AggregateComputedData{
		Source:           string(rec.Source),
		Period:           string(rec.PeriodType),
		ReportDate:       rec.ReportDate,
		TotalSignals:     rec.TotalSignals,
		WinRate:          rec.WinRate,
		NetProfitPercent: rec.NetProfitPercent,
	})
}

// PerformanceSummary returns the all-time overview with per-pipeline breakdown.
func (s *Service) PerformanceSummary(ctx context.Context) (*performance.Summary, error) {
	return s.aggregator.Summary(ctx, s.today())
}

// GetTopCandidates returns the selected results of the latest cycle of
// source, restricted to those satisfying every name in filterNames.
func (s *Service) GetTopCandidates(ctx context.Context, source domain.Source, filterNames []string) ([]domain.ScoreResult, error) {
	if _, err := s.registry.Get(source); err != nil {
		return nil, err
	}

	latest, err := s.scores.LatestScoreDate(ctx, source)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return []domain.ScoreResult{}, nil
	}

	selected, err := s.scores.ListScoreResults(ctx, source, *latest, true)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ScoreResult, 0, len(selected))
	for _, r := range selected {
		if r.Satisfied.ContainsAll(filterNames...) {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetSignalHistory lists signals newest first. Source and status are optional.
func (s *Service) GetSignalHistory(ctx context.Context, filter domain.SignalFilter) ([]domain.Signal, error) {
	if filter.Source != nil {
		if _, err := s.registry.Get(*filter.Source); err != nil {
			return nil, err
		}
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", domain.ErrDataInvalid, *filter.Status)
	}
	return s.signals.List(ctx, filter)
}

// FilterDefinitions describes the filters of a pipeline in catalog order.
func (s *Service) FilterDefinitions(source domain.Source) ([]filters.Definition, error) {
	p, err := s.registry.Get(source)
	if err != nil {
		return nil, err
	}
	return p.Catalog.Definitions(), nil
}
