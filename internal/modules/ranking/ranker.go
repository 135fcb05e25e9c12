package ranking

import (
	"sort"

	"github.com/aristath/signalscope/internal/config"
	"github.com/aristath/signalscope/internal/domain"
)

// Rules bound the selection of one pipeline cycle.
type Rules struct {
	TopN     int
	FundTopN int
	// MinScore is the inclusive score floor. Zero disables it.
	MinScore float64
}

// RulesFrom extracts the selection rules of a pipeline.
func RulesFrom(cfg config.PipelineConfig) Rules {
	return Rules{
		TopN:     cfg.TopN,
		FundTopN: cfg.FundTopN,
		MinScore: cfg.MinScore,
	}
}

// Rank returns a copy of results ordered by score descending, then lead rank
// ascending, then instrument id ascending.
func Rank(results []domain.ScoreResult) []domain.ScoreResult {
	out := make([]domain.ScoreResult, len(results))
	copy(out, results)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].LeadRank != out[j].LeadRank {
			return out[i].LeadRank < out[j].LeadRank
		}
		return out[i].InstrumentID < out[j].InstrumentID
	})
	return out
}

// Select ranks results and marks the chosen ones. Each group keeps its own
// bound: TopN for general instruments, FundTopN for funds. With FundTopN
// zero, funds compete in the general group. Every result is returned so the
// whole cycle can be persisted.
func Select(results []domain.ScoreResult, rules Rules) []domain.ScoreResult {
	ranked := Rank(results)

	taken := map[string]int{}
	for i := range ranked {
		r := &ranked[i]
		r.Selected = false
		if rules.MinScore != 0 && r.Score < rules.MinScore {
			continue
		}

		group, limit := domain.GroupGeneral, rules.TopN
		if r.Group == domain.GroupFund && rules.FundTopN > 0 {
			group, limit = domain.GroupFund, rules.FundTopN
		}
		if taken[group] >= limit {
			continue
		}
		taken[group]++
		r.Selected = true
	}
	return ranked
}

// Chosen returns the selected results, keeping their order.
func Chosen(results []domain.ScoreResult) []domain.ScoreResult {
	var out []domain.ScoreResult
	for _, r := range results {
		if r.Selected {
			out = append(out, r)
		}
	}
	return out
}
