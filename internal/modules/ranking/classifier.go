// Package ranking turns scored instruments into a ranked, bounded selection
// and persists it together with the signals it opens.
package ranking

import (
	"strings"

	"github.com/aristath/signalscope/internal/config"
	"github.com/aristath/signalscope/internal/domain"
)

// Classifier assigns a category to instruments the data source left
// unclassified, using name keywords and symbol suffixes.
type Classifier struct {
	fundKeywords   []string
	rightsSuffixes []string
	rightsKeywords []string
}

// NewClassifier creates a classifier from the configured name rules.
func NewClassifier(cfg config.ClassificationConfig) *Classifier {
	return &Classifier{
		fundKeywords:   lowerAll(cfg.FundKeywords),
		rightsSuffixes: cfg.RightsSuffixes,
		rightsKeywords: lowerAll(cfg.RightsKeywords),
	}
}

// Classify returns the instrument category. A category supplied by the data
// source always wins.
func (c *Classifier) Classify(inst domain.Instrument) domain.InstrumentCategory {
	if inst.Category != "" {
		return inst.Category
	}

	symbol := strings.TrimSpace(inst.Symbol)
	name := strings.ToLower(inst.Name)

	for _, suffix := range c.rightsSuffixes {
		if suffix != "" && strings.HasSuffix(symbol, suffix) {
			return domain.CategoryRights
		}
	}
	if containsAny(name, c.rightsKeywords) {
		return domain.CategoryRights
	}
	if containsAny(name, c.fundKeywords) || containsAny(strings.ToLower(symbol), c.fundKeywords) {
		return domain.CategoryFund
	}
	return domain.CategoryStock
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
