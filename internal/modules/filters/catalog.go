// Package filters defines the weighted boolean predicates each pipeline
// scores instruments with.
//
// A Catalog is an ordered, immutable table built once at startup. The order
// filters are declared in is the order rationale text is joined in and the
// rank used to break score ties.
package filters

import (
	"errors"
	"fmt"

	"github.com/aristath/signalscope/internal/domain"
)

// Category groups filters for display.
type Category string

const (
	CategoryPriceTrend      Category = "price_trend"
	CategoryDivergence      Category = "divergence"
	CategoryMovingAverages  Category = "moving_averages"
	CategoryClassicPatterns Category = "classic_patterns"
	CategoryMoneyFlow       Category = "money_flow"
	CategoryVolume          Category = "volume"
	CategoryMomentum        Category = "momentum"
	CategoryVolatility      Category = "volatility"
	CategoryFundamental     Category = "fundamental"
	CategoryOrderBook       Category = "order_book"
)

// Predicate decides whether a filter holds for one instrument.
// An error means the predicate could not be evaluated; callers treat it as
// not satisfied.
type Predicate func(in *Input) (bool, error)

// Filter is one catalog entry.
type Filter struct {
	Name      string
	Category  Category
	Weight    float64
	Rationale string
	Predicate Predicate
}

// Definition is the exported description of a filter.
type Definition struct {
	Name      string   `json:"name"`
	Category  Category `json:"category"`
	Weight    float64  `json:"weight"`
	Rationale string   `json:"rationale"`
}

// Definition returns the filter without its predicate.
func (f Filter) Definition() Definition {
	return Definition{Name: f.Name, Category: f.Category, Weight: f.Weight, Rationale: f.Rationale}
}

// Outlook derives the direction label attached to a score result.
type Outlook struct {
	// Fixed, when set, labels every result.
	Fixed   string
	// Bullish lists filters of which any one reads bullish.
	Bullish []string
}

// Outlook labels.
const (
	OutlookBullish = "Bullish"
	OutlookNeutral = "Neutral"
)

// Label returns the outlook for a satisfied set. An Outlook with neither a
// fixed label nor bullish filters yields an empty label.
func (o Outlook) Label(satisfied domain.FilterSet) string {
	if o.Fixed != "" {
		return o.Fixed
	}
	if len(o.Bullish) == 0 {
		return ""
	}
	for _, name := range o.Bullish {
		if satisfied.Contains(name) {
			return OutlookBullish
		}
	}
	return OutlookNeutral
}

// Catalog is an ordered, immutable set of filters.
type Catalog struct {
	version string
	filters []Filter
	index   map[string]int
	outlook Outlook
}

// NewCatalog builds a catalog. Names must be unique and non-empty and every
// filter needs a predicate.
func NewCatalog(version string, filters ...Filter) (*Catalog, error) {
	if len(filters) == 0 {
		return nil, errors.New("catalog has no filters")
	}

	c := &Catalog{
		version: version,
		filters: make([]Filter, len(filters)),
		index:   make(map[string]int, len(filters)),
	}
	for i, f := range filters {
		if f.Name == "" {
			return nil, fmt.Errorf("filter %d has no name", i)
		}
		if f.Predicate == nil {
			return nil, fmt.Errorf("filter %s has no predicate", f.Name)
		}
		if _, dup := c.index[f.Name]; dup {
			return nil, fmt.Errorf("duplicate filter name: %s", f.Name)
		}
		c.index[f.Name] = i
		c.filters[i] = f
	}
	return c, nil
}

func mustCatalog(version string, filters ...Filter) *Catalog {
	c, err := NewCatalog(version, filters...)
	if err != nil {
		panic(err)
	}
	return c
}

// WithOutlook returns a copy of the catalog that labels results with o.
func (c *Catalog) WithOutlook(o Outlook) *Catalog {
	cp := *c
	cp.outlook = Outlook{Fixed: o.Fixed, Bullish: append([]string(nil), o.Bullish...)}
	return &cp
}

// Version identifies the catalog revision.
func (c *Catalog) Version() string {
	return c.version
}

// Len returns the number of filters.
func (c *Catalog) Len() int {
	return len(c.filters)
}

// Filters returns a copy of the filters in declaration order.
func (c *Catalog) Filters() []Filter {
	out := make([]Filter, len(c.filters))
	copy(out, c.filters)
	return out
}

// Definitions describes every filter in declaration order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.filters))
	for i, f := range c.filters {
		out[i] = f.Definition()
	}
	return out
}

// Names returns the filter names in declaration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.filters))
	for i, f := range c.filters {
		out[i] = f.Name
	}
	return out
}

// Rank returns the declaration index of name.
func (c *Catalog) Rank(name string) (int, bool) {
	i, ok := c.index[name]
	return i, ok
}

// Lookup returns the filter registered under name.
func (c *Catalog) Lookup(name string) (Filter, bool) {
	i, ok := c.index[name]
	if !ok {
		return Filter{}, false
	}
	return c.filters[i], true
}

// Outlook returns the catalog's outlook rule.
func (c *Catalog) Outlook() Outlook {
	return c.outlook
}

// ForSource returns the built-in catalog of a pipeline.
func ForSource(source domain.Source) (*Catalog, error) {
	switch source {
	case domain.SourceGoldenKey:
		return GoldenKey(), nil
	case domain.SourceWeeklyWatchlist:
		return WeeklyWatchlist(), nil
	case domain.SourceBuyQueue:
		return BuyQueue(), nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSource, source)
}
