package clientdata

import (
	"fmt"
	"time"

	"github.com/aristath/signalscope/internal/domain"
	"github.com/aristath/signalscope/internal/modules/indicators"
	"github.com/rs/zerolog"
)

// SeriesCache is the typed view over the cache tables used by scoring
// cycles. An entry is valid only when it was built from the same last bar
// the caller sees now. Failures degrade to a miss.
type SeriesCache struct {
	repo *Repository
	log  zerolog.Logger
}

// NewSeriesCache creates a typed cache over repo.
func NewSeriesCache(repo *Repository, log zerolog.Logger) *SeriesCache {
	return &SeriesCache{
		repo: repo,
		log:  log.With().Str("component", "series_cache").Logger(),
	}
}

func cacheKey(instrumentID string, limit int) string {
	return fmt.Sprintf("%s:%d", instrumentID, limit)
}

// GetSeries returns the cached history of up to limit bars ending on
// lastBarDate, or false.
func (c *SeriesCache) GetSeries(instrumentID string, limit int, lastBarDate time.Time) (domain.PriceSeries, bool) {
	var series domain.PriceSeries
	if !c.lookup(TablePriceSeries, cacheKey(instrumentID, limit), lastBarDate, &series) {
		return domain.PriceSeries{}, false
	}
	series.InstrumentID = instrumentID
	for i := range series.Bars {
		series.Bars[i].Date = series.Bars[i].Date.UTC()
	}
	return series, true
}

// PutSeries caches series under (instrument, limit).
func (c *SeriesCache) PutSeries(series domain.PriceSeries, limit int) {
	if series.Len() == 0 {
		return
	}
	key := cacheKey(series.InstrumentID, limit)
	if err := c.repo.Store(TablePriceSeries, key, series, series.LastDate(), TTLPriceSeries); err != nil {
		c.log.Warn().Err(err).Str("instrument", series.InstrumentID).Msg("Failed to cache price series")
	}
}

// GetSnapshot returns the cached snapshot computed with params from the
// history ending on lastBarDate, or nil.
func (c *SeriesCache) GetSnapshot(instrumentID string, limit int, lastBarDate time.Time, params indicators.Params) *indicators.Snapshot {
	var snap indicators.Snapshot
	if !c.lookup(TableIndicatorSnapshot, cacheKey(instrumentID, limit), lastBarDate, &snap) {
		return nil
	}
	if snap.Params != params {
		return nil
	}
	snap.LastBarDate = snap.LastBarDate.UTC()
	return &snap
}

// PutSnapshot caches snap under (instrument, limit).
func (c *SeriesCache) PutSnapshot(snap *indicators.Snapshot, limit int) {
	if snap == nil || snap.Len() == 0 {
		return
	}
	key := cacheKey(snap.InstrumentID, limit)
	if err := c.repo.Store(TableIndicatorSnapshot, key, snap, snap.LastBarDate, TTLIndicatorSnapshot); err != nil {
		c.log.Warn().Err(err).Str("instrument", snap.InstrumentID).Msg("Failed to cache indicator snapshot")
	}
}

func (c *SeriesCache) lookup(table, key string, lastBarDate time.Time, v any) bool {
	entry, err := c.repo.GetIfFresh(table, key)
	if err != nil {
		c.log.Warn().Err(err).Str("table", table).Str("key", key).Msg("Cache read failed")
		return false
	}
	if entry == nil || !entry.LastBarDate.Equal(lastBarDate.UTC().Truncate(time.Second)) {
		return false
	}
	if err := entry.Decode(v); err != nil {
		c.log.Warn().Err(err).Str("table", table).Str("key", key).Msg("Dropping undecodable cache entry")
		_ = c.repo.Delete(table, key)
		return false
	}
	return true
}
