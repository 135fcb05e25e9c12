package testing

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aristath/signalscope/internal/domain"
)

// MockMarketDataSource is an in-memory domain.MarketDataSource for tests.
type MockMarketDataSource struct {
	mu          sync.RWMutex
	instruments []domain.Instrument
	series      map[string]domain.PriceSeries
	fetchErrors map[string]error
	listErr     error
	calls       map[string]int
}

// NewMockMarketDataSource creates an empty mock source.
func NewMockMarketDataSource() *MockMarketDataSource {
	return &MockMarketDataSource{
		series:      make(map[string]domain.PriceSeries),
		fetchErrors: make(map[string]error),
		calls:       make(map[string]int),
	}
}

// AddInstrument registers an instrument and its history.
func (m *MockMarketDataSource) AddInstrument(inst domain.Instrument, series domain.PriceSeries) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instruments = append(m.instruments, inst)
	series.InstrumentID = inst.ID
	m.series[inst.ID] = series
}

// SetSeries replaces the history of an instrument.
func (m *MockMarketDataSource) SetSeries(id string, series domain.PriceSeries) {
	m.mu.Lock()
	defer m.mu.Unlock()
	series.InstrumentID = id
	m.series[id] = series
}

// SetFetchError makes every fetch for id fail with err.
func (m *MockMarketDataSource) SetFetchError(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErrors[id] = err
}

// SetListError makes ListInstruments fail.
func (m *MockMarketDataSource) SetListError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// Calls returns how many bar fetches were made for id.
func (m *MockMarketDataSource) Calls(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[id]
}

// ListInstruments returns instruments sorted by id.
func (m *MockMarketDataSource) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := append([]domain.Instrument(nil), m.instruments...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetDailyBars returns the most recent limit bars.
func (m *MockMarketDataSource) GetDailyBars(ctx context.Context, id string, limit int) (domain.PriceSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[id]++
	if err := m.fetchErrors[id]; err != nil {
		return domain.PriceSeries{}, fmt.Errorf("%w: %v", domain.ErrExternalFetchFailure, err)
	}
	s, ok := m.series[id]
	if !ok {
		return domain.PriceSeries{InstrumentID: id}, nil
	}
	bars := s.Bars
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return domain.PriceSeries{InstrumentID: id, Bars: append([]domain.Bar(nil), bars...)}, nil
}

// GetLatestBar returns the last bar or nil.
func (m *MockMarketDataSource) GetLatestBar(ctx context.Context, id string) (*domain.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fetchErrors[id]; err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalFetchFailure, err)
	}
	s, ok := m.series[id]
	if !ok || len(s.Bars) == 0 {
		return nil, nil
	}
	b := s.Bars[len(s.Bars)-1]
	return &b, nil
}
