// Package history is the market data boundary: instruments and their daily
// bars as delivered by data acquisition, stored in history.db.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/signalscope/internal/database"
	"github.com/aristath/signalscope/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const barColumns = `date, open, high, low, close, final, yesterday_price, volume, value, num_trades,
	buy_count_i, buy_count_n, sell_count_i, sell_count_n,
	buy_i_volume, buy_n_volume, sell_i_volume, sell_n_volume, depth`

// Repository implements domain.MarketDataSource over history.db.
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a history repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "history").Logger(),
	}
}

// ListInstruments returns every known instrument ordered by id.
func (r *Repository) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, symbol, name, category, pe, eps FROM instruments ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", database.ClassifyError(err))
	}
	defer rows.Close()

	var out []domain.Instrument
	for rows.Next() {
		var (
			inst     domain.Instrument
			category string
			pe, eps  sql.NullFloat64
		)
		if err := rows.Scan(&inst.ID, &inst.Symbol, &inst.Name, &category, &pe, &eps); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		inst.Category = domain.InstrumentCategory(category)
		if pe.Valid {
			v := pe.Float64
			inst.PE = &v
		}
		if eps.Valid {
			v := eps.Float64
			inst.EPS = &v
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instruments: %w", database.ClassifyError(err))
	}
	return out, nil
}

// GetDailyBars returns up to limit most recent bars, oldest first. Bars are
// sanitized on the way out. A non-positive limit returns the full history.
func (r *Repository) GetDailyBars(ctx context.Context, instrumentID string, limit int) (domain.PriceSeries, error) {
	series := domain.PriceSeries{InstrumentID: instrumentID}

	query := "SELECT " + barColumns + " FROM daily_bars WHERE instrument_id = ? ORDER BY date DESC"
	args := []any{instrumentID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return series, fmt.Errorf("%w: failed to query bars for %s: %v", domain.ErrExternalFetchFailure, instrumentID, err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return series, fmt.Errorf("%w: failed to scan bar for %s: %v", domain.ErrDataInvalid, instrumentID, err)
		}
		series.Bars = append(series.Bars, b)
	}
	if err := rows.Err(); err != nil {
		return series, fmt.Errorf("%w: error iterating bars for %s: %v", domain.ErrExternalFetchFailure, instrumentID, err)
	}

	// Newest first from the query
	for i, j := 0, len(series.Bars)-1; i < j; i, j = i+1, j-1 {
		series.Bars[i], series.Bars[j] = series.Bars[j], series.Bars[i]
	}
	return series, nil
}

// GetLatestBar returns the most recent bar, or nil when there is none.
func (r *Repository) GetLatestBar(ctx context.Context, instrumentID string) (*domain.Bar, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+barColumns+" FROM daily_bars WHERE instrument_id = ? ORDER BY date DESC LIMIT 1",
		instrumentID)
	b, err := scanBar(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get latest bar for %s: %v", domain.ErrExternalFetchFailure, instrumentID, err)
	}
	return &b, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBar(row rowScanner) (domain.Bar, error) {
	var (
		b     domain.Bar
		date  int64
		depth []byte
	)
	err := row.Scan(
		&date, &b.Open, &b.High, &b.Low, &b.Close, &b.Final, &b.YesterdayPrice, &b.Volume, &b.Value, &b.NumTrades,
		&b.BuyCountI, &b.BuyCountN, &b.SellCountI, &b.SellCountN,
		&b.BuyIVolume, &b.BuyNVolume, &b.SellIVolume, &b.SellNVolume, &depth,
	)
	if err != nil {
		return b, err
	}
	b.Date = time.Unix(date, 0).UTC()
	if len(depth) > 0 {
		if err := msgpack.Unmarshal(depth, &b.Depth); err != nil {
			return b, fmt.Errorf("failed to decode depth: %w", err)
		}
	}
	b.Sanitize()
	return b, nil
}

// UpsertInstrument inserts or replaces an instrument.
func (r *Repository) UpsertInstrument(ctx context.Context, inst domain.Instrument) error {
	if inst.ID == "" {
		return fmt.Errorf("%w: instrument has no id", domain.ErrDataInvalid)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO instruments (id, symbol, name, category, pe, eps, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			symbol = excluded.symbol,
			name = excluded.name,
			category = excluded.category,
			pe = excluded.pe,
			eps = excluded.eps,
			updated_at = excluded.updated_at
	`, inst.ID, inst.Symbol, inst.Name, string(inst.Category), nullable(inst.PE), nullable(inst.EPS), r.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert instrument %s: %w", inst.ID, database.ClassifyError(err))
	}
	return nil
}

// UpsertBars stores bars for an instrument in one transaction. Bars are
// keyed by calendar day; a later write for the same day replaces it.
func (r *Repository) UpsertBars(ctx context.Context, instrumentID string, bars []domain.Bar) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO daily_bars
			(instrument_id, `+barColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, b := range bars {
			b.Sanitize()
			var depth []byte
			if b.Depth != ([domain.DepthLevels]domain.DepthLevel{}) {
				if depth, err = msgpack.Marshal(b.Depth); err != nil {
					return fmt.Errorf("failed to encode depth: %w", err)
				}
			}
			_, err := stmt.ExecContext(ctx,
				instrumentID, domain.DateOf(b.Date).Unix(),
				b.Open, b.High, b.Low, b.Close, b.Final, b.YesterdayPrice, b.Volume, b.Value, b.NumTrades,
				b.BuyCountI, b.BuyCountN, b.SellCountI, b.SellCountN,
				b.BuyIVolume, b.BuyNVolume, b.SellIVolume, b.SellNVolume, depth,
			)
			if err != nil {
				return fmt.Errorf("failed to insert bar for %s: %w", b.Date.Format("2006-01-02"), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert bars for %s: %w", instrumentID, database.ClassifyError(err))
	}

	r.log.Debug().
		Str("instrument", instrumentID).
		Int("count", len(bars)).
		Msg("Bars stored")
	return nil
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
