package performance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/signalscope/internal/database"
	"github.com/aristath/signalscope/internal/domain"
	"github.com/rs/zerolog"
)

const recordColumns = `report_date, period_type, source, total_signals, successful_signals, win_rate,
	total_profit_percent, total_loss_percent, average_profit_per_win, average_loss_per_loss,
	net_profit_percent, updated_at`

// Repository persists aggregated_performance rows keyed by
// (report_date, period_type, source).
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a performance repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "aggregated_performance").Logger(),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.AggregatedPerformanceRecord, error) {
	var (
		rec                   domain.AggregatedPerformanceRecord
		reportDate, updatedAt int64
		period, source        string
	)
	err := row.Scan(
		&reportDate, &period, &source, &rec.TotalSignals, &rec.SuccessfulSignals, &rec.WinRate,
		&rec.TotalProfitPercent, &rec.TotalLossPercent, &rec.AverageProfitPerWin, &rec.AverageLossPerLoss,
		&rec.NetProfitPercent, &updatedAt,
	)
	if err != nil {
		return rec, err
	}
	rec.ReportDate = time.Unix(reportDate, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	rec.PeriodType = domain.PeriodType(period)
	rec.Source = domain.Source(source)
	return rec, nil
}

// Upsert replaces the whole record for its key.
func (r *Repository) Upsert(ctx context.Context, rec domain.AggregatedPerformanceRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO aggregated_performance
		(report_date, period_type, source, total_signals, successful_signals, win_rate,
		 total_profit_percent, total_loss_percent, average_profit_per_win, average_loss_per_loss,
		 net_profit_percent, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(report_date, period_type, source) DO UPDATE SET
			total_signals = excluded.total_signals,
			successful_signals = excluded.successful_signals,
			win_rate = excluded.win_rate,
			total_profit_percent = excluded.total_profit_percent,
			total_loss_percent = excluded.total_loss_percent,
			average_profit_per_win = excluded.average_profit_per_win,
			average_loss_per_loss = excluded.average_loss_per_loss,
			net_profit_percent = excluded.net_profit_percent,
			updated_at = excluded.updated_at
	`,
		domain.DateOf(rec.ReportDate).Unix(), string(rec.PeriodType), string(rec.Source),
		rec.TotalSignals, rec.SuccessfulSignals, rec.WinRate,
		rec.TotalProfitPercent, rec.TotalLossPercent, rec.AverageProfitPerWin, rec.AverageLossPerLoss,
		rec.NetProfitPercent, r.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert aggregate %s/%s: %w", rec.PeriodType, rec.Source, database.ClassifyError(err))
	}
	return nil
}

// Get returns one record, or nil when absent.
func (r *Repository) Get(ctx context.Context, reportDate time.Time, period domain.PeriodType, source domain.Source) (*domain.AggregatedPerformanceRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM aggregated_performance WHERE report_date = ? AND period_type = ? AND source = ?",
		domain.DateOf(reportDate).Unix(), string(period), string(source)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get aggregate: %w", database.ClassifyError(err))
	}
	return &rec, nil
}

// List returns records newest first. A nil source matches every source.
func (r *Repository) List(ctx context.Context, source *domain.Source, limit int) ([]domain.AggregatedPerformanceRecord, error) {
	query := "SELECT " + recordColumns + " FROM aggregated_performance"
	var args []any
	if source != nil {
		query += " WHERE source = ?"
		args = append(args, string(*source))
	}
	query += " ORDER BY report_date DESC, period_type ASC, source ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list aggregates: %w", database.ClassifyError(err))
	}
	defer rows.Close()

	var out []domain.AggregatedPerformanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
