// Package signals owns tracked signals: their storage and their lifecycle
// from entry until a closing condition fires.
package signals

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/signalscope/internal/database"
	"github.com/aristath/signalscope/internal/domain"
	"github.com/rs/zerolog"
)

// signalColumns is the column list shared by every signal query.
// Order must match scanSignal.
const signalColumns = `id, instrument_id, symbol, source, entry_date, entry_price, outlook,
	rationale, score, satisfied_filters, probability, status, exit_date, exit_price,
	pnl_percent, created_at, updated_at`

// Repository persists signals in signals.db. Signals are never deleted.
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a signal repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "signals").Logger(),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignal(row rowScanner) (domain.Signal, error) {
	var (
		s                    domain.Signal
		source, status       string
		satisfied            string
		entryDate            int64
		exitDate             sql.NullInt64
		exitPrice, pnl       sql.NullFloat64
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&s.ID, &s.InstrumentID, &s.Symbol, &source, &entryDate, &s.EntryPrice, &s.Outlook,
		&s.Rationale, &s.Score, &satisfied, &s.Probability, &status, &exitDate, &exitPrice,
		&pnl, &createdAt, &updatedAt,
	)
	if err != nil {
		return s, err
	}

	s.Source = domain.Source(source)
	s.Status = domain.SignalStatus(status)
	s.EntryDate = fromUnix(entryDate)
	s.CreatedAt = fromUnix(createdAt)
	s.UpdatedAt = fromUnix(updatedAt)
	if err := json.Unmarshal([]byte(satisfied), &s.Satisfied); err != nil {
		return s, fmt.Errorf("failed to decode satisfied filters of signal %s: %w", s.ID, err)
	}
	if exitDate.Valid {
		t := fromUnix(exitDate.Int64)
		s.ExitDate = &t
	}
	if exitPrice.Valid {
		v := exitPrice.Float64
		s.ExitPrice = &v
	}
	if pnl.Valid {
		v := pnl.Float64
		s.PnLPercent = &v
	}
	return s, nil
}

func fromUnix(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}

func dateUnix(t time.Time) int64 {
	return domain.DateOf(t).Unix()
}

func (r *Repository) queryOne(ctx context.Context, query string, args ...any) (*domain.Signal, error) {
	s, err := scanSignal(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	return &s, nil
}

func (r *Repository) queryMany(ctx context.Context, query string, args ...any) ([]domain.Signal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	defer rows.Close()

	var out []domain.Signal
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetByID returns a signal, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Signal, error) {
	s, err := r.queryOne(ctx, "SELECT "+signalColumns+" FROM signals WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get signal %s: %w", id, err)
	}
	return s, nil
}

// GetActive returns the active signal for (instrument, source), or nil.
func (r *Repository) GetActive(ctx context.Context, instrumentID string, source domain.Source) (*domain.Signal, error) {
	s, err := r.queryOne(ctx,
		"SELECT "+signalColumns+" FROM signals WHERE instrument_id = ? AND source = ? AND status = 'active'",
		instrumentID, string(source))
	if err != nil {
		return nil, fmt.Errorf("failed to get active signal for %s: %w", instrumentID, err)
	}
	return s, nil
}

// ListActive returns every active signal of a pipeline, oldest entry first.
func (r *Repository) ListActive(ctx context.Context, source domain.Source) ([]domain.Signal, error) {
	out, err := r.queryMany(ctx,
		"SELECT "+signalColumns+" FROM signals WHERE source = ? AND status = 'active' ORDER BY entry_date ASC, id ASC",
		string(source))
	if err != nil {
		return nil, fmt.Errorf("failed to list active signals: %w", err)
	}
	return out, nil
}

// Insert stores a new active signal. A second active signal for the same
// (instrument, source) fails with domain.ErrPersistenceConflict.
func (r *Repository) Insert(ctx context.Context, s domain.Signal) error {
	if s.ID == "" {
		return fmt.Errorf("%w: signal has no id", domain.ErrDataInvalid)
	}
	if s.Status != domain.StatusActive {
		return fmt.Errorf("%w: new signal must be active, got %s", domain.ErrDataInvalid, s.Status)
	}
	if s.EntryPrice <= 0 {
		return fmt.Errorf("%w: entry price must be positive", domain.ErrDataInvalid)
	}

	satisfied, err := json.Marshal(s.Satisfied)
	if err != nil {
		return fmt.Errorf("failed to encode satisfied filters: %w", err)
	}
	now := r.now().Unix()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO signals
		(id, instrument_id, symbol, source, entry_date, entry_price, outlook,
		 rationale, score, satisfied_filters, probability, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'active', ?, ?)
	`,
		s.ID, s.InstrumentID, strings.TrimSpace(s.Symbol), string(s.Source), dateUnix(s.EntryDate), s.EntryPrice,
		s.Outlook, s.Rationale, s.Score, string(satisfied), s.Probability, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert signal for %s: %w", s.InstrumentID, database.ClassifyError(err))
	}

	r.log.Debug().
		Str("signal_id", s.ID).
		Str("instrument", s.InstrumentID).
		Str("source", string(s.Source)).
		Msg("Signal inserted")
	return nil
}

// Reaffirm refreshes the score fields of an active signal. Entry price and
// date are kept. It fails with domain.ErrPersistenceConflict when the signal
// is no longer active.
func (r *Repository) Reaffirm(ctx context.Context, s domain.Signal) error {
	satisfied, err := json.Marshal(s.Satisfied)
	if err != nil {
		return fmt.Errorf("failed to encode satisfied filters: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE signals
		SET outlook = ?, rationale = ?, score = ?, satisfied_filters = ?, probability = ?, updated_at = ?
		WHERE id = ? AND status = 'active'
	`, s.Outlook, s.Rationale, s.Score, string(satisfied), s.Probability, r.now().Unix(), s.ID)
	if err != nil {
		return fmt.Errorf("failed to reaffirm signal %s: %w", s.ID, database.ClassifyError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to reaffirm signal %s: %w", s.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: signal %s is not active", domain.ErrPersistenceConflict, s.ID)
	}
	return nil
}

// Close moves an active signal to its terminal status, setting exit date,
// exit price and P&L together. It reports false, without error, when the
// signal was already closed.
func (r *Repository) Close(ctx context.Context, s domain.Signal) (bool, error) {
	if !s.Status.IsTerminal() {
		return false, fmt.Errorf("%w: cannot close signal with status %s", domain.ErrDataInvalid, s.Status)
	}
	if s.ExitDate == nil || s.ExitPrice == nil || s.PnLPercent == nil {
		return false, fmt.Errorf("%w: closing signal %s without exit data", domain.ErrDataInvalid, s.ID)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE signals
		SET status = ?, exit_date = ?, exit_price = ?, pnl_percent = ?, updated_at = ?
		WHERE id = ? AND status = 'active'
	`, string(s.Status), dateUnix(*s.ExitDate), *s.ExitPrice, *s.PnLPercent, r.now().Unix(), s.ID)
	if err != nil {
		return false, fmt.Errorf("failed to close signal %s: %w", s.ID, database.ClassifyError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to close signal %s: %w", s.ID, err)
	}
	return n > 0, nil
}

// List returns signals matching filter, newest entry first.
func (r *Repository) List(ctx context.Context, filter domain.SignalFilter) ([]domain.Signal, error) {
	query := "SELECT " + signalColumns + " FROM signals WHERE 1=1"
	var args []any
	if filter.Source != nil {
		query += " AND source = ?"
		args = append(args, string(*filter.Source))
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*filter.Status))
	}
	query += " ORDER BY entry_date DESC, created_at DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	out, err := r.queryMany(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	return out, nil
}

// ListTerminalSince returns closed signals entered on or after since.
// A nil source matches every pipeline.
func (r *Repository) ListTerminalSince(ctx context.Context, source *domain.Source, since time.Time) ([]domain.Signal, error) {
	query := "SELECT " + signalColumns + " FROM signals WHERE status != 'active' AND entry_date >= ?"
	args := []any{dateUnix(since)}
	if source != nil {
		query += " AND source = ?"
		args = append(args, string(*source))
	}
	query += " ORDER BY entry_date ASC, id ASC"

	out, err := r.queryMany(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list closed signals: %w", err)
	}
	return out, nil
}

// CountActive returns the number of active signals per pipeline.
func (r *Repository) CountActive(ctx context.Context) (map[domain.Source]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT source, COUNT(*) FROM signals WHERE status = 'active' GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("failed to count active signals: %w", database.ClassifyError(err))
	}
	defer rows.Close()

	out := make(map[domain.Source]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("failed to scan active count: %w", err)
		}
		out[domain.Source(source)] = n
	}
	return out, rows.Err()
}
