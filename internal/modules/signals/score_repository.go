package signals

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/signalscope/internal/database"
	"github.com/aristath/signalscope/internal/domain"
	"github.com/rs/zerolog"
)

const scoreColumns = `instrument_id, source, as_of, symbol, score, satisfied_filters, rationale,
	recommended_price, probability, outlook, status_label, candidate_group, lead_rank, selected`

// ScoreRepository persists one ScoreResult per (instrument, source, date).
type ScoreRepository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewScoreRepository creates a score result repository.
func NewScoreRepository(db *sql.DB, log zerolog.Logger) *ScoreRepository {
	return &ScoreRepository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "score_results").Logger(),
	}
}

func scanScore(row rowScanner) (domain.ScoreResult, error) {
	var (
		r         domain.ScoreResult
		source    string
		asOf      int64
		satisfied string
		selected  int
	)
	err := row.Scan(
		&r.InstrumentID, &source, &asOf, &r.Symbol, &r.Score, &satisfied, &r.Rationale,
		&r.RecommendedPrice, &r.Probability, &r.Outlook, &r.StatusLabel, &r.Group, &r.LeadRank, &selected,
	)
	if err != nil {
		return r, err
	}
	r.Source = domain.Source(source)
	r.AsOf = fromUnix(asOf)
	r.Selected = selected != 0
	if err := json.Unmarshal([]byte(satisfied), &r.Satisfied); err != nil {
		return r, fmt.Errorf("failed to decode satisfied filters of %s: %w", r.InstrumentID, err)
	}
	return r, nil
}

// UpsertScoreResult inserts or replaces the result for its natural key.
func (r *ScoreRepository) UpsertScoreResult(ctx context.Context, res domain.ScoreResult) error {
	satisfied, err := json.Marshal(res.Satisfied)
	if err != nil {
		return fmt.Errorf("failed to encode satisfied filters: %w", err)
	}
	selected := 0
	if res.Selected {
		selected = 1
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO score_results
		(instrument_id, source, as_of, symbol, score, satisfied_filters, rationale,
		 recommended_price, probability, outlook, status_label, candidate_group, lead_rank, selected, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instrument_id, source, as_of) DO UPDATE SET
			symbol = excluded.symbol,
			score = excluded.score,
			satisfied_filters = excluded.satisfied_filters,
			rationale = excluded.rationale,
			recommended_price = excluded.recommended_price,
			probability = excluded.probability,
			outlook = excluded.outlook,
			status_label = excluded.status_label,
			candidate_group = excluded.candidate_group,
			lead_rank = excluded.lead_rank,
			selected = excluded.selected,
			updated_at = excluded.updated_at
	`,
		res.InstrumentID, string(res.Source), dateUnix(res.AsOf), res.Symbol, res.Score, string(satisfied),
		res.Rationale, res.RecommendedPrice, res.Probability, res.Outlook, res.StatusLabel, res.Group,
		res.LeadRank, selected, r.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert score result for %s: %w", res.InstrumentID, database.ClassifyError(err))
	}
	return nil
}

// GetScoreResult returns one result, or nil when absent.
func (r *ScoreRepository) GetScoreResult(ctx context.Context, instrumentID string, source domain.Source, asOf time.Time) (*domain.ScoreResult, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+scoreColumns+" FROM score_results WHERE instrument_id = ? AND source = ? AND as_of = ?",
		instrumentID, string(source), dateUnix(asOf))
	res, err := scanScore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score result for %s: %w", instrumentID, database.ClassifyError(err))
	}
	return &res, nil
}

// ListScoreResults returns the results of one cycle ranked by score, lead
// rank and instrument id.
func (r *ScoreRepository) ListScoreResults(ctx context.Context, source domain.Source, asOf time.Time, selectedOnly bool) ([]domain.ScoreResult, error) {
	query := "SELECT " + scoreColumns + " FROM score_results WHERE source = ? AND as_of = ?"
	if selectedOnly {
		query += " AND selected = 1"
	}
	query += " ORDER BY score DESC, lead_rank ASC, instrument_id ASC"

	rows, err := r.db.QueryContext(ctx, query, string(source), dateUnix(asOf))
	if err != nil {
		return nil, fmt.Errorf("failed to list score results: %w", database.ClassifyError(err))
	}
	defer rows.Close()

	var out []domain.ScoreResult
	for rows.Next() {
		res, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score result: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// LatestScoreDate returns the most recent cycle date of a pipeline, or nil
// when it never ran.
func (r *ScoreRepository) LatestScoreDate(ctx context.Context, source domain.Source) (*time.Time, error) {
	var latest sql.NullInt64
	err := r.db.QueryRowContext(ctx, "SELECT MAX(as_of) FROM score_results WHERE source = ?", string(source)).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest score date: %w", database.ClassifyError(err))
	}
	if !latest.Valid {
		return nil, nil
	}
	t := fromUnix(latest.Int64)
	return &t, nil
}

// ResetSelection clears the selected flag of every result of one cycle.
func (r *ScoreRepository) ResetSelection(ctx context.Context, source domain.Source, asOf time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE score_results SET selected = 0, updated_at = ? WHERE source = ? AND as_of = ? AND selected = 1",
		r.now().Unix(), string(source), dateUnix(asOf))
	if err != nil {
		return fmt.Errorf("failed to reset selection: %w", database.ClassifyError(err))
	}
	return nil
}
