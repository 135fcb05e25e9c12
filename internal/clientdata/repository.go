// Package clientdata provides the persistent cache of derived market data.
// Entries are msgpack blobs carrying the date of the last bar they were
// built from, plus an expiration timestamp.
package clientdata

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Cache tables in cache.db.
const (
	TablePriceSeries       = "price_series_cache"
	TableIndicatorSnapshot = "indicator_snapshot_cache"
)

// AllTables lists every cache table, in sweep order.
var AllTables = []string{
	TablePriceSeries,
	TableIndicatorSnapshot,
}

// Entry is one cached blob.
type Entry struct {
	Data        []byte
	LastBarDate time.Time
	ExpiresAt   time.Time
}

// Decode unmarshals the blob into v.
func (e *Entry) Decode(v any) error {
	if err := msgpack.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return nil
}

// Repository reads and writes cache.db. Table names are interpolated into
// SQL, so every method checks them against AllTables first.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a cache repository over db.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func checkTable(table string) error {
	for _, t := range AllTables {
		if t == table {
			return nil
		}
	}
	return fmt.Errorf("invalid table name: %s", table)
}

// Store encodes data and upserts it under key. The entry expires ttl from now.
func (r *Repository) Store(table, key string, data any, lastBarDate time.Time, ttl time.Duration) error {
	if err := checkTable(table); err != nil {
		return err
	}

	blob, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s entry: %w", table, err)
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (cache_key, data, last_bar_date, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			data = excluded.data,
			last_bar_date = excluded.last_bar_date,
			expires_at = excluded.expires_at`,
		table,
	)
	if _, err := r.db.Exec(query, key, blob, lastBarDate.UTC().Unix(), r.now().Add(ttl).Unix()); err != nil {
		return fmt.Errorf("failed to store %s/%s: %w", table, key, err)
	}
	return nil
}

// GetIfFresh returns the entry under key unless it is missing or expired,
// in which case it returns nil, nil.
func (r *Repository) GetIfFresh(table, key string) (*Entry, error) {
	return r.get(table, key, true)
}

// Get returns the entry under key regardless of expiry, or nil, nil.
func (r *Repository) Get(table, key string) (*Entry, error) {
	return r.get(table, key, false)
}

func (r *Repository) get(table, key string, freshOnly bool) (*Entry, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT data, last_bar_date, expires_at FROM %s WHERE cache_key = ?", table)
	args := []any{key}
	if freshOnly {
		query += " AND expires_at > ?"
		args = append(args, r.now().Unix())
	}

	var (
		e                      Entry
		lastBarDate, expiresAt int64
	)
	err := r.db.QueryRow(query, args...).Scan(&e.Data, &lastBarDate, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read %s/%s: %w", table, key, err)
	}
	e.LastBarDate = time.Unix(lastBarDate, 0).UTC()
	e.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &e, nil
}

// Delete removes the entry under key.
func (r *Repository) Delete(table, key string) error {
	_, err := r.deleteWhere(table, "cache_key = ?", key)
	return err
}

// DeleteExpired removes the rows of table whose expires_at has passed.
func (r *Repository) DeleteExpired(table string) (int64, error) {
	return r.deleteWhere(table, "expires_at < ?", r.now().Unix())
}

// DeleteAllExpired runs DeleteExpired on every table and returns the
// per-table counts. It stops at the first failing table.
func (r *Repository) DeleteAllExpired() (map[string]int64, error) {
	results := make(map[string]int64, len(AllTables))
	for _, table := range AllTables {
		deleted, err := r.DeleteExpired(table)
		if err != nil {
			return results, err
		}
		results[table] = deleted
	}
	return results, nil
}

// DeleteBuiltBefore removes the rows of table whose last bar is older than
// cutoff.
func (r *Repository) DeleteBuiltBefore(table string, cutoff time.Time) (int64, error) {
	return r.deleteWhere(table, "last_bar_date < ?", cutoff.UTC().Unix())
}

func (r *Repository) deleteWhere(table, where string, arg any) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	result, err := r.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s", table, where), arg)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return result.RowsAffected()
}
