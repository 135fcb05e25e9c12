package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aristath/signalscope/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuildConnectionString(t *testing.T) {
	ledger := buildConnectionString("/tmp/x.db", ProfileLedger)
	assert.Contains(t, ledger, "journal_mode(WAL)")
	assert.Contains(t, ledger, "synchronous(FULL)")
	assert.Contains(t, ledger, "foreign_keys(1)")

	assert.NotContains(t, ledger, "temp_store")
	assert.True(t, strings.HasPrefix(ledger, "/tmp/x.db?_pragma=journal_mode(WAL)&_pragma="))

	cache := buildConnectionString("/tmp/x.db", ProfileCache)
	assert.Contains(t, cache, "synchronous(OFF)")
	assert.Contains(t, cache, "temp_store(MEMORY)")
	assert.NotContains(t, cache, "synchronous(FULL)")
}

func TestNewRejectsUnknownProfile(t *testing.T) {
	_, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "x.db"),
		Profile: "archive",
		Name:    NameHistory,
	})
	assert.ErrorContains(t, err, `unknown database profile "archive"`)
}

func TestMigrate_AllSchemas(t *testing.T) {
	tests := []struct {
		name   string
		tables []string
	}{
		{name: NameHistory, tables: []string{"instruments", "daily_bars"}},
		{name: NameSignals, tables: []string{"score_results", "signals", "aggregated_performance"}},
		{name: NameCache, tables: []string{"price_series_cache", "indicator_snapshot_cache"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newDB(t, tt.name, ProfileStandard)
			require.NoError(t, db.Migrate())
			// Second run is a no-op
			require.NoError(t, db.Migrate())

			for _, table := range tt.tables {
				var count int
				err := db.Conn().QueryRow(
					"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
				).Scan(&count)
				require.NoError(t, err)
				assert.Equal(t, 1, count, "table %s should exist", table)
			}
		})
	}
}

func TestMigrate_UnknownName(t *testing.T) {
	db := newDB(t, "ledger_v1", ProfileStandard)
	assert.Error(t, db.Migrate())
}

func TestOneActiveSignalIndex(t *testing.T) {
	db := newDB(t, NameSignals, ProfileLedger)
	require.NoError(t, db.Migrate())

	insert := `INSERT INTO signals (id, instrument_id, source, entry_date, entry_price, status, created_at, updated_at)
		VALUES (?, 'INST1', 'golden_key', 0, 100, ?, 0, 0)`

	_, err := db.Conn().Exec(insert, "a", "active")
	require.NoError(t, err)

	_, err = db.Conn().Exec(insert, "b", "active")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.True(t, errors.Is(ClassifyError(err), domain.ErrPersistenceConflict))

	// Closed rows do not count against the active slot
	_, err = db.Conn().Exec(insert, "c", "closed_win")
	require.NoError(t, err)

	// A different source may track the same instrument
	_, err = db.Conn().Exec(`INSERT INTO signals (id, instrument_id, source, entry_date, entry_price, status, created_at, updated_at)
		VALUES ('d', 'INST1', 'weekly_watchlist', 0, 100, 'active', 0, 0)`)
	require.NoError(t, err)
}

func TestWithTransaction(t *testing.T) {
	db := newDB(t, NameCache, ProfileCache)
	require.NoError(t, db.Migrate())

	insert := func(tx *sql.Tx, key string) error {
		_, err := tx.Exec(`INSERT INTO price_series_cache (cache_key, data, last_bar_date, expires_at) VALUES (?, x'00', 0, 0)`, key)
		return err
	}
	count := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM price_series_cache").Scan(&n))
		return n
	}

	t.Run("commit", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error { return insert(tx, "a") })
		require.NoError(t, err)
		assert.Equal(t, 1, count())
	})

	t.Run("rollback on error", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			require.NoError(t, insert(tx, "b"))
			return errors.New("boom")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		assert.Equal(t, 1, count())
	})

	t.Run("rollback on panic", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			require.NoError(t, insert(tx, "c"))
			panic("kaboom")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic in transaction")
		assert.Equal(t, 1, count())
	})

	t.Run("nil db", func(t *testing.T) {
		assert.Error(t, WithTransaction(nil, func(tx *sql.Tx) error { return nil }))
	})
}

func TestHealthAndStats(t *testing.T) {
	db := newDB(t, NameHistory, ProfileStandard)
	require.NoError(t, db.Migrate())

	ctx := context.Background()
	require.NoError(t, db.HealthCheck(ctx))
	require.NoError(t, db.QuickCheck(ctx))
	require.NoError(t, db.WALCheckpoint(""))
	assert.Error(t, db.WALCheckpoint("DROP"))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, NameHistory, stats.Name)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}

func TestVacuumInto(t *testing.T) {
	db := newDB(t, NameSignals, ProfileLedger)
	require.NoError(t, db.Migrate())

	dest := filepath.Join(t.TempDir(), "snapshot.db")
	require.NoError(t, db.VacuumInto(context.Background(), dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// Refuses to overwrite
	assert.Error(t, db.VacuumInto(context.Background(), dest))
}

func TestClassifyError(t *testing.T) {
	assert.NoError(t, ClassifyError(nil))
	assert.ErrorIs(t, ClassifyError(sql.ErrConnDone), domain.ErrStoreUnavailable)
	plain := errors.New("syntax error")
	assert.Equal(t, plain, ClassifyError(plain))
}

func TestCheckpointStatus(t *testing.T) {
	db := newDB(t, NameCache, ProfileCache)
	require.NoError(t, db.Migrate())

	st, err := db.CheckpointStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Busy)
	assert.GreaterOrEqual(t, st.Frames, 0)

	require.NoError(t, db.Close())
	_, err = db.CheckpointStatus(context.Background())
	assert.ErrorContains(t, err, "checkpoint status failed for cache")
}
