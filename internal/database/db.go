// Package database opens the SQLite stores (history, signals, cache) and
// applies their embedded schemas.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aristath/signalscope/internal/domain"
)

//go:embed schemas/*.sql
var schemaFS embed.FS

// DatabaseProfile selects durability and pool settings for a store.
type DatabaseProfile string

const (
	// ProfileLedger is the signal audit trail: every commit is fsynced
	ProfileLedger DatabaseProfile = "ledger"
	// ProfileCache holds derived data that can be rebuilt at any time
	ProfileCache DatabaseProfile = "cache"
	// ProfileStandard is used for market history
	ProfileStandard DatabaseProfile = "standard"
)

// Store names. Each has a schemas/<name>_schema.sql file.
const (
	NameHistory = "history"
	NameSignals = "signals"
	NameCache   = "cache"
)

type profileSettings struct {
	synchronous string
	autoVacuum  string
	tempMemory  bool
	maxOpen     int
	maxIdle     int
}

var profiles = map[DatabaseProfile]profileSettings{
	ProfileLedger:   {synchronous: "FULL", autoVacuum: "NONE", maxOpen: 25, maxIdle: 5},
	ProfileCache:    {synchronous: "OFF", autoVacuum: "FULL", tempMemory: true, maxOpen: 10, maxIdle: 2},
	ProfileStandard: {synchronous: "NORMAL", autoVacuum: "INCREMENTAL", tempMemory: true, maxOpen: 25, maxIdle: 5},
}

// DB is an open store with its profile.
type DB struct {
	conn    *sql.DB
	path    string
	profile DatabaseProfile
	name    string
}

// Config describes one store.
type Config struct {
	Path    string
	Profile DatabaseProfile // defaults to ProfileStandard
	Name    string          // NameHistory, NameSignals or NameCache
}

// New opens the store at cfg.Path, creating its directory. A store that
// cannot be pinged yields domain.ErrStoreUnavailable.
func New(cfg Config) (*DB, error) {
	// file: URIs skip path resolution
	if !strings.HasPrefix(cfg.Path, "file:") {
		abs, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = abs
	}
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}
	settings, ok := profiles[cfg.Profile]
	if !ok {
		return nil, fmt.Errorf("unknown database profile %q", cfg.Profile)
	}

	conn, err := sql.Open("sqlite", buildConnectionString(cfg.Path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}
	conn.SetMaxOpenConns(settings.maxOpen)
	conn.SetMaxIdleConns(settings.maxIdle)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: failed to ping database %s: %v", domain.ErrStoreUnavailable, cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, profile: cfg.Profile, name: cfg.Name}, nil
}

// buildConnectionString appends the profile's pragmas to path.
func buildConnectionString(path string, profile DatabaseProfile) string {
	settings := profiles[profile]
	pragmas := []string{
		"journal_mode(WAL)",
		"synchronous(" + settings.synchronous + ")",
		"auto_vacuum(" + settings.autoVacuum + ")",
	}
	if settings.tempMemory {
		pragmas = append(pragmas, "temp_store(MEMORY)")
	}
	pragmas = append(pragmas,
		"foreign_keys(1)",
		"busy_timeout(5000)", // worker pool writes contend on one file
		"wal_autocheckpoint(1000)",
		"cache_size(-64000)",
	)
	return path + "?_pragma=" + strings.Join(pragmas, "&_pragma=")
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the store name.
func (db *DB) Name() string {
	return db.name
}

// Profile returns the store profile.
func (db *DB) Profile() DatabaseProfile {
	return db.profile
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies the embedded schema for this store. Every statement is
// idempotent, so it runs on each startup.
func (db *DB) Migrate() error {
	schemaFile := fmt.Sprintf("schemas/%s_schema.sql", db.name)
	content, err := schemaFS.ReadFile(schemaFile)
	if err != nil {
		return fmt.Errorf("no schema for database %q: %w", db.name, err)
	}

	return WithTransaction(db.conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to apply %s: %w", schemaFile, err)
		}
		return nil
	})
}

// WithTransaction runs fn in a transaction, committing on success and
// rolling back on error or panic.
func WithTransaction(conn *sql.DB, fn func(*sql.Tx) error) (err error) {
	if conn == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		p := recover()
		switch {
		case p != nil:
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
		case err != nil:
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback: %v)", err, rbErr)
			} else {
				err = fmt.Errorf("transaction failed: %w", err)
			}
		default:
			if cErr := tx.Commit(); cErr != nil {
				err = fmt.Errorf("failed to commit transaction: %w", cErr)
			}
		}
	}()

	return fn(tx)
}
