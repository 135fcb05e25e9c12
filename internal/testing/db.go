// Package testing provides testing utilities and helpers for the signalscope project.
package testing

import (
	"fmt"
	"os"
	"testing"

	"github.com/aristath/signalscope/internal/database"
)

// NewTestDB creates a migrated, file-backed SQLite database for testing.
// Each call gets its own temporary file; the database is closed and the
// file removed when the test finishes.
//
// Supported names: "history", "signals", "cache".
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	db := openTempDB(t, name)
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}
	return db
}

// NewTestDBWithSchema creates a test database and executes a custom schema
// instead of the embedded one.
func NewTestDBWithSchema(t *testing.T, name string, schema string) *database.DB {
	t.Helper()

	db := openTempDB(t, name)
	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			t.Fatalf("Failed to execute custom schema for test database %s: %v", name, err)
		}
	}
	return db
}

func openTempDB(t *testing.T, name string) *database.DB {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	profile := database.ProfileStandard
	switch name {
	case database.NameSignals:
		profile = database.ProfileLedger
	case database.NameCache:
		profile = database.ProfileCache
	}

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})
	return db
}
