package scheduler

import (
	"testing"

	"github.com/aristath/signalscope/internal/database"
	testingpkg "github.com/aristath/signalscope/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDatabases(t *testing.T) map[string]*database.DB {
	t.Helper()
	return map[string]*database.DB{
		database.NameHistory: testingpkg.NewTestDB(t, database.NameHistory),
		database.NameSignals: testingpkg.NewTestDB(t, database.NameSignals),
		database.NameCache:   testingpkg.NewTestDB(t, database.NameCache),
	}
}

func TestCheckDatabasesJob(t *testing.T) {
	job := NewCheckDatabasesJob(testDatabases(t), zerolog.Nop())
	assert.Equal(t, "check_databases", job.Name())

	require.NoError(t, job.Run())
	assert.Equal(t, 1, job.Status().Runs)
}

func TestCheckDatabasesJob_NilDatabases(t *testing.T) {
	job := NewCheckDatabasesJob(map[string]*database.DB{"history": nil}, zerolog.Nop())
	assert.NoError(t, job.Run())
}

func TestCheckDatabasesJob_ClosedDatabase(t *testing.T) {
	dbs := testDatabases(t)
	require.NoError(t, dbs[database.NameCache].Close())

	job := NewCheckDatabasesJob(dbs, zerolog.Nop())
	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database cache")
	assert.Equal(t, 1, job.Status().Failures)
}
