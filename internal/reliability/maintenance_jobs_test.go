package reliability

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/signalscope/internal/database"
	testingpkg "github.com/aristath/signalscope/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeBytes(n uint64, err error) DiskUsageFunc {
	return func(context.Context, string) (uint64, error) { return n, err }
}

func TestMaintenanceJob(t *testing.T) {
	dbs := map[string]*database.DB{
		database.NameSignals: testingpkg.NewTestDB(t, database.NameSignals),
		database.NameCache:   testingpkg.NewTestDB(t, database.NameCache),
		database.NameHistory: testingpkg.NewTestDB(t, database.NameHistory),
	}

	job := NewMaintenanceJob(dbs, t.TempDir(), zerolog.Nop())
	job.freeBytes = freeBytes(20*1000*1000*1000, nil)

	assert.Equal(t, "maintenance", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 1, job.Status().Runs)
	assert.Zero(t, job.Status().Failures)
}

func TestMaintenanceJobDiskSpace(t *testing.T) {
	tests := []struct {
		name    string
		free    DiskUsageFunc
		wantErr string
	}{
		{name: "plenty", free: freeBytes(50*1000*1000*1000, nil)},
		{name: "low but usable", free: freeBytes(1000*1000*1000, nil)},
		{name: "critical", free: freeBytes(100*1000*1000, nil), wantErr: "bytes free"},
		{name: "usage unavailable", free: freeBytes(0, errors.New("no such path")), wantErr: "failed to read disk usage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewMaintenanceJob(nil, t.TempDir(), zerolog.Nop())
			job.freeBytes = tt.free

			err := job.Run()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestGopsutilFreeBytes(t *testing.T) {
	free, err := gopsutilFreeBytes(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, free)
}
