package base

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobBaseExecuteRecordsOutcome(t *testing.T) {
	var j JobBase

	require.NoError(t, j.Execute(func() error { return nil }))
	err := j.Execute(func() error { return errors.New("boom") })
	require.EqualError(t, err, "boom")

	status := j.Status()
	assert.False(t, status.Running)
	assert.Equal(t, 2, status.Runs)
	assert.Equal(t, 1, status.Failures)
	assert.Equal(t, "boom", status.LastError)
	assert.False(t, status.LastStarted.IsZero())

	require.NoError(t, j.Execute(func() error { return nil }))
	assert.Empty(t, j.Status().LastError)
}

func TestJobBaseRejectsOverlappingRuns(t *testing.T) {
	var j JobBase

	var inner error
	err := j.Execute(func() error {
		assert.True(t, j.Status().Running)
		inner = j.Execute(func() error { return nil })
		return nil
	})

	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrAlreadyRunning)
	assert.Equal(t, 1, j.Status().Runs)
}

func TestJobBaseRecoversPanics(t *testing.T) {
	var j JobBase

	err := j.Execute(func() error { panic("exploded") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exploded")

	status := j.Status()
	assert.False(t, status.Running)
	assert.Equal(t, 1, status.Failures)

	assert.NoError(t, j.Execute(func() error { return nil }))
}
