package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/unitlink/internal/common"
	"github.com/Veraticus/unitlink/internal/model"
)

func TestRunHistory(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.StartRun(ctx, "run-1", "fp1", baseTime))
	require.NoError(t, store.StartRun(ctx, "run-2", "fp2", baseTime.Add(time.Hour)))

	stats := model.NewRunStats("run-1", baseTime)
	stats.Status = model.RunCompleted
	stats.Fingerprint = "fp1"
	stats.FinishedAt = baseTime.Add(time.Minute)
	stats.Matched = 4
	stats.OwnerMatchRate = 0.8
	require.NoError(t, store.FinishRun(ctx, stats))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first; the second run never finished.
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, model.RunRunning, runs[0].Status)
	assert.Nil(t, runs[0].FinishedAt)
	assert.Nil(t, runs[0].Stats)

	assert.Equal(t, "run-1", runs[1].ID)
	assert.Equal(t, model.RunCompleted, runs[1].Status)
	require.NotNil(t, runs[1].FinishedAt)
	require.NotNil(t, runs[1].Stats)
	assert.Equal(t, 4, runs[1].Stats.Matched)
	assert.InDelta(t, 0.8, runs[1].Stats.OwnerMatchRate, 1e-9)

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFinishRun_Errors(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	err := store.FinishRun(ctx, nil)
	assert.ErrorIs(t, err, ErrNilParameter)

	stats := model.NewRunStats("missing", baseTime)
	stats.Status = model.RunFailed
	stats.FinishedAt = baseTime
	err = store.FinishRun(ctx, stats)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestStartRun_DuplicateID(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.StartRun(ctx, "run-1", "fp", baseTime))
	assert.Error(t, store.StartRun(ctx, "run-1", "fp", baseTime))
	assert.ErrorIs(t, store.StartRun(ctx, "", "fp", baseTime), ErrEmptyString)
}
