package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/unitlink/internal/model"
)

func seedCheckpointData(t *testing.T, store *SQLiteStorage) {
	t.Helper()
	ctx := context.Background()

	_, err := store.UpsertDecisions(ctx, []model.ReviewDecision{
		decision("O1", "T1", model.DecisionApprove, 0),
		decision("O2", "T2", model.DecisionReject, 0),
		decision("O3", "T3", model.DecisionSkip, 0),
	})
	require.NoError(t, err)

	_, err = store.SaveBlockResult(ctx, "run-a", blockResult("marina", 0.95))
	require.NoError(t, err)
	require.NoError(t, store.StartRun(ctx, "run-1", "fp", baseTime))
}

func TestCheckpointManager_Create(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	seedCheckpointData(t, store)

	manager, err := store.NewCheckpointManager()
	require.NoError(t, err)

	ctx := context.Background()

	tests := []struct {
		errType     error
		name        string
		tag         string
		description string
		wantErr     bool
	}{
		{
			name:        "Create checkpoint with tag",
			tag:         "before-import",
			description: "Test checkpoint",
		},
		{
			name:        "Create checkpoint without tag (auto-generated)",
			tag:         "",
			description: "Generated tag",
		},
		{
			name:        "Create checkpoint with invalid tag (path traversal)",
			tag:         "../invalid",
			description: "Invalid checkpoint",
			wantErr:     true,
		},
		{
			name:        "Create duplicate checkpoint",
			tag:         "before-import",
			description: "Duplicate checkpoint",
			wantErr:     true,
			errType:     ErrCheckpointExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := manager.Create(ctx, tt.tag, tt.description)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errType != nil {
					assert.ErrorIs(t, err, tt.errType)
				}
				return
			}

			require.NoError(t, err)
			require.NotNil(t, info)

			if tt.tag != "" {
				assert.Equal(t, tt.tag, info.ID)
			} else {
				assert.Contains(t, info.ID, "checkpoint-")
			}

			assert.Equal(t, tt.description, info.Description)
			assert.Greater(t, info.FileSize, int64(0))
			assert.Equal(t, 3, info.Decisions)
			assert.Equal(t, 1, info.BlockResults)
			assert.Equal(t, 1, info.Runs)
			assert.Equal(t, ExpectedSchemaVersion, info.SchemaVersion)
			assert.False(t, info.IsAuto)

			dir := filepath.Join(filepath.Dir(store.Path()), "checkpoints")
			_, err = os.Stat(filepath.Join(dir, info.ID+".db"))
			assert.NoError(t, err)
			_, err = os.Stat(filepath.Join(dir, info.ID+".meta.json"))
			assert.NoError(t, err)
		})
	}
}

func TestCheckpointManager_CheckpointIsReadable(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	seedCheckpointData(t, store)

	manager, err := store.NewCheckpointManager()
	require.NoError(t, err)

	ctx := context.Background()
	info, err := manager.Create(ctx, "snapshot", "")
	require.NoError(t, err)

	copyPath := filepath.Join(filepath.Dir(store.Path()), "checkpoints", info.ID+".db")
	restored, err := NewSQLiteStorage(copyPath)
	require.NoError(t, err)
	defer func() { _ = restored.Close() }()

	decisions, err := restored.ListDecisions(ctx)
	require.NoError(t, err)
	assert.Len(t, decisions, 3)
}

func TestCheckpointManager_ListAndDelete(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	manager, err := store.NewCheckpointManager()
	require.NoError(t, err)
	ctx := context.Background()

	_, err = manager.Create(ctx, "first", "one")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = manager.Create(ctx, "second", "two")
	require.NoError(t, err)

	list, err := manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].ID)
	assert.Equal(t, "first", list[1].ID)

	require.NoError(t, manager.Delete(ctx, "first"))
	assert.ErrorIs(t, manager.Delete(ctx, "first"), ErrCheckpointNotFound)

	list, err = manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "second", list[0].ID)
}

func TestCheckpointManager_AutoCheckpointRetention(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	manager, err := store.NewCheckpointManager()
	require.NoError(t, err)
	ctx := context.Background()

	_, err = manager.Create(ctx, "manual", "kept")
	require.NoError(t, err)

	for i := 0; i < maxAutoCheckpoints+2; i++ {
		info, err := manager.AutoCheckpoint(ctx, "import")
		require.NoError(t, err)
		assert.True(t, info.IsAuto)
		time.Sleep(5 * time.Millisecond)
	}

	list, err := manager.List(ctx)
	require.NoError(t, err)

	auto := 0
	manual := 0
	for _, cp := range list {
		if cp.IsAuto {
			auto++
		} else {
			manual++
		}
	}
	assert.Equal(t, maxAutoCheckpoints, auto)
	assert.Equal(t, 1, manual)
}
