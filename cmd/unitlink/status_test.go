package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/unitlink/internal/model"
	"github.com/Veraticus/unitlink/internal/storage"
	"github.com/Veraticus/unitlink/internal/testutil"
)

func TestWriteReviewStatus(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	db := testutil.SetupTestDBWithOptions(t, testutil.TestDBOptions{
		Decisions: []model.ReviewDecision{
			{OwnerID: "M1", TxnID: "TM", Decision: model.DecisionApprove, Reviewer: "qa", Timestamp: at},
			{OwnerID: "L1", TxnID: "TL", Decision: model.DecisionReject, Reviewer: "qa", Timestamp: at},
			{OwnerID: "X1", TxnID: "TX", Decision: model.DecisionReject, Reviewer: "qa", Timestamp: at},
		},
	})
	ctx := context.Background()

	stats := model.NewRunStats("0f7c2a1e-run", at)
	require.NoError(t, db.Storage.StartRun(ctx, stats.RunID, "", at))
	stats.Status = model.RunCompleted
	stats.Matched = 7
	stats.Review.QueueSize = 3
	stats.FinishedAt = at.Add(time.Minute)
	require.NoError(t, db.Storage.FinishRun(ctx, stats))

	var out bytes.Buffer
	require.NoError(t, writeReviewStatus(ctx, &out, db.Storage, 5))

	s := out.String()
	assert.Contains(t, s, "Decided pairs")
	assert.Contains(t, s, "reject")
	assert.Contains(t, s, "0f7c2a1e")
	assert.NotContains(t, s, "0f7c2a1e-run")
	assert.Contains(t, s, "completed")
	assert.Contains(t, s, "7")
}

func TestWriteReviewStatus_NoRuns(t *testing.T) {
	db := testutil.SetupTestDB(t)

	var out bytes.Buffer
	require.NoError(t, writeReviewStatus(context.Background(), &out, db.Storage, 5))
	assert.Contains(t, out.String(), "No runs recorded.")
}

func TestWriteCheckpointTable(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var empty bytes.Buffer
	require.NoError(t, writeCheckpointTable(&empty, nil, now))
	assert.Contains(t, empty.String(), "No checkpoints found.")

	var out bytes.Buffer
	require.NoError(t, writeCheckpointTable(&out, []storage.CheckpointInfo{
		{ID: "pre-import", CreatedAt: now.Add(-2 * time.Hour), FileSize: 2048, Decisions: 12, Runs: 3},
		{ID: "auto-review-import", CreatedAt: now.Add(-30 * time.Second), FileSize: 512, IsAuto: true},
	}, now))

	s := out.String()
	assert.Contains(t, s, "pre-import")
	assert.Contains(t, s, "2 hours ago")
	assert.Contains(t, s, "2.0 KB")
	assert.Contains(t, s, "just now")
	assert.Contains(t, s, "auto")
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		want string
		size int64
	}{
		{size: 0, want: "0 B"},
		{size: 1023, want: "1023 B"},
		{size: 1024, want: "1.0 KB"},
		{size: 1536, want: "1.5 KB"},
		{size: 5 * 1024 * 1024, want: "5.0 MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatFileSize(tt.size))
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{ago: 10 * time.Second, want: "just now"},
		{ago: time.Minute, want: "1 minute ago"},
		{ago: 5 * time.Minute, want: "5 minutes ago"},
		{ago: time.Hour, want: "1 hour ago"},
		{ago: 25 * time.Hour, want: "yesterday"},
		{ago: 3 * 24 * time.Hour, want: "3 days ago"},
		{ago: 10 * 24 * time.Hour, want: "2024-04-30 12:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatRelativeTime(now.Add(-tt.ago), now), tt.ago.String())
	}
}
