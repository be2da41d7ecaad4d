package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		in      string
		want    Decision
		wantErr bool
	}{
		{in: "approve", want: DecisionApprove},
		{in: " Approved ", want: DecisionApprove},
		{in: "YES", want: DecisionApprove},
		{in: "reject", want: DecisionReject},
		{in: "no", want: DecisionReject},
		{in: "skip", want: DecisionSkip},
		{in: "pending", want: DecisionSkip},
		{in: "maybe", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDecision(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScoreRangeFor(t *testing.T) {
	assert.Equal(t, ScoreRange95to100, ScoreRangeFor(1))
	assert.Equal(t, ScoreRange95to100, ScoreRangeFor(0.95))
	assert.Equal(t, ScoreRange90to95, ScoreRangeFor(0.9499))
	assert.Equal(t, ScoreRange85to90, ScoreRangeFor(0.85))
	assert.Equal(t, ScoreRange75to85, ScoreRangeFor(0.75))
	assert.Equal(t, "", ScoreRangeFor(0.7499))
}

func TestMatchTypePriority(t *testing.T) {
	assert.Less(t, MatchDeterministic.Priority(), MatchFuzzy.Priority())
	assert.Less(t, MatchFuzzy.Priority(), MatchManual.Priority())
}

func TestNeedsReview(t *testing.T) {
	assert.True(t, (&MatchCandidate{MatchType: MatchFuzzy, Bucket: BucketMedium}).NeedsReview())
	assert.True(t, (&MatchCandidate{MatchType: MatchFuzzy, Bucket: BucketLow}).NeedsReview())
	assert.False(t, (&MatchCandidate{MatchType: MatchFuzzy, Bucket: BucketHigh}).NeedsReview())
	assert.False(t, (&MatchCandidate{MatchType: MatchManual, Bucket: BucketMedium}).NeedsReview())
}

func TestRawTableCell(t *testing.T) {
	tbl := &RawTable{Columns: []string{"a", "b"}, Rows: [][]string{{"1"}}}
	assert.Equal(t, 1, tbl.ColumnIndex("b"))
	assert.Equal(t, -1, tbl.ColumnIndex("c"))
	assert.Equal(t, "1", tbl.Cell(0, 0))
	assert.Equal(t, "", tbl.Cell(0, 1))
	assert.Equal(t, "", tbl.Cell(1, 0))
}
