package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/rtscope/internal/model"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "rtscope.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestSaveAndListRuns(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	first := model.RunRecord{
		CreatedAt:    base,
		InputDir:     "data/a",
		DelayMs:      150,
		ZScore:       1.96,
		Significance: 0.05,
		Latency:      model.LatencyAdjusted,
		Participants: []model.ParticipantFits{
			{ID: "P01", Conditions: 4, Fits: map[string]float64{"left": 0.9, "right": 1}},
			{ID: "P01", Conditions: 4, Fits: map[string]float64{"left": 0.5, "right": 0.25}},
			{ID: "P02", Conditions: 4, Fits: map[string]float64{}},
		},
	}
	firstID, err := st.SaveRun(ctx, first)
	require.NoError(t, err)
	_, err = uuid.Parse(firstID)
	require.NoError(t, err)

	second := first
	second.CreatedAt = base.Add(time.Hour)
	second.InputDir = "data/b"
	second.Participants = first.Participants[:1]
	secondID, err := st.SaveRun(ctx, second)
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)

	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, secondID, runs[0].ID)
	assert.Equal(t, "data/b", runs[0].InputDir)
	assert.True(t, runs[0].CreatedAt.Equal(second.CreatedAt))

	if diff := cmp.Diff(first.Participants, runs[1].Participants); diff != "" {
		t.Fatalf("participants mismatch (-want +got):\n%s", diff)
	}

	limited, err := st.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, secondID, limited[0].ID)
}

func TestGetRun(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	id, err := st.SaveRun(ctx, model.RunRecord{
		ID:       "fixed-id",
		InputDir: "data",
		Latency:  model.LatencyRaw,
		Participants: []model.ParticipantFits{
			{ID: "S1", Conditions: 3, Fits: map[string]float64{"left": 0.75}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "fixed-id", id)

	rec, err := st.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.LatencyRaw, rec.Latency)
	assert.False(t, rec.CreatedAt.IsZero())
	require.Len(t, rec.Participants, 1)
	assert.Equal(t, 0.75, rec.Participants[0].Fits["left"])

	_, err = st.GetRun(ctx, "missing")
	require.ErrorIs(t, err, ErrRunNotFound)

	_, err = st.SaveRun(ctx, model.RunRecord{ID: "fixed-id"})
	require.Error(t, err)
}
