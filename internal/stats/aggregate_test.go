package stats

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/rtscope/internal/model"
)

func cleaned(id string, levels []float64, values [][]float64) model.CleanedParticipant {
	c := model.CleanedParticipant{ID: id, File: id + "-run.csv"}
	row := 0
	for i, level := range levels {
		for _, v := range values[i] {
			row++
			c.Trials = append(c.Trials, model.CleanTrial{
				Trial:      model.Trial{Row: row, Correct: true, Level: level},
				AdjustedRT: v,
			})
		}
	}
	return c
}

func TestRemoveOutliersDropsFarValue(t *testing.T) {
	kept, removed, mean, std := RemoveOutliers([]float64{100, 102, 98, 500}, 1.5, model.StdDevPopulation)
	assert.Equal(t, []float64{100, 102, 98}, kept)
	assert.Equal(t, []float64{500}, removed)
	assert.InDelta(t, 200.0, mean, 1e-9)
	assert.InDelta(t, math.Sqrt(30002), std, 1e-9)

	keptMean, _ := MeanStdDev(kept, model.StdDevPopulation)
	assert.InDelta(t, 100.0, keptMean, 1e-9)
}

func TestRemoveOutliersSampleEstimatorIsWider(t *testing.T) {
	kept, removed, _, std := RemoveOutliers([]float64{100, 102, 98, 500}, 1.5, model.StdDevSample)
	assert.Len(t, kept, 4)
	assert.Empty(t, removed)
	assert.InDelta(t, math.Sqrt(120008.0/3), std, 1e-9)
}

func TestRemoveOutliersInvariants(t *testing.T) {
	values := []float64{510, 530, 495, 620, 480, 505, 900, 515, 470, 525}
	for _, k := range []float64{0.5, 1, 1.5, 2, 3} {
		kept, removed, mean, std := RemoveOutliers(values, k, model.StdDevPopulation)
		assert.Equal(t, len(values), len(kept)+len(removed))
		for _, v := range kept {
			assert.LessOrEqual(t, math.Abs(v-mean), k*std)
		}
		for _, v := range removed {
			assert.Greater(t, math.Abs(v-mean), k*std)
		}
	}
}

func TestRemoveOutliersConstantGroup(t *testing.T) {
	kept, removed, _, std := RemoveOutliers([]float64{500, 500, 500}, 1.5, model.StdDevPopulation)
	assert.Len(t, kept, 3)
	assert.Empty(t, removed)
	assert.Zero(t, std)
}

func TestStdErr(t *testing.T) {
	se, err := StdErr(12, 9)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, se, 1e-12)

	_, err = StdErr(12, 1)
	require.ErrorIs(t, err, ErrDegenerateGroup)
}

func TestAggregateGroupsInFirstSeenOrder(t *testing.T) {
	c := cleaned("P01", []float64{10, 5}, [][]float64{
		{600, 610, 590},
		{100, 102, 98, 500},
	})
	cfg := DefaultAnalysis()

	summaries, retained, err := Aggregate(c, cfg)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "10", summaries[0].Label)
	assert.InDelta(t, 600.0, summaries[0].Mean, 1e-9)
	assert.Equal(t, 3, summaries[0].N)

	five := summaries[1]
	assert.Equal(t, 5.0, five.Level)
	assert.Equal(t, 4, five.RawN)
	assert.Equal(t, 3, five.N)
	assert.Equal(t, []float64{500}, five.Removed)
	assert.InDelta(t, 100.0, five.Mean, 1e-9)
	assert.InDelta(t, five.StdDev/math.Sqrt(3), five.StdErr, 1e-12)

	rows := make([]int, len(retained))
	for i, r := range retained {
		rows[i] = r.Row
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4, 5, 6}, rows); diff != "" {
		t.Fatalf("retained rows mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateSortLevels(t *testing.T) {
	c := cleaned("P01", []float64{10, 2.5, 5}, [][]float64{{1, 2}, {3, 4}, {5, 6}})
	cfg := DefaultAnalysis()
	cfg.SortLevels = true

	summaries, _, err := Aggregate(c, cfg)
	require.NoError(t, err)
	got := make([]float64, len(summaries))
	for i, s := range summaries {
		got[i] = s.Level
	}
	assert.Equal(t, []float64{2.5, 5, 10}, got)
}

func TestAggregateErrors(t *testing.T) {
	cfg := DefaultAnalysis()

	_, _, err := Aggregate(model.CleanedParticipant{ID: "P09"}, cfg)
	require.ErrorIs(t, err, ErrNoTrials)
	assert.True(t, IsDataError(err))

	_, _, err = Aggregate(cleaned("P02", []float64{5, 10}, [][]float64{{1, 2}, {3}}), cfg)
	require.ErrorIs(t, err, ErrDegenerateGroup)
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "P02", pe.Participant)
	assert.Contains(t, err.Error(), "level 10")
}
