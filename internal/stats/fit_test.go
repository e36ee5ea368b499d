package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/rtscope/internal/model"
)

func conditionsWithMeans(means ...float64) []model.ConditionSummary {
	out := make([]model.ConditionSummary, len(means))
	for i, m := range means {
		out[i] = model.ConditionSummary{Mean: m}
	}
	return out
}

func TestFitSegmentPerfectLine(t *testing.T) {
	fit, err := FitSegment(conditionsWithMeans(500, 550, 600), model.SegmentSpec{Name: "left", Indices: []int{0, 1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, fit.X)
	assert.Equal(t, []float64{500, 550, 600}, fit.Y)
	assert.InDelta(t, 1.0, fit.R2, 1e-12)
	assert.InDelta(t, 50.0, fit.Slope, 1e-9)
	assert.InDelta(t, 450.0, fit.Intercept, 1e-9)
	assert.InDelta(t, 600.0, Predict(fit, 3), 1e-9)
}

func TestFitSegmentUsesConditionRank(t *testing.T) {
	fit, err := FitSegment(conditionsWithMeans(500, 550, 600, 580), model.SegmentSpec{Name: "right", Indices: []int{2, 3}})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, fit.X)
	assert.InDelta(t, -20.0, fit.Slope, 1e-9)
	assert.InDelta(t, 1.0, fit.R2, 1e-12)
}

func TestFitSegmentFlatLine(t *testing.T) {
	fit, err := FitSegment(conditionsWithMeans(500, 500, 500), model.SegmentSpec{Name: "flat", Indices: []int{0, 1, 2}})
	require.NoError(t, err)
	assert.Zero(t, fit.R2)
	assert.InDelta(t, 0.0, fit.Slope, 1e-12)
}

func TestRSquaredProperties(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{510, 540, 530, 590, 600}
	r2 := rSquared(xs, ys)
	assert.GreaterOrEqual(t, r2, 0.0)
	assert.LessOrEqual(t, r2, 1.0)
	assert.InDelta(t, r2, rSquared(ys, xs), 1e-12)
}

func TestFitSegmentErrors(t *testing.T) {
	conds := conditionsWithMeans(500, 550, 600)
	cases := []struct {
		name string
		spec model.SegmentSpec
		want error
	}{
		{"out of range", model.SegmentSpec{Name: "right", Indices: []int{2, 3}}, ErrSegmentIndex},
		{"negative", model.SegmentSpec{Name: "left", Indices: []int{-1, 0}}, ErrSegmentIndex},
		{"duplicate", model.SegmentSpec{Name: "left", Indices: []int{1, 1}}, ErrSegmentIndex},
		{"single point", model.SegmentSpec{Name: "left", Indices: []int{0}}, ErrSegmentTooShort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FitSegment(conds, tc.spec)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestFitSegmentsKeepsOrder(t *testing.T) {
	fits, err := FitSegments(conditionsWithMeans(500, 550, 600, 580), DefaultSegments())
	require.NoError(t, err)
	require.Len(t, fits, 2)
	assert.Equal(t, SegmentLeft, fits[0].Name)
	assert.Equal(t, SegmentRight, fits[1].Name)
}
