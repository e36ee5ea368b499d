package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/rtscope/internal/model"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, ValidateAnalysis(DefaultAnalysis()))
	require.NoError(t, ValidatePlot(DefaultPlot()))
}

func TestZFromConfidence(t *testing.T) {
	z, err := ZFromConfidence(0.95)
	require.NoError(t, err)
	assert.InDelta(t, DefaultZScore, z, 1e-3)

	z, err = ZFromConfidence(0.99)
	require.NoError(t, err)
	assert.InDelta(t, 2.5758, z, 1e-3)

	_, err = ZFromConfidence(1)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateAnalysisRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.AnalysisConfig)
		want   error
	}{
		{"nan delay", func(c *model.AnalysisConfig) { c.DelayMs = math.NaN() }, ErrInvalidConfig},
		{"zero max rt", func(c *model.AnalysisConfig) { c.MaxRTMs = 0 }, ErrInvalidConfig},
		{"negative k", func(c *model.AnalysisConfig) { c.OutlierK = -1 }, ErrInvalidConfig},
		{"stddev", func(c *model.AnalysisConfig) { c.StdDev = "robust" }, ErrInvalidConfig},
		{"latency", func(c *model.AnalysisConfig) { c.Latency = "total" }, ErrInvalidConfig},
		{"significance", func(c *model.AnalysisConfig) { c.Significance = 1 }, ErrInvalidConfig},
		{"jobs", func(c *model.AnalysisConfig) { c.Jobs = 0 }, ErrInvalidConfig},
		{"no segments", func(c *model.AnalysisConfig) { c.Segments = nil }, ErrInvalidConfig},
		{"duplicate name", func(c *model.AnalysisConfig) {
			c.Segments = []model.SegmentSpec{{Name: "a", Indices: []int{0, 1}}, {Name: "a", Indices: []int{1, 2}}}
		}, ErrInvalidConfig},
		{"negative index", func(c *model.AnalysisConfig) {
			c.Segments = []model.SegmentSpec{{Name: "a", Indices: []int{-1, 0}}}
		}, ErrSegmentIndex},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultAnalysis()
			tc.mutate(&cfg)
			require.ErrorIs(t, ValidateAnalysis(cfg), tc.want)
		})
	}
}

func TestValidatePlotRejectsInvertedLimits(t *testing.T) {
	cfg := DefaultPlot()
	cfg.YMin, cfg.YMax = 800, 400
	require.ErrorIs(t, ValidatePlot(cfg), ErrInvalidConfig)

	cfg = DefaultPlot()
	cfg.Width = 0
	require.ErrorIs(t, ValidatePlot(cfg), ErrInvalidConfig)
}
