package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/verte-zerg/rtscope/internal/model"
)

// Defaults for the VR face scaling experiment.
const (
	DefaultDelayMs      = 150.0
	DefaultMaxRTMs      = 1200.0
	DefaultOutlierK     = 1.5
	DefaultZScore       = 1.96
	DefaultSignificance = 0.05
	DefaultTitle        = "VR 2D Face Scaling RT"
	DefaultXLabel       = "Eccentricity (°)"
	DefaultYLabel       = "Reaction time (ms)"
	DefaultYMin         = 400.0
	DefaultYMax         = 800.0
	DefaultPlotWidth    = 1000
	DefaultPlotHeight   = 600
)

// Segment names used by the default two-piece fit.
const (
	SegmentLeft  = "left"
	SegmentRight = "right"
)

// DefaultSegments returns the left/right split that shares the central condition.
func DefaultSegments() []model.SegmentSpec {
	return []model.SegmentSpec{
		{Name: SegmentLeft, Indices: []int{0, 1, 2}},
		{Name: SegmentRight, Indices: []int{2, 3}},
	}
}

// DefaultAnalysis returns the analysis settings used for the VR scaling experiment.
func DefaultAnalysis() model.AnalysisConfig {
	return model.AnalysisConfig{
		DelayMs:      DefaultDelayMs,
		MaxRTMs:      DefaultMaxRTMs,
		OutlierK:     DefaultOutlierK,
		StdDev:       model.StdDevPopulation,
		Latency:      model.LatencyAdjusted,
		ZScore:       DefaultZScore,
		Significance: DefaultSignificance,
		Segments:     DefaultSegments(),
		Jobs:         1,
	}
}

// DefaultPlot returns the chart labels and limits used for the VR scaling experiment.
func DefaultPlot() model.PlotConfig {
	return model.PlotConfig{
		Title:  DefaultTitle,
		XLabel: DefaultXLabel,
		YLabel: DefaultYLabel,
		YMin:   DefaultYMin,
		YMax:   DefaultYMax,
		Width:  DefaultPlotWidth,
		Height: DefaultPlotHeight,
	}
}

// ZFromConfidence returns the two-sided standard normal critical value for a confidence level.
func ZFromConfidence(confidence float64) (float64, error) {
	if !(confidence > 0 && confidence < 1) {
		return 0, invalidConfigf("confidence must be between 0 and 1, got %v", confidence)
	}
	return distuv.UnitNormal.Quantile(1 - (1-confidence)/2), nil
}

// ValidateAnalysis checks settings that do not depend on the data.
func ValidateAnalysis(cfg model.AnalysisConfig) error {
	if !finite(cfg.DelayMs) {
		return invalidConfigf("delay must be finite")
	}
	if !(cfg.MaxRTMs > 0) || !finite(cfg.MaxRTMs) {
		return invalidConfigf("max reaction time must be > 0")
	}
	if !(cfg.OutlierK > 0) || !finite(cfg.OutlierK) {
		return invalidConfigf("outlier threshold must be > 0")
	}
	switch cfg.StdDev {
	case model.StdDevPopulation, model.StdDevSample:
	default:
		return invalidConfigf("stddev must be %q or %q, got %q", model.StdDevPopulation, model.StdDevSample, cfg.StdDev)
	}
	switch cfg.Latency {
	case model.LatencyAdjusted, model.LatencyRaw:
	default:
		return invalidConfigf("latency must be %q or %q, got %q", model.LatencyAdjusted, model.LatencyRaw, cfg.Latency)
	}
	if !(cfg.ZScore > 0) || !finite(cfg.ZScore) {
		return invalidConfigf("z-score must be > 0")
	}
	if !(cfg.Significance > 0 && cfg.Significance < 1) {
		return invalidConfigf("significance must be between 0 and 1")
	}
	if cfg.Jobs < 1 {
		return invalidConfigf("jobs must be >= 1")
	}
	if len(cfg.Segments) == 0 {
		return invalidConfigf("at least one segment is required")
	}
	names := map[string]struct{}{}
	for _, seg := range cfg.Segments {
		if seg.Name == "" {
			return invalidConfigf("segment name must not be empty")
		}
		if _, dup := names[seg.Name]; dup {
			return invalidConfigf("duplicate segment %q", seg.Name)
		}
		names[seg.Name] = struct{}{}
		if err := validateIndices(seg); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePlot checks chart settings.
func ValidatePlot(cfg model.PlotConfig) error {
	if !finite(cfg.YMin) || !finite(cfg.YMax) || cfg.YMin >= cfg.YMax {
		return invalidConfigf("y limits must satisfy min < max, got [%v, %v]", cfg.YMin, cfg.YMax)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return invalidConfigf("plot size must be positive, got %dx%d", cfg.Width, cfg.Height)
	}
	return nil
}

func validateIndices(seg model.SegmentSpec) error {
	seen := map[int]struct{}{}
	for _, idx := range seg.Indices {
		if idx < 0 {
			return &PipelineError{Kind: ErrSegmentIndex, Msg: indexMsg(seg.Name, idx, "negative")}
		}
		if _, dup := seen[idx]; dup {
			return &PipelineError{Kind: ErrSegmentIndex, Msg: indexMsg(seg.Name, idx, "duplicated")}
		}
		seen[idx] = struct{}{}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
