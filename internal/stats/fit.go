package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/verte-zerg/rtscope/internal/model"
)

// FitSegment fits mean latency against 1-based condition rank for the positions in spec.
// R² is the squared Pearson correlation of the segment's points; a flat segment has R² = 0.
func FitSegment(conditions []model.ConditionSummary, spec model.SegmentSpec) (model.SegmentFit, error) {
	if err := validateIndices(spec); err != nil {
		return model.SegmentFit{}, err
	}
	for _, idx := range spec.Indices {
		if idx >= len(conditions) {
			return model.SegmentFit{}, &PipelineError{
				Kind: ErrSegmentIndex,
				Msg:  indexMsg(spec.Name, idx, fmt.Sprintf("only %d conditions", len(conditions))),
			}
		}
	}
	if len(spec.Indices) < 2 {
		return model.SegmentFit{}, &PipelineError{
			Kind: ErrSegmentTooShort,
			Msg:  fmt.Sprintf("segment %s has %d point(s)", spec.Name, len(spec.Indices)),
		}
	}

	xs := make([]float64, len(spec.Indices))
	ys := make([]float64, len(spec.Indices))
	for i, idx := range spec.Indices {
		xs[i] = float64(idx + 1)
		ys[i] = conditions[idx].Mean
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	return model.SegmentFit{
		Name:      spec.Name,
		Indices:   append([]int(nil), spec.Indices...),
		X:         xs,
		Y:         ys,
		Slope:     slope,
		Intercept: intercept,
		R2:        rSquared(xs, ys),
	}, nil
}

// FitSegments fits every configured segment in order.
func FitSegments(conditions []model.ConditionSummary, specs []model.SegmentSpec) ([]model.SegmentFit, error) {
	fits := make([]model.SegmentFit, 0, len(specs))
	for _, spec := range specs {
		fit, err := FitSegment(conditions, spec)
		if err != nil {
			return nil, err
		}
		fits = append(fits, fit)
	}
	return fits, nil
}

// Predict evaluates the fitted line at x.
func Predict(fit model.SegmentFit, x float64) float64 {
	return fit.Intercept + fit.Slope*x
}

func rSquared(xs, ys []float64) float64 {
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r * r
}

func indexMsg(segment string, idx int, reason string) string {
	return fmt.Sprintf("segment %s index %d: %s", segment, idx, reason)
}
