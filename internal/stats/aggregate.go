package stats

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/verte-zerg/rtscope/internal/model"
)

// MeanStdDev returns the mean and standard deviation of values using the named estimator.
// Callers must pass at least one value, and at least two for the sample estimator.
func MeanStdDev(values []float64, estimator string) (mean, std float64) {
	var variance float64
	if estimator == model.StdDevSample {
		mean, variance = stat.MeanVariance(values, nil)
	} else {
		mean, variance = stat.PopMeanVariance(values, nil)
	}
	return mean, math.Sqrt(variance)
}

// RemoveOutliers splits values into those within k standard deviations of the mean and the rest.
// It is a single pass: mean and deviation are computed once, before removal.
func RemoveOutliers(values []float64, k float64, estimator string) (kept, removed []float64, mean, std float64) {
	mask, mean, std := outlierMask(values, k, estimator)
	kept = make([]float64, 0, len(values))
	for i, v := range values {
		if mask[i] {
			kept = append(kept, v)
		} else {
			removed = append(removed, v)
		}
	}
	return kept, removed, mean, std
}

func outlierMask(values []float64, k float64, estimator string) (keep []bool, mean, std float64) {
	mean, std = MeanStdDev(values, estimator)
	limit := k * std
	keep = make([]bool, len(values))
	for i, v := range values {
		keep[i] = math.Abs(v-mean) <= limit
	}
	return keep, mean, std
}

// StdErr returns std / sqrt(n). n must be greater than one.
func StdErr(std float64, n int) (float64, error) {
	if n <= 1 {
		return 0, &PipelineError{Kind: ErrDegenerateGroup, Msg: "standard error needs at least two values, got " + strconv.Itoa(n)}
	}
	return std / math.Sqrt(float64(n)), nil
}

type conditionGroup struct {
	level  float64
	label  string
	values []float64
	trials []int
}

// Aggregate groups cleaned trials by level, removes outliers per group and summarizes each group.
// Groups keep first-seen order unless cfg.SortLevels is set. The returned trials are the cleaned
// trials whose latency survived outlier removal, in input order.
func Aggregate(c model.CleanedParticipant, cfg model.AnalysisConfig) ([]model.ConditionSummary, []model.CleanTrial, error) {
	if len(c.Trials) == 0 {
		return nil, nil, pipelineErrorf(ErrNoTrials, c.ID, "%s", c.File)
	}

	groups := groupByLevel(c.Trials, cfg.Latency)
	if cfg.SortLevels {
		sort.SliceStable(groups, func(i, j int) bool {
			return groups[i].level < groups[j].level
		})
	}

	keep := make([]bool, len(c.Trials))
	summaries := make([]model.ConditionSummary, 0, len(groups))
	for _, g := range groups {
		summary, keptIdx, err := summarize(g, cfg)
		if err != nil {
			return nil, nil, pipelineErrorf(ErrDegenerateGroup, c.ID, "level %s: %d of %d trials retained", g.label, summary.N, summary.RawN)
		}
		for _, idx := range keptIdx {
			keep[idx] = true
		}
		summaries = append(summaries, summary)
	}

	retained := make([]model.CleanTrial, 0, len(c.Trials))
	for i, t := range c.Trials {
		if keep[i] {
			retained = append(retained, t)
		}
	}
	return summaries, retained, nil
}

func groupByLevel(trials []model.CleanTrial, basis string) []conditionGroup {
	var groups []conditionGroup
	index := map[float64]int{}
	for i, t := range trials {
		gi, ok := index[t.Level]
		if !ok {
			gi = len(groups)
			index[t.Level] = gi
			label := t.LevelLabel
			if label == "" {
				label = strconv.FormatFloat(t.Level, 'g', -1, 64)
			}
			groups = append(groups, conditionGroup{level: t.Level, label: label})
		}
		groups[gi].values = append(groups[gi].values, Latency(t, basis))
		groups[gi].trials = append(groups[gi].trials, i)
	}
	return groups
}

func summarize(g conditionGroup, cfg model.AnalysisConfig) (model.ConditionSummary, []int, error) {
	summary := model.ConditionSummary{
		Level: g.level,
		Label: g.label,
		RawN:  len(g.values),
	}
	if len(g.values) < 2 {
		summary.N = len(g.values)
		return summary, nil, ErrDegenerateGroup
	}

	mask, rawMean, rawStd := outlierMask(g.values, cfg.OutlierK, cfg.StdDev)
	var keptIdx []int
	for i, v := range g.values {
		if !mask[i] {
			summary.Removed = append(summary.Removed, v)
			continue
		}
		summary.Values = append(summary.Values, v)
		keptIdx = append(keptIdx, g.trials[i])
	}
	summary.RawMean = rawMean
	summary.RawStdDev = rawStd
	summary.N = len(summary.Values)
	if summary.N < 2 {
		return summary, nil, ErrDegenerateGroup
	}

	summary.Mean, summary.StdDev = MeanStdDev(summary.Values, cfg.StdDev)
	se, err := StdErr(summary.StdDev, summary.N)
	if err != nil {
		return summary, nil, err
	}
	summary.StdErr = se
	return summary, keptIdx, nil
}
