package stats

import (
	"time"

	"github.com/verte-zerg/rtscope/internal/model"
)

// Report is the serializable outcome of an analysis run.
type Report struct {
	Generated    time.Time           `json:"generated" yaml:"generated"`
	InputDir     string              `json:"input_dir" yaml:"input_dir"`
	Settings     ReportSettings      `json:"settings" yaml:"settings"`
	Participants []ParticipantReport `json:"participants" yaml:"participants"`
}

// ReportSettings records the analysis parameters a report was produced with.
type ReportSettings struct {
	DelayMs      float64 `json:"delay_ms" yaml:"delay_ms"`
	MaxRTMs      float64 `json:"max_rt_ms" yaml:"max_rt_ms"`
	OutlierK     float64 `json:"outlier_k" yaml:"outlier_k"`
	StdDev       string  `json:"stddev" yaml:"stddev"`
	Latency      string  `json:"latency" yaml:"latency"`
	ZScore       float64 `json:"z_score" yaml:"z_score"`
	Significance float64 `json:"significance" yaml:"significance"`
}

// ParticipantReport is one participant's section of a report.
type ParticipantReport struct {
	ID               string            `json:"id" yaml:"id"`
	File             string            `json:"file" yaml:"file"`
	Trials           int               `json:"trials" yaml:"trials"`
	DroppedIncorrect int               `json:"dropped_incorrect" yaml:"dropped_incorrect"`
	DroppedSlow      int               `json:"dropped_slow" yaml:"dropped_slow"`
	Retained         int               `json:"retained" yaml:"retained"`
	Conditions       []ConditionReport `json:"conditions" yaml:"conditions"`
	Fits             []FitReport       `json:"fits" yaml:"fits"`
}

// ConditionReport is one aggregated level.
type ConditionReport struct {
	Level    string  `json:"level" yaml:"level"`
	N        int     `json:"n" yaml:"n"`
	Outliers int     `json:"outliers" yaml:"outliers"`
	Mean     float64 `json:"mean" yaml:"mean"`
	StdDev   float64 `json:"sd" yaml:"sd"`
	StdErr   float64 `json:"se" yaml:"se"`
	CI       float64 `json:"ci" yaml:"ci"`
}

// FitReport is one fitted segment.
type FitReport struct {
	Segment   string  `json:"segment" yaml:"segment"`
	Slope     float64 `json:"slope" yaml:"slope"`
	Intercept float64 `json:"intercept" yaml:"intercept"`
	R2        float64 `json:"r2" yaml:"r2"`
}

// BuildReport flattens analysis results into a Report.
func BuildReport(inputDir string, cfg model.AnalysisConfig, results []model.ParticipantResult, now time.Time) Report {
	rep := Report{
		Generated: now.UTC(),
		InputDir:  inputDir,
		Settings: ReportSettings{
			DelayMs:      cfg.DelayMs,
			MaxRTMs:      cfg.MaxRTMs,
			OutlierK:     cfg.OutlierK,
			StdDev:       cfg.StdDev,
			Latency:      cfg.Latency,
			ZScore:       cfg.ZScore,
			Significance: cfg.Significance,
		},
		Participants: make([]ParticipantReport, 0, len(results)),
	}
	for _, r := range results {
		pr := ParticipantReport{
			ID:               r.ID,
			File:             r.File,
			Trials:           r.RawTrials,
			DroppedIncorrect: r.Cleaned.DroppedIncorrect,
			DroppedSlow:      r.Cleaned.DroppedSlow,
			Retained:         len(r.Retained),
		}
		for _, c := range r.Conditions {
			pr.Conditions = append(pr.Conditions, ConditionReport{
				Level:    c.Label,
				N:        c.N,
				Outliers: len(c.Removed),
				Mean:     c.Mean,
				StdDev:   c.StdDev,
				StdErr:   c.StdErr,
				CI:       cfg.ZScore * c.StdErr,
			})
		}
		for _, f := range r.Fits {
			pr.Fits = append(pr.Fits, FitReport{
				Segment:   f.Name,
				Slope:     f.Slope,
				Intercept: f.Intercept,
				R2:        f.R2,
			})
		}
		rep.Participants = append(rep.Participants, pr)
	}
	return rep
}

// RunRecord converts a report into the archived run summary.
func (r Report) RunRecord() model.RunRecord {
	rec := model.RunRecord{
		CreatedAt:    r.Generated,
		InputDir:     r.InputDir,
		DelayMs:      r.Settings.DelayMs,
		ZScore:       r.Settings.ZScore,
		Significance: r.Settings.Significance,
		Latency:      r.Settings.Latency,
		Participants: make([]model.ParticipantFits, 0, len(r.Participants)),
	}
	for _, p := range r.Participants {
		fits := make(map[string]float64, len(p.Fits))
		for _, f := range p.Fits {
			fits[f.Segment] = f.R2
		}
		rec.Participants = append(rec.Participants, model.ParticipantFits{
			ID:         p.ID,
			Conditions: len(p.Conditions),
			Fits:       fits,
		})
	}
	return rec
}
