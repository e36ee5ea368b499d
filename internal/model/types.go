// Package model defines shared data structures.
package model

import "time"

// Latency bases for the dependent variable.
const (
	LatencyAdjusted = "adjusted"
	LatencyRaw      = "raw"
)

// Standard deviation estimators.
const (
	StdDevPopulation = "population"
	StdDevSample     = "sample"
)

// InputConfig describes where trial logs live and how their columns are named.
type InputConfig struct {
	Dir          string
	Extensions   []string
	IDSeparator  string
	CorrectCol   string
	RTCol        string
	OnsetCol     string
	LevelCol     string
	CorrectValue string
}

// AnalysisConfig holds every cleaning, aggregation and fitting parameter.
type AnalysisConfig struct {
	DelayMs      float64
	MaxRTMs      float64
	OutlierK     float64
	StdDev       string
	Latency      string
	SortLevels   bool
	ZScore       float64
	Significance float64
	Segments     []SegmentSpec
	Jobs         int
	KeepGoing    bool
}

// PlotConfig defines chart cosmetics.
type PlotConfig struct {
	Title  string
	XLabel string
	YLabel string
	YMin   float64
	YMax   float64
	Width  int
	Height int
}

// Config is the fully resolved configuration for one run.
type Config struct {
	Input    InputConfig
	Analysis AnalysisConfig
	Plot     PlotConfig
}

// SegmentSpec names a regression segment by 0-based positions into the ordered condition list.
type SegmentSpec struct {
	Name    string
	Indices []int
}

// Trial is one row of a participant's trial log.
type Trial struct {
	Row          int
	Correct      bool
	CorrectRaw   string
	ReactionTime float64
	OnsetTime    float64
	Level        float64
	LevelLabel   string
}

// Elapsed returns the unadjusted response latency.
func (t Trial) Elapsed() float64 {
	return t.ReactionTime - t.OnsetTime
}

// Participant is the raw trial table loaded from one file.
type Participant struct {
	ID     string
	File   string
	Trials []Trial
}

// CleanTrial is a trial that survived cleaning, with the device delay applied.
type CleanTrial struct {
	Trial
	AdjustedRT float64
}

// CleanedParticipant is the filtered trial table for one participant.
type CleanedParticipant struct {
	ID               string
	File             string
	Trials           []CleanTrial
	DroppedIncorrect int
	DroppedSlow      int
}

// ConditionSummary aggregates one independent-variable level for a participant.
type ConditionSummary struct {
	Level     float64
	Label     string
	Values    []float64
	Removed   []float64
	RawN      int
	RawMean   float64
	RawStdDev float64
	N         int
	Mean      float64
	StdDev    float64
	StdErr    float64
}

// SegmentFit is an ordinary least squares line over a subset of conditions.
type SegmentFit struct {
	Name      string
	Indices   []int
	X         []float64
	Y         []float64
	Slope     float64
	Intercept float64
	R2        float64
}

// ParticipantResult carries every stage output for one participant.
type ParticipantResult struct {
	ID         string
	File       string
	RawTrials  int
	Cleaned    CleanedParticipant
	Retained   []CleanTrial
	Conditions []ConditionSummary
	Fits       []SegmentFit
}

// Fit returns the named segment fit.
func (r ParticipantResult) Fit(name string) (SegmentFit, bool) {
	for _, f := range r.Fits {
		if f.Name == name {
			return f, true
		}
	}
	return SegmentFit{}, false
}

// RunRecord summarizes an archived analysis run.
type RunRecord struct {
	ID           string
	CreatedAt    time.Time
	InputDir     string
	DelayMs      float64
	ZScore       float64
	Significance float64
	Latency      string
	Participants []ParticipantFits
}

// ParticipantFits is the archived per-participant fit summary.
type ParticipantFits struct {
	ID         string
	Conditions int
	Fits       map[string]float64
}
