package stats

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/verte-zerg/rtscope/internal/model"
)

// participant builds a log where every trial is correct, fast and has
// an adjusted latency equal to the given value.
func participant(id string, levels []float64, values [][]float64) model.Participant {
	p := model.Participant{ID: id, File: id + "-run.csv"}
	row := 0
	for i, level := range levels {
		for _, v := range values[i] {
			row++
			p.Trials = append(p.Trials, model.Trial{
				Row:          row,
				Correct:      true,
				CorrectRaw:   "True",
				ReactionTime: v + DefaultDelayMs,
				Level:        level,
			})
		}
	}
	return p
}

func fourLevels(id string, base float64) model.Participant {
	return participant(id, []float64{2, 4, 8, 16}, [][]float64{
		{base, base, base},
		{base + 50, base + 50},
		{base + 100, base + 100, base + 100},
		{base + 80, base + 80},
	})
}

func TestAnalyzeSingleParticipant(t *testing.T) {
	results, err := Analyze(context.Background(), []model.Participant{fourLevels("P01", 500)}, DefaultAnalysis(), zap.NewNop())
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, 10, r.RawTrials)
	assert.Len(t, r.Retained, 10)
	require.Len(t, r.Conditions, 4)
	assert.Equal(t, []string{"2", "4", "8", "16"}, LevelLabels(r))

	left, ok := r.Fit(SegmentLeft)
	require.True(t, ok)
	assert.InDelta(t, 1.0, left.R2, 1e-12)
	right, ok := r.Fit(SegmentRight)
	require.True(t, ok)
	assert.InDelta(t, -20.0, right.Slope, 1e-9)
}

func TestAnalyzeKeepsInputOrderAcrossJobs(t *testing.T) {
	var participants []model.Participant
	for i := 0; i < 12; i++ {
		participants = append(participants, fourLevels(fmt.Sprintf("P%02d", i), 400+float64(i)))
	}
	cfg := DefaultAnalysis()
	cfg.Jobs = 4

	results, err := Analyze(context.Background(), participants, cfg, nil)
	require.NoError(t, err)
	require.Len(t, results, len(participants))
	for i, r := range results {
		assert.Equal(t, participants[i].ID, r.ID)
	}
}

func TestAnalyzeKeepGoing(t *testing.T) {
	bad := fourLevels("P02", 500)
	for i := range bad.Trials {
		bad.Trials[i].Correct = false
	}
	participants := []model.Participant{fourLevels("P01", 500), bad, fourLevels("P03", 520)}

	_, err := Analyze(context.Background(), participants, DefaultAnalysis(), zap.NewNop())
	require.ErrorIs(t, err, ErrNoTrials)
	assert.Contains(t, err.Error(), "P02")

	core, logs := observer.New(zap.WarnLevel)
	cfg := DefaultAnalysis()
	cfg.KeepGoing = true
	results, err := Analyze(context.Background(), participants, cfg, zap.New(core))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "P01", results[0].ID)
	assert.Equal(t, "P03", results[1].ID)

	skipped := logs.FilterMessage("skipping participant").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, "P02", skipped[0].ContextMap()["participant"])
}

func TestAnalyzeMissingLevelFailsEvenWhenKeepingGoing(t *testing.T) {
	short := participant("P04", []float64{2, 4, 8}, [][]float64{{1, 2}, {3, 4}, {5, 6}})
	cfg := DefaultAnalysis()
	cfg.KeepGoing = true
	_, err := Analyze(context.Background(), []model.Participant{short}, cfg, nil)
	require.ErrorIs(t, err, ErrSegmentIndex)
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "P04", pe.Participant)
}

func TestAnalyzeRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultAnalysis()
	cfg.OutlierK = 0
	_, err := Analyze(context.Background(), []model.Participant{fourLevels("P01", 500)}, cfg, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAnalyzeWarnsOnLevelOrderMismatch(t *testing.T) {
	swapped := participant("P02", []float64{4, 2, 8, 16}, [][]float64{
		{550, 550}, {500, 500}, {600, 600}, {580, 580},
	})
	core, logs := observer.New(zap.WarnLevel)
	_, err := Analyze(context.Background(), []model.Participant{fourLevels("P01", 500), swapped}, DefaultAnalysis(), zap.New(core))
	require.NoError(t, err)
	require.Equal(t, 1, logs.FilterMessage("condition order differs between participants").Len())
}

func TestLevelOrderMismatch(t *testing.T) {
	a := model.ParticipantResult{ID: "A", Conditions: []model.ConditionSummary{{Label: "2"}, {Label: "4"}}}
	b := model.ParticipantResult{ID: "B", Conditions: []model.ConditionSummary{{Label: "2"}, {Label: "4"}}}
	assert.Empty(t, LevelOrderMismatch([]model.ParticipantResult{a, b}))

	b.Conditions = b.Conditions[:1]
	assert.Equal(t, "A has [2 4], B has [2]", LevelOrderMismatch([]model.ParticipantResult{a, b}))
}
