package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/rtscope/internal/model"
)

// AnalyzeParticipant runs cleaning, aggregation and fitting for one participant.
func AnalyzeParticipant(p model.Participant, cfg model.AnalysisConfig) (model.ParticipantResult, error) {
	cleaned := Clean(p, cfg)
	conditions, retained, err := Aggregate(cleaned, cfg)
	if err != nil {
		return model.ParticipantResult{}, err
	}
	fits, err := FitSegments(conditions, cfg.Segments)
	if err != nil {
		var pe *PipelineError
		if errors.As(err, &pe) && pe.Participant == "" {
			pe.Participant = p.ID
		}
		return model.ParticipantResult{}, err
	}
	return model.ParticipantResult{
		ID:         p.ID,
		File:       p.File,
		RawTrials:  len(p.Trials),
		Cleaned:    cleaned,
		Retained:   retained,
		Conditions: conditions,
		Fits:       fits,
	}, nil
}

// Analyze processes participants concurrently, up to cfg.Jobs at a time.
// Results keep input order. With cfg.KeepGoing, participants that fail on
// their data are logged and left out; any other error aborts the run.
func Analyze(ctx context.Context, participants []model.Participant, cfg model.AnalysisConfig, logger *zap.Logger) ([]model.ParticipantResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ValidateAnalysis(cfg); err != nil {
		return nil, err
	}

	slots := make([]*model.ParticipantResult, len(participants))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Jobs)
	for i, p := range participants {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := AnalyzeParticipant(p, cfg)
			if err != nil {
				if cfg.KeepGoing && IsDataError(err) {
					logger.Warn("skipping participant", zap.String("participant", p.ID), zap.Error(err))
					return nil
				}
				return err
			}
			logger.Debug("participant analyzed",
				zap.String("participant", p.ID),
				zap.Int("trials", res.RawTrials),
				zap.Int("dropped_incorrect", res.Cleaned.DroppedIncorrect),
				zap.Int("dropped_slow", res.Cleaned.DroppedSlow),
				zap.Int("retained", len(res.Retained)),
				zap.Int("conditions", len(res.Conditions)),
			)
			slots[i] = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]model.ParticipantResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	if len(results) == 0 {
		return nil, pipelineErrorf(ErrNoTrials, "", "no participant could be analyzed")
	}
	if msg := LevelOrderMismatch(results); msg != "" {
		logger.Warn("condition order differs between participants", zap.String("detail", msg))
	}
	return results, nil
}

// LevelLabels returns the ordered condition labels of a result.
func LevelLabels(r model.ParticipantResult) []string {
	labels := make([]string, len(r.Conditions))
	for i, c := range r.Conditions {
		labels[i] = c.Label
	}
	return labels
}

// LevelOrderMismatch describes the first participant whose condition order differs
// from the first participant's. It returns "" when every order matches.
func LevelOrderMismatch(results []model.ParticipantResult) string {
	if len(results) < 2 {
		return ""
	}
	want := LevelLabels(results[0])
	for _, r := range results[1:] {
		got := LevelLabels(r)
		if !equalStrings(want, got) {
			return fmt.Sprintf("%s has [%s], %s has [%s]",
				results[0].ID, strings.Join(want, " "), r.ID, strings.Join(got, " "))
		}
	}
	return ""
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
