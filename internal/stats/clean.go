package stats

import "github.com/verte-zerg/rtscope/internal/model"

// Clean drops incorrect and too-slow trials and applies the device delay.
// A trial is too slow when its unadjusted latency is at or above cfg.MaxRTMs.
func Clean(p model.Participant, cfg model.AnalysisConfig) model.CleanedParticipant {
	out := model.CleanedParticipant{
		ID:     p.ID,
		File:   p.File,
		Trials: make([]model.CleanTrial, 0, len(p.Trials)),
	}
	for _, t := range p.Trials {
		if !t.Correct {
			out.DroppedIncorrect++
			continue
		}
		if t.Elapsed() >= cfg.MaxRTMs {
			out.DroppedSlow++
			continue
		}
		out.Trials = append(out.Trials, model.CleanTrial{
			Trial:      t,
			AdjustedRT: t.ReactionTime - cfg.DelayMs,
		})
	}
	return out
}

// Latency returns the dependent variable for a cleaned trial.
func Latency(t model.CleanTrial, basis string) float64 {
	if basis == model.LatencyRaw {
		return t.ReactionTime - t.OnsetTime
	}
	return t.AdjustedRT - t.OnsetTime
}
