package stats

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/verte-zerg/rtscope/internal/model"
)

// FormatR2 formats a coefficient of determination the way the analysis log always has:
// shortest round-trip digits, with integral values keeping a trailing ".0".
func FormatR2(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}

// SegmentLabel capitalizes a segment name for display.
func SegmentLabel(name string) string {
	if name == "" {
		return name
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// R2Line returns the one-line fit summary for a participant.
func R2Line(r model.ParticipantResult) string {
	parts := make([]string, 0, len(r.Fits)+1)
	parts = append(parts, "ParticipantID: "+r.ID)
	for _, f := range r.Fits {
		parts = append(parts, fmt.Sprintf("%s r^2: %s", SegmentLabel(f.Name), FormatR2(f.R2)))
	}
	return strings.Join(parts, "; ")
}

// RenderR2Lines prints one fit summary line per participant, in input order.
func RenderR2Lines(w io.Writer, results []model.ParticipantResult) error {
	for _, r := range results {
		if _, err := fmt.Fprintln(w, R2Line(r)); err != nil {
			return err
		}
	}
	return nil
}

// RenderSummary prints trial bookkeeping for every participant.
func RenderSummary(w io.Writer, results []model.ParticipantResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No participants analyzed.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Summary"); err != nil {
		return err
	}
	headers := []string{"Participant", "File", "Trials", "Incorrect", "Slow", "Outliers", "Retained"}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		outliers := 0
		for _, c := range r.Conditions {
			outliers += len(c.Removed)
		}
		rows = append(rows, []string{
			r.ID,
			r.File,
			strconv.Itoa(r.RawTrials),
			strconv.Itoa(r.Cleaned.DroppedIncorrect),
			strconv.Itoa(r.Cleaned.DroppedSlow),
			strconv.Itoa(outliers),
			strconv.Itoa(len(r.Retained)),
		})
	}
	return writeTable(w, headers, rows, map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true})
}

// RenderConditionTable prints the per-condition summaries of one participant.
// The CI column is the half-width z * SE.
func RenderConditionTable(w io.Writer, r model.ParticipantResult, z float64) error {
	if _, err := fmt.Fprintf(w, "Participant %s\n", r.ID); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Join(ConditionTableLines(r, z), "\n")); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// ConditionTableLines formats condition summaries as aligned text rows.
func ConditionTableLines(r model.ParticipantResult, z float64) []string {
	headers := []string{"Level", "N", "Removed", "Mean (ms)", "SD", "SE", "CI ±"}
	rows := make([][]string, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		rows = append(rows, []string{
			c.Label,
			strconv.Itoa(c.N),
			strconv.Itoa(len(c.Removed)),
			fmt.Sprintf("%.1f", c.Mean),
			fmt.Sprintf("%.1f", c.StdDev),
			fmt.Sprintf("%.2f", c.StdErr),
			fmt.Sprintf("%.2f", z*c.StdErr),
		})
	}
	return formatTable(headers, rows, map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true})
}

// FitTableLines formats segment fits as aligned text rows.
func FitTableLines(r model.ParticipantResult) []string {
	headers := []string{"Segment", "Levels", "Slope", "Intercept", "R²"}
	rows := make([][]string, 0, len(r.Fits))
	for _, f := range r.Fits {
		levels := make([]string, len(f.Indices))
		for i, idx := range f.Indices {
			levels[i] = r.Conditions[idx].Label
		}
		rows = append(rows, []string{
			SegmentLabel(f.Name),
			strings.Join(levels, ","),
			fmt.Sprintf("%.3f", f.Slope),
			fmt.Sprintf("%.1f", f.Intercept),
			fmt.Sprintf("%.4f", f.R2),
		})
	}
	return formatTable(headers, rows, map[int]bool{2: true, 3: true, 4: true})
}

// RenderMeansPlot draws every participant's condition means on the configured y range.
func RenderMeansPlot(w io.Writer, results []model.ParticipantResult, cfg model.PlotConfig, totalWidth, height int, useColor bool) error {
	series := make([]Series, 0, len(results))
	for _, r := range results {
		means := make([]float64, len(r.Conditions))
		for i, c := range r.Conditions {
			means[i] = c.Mean
		}
		series = append(series, Series{Name: r.ID, Values: means})
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	title := cfg.Title
	if len(results) > 0 {
		title = fmt.Sprintf("%s (%s: %s)", cfg.Title, cfg.XLabel, strings.Join(LevelLabels(results[0]), ", "))
	}
	return PlotSeriesWithColor(w, title, series, PlotRange{Min: cfg.YMin, Max: cfg.YMax}, width, height, useColor)
}

// RenderRuns lists archived runs, newest first as given.
func RenderRuns(w io.Writer, runs []model.RunRecord) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No archived runs.")
		return err
	}
	headers := []string{"ID", "Created", "Input", "Participants", "Latency", "Delay", "z"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.CreatedAt.Local().Format("2006-01-02 15:04"),
			run.InputDir,
			strconv.Itoa(len(run.Participants)),
			run.Latency,
			fmt.Sprintf("%.0f", run.DelayMs),
			fmt.Sprintf("%.2f", run.ZScore),
		})
	}
	return writeTable(w, headers, rows, map[int]bool{3: true, 5: true, 6: true})
}

// RenderRun prints one archived run with its per-participant fits.
func RenderRun(w io.Writer, run model.RunRecord) error {
	if _, err := fmt.Fprintf(w, "Run %s\nCreated: %s\nInput: %s\nLatency: %s, delay %.0f ms, z %.2f, significance %.2f\n\n",
		run.ID,
		run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		run.InputDir,
		run.Latency,
		run.DelayMs,
		run.ZScore,
		run.Significance,
	); err != nil {
		return err
	}
	var segments []string
	seen := map[string]struct{}{}
	for _, p := range run.Participants {
		for name := range p.Fits {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				segments = append(segments, name)
			}
		}
	}
	sort.Strings(segments)
	headers := []string{"Participant", "Conditions"}
	right := map[int]bool{1: true}
	for i, name := range segments {
		headers = append(headers, SegmentLabel(name)+" R²")
		right[i+2] = true
	}
	rows := make([][]string, 0, len(run.Participants))
	for _, p := range run.Participants {
		row := []string{p.ID, strconv.Itoa(p.Conditions)}
		for _, name := range segments {
			if v, ok := p.Fits[name]; ok {
				row = append(row, FormatR2(v))
			} else {
				row = append(row, "-")
			}
		}
		rows = append(rows, row)
	}
	return writeTable(w, headers, rows, right)
}

func writeTable(w io.Writer, headers []string, rows [][]string, rightAlign map[int]bool) error {
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
