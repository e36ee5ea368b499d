// Package chart renders the per-participant condition means as an image.
package chart

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/verte-zerg/rtscope/internal/model"
	"github.com/verte-zerg/rtscope/internal/stats"
)

const (
	dotRadius    = 4.0
	capHalfWidth = 5
	barWidth     = 1.5
	fitLineWidth = 2.0
	axisPadding  = 0.5
)

// palette is an evenly spaced HUSL hue wheel, cycled per participant.
var palette = []string{
	"f77189", "ce9032", "97a431", "32b166",
	"36ada4", "39a7d0", "a48cf4", "f561dd",
}

// Color returns the series color for the participant at index i.
func Color(i int) drawing.Color {
	return drawing.ColorFromHex(palette[i%len(palette)])
}

// Build assembles the chart: one series per participant with mean dots,
// z * SE error bars and the fitted segment lines. X positions are 1-based
// condition ranks labelled with the first participant's levels.
func Build(results []model.ParticipantResult, cfg model.PlotConfig, z float64) (gochart.Chart, error) {
	if len(results) == 0 {
		return gochart.Chart{}, fmt.Errorf("no results to plot")
	}

	maxConditions := 0
	series := make([]gochart.Series, 0, len(results))
	for i, r := range results {
		if len(r.Conditions) > maxConditions {
			maxConditions = len(r.Conditions)
		}
		series = append(series, newParticipantSeries(r, z, Color(i)))
	}

	labels := stats.LevelLabels(results[0])
	ticks := make([]gochart.Tick, 0, maxConditions)
	for i := 0; i < maxConditions; i++ {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		ticks = append(ticks, gochart.Tick{Value: float64(i + 1), Label: label})
	}

	ch := gochart.Chart{
		Title:  cfg.Title,
		Width:  cfg.Width,
		Height: cfg.Height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 14, Left: 16, Right: 12, Bottom: 16},
		},
		XAxis: gochart.XAxis{
			Name:  cfg.XLabel,
			Ticks: ticks,
			Range: &gochart.ContinuousRange{Min: 1 - axisPadding, Max: float64(maxConditions) + axisPadding},
		},
		YAxis: gochart.YAxis{
			Name:  cfg.YLabel,
			Range: &gochart.ContinuousRange{Min: cfg.YMin, Max: cfg.YMax},
		},
		Series: series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	return ch, nil
}

// Render writes the chart to w. format is "png" or "svg".
func Render(w io.Writer, format string, results []model.ParticipantResult, cfg model.PlotConfig, z float64) error {
	ch, err := Build(results, cfg, z)
	if err != nil {
		return err
	}
	provider := gochart.PNG
	switch strings.ToLower(format) {
	case "", "png":
	case "svg":
		provider = gochart.SVG
	default:
		return fmt.Errorf("unsupported chart format %q", format)
	}
	if err := ch.Render(provider, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// WriteFile renders the chart to path, choosing the format from its extension.
func WriteFile(path string, results []model.ParticipantResult, cfg model.PlotConfig, z float64) (err error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format != "svg" {
		format = "png"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create chart dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close chart file: %w", cerr)
		}
	}()
	return Render(file, format, results, cfg, z)
}
