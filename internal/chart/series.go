package chart

import (
	"fmt"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/verte-zerg/rtscope/internal/model"
	"github.com/verte-zerg/rtscope/internal/stats"
)

// participantSeries draws one participant: a dot per condition mean with a
// capped error bar, and a straight line over each fitted segment.
type participantSeries struct {
	name  string
	style gochart.Style
	xs    []float64
	means []float64
	errs  []float64
	fits  []model.SegmentFit
}

var (
	_ gochart.Series         = participantSeries{}
	_ gochart.ValuesProvider = participantSeries{}
)

func newParticipantSeries(r model.ParticipantResult, z float64, color drawing.Color) participantSeries {
	s := participantSeries{
		name: r.ID,
		style: gochart.Style{
			StrokeColor: color,
			StrokeWidth: fitLineWidth,
			DotColor:    color,
			DotWidth:    dotRadius,
		},
		fits: r.Fits,
	}
	for i, c := range r.Conditions {
		s.xs = append(s.xs, float64(i+1))
		s.means = append(s.means, c.Mean)
		s.errs = append(s.errs, z*c.StdErr)
	}
	return s
}

func (s participantSeries) GetName() string { return s.name }
func (s participantSeries) GetStyle() gochart.Style { return s.style }
func (s participantSeries) GetYAxis() gochart.YAxisType { return gochart.YAxisPrimary }
func (s participantSeries) Len() int { return len(s.xs) }
func (s participantSeries) GetValues(i int) (x, y float64) { return s.xs[i], s.means[i] }

func (s participantSeries) Validate() error {
	if len(s.xs) == 0 {
		return fmt.Errorf("series %s has no conditions", s.name)
	}
	return nil
}

func (s participantSeries) Render(r gochart.Renderer, canvasBox gochart.Box, xrange, yrange gochart.Range, defaults gochart.Style) {
	style := s.style.InheritFrom(defaults)
	color := style.GetStrokeColor()
	px := func(v float64) int { return canvasBox.Left + xrange.Translate(v) }
	py := func(v float64) int { return canvasBox.Bottom - yrange.Translate(v) }

	r.SetStrokeColor(color)
	r.SetStrokeWidth(barWidth)
	for i, x := range s.xs {
		if s.errs[i] <= 0 {
			continue
		}
		cx := px(x)
		lo, hi := py(s.means[i]-s.errs[i]), py(s.means[i]+s.errs[i])
		r.MoveTo(cx, lo)
		r.LineTo(cx, hi)
		r.MoveTo(cx-capHalfWidth, lo)
		r.LineTo(cx+capHalfWidth, lo)
		r.MoveTo(cx-capHalfWidth, hi)
		r.LineTo(cx+capHalfWidth, hi)
		r.Stroke()
	}

	r.SetStrokeWidth(style.StrokeWidth)
	for _, fit := range s.fits {
		if len(fit.X) < 2 {
			continue
		}
		x0, x1 := fit.X[0], fit.X[len(fit.X)-1]
		r.MoveTo(px(x0), py(stats.Predict(fit, x0)))
		r.LineTo(px(x1), py(stats.Predict(fit, x1)))
		r.Stroke()
	}

	r.SetFillColor(style.DotColor)
	r.SetStrokeColor(style.DotColor)
	r.SetStrokeWidth(1)
	for i, x := range s.xs {
		r.Circle(style.DotWidth, px(x), py(s.means[i]))
		r.FillStroke()
	}
}
