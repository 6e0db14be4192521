package trend

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrEmptyTrend is returned when asked to render a trend with no points.
var ErrEmptyTrend = errors.New("trend has no points")

const (
	defaultWidth  = 1000
	defaultHeight = 400
)

var (
	nowColor      = drawing.ColorFromHex("1f77b4")
	selectedColor = drawing.ColorFromHex("ff7f0e")
)

// Renderer draws trends as PNG line charts.
type Renderer struct {
	Width  int
	Height int
}

// NewRenderer returns a renderer with the default canvas size.
func NewRenderer() *Renderer {
	return &Renderer{Width: defaultWidth, Height: defaultHeight}
}

// RenderPNG writes the chart for t to w.
func (r *Renderer) RenderPNG(w io.Writer, t Trend) error {
	if t.Empty() {
		return ErrEmptyTrend
	}

	d := collect(t)

	series := []chart.Series{
		chart.TimeSeries{
			Name:    "PET now",
			Style:   chart.Style{StrokeColor: nowColor, StrokeWidth: 2, DotColor: nowColor, DotWidth: 3},
			XValues: d.nowX,
			YValues: d.nowY,
		},
	}
	if len(d.selX) > 0 {
		series = append(series, chart.TimeSeries{
			Name: "PET selected",
			Style: chart.Style{
				StrokeColor:     selectedColor,
				StrokeWidth:     2,
				StrokeDashArray: []float64{5, 5},
				DotColor:        selectedColor,
				DotWidth:        3,
			},
			XValues: d.selX,
			YValues: d.selY,
		})
	}
	if len(d.annotations) > 0 {
		series = append(series, chart.AnnotationSeries{Annotations: d.annotations})
	}

	xr, yr := ranges(slices.Concat(d.nowX, d.selX), slices.Concat(d.nowY, d.selY))
	graph := chart.Chart{
		Width:  r.Width,
		Height: r.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Time",
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02 15:04"),
			Range:          xr,
		},
		YAxis: chart.YAxis{
			Name:  "PET (°C)",
			Range: yr,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render trend chart: %w", err)
	}
	return nil
}

type chartData struct {
	nowX, selX  []time.Time
	nowY, selY  []float64
	annotations []chart.Value2
}

// collect splits points into the now and selected series. Weather labels sit
// on the selected point; a point without a selected time gets no label.
func collect(t Trend) chartData {
	var d chartData
	for _, p := range t.Points {
		d.nowX = append(d.nowX, p.Timestamp)
		d.nowY = append(d.nowY, p.PET)
		if p.SelectedTime == nil {
			continue
		}
		d.selX = append(d.selX, *p.SelectedTime)
		d.selY = append(d.selY, p.PETFuture)
		d.annotations = append(d.annotations, chart.Value2{
			XValue: chart.TimeToFloat64(*p.SelectedTime),
			YValue: p.PETFuture,
			Label:  strings.ReplaceAll(p.Annotation, "\n", " "),
		})
	}
	return d
}

// ranges pads the data extent so single-point trends still have a non-zero span.
func ranges(xs []time.Time, ys []float64) (*chart.ContinuousRange, *chart.ContinuousRange) {
	xMin, xMax := chart.TimeToFloat64(xs[0]), chart.TimeToFloat64(xs[0])
	for _, x := range xs[1:] {
		v := chart.TimeToFloat64(x)
		xMin, xMax = min(xMin, v), max(xMax, v)
	}
	yMin, yMax := ys[0], ys[0]
	for _, y := range ys[1:] {
		yMin, yMax = min(yMin, y), max(yMax, y)
	}

	xPad := (xMax - xMin) * 0.05
	if xPad == 0 {
		xPad = float64(time.Hour)
	}
	yPad := (yMax - yMin) * 0.1
	if yPad == 0 {
		yPad = 1
	}
	return &chart.ContinuousRange{Min: xMin - xPad, Max: xMax + xPad},
		&chart.ContinuousRange{Min: yMin - yPad, Max: yMax + yPad}
}
