package chart

import (
	"math"

	"stockwatch-telegram-bot/internal/types"

	"github.com/pkg/errors"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	colBull = drawing.Color{R: 38, G: 166, B: 91, A: 255}
	colBear = drawing.Color{R: 214, G: 48, B: 49, A: 255}
)

// candleSeries draws one body per bar from open to close and a wick from
// low to high. Bars that closed at or above their open are green.
type candleSeries struct {
	name    string
	candles []types.Candle
}

func (cs candleSeries) GetName() string { return cs.name }

func (cs candleSeries) GetYAxis() gochart.YAxisType { return gochart.YAxisPrimary }

func (cs candleSeries) GetStyle() gochart.Style {
	return gochart.Style{StrokeColor: colBull, FillColor: colBull}
}

func (cs candleSeries) Len() int { return len(cs.candles) }

// GetBoundedValues lets the chart size its x range from the bars.
func (cs candleSeries) GetBoundedValues(index int) (x, low, high float64) {
	c := cs.candles[index]
	return gochart.TimeToFloat64(c.Time), c.Low, c.High
}

func (cs candleSeries) Validate() error {
	if len(cs.candles) == 0 {
		return errors.New("candle series has no bars")
	}
	return nil
}

func (cs candleSeries) Render(r gochart.Renderer, canvasBox gochart.Box, xrange, yrange gochart.Range, _ gochart.Style) {
	left, bottom := canvasBox.Left, canvasBox.Bottom

	bodyWidth := int(float64(canvasBox.Width()) / float64(len(cs.candles)) * 0.6)
	if bodyWidth < 1 {
		bodyWidth = 1
	}

	for _, c := range cs.candles {
		x := left + xrange.Translate(gochart.TimeToFloat64(c.Time))
		highY := bottom - yrange.Translate(c.High)
		lowY := bottom - yrange.Translate(c.Low)

		color := colBull
		if c.Close < c.Open {
			color = colBear
		}

		r.SetStrokeColor(color)
		r.SetStrokeWidth(1)
		r.MoveTo(x, highY)
		r.LineTo(x, lowY)
		r.Stroke()

		openY := bottom - yrange.Translate(c.Open)
		closeY := bottom - yrange.Translate(c.Close)
		top, base := openY, closeY
		if top > base {
			top, base = base, top
		}
		if base-top < 2 {
			base = top + 2
		}

		x0, x1 := x-bodyWidth/2, x+bodyWidth/2+1
		r.SetFillColor(color)
		r.MoveTo(x0, top)
		r.LineTo(x1, top)
		r.LineTo(x1, base)
		r.LineTo(x0, base)
		r.LineTo(x0, top)
		r.Close()
		r.Fill()
	}
}

// fillOHLC repairs bars whose open, high or low are missing or inconsistent
// with the close so every bar can be drawn.
func fillOHLC(c types.Candle) types.Candle {
	if c.Open <= 0 || math.IsNaN(c.Open) || math.IsInf(c.Open, 0) {
		c.Open = c.Close
	}
	if math.IsNaN(c.High) || math.IsInf(c.High, 0) || c.High < math.Max(c.Open, c.Close) {
		c.High = math.Max(c.Open, c.Close)
	}
	if math.IsNaN(c.Low) || c.Low <= 0 || c.Low > math.Min(c.Open, c.Close) {
		c.Low = math.Min(c.Open, c.Close)
	}
	return c
}
