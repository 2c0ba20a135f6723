package chart

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"time"

	"stockwatch-telegram-bot/internal/types"
	"stockwatch-telegram-bot/lib/helpers"

	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	defaultChartWidth  = 1200
	defaultChartHeight = 720
	maxChartCandles    = 120
)

var ErrNotEnoughData = errors.New("need at least 2 candles to render chart")

var (
	colBackground = drawing.Color{R: 20, G: 20, B: 24, A: 255}
	colCanvas     = drawing.Color{R: 30, G: 30, B: 36, A: 255}
	colText       = drawing.Color{R: 220, G: 220, B: 220, A: 255}
	colGrid       = drawing.Color{R: 100, G: 100, B: 100, A: 77}
	colMA5        = drawing.ColorFromHex("FFA500")
	colMA20       = drawing.ColorFromHex("00BFFF")
)

// Renderer draws daily price charts. It holds the parsed font so repeated
// renders don't parse it again.
type Renderer struct {
	font *truetype.Font
}

func NewRenderer() (*Renderer, error) {
	font, err := gochart.GetDefaultFont()
	if err != nil {
		return nil, errors.Wrap(err, "could not load chart font")
	}
	return &Renderer{font: font}, nil
}

// Render returns a PNG candlestick chart with the 5 and 20 bar moving
// averages of the close.
func (r *Renderer) Render(symbol string, candles []types.Candle) ([]byte, error) {
	series := normalizeCandles(candles)
	if len(series) < 2 {
		return nil, ErrNotEnoughData
	}
	if len(series) > maxChartCandles {
		series = series[len(series)-maxChartCandles:]
	}

	times := make([]time.Time, len(series))
	closes := make([]float64, len(series))
	for i, c := range series {
		times[i] = c.Time
		closes[i] = c.Close
	}

	// feeds the moving averages, it is not drawn itself
	closeSeries := gochart.TimeSeries{
		Name:    "Close",
		XValues: times,
		YValues: closes,
	}

	plotted := []gochart.Series{candleSeries{name: symbol, candles: series}}
	if len(series) >= 5 {
		plotted = append(plotted, gochart.SMASeries{
			Name:        "MA5",
			Style:       gochart.Style{StrokeColor: colMA5, StrokeWidth: 1.3},
			Period:      5,
			InnerSeries: closeSeries,
		})
	}
	if len(series) >= 20 {
		plotted = append(plotted, gochart.SMASeries{
			Name:        "MA20",
			Style:       gochart.Style{StrokeColor: colMA20, StrokeWidth: 1.3},
			Period:      20,
			InnerSeries: closeSeries,
		})
	}

	minPrice, maxPrice := priceBounds(series)
	padding := (maxPrice - minPrice) * 0.1
	if padding == 0 {
		padding = math.Max(math.Abs(maxPrice)*0.01, 0.01)
	}

	axisStyle := gochart.Style{FontColor: colText, StrokeColor: colText, FontSize: 10}
	graph := gochart.Chart{
		Title:      fmt.Sprintf("%s  last: %s", symbol, helpers.FormatFixed(closes[len(closes)-1])),
		TitleStyle: gochart.Style{FontColor: colText, FontSize: 16},
		Width:      defaultChartWidth,
		Height:     defaultChartHeight,
		Font:       r.font,
		Background: gochart.Style{
			FillColor: colBackground,
			Padding:   gochart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas: gochart.Style{FillColor: colCanvas},
		XAxis: gochart.XAxis{
			Style:          axisStyle,
			ValueFormatter: gochart.TimeValueFormatterWithFormat("01-02"),
			GridMajorStyle: gochart.Style{StrokeColor: colGrid, StrokeWidth: 1},
		},
		YAxis: gochart.YAxis{
			Style: axisStyle,
			Range: &gochart.ContinuousRange{
				Min: minPrice - padding,
				Max: maxPrice + padding,
			},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return helpers.FormatPriceUS(f, false)
				}
				return ""
			},
			GridMajorStyle: gochart.Style{StrokeColor: colGrid, StrokeWidth: 1},
		},
		Series: plotted,
	}
	graph.Elements = []gochart.Renderable{
		gochart.Legend(&graph, gochart.Style{FillColor: colCanvas, FontColor: colText, StrokeColor: colGrid}),
	}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, errors.Wrapf(err, "render chart for %s", symbol)
	}
	return buf.Bytes(), nil
}

func normalizeCandles(in []types.Candle) []types.Candle {
	out := make([]types.Candle, 0, len(in))
	for _, c := range in {
		if c.Time.IsZero() || math.IsNaN(c.Close) || math.IsInf(c.Close, 0) {
			continue
		}
		out = append(out, fillOHLC(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// priceBounds spans every wick so no bar is clipped.
func priceBounds(candles []types.Candle) (min, max float64) {
	if len(candles) == 0 {
		return 0, 1
	}

	min, max = candles[0].Low, candles[0].High
	for _, c := range candles {
		if c.Low < min {
			min = c.Low
		}
		if c.High > max {
			max = c.High
		}
	}
	return min, max
}
