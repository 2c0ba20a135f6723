package chart

import (
	"bytes"
	"math"
	"testing"
	"time"

	"stockwatch-telegram-bot/internal/types"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func buildTestCandles(count int) []types.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.Candle, 0, count)
	price := 180.0
	for i := 0; i < count; i++ {
		step := float64((i%7)-3) * 1.5
		open := price
		close := price + step
		out = append(out, types.Candle{
			Time:  base.AddDate(0, 0, i),
			Open:  open,
			High:  maxFloat(open, close) + 1,
			Low:   minFloat(open, close) - 1,
			Close: close,
		})
		price = close
	}
	return out
}

func TestRender(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	for _, n := range []int{2, 10, 30, 200} {
		img, err := renderer.Render("AAPL", buildTestCandles(n))
		if err != nil {
			t.Fatalf("render %d candles: %v", n, err)
		}
		if !bytes.HasPrefix(img, pngMagic) {
			t.Fatalf("expected PNG output for %d candles", n)
		}
	}
}

func TestRenderFlatSeries(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	candles := buildTestCandles(5)
	for i := range candles {
		candles[i].Close = 100
	}
	if _, err := renderer.Render("FLAT", candles); err != nil {
		t.Fatalf("expected flat series to render, got %v", err)
	}
}

func TestRenderNeedsTwoCandles(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if _, err := renderer.Render("AAPL", buildTestCandles(1)); err != ErrNotEnoughData {
		t.Fatalf("expected ErrNotEnoughData, got %v", err)
	}
}

func TestNormalizeCandlesSorts(t *testing.T) {
	candles := buildTestCandles(3)
	candles[0], candles[2] = candles[2], candles[0]
	candles = append(candles, types.Candle{})

	out := normalizeCandles(candles)
	if len(out) != 3 {
		t.Fatalf("expected zero-time candle to be dropped, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].Time.Before(out[i-1].Time) {
			t.Fatal("expected candles sorted by time")
		}
	}
}

func TestRenderMixedCandles(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	candles := []types.Candle{
		{Time: base, Open: 100, High: 104, Low: 99, Close: 103},
		{Time: base.AddDate(0, 0, 1), Open: 103, High: 103.5, Low: 97, Close: 98},
		{Time: base.AddDate(0, 0, 2), Open: 98, High: 98, Low: 98, Close: 98},
		{Time: base.AddDate(0, 0, 3), Open: 98, High: 106, Low: 97.5, Close: 105},
		{Time: base.AddDate(0, 0, 4), Open: 105, High: 105.2, Low: 100, Close: 101},
		{Time: base.AddDate(0, 0, 5), Close: 102},
	}

	img, err := renderer.Render("600519.SH", candles)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Fatal("expected PNG output")
	}
}

func TestFillOHLC(t *testing.T) {
	tests := []struct {
		name string
		in   types.Candle
		want types.Candle
	}{
		{"complete bar untouched", types.Candle{Open: 10, High: 12, Low: 9, Close: 11}, types.Candle{Open: 10, High: 12, Low: 9, Close: 11}},
		{"close only", types.Candle{Close: 11}, types.Candle{Open: 11, High: 11, Low: 11, Close: 11}},
		{"wick inside body", types.Candle{Open: 10, High: 10.5, Low: 10.5, Close: 12}, types.Candle{Open: 10, High: 12, Low: 10, Close: 12}},
		{"infinite high", types.Candle{Open: 10, High: math.Inf(1), Low: 9, Close: 11}, types.Candle{Open: 10, High: 11, Low: 9, Close: 11}},
	}
	for _, tt := range tests {
		if got := fillOHLC(tt.in); got != tt.want {
			t.Fatalf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestPriceBoundsSpanWicks(t *testing.T) {
	candles := normalizeCandles([]types.Candle{
		{Time: time.Unix(1, 0), Open: 10, High: 15, Low: 8, Close: 11},
		{Time: time.Unix(2, 0), Open: 11, High: 12, Low: 5, Close: 9},
	})
	min, max := priceBounds(candles)
	if min != 5 || max != 15 {
		t.Fatalf("expected bounds 5..15, got %v..%v", min, max)
	}

	cs := candleSeries{candles: candles}
	if cs.Len() != 2 {
		t.Fatalf("unexpected length %d", cs.Len())
	}
	if _, low, high := cs.GetBoundedValues(1); low != 5 || high != 12 {
		t.Fatalf("unexpected bounded values %v..%v", low, high)
	}
	if err := (candleSeries{}).Validate(); err == nil {
		t.Fatal("expected an empty series to fail validation")
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
