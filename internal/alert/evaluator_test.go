package alert

import (
	"strings"
	"testing"

	"stockwatch-telegram-bot/internal/types"
)

func TestEvaluatePriceBoundaries(t *testing.T) {
	tests := []struct {
		name string
		kind types.Kind
		last float64
		want bool
	}{
		{"above below target", types.KindPriceAbove, 179.99, false},
		{"above at target", types.KindPriceAbove, 180, true},
		{"above over target", types.KindPriceAbove, 180.01, true},
		{"below over target", types.KindPriceBelow, 180.01, false},
		{"below at target", types.KindPriceBelow, 180, true},
		{"below under target", types.KindPriceBelow, 179.99, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := types.Watch{Symbol: "AAPL", Target: 180, Kind: tt.kind}
			_, got := Evaluate(w, types.PriceSample{Last: tt.last, Previous: 170})
			if got != tt.want {
				t.Fatalf("Evaluate(last=%v) = %v, want %v", tt.last, got, tt.want)
			}
		})
	}
}

func TestEvaluatePercentMatchesFormula(t *testing.T) {
	previous := []float64{50, 100, 200, 1234.5}
	changes := []float64{-12, -6, -5, -3, -0.5, 0, 0.5, 3, 5, 6, 12}
	targets := []float64{0, 3, 5, 6}

	for _, prev := range previous {
		for _, change := range changes {
			last := prev * (1 + change/100)
			pct := (last - prev) / prev * 100
			for _, target := range targets {
				up := types.Watch{Symbol: "X", Target: target, Kind: types.KindPctChangeAbove}
				if _, got := Evaluate(up, types.PriceSample{Last: last, Previous: prev}); got != (pct >= target) {
					t.Fatalf("pct_up prev=%v last=%v target=%v: got %v", prev, last, target, got)
				}
				down := types.Watch{Symbol: "X", Target: target, Kind: types.KindPctChangeBelow}
				if _, got := Evaluate(down, types.PriceSample{Last: last, Previous: prev}); got != (pct <= -target) {
					t.Fatalf("pct_down prev=%v last=%v target=%v: got %v", prev, last, target, got)
				}
			}
		}
	}
}

func TestEvaluatePercentWithoutPreviousNeverTriggers(t *testing.T) {
	for _, kind := range []types.Kind{types.KindPctChangeAbove, types.KindPctChangeBelow} {
		w := types.Watch{Symbol: "X", Target: 0, Kind: kind}
		if _, got := Evaluate(w, types.PriceSample{Last: 10, Previous: 0}); got {
			t.Fatalf("%s triggered without a previous close", kind)
		}
	}
}

func TestEvaluateFlatSample(t *testing.T) {
	w := types.Watch{Symbol: "X", Target: 0, Kind: types.KindPctChangeAbove}
	trigger, ok := Evaluate(w, types.PriceSample{Last: 10, Previous: 10})
	if !ok {
		t.Fatal("expected a zero target to fire on a flat sample")
	}
	if trigger.Value != 0 {
		t.Fatalf("expected 0 percent, got %v", trigger.Value)
	}
}

func TestEvaluateUnknownKind(t *testing.T) {
	if _, ok := Evaluate(types.Watch{Kind: "sideways", Target: 1}, types.PriceSample{Last: 5, Previous: 1}); ok {
		t.Fatal("unknown kind must not trigger")
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	w := types.Watch{ID: 1, Symbol: "AAPL", Target: 180, Kind: types.KindPriceAbove}
	s := types.PriceSample{Last: 181.5, Previous: 179}

	first, ok1 := Evaluate(w, s)
	second, ok2 := Evaluate(w, s)
	if ok1 != ok2 || first != second {
		t.Fatalf("expected identical results, got %+v/%v and %+v/%v", first, ok1, second, ok2)
	}
}

func TestEvaluateScenarioAMessage(t *testing.T) {
	w := types.Watch{Symbol: "AAPL", Target: 180, Kind: types.KindPriceAbove}
	trigger, ok := Evaluate(w, types.PriceSample{Last: 181.50, Previous: 179.00})
	if !ok {
		t.Fatal("expected trigger")
	}
	for _, want := range []string{"AAPL", "180", "181.50", "🚀"} {
		if !strings.Contains(trigger.Text, want) {
			t.Fatalf("expected %q in message %q", want, trigger.Text)
		}
	}
	if trigger.Value != 181.5 || trigger.Emoji != "🚀" {
		t.Fatalf("unexpected trigger %+v", trigger)
	}
}

func TestEvaluateScenarioBAndC(t *testing.T) {
	w := types.Watch{Symbol: "600519.SH", Target: 5, Kind: types.KindPctChangeBelow}

	trigger, ok := Evaluate(w, types.PriceSample{Last: 94, Previous: 100})
	if !ok {
		t.Fatal("expected -6% to fire a 5% drop watch")
	}
	if !strings.Contains(trigger.Text, "-6.00%") || trigger.Emoji != "🔴" {
		t.Fatalf("unexpected message %q", trigger.Text)
	}

	if _, ok := Evaluate(w, types.PriceSample{Last: 97, Previous: 100}); ok {
		t.Fatal("expected -3% not to fire a 5% drop watch")
	}
}

func TestEvaluateMessages(t *testing.T) {
	tests := []struct {
		kind   types.Kind
		sample types.PriceSample
		want   []string
	}{
		{types.KindPriceBelow, types.PriceSample{Last: 9.5, Previous: 11}, []string{"💥", "fell below 10", "9.50"}},
		{types.KindPctChangeAbove, types.PriceSample{Last: 110, Previous: 100}, []string{"🟢", "up more than 10%", "+10.00%"}},
	}
	for _, tt := range tests {
		trigger, ok := Evaluate(types.Watch{Symbol: "X", Target: 10, Kind: tt.kind}, tt.sample)
		if !ok {
			t.Fatalf("%s: expected trigger", tt.kind)
		}
		for _, want := range tt.want {
			if !strings.Contains(trigger.Text, want) {
				t.Fatalf("%s: expected %q in %q", tt.kind, want, trigger.Text)
			}
		}
	}
}
