package alert

import (
	"stockwatch-telegram-bot/internal/types"
	"stockwatch-telegram-bot/lib/helpers"
	"stockwatch-telegram-bot/lib/translation"
)

// Trigger is the outcome of a watch whose condition held for a sample.
type Trigger struct {
	Watch types.Watch
	Emoji string
	// Value is the last price for price watches and the percent change for
	// percent watches.
	Value float64
	Text  string
}

var emojis = map[types.Kind]string{
	types.KindPriceAbove:     "🚀",
	types.KindPriceBelow:     "💥",
	types.KindPctChangeAbove: "🟢",
	types.KindPctChangeBelow: "🔴",
}

// Evaluate matches a watch against a price sample. It has no side effects,
// so the same pair always yields the same result.
func Evaluate(w types.Watch, s types.PriceSample) (Trigger, bool) {
	switch w.Kind {
	case types.KindPriceAbove:
		if s.Last < w.Target {
			return Trigger{}, false
		}
		return priceTrigger(w, s.Last, "%s %s rose above %s\nCurrent price %s"), true

	case types.KindPriceBelow:
		if s.Last > w.Target {
			return Trigger{}, false
		}
		return priceTrigger(w, s.Last, "%s %s fell below %s\nCurrent price %s"), true

	case types.KindPctChangeAbove:
		if s.Previous == 0 {
			return Trigger{}, false
		}
		pct := s.PercentChange()
		if pct < w.Target {
			return Trigger{}, false
		}
		return percentTrigger(w, pct, "%s %s is up more than %s%% today\nNow %s%%"), true

	case types.KindPctChangeBelow:
		if s.Previous == 0 {
			return Trigger{}, false
		}
		pct := s.PercentChange()
		if pct > -w.Target {
			return Trigger{}, false
		}
		return percentTrigger(w, pct, "%s %s is down more than %s%% today\nNow %s%%"), true
	}

	return Trigger{}, false
}

func priceTrigger(w types.Watch, last float64, format string) Trigger {
	emoji := emojis[w.Kind]
	return Trigger{
		Watch: w,
		Emoji: emoji,
		Value: last,
		Text:  translation.Translate(format, emoji, w.Symbol, helpers.FormatNumber(w.Target), helpers.FormatFixed(last)),
	}
}

func percentTrigger(w types.Watch, pct float64, format string) Trigger {
	emoji := emojis[w.Kind]
	return Trigger{
		Watch: w,
		Emoji: emoji,
		Value: pct,
		Text:  translation.Translate(format, emoji, w.Symbol, helpers.FormatNumber(w.Target), helpers.FormatSigned(pct)),
	}
}
