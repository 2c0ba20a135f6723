package helpers

import (
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func EscapeMarkdownV2(text string) string {
	charactersToEscape := []string{"\\", ".", "-", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "=", "|", "{", "}", "!"}

	for _, char := range charactersToEscape {
		text = strings.ReplaceAll(text, char, "\\"+char)
	}
	return text
}

func FormatPriceUS(price float64, escapeMarkdown bool) string {
	decimals := 6

	if price >= 1000 {
		decimals = 0
	} else if price > 1.2 {
		decimals = 2
	} else if price < 0.00001 {
		decimals = 8
	}

	p := message.NewPrinter(language.English)
	formatted := p.Sprintf("%.*f", decimals, price)

	if escapeMarkdown {
		return EscapeMarkdownV2(formatted)
	}
	return formatted
}

// FormatFixed renders v with exactly two decimals, e.g. 181.5 -> "181.50".
func FormatFixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatSigned is FormatFixed with an explicit sign: "+1.25", "-6.00".
func FormatSigned(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}

// FormatNumber renders a user supplied target without padding: 180, 5.5.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func FormatPercentage(v float64) string {
	return FormatNumber(v) + "%"
}

// FormatDate renders a timestamp relative to now, e.g. "3 hours ago".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}
