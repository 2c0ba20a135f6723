package commands

import (
	"context"
	"regexp"
	"strings"

	"stockwatch-telegram-bot/internal/types"
	"stockwatch-telegram-bot/lib/helpers"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var querySymbolPattern = regexp.MustCompile(`^[A-Z0-9.\-]{2,12}$`)

// ParseSymbolQuery reports whether text is a price query: a bare upper-case
// symbol such as "AAPL" or "00700.HK", or "$symbol" in any case.
func ParseSymbolQuery(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "$") {
		fields := strings.Fields(text[1:])
		if len(fields) == 0 {
			return "", false
		}
		return strings.ToUpper(fields[0]), true
	}
	if querySymbolPattern.MatchString(text) {
		return text, true
	}
	return "", false
}

// CommandPrice answers a price query with the latest quote and, when enough
// history is available, a chart.
func (h *Handler) CommandPrice(ctx context.Context, symbol string) Reply {
	log.Debugf("processing price query for :%s", symbol)

	if cached, found := h.cache.get(symbol); found {
		log.Debugf("returning cached result for %s", symbol)
		return cached
	}

	quote, err := h.market.Quote(ctx, symbol)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			log.Debugf("price query for unknown symbol %s: %v", symbol, err)
			return Reply{Text: tr("❌ Invalid symbol")}
		}
		log.Errorf("price query for %s failed: %v", symbol, err)
		return Reply{Text: tr("⚠️ Price temporarily unavailable, please try again later")}
	}

	reply := Reply{Text: h.formatQuote(quote)}
	if h.charts == nil {
		return reply
	}

	candles, err := h.market.Candles(ctx, symbol)
	if err != nil {
		log.Errorf("could not fetch candles for %s: %v", symbol, err)
		return reply
	}
	image, err := h.charts.Render(symbol, candles)
	if err != nil {
		log.Debugf("no chart for %s: %v", symbol, err)
		return reply
	}

	reply.Image = image
	h.cache.set(symbol, reply)
	return reply
}

func (h *Handler) formatQuote(q *types.Quote) string {
	sample := q.Sample()
	change := sample.Last - sample.Previous

	at := q.Time
	if at.IsZero() {
		at = h.now()
	}

	name := q.Name
	if name == "" {
		name = q.Symbol
	}

	return tr("%s (%s)\nLast: %s  Change: %s (%s%%)\nTime: %s",
		bold(name),
		helpers.EscapeMarkdownV2(q.Symbol),
		bold(helpers.FormatFixed(sample.Last)),
		helpers.EscapeMarkdownV2(helpers.FormatSigned(change)),
		helpers.EscapeMarkdownV2(helpers.FormatSigned(sample.PercentChange())),
		helpers.EscapeMarkdownV2(at.In(h.location).Format("01-02 15:04")),
	)
}
