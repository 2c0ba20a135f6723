package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockwatch-telegram-bot/internal/types"
	"stockwatch-telegram-bot/lib/helpers"
	"stockwatch-telegram-bot/lib/translation"
)

type WatchStore interface {
	Add(ctx context.Context, ownerID int64, symbol string, target float64, kind types.Kind) (int64, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]types.Watch, error)
	DeleteByID(ctx context.Context, id, ownerID int64) (bool, error)
	ClearByOwner(ctx context.Context, ownerID int64) (int64, error)
}

type MarketData interface {
	Quote(ctx context.Context, symbol string) (*types.Quote, error)
	Candles(ctx context.Context, symbol string) ([]types.Candle, error)
}

type ChartRenderer interface {
	Render(symbol string, candles []types.Candle) ([]byte, error)
}

// Reply is a MarkdownV2 formatted answer, with an optional PNG attached.
type Reply struct {
	Text  string
	Image []byte
}

// Handler implements the chat commands on top of the watch store and the
// market data source.
type Handler struct {
	store    WatchStore
	market   MarketData
	charts   ChartRenderer
	cache    *chartCache
	location *time.Location
	now      func() time.Time
}

// NewHandler wires the command handler. charts may be nil, in which case
// price replies are sent as text only. A zero cacheTTL disables caching.
func NewHandler(store WatchStore, market MarketData, charts ChartRenderer, cacheTTL time.Duration, location *time.Location) *Handler {
	if location == nil {
		location = time.UTC
	}
	return &Handler{
		store:    store,
		market:   market,
		charts:   charts,
		cache:    newChartCache(cacheTTL),
		location: location,
		now:      time.Now,
	}
}

func CommandStart() string {
	return tr("🚀 Your personal stock watch bot is online!\nSend a ticker symbol to get the price and a chart.")
}

func CommandHelp() string {
	return tr("Usage:\n\nSend a symbol: AAPL / 00700.HK / 000001.SH\n\n" +
		"/add AAPL 180 up → alert when it rises above 180\n" +
		"/add 600519.SH 5% down → alert when it falls more than 5% today\n\n" +
		"/list /del 3 /clear")
}

func HelpButtonLabel() string {
	return translation.Translate("Help")
}

// tr translates msgID, escapes it for MarkdownV2 and then fills in args,
// which the caller must already have escaped.
func tr(msgID string, args ...interface{}) string {
	text := helpers.EscapeMarkdownV2(translation.Translate(msgID))
	if len(args) == 0 {
		return strings.ReplaceAll(text, "%%", "%")
	}
	return fmt.Sprintf(text, args...)
}

func bold(s string) string {
	return "*" + helpers.EscapeMarkdownV2(s) + "*"
}
