package price

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stockwatch-telegram-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const userAgent = "Mozilla/5.0 (compatible; stockwatch-telegram-bot)"

// Yahoo reads daily bars from the Yahoo Finance chart endpoint. Symbols use
// Yahoo's notation: AAPL, 00700.HK, 600519.SS and so on.
type Yahoo struct {
	baseURL    string
	chartRange string
	client     *http.Client
}

func NewYahoo(baseURL, chartRange string, client *http.Client) *Yahoo {
	if client == nil {
		client = http.DefaultClient
	}
	if chartRange == "" {
		chartRange = "1mo"
	}
	return &Yahoo{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chartRange: chartRange,
		client:     client,
	}
}

func (y *Yahoo) Quote(ctx context.Context, symbol string) (*types.Quote, error) {
	result, err := y.chart(ctx, symbol, "5d")
	if err != nil {
		return nil, err
	}

	candles := parseCandles(result)
	if len(candles) == 0 {
		return nil, errors.Wrapf(types.ErrNotFound, "no bars for %s", symbol)
	}

	last := candles[len(candles)-1]
	previous := last.Close
	if len(candles) > 1 {
		previous = candles[len(candles)-2].Close
	}

	meta := result.Get("meta")
	name := meta.Get("longName").String()
	if name == "" {
		name = meta.Get("shortName").String()
	}
	if name == "" {
		name = symbol
	}

	at := last.Time
	if ts := meta.Get("regularMarketTime").Int(); ts > 0 {
		at = time.Unix(ts, 0)
	}

	return &types.Quote{
		Symbol:   symbol,
		Name:     name,
		Last:     last.Close,
		Previous: previous,
		Time:     at,
	}, nil
}

func (y *Yahoo) Candles(ctx context.Context, symbol string) ([]types.Candle, error) {
	result, err := y.chart(ctx, symbol, y.chartRange)
	if err != nil {
		return nil, err
	}
	return parseCandles(result), nil
}

func (y *Yahoo) chart(ctx context.Context, symbol, rng string) (gjson.Result, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d",
		y.baseURL, url.PathEscape(symbol), url.QueryEscape(rng))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gjson.Result{}, errors.Wrap(err, "could not build chart request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		return gjson.Result{}, errors.Wrapf(types.ErrTransientUnavailable, "chart request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, errors.Wrapf(types.ErrTransientUnavailable, "read chart body: %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return gjson.Result{}, errors.Wrapf(types.ErrNotFound, "yahoo: %s", symbol)
	case resp.StatusCode != http.StatusOK:
		return gjson.Result{}, errors.Wrapf(types.ErrTransientUnavailable, "yahoo: status %d", resp.StatusCode)
	case !gjson.ValidBytes(body):
		return gjson.Result{}, errors.Wrap(types.ErrTransientUnavailable, "yahoo: malformed response")
	}

	doc := gjson.ParseBytes(body)
	if code := doc.Get("chart.error.code").String(); code != "" {
		if strings.EqualFold(code, "Not Found") {
			return gjson.Result{}, errors.Wrapf(types.ErrNotFound, "yahoo: %s", symbol)
		}
		return gjson.Result{}, errors.Wrapf(types.ErrTransientUnavailable, "yahoo: %s", code)
	}

	result := doc.Get("chart.result.0")
	if !result.Exists() {
		return gjson.Result{}, errors.Wrapf(types.ErrNotFound, "yahoo: no result for %s", symbol)
	}
	return result, nil
}

// parseCandles zips the timestamp and OHLC arrays, skipping bars with a
// missing close (Yahoo emits nulls for halted sessions).
func parseCandles(result gjson.Result) []types.Candle {
	timestamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()

	candles := make([]types.Candle, 0, len(closes))
	for i, c := range closes {
		if c.Type != gjson.Number || i >= len(timestamps) {
			continue
		}
		candle := types.Candle{
			Time:  time.Unix(timestamps[i].Int(), 0),
			Close: c.Float(),
		}
		candle.Open = valueOr(opens, i, candle.Close)
		candle.High = valueOr(highs, i, candle.Close)
		candle.Low = valueOr(lows, i, candle.Close)
		candles = append(candles, candle)
	}
	return candles
}

func valueOr(values []gjson.Result, i int, fallback float64) float64 {
	if i < len(values) && values[i].Type == gjson.Number {
		return values[i].Float()
	}
	return fallback
}
