package price

import (
	"context"
	"net/http"
	"strings"
	"time"

	"stockwatch-telegram-bot/internal/types"

	"github.com/coinpaprika/coinpaprika-api-go-client/v2/coinpaprika"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Coinpaprika serves crypto symbols (BTC, ETH, ...) from the CoinPaprika API.
// The previous close is derived from the 24h percent change.
type Coinpaprika struct {
	client *coinpaprika.Client
}

func NewCoinpaprika(apiProKey string, httpClient *http.Client) *Coinpaprika {
	if apiProKey != "" {
		return &Coinpaprika{client: coinpaprika.NewClient(httpClient, coinpaprika.WithAPIKey(apiProKey))}
	}
	return &Coinpaprika{client: coinpaprika.NewClient(httpClient)}
}

func (c *Coinpaprika) Quote(ctx context.Context, symbol string) (*types.Quote, error) {
	return await(ctx, func() (*types.Quote, error) {
		coin, err := c.searchCoin(symbol)
		if err != nil {
			return nil, err
		}

		ticker, err := c.client.Tickers.GetByID(*coin.ID, &coinpaprika.TickersOptions{Quotes: "USD"})
		if err != nil {
			return nil, errors.Wrapf(types.ErrTransientUnavailable, "coinpaprika ticker %s: %v", *coin.ID, err)
		}

		usd, ok := ticker.Quotes["USD"]
		if !ok || usd.Price == nil {
			return nil, errors.Wrapf(types.ErrNotFound, "%s is not actively traded", *coin.ID)
		}

		last := *usd.Price
		previous := last
		if usd.PercentChange24h != nil && *usd.PercentChange24h > -100 {
			previous = last / (1 + *usd.PercentChange24h/100)
		}

		name := symbol
		if ticker.Name != nil {
			name = *ticker.Name
		}

		return &types.Quote{
			Symbol:   symbol,
			Name:     name,
			Last:     last,
			Previous: previous,
			Time:     time.Now(),
		}, nil
	})
}

func (c *Coinpaprika) Candles(ctx context.Context, symbol string) ([]types.Candle, error) {
	return await(ctx, func() ([]types.Candle, error) {
		coin, err := c.searchCoin(symbol)
		if err != nil {
			return nil, err
		}

		tickers, err := c.client.Tickers.GetHistoricalTickersByID(*coin.ID, &coinpaprika.TickersHistoricalOptions{
			Quote:    "USD",
			Limit:    120,
			Interval: "1d",
			Start:    time.Now().AddDate(0, 0, -30),
		})
		if err != nil {
			return nil, errors.Wrapf(types.ErrTransientUnavailable, "coinpaprika history %s: %v", *coin.ID, err)
		}

		// Historical tickers carry a single price per bar; open is the
		// previous bar's price.
		candles := make([]types.Candle, 0, len(tickers))
		for _, t := range tickers {
			if t == nil || t.Timestamp == nil || t.Price == nil {
				continue
			}
			open := *t.Price
			if n := len(candles); n > 0 {
				open = candles[n-1].Close
			}
			candles = append(candles, types.Candle{
				Time:  *t.Timestamp,
				Open:  open,
				High:  max(open, *t.Price),
				Low:   min(open, *t.Price),
				Close: *t.Price,
			})
		}
		return candles, nil
	})
}

// searchCoin resolves a symbol to a coin, trying a symbol search first and a
// name search second.
func (c *Coinpaprika) searchCoin(query string) (*coinpaprika.Coin, error) {
	searchOpts := &coinpaprika.SearchOptions{
		Query:      strings.ToLower(query),
		Categories: "currencies",
		Modifier:   "symbol_search",
	}
	result, err := c.client.Search.Search(searchOpts)
	if err != nil || len(result.Currencies) == 0 {
		log.Debugf("No results for symbol search, trying name search for '%s'", query)
		searchOpts = &coinpaprika.SearchOptions{Query: query, Categories: "currencies"}
		result, err = c.client.Search.Search(searchOpts)
		if err != nil {
			return nil, errors.Wrapf(types.ErrTransientUnavailable, "coinpaprika search: %v", err)
		}
		if len(result.Currencies) == 0 {
			return nil, errors.Wrapf(types.ErrNotFound, "invalid coin name, ticker, or symbol: %s", query)
		}
	}

	coin := result.Currencies[0]
	if coin == nil || coin.ID == nil {
		return nil, errors.Wrapf(types.ErrNotFound, "coin without id for %s", query)
	}
	return coin, nil
}

// await runs a blocking call that has no context support and gives up when
// ctx is done. The http client timeout eventually reaps the abandoned call.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result{zero, errors.Errorf("panic in provider call: %v", r)}
			}
		}()
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
