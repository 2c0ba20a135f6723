package price

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"stockwatch-telegram-bot/internal/types"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Provider is a market-data backend. Implementations return types.ErrNotFound
// for symbols they cannot resolve; anything else is treated as transient.
type Provider interface {
	Quote(ctx context.Context, symbol string) (*types.Quote, error)
	Candles(ctx context.Context, symbol string) ([]types.Candle, error)
}

// Source wraps a Provider with a per-call timeout and normalises every
// failure into ErrNotFound or ErrTransientUnavailable.
type Source struct {
	provider Provider
	timeout  time.Duration
}

func NewSource(provider Provider, timeout time.Duration) *Source {
	return &Source{provider: provider, timeout: timeout}
}

// NewProvider builds the backend named by the price_provider setting.
func NewProvider(name, yahooBaseURL, chartRange, apiProKey string, timeout time.Duration) (Provider, error) {
	client := &http.Client{Timeout: timeout}
	switch strings.ToLower(name) {
	case "", "yahoo":
		return NewYahoo(yahooBaseURL, chartRange, client), nil
	case "coinpaprika":
		return NewCoinpaprika(apiProKey, client), nil
	}
	return nil, errors.Errorf("unknown price provider: %s", name)
}

// Fetch returns the latest and previous close for symbol.
func (s *Source) Fetch(ctx context.Context, symbol string) (types.PriceSample, error) {
	q, err := s.Quote(ctx, symbol)
	if err != nil {
		return types.PriceSample{}, err
	}
	return q.Sample(), nil
}

func (s *Source) Quote(ctx context.Context, symbol string) (*types.Quote, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q, err := s.provider.Quote(ctx, symbol)
	if err != nil {
		return nil, classify(ctx, symbol, err)
	}
	if err := validateQuote(q); err != nil {
		return nil, errors.Wrapf(types.ErrTransientUnavailable, "%s: %v", symbol, err)
	}
	return q, nil
}

func (s *Source) Candles(ctx context.Context, symbol string) ([]types.Candle, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	candles, err := s.provider.Candles(ctx, symbol)
	if err != nil {
		return nil, classify(ctx, symbol, err)
	}
	return candles, nil
}

func (s *Source) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func classify(ctx context.Context, symbol string, err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return errors.Wrap(types.ErrNotFound, symbol)
	case errors.Is(err, types.ErrTransientUnavailable):
		return err
	case ctx.Err() == context.DeadlineExceeded:
		log.Debugf("price fetch for %s timed out: %v", symbol, err)
		return errors.Wrapf(types.ErrTransientUnavailable, "%s: timeout", symbol)
	}
	return errors.Wrapf(types.ErrTransientUnavailable, "%s: %v", symbol, err)
}

func validateQuote(q *types.Quote) error {
	if q == nil {
		return errors.New("empty quote")
	}
	if math.IsNaN(q.Last) || math.IsInf(q.Last, 0) || q.Last <= 0 {
		return errors.Errorf("invalid last price %v", q.Last)
	}
	if math.IsNaN(q.Previous) || math.IsInf(q.Previous, 0) || q.Previous < 0 {
		return errors.Errorf("invalid previous close %v", q.Previous)
	}
	return nil
}
