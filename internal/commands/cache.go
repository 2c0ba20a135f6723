package commands

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const chartCacheSize = 256

// chartCache keeps rendered price replies per symbol for a short while so
// repeated queries don't refetch candles and redraw the chart.
type chartCache struct {
	items *expirable.LRU[string, Reply]
}

func newChartCache(ttl time.Duration) *chartCache {
	if ttl <= 0 {
		return nil
	}
	return &chartCache{items: expirable.NewLRU[string, Reply](chartCacheSize, nil, ttl)}
}

func (c *chartCache) get(symbol string) (Reply, bool) {
	if c == nil {
		return Reply{}, false
	}
	return c.items.Get(symbol)
}

func (c *chartCache) set(symbol string, reply Reply) {
	if c == nil {
		return
	}
	c.items.Add(symbol, reply)
}
