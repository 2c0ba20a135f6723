package types

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Kind selects how a watch's target is compared against a price sample.
// The values are what the watches table stores.
type Kind string

const (
	KindPriceAbove     Kind = "price_up"
	KindPriceBelow     Kind = "price_down"
	KindPctChangeAbove Kind = "pct_up"
	KindPctChangeBelow Kind = "pct_down"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPriceAbove, KindPriceBelow, KindPctChangeAbove, KindPctChangeBelow:
		return k, nil
	}
	return "", errors.Errorf("unknown watch kind: %q", s)
}

// IsPercent reports whether the target is a percent-change magnitude.
func (k Kind) IsPercent() bool {
	return k == KindPctChangeAbove || k == KindPctChangeBelow
}

// IsUp reports whether the watch fires on a rise.
func (k Kind) IsUp() bool {
	return k == KindPriceAbove || k == KindPctChangeAbove
}

type Watch struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Symbol    string    `json:"symbol"`
	Target    float64   `json:"target"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// PriceSample is the two-point reduction the alert engine evaluates.
type PriceSample struct {
	Last     float64 `json:"last"`
	Previous float64 `json:"previous"`
}

// PercentChange returns the change from Previous to Last in percent points,
// or 0 when there is no usable previous close.
func (s PriceSample) PercentChange() float64 {
	if s.Previous == 0 {
		return 0
	}
	return (s.Last - s.Previous) / s.Previous * 100
}

// Quote is what a synchronous price query shows to the user.
type Quote struct {
	Symbol   string    `json:"symbol"`
	Name     string    `json:"name"`
	Last     float64   `json:"last"`
	Previous float64   `json:"previous"`
	Time     time.Time `json:"time"`
}

func (q Quote) Sample() PriceSample {
	return PriceSample{Last: q.Last, Previous: q.Previous}
}

type Candle struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}
