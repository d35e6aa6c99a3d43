package domain

import (
	"context"
	"time"
)

// RateQuote is a single historical exchange rate observation.
type RateQuote struct {
	Rate         float64   `json:"rate"`
	Date         time.Time `json:"date"`
	FromCurrency string    `json:"fromCurrency"`
	ToCurrency   string    `json:"toCurrency"`

	// IsExact is true when the rate is dated exactly on the requested day
	// rather than the nearest available one.
	IsExact bool `json:"isExact"`
}

// RateLookup is the exchange-rate collaborator consumed by the match
// engine. Implementations return the most recent rate on or before asOf
// within a reasonable lookback window. A nil quote with a nil error means
// no rate is available; errors are tolerated by callers and treated the
// same as no rate.
type RateLookup interface {
	LookupRate(ctx context.Context, asOf time.Time, fromCurrency, toCurrency string) (*RateQuote, error)
}

// RateLookupFunc adapts a function to the RateLookup interface.
type RateLookupFunc func(ctx context.Context, asOf time.Time, fromCurrency, toCurrency string) (*RateQuote, error)

// LookupRate calls f.
func (f RateLookupFunc) LookupRate(ctx context.Context, asOf time.Time, fromCurrency, toCurrency string) (*RateQuote, error) {
	return f(ctx, asOf, fromCurrency, toCurrency)
}
