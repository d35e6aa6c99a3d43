// Package rates resolves historical exchange rates for cross-currency
// matching.
package rates

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Lookup windows. Rates further back than the lookback are too stale to
// compare against; a short forward window covers weekend and holiday gaps
// where the nearest published rate is after the transaction date.
const (
	LookbackDays = 30
	ForwardDays  = 7

	cacheTTL = time.Hour

	// cacheTenant scopes rate cache entries. Exchange rates are market
	// data shared by every tenant.
	cacheTenant = "global"
)

// Store is the subset of the repository the rates service reads from.
type Store interface {
	GetRateOnOrBefore(ctx context.Context, fromCurrency, toCurrency string, date, earliest time.Time) (*domain.RateQuote, error)
	GetRateAfter(ctx context.Context, fromCurrency, toCurrency string, date, latest time.Time) (*domain.RateQuote, error)
}

// Service implements domain.RateLookup over the repository with a
// read-through cache. cache may be nil.
type Service struct {
	store  Store
	cache  domain.Cache
	logger *slog.Logger
}

// NewService creates a rate lookup service.
func NewService(store Store, cache domain.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: cache, logger: logger}
}

// LookupRate returns the best available rate for converting fromCurrency to
// toCurrency on asOf: same-day first, then the most recent within the
// lookback window, then the nearest within the forward window, then the
// inverse pair. A nil quote with nil error means nothing usable was found.
func (s *Service) LookupRate(ctx context.Context, asOf time.Time, fromCurrency, toCurrency string) (*domain.RateQuote, error) {
	from := strings.ToUpper(strings.TrimSpace(fromCurrency))
	to := strings.ToUpper(strings.TrimSpace(toCurrency))
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: currency codes are required", domain.ErrInvalidInput)
	}
	if from == to {
		return &domain.RateQuote{
			Rate:         1,
			Date:         asOf,
			FromCurrency: from,
			ToCurrency:   to,
			IsExact:      true,
		}, nil
	}

	day := asOf.UTC().Truncate(24 * time.Hour)
	key := cacheKey(from, to, day)

	if s.cache != nil {
		if quote, err := s.cache.GetRate(ctx, cacheTenant, key); err == nil && quote != nil {
			return quote, nil
		}
	}

	quote, err := s.resolve(ctx, day, from, to)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, nil
	}

	if s.cache != nil {
		if err := s.cache.SetRate(ctx, cacheTenant, key, quote, cacheTTL); err != nil {
			s.logger.Warn("failed to cache rate", "key", key, "error", err)
		}
	}
	return quote, nil
}

func (s *Service) resolve(ctx context.Context, day time.Time, from, to string) (*domain.RateQuote, error) {
	earliest := day.AddDate(0, 0, -LookbackDays)
	latest := day.AddDate(0, 0, ForwardDays)

	quote, err := s.store.GetRateOnOrBefore(ctx, from, to, day, earliest)
	if err != nil {
		return nil, fmt.Errorf("failed to look up rate %s/%s: %w", from, to, err)
	}
	if quote == nil {
		quote, err = s.store.GetRateAfter(ctx, from, to, day, latest)
		if err != nil {
			return nil, fmt.Errorf("failed to look up forward rate %s/%s: %w", from, to, err)
		}
	}
	if quote != nil {
		return finalize(quote, day), nil
	}

	// No direct observation; try the inverse pair.
	inverse, err := s.store.GetRateOnOrBefore(ctx, to, from, day, earliest)
	if err != nil {
		return nil, fmt.Errorf("failed to look up inverse rate %s/%s: %w", to, from, err)
	}
	if inverse == nil {
		inverse, err = s.store.GetRateAfter(ctx, to, from, day, latest)
		if err != nil {
			return nil, fmt.Errorf("failed to look up inverse forward rate %s/%s: %w", to, from, err)
		}
	}
	if inverse == nil || inverse.Rate == 0 {
		return nil, nil
	}

	return finalize(&domain.RateQuote{
		Rate:         1 / inverse.Rate,
		Date:         inverse.Date,
		FromCurrency: from,
		ToCurrency:   to,
	}, day), nil
}

func finalize(q *domain.RateQuote, day time.Time) *domain.RateQuote {
	q.IsExact = q.Date.UTC().Truncate(24 * time.Hour).Equal(day)
	return q
}

func cacheKey(from, to string, day time.Time) string {
	return fmt.Sprintf("rate:%s:%s:%s", from, to, day.Format("2006-01-02"))
}
