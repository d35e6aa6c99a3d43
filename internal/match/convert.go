package match

import (
	"context"
	"fmt"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// convertedExactTolerance widens the exact-match band for converted amounts
// to absorb rate rounding.
const convertedExactTolerance = 2.0

// rateQualityScore discounts a comparison by the age of the rate used:
// a same-day rate is authoritative, a month-old one barely indicative.
func rateQualityScore(daysDiff int) float64 {
	switch {
	case daysDiff == 0:
		return 100
	case daysDiff == 1:
		return 95
	case daysDiff <= 3:
		return 85
	case daysDiff <= 7:
		return 70
	case daysDiff <= 14:
		return 50
	case daysDiff <= 30:
		return 30
	default:
		return 10
	}
}

// compareCrossCurrency converts the source amount into the target currency
// and scores the converted pair. With no rate available the amount dimension
// scores zero and composite confidence is capped, but scoring still
// completes: date and vendor agreement remain informative.
func compareCrossCurrency(ctx context.Context, rates domain.RateLookup, source *domain.SourceTransaction, target *domain.TargetTransaction, weight float64) (domain.AmountDetail, *domain.ConversionDetail) {
	from := strings.ToUpper(source.Currency)
	to := strings.ToUpper(target.Currency)

	var quote *domain.RateQuote
	if rates != nil {
		q, err := rates.LookupRate(ctx, source.Date, from, to)
		if err == nil {
			quote = q
		}
	}

	if quote == nil {
		return domain.AmountDetail{
			Weight:        weight,
			PercentDiff:   100,
			ConfidenceCap: crossCurrencyCap,
			Reason: fmt.Sprintf("no exchange rate available for %s (%s to %s)",
				source.Date.UTC().Format("2006-01-02"), from, to),
		}, nil
	}

	converted := source.Amount * quote.Rate
	d := CompareAmounts(converted, target.Amount, AmountOptions{
		Weight:         weight,
		ExactTolerance: convertedExactTolerance,
	})

	rateDays := DaysBetween(source.Date, quote.Date)
	if !quote.IsExact {
		quality := rateQualityScore(rateDays)
		d.Score = roundTo(d.Score*quality/100, 1)
		d.Reason = fmt.Sprintf("%s (rate quality %.0f%%)", d.Reason, quality)
	}
	d.Reason = fmt.Sprintf("converted %.2f %s to %.2f %s: %s",
		source.Amount, from, converted, to, d.Reason)

	return d, &domain.ConversionDetail{
		ConvertedAmount: roundTo(converted, 2),
		Rate:            quote.Rate,
		RateDate:        quote.Date,
		IsExactRate:     quote.IsExact,
		RateDaysDiff:    rateDays,
		FromCurrency:    from,
		ToCurrency:      to,
		OriginalAmount:  source.Amount,
	}
}
