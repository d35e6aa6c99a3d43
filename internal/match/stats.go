package match

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// GetMatchStatistics aggregates outcomes across a result set. An empty or
// nil input yields the zero statistics, not an error.
func GetMatchStatistics(results []*domain.MatchResult) domain.MatchStatistics {
	stats := domain.MatchStatistics{Total: len(results)}
	if len(results) == 0 {
		return stats
	}

	var sum float64
	for _, r := range results {
		sum += r.Score
		if r.IsMatch {
			stats.Matched++
		}
		if r.IsCrossCurrency {
			stats.CrossCurrency++
		}
		switch r.Confidence {
		case domain.ConfidenceHigh:
			stats.HighConfidence++
		case domain.ConfidenceMedium:
			stats.MediumConfidence++
		default:
			stats.LowConfidence++
		}
	}
	stats.AvgScore = roundTo(sum/float64(len(results)), 1)
	return stats
}

// FormatMatchResult renders a result as a human-readable block for logs and
// review tooling.
func FormatMatchResult(r *domain.MatchResult) string {
	if r == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Target: %s\n", r.TargetID)
	fmt.Fprintf(&b, "Score: %s (%s)\n", formatScore(r.Score), r.Confidence)
	fmt.Fprintf(&b, "Match: %s\n", yesNo(r.IsMatch))
	fmt.Fprintf(&b, "Cross-currency: %s\n", yesNo(r.IsCrossCurrency))

	b.WriteString("\nBreakdown:\n")
	fmt.Fprintf(&b, "  Amount: %s/%s - %s\n",
		formatScore(r.Details.Amount.Score), formatScore(r.Details.Amount.Weight), r.Details.Amount.Reason)
	fmt.Fprintf(&b, "  Date: %s/%s - %s\n",
		formatScore(r.Details.Date.Score), formatScore(r.Details.Date.Weight), r.Details.Date.Reason)
	fmt.Fprintf(&b, "  Vendor: %s/%s - %s\n",
		formatScore(r.Details.Vendor.Score), formatScore(r.Details.Vendor.Weight), r.Details.Vendor.Reason)

	if c := r.Details.Conversion; c != nil {
		fmt.Fprintf(&b, "\nConversion: %.2f %s = %.2f %s (rate %s dated %s)\n",
			c.OriginalAmount, c.FromCurrency, c.ConvertedAmount, c.ToCurrency,
			strconv.FormatFloat(c.Rate, 'f', -1, 64), c.RateDate.UTC().Format("2006-01-02"))
	}
	if len(r.AppliedCaps) > 0 {
		parts := make([]string, len(r.AppliedCaps))
		for i, c := range r.AppliedCaps {
			parts[i] = formatScore(c)
		}
		fmt.Fprintf(&b, "\nCaps applied: %s\n", strings.Join(parts, ", "))
	}
	return b.String()
}

// formatScore prints a score without trailing zeros: 95 not 95.0, but
// 22.5 stays 22.5.
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}
