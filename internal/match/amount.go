package match

import (
	"fmt"
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// amountEpsilon guards the percent-difference denominator against a zero
// source amount.
const amountEpsilon = 1e-9

// crossCurrencyCap limits composite confidence when amounts could not be
// compared in a common currency.
const crossCurrencyCap = 50.0

// largeDiffCap limits composite confidence when amounts differ by more than
// ten percent; date and vendor agreement alone should not produce a
// high-confidence match.
const largeDiffCap = 60.0

// Tier boundaries and their share of the amount weight, expressed against
// the canonical 40-point amount scale.
const (
	amountFullScale   = 40.0
	amountTier2Pct    = 2.0
	amountTier2Score  = 35.0
	amountTier5Pct    = 5.0
	amountTier5Score  = 25.0
	amountTier10Pct   = 10.0
	amountTier10Score = 15.0
)

// PercentDiff returns the difference between two amounts as a percentage of
// the first. Two zero amounts are identical by definition.
func PercentDiff(a, b float64) float64 {
	if a == b {
		return 0
	}
	return math.Abs(a-b) / math.Max(math.Abs(a), amountEpsilon) * 100
}

// AmountOptions configures a standalone amount comparison.
type AmountOptions struct {
	// Weight is the maximum attainable score (default 40).
	Weight float64

	// ExactTolerance widens the exact-match tier to the given percent
	// difference. Zero means amounts must be identical; converted
	// cross-currency amounts use 2 to absorb rate rounding.
	ExactTolerance float64
}

// CompareAmounts scores how closely two same-currency amounts agree, using
// tiered percent-difference bands. Differences beyond ten percent score
// zero and cap composite confidence at 60.
func CompareAmounts(source, target float64, opts AmountOptions) domain.AmountDetail {
	weight := opts.Weight
	if weight == 0 {
		weight = domain.DefaultWeights().Amount
	}

	diff := PercentDiff(source, target)
	d := domain.AmountDetail{
		Weight:      weight,
		PercentDiff: roundTo(diff, 2),
	}

	scale := weight / amountFullScale
	switch {
	case diff <= opts.ExactTolerance:
		d.Score = weight
		d.IsMatch = true
		if opts.ExactTolerance > 0 && diff > 0 {
			d.Reason = fmt.Sprintf("amounts match within %.0f%% tolerance (%.2f%% difference)", opts.ExactTolerance, diff)
		} else {
			d.Reason = "amounts match exactly"
		}
	case diff <= amountTier2Pct:
		d.Score = roundTo(amountTier2Score*scale, 1)
		d.IsMatch = true
		d.Reason = fmt.Sprintf("amounts within 2%% (%.2f%% difference)", diff)
	case diff <= amountTier5Pct:
		d.Score = roundTo(amountTier5Score*scale, 1)
		d.IsMatch = true
		d.Reason = fmt.Sprintf("amounts within 5%% (%.2f%% difference)", diff)
	case diff <= amountTier10Pct:
		d.Score = roundTo(amountTier10Score*scale, 1)
		d.IsMatch = true
		d.Reason = fmt.Sprintf("amounts within 10%% (%.2f%% difference)", diff)
	default:
		d.Score = 0
		d.ConfidenceCap = largeDiffCap
		d.Reason = fmt.Sprintf("amounts differ by %.2f%% (exceeds 10%% threshold)", diff)
	}

	return d
}
