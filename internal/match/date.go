package match

import (
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// dateDecaySteps spreads the date weight across the tolerance window: each
// day of separation costs weight/6, matching the canonical 30/25/20/15
// ladder on the default 30-point scale.
const dateDecaySteps = 6.0

// DaysBetween returns the whole-day separation between two instants,
// ignoring time of day. Timestamps are compared on their UTC calendar dates.
func DaysBetween(a, b time.Time) int {
	ad := midnightUTC(a)
	bd := midnightUTC(b)
	days := int(ad.Sub(bd).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

func midnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DateSearchWindow expands a date by the tolerance in both directions,
// for candidate retrieval ahead of scoring.
func DateSearchWindow(date time.Time, toleranceDays int) (time.Time, time.Time) {
	d := midnightUTC(date)
	return d.AddDate(0, 0, -toleranceDays), d.AddDate(0, 0, toleranceDays)
}

// DateOptions configures a standalone date comparison.
type DateOptions struct {
	// Weight is the maximum attainable score (default 30).
	Weight float64

	// MaxDaysDiff is the tolerance window in days (default 3). Separations
	// beyond it score zero and do not match.
	MaxDaysDiff int
}

// CompareDates scores how closely two transaction dates agree. The score
// decays linearly inside the tolerance window and drops to zero outside it.
func CompareDates(source, target time.Time, opts DateOptions) domain.DateDetail {
	weight := opts.Weight
	if weight == 0 {
		weight = domain.DefaultWeights().Date
	}
	maxDays := opts.MaxDaysDiff
	if maxDays == 0 {
		maxDays = domain.DefaultMaxDaysDiff
	}

	days := DaysBetween(source, target)
	d := domain.DateDetail{Weight: weight, DaysDiff: days}

	if days > maxDays {
		d.Reason = fmt.Sprintf("dates differ by %d days (exceeds %d-day window)", days, maxDays)
		return d
	}

	score := weight - float64(days)*(weight/dateDecaySteps)
	if score < 0 {
		score = 0
	}
	d.Score = roundTo(score, 1)
	d.IsMatch = true
	switch days {
	case 0:
		d.Reason = "dates match exactly (same day)"
	case 1:
		d.Reason = "dates within 1 day"
	default:
		d.Reason = fmt.Sprintf("dates within %d days", days)
	}
	return d
}
