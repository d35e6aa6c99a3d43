package match

import (
	"context"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// MatchStatus summarizes a ranked suggestion set.
type MatchStatus string

const (
	// StatusMatched means one candidate is a clear winner.
	StatusMatched MatchStatus = "matched"

	// StatusMultipleMatches means several candidates cleared the threshold
	// without a clear winner; a human should pick.
	StatusMultipleMatches MatchStatus = "multiple_matches"

	// StatusLowConfidence means the best candidate fell short of the match
	// threshold but close enough to be worth reviewing.
	StatusLowConfidence MatchStatus = "low_confidence"

	// StatusNoMatch means nothing plausible was found.
	StatusNoMatch MatchStatus = "no_match"
)

// Ranker defaults.
const (
	DefaultMaxSuggestions     = 3
	DefaultClearWinnerGap     = 10.0
	DefaultAutoMatchThreshold = 90.0

	// lowConfidenceFloor is how far below the match threshold a best
	// candidate can fall and still be surfaced for review.
	lowConfidenceFloor = 15.0
)

// RankerConfig tunes suggestion ranking. Zero values select defaults.
type RankerConfig struct {
	MaxSuggestions     int     `json:"maxSuggestions"`
	ClearWinnerGap     float64 `json:"clearWinnerGap"`
	AutoMatchThreshold float64 `json:"autoMatchThreshold"`
}

// RankedSuggestion is the reviewed-oriented outcome of scoring a source
// against a candidate set.
type RankedSuggestion struct {
	Status         MatchStatus            `json:"status"`
	BestMatch      *domain.MatchResult    `json:"bestMatch,omitempty"`
	Suggestions    []*domain.MatchResult  `json:"suggestions"`
	Statistics     domain.MatchStatistics `json:"statistics"`
	Reason         string                 `json:"reason"`
	RequiresReview bool                   `json:"requiresReview"`
}

// RankMatches scores every candidate and classifies the outcome for a
// review workflow: auto-matchable winner, ambiguous set, near miss, or
// nothing at all.
func (e *Engine) RankMatches(ctx context.Context, source *domain.SourceTransaction, targets []*domain.TargetTransaction, opts *domain.MatchOptions, rcfg RankerConfig) (*RankedSuggestion, error) {
	if rcfg.MaxSuggestions <= 0 {
		rcfg.MaxSuggestions = DefaultMaxSuggestions
	}
	if rcfg.ClearWinnerGap <= 0 {
		rcfg.ClearWinnerGap = DefaultClearWinnerGap
	}
	if rcfg.AutoMatchThreshold <= 0 {
		rcfg.AutoMatchThreshold = DefaultAutoMatchThreshold
	}

	results, err := e.CalculateMatchScores(ctx, source, targets, opts)
	if err != nil {
		return nil, err
	}

	s := &RankedSuggestion{
		Statistics:  GetMatchStatistics(results),
		Suggestions: []*domain.MatchResult{},
	}

	var valid []*domain.MatchResult
	for _, r := range results {
		if r.IsMatch {
			valid = append(valid, r)
		}
	}

	switch {
	case len(valid) == 0:
		threshold := e.minMatchScore
		if opts != nil && opts.MinMatchScore > 0 {
			threshold = opts.MinMatchScore
		}
		if len(results) > 0 && results[0].Score >= threshold-lowConfidenceFloor {
			s.Status = StatusLowConfidence
			s.Suggestions = topN(results, rcfg.MaxSuggestions)
			s.RequiresReview = true
			s.Reason = fmt.Sprintf("best candidate scored %s, below the %s match threshold",
				formatScore(results[0].Score), formatScore(threshold))
		} else {
			s.Status = StatusNoMatch
			s.Reason = "no candidate scored close to the match threshold"
		}

	case len(valid) == 1 || valid[0].Score-valid[1].Score >= rcfg.ClearWinnerGap:
		s.Status = StatusMatched
		s.BestMatch = valid[0]
		s.Suggestions = topN(valid, rcfg.MaxSuggestions)
		s.RequiresReview = valid[0].Score < rcfg.AutoMatchThreshold
		if len(valid) == 1 {
			s.Reason = "single candidate cleared the match threshold"
		} else {
			s.Reason = fmt.Sprintf("clear winner: %s points ahead of the runner-up",
				formatScore(valid[0].Score-valid[1].Score))
		}

	default:
		s.Status = StatusMultipleMatches
		s.BestMatch = valid[0]
		s.Suggestions = topN(valid, rcfg.MaxSuggestions)
		s.RequiresReview = true
		s.Reason = fmt.Sprintf("%d candidates within %s points of each other",
			len(valid), formatScore(rcfg.ClearWinnerGap))
	}

	return s, nil
}

// CanAutoApprove reports whether a suggestion is safe to apply without
// human review.
func (s *RankedSuggestion) CanAutoApprove(threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultAutoMatchThreshold
	}
	return s.Status == StatusMatched &&
		s.BestMatch != nil &&
		s.BestMatch.Score >= threshold &&
		!s.RequiresReview
}

func topN(results []*domain.MatchResult, n int) []*domain.MatchResult {
	if len(results) <= n {
		return append([]*domain.MatchResult{}, results...)
	}
	return append([]*domain.MatchResult{}, results[:n]...)
}
