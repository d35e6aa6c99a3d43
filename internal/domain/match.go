package domain

import (
	"time"
)

// Confidence classifies a composite match score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Confidence thresholds for score classification.
const (
	ConfidenceThresholdHigh   = 90.0
	ConfidenceThresholdMedium = 55.0
)

// VendorMatchType is the reason two vendor strings were judged equivalent.
type VendorMatchType string

const (
	VendorMatchExact VendorMatchType = "exact"
	VendorMatchAlias VendorMatchType = "alias"
	VendorMatchFuzzy VendorMatchType = "fuzzy"
	VendorMatchNone  VendorMatchType = ""
)

// ScoreWeights holds the relative weight of each dimension out of a
// 100-point scale. Weights that fail to sum to 100 are scaled
// proportionally to whatever total is supplied.
type ScoreWeights struct {
	Amount float64 `json:"amount"`
	Date   float64 `json:"date"`
	Vendor float64 `json:"vendor"`
}

// DefaultWeights returns the default 40/30/30 score distribution.
func DefaultWeights() ScoreWeights {
	return ScoreWeights{Amount: 40, Date: 30, Vendor: 30}
}

// Total returns the sum of all dimension weights.
func (w ScoreWeights) Total() float64 {
	return w.Amount + w.Date + w.Vendor
}

// AmountDetail is the amount dimension of a match result.
type AmountDetail struct {
	Score         float64 `json:"score"`
	Weight        float64 `json:"weight"`
	PercentDiff   float64 `json:"percentDiff"`
	IsMatch       bool    `json:"isMatch"`
	ConfidenceCap float64 `json:"confidenceCap,omitempty"` // 0 = no cap
	Reason        string  `json:"reason"`
}

// DateDetail is the date dimension of a match result.
type DateDetail struct {
	Score    float64 `json:"score"`
	Weight   float64 `json:"weight"`
	DaysDiff int     `json:"daysDiff"`
	IsMatch  bool    `json:"isMatch"`
	Reason   string  `json:"reason"`
}

// VendorDetail is the vendor dimension of a match result.
type VendorDetail struct {
	Score      float64         `json:"score"`
	Weight     float64         `json:"weight"`
	Similarity float64         `json:"similarity"`
	IsMatch    bool            `json:"isMatch"`
	MatchType  VendorMatchType `json:"matchType,omitempty"`
	Reason     string          `json:"reason"`
}

// ConversionDetail describes a successful cross-currency conversion.
// Present only when currencies differed and a rate was found.
type ConversionDetail struct {
	ConvertedAmount float64   `json:"convertedAmount"`
	Rate            float64   `json:"rate"`
	RateDate        time.Time `json:"rateDate"`
	IsExactRate     bool      `json:"isExactRate"`
	RateDaysDiff    int       `json:"rateDaysDiff"`
	FromCurrency    string    `json:"fromCurrency"`
	ToCurrency      string    `json:"toCurrency"`
	OriginalAmount  float64   `json:"originalAmount"`
}

// MatchDetails is the per-dimension breakdown of a match result.
type MatchDetails struct {
	Amount     AmountDetail      `json:"amount"`
	Date       DateDetail        `json:"date"`
	Vendor     VendorDetail      `json:"vendor"`
	Conversion *ConversionDetail `json:"conversion,omitempty"`
}

// MatchResult is the complete outcome of scoring one (source, target) pair.
// Created fresh per pair and never mutated after return.
type MatchResult struct {
	TargetID        string       `json:"targetId"`
	Score           float64      `json:"score"`
	Confidence      Confidence   `json:"confidence"`
	IsMatch         bool         `json:"isMatch"`
	Details         MatchDetails `json:"details"`
	Reasons         []string     `json:"reasons"`
	AppliedCaps     []float64    `json:"appliedCaps,omitempty"`
	IsCrossCurrency bool         `json:"isCrossCurrency"`
}

// MatchStatistics aggregates outcomes across a result set.
type MatchStatistics struct {
	Total            int     `json:"total"`
	Matched          int     `json:"matched"`
	HighConfidence   int     `json:"highConfidence"`
	MediumConfidence int     `json:"mediumConfidence"`
	LowConfidence    int     `json:"lowConfidence"`
	AvgScore         float64 `json:"avgScore"`
	CrossCurrency    int     `json:"crossCurrency"`
}

// MatchOptions configures a scoring call. The zero value selects all
// defaults; a nil *MatchOptions is equally valid.
type MatchOptions struct {
	// Weights overrides the default 40/30/30 distribution when non-nil.
	Weights *ScoreWeights `json:"weights,omitempty"`

	// MinMatchScore is the threshold for IsMatch (default 55).
	MinMatchScore float64 `json:"minMatchScore,omitempty"`

	// RequireVendorMatch forces IsMatch false when the vendor dimension
	// did not match, regardless of the numeric score.
	RequireVendorMatch bool `json:"requireVendorMatch,omitempty"`

	// RequireDateMatch forces IsMatch false when the date dimension
	// did not match.
	RequireDateMatch bool `json:"requireDateMatch,omitempty"`

	// MaxDaysDiff is the date tolerance window in days (default 3).
	MaxDaysDiff int `json:"maxDaysDiff,omitempty"`

	// Aliases extends the built-in vendor alias table. Keys are canonical
	// names, values are known alternate spellings.
	Aliases map[string][]string `json:"aliases,omitempty"`

	// Rates is the exchange-rate collaborator for cross-currency pairs.
	// When nil, cross-currency amounts score 0 with a confidence cap.
	Rates RateLookup `json:"-"`
}

// Default scoring policy values.
const (
	DefaultMinMatchScore       = 55.0
	DefaultMaxDaysDiff         = 3
	DefaultSimilarityThreshold = 70.0
)
