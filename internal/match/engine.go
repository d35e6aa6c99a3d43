package match

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Engine scores (source, target) transaction pairs. It is stateless apart
// from configuration and safe for concurrent use.
type Engine struct {
	weights             domain.ScoreWeights
	minMatchScore       float64
	maxDaysDiff         int
	similarityThreshold float64
	maxWorkers          int
	rates               domain.RateLookup
	logger              *slog.Logger
}

// NewEngine builds an engine from configuration. rates may be nil, in which
// case cross-currency pairs score with a capped confidence unless a
// per-call collaborator is supplied. logger may be nil.
func NewEngine(cfg domain.MatchingConfig, rates domain.RateLookup, logger *slog.Logger) *Engine {
	if cfg.MinMatchScore <= 0 {
		cfg.MinMatchScore = domain.DefaultMinMatchScore
	}
	if cfg.MaxDaysDiff <= 0 {
		cfg.MaxDaysDiff = domain.DefaultMaxDaysDiff
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = domain.DefaultSimilarityThreshold
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		weights:             domain.DefaultWeights(),
		minMatchScore:       cfg.MinMatchScore,
		maxDaysDiff:         cfg.MaxDaysDiff,
		similarityThreshold: cfg.SimilarityThreshold,
		maxWorkers:          cfg.MaxWorkers,
		rates:               rates,
		logger:              logger,
	}
}

// scoreParams is a fully resolved scoring policy for one call. Weights are
// rescaled so the three effective weights always total 100.
type scoreParams struct {
	amountWeight  float64
	dateWeight    float64
	vendorWeight  float64
	minMatchScore float64
	requireVendor bool
	requireDate   bool
	maxDaysDiff   int
	aliasIndex    map[string]string
	rates         domain.RateLookup
}

func (e *Engine) resolveOptions(opts *domain.MatchOptions) (scoreParams, error) {
	p := scoreParams{
		minMatchScore: e.minMatchScore,
		maxDaysDiff:   e.maxDaysDiff,
		aliasIndex:    defaultAliasIndex,
		rates:         e.rates,
	}

	weights := e.weights
	if opts != nil {
		if opts.Weights != nil {
			weights = *opts.Weights
		}
		if opts.MinMatchScore != 0 {
			if opts.MinMatchScore < 0 || opts.MinMatchScore > 100 {
				return p, fmt.Errorf("%w: minMatchScore %v outside [0,100]", domain.ErrInvalidInput, opts.MinMatchScore)
			}
			p.minMatchScore = opts.MinMatchScore
		}
		if opts.MaxDaysDiff != 0 {
			if opts.MaxDaysDiff < 0 {
				return p, fmt.Errorf("%w: maxDaysDiff %d is negative", domain.ErrInvalidInput, opts.MaxDaysDiff)
			}
			p.maxDaysDiff = opts.MaxDaysDiff
		}
		p.requireVendor = opts.RequireVendorMatch
		p.requireDate = opts.RequireDateMatch
		if len(opts.Aliases) > 0 {
			p.aliasIndex = buildAliasIndex(opts.Aliases)
		}
		if opts.Rates != nil {
			p.rates = opts.Rates
		}
	}

	if weights.Amount < 0 || weights.Date < 0 || weights.Vendor < 0 {
		return p, fmt.Errorf("%w: score weights must be non-negative, got %+v", domain.ErrInvalidInput, weights)
	}
	total := weights.Total()
	if total <= 0 {
		return p, fmt.Errorf("%w: score weights total %v, need a positive total", domain.ErrInvalidInput, total)
	}

	// Rescale so the composite is always on a 0-100 scale regardless of
	// the supplied total.
	p.amountWeight = weights.Amount / total * 100
	p.dateWeight = weights.Date / total * 100
	p.vendorWeight = weights.Vendor / total * 100
	return p, nil
}

// CalculateMatchScore scores a single pair. The only error cause is an
// invalid option set; unmatchable pairs return a result with a low score,
// never an error.
func (e *Engine) CalculateMatchScore(ctx context.Context, source *domain.SourceTransaction, target *domain.TargetTransaction, opts *domain.MatchOptions) (*domain.MatchResult, error) {
	if source == nil || target == nil {
		return nil, fmt.Errorf("%w: source and target must be non-nil", domain.ErrInvalidInput)
	}
	p, err := e.resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return e.scorePair(ctx, source, target, p), nil
}

func (e *Engine) scorePair(ctx context.Context, source *domain.SourceTransaction, target *domain.TargetTransaction, p scoreParams) *domain.MatchResult {
	crossCurrency := isCrossCurrency(source.Currency, target.Currency)

	var amount domain.AmountDetail
	var conversion *domain.ConversionDetail
	if crossCurrency {
		amount, conversion = compareCrossCurrency(ctx, p.rates, source, target, p.amountWeight)
	} else {
		amount = CompareAmounts(source.Amount, target.Amount, AmountOptions{Weight: p.amountWeight})
	}

	date := CompareDates(source.Date, target.Date, DateOptions{
		Weight:      p.dateWeight,
		MaxDaysDiff: p.maxDaysDiff,
	})
	vendor := compareVendors(source.Vendor, target.Vendor, p.vendorWeight, e.similarityThreshold, p.aliasIndex)

	raw := math.Round(amount.Score + date.Score + vendor.Score)

	var caps []float64
	if amount.ConfidenceCap > 0 {
		caps = append(caps, amount.ConfidenceCap)
	}
	score := raw
	for _, c := range caps {
		if c < score {
			score = c
		}
	}

	reasons := []string{
		"Amount: " + amount.Reason,
		"Date: " + date.Reason,
		"Vendor: " + vendor.Reason,
	}

	isMatch := score >= p.minMatchScore
	if p.requireVendor && !vendor.IsMatch {
		isMatch = false
		reasons = append(reasons, "Vendor match required but not found")
	}
	if p.requireDate && !date.IsMatch {
		isMatch = false
		reasons = append(reasons, "Date match required but not found")
	}

	return &domain.MatchResult{
		TargetID:   target.ID,
		Score:      score,
		Confidence: GetConfidenceLevel(score),
		IsMatch:    isMatch,
		Details: domain.MatchDetails{
			Amount:     amount,
			Date:       date,
			Vendor:     vendor,
			Conversion: conversion,
		},
		Reasons:         reasons,
		AppliedCaps:     caps,
		IsCrossCurrency: crossCurrency,
	}
}

// CalculateMatchScores scores one source against every target concurrently
// and returns results sorted by descending score. Equal scores keep target
// order, so output is deterministic for a given input order.
func (e *Engine) CalculateMatchScores(ctx context.Context, source *domain.SourceTransaction, targets []*domain.TargetTransaction, opts *domain.MatchOptions) ([]*domain.MatchResult, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: source must be non-nil", domain.ErrInvalidInput)
	}
	p, err := e.resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	results := make([]*domain.MatchResult, len(targets))
	if len(targets) == 0 {
		return results, nil
	}

	sem := make(chan struct{}, e.maxWorkers)
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target *domain.TargetTransaction) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = e.scorePair(ctx, source, target, p)
		}(i, target)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// FindBestMatch returns the highest-scoring valid match, or nil when no
// target clears the match threshold.
func (e *Engine) FindBestMatch(ctx context.Context, source *domain.SourceTransaction, targets []*domain.TargetTransaction, opts *domain.MatchOptions) (*domain.MatchResult, error) {
	results, err := e.CalculateMatchScores(ctx, source, targets, opts)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.IsMatch {
			return r, nil
		}
	}
	return nil, nil
}

// GetConfidenceLevel classifies a composite score.
func GetConfidenceLevel(score float64) domain.Confidence {
	switch {
	case score >= domain.ConfidenceThresholdHigh:
		return domain.ConfidenceHigh
	case score >= domain.ConfidenceThresholdMedium:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// isCrossCurrency reports whether two currency codes require conversion.
// A missing code is assumed to share the counterparty's currency.
func isCrossCurrency(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return !strings.EqualFold(a, b)
}
