package match

import (
	"fmt"
	"math"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// defaultAliases maps canonical vendor names to alternate spellings seen in
// statement descriptors. Keys and values are normalized at index build time,
// so mixed-case entries are fine.
var defaultAliases = map[string][]string{
	"STARBUCKS":  {"SBUX", "STARBUCKS COFFEE"},
	"AMAZON":     {"AMZN", "AMZN MKTP", "AMAZON.COM"},
	"GRAB":       {"GRABFOOD", "GRABPAY", "GRABCAR", "GRABTAXI"},
	"7-ELEVEN":   {"7-11", "7 ELEVEN", "SEVEN ELEVEN"},
	"UBER":       {"UBER TRIP", "UBER EATS", "UBEREATS"},
	"MCDONALDS":  {"MCD", "MCDONALD'S", "MC DONALDS"},
	"WALMART":    {"WAL-MART", "WMT"},
	"APPLE":      {"APPLE.COM/BILL", "APL ITUNES", "ITUNES.COM"},
	"GOOGLE":     {"GOOG", "GOOGLE SERVICES", "GOOGLE PLAY"},
	"NETFLIX":    {"NETFLIX.COM"},
	"SPOTIFY":    {"SPOTIFY AB", "SPOTIFY USA"},
	"PAYPAL":     {"PAYPAL INST XFER", "PP"},
	"SHOPEE":     {"SHOPEEPAY", "SHOPEE PH"},
	"LAZADA":     {"LAZ", "LAZADA PH"},
	"FOODPANDA":  {"FOOD PANDA", "FP"},
	"SINGTEL":    {"SINGTEL MOBILE", "SINGTEL DASH"},
}

var defaultAliasIndex = buildAliasIndex(nil)

// buildAliasIndex flattens an alias table into a normalized-name to
// canonical-name lookup. Canonical names map to themselves. The built-in
// table is always included; extra entries may extend or override it.
func buildAliasIndex(extra map[string][]string) map[string]string {
	idx := make(map[string]string, 4*(len(defaultAliases)+len(extra)))
	addAliases(idx, defaultAliases)
	addAliases(idx, extra)
	return idx
}

func addAliases(idx map[string]string, table map[string][]string) {
	for canonical, alts := range table {
		c := NormalizeVendor(canonical)
		if c == "" {
			continue
		}
		idx[c] = c
		for _, alt := range alts {
			if a := NormalizeVendor(alt); a != "" {
				idx[a] = c
			}
		}
	}
}

// VendorOptions configures a standalone vendor comparison. The zero value
// selects the default weight, threshold, and built-in alias table.
type VendorOptions struct {
	// Weight is the maximum attainable score (default 30).
	Weight float64

	// SimilarityThreshold is the minimum fuzzy similarity, 0-100
	// (default 70).
	SimilarityThreshold float64

	// Aliases extends the built-in alias table.
	Aliases map[string][]string
}

// CompareVendors scores how likely two vendor strings refer to the same
// merchant. Exact and alias matches earn the full weight; fuzzy matches earn
// a proportional share.
func CompareVendors(source, target string, opts VendorOptions) domain.VendorDetail {
	weight := opts.Weight
	if weight == 0 {
		weight = domain.DefaultWeights().Vendor
	}
	threshold := opts.SimilarityThreshold
	if threshold == 0 {
		threshold = domain.DefaultSimilarityThreshold
	}
	idx := defaultAliasIndex
	if len(opts.Aliases) > 0 {
		idx = buildAliasIndex(opts.Aliases)
	}
	return compareVendors(source, target, weight, threshold, idx)
}

func compareVendors(source, target string, weight, threshold float64, aliasIndex map[string]string) domain.VendorDetail {
	d := domain.VendorDetail{Weight: weight, MatchType: domain.VendorMatchNone}

	ns := NormalizeVendor(source)
	nt := NormalizeVendor(target)
	if ns == "" || nt == "" {
		d.Reason = "vendor name missing"
		return d
	}

	if ns == nt {
		d.Score = weight
		d.Similarity = 100
		d.IsMatch = true
		d.MatchType = domain.VendorMatchExact
		d.Reason = "vendor names match exactly"
		return d
	}

	if cs, ok := aliasIndex[ns]; ok {
		if ct, ok := aliasIndex[nt]; ok && cs == ct {
			d.Score = weight
			d.Similarity = 100
			d.IsMatch = true
			d.MatchType = domain.VendorMatchAlias
			d.Reason = fmt.Sprintf("%q and %q are known aliases of %q", ns, nt, cs)
			return d
		}
	}

	sim := similarityScore(ns, nt)
	contains := strings.Contains(ns, nt) || strings.Contains(nt, ns)
	if contains && sim < threshold {
		// One descriptor embedding the other is strong evidence even when
		// edit distance is poor, e.g. "GRAB HOLDINGS SINGAPORE" vs "GRAB".
		sim = threshold
	}
	d.Similarity = roundTo(sim, 1)

	if contains || sim >= threshold {
		d.Score = roundTo(weight*sim/100, 1)
		d.IsMatch = true
		d.MatchType = domain.VendorMatchFuzzy
		if contains {
			d.Reason = fmt.Sprintf("one vendor name contains the other (%.0f%% similarity)", sim)
		} else {
			d.Reason = fmt.Sprintf("vendor names are similar (%.0f%% similarity)", sim)
		}
		return d
	}

	d.Reason = fmt.Sprintf("vendor names differ (%.0f%% similarity)", sim)
	return d
}

// similarityScore is the better of character-level and token-level
// similarity, 0-100. Character similarity handles typos; token overlap
// handles reordered or partially shared words.
func similarityScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return math.Max(levenshteinSimilarity(a, b), tokenOverlap(a, b))
}

func levenshteinSimilarity(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 100
	}
	dist := levenshtein(ra, rb)
	return (1 - float64(dist)/float64(longest)) * 100
}

// levenshtein computes edit distance with the two-row dynamic programming
// formulation.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// tokenOverlap is the share of the smaller token set also present in the
// larger one, 0-100.
func tokenOverlap(a, b string) float64 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if len(ta) > len(tb) {
		ta, tb = tb, ta
	}
	set := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		set[t] = struct{}{}
	}
	shared := 0
	for _, t := range ta {
		if _, ok := set[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ta)) * 100
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func roundTo(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}
