// Package match implements the multi-factor transaction match scoring engine.
package match

import (
	"regexp"
	"strings"
)

// Patterns applied during vendor normalization, in order. Statement
// descriptors carry store numbers, card-network asterisks, and corporate
// suffixes that are noise for identity comparison.
var (
	corpSuffixRe   = regexp.MustCompile(`\s+(INC|LLC|LTD|CORP|CO|COMPANY|CORPORATION)\.?$`)
	storeNumberRe  = regexp.MustCompile(`\s*#\d+$`)
	trailingNumRe  = regexp.MustCompile(`\s*-\s*\d+$`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	edgePunctRe    = regexp.MustCompile(`^[^0-9A-Z]+|[^0-9A-Z]+$`)
)

// NormalizeVendor canonicalizes a vendor string for comparison: uppercased,
// trimmed, punctuation noise removed, trailing store/location numbers
// stripped. Deterministic and total; the empty string normalizes to itself.
func NormalizeVendor(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))

	n = strings.ReplaceAll(n, "*", " ")
	n = corpSuffixRe.ReplaceAllString(n, "")
	n = storeNumberRe.ReplaceAllString(n, "")
	n = trailingNumRe.ReplaceAllString(n, "")
	n = whitespaceRe.ReplaceAllString(n, " ")
	n = edgePunctRe.ReplaceAllString(n, "")

	return strings.TrimSpace(n)
}
