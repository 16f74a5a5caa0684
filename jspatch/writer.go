package jspatch

import (
	"fmt"
	"sort"

	"github.com/Piebald-AI/tweakcc-sub001/common"
)

// Splice performs the byte-range substitution text[:Start] + replacement +
// text[End:], validating the range before touching anything so a stale or
// drifted location cannot silently corrupt the output.
func Splice(text string, loc *LocationResult, replacement string) (string, error) {
	if loc == nil {
		return "", common.ErrPatternNotFound
	}
	if loc.Start < 0 || loc.End < loc.Start || loc.End > len(text) {
		return "", fmt.Errorf("%w: splice range %d..%d against %d bytes of text",
			common.ErrSizeMismatch, loc.Start, loc.End, len(text))
	}
	return text[:loc.Start] + replacement + text[loc.End:], nil
}

// SpliceAll applies several locations of the same scan to one text. Within
// a single scan earlier substitutions shift every later index, so the
// locations are applied in descending start order; overlapping ranges are
// rejected.
func SpliceAll(text string, locs []*LocationResult, render func(*LocationResult) string) (string, error) {
	sorted := make([]*LocationResult, len(locs))
	copy(sorted, locs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })

	prevStart := len(text)
	for _, loc := range sorted {
		if loc.End > prevStart {
			return "", fmt.Errorf("%w: overlapping splice ranges", common.ErrSizeMismatch)
		}
		patched, err := Splice(text, loc, render(loc))
		if err != nil {
			return "", err
		}
		text = patched
		prevStart = loc.Start
	}
	return text, nil
}
