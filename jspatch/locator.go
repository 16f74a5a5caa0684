// Package jspatch finds and rewrites known code constructs inside a
// minified bundle. Identifier names in the bundle are auto-generated per
// build, so nothing is located by name: each locator matches a structural
// shape (literal strings, call shapes, nesting) and captures whatever
// local identifiers the replacement must reuse. The input is raw text, not
// an AST.
package jspatch

import (
	"regexp"
	"strings"
)

// LocationResult describes the byte range a patch will replace and the
// identifiers captured from the surrounding code.
type LocationResult struct {
	Start    int
	End      int
	Captures []string
}

// Locator scans the full text for one structural shape. It returns nil
// when the shape does not match or matches ambiguously; it never mutates
// the input and never weakens its own pattern.
type Locator func(text string) *LocationResult

// Patch binds a semantic target to its ordered candidate locators (newest
// bundle shape first) and the renderer producing the replacement text.
// Fallback across shapes is explicit in the Locators order, never
// generic.
type Patch struct {
	Name     string
	Marker   string
	Locators []Locator
	Enabled  func(*Settings) bool
	Render   func(*Settings, string, *LocationResult) string
}

// IsApplied reports whether the patch's completion marker is already
// present. Checked before any location attempt; an applied patch is a
// no-op, not an error.
func (p *Patch) IsApplied(text string) bool {
	return p.Marker != "" && strings.Contains(text, p.Marker)
}

// Locate tries the candidate locators in order and takes the first hit.
func (p *Patch) Locate(text string) *LocationResult {
	for _, locate := range p.Locators {
		if loc := locate(text); loc != nil {
			return loc
		}
	}
	return nil
}

func marker(name string) string {
	return "/*patched:" + name + "*/"
}

// anchorWindow bounds a search to the neighborhood of a unique literal
// string. Matching multi-megabyte bundles with an unanchored expression is
// both slow and a backtracking hazard; every locator narrows to a window
// first. Returns ok=false when the anchor is missing or appears more than
// once (ambiguous).
func anchorWindow(text, anchor string, before, after int) (int, int, bool) {
	idx := strings.Index(text, anchor)
	if idx < 0 {
		return 0, 0, false
	}
	if strings.Index(text[idx+len(anchor):], anchor) >= 0 {
		return 0, 0, false
	}
	lo := idx - before
	if lo < 0 {
		lo = 0
	}
	hi := idx + len(anchor) + after
	if hi > len(text) {
		hi = len(text)
	}
	return lo, hi, true
}

// matchWindow runs re inside [lo:hi) and maps the match back to absolute
// offsets. Returns nil when the window holds no match or more than one.
func matchWindow(text string, lo, hi int, re *regexp.Regexp) *LocationResult {
	window := text[lo:hi]
	matches := re.FindAllStringSubmatchIndex(window, 2)
	if len(matches) != 1 {
		return nil
	}
	m := matches[0]
	loc := &LocationResult{Start: lo + m[0], End: lo + m[1]}
	for i := 2; i < len(m); i += 2 {
		if m[i] < 0 {
			loc.Captures = append(loc.Captures, "")
			continue
		}
		loc.Captures = append(loc.Captures, window[m[i]:m[i+1]])
	}
	return loc
}

// anchoredLocator is the common single-shape case: one unique anchor
// literal, one expression run in the window around it.
func anchoredLocator(anchor string, before, after int, re *regexp.Regexp) Locator {
	return func(text string) *LocationResult {
		lo, hi, ok := anchorWindow(text, anchor, before, after)
		if !ok {
			return nil
		}
		return matchWindow(text, lo, hi, re)
	}
}

// identifier is the piece every shape expression reuses for auto-generated
// names.
const identifier = `[A-Za-z_$][\w$]*`

func quoteList(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(strings.ReplaceAll(item, `\`, `\\`), `"`, `\"`))
		b.WriteByte('"')
	}
	return b.String()
}
