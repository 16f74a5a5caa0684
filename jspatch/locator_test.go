package jspatch

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnchorWindow(t *testing.T) {
	text := "aaaa UNIQUE bbbb"

	lo, hi, ok := anchorWindow(text, "UNIQUE", 2, 3)
	require.True(t, ok)
	assert.Equal(t, 3, lo)
	assert.Equal(t, 14, hi)

	// Bounds clamp to the text.
	lo, hi, ok = anchorWindow(text, "UNIQUE", 1000, 1000)
	require.True(t, ok)
	assert.Equal(t, 0, lo)
	assert.Equal(t, len(text), hi)
}

func TestAnchorWindowMissing(t *testing.T) {
	_, _, ok := anchorWindow("no such literal here", "UNIQUE", 10, 10)
	assert.False(t, ok)
}

func TestAnchorWindowAmbiguous(t *testing.T) {
	_, _, ok := anchorWindow("UNIQUE and UNIQUE again", "UNIQUE", 10, 10)
	assert.False(t, ok)
}

func TestMatchWindow(t *testing.T) {
	re := regexp.MustCompile(`(\w+)=(\d+)`)
	text := "junk junk x=42 junk"

	loc := matchWindow(text, 5, len(text), re)
	require.NotNil(t, loc)
	assert.Equal(t, 10, loc.Start)
	assert.Equal(t, 14, loc.End)
	assert.Equal(t, "x=42", text[loc.Start:loc.End])
	assert.Equal(t, []string{"x", "42"}, loc.Captures)
}

func TestMatchWindowAmbiguous(t *testing.T) {
	re := regexp.MustCompile(`(\w+)=(\d+)`)
	assert.Nil(t, matchWindow("x=1 y=2", 0, 7, re))
}

func TestMatchWindowNoMatch(t *testing.T) {
	re := regexp.MustCompile(`(\w+)=(\d+)`)
	assert.Nil(t, matchWindow("nothing numeric", 0, 15, re))
}

func TestMatchWindowUnmatchedGroup(t *testing.T) {
	re := regexp.MustCompile(`a(b)?(c)`)
	loc := matchWindow("ac", 0, 2, re)
	require.NotNil(t, loc)
	assert.Equal(t, []string{"", "c"}, loc.Captures)
}

func TestPatchLocateOrder(t *testing.T) {
	first := func(string) *LocationResult { return &LocationResult{Start: 1, End: 2} }
	second := func(string) *LocationResult { return &LocationResult{Start: 3, End: 4} }
	miss := func(string) *LocationResult { return nil }

	p := &Patch{Locators: []Locator{miss, first, second}}
	loc := p.Locate("whatever")
	require.NotNil(t, loc)
	assert.Equal(t, 1, loc.Start, "first matching locator wins")

	p = &Patch{Locators: []Locator{miss, miss}}
	assert.Nil(t, p.Locate("whatever"))
}

func TestPatchIsApplied(t *testing.T) {
	p := &Patch{Name: "x", Marker: marker("x")}
	assert.False(t, p.IsApplied("plain text"))
	assert.True(t, p.IsApplied("text /*patched:x*/ text"))

	unmarked := &Patch{Name: "y"}
	assert.False(t, unmarked.IsApplied("/*patched:y*/"))
}

func TestQuoteList(t *testing.T) {
	assert.Equal(t, `"a","b"`, quoteList([]string{"a", "b"}))
	assert.Equal(t, ``, quoteList(nil))
	assert.Equal(t, `"say \"hi\"","back\\slash"`, quoteList([]string{`say "hi"`, `back\slash`}))
}
