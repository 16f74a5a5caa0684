package jspatch

import "regexp"

// The activity verbs ship as one large array of gerunds. The array is
// located by shape (a run of capitalized "...ing" string literals) inside
// a window around one verb that appears nowhere else in the bundle.
var thinkingVerbArrayRe = regexp.MustCompile(
	`\[("[A-Z][a-z]+ing"(?:,"[A-Z][a-z]+ing")+)\]`)

func thinkingVerbsPatch() *Patch {
	name := "thinking-verbs"
	return &Patch{
		Name:   name,
		Marker: marker(name),
		Enabled: func(s *Settings) bool {
			return len(s.ThinkingVerbs) > 0
		},
		Locators: []Locator{
			anchoredLocator(`"Actualizing"`, 4096, 16384, thinkingVerbArrayRe),
		},
		Render: func(s *Settings, matched string, loc *LocationResult) string {
			return "[" + quoteList(s.ThinkingVerbs) + "]" + marker(name)
		},
	}
}

// Spinner frames are a short array of single glyphs next to the interval
// constant. "✢" is unique to the spinner frame set.
var spinnerArrayRe = regexp.MustCompile(
	`\[("[^"\\]{1,3}"(?:,"[^"\\]{1,3}"){2,})\]`)

func spinnerSymbolsPatch() *Patch {
	name := "spinner-symbols"
	return &Patch{
		Name:   name,
		Marker: marker(name),
		Enabled: func(s *Settings) bool {
			return len(s.SpinnerSymbols) > 0
		},
		Locators: []Locator{
			anchoredLocator(`"✢"`, 128, 256, spinnerArrayRe),
		},
		Render: func(s *Settings, matched string, loc *LocationResult) string {
			return "[" + quoteList(s.SpinnerSymbols) + "]" + marker(name)
		},
	}
}
