package jspatch

import (
	"fmt"
	"regexp"
)

// The abbreviated token counter renders as round(n/1e3) with a "k"
// suffix. The divisor literal is the patch target; the counter expression
// itself is captured and reused so the replacement keeps reading the same
// state the bundle already computes.
var tokenCountRe = regexp.MustCompile(
	`Math\.round\((` + identifier + `(?:\.` + identifier + `)?)/1e3\)\+"k"`)

func tokenCountDisplayPatch() *Patch {
	name := "token-count-display"
	return &Patch{
		Name:   name,
		Marker: marker(name),
		Enabled: func(s *Settings) bool {
			return s.TokenRounding > 0
		},
		Locators: []Locator{
			anchoredLocator(`" tokens"`, 2048, 2048, tokenCountRe),
		},
		Render: func(s *Settings, matched string, loc *LocationResult) string {
			return fmt.Sprintf(`Math.round(%s/%d)+"k"%s`,
				loc.Captures[0], s.TokenRounding, marker(name))
		},
	}
}
