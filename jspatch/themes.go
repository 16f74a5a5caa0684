package jspatch

import (
	"fmt"
	"regexp"
)

// The theme table compiles to a switch over the configured theme name.
// Identifier names churn per build; the case labels are the stable
// landmark, and "dark-daltonized" is unique enough to anchor on.
var (
	themeSwitchRe = regexp.MustCompile(
		`switch\((` + identifier + `)\)\{` +
			`case"light":return (` + identifier + `);` +
			`case"dark":return (` + identifier + `);` +
			`case"light-daltonized":return (` + identifier + `);` +
			`case"dark-daltonized":return (` + identifier + `);` +
			`default:return (` + identifier + `)\}`)

	// Older bundles emit the dark cases first.
	themeSwitchLegacyRe = regexp.MustCompile(
		`switch\((` + identifier + `)\)\{` +
			`case"dark":return (` + identifier + `);` +
			`case"light":return (` + identifier + `);` +
			`case"dark-daltonized":return (` + identifier + `);` +
			`case"light-daltonized":return (` + identifier + `);` +
			`default:return (` + identifier + `)\}`)
)

// themeCapture maps a theme name to its capture index for each shape.
var (
	themeCaptureCurrent = map[string]int{"light": 1, "dark": 2, "light-daltonized": 3, "dark-daltonized": 4}
	themeCaptureLegacy  = map[string]int{"dark": 1, "light": 2, "dark-daltonized": 3, "light-daltonized": 4}
)

func themeTablePatch() *Patch {
	name := "theme-table"
	return &Patch{
		Name:   name,
		Marker: marker(name),
		Enabled: func(s *Settings) bool {
			return s.Theme != ""
		},
		Locators: []Locator{
			anchoredLocator(`case"dark-daltonized"`, 512, 512, themeSwitchRe),
			anchoredLocator(`case"dark-daltonized"`, 512, 512, themeSwitchLegacyRe),
		},
		Render: func(s *Settings, matched string, loc *LocationResult) string {
			capture := themeCaptureCurrent
			if themeSwitchLegacyRe.MatchString(matched) && !themeSwitchRe.MatchString(matched) {
				capture = themeCaptureLegacy
			}
			// The fallback branch resolves to the chosen theme's existing
			// identifier; every case keeps calling into the bundle's own
			// theme objects rather than anything hardcoded here.
			chosen := loc.Captures[capture[s.Theme]]
			return fmt.Sprintf(
				`switch(%s){case"light":return %s;case"dark":return %s;`+
					`case"light-daltonized":return %s;case"dark-daltonized":return %s;`+
					`default:return %s}%s`,
				loc.Captures[0],
				loc.Captures[capture["light"]],
				loc.Captures[capture["dark"]],
				loc.Captures[capture["light-daltonized"]],
				loc.Captures[capture["dark-daltonized"]],
				chosen,
				marker(name))
		},
	}
}
