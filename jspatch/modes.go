package jspatch

import (
	"fmt"
	"regexp"
)

// Plan-mode confirmation path: the state object is compared against the
// "plan" literal and handed to a locally-scoped callback. Both identifiers
// are captured so the injected statement calls the existing callback
// rather than guessing a name. RE2 has no backreferences, so the
// state-variable consistency check happens in the locator instead of the
// pattern.
var planModeRe = regexp.MustCompile(
	`if\((` + identifier + `)\.mode==="plan"\)\{(` + identifier + `)\((` + identifier + `)\);`)

func planModeLocator(text string) *LocationResult {
	lo, hi, ok := anchorWindow(text, `"plan mode"`, 8192, 8192)
	if !ok {
		return nil
	}
	loc := matchWindow(text, lo, hi, planModeRe)
	if loc == nil {
		return nil
	}
	// The callback must receive the same state object that was compared;
	// anything else means the shape matched something unrelated.
	if loc.Captures[0] != loc.Captures[2] {
		return nil
	}
	return loc
}

func planModeAutoAcceptPatch() *Patch {
	name := "plan-mode-auto-accept"
	return &Patch{
		Name:   name,
		Marker: marker(name),
		Enabled: func(s *Settings) bool {
			return s.PlanModeAutoAccept
		},
		Locators: []Locator{planModeLocator},
		Render: func(s *Settings, matched string, loc *LocationResult) string {
			state, callback := loc.Captures[0], loc.Captures[1]
			return fmt.Sprintf(`if(%s.mode==="plan"){%s(%s);%s.autoAcceptEdits=!0;%s`,
				state, callback, state, state, marker(name))
		},
	}
}

// The swarm feature gate is a lookup call with a boolean default. The gate
// key literal is stable across builds; the lookup function's name is not
// and gets captured.
var swarmGateRe = regexp.MustCompile(
	`(` + identifier + `)\("swarm_mode",!([01])\)`)

func swarmGatePatch() *Patch {
	name := "swarm-gate"
	return &Patch{
		Name:   name,
		Marker: marker(name),
		Enabled: func(s *Settings) bool {
			return s.SwarmMode != nil
		},
		Locators: []Locator{
			anchoredLocator(`"swarm_mode"`, 256, 256, swarmGateRe),
		},
		Render: func(s *Settings, matched string, loc *LocationResult) string {
			def := "!1"
			if *s.SwarmMode {
				def = "!0"
			}
			return fmt.Sprintf(`%s("swarm_mode",%s)%s`, loc.Captures[0], def, marker(name))
		},
	}
}
