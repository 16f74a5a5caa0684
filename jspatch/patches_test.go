package jspatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureBundle reproduces the minified shapes every patch targets, spread
// out the way a bundler would interleave them.
const fixtureBundle = `var j6=1;` +
	`function aW(B){switch(B){case"light":return fP1;case"dark":return kJ2;` +
	`case"light-daltonized":return vN3;case"dark-daltonized":return xQ4;default:return kJ2}}` +
	`var Uw=["Accomplishing","Actualizing","Baking","Brewing","Calculating"];` +
	`var kw=["✢","✳","✶","✻","✽"],kB=120;` +
	`function p0(Q){return Math.round(Q.tokens/1e3)+"k"+" tokens"}` +
	`var t9="plan mode";function y2(Z){if(Z.mode==="plan"){rY(Z);uH1()}}` +
	`var s8=Gw("swarm_mode",!1);`

func fullSettings() *Settings {
	on := true
	return &Settings{
		Theme:              "light-daltonized",
		ThinkingVerbs:      []string{"Pondering", "Mulling"},
		SpinnerSymbols:     []string{"◜", "◝", "◞", "◟"},
		TokenRounding:      1000,
		PlanModeAutoAccept: true,
		SwarmMode:          &on,
	}
}

func TestApplyAllFullBundle(t *testing.T) {
	out, results := ApplyAll(fixtureBundle, fullSettings())

	require.Len(t, results, 6)
	for _, r := range results {
		assert.True(t, r.Applied, "patch %s: %s", r.Name, r.Message)
	}

	// Theme: every case keeps its original identifier, the fallback now
	// resolves to the chosen theme's.
	assert.Contains(t, out,
		`switch(B){case"light":return fP1;case"dark":return kJ2;`+
			`case"light-daltonized":return vN3;case"dark-daltonized":return xQ4;`+
			`default:return vN3}/*patched:theme-table*/`)

	assert.Contains(t, out, `["Pondering","Mulling"]/*patched:thinking-verbs*/`)
	assert.NotContains(t, out, "Actualizing")

	assert.Contains(t, out, `["◜","◝","◞","◟"]/*patched:spinner-symbols*/`)

	// The counter expression is captured and reused, only the divisor
	// changes.
	assert.Contains(t, out, `Math.round(Q.tokens/1000)+"k"/*patched:token-count-display*/`)
	assert.Contains(t, out, `+" tokens"`)

	assert.Contains(t, out,
		`if(Z.mode==="plan"){rY(Z);Z.autoAcceptEdits=!0;/*patched:plan-mode-auto-accept*/uH1()}`)

	assert.Contains(t, out, `Gw("swarm_mode",!0)/*patched:swarm-gate*/`)
	assert.NotContains(t, out, `"swarm_mode",!1`)
}

func TestApplyAllIsIdempotent(t *testing.T) {
	once, _ := ApplyAll(fixtureBundle, fullSettings())
	twice, results := ApplyAll(once, fullSettings())

	assert.Equal(t, once, twice)
	for _, r := range results {
		assert.False(t, r.Applied)
		assert.Equal(t, "already patched", r.Message, "patch %s", r.Name)
	}
}

func TestApplyAllNothingConfigured(t *testing.T) {
	out, results := ApplyAll(fixtureBundle, &Settings{})

	assert.Equal(t, fixtureBundle, out)
	require.Len(t, results, 6)
	for _, r := range results {
		assert.False(t, r.Applied)
		assert.Equal(t, "not configured", r.Message)
	}
}

func TestApplyAllPatternFailureContinues(t *testing.T) {
	// A bundle without a spinner array: that one patch reports failure,
	// everything else still lands.
	bundle := strings.Replace(fixtureBundle, `var kw=["✢","✳","✶","✻","✽"],kB=120;`, "", 1)

	out, results := ApplyAll(bundle, fullSettings())

	byName := make(map[string]bool, len(results))
	for _, r := range results {
		byName[r.Name] = r.Applied
	}
	assert.False(t, byName["spinner-symbols"])
	assert.True(t, byName["theme-table"])
	assert.True(t, byName["thinking-verbs"])
	assert.True(t, byName["swarm-gate"])
	assert.Contains(t, out, `/*patched:theme-table*/`)
	assert.NotContains(t, out, `/*patched:spinner-symbols*/`)
}

func TestThemeLegacyShape(t *testing.T) {
	// Older bundles order the dark cases first; the renderer still emits
	// the canonical order and resolves the right identifier.
	bundle := `function aW(B){switch(B){case"dark":return kJ2;case"light":return fP1;` +
		`case"dark-daltonized":return xQ4;case"light-daltonized":return vN3;default:return kJ2}}`

	out, results := ApplyAll(bundle, &Settings{Theme: "light"})

	byName := make(map[string]bool, len(results))
	for _, r := range results {
		byName[r.Name] = r.Applied
	}
	assert.True(t, byName["theme-table"])
	assert.Contains(t, out,
		`switch(B){case"light":return fP1;case"dark":return kJ2;`+
			`case"light-daltonized":return vN3;case"dark-daltonized":return xQ4;`+
			`default:return fP1}/*patched:theme-table*/`)
}

func TestPlanModeCaptureMismatch(t *testing.T) {
	// The callback receives a different object than the one compared;
	// the locator must refuse the shape instead of patching it.
	bundle := `var t9="plan mode";function y2(Z,W){if(Z.mode==="plan"){rY(W);uH1()}}`

	loc := planModeLocator(bundle)
	assert.Nil(t, loc)

	out, results := ApplyAll(bundle, &Settings{PlanModeAutoAccept: true})
	assert.Equal(t, bundle, out)
	for _, r := range results {
		if r.Name == "plan-mode-auto-accept" {
			assert.False(t, r.Applied)
			assert.Contains(t, r.Message, "pattern")
		}
	}
}

func TestSwarmGateDisable(t *testing.T) {
	off := false
	bundle := `var s8=Gw("swarm_mode",!0);`

	out, results := ApplyAll(bundle, &Settings{SwarmMode: &off})

	byName := make(map[string]bool, len(results))
	for _, r := range results {
		byName[r.Name] = r.Applied
	}
	assert.True(t, byName["swarm-gate"])
	assert.Contains(t, out, `Gw("swarm_mode",!1)/*patched:swarm-gate*/`)
}
