package jspatch

import (
	"github.com/Piebald-AI/tweakcc-sub001/common"
)

// Patches returns the full strategy table in application order. Order is
// part of the contract: later patches re-locate against the text the
// earlier ones already rewrote, so index drift between patches cannot
// happen.
func Patches() []*Patch {
	return []*Patch{
		themeTablePatch(),
		thinkingVerbsPatch(),
		spinnerSymbolsPatch(),
		tokenCountDisplayPatch(),
		planModeAutoAcceptPatch(),
		swarmGatePatch(),
	}
}

// ApplyAll runs every enabled patch over the text. One failed patch is
// reported and skipped; the rest still apply. Exactly one ApplyAll pass
// may run over a given text at a time; each step assumes a single prior
// state.
func ApplyAll(text string, settings *Settings) (string, []*common.OperationResult) {
	var results []*common.OperationResult

	for _, patch := range Patches() {
		if !patch.Enabled(settings) {
			results = append(results, common.NewSkipped(patch.Name, "not configured"))
			continue
		}
		if patch.IsApplied(text) {
			// Success-as-no-op, distinct from a pattern failure.
			results = append(results, common.NewSkipped(patch.Name, "already patched"))
			continue
		}

		loc := patch.Locate(text)
		if loc == nil {
			results = append(results, common.NewSkipped(patch.Name,
				common.ErrPatternNotFound.Error()+" (unsupported bundle version?)"))
			continue
		}

		replacement := patch.Render(settings, text[loc.Start:loc.End], loc)
		patched, err := Splice(text, loc, replacement)
		if err != nil {
			results = append(results, common.NewSkipped(patch.Name, err.Error()))
			continue
		}
		text = patched
		results = append(results, common.NewApplied(patch.Name, "rewritten", 1))
	}

	return text, results
}
