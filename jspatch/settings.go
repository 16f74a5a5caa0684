package jspatch

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings supplies the user-chosen replacement values for every patch.
// The core is agnostic to how these were edited or persisted; a zero or
// missing field disables the corresponding patch.
type Settings struct {
	// Theme selects which theme identifier the fallback branch of the
	// theme table resolves to.
	Theme string `yaml:"theme"`

	// ThinkingVerbs replaces the activity-verb array shown while the
	// program is working.
	ThinkingVerbs []string `yaml:"thinkingVerbs"`

	// SpinnerSymbols replaces the spinner's frame glyphs.
	SpinnerSymbols []string `yaml:"spinnerSymbols"`

	// TokenRounding is the divisor base of the abbreviated token-count
	// display (0 disables the patch).
	TokenRounding int `yaml:"tokenRounding"`

	// PlanModeAutoAccept injects an auto-accept call into the plan mode
	// confirmation path.
	PlanModeAutoAccept bool `yaml:"planModeAutoAccept"`

	// SwarmMode flips the default of the swarm feature gate. Nil leaves
	// the bundle alone.
	SwarmMode *bool `yaml:"swarmMode"`
}

// knownThemes are the identifiers the theme table resolves; Theme must be
// one of them.
var knownThemes = map[string]int{
	"light":            0,
	"dark":             1,
	"light-daltonized": 2,
	"dark-daltonized":  3,
}

// Validate rejects value shapes no patch could render.
func (s *Settings) Validate() error {
	if s.Theme != "" {
		if _, ok := knownThemes[s.Theme]; !ok {
			return fmt.Errorf("unknown theme %q", s.Theme)
		}
	}
	if s.TokenRounding < 0 {
		return fmt.Errorf("tokenRounding must be positive, got %d", s.TokenRounding)
	}
	for i, verb := range s.ThinkingVerbs {
		if verb == "" {
			return fmt.Errorf("thinkingVerbs[%d] is empty", i)
		}
	}
	for i, sym := range s.SpinnerSymbols {
		if sym == "" {
			return fmt.Errorf("spinnerSymbols[%d] is empty", i)
		}
	}
	return nil
}

// LoadSettings reads and validates a YAML settings file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &settings, nil
}
