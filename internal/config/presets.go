package config

import "fmt"

// Preset represents a named board setup.
type Preset string

const (
	PresetQuick    Preset = "quick"
	PresetClassic  Preset = "classic"
	PresetMarathon Preset = "marathon"
	PresetCustom   Preset = "custom" // keep size and win value as configured
)

// Presets lists the selectable presets.
var Presets = []Preset{PresetQuick, PresetClassic, PresetMarathon, PresetCustom}

// ParsePreset converts a flag value to a Preset.
func ParsePreset(s string) (Preset, error) {
	for _, p := range Presets {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown preset %q", ErrInvalid, s)
}

// ApplyPreset modifies the game section for a preset.
func ApplyPreset(cfg *Config, preset Preset) {
	cfg.Game.Preset = preset
	switch preset {
	case PresetQuick:
		cfg.Game.Size = 3
		cfg.Game.WinValue = 256
	case PresetClassic:
		cfg.Game.Size = 4
		cfg.Game.WinValue = 2048
	case PresetMarathon:
		cfg.Game.Size = 5
		cfg.Game.WinValue = 8192
	}
}
