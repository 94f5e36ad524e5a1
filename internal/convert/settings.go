package convert

import (
	"encoding/json"
	"strings"

	"webmill/internal/config"
)

// Settings holds the fully resolved encoding parameters for one conversion.
type Settings struct {
	Quality    int
	Bitrate    int
	Resolution string
	FrameRate  int
	Preset     string
	TwoPass    bool
}

// RawSettings mirrors the JSON settings payload accepted by the API. Pointer
// fields distinguish values the caller actually supplied from absent keys so
// explicit values can override preset values.
type RawSettings struct {
	Quality    *int    `json:"quality"`
	Bitrate    *int    `json:"bitrate"`
	Resolution *string `json:"resolution"`
	FrameRate  *int    `json:"frameRate"`
	Preset     *string `json:"preset"`
	TwoPass    *bool   `json:"twoPass"`
}

// ParseRawSettings decodes a settings JSON string. Malformed or empty input
// yields the zero value, which resolves to the configured defaults.
func ParseRawSettings(payload string) RawSettings {
	var raw RawSettings
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return raw
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return RawSettings{}
	}
	return raw
}

// ResolveSettings layers values onto the configured defaults: a named preset
// replaces the defaults wholesale, then explicitly supplied fields win over
// the preset. An unknown preset name contributes nothing.
func ResolveSettings(cfg *config.Config, raw RawSettings) Settings {
	defaults := cfg.Conversion.Defaults
	resolved := Settings{
		Quality:    defaults.Quality,
		Bitrate:    defaults.Bitrate,
		Resolution: defaults.Resolution,
		FrameRate:  defaults.FrameRate,
		Preset:     cfg.Conversion.DefaultPreset,
		TwoPass:    defaults.TwoPass,
	}

	if raw.Preset != nil {
		resolved.Preset = strings.ToLower(strings.TrimSpace(*raw.Preset))
	}

	if resolved.Preset != "" && resolved.Preset != config.PresetCustom {
		if preset, ok := cfg.Conversion.Presets[resolved.Preset]; ok {
			resolved.Quality = preset.Quality
			resolved.Bitrate = preset.Bitrate
			resolved.Resolution = preset.Resolution
			resolved.FrameRate = preset.FrameRate
			resolved.TwoPass = preset.TwoPass
		}
	}

	if raw.Quality != nil {
		resolved.Quality = *raw.Quality
	}
	if raw.Bitrate != nil {
		resolved.Bitrate = *raw.Bitrate
	}
	if raw.Resolution != nil {
		resolved.Resolution = strings.TrimSpace(*raw.Resolution)
	}
	if raw.FrameRate != nil {
		resolved.FrameRate = *raw.FrameRate
	}
	if raw.TwoPass != nil {
		resolved.TwoPass = *raw.TwoPass
	}

	return resolved
}
