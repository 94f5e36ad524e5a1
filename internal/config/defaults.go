package config

// Built-in preset names.
const (
	PresetWebStandard    = "web-standard"
	PresetHighQuality    = "high-quality"
	PresetMaxCompression = "max-compression"
	PresetCustom         = "custom"
)

// ResolutionOriginal keeps the source dimensions.
const ResolutionOriginal = "original"

// Default returns the baseline configuration used before a config file or
// environment overrides are applied.
func Default() Config {
	return Config{
		Server: Server{
			Host:    "0.0.0.0",
			Port:    5001,
			Debug:   false,
			BaseURL: "http://localhost:5001",
		},
		Paths: Paths{
			UploadDir: "~/.local/share/webmill/uploads",
			OutputDir: "~/.local/share/webmill/outputs",
			LogDir:    "~/.local/share/webmill/logs",
		},
		Conversion: Conversion{
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
			SupportedFormats: []string{
				".mp4", ".avi", ".mov", ".mkv", ".wmv", ".flv", ".webm",
			},
			MaxConcurrentJobs: 0,
			DefaultPreset:     PresetWebStandard,
			Defaults: SettingValues{
				Quality:    32,
				Bitrate:    1000,
				Resolution: ResolutionOriginal,
				FrameRate:  30,
				TwoPass:    false,
			},
			Presets: DefaultPresets(),
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

// DefaultPresets returns the built-in preset table.
func DefaultPresets() map[string]SettingValues {
	return map[string]SettingValues{
		PresetWebStandard: {
			Quality:    32,
			Bitrate:    2000,
			Resolution: ResolutionOriginal,
			FrameRate:  30,
			TwoPass:    false,
		},
		PresetHighQuality: {
			Quality:    18,
			Bitrate:    4000,
			Resolution: "1920x1080",
			FrameRate:  30,
			TwoPass:    true,
		},
		PresetMaxCompression: {
			Quality:    45,
			Bitrate:    1000,
			Resolution: "854x480",
			FrameRate:  24,
			TwoPass:    true,
		},
	}
}
