package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration values and aggregates every failure so a
// broken file reports all problems at once.
func (c *Config) Validate() error {
	var problems []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.Host == "" {
		problems = append(problems, errors.New("server.host must not be empty"))
	}

	if c.Paths.UploadDir == "" {
		problems = append(problems, errors.New("paths.upload_dir must not be empty"))
	}
	if c.Paths.OutputDir == "" {
		problems = append(problems, errors.New("paths.output_dir must not be empty"))
	}
	if c.Paths.UploadDir != "" && c.Paths.UploadDir == c.Paths.OutputDir {
		problems = append(problems, errors.New("paths.upload_dir and paths.output_dir must differ"))
	}

	if len(c.Conversion.SupportedFormats) == 0 {
		problems = append(problems, errors.New("conversion.supported_formats must not be empty"))
	}
	if c.Conversion.MaxConcurrentJobs < 0 {
		problems = append(problems, fmt.Errorf("conversion.max_concurrent_jobs must not be negative, got %d", c.Conversion.MaxConcurrentJobs))
	}

	if preset := c.Conversion.DefaultPreset; preset != "" && preset != PresetCustom {
		if _, ok := c.Conversion.Presets[preset]; !ok {
			problems = append(problems, fmt.Errorf("conversion.default_preset %q is not a configured preset", preset))
		}
	}

	for name, values := range c.Conversion.Presets {
		if values.Quality < 0 || values.Quality > 63 {
			problems = append(problems, fmt.Errorf("preset %q quality must be between 0 and 63, got %d", name, values.Quality))
		}
		if values.Bitrate <= 0 {
			problems = append(problems, fmt.Errorf("preset %q bitrate must be positive, got %d", name, values.Bitrate))
		}
		if values.FrameRate <= 0 {
			problems = append(problems, fmt.Errorf("preset %q frame_rate must be positive, got %d", name, values.FrameRate))
		}
	}

	if defaults := c.Conversion.Defaults; defaults.Quality < 0 || defaults.Quality > 63 {
		problems = append(problems, fmt.Errorf("defaults.quality must be between 0 and 63, got %d", defaults.Quality))
	}
	if c.Conversion.Defaults.Bitrate <= 0 {
		problems = append(problems, fmt.Errorf("defaults.bitrate must be positive, got %d", c.Conversion.Defaults.Bitrate))
	}
	if c.Conversion.Defaults.FrameRate <= 0 {
		problems = append(problems, fmt.Errorf("defaults.frame_rate must be positive, got %d", c.Conversion.Defaults.FrameRate))
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level))
	}

	if len(problems) == 0 {
		return nil
	}

	messages := make([]string, 0, len(problems))
	for _, problem := range problems {
		messages = append(messages, problem.Error())
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
}
