package config

import "strings"

// normalize cleans string fields and expands filesystem paths in place.
func (c *Config) normalize() error {
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")

	c.Conversion.FFmpegBinary = strings.TrimSpace(c.Conversion.FFmpegBinary)
	c.Conversion.FFprobeBinary = strings.TrimSpace(c.Conversion.FFprobeBinary)
	c.Conversion.DefaultPreset = strings.ToLower(strings.TrimSpace(c.Conversion.DefaultPreset))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	formats := make([]string, 0, len(c.Conversion.SupportedFormats))
	for _, format := range c.Conversion.SupportedFormats {
		format = strings.ToLower(strings.TrimSpace(format))
		if format == "" {
			continue
		}
		if !strings.HasPrefix(format, ".") {
			format = "." + format
		}
		formats = append(formats, format)
	}
	c.Conversion.SupportedFormats = formats

	if c.Conversion.Presets == nil {
		c.Conversion.Presets = DefaultPresets()
	}

	for _, pathField := range []*string{
		&c.Paths.UploadDir,
		&c.Paths.OutputDir,
		&c.Paths.LogDir,
	} {
		expanded, err := expandPath(*pathField)
		if err != nil {
			return err
		}
		*pathField = expanded
	}

	return nil
}
