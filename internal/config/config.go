package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains the HTTP listener configuration.
type Server struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Debug   bool   `toml:"debug"`
	BaseURL string `toml:"base_url"`
}

// Paths contains directory configuration.
type Paths struct {
	UploadDir string `toml:"upload_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// SettingValues holds one set of encoding parameters, used both for the
// configured defaults and for named presets.
type SettingValues struct {
	Quality    int    `toml:"quality"`
	Bitrate    int    `toml:"bitrate"`
	Resolution string `toml:"resolution"`
	FrameRate  int    `toml:"frame_rate"`
	TwoPass    bool   `toml:"two_pass"`
}

// Conversion contains encoder and settings configuration.
type Conversion struct {
	FFmpegBinary      string                   `toml:"ffmpeg_binary"`
	FFprobeBinary     string                   `toml:"ffprobe_binary"`
	SupportedFormats  []string                 `toml:"supported_formats"`
	MaxConcurrentJobs int                      `toml:"max_concurrent_jobs"`
	DefaultPreset     string                   `toml:"default_preset"`
	Defaults          SettingValues            `toml:"defaults"`
	Presets           map[string]SettingValues `toml:"presets"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Webmill.
type Config struct {
	Server     Server     `toml:"server"`
	Paths      Paths      `toml:"paths"`
	Conversion Conversion `toml:"conversion"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/webmill/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// variable overrides are applied after the file is read. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("WEBMILL_CONFIG"))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("webmill.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// applyEnvOverrides layers the environment variable surface over file values.
func (c *Config) applyEnvOverrides() {
	if host := strings.TrimSpace(os.Getenv("BACKEND_HOST")); host != "" {
		c.Server.Host = host
	}
	if port := strings.TrimSpace(os.Getenv("BACKEND_PORT")); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			c.Server.Port = parsed
		}
	}
	if debug := strings.TrimSpace(os.Getenv("BACKEND_DEBUG")); debug != "" {
		c.Server.Debug = strings.EqualFold(debug, "true")
	}
	if base := strings.TrimSpace(os.Getenv("API_BASE_URL")); base != "" {
		c.Server.BaseURL = base
	}
	if dir := strings.TrimSpace(os.Getenv("UPLOAD_DIR")); dir != "" {
		c.Paths.UploadDir = dir
	}
	if dir := strings.TrimSpace(os.Getenv("OUTPUT_DIR")); dir != "" {
		c.Paths.OutputDir = dir
	}
}

// Bind returns the host:port address the HTTP server listens on.
func (c *Config) Bind() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// EnsureDirectories creates the upload, output, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.UploadDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	if binary := strings.TrimSpace(c.Conversion.FFmpegBinary); binary != "" {
		return binary
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name.
func (c *Config) FFprobeBinary() string {
	if binary := strings.TrimSpace(c.Conversion.FFprobeBinary); binary != "" {
		return binary
	}
	return "ffprobe"
}

// SupportsFormat reports whether an input file extension is accepted for
// upload. The comparison is case-insensitive and tolerant of a missing dot.
func (c *Config) SupportsFormat(ext string) bool {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return false
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, supported := range c.Conversion.SupportedFormats {
		if strings.EqualFold(strings.TrimSpace(supported), ext) {
			return true
		}
	}
	return false
}

// PresetNames returns the configured preset names in sorted order.
func (c *Config) PresetNames() []string {
	names := make([]string, 0, len(c.Conversion.Presets))
	for name := range c.Conversion.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
