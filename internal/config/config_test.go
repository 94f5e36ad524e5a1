package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WEBMILL_CONFIG", "BACKEND_HOST", "BACKEND_PORT", "BACKEND_DEBUG",
		"API_BASE_URL", "UPLOAD_DIR", "OUTPUT_DIR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnvOverrides(t)

	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected missing config file, resolved %s", resolved)
	}
	if cfg.Server.Port != 5001 {
		t.Fatalf("expected default port 5001, got %d", cfg.Server.Port)
	}
	if cfg.Conversion.Defaults.Quality != 32 || cfg.Conversion.Defaults.Bitrate != 1000 {
		t.Fatalf("unexpected default settings: %+v", cfg.Conversion.Defaults)
	}
	if cfg.Conversion.Defaults.TwoPass {
		t.Fatal("default two_pass should be false")
	}
	if _, ok := cfg.Conversion.Presets[PresetWebStandard]; !ok {
		t.Fatal("built-in presets missing")
	}
}

func TestLoadParsesFileValues(t *testing.T) {
	clearEnvOverrides(t)

	dir := t.TempDir()
	path := writeConfig(t, `
[server]
host = "127.0.0.1"
port = 8080

[paths]
upload_dir = "`+filepath.Join(dir, "up")+`"
output_dir = "`+filepath.Join(dir, "out")+`"
log_dir = "`+filepath.Join(dir, "logs")+`"

[conversion]
max_concurrent_jobs = 3

[logging]
format = "json"
level = "debug"
`)

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8080 {
		t.Fatalf("server values not applied: %+v", cfg.Server)
	}
	if cfg.Conversion.MaxConcurrentJobs != 3 {
		t.Fatalf("expected max_concurrent_jobs 3, got %d", cfg.Conversion.MaxConcurrentJobs)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging values not applied: %+v", cfg.Logging)
	}
}

func TestEnvOverridesBeatFileValues(t *testing.T) {
	clearEnvOverrides(t)

	path := writeConfig(t, `
[server]
host = "127.0.0.1"
port = 8080
`)
	uploadDir := filepath.Join(t.TempDir(), "env-uploads")

	t.Setenv("BACKEND_HOST", "0.0.0.0")
	t.Setenv("BACKEND_PORT", "9090")
	t.Setenv("BACKEND_DEBUG", "true")
	t.Setenv("UPLOAD_DIR", uploadDir)

	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Fatalf("BACKEND_HOST not applied, got %q", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("BACKEND_PORT not applied, got %d", cfg.Server.Port)
	}
	if !cfg.Server.Debug {
		t.Fatal("BACKEND_DEBUG not applied")
	}
	if cfg.Paths.UploadDir != uploadDir {
		t.Fatalf("UPLOAD_DIR not applied, got %q", cfg.Paths.UploadDir)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Conversion.Defaults.Bitrate = -5
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	message := err.Error()
	if !strings.Contains(message, "server.port") {
		t.Fatalf("missing port problem in %q", message)
	}
	if !strings.Contains(message, "defaults.bitrate") {
		t.Fatalf("missing bitrate problem in %q", message)
	}
}

func TestValidateRejectsUnknownDefaultPreset(t *testing.T) {
	cfg := Default()
	cfg.Conversion.DefaultPreset = "does-not-exist"
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown preset to fail validation")
	}
}

func TestSupportsFormat(t *testing.T) {
	cfg := Default()

	cases := []struct {
		ext  string
		want bool
	}{
		{".mp4", true},
		{"mp4", true},
		{".MKV", true},
		{".txt", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := cfg.SupportsFormat(tc.ext); got != tc.want {
			t.Errorf("SupportsFormat(%q) = %v, want %v", tc.ext, got, tc.want)
		}
	}
}

func TestNormalizeSupportedFormats(t *testing.T) {
	cfg := Default()
	cfg.Conversion.SupportedFormats = []string{"MP4", " .mov ", "", "avi"}
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := []string{".mp4", ".mov", ".avi"}
	if len(cfg.Conversion.SupportedFormats) != len(want) {
		t.Fatalf("got %v, want %v", cfg.Conversion.SupportedFormats, want)
	}
	for i, format := range want {
		if cfg.Conversion.SupportedFormats[i] != format {
			t.Fatalf("got %v, want %v", cfg.Conversion.SupportedFormats, want)
		}
	}
}

func TestCreateSampleWritesParseableConfig(t *testing.T) {
	clearEnvOverrides(t)

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample config not found after CreateSample")
	}
	if cfg.Server.Port != 5001 {
		t.Fatalf("sample port = %d, want 5001", cfg.Server.Port)
	}
	preset, ok := cfg.Conversion.Presets[PresetHighQuality]
	if !ok {
		t.Fatal("sample missing high-quality preset")
	}
	if preset.Quality != 18 || preset.Bitrate != 4000 || !preset.TwoPass {
		t.Fatalf("unexpected high-quality preset: %+v", preset)
	}
}

func TestPresetNamesSorted(t *testing.T) {
	cfg := Default()
	cfg.Conversion.Presets["archive"] = cfg.Conversion.Presets[PresetHighQuality]

	names := cfg.PresetNames()
	if !sort.StringsAreSorted(names) {
		t.Fatalf("preset names not sorted: %v", names)
	}
	if len(names) != 4 {
		t.Fatalf("preset names = %v", names)
	}
}
