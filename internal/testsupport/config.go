package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"webmill/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Server.Host = "127.0.0.1"
	cfgVal.Server.Port = 0
	cfgVal.Paths.UploadDir = filepath.Join(base, "uploads")
	cfgVal.Paths.OutputDir = filepath.Join(base, "outputs")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return builder.cfg
}

// WithMaxConcurrentJobs caps simultaneous conversions on the test config.
func WithMaxConcurrentJobs(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Conversion.MaxConcurrentJobs = limit
	}
}

// WithScriptedBinaries installs stub executables with caller-provided shell
// bodies and prepends them to PATH. Bodies must include the shebang line.
func WithScriptedBinaries(scripts map[string]string) ConfigOption {
	return func(b *configBuilder) {
		installStubs(b.t, filepath.Join(b.baseDir, "bin"), scripts)
	}
}

// StubBinaries installs stub executables outside the config builder. It is
// used by tests that need scripted ffmpeg or ffprobe behavior without a
// full config.
func StubBinaries(t testing.TB, scripts map[string]string) {
	t.Helper()
	installStubs(t, filepath.Join(t.TempDir(), "bin"), scripts)
}

func installStubs(t testing.TB, binDir string, scripts map[string]string) {
	t.Helper()

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	for name, body := range scripts {
		target := filepath.Join(binDir, name)
		if err := os.WriteFile(target, []byte(body), 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}

	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}
