package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) string {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v", args, err)
	}
	return out.String()
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	output := runCommand(t, "config", "init", "--path", target)
	if !strings.Contains(output, target) {
		t.Fatalf("output %q does not mention %s", output, target)
	}

	contents, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[conversion.presets.web-standard]") {
		t.Fatal("sample config missing preset section")
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("# existing\n"), 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected overwrite refusal")
	}
}

func TestConfigShowPrintsEffectiveValues(t *testing.T) {
	for _, key := range []string{
		"WEBMILL_CONFIG", "BACKEND_HOST", "BACKEND_PORT", "BACKEND_DEBUG",
		"API_BASE_URL", "UPLOAD_DIR", "OUTPUT_DIR",
	} {
		t.Setenv(key, "")
	}

	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[server]\nport = 6001\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	output := runCommand(t, "--config", configPath, "config", "show")
	if !strings.Contains(output, ":6001") {
		t.Fatalf("output does not reflect configured port:\n%s", output)
	}
	if !strings.Contains(output, "web-standard") {
		t.Fatalf("output missing presets:\n%s", output)
	}
}
