package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shmsync/shmsync/internal/config"
)

func TestLoadRequiresPathPrefix(t *testing.T) {
	dir := t.TempDir()

	_, _, err := config.Load(dir, "", "", testEnv())
	if !errors.Is(err, config.ErrPathPrefixRequired) {
		t.Fatalf("Load() error = %v, want ErrPathPrefixRequired", err)
	}
}

func TestLoadOverrideSatisfiesRequirement(t *testing.T) {
	dir := t.TempDir()

	cfg, _, err := config.Load(dir, "", "/tmp/shm1", testEnv())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.PathPrefix != "/tmp/shm1" {
		t.Fatalf("PathPrefix = %q, want /tmp/shm1", cfg.PathPrefix)
	}
}

func TestLoadProjectConfigFile(t *testing.T) {
	dir := t.TempDir()

	writeConfig(t, filepath.Join(dir, config.FileName), `{
		// project defaults
		"path_prefix": "/var/run/shm/app",
		"default_grace": "25ms",
	}`)

	cfg, sources, err := config.Load(dir, "", "", testEnv())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.PathPrefix != "/var/run/shm/app" {
		t.Fatalf("PathPrefix = %q, want /var/run/shm/app", cfg.PathPrefix)
	}

	if cfg.DefaultGrace.Duration != 25*time.Millisecond {
		t.Fatalf("DefaultGrace = %v, want 25ms", cfg.DefaultGrace.Duration)
	}

	if sources.Project == "" {
		t.Fatalf("sources.Project is empty, want the loaded file path")
	}
}

func TestLoadExplicitConfigFileMustExist(t *testing.T) {
	dir := t.TempDir()

	_, _, err := config.Load(dir, "missing.json", "", testEnv())
	if !errors.Is(err, config.ErrFileNotFound) {
		t.Fatalf("Load() error = %v, want ErrFileNotFound", err)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()

	writeConfig(t, filepath.Join(dir, config.FileName), `{ not valid json `)

	_, _, err := config.Load(dir, "", "", testEnv())
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("Load() error = %v, want ErrInvalid", err)
	}
}

func TestCLIOverrideWinsOverProjectConfig(t *testing.T) {
	dir := t.TempDir()

	writeConfig(t, filepath.Join(dir, config.FileName), `{"path_prefix": "/from/file"}`)

	cfg, _, err := config.Load(dir, "", "/from/cli", testEnv())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.PathPrefix != "/from/cli" {
		t.Fatalf("PathPrefix = %q, want /from/cli (CLI override)", cfg.PathPrefix)
	}
}

func TestFileModeParsesOctalString(t *testing.T) {
	dir := t.TempDir()

	writeConfig(t, filepath.Join(dir, config.FileName), `{
		"path_prefix": "/tmp/x",
		"state_file_permissions": "0640",
	}`)

	cfg, _, err := config.Load(dir, "", "", testEnv())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if os.FileMode(cfg.StateFilePermissions) != 0o640 {
		t.Fatalf("StateFilePermissions = %o, want 640", cfg.StateFilePermissions)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)

	written := config.Default()
	written.PathPrefix = "/tmp/roundtrip"

	if err := config.Save(path, written); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cfg, _, err := config.Load(dir, "", "", testEnv())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.PathPrefix != written.PathPrefix {
		t.Fatalf("PathPrefix = %q, want %q", cfg.PathPrefix, written.PathPrefix)
	}
}

func testEnv() map[string]string {
	return map[string]string{"XDG_CONFIG_HOME": "", "HOME": ""}
}

func writeConfig(t *testing.T, path, contents string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
