// Package config loads Synchronizer options from a JSONC (JSON-with-comments)
// config file, following the loading precedence the rest of the project's
// tooling uses: defaults, then a global user config, then a project config,
// then explicit CLI overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tailscale/hujson"

	"github.com/shmsync/shmsync/internal/fs"
)

// FileName is the default project config file name, looked up relative to
// the working directory a tool is invoked from.
const FileName = ".shmsync.json"

// Config holds the options recognized by a Synchronizer. path_prefix is
// the only required field.
type Config struct {
	PathPrefix           string      `json:"path_prefix"` //nolint:tagliatelle // snake_case config keys
	StateFilePermissions fileMode    `json:"state_file_permissions,omitempty"`
	DataFilePermissions  fileMode    `json:"data_file_permissions,omitempty"`
	DefaultGrace         jsonGrace   `json:"default_grace,omitempty"`
}

// Sources reports which config files, if any, contributed to a loaded
// Config.
type Sources struct {
	Global  string
	Project string
}

// Default returns the zero-value Config with its non-PathPrefix defaults
// filled in. PathPrefix has no sane default — it must come from a config
// file or CLI flag.
func Default() Config {
	return Config{
		StateFilePermissions: 0o644,
		DataFilePermissions:  0o644,
		DefaultGrace:         jsonGrace{10 * time.Millisecond},
	}
}

// Load loads configuration with the following precedence (highest wins):
//  1. Default()
//  2. Global user config ($XDG_CONFIG_HOME/shmsync/config.json, falling
//     back to ~/.config/shmsync/config.json)
//  3. A project config file: the explicit file at configPath if
//     non-empty (must exist), otherwise workDir/.shmsync.json if present;
//     when configPath is given, workDir/.shmsync.json is not read
//  4. pathPrefixOverride, if non-empty
//
// env supplies XDG_CONFIG_HOME/HOME for locating the global config file;
// callers pass os.Environ()-derived values in production and a fixed map
// in tests, so global-config lookup never depends on the machine running
// the test.
func Load(workDir, configPath, pathPrefixOverride string, env map[string]string) (Config, Sources, error) {
	cfg := Default()

	var sources Sources

	globalCfg, globalPath, err := loadGlobalConfig(env)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Global = globalPath
	cfg = merge(cfg, globalCfg)

	projectCfg, projectPath, err := loadProjectConfig(workDir, configPath)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Project = projectPath
	cfg = merge(cfg, projectCfg)

	if pathPrefixOverride != "" {
		cfg.PathPrefix = pathPrefixOverride
	}

	if err := validate(cfg); err != nil {
		return Config{}, Sources{}, err
	}

	return cfg, sources, nil
}

func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "shmsync", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "shmsync", "config.json")
	}

	return ""
}

func loadGlobalConfig(env map[string]string) (Config, string, error) {
	path := globalConfigPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, loaded, err := loadConfigFile(path, false)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, path, nil
}

func loadProjectConfig(workDir, configPath string) (Config, string, error) {
	mustExist := configPath != ""

	cfgFile := filepath.Join(workDir, FileName)
	if mustExist {
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}

		if _, err := os.Stat(cfgFile); err != nil {
			return Config{}, "", fmt.Errorf("%w: %s", ErrFileNotFound, configPath)
		}
	}

	cfg, loaded, err := loadConfigFile(cfgFile, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, cfgFile, nil
}

func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled, same as any config loader
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	return cfg, true, nil
}

func merge(base, overlay Config) Config {
	if overlay.PathPrefix != "" {
		base.PathPrefix = overlay.PathPrefix
	}

	if overlay.StateFilePermissions != 0 {
		base.StateFilePermissions = overlay.StateFilePermissions
	}

	if overlay.DataFilePermissions != 0 {
		base.DataFilePermissions = overlay.DataFilePermissions
	}

	if overlay.DefaultGrace.Duration != 0 {
		base.DefaultGrace = overlay.DefaultGrace
	}

	return base
}

// Save writes cfg to path as indented JSON via a temp-file-plus-rename
// swap, so a concurrent Load never observes a half-written config file.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := fs.NewReal().WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}

	return nil
}

// EnvFromOS builds the env map Load expects from the process's actual
// environment variables.
func EnvFromOS() map[string]string {
	return map[string]string{
		"XDG_CONFIG_HOME": os.Getenv("XDG_CONFIG_HOME"),
		"HOME":            os.Getenv("HOME"),
	}
}

func validate(cfg Config) error {
	if cfg.PathPrefix == "" {
		return ErrPathPrefixRequired
	}

	return nil
}

// fileMode is os.FileMode with JSON (un)marshaling as an octal string
// ("0660"), matching how file permissions are conventionally written.
type fileMode os.FileMode

func (m fileMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("0%o", uint32(m)))
}

func (m *fileMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := strconv.ParseUint(strings.TrimPrefix(s, "0"), 8, 32)
	if err != nil {
		return fmt.Errorf("config: invalid file mode %q: %w", s, err)
	}

	*m = fileMode(parsed)

	return nil
}

// jsonGrace is time.Duration with JSON (un)marshaling through
// time.ParseDuration's string form ("10ms", "1s").
type jsonGrace struct {
	time.Duration
}

func (d jsonGrace) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func (d *jsonGrace) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}

	d.Duration = parsed

	return nil
}
