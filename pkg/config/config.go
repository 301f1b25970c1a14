package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gerrors "gattguard/pkg/errors"

	"gopkg.in/yaml.v3"
)

// Guard modes
const (
	// ModeAlways runs the compiler on every invocation
	ModeAlways = "always"
	// ModeStale runs the compiler only when the profile is newer than the header
	ModeStale = "stale"
)

// CompilerRelPath is the location of btstack's compile_gatt.py inside a
// PlatformIO core directory.
const CompilerRelPath = "packages/framework-arduinopico/pico-sdk/lib/btstack/tool/compile_gatt.py"

// Config holds the complete gattguard configuration
type Config struct {
	Version     string        `yaml:"version" json:"version"`
	ProjectDir  string        `yaml:"project_dir" json:"project_dir"`
	Profile     string        `yaml:"profile" json:"profile"`
	Header      string        `yaml:"header" json:"header"`
	Compiler    string        `yaml:"compiler" json:"compiler"`
	Interpreter string        `yaml:"interpreter" json:"interpreter"`
	CoreDir     string        `yaml:"core_dir" json:"core_dir"`
	Mode        string        `yaml:"mode" json:"mode"`
	Logging     LoggingConfig `yaml:"logging" json:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig matches the Pico W variant of the firmware tree
var DefaultConfig = Config{
	Version:    "1.0",
	ProjectDir: ".",
	Profile:    "src/platform/rp2xx0/meshtastic-profile.gatt",
	Header:     "src/platform/rp2xx0/include/meshtastic-profile.h",
	CoreDir:    "~/.platformio",
	Mode:       ModeStale,
	Logging: LoggingConfig{
		Level:  "info",
		Format: "text",
	},
}

// LoadConfig builds the configuration from defaults, the first config file
// found and GATTGUARD_* environment variables, in that order. configPath
// skips the search when set. Returns the config and a description of where
// it came from. The result is not validated: callers apply their own
// overrides first, then call Normalize and Validate.
func LoadConfig(configPath string) (*Config, string, error) {
	config := DefaultConfig

	path, err := loadFromFile(&config, configPath)
	if err != nil {
		return nil, "", err
	}

	applyEnv(&config)

	return &config, path, nil
}

// loadFromFile loads the first available YAML file into config. An explicit
// path must exist; otherwise a missing file leaves the defaults in place.
func loadFromFile(config *Config, explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", gerrors.NewConfigError("file", "", fmt.Errorf("config file %s: %w", explicit, err))
		}
		return explicit, decodeFile(config, explicit)
	}

	configPaths := []string{
		os.Getenv("GATTGUARD_CONFIG"),
		"./gattguard.yml",
		"./config/gattguard.yml",
	}

	for _, path := range configPaths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		return path, decodeFile(config, path)
	}

	return "built-in defaults (no config file found)", nil
}

func decodeFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return gerrors.NewConfigError("file", "", fmt.Errorf("failed to parse config file %s: %w", path, err))
	}

	return nil
}

func applyEnv(config *Config) {
	overrides := map[string]*string{
		"GATTGUARD_PROJECT_DIR": &config.ProjectDir,
		"GATTGUARD_PROFILE":     &config.Profile,
		"GATTGUARD_HEADER":      &config.Header,
		"GATTGUARD_COMPILER":    &config.Compiler,
		"GATTGUARD_INTERPRETER": &config.Interpreter,
		"GATTGUARD_MODE":        &config.Mode,
		"GATTGUARD_LOG_LEVEL":   &config.Logging.Level,
		"GATTGUARD_LOG_FORMAT":  &config.Logging.Format,
		"PLATFORMIO_CORE_DIR":   &config.CoreDir,
	}

	for key, field := range overrides {
		if val := os.Getenv(key); val != "" {
			*field = val
		}
	}
}

// Normalize trims and lowercases the enumerated settings so "Always" and
// " stale " are accepted wherever they come from.
func (c *Config) Normalize() {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// Validate checks the mode, the paths and the logging settings and returns
// the first problem found.
func (c *Config) Validate() error {
	if c.Mode != ModeAlways && c.Mode != ModeStale {
		return gerrors.NewConfigError("guard", "mode",
			fmt.Errorf("%w: %q (want %q or %q)", gerrors.ErrInvalidMode, c.Mode, ModeAlways, ModeStale))
	}

	if strings.TrimSpace(c.Profile) == "" {
		return gerrors.NewConfigError("guard", "profile", errors.New("profile path is empty"))
	}

	if strings.TrimSpace(c.Header) == "" {
		return gerrors.NewConfigError("guard", "header", errors.New("header path is empty"))
	}

	if c.Compiler == "" && c.CoreDir == "" {
		return gerrors.NewConfigError("guard", "compiler", errors.New("neither compiler nor core_dir is set"))
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "warning": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return gerrors.NewConfigError("logging", "level", fmt.Errorf("invalid log level: %s", c.Logging.Level))
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return gerrors.NewConfigError("logging", "format", fmt.Errorf("invalid log format: %s", c.Logging.Format))
	}

	return nil
}

// CompilerPath returns the compiler location with "~" expanded against home.
// When no compiler is configured it is derived from CoreDir. A "~" path with
// an unknown home is an error.
func (c *Config) CompilerPath(home string) (string, error) {
	if c.Compiler != "" {
		if home == "" && hasHomePrefix(c.Compiler) {
			return "", gerrors.NewConfigError("guard", "compiler",
				fmt.Errorf("cannot expand %q: home directory unknown", c.Compiler))
		}
		return ExpandHome(c.Compiler, home), nil
	}

	if home == "" && hasHomePrefix(c.CoreDir) {
		return "", gerrors.NewConfigError("guard", "core_dir",
			fmt.Errorf("cannot expand %q: home directory unknown, set PLATFORMIO_CORE_DIR or compiler", c.CoreDir))
	}
	return filepath.Join(ExpandHome(c.CoreDir, home), filepath.FromSlash(CompilerRelPath)), nil
}

func hasHomePrefix(path string) bool {
	return path == "~" || strings.HasPrefix(path, "~/")
}

// ExpandHome replaces a leading "~" with home
func ExpandHome(path, home string) string {
	if home == "" {
		return path
	}
	if !hasHomePrefix(path) {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
