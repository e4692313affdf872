package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	// Explicit path takes priority over the search locations
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings rigbench cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Bench.Workers < 1:
		return fmt.Errorf("bench.workers must be positive, got %d", c.Bench.Workers)
	case c.Bench.Frames < 0:
		return fmt.Errorf("bench.frames must not be negative, got %d", c.Bench.Frames)
	case c.Bench.LOD < 0 || c.Bench.LOD >= c.Synth.LODs:
		return fmt.Errorf("bench.lod %d outside [0, %d)", c.Bench.LOD, c.Synth.LODs)
	}
	return nil
}

const configFileName = "rigbench.yaml"

// UserConfigPath is where Save writes and the second place Load looks.
func UserConfigPath() string {
	return filepath.Join(ConfigDir(), configFileName)
}

// findConfigFile looks for config in the working directory, then the
// user config directory.
func findConfigFile() string {
	candidates := []string{
		configFileName,
		UserConfigPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "RigEval")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "RigEval")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "rigeval")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "rigeval")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
