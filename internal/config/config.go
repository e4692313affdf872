// Package config handles rigbench configuration loading and management.
package config

import (
	"time"

	"github.com/Faultbox/rigeval/internal/synth"
	"github.com/Faultbox/rigeval/pkg/rig"
)

// Config holds all rigbench settings.
type Config struct {
	Rig     RigConfig     `yaml:"rig"`
	Bench   BenchConfig   `yaml:"bench"`
	Synth   synth.Config  `yaml:"synth"`
	Logging LoggingConfig `yaml:"logging"`
}

// RigConfig holds rig calculation and orchestration settings.
type RigConfig struct {
	Calculation     rig.Config `yaml:"calculation"`
	CurveIndexCache bool       `yaml:"curve_index_cache"`
}

// BenchConfig holds parallel evaluation settings.
type BenchConfig struct {
	Workers   int           `yaml:"workers"`
	Frames    int           `yaml:"frames"`
	LOD       int           `yaml:"lod"`
	GCEvery   int           `yaml:"gc_every"` // frames between pool garbage collections
	ReloadAt  int           `yaml:"reload_at"`
	Timeout   time.Duration `yaml:"timeout"`
	CycleLODs bool          `yaml:"cycle_lods"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Rig: RigConfig{
			Calculation:     rig.DefaultConfig(),
			CurveIndexCache: true,
		},
		Bench: BenchConfig{
			Workers:   4,
			Frames:    600,
			LOD:       0,
			GCEvery:   120,
			ReloadAt:  0,
			Timeout:   time.Minute,
			CycleLODs: false,
		},
		Synth: synth.DefaultConfig(),
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			LogFile:    "",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}
