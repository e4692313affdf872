package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagWorkers   = flag.Int("workers", 0, "Parallel evaluation workers")
	flagFrames    = flag.Int("frames", 0, "Frames evaluated per worker")
	flagLOD       = flag.Int("lod", -1, "Rig LOD to evaluate")
	flagJoints    = flag.Int("joints", 0, "Joints in the synthetic rig")
	flagLogFile   = flag.String("log-file", "", "Write logs to this file as well")
	flagNoCache   = flag.Bool("no-curve-cache", false, "Match curves by name instead of the index cache")
	flagCycleLODs = flag.Bool("cycle-lods", false, "Step through every LOD while evaluating")
	flagWrite     = flag.Bool("write-config", false, "Save the effective config to the user config directory and exit")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// WriteRequested reports whether --write-config was given.
func WriteRequested() bool {
	return *flagWrite
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagWorkers > 0 {
		cfg.Bench.Workers = *flagWorkers
	}
	if *flagFrames > 0 {
		cfg.Bench.Frames = *flagFrames
	}
	if *flagLOD >= 0 {
		cfg.Bench.LOD = *flagLOD
	}
	if *flagJoints > 0 {
		cfg.Synth.Joints = *flagJoints
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagNoCache {
		cfg.Rig.CurveIndexCache = false
	}
	if *flagCycleLODs {
		cfg.Bench.CycleLODs = true
	}
}
