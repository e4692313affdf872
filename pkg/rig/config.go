package rig

// Config selects which output categories a compiled rig calculates.
// Disabled stages are compiled to no-ops.
type Config struct {
	EnableMLBehavior   bool `yaml:"ml_behavior"`
	EnableRBF          bool `yaml:"rbf"`
	EnableTwistSwing   bool `yaml:"twist_swing"`
	EnableJoints       bool `yaml:"joints"`
	EnableBlendShapes  bool `yaml:"blend_shapes"`
	EnableAnimatedMaps bool `yaml:"animated_maps"`
}

// DefaultConfig enables every category.
func DefaultConfig() Config {
	return Config{
		EnableMLBehavior:   true,
		EnableRBF:          true,
		EnableTwistSwing:   true,
		EnableJoints:       true,
		EnableBlendShapes:  true,
		EnableAnimatedMaps: true,
	}
}

// DriverJointsEnabled reports whether driver-joint rotations feed raw controls.
func (c Config) DriverJointsEnabled() bool {
	return c.EnableRBF || c.EnableTwistSwing
}
