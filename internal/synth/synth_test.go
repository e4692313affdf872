package synth

import (
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/rigeval/pkg/anim"
	"github.com/Faultbox/rigeval/pkg/math"
	"github.com/Faultbox/rigeval/pkg/rig"
)

func TestGenerateCompiles(t *testing.T) {
	fx, err := Generate(DefaultConfig())
	require.NoError(t, err)

	r, err := rig.Compile(fx.Definition, rig.DefaultConfig())
	require.NoError(t, err)

	cfg := DefaultConfig()
	assert.Equal(t, cfg.LODs, r.LODCount())
	assert.Equal(t, cfg.Joints, r.JointCount())
	assert.Equal(t, cfg.Joints+1, fx.Skeleton.NumBones())
	assert.Equal(t, cfg.LODs, fx.Mesh.NumLODs())
	assert.Len(t, fx.Drivers, cfg.DriverJoints)
	assert.Equal(t, cfg.Controls+4*cfg.DriverJoints, r.RawControlCount())
	assert.Equal(t, cfg.NeuralNetworks, r.NeuralNetworkCount())
}

func TestGenerateLODMonotonic(t *testing.T) {
	fx, err := Generate(DefaultConfig())
	require.NoError(t, err)
	r, err := rig.Compile(fx.Definition, rig.DefaultConfig())
	require.NoError(t, err)

	getters := map[string]func(int) ([]uint16, error){
		"joints":        r.JointIndicesForLOD,
		"blend shapes":  r.BlendShapeChannelIndicesForLOD,
		"animated maps": r.AnimatedMapIndicesForLOD,
		"networks":      r.NeuralNetworkIndicesForLOD,
		"rbf":           r.RBFSolverIndicesForLOD,
	}
	for name, get := range getters {
		t.Run(name, func(t *testing.T) {
			prev := gomath.MaxInt
			for lod := 0; lod < r.LODCount(); lod++ {
				idx, err := get(lod)
				require.NoError(t, err)
				assert.LessOrEqual(t, len(idx), prev)
				prev = len(idx)
			}
		})
	}

	prev := gomath.MaxInt
	for _, l := range fx.Mesh.LODs {
		assert.LessOrEqual(t, len(l.RequiredBones), prev)
		prev = len(l.RequiredBones)
	}
}

func TestGenerateDriverSplit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DriverJoints = 3
	fx, err := Generate(cfg)
	require.NoError(t, err)

	dense := 0
	for _, dj := range fx.Definition.DriverJoints {
		if dj.Y != rig.NoControl && dj.W != rig.NoControl {
			dense++
		}
	}
	assert.Equal(t, 2, dense)
	assert.Len(t, fx.Definition.Behavior.RBFSolvers, 2)
	assert.Equal(t, 4, fx.Definition.RBFPoseControlCount)
}

func TestGenerateInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no LODs", func(c *Config) { c.LODs = 0 }},
		{"no controls", func(c *Config) { c.Controls = 0 }},
		{"too few joints", func(c *Config) { c.Joints = c.DriverJoints + 1 }},
		{"negative shapes", func(c *Config) { c.BlendShapes = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := Generate(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestGenerateMinimal(t *testing.T) {
	fx, err := Generate(Config{Joints: 2, LODs: 1, Controls: 1})
	require.NoError(t, err)
	assert.Equal(t, "synthetic", fx.Definition.Name)

	_, err = rig.Compile(fx.Definition, rig.DefaultConfig())
	require.NoError(t, err)
}

func TestSampleRotation(t *testing.T) {
	qx := math.QuatFromAxisAngle(math.Vec3{X: 1}, gomath.Pi/2)
	keys := []RotKey{
		{Frame: 10, Rotation: math.QuatIdentity()},
		{Frame: 20, Rotation: qx},
	}

	tests := []struct {
		name  string
		frame float32
		want  math.Quat
	}{
		{"before first", 0, math.QuatIdentity()},
		{"first", 10, math.QuatIdentity()},
		{"midpoint", 15, math.QuatFromAxisAngle(math.Vec3{X: 1}, gomath.Pi/4)},
		{"last", 20, qx},
		{"past last", 30, qx},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SampleRotation(keys, tt.frame)
			assert.True(t, got.ApproxEqual(tt.want, 1e-5), "got %+v want %+v", got, tt.want)
		})
	}

	assert.Equal(t, math.QuatIdentity(), SampleRotation(nil, 5))
	assert.Equal(t, qx, SampleRotation(keys[1:], 0))
}

func TestFixtureApply(t *testing.T) {
	fx, err := Generate(DefaultConfig())
	require.NoError(t, err)

	pose, err := anim.NewPose(fx.Mesh, 0)
	require.NoError(t, err)
	curves := anim.NewCurveSet()

	fx.Apply(fx.Duration/2, pose, curves)

	d := fx.Drivers[0]
	want := SampleRotation(d.Keys, fx.Duration/2)
	assert.True(t, pose.Bone(pose.CompactIndex(d.Bone)).Rotation.ApproxEqual(want, 1e-6))
	assert.Equal(t, DefaultConfig().Controls, curves.Len())
	curves.Each(func(name string, v float32) {
		assert.GreaterOrEqual(t, v, float32(0), name)
		assert.LessOrEqual(t, v, float32(1), name)
	})
}
