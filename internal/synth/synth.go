// Package synth builds procedural rigs with matching skeletons and meshes,
// plus keyframed driver-joint motion to evaluate them against.
package synth

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/rigeval/pkg/anim"
	"github.com/Faultbox/rigeval/pkg/math"
	"github.com/Faultbox/rigeval/pkg/rig"
)

// ErrInvalidConfig is returned when a Config cannot produce a rig.
var ErrInvalidConfig = errors.New("invalid synth config")

// Config sizes a generated rig.
type Config struct {
	Name           string `yaml:"name"`
	Joints         int    `yaml:"joints"`
	LODs           int    `yaml:"lods"`
	DriverJoints   int    `yaml:"driver_joints"`
	Controls       int    `yaml:"controls"`
	BlendShapes    int    `yaml:"blend_shapes"`
	AnimatedMaps   int    `yaml:"animated_maps"`
	NeuralNetworks int    `yaml:"neural_networks"`
}

// DefaultConfig returns a small face-sized rig.
func DefaultConfig() Config {
	return Config{
		Name:           "synthetic",
		Joints:         64,
		LODs:           4,
		DriverJoints:   6,
		Controls:       24,
		BlendShapes:    32,
		AnimatedMaps:   8,
		NeuralNetworks: 2,
	}
}

func (c Config) validate() error {
	switch {
	case c.LODs < 1:
		return fmt.Errorf("%w: need at least one LOD", ErrInvalidConfig)
	case c.Controls < 1:
		return fmt.Errorf("%w: need at least one control", ErrInvalidConfig)
	case c.DriverJoints < 0 || c.BlendShapes < 0 || c.AnimatedMaps < 0 || c.NeuralNetworks < 0:
		return fmt.Errorf("%w: negative count", ErrInvalidConfig)
	case c.Joints < c.DriverJoints+2:
		return fmt.Errorf("%w: %d joints cannot hold root, %d drivers and a variable joint",
			ErrInvalidConfig, c.Joints, c.DriverJoints)
	}
	return nil
}

// DriverTrack animates one driver joint.
type DriverTrack struct {
	Joint uint16
	Bone  int
	Keys  []RotKey
}

// Fixture is a generated rig with the host assets it was built for.
type Fixture struct {
	Definition *rig.Definition
	Skeleton   *anim.Skeleton
	Mesh       *anim.SkeletalMesh
	Drivers    []DriverTrack
	Duration   float32
}

const (
	// Frames in one animation cycle.
	cycleFrames = 60
	// Bone present in the skeleton but unknown to the rig.
	extraBone = "ik_target"
)

// lodCount halves n per LOD without dropping below one.
func lodCount(n, lod int) int {
	return max(1, n>>lod)
}

// Generate builds a rig and matching host assets. Joint 0 is the root,
// joints 1..DriverJoints are drivers, the rest are variable joints
// driven by a single joint group. Coarser LODs keep the leading half of
// the previous LOD's variable joints, blend shapes and animated maps.
func Generate(cfg Config) (*Fixture, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = "synthetic"
	}

	def := &rig.Definition{Name: cfg.Name}
	bones := make([]anim.Bone, 0, cfg.Joints+1)
	refPose := make([]math.Transform, 0, cfg.Joints+1)

	def.NeutralJointValues = make([]float32, cfg.Joints*math.TransformStride)
	for j := 0; j < cfg.Joints; j++ {
		name := "root"
		parent := -1
		if j > 0 {
			name = fmt.Sprintf("joint_%02d", j)
			parent = (j - 1) / 2
		}
		neutral := math.Transform{
			Translation: math.Vec3{Y: 0.1 * float32(j)},
			Rotation:    math.QuatIdentity(),
			Scale:       math.Vec3{X: 1, Y: 1, Z: 1},
		}
		if isDriver(cfg, j) {
			neutral.Rotation = math.QuatFromAxisAngle(math.Vec3{Y: 1}, 0.1*float32(j))
		}
		neutral.Store(def.NeutralJointValues[j*math.TransformStride:])

		def.JointNames = append(def.JointNames, name)
		bones = append(bones, anim.Bone{Name: name, Parent: parent})
		refPose = append(refPose, neutral)
	}
	bones = append(bones, anim.Bone{Name: extraBone, Parent: 0})
	refPose = append(refPose, math.TransformIdentity())

	for i := 0; i < cfg.Controls; i++ {
		def.RawControlNames = append(def.RawControlNames, ControlName(i))
	}
	var tracks []DriverTrack
	for d := 0; d < cfg.DriverJoints; d++ {
		joint := d + 1
		base := len(def.RawControlNames)
		for _, c := range []string{"x", "y", "z", "w"} {
			def.RawControlNames = append(def.RawControlNames, fmt.Sprintf("joint_%02d.q%s", joint, c))
		}
		dj := rig.DriverJoint{Joint: uint16(joint), X: base, Y: base + 1, Z: base + 2, W: base + 3}
		if d%3 == 2 {
			// Twist-only driver.
			dj.Y, dj.W = rig.NoControl, rig.NoControl
		}
		def.DriverJoints = append(def.DriverJoints, dj)

		neutral := math.QuatFromSlice(def.NeutralJointValues[joint*math.TransformStride+math.RotationOffset:])
		tracks = append(tracks, DriverTrack{
			Joint: uint16(joint),
			Bone:  joint,
			Keys: []RotKey{
				{Frame: 0, Rotation: neutral},
				{Frame: cycleFrames / 2, Rotation: neutral.Mul(math.QuatFromAxisAngle(math.Vec3{X: 1}, 0.6))},
				{Frame: cycleFrames, Rotation: neutral},
			},
		})
	}
	raw := len(def.RawControlNames)

	buildBehavior(def, cfg, raw)
	buildLODs(def, cfg)

	skel, err := anim.NewSkeleton(cfg.Name, bones, refPose)
	if err != nil {
		return nil, fmt.Errorf("building skeleton: %w", err)
	}

	meshLODs := make([]anim.MeshLOD, cfg.LODs)
	for lod := range meshLODs {
		required := make([]int, 0, cfg.Joints+1)
		for j := 0; j <= cfg.DriverJoints; j++ {
			required = append(required, j)
		}
		for _, j := range def.LODs[lod].Joints {
			required = append(required, int(j))
		}
		if lod == 0 {
			required = append(required, cfg.Joints)
		}
		meshLODs[lod].RequiredBones = required
	}
	mesh, err := anim.NewSkeletalMesh(cfg.Name, skel, meshLODs, def.BlendShapeChannelNames)
	if err != nil {
		return nil, fmt.Errorf("building mesh: %w", err)
	}

	return &Fixture{
		Definition: def,
		Skeleton:   skel,
		Mesh:       mesh,
		Drivers:    tracks,
		Duration:   cycleFrames,
	}, nil
}

func isDriver(cfg Config, joint int) bool {
	return joint >= 1 && joint <= cfg.DriverJoints
}

// ControlName returns the curve name of GUI-style control i.
func ControlName(i int) string {
	return fmt.Sprintf("CTRL_expr_%02d", i)
}

func buildBehavior(def *rig.Definition, cfg Config, raw int) {
	b := &def.Behavior

	// One PSD per adjacent control pair.
	psds := cfg.Controls / 2
	for i := 0; i < psds; i++ {
		b.PSDs = append(b.PSDs, rig.PSD{
			Output:  raw + i,
			Inputs:  []int{2 * i, 2*i + 1},
			Weights: []float32{1, 1},
		})
	}

	mlBase := raw + psds
	inputs := min(cfg.Controls, 4)
	for n := 0; n < cfg.NeuralNetworks; n++ {
		net := rig.NeuralNetwork{Outputs: []int{mlBase + n}, Biases: []float32{0}}
		for i := 0; i < inputs; i++ {
			net.Inputs = append(net.Inputs, i)
			net.Weights = append(net.Weights, 0.5/float32(i+1))
		}
		b.NeuralNetworks = append(b.NeuralNetworks, net)
		def.NeuralNetworkNames = append(def.NeuralNetworkNames, fmt.Sprintf("net_%02d", n))
	}
	def.MLControlCount = cfg.NeuralNetworks

	rbfBase := mlBase + cfg.NeuralNetworks
	for _, dj := range def.DriverJoints {
		if dj.Y == rig.NoControl {
			continue
		}
		out := rbfBase + def.RBFPoseControlCount
		b.RBFSolvers = append(b.RBFSolvers, rig.RBFSolver{
			Inputs: [4]int{dj.X, dj.Y, dj.Z, dj.W},
			Radius: gomath.Pi / 2,
			Poses: []rig.RBFPose{
				{Target: math.QuatIdentity(), Output: out},
				{Target: math.QuatFromAxisAngle(math.Vec3{X: 1}, 0.6), Output: out + 1},
			},
		})
		def.RBFPoseControlCount += 2
	}

	controls := def.ControlCount()
	group := rig.JointGroup{}
	for c := 0; c < controls; c++ {
		if c >= cfg.Controls && c < raw {
			continue // driver quaternion components
		}
		group.Inputs = append(group.Inputs, c)
	}
	for j := cfg.DriverJoints + 1; j < cfg.Joints; j++ {
		// translation Y and rotation X
		group.Outputs = append(group.Outputs, j*rig.JointAttributeCount+1, j*rig.JointAttributeCount+3)
	}
	cols := len(group.Inputs)
	group.Values = make([]float32, len(group.Outputs)*cols)
	for r := range group.Outputs {
		for c := 0; c < cols; c++ {
			group.Values[r*cols+c] = 0.01 * float32((r+c)%7-3)
		}
	}
	b.JointGroups = []rig.JointGroup{group}

	for i := 0; i < cfg.BlendShapes; i++ {
		def.BlendShapeChannelNames = append(def.BlendShapeChannelNames, fmt.Sprintf("shape_%02d", i))
		b.BlendShapeInputs = append(b.BlendShapeInputs, i%cfg.Controls)
	}
	for i := 0; i < cfg.AnimatedMaps; i++ {
		def.AnimatedMapNames = append(def.AnimatedMapNames, fmt.Sprintf("map_%02d", i))
		b.AnimatedMaps = append(b.AnimatedMaps, rig.RangeMapping{
			Input:  i % cfg.Controls,
			Output: i,
			From:   0,
			To:     1,
			Slope:  1,
		})
	}
}

func buildLODs(def *rig.Definition, cfg Config) {
	variable := cfg.Joints - cfg.DriverJoints - 1
	group := &def.Behavior.JointGroups[0]
	group.LODRows = make([]int, cfg.LODs)

	def.LODs = make([]rig.LODIndices, cfg.LODs)
	for lod := range def.LODs {
		l := &def.LODs[lod]

		active := lodCount(variable, lod)
		for j := 0; j < active; j++ {
			l.Joints = append(l.Joints, uint16(cfg.DriverJoints+1+j))
		}
		group.LODRows[lod] = 2 * active
		l.JointGroups = []uint16{0}

		for s := range def.Behavior.RBFSolvers {
			l.RBFSolvers = append(l.RBFSolvers, uint16(s))
		}
		if lod == 0 {
			for n := 0; n < cfg.NeuralNetworks; n++ {
				l.NeuralNetworks = append(l.NeuralNetworks, uint16(n))
			}
		}
		if cfg.BlendShapes > 0 {
			for s := 0; s < lodCount(cfg.BlendShapes, lod); s++ {
				l.BlendShapeChannels = append(l.BlendShapeChannels, uint16(s))
			}
		}
		if cfg.AnimatedMaps > 0 {
			for m := 0; m < lodCount(cfg.AnimatedMaps, lod); m++ {
				l.AnimatedMaps = append(l.AnimatedMaps, uint16(m))
			}
		}
	}
}
