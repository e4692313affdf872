package rig

import (
	"fmt"

	"github.com/Faultbox/rigeval/pkg/math"
)

// NoControl marks an absent raw-control index.
const NoControl = -1

// LODIndices lists the rig elements evaluated at one LOD. Every list is
// ascending with no duplicates.
type LODIndices struct {
	Joints             []uint16
	RBFSolvers         []uint16
	NeuralNetworks     []uint16
	BlendShapeChannels []uint16
	AnimatedMaps       []uint16
	JointGroups        []uint16
}

// DriverJoint is a rig joint whose pose rotation, relative to neutral, is
// fed back into raw controls. Any of X, Y, Z, W may be NoControl.
type DriverJoint struct {
	Joint      uint16
	X, Y, Z, W int
}

// Definition is a deserialized rig definition.
type Definition struct {
	Name string

	JointNames []string
	// NeutralJointValues holds math.TransformStride floats per joint.
	NeutralJointValues []float32

	RawControlNames     []string
	MLControlCount      int
	RBFPoseControlCount int

	NeuralNetworkNames     []string
	BlendShapeChannelNames []string
	AnimatedMapNames       []string

	DriverJoints []DriverJoint
	LODs         []LODIndices

	Behavior Behavior
}

// Validate checks internal consistency of the definition.
func (d *Definition) Validate() error {
	joints := len(d.JointNames)
	if len(d.NeutralJointValues) != joints*math.TransformStride {
		return fmt.Errorf("%w: %d neutral values for %d joints", ErrInvalidDefinition, len(d.NeutralJointValues), joints)
	}
	if len(d.LODs) == 0 {
		return fmt.Errorf("%w: no LODs", ErrInvalidDefinition)
	}

	for lod, l := range d.LODs {
		sets := []struct {
			name  string
			idx   []uint16
			count int
		}{
			{"joints", l.Joints, joints},
			{"rbf solvers", l.RBFSolvers, len(d.Behavior.RBFSolvers)},
			{"neural networks", l.NeuralNetworks, len(d.NeuralNetworkNames)},
			{"blend shape channels", l.BlendShapeChannels, len(d.BlendShapeChannelNames)},
			{"animated maps", l.AnimatedMaps, len(d.AnimatedMapNames)},
			{"joint groups", l.JointGroups, len(d.Behavior.JointGroups)},
		}
		for _, s := range sets {
			if err := checkIndexSet(s.idx, s.count); err != nil {
				return fmt.Errorf("%w: LOD %d %s: %w", ErrInvalidDefinition, lod, s.name, err)
			}
		}
	}

	raw := len(d.RawControlNames)
	for i, dj := range d.DriverJoints {
		if int(dj.Joint) >= joints {
			return fmt.Errorf("%w: driver joint %d references joint %d", ErrInvalidDefinition, i, dj.Joint)
		}
		for _, c := range [4]int{dj.X, dj.Y, dj.Z, dj.W} {
			if c != NoControl && (c < 0 || c >= raw) {
				return fmt.Errorf("%w: driver joint %d control %d", ErrInvalidDefinition, i, c)
			}
		}
	}
	return nil
}

// ControlCount returns the size of the full control vector:
// raw, PSD, ML and RBF pose controls, in that order.
func (d *Definition) ControlCount() int {
	return len(d.RawControlNames) + len(d.Behavior.PSDs) + d.MLControlCount + d.RBFPoseControlCount
}

func checkIndexSet(idx []uint16, count int) error {
	for i, v := range idx {
		if int(v) >= count {
			return fmt.Errorf("index %d: %w (count %d)", v, ErrIndexOutOfRange, count)
		}
		if i > 0 && v <= idx[i-1] {
			return fmt.Errorf("index %d not ascending after %d", v, idx[i-1])
		}
	}
	return nil
}
