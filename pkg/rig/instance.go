package rig

import (
	"fmt"

	"github.com/Faultbox/rigeval/pkg/math"
)

// Instance is the mutable evaluation state for one user of a CompiledRig.
// It is not safe for concurrent use.
type Instance struct {
	rig *CompiledRig
	lod int

	controls    []float32
	mlMask      []float32
	joints      []float32
	blendShapes []float32
	animMaps    []float32
}

// NewInstance allocates buffers sized to the full rig.
func NewInstance(r *CompiledRig) *Instance {
	inst := &Instance{
		rig:         r,
		controls:    make([]float32, r.ControlCount()),
		mlMask:      make([]float32, r.NeuralNetworkCount()),
		joints:      make([]float32, r.JointCount()*math.TransformStride),
		blendShapes: make([]float32, r.BlendShapeChannelCount()),
		animMaps:    make([]float32, r.AnimatedMapCount()),
	}
	for i := range inst.mlMask {
		inst.mlMask[i] = 1
	}
	inst.ResetJointOutputs()
	return inst
}

// Rig returns the compiled rig this instance evaluates.
func (i *Instance) Rig() *CompiledRig {
	return i.rig
}

// LOD returns the current level of detail.
func (i *Instance) LOD() int {
	return i.lod
}

// SetLOD selects the level of detail for subsequent evaluations.
func (i *Instance) SetLOD(lod int) error {
	if lod < 0 || lod >= i.rig.LODCount() {
		return fmt.Errorf("%w: %d", ErrLODOutOfRange, lod)
	}
	i.lod = lod
	return nil
}

// RawControls returns the raw control region of the control vector.
func (i *Instance) RawControls() []float32 {
	return i.controls[:i.rig.rawControls]
}

// SetRawControl writes one raw control value.
func (i *Instance) SetRawControl(index int, value float32) error {
	if index < 0 || index >= i.rig.rawControls {
		return fmt.Errorf("raw control %d: %w", index, ErrIndexOutOfRange)
	}
	i.controls[index] = value
	return nil
}

// ResetRawControls zeroes every raw control.
func (i *Instance) ResetRawControls() {
	clear(i.controls[:i.rig.rawControls])
}

// Controls returns the full control vector: raw, PSD, ML, RBF pose.
func (i *Instance) Controls() []float32 {
	return i.controls
}

// PSDControls returns the PSD region of the control vector.
func (i *Instance) PSDControls() []float32 {
	start := i.rig.rawControls
	return i.controls[start : start+i.rig.psdControls]
}

// MLControls returns the ML region of the control vector.
func (i *Instance) MLControls() []float32 {
	start := i.rig.rawControls + i.rig.psdControls
	return i.controls[start : start+i.rig.mlControls]
}

// RBFPoseControls returns the RBF pose region of the control vector.
func (i *Instance) RBFPoseControls() []float32 {
	start := i.rig.rawControls + i.rig.psdControls + i.rig.mlControls
	return i.controls[start : start+i.rig.rbfControls]
}

// MLMask returns the per-network mask weights.
func (i *Instance) MLMask() []float32 {
	return i.mlMask
}

// SetMLMask writes one neural network mask weight.
func (i *Instance) SetMLMask(network int, value float32) error {
	if network < 0 || network >= len(i.mlMask) {
		return fmt.Errorf("neural network %d: %w", network, ErrIndexOutOfRange)
	}
	i.mlMask[network] = value
	return nil
}

// JointOutputs returns the joint deltas, ten floats per joint. Only joints
// active at the current LOD are meaningful after evaluation.
func (i *Instance) JointOutputs() []float32 {
	return i.joints
}

// BlendShapeOutputs returns blend shape channel weights.
func (i *Instance) BlendShapeOutputs() []float32 {
	return i.blendShapes
}

// AnimatedMapOutputs returns animated map weights.
func (i *Instance) AnimatedMapOutputs() []float32 {
	return i.animMaps
}

// ResetJointOutputs sets every joint delta to identity.
func (i *Instance) ResetJointOutputs() {
	clear(i.joints)
	for j := math.RotationOffset + 3; j < len(i.joints); j += math.TransformStride {
		i.joints[j] = 1
	}
}
