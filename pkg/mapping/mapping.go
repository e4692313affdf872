// Package mapping translates between host names and bone indices and the
// dense indices used inside a compiled rig. A mapping is built once per
// (skeleton, mesh) pair and is read-only afterwards.
package mapping

import (
	"github.com/Faultbox/rigeval/pkg/anim"
	"github.com/Faultbox/rigeval/pkg/rig"
)

// JointBone maps a rig joint onto a skeleton bone.
type JointBone struct {
	Joint uint16
	Bone  int
}

// DriverJointControls maps a driver joint's pose rotation onto raw
// controls. Component indices are rig.NoControl when absent.
type DriverJointControls struct {
	Bone       int
	Joint      uint16
	X, Y, Z, W int
}

// Dense reports whether all four quaternion components are mapped.
func (d DriverJointControls) Dense() bool {
	return d.X != rig.NoControl && d.Y != rig.NoControl && d.Z != rig.NoControl && d.W != rig.NoControl
}

// CurveOutput maps a rig output index onto a host curve name.
type CurveOutput struct {
	Index int
	Curve string
}

// Options customise curve naming.
type Options struct {
	// ControlCurveName derives the input curve name of a raw control.
	ControlCurveName func(control string) string
	// MaskCurveName derives the mask curve name of a neural network.
	MaskCurveName func(network string) string
}

// IndexMapping holds every host↔rig translation table for one
// (skeleton, mesh) pair.
type IndexMapping struct {
	def      *rig.Definition
	skeleton *anim.Skeleton
	mesh     *anim.SkeletalMesh

	controlCurves []anim.NamedIndex
	maskCurves    []anim.NamedIndex
	controlIndex  map[string]int
	maskIndex     map[string]int

	joints        []JointBone
	jointToBone   []int
	denseDrivers  []DriverJointControls
	sparseDrivers []DriverJointControls

	blendShapeCurves  [][]CurveOutput
	animatedMapCurves [][]CurveOutput
}

// Build creates the mapping tables. Rig elements without a host
// counterpart are left out of the tables rather than reported.
func Build(def *rig.Definition, skel *anim.Skeleton, mesh *anim.SkeletalMesh, opts ...Options) *IndexMapping {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.ControlCurveName == nil {
		o.ControlCurveName = func(s string) string { return s }
	}
	if o.MaskCurveName == nil {
		o.MaskCurveName = func(s string) string { return s }
	}

	m := &IndexMapping{
		def:          def,
		skeleton:     skel,
		mesh:         mesh,
		controlIndex: make(map[string]int, len(def.RawControlNames)),
		maskIndex:    make(map[string]int, len(def.NeuralNetworkNames)),
		jointToBone:  make([]int, len(def.JointNames)),
	}

	for i, name := range def.RawControlNames {
		curve := o.ControlCurveName(name)
		m.controlCurves = append(m.controlCurves, anim.NamedIndex{Name: curve, Index: i})
		m.controlIndex[curve] = i
	}
	for i, name := range def.NeuralNetworkNames {
		curve := o.MaskCurveName(name)
		m.maskCurves = append(m.maskCurves, anim.NamedIndex{Name: curve, Index: i})
		m.maskIndex[curve] = i
	}

	for j, name := range def.JointNames {
		bone := skel.BoneIndex(name)
		m.jointToBone[j] = bone
		if bone >= 0 {
			m.joints = append(m.joints, JointBone{Joint: uint16(j), Bone: bone})
		}
	}

	for _, dj := range def.DriverJoints {
		bone := m.jointToBone[dj.Joint]
		if bone < 0 {
			continue
		}
		entry := DriverJointControls{Bone: bone, Joint: dj.Joint, X: dj.X, Y: dj.Y, Z: dj.Z, W: dj.W}
		if entry.Dense() {
			m.denseDrivers = append(m.denseDrivers, entry)
		} else {
			m.sparseDrivers = append(m.sparseDrivers, entry)
		}
	}

	m.blendShapeCurves = make([][]CurveOutput, len(def.LODs))
	m.animatedMapCurves = make([][]CurveOutput, len(def.LODs))
	for lod, l := range def.LODs {
		for _, ch := range l.BlendShapeChannels {
			name := def.BlendShapeChannelNames[ch]
			if mesh != nil && mesh.HasMorphTarget(name) {
				m.blendShapeCurves[lod] = append(m.blendShapeCurves[lod], CurveOutput{Index: int(ch), Curve: name})
			}
		}
		for _, am := range l.AnimatedMaps {
			m.animatedMapCurves[lod] = append(m.animatedMapCurves[lod], CurveOutput{Index: int(am), Curve: def.AnimatedMapNames[am]})
		}
	}
	return m
}

// Matches reports whether the mapping was built for this skeleton and mesh.
func (m *IndexMapping) Matches(skel *anim.Skeleton, mesh *anim.SkeletalMesh) bool {
	return m.skeleton == skel && m.mesh == mesh
}

// BuiltFor reports whether the mapping was built from def. Control and
// joint indices are only meaningful against that definition.
func (m *IndexMapping) BuiltFor(def *rig.Definition) bool {
	return m.def == def
}

// Skeleton returns the skeleton the mapping was built against.
func (m *IndexMapping) Skeleton() *anim.Skeleton {
	return m.skeleton
}

// ControlCurves lists raw-control input curves in control order.
func (m *IndexMapping) ControlCurves() []anim.NamedIndex {
	return m.controlCurves
}

// NeuralNetworkMaskCurves lists neural network mask curves in network order.
func (m *IndexMapping) NeuralNetworkMaskCurves() []anim.NamedIndex {
	return m.maskCurves
}

// ControlIndex looks up the raw control fed by a curve.
func (m *IndexMapping) ControlIndex(curve string) (int, bool) {
	i, ok := m.controlIndex[curve]
	return i, ok
}

// MaskIndex looks up the neural network masked by a curve.
func (m *IndexMapping) MaskIndex(curve string) (int, bool) {
	i, ok := m.maskIndex[curve]
	return i, ok
}

// Joints lists rig joints that have a skeleton bone, in joint order.
func (m *IndexMapping) Joints() []JointBone {
	return m.joints
}

// BoneForJoint returns the skeleton bone of a rig joint, or -1.
func (m *IndexMapping) BoneForJoint(joint uint16) int {
	if int(joint) >= len(m.jointToBone) {
		return -1
	}
	return m.jointToBone[joint]
}

// DenseDriverJoints lists driver joints with all four components mapped.
func (m *IndexMapping) DenseDriverJoints() []DriverJointControls {
	return m.denseDrivers
}

// SparseDriverJoints lists driver joints missing at least one component.
func (m *IndexMapping) SparseDriverJoints() []DriverJointControls {
	return m.sparseDrivers
}

// BlendShapeCurves lists the blend shape channels written at lod.
func (m *IndexMapping) BlendShapeCurves(lod int) []CurveOutput {
	if lod < 0 || lod >= len(m.blendShapeCurves) {
		return nil
	}
	return m.blendShapeCurves[lod]
}

// AnimatedMapCurves lists the animated maps written at lod.
func (m *IndexMapping) AnimatedMapCurves(lod int) []CurveOutput {
	if lod < 0 || lod >= len(m.animatedMapCurves) {
		return nil
	}
	return m.animatedMapCurves[lod]
}
