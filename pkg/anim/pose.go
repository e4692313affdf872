package anim

import (
	"fmt"

	"github.com/Faultbox/rigeval/pkg/math"
)

// Pose is a LOD-local bone buffer. Bones are stored in compact order (the
// order of the LOD's required bone list); skeleton bone indices are
// translated through the remap tables.
type Pose struct {
	skeleton  *Skeleton
	bones     []math.Transform
	toCompact []int // skeleton bone -> compact index, -1 when absent
	toBone    []int // compact index -> skeleton bone
}

// NewPose creates a pose for the given mesh LOD, initialised to the
// reference pose.
func NewPose(mesh *SkeletalMesh, lod int) (*Pose, error) {
	if lod < 0 || lod >= mesh.NumLODs() {
		return nil, fmt.Errorf("%w: %d (mesh %s has %d)", ErrInvalidLOD, lod, mesh.Name, mesh.NumLODs())
	}
	return NewPoseWithBones(mesh.Skeleton, mesh.LODs[lod].RequiredBones)
}

// NewPoseWithBones creates a pose holding exactly the given skeleton bones,
// in the given order.
func NewPoseWithBones(skel *Skeleton, required []int) (*Pose, error) {
	p := &Pose{
		skeleton:  skel,
		bones:     make([]math.Transform, len(required)),
		toCompact: make([]int, skel.NumBones()),
		toBone:    make([]int, len(required)),
	}
	for i := range p.toCompact {
		p.toCompact[i] = -1
	}
	for compact, bone := range required {
		if bone < 0 || bone >= skel.NumBones() {
			return nil, fmt.Errorf("%w: %d", ErrUnknownBone, bone)
		}
		p.toCompact[bone] = compact
		p.toBone[compact] = bone
	}
	p.ResetToRefPose()
	return p, nil
}

// ResetToRefPose copies the skeleton's reference transforms into the pose.
func (p *Pose) ResetToRefPose() {
	for compact, bone := range p.toBone {
		p.bones[compact] = p.skeleton.RefPose[bone]
	}
}

// Skeleton returns the skeleton the pose was built from.
func (p *Pose) Skeleton() *Skeleton {
	return p.skeleton
}

// NumBones returns the number of bones in the pose for its LOD.
func (p *Pose) NumBones() int {
	return len(p.bones)
}

// CompactIndex translates a skeleton bone index into the pose's compact
// index, returning -1 when the bone is not part of this LOD.
func (p *Pose) CompactIndex(bone int) int {
	if bone < 0 || bone >= len(p.toCompact) {
		return -1
	}
	return p.toCompact[bone]
}

// BoneIndex translates a compact index back into a skeleton bone index.
func (p *Pose) BoneIndex(compact int) int {
	return p.toBone[compact]
}

// Bone returns the local transform at a compact index.
func (p *Pose) Bone(compact int) math.Transform {
	return p.bones[compact]
}

// SetBone replaces the local transform at a compact index.
func (p *Pose) SetBone(compact int, t math.Transform) {
	p.bones[compact] = t
}

// Bones exposes the compact transform buffer.
func (p *Pose) Bones() []math.Transform {
	return p.bones
}
