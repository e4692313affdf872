// Package anim models the host side of rig evaluation: skeletons, skeletal
// meshes with per-LOD bone sets, LOD-local poses and named curve buffers.
package anim

import (
	"errors"
	"fmt"

	"github.com/Faultbox/rigeval/pkg/math"
)

// Host model errors.
var (
	ErrInvalidSkeleton = errors.New("invalid skeleton")
	ErrInvalidMesh     = errors.New("invalid skeletal mesh")
	ErrInvalidLOD      = errors.New("invalid LOD")
	ErrUnknownBone     = errors.New("unknown bone")
)

// Bone is one entry of a skeleton hierarchy. Parent is -1 for roots.
type Bone struct {
	Name   string
	Parent int
}

// Skeleton is an ordered bone hierarchy with a reference pose.
type Skeleton struct {
	Name    string
	Bones   []Bone
	RefPose []math.Transform

	index map[string]int
}

// NewSkeleton validates the hierarchy and builds the name index.
// A nil refPose defaults every bone to identity.
func NewSkeleton(name string, bones []Bone, refPose []math.Transform) (*Skeleton, error) {
	if refPose == nil {
		refPose = make([]math.Transform, len(bones))
		for i := range refPose {
			refPose[i] = math.TransformIdentity()
		}
	}
	if len(refPose) != len(bones) {
		return nil, fmt.Errorf("%w: %d bones but %d reference transforms", ErrInvalidSkeleton, len(bones), len(refPose))
	}

	index := make(map[string]int, len(bones))
	for i, b := range bones {
		if b.Parent >= i {
			return nil, fmt.Errorf("%w: bone %q parent %d must precede it", ErrInvalidSkeleton, b.Name, b.Parent)
		}
		if _, dup := index[b.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate bone %q", ErrInvalidSkeleton, b.Name)
		}
		index[b.Name] = i
	}

	return &Skeleton{
		Name:    name,
		Bones:   bones,
		RefPose: refPose,
		index:   index,
	}, nil
}

// NumBones returns the number of bones in the skeleton.
func (s *Skeleton) NumBones() int {
	return len(s.Bones)
}

// BoneIndex returns the index of the named bone, or -1.
func (s *Skeleton) BoneIndex(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// MeshLOD lists the skeleton bones a mesh LOD needs, in pose order.
type MeshLOD struct {
	RequiredBones []int
}

// SkeletalMesh binds a skeleton to a set of LODs and morph targets.
type SkeletalMesh struct {
	Name         string
	Skeleton     *Skeleton
	LODs         []MeshLOD
	MorphTargets []string

	morphs map[string]struct{}
}

// NewSkeletalMesh validates LOD bone lists against the skeleton. With no
// LODs given, a single LOD containing every bone is created.
func NewSkeletalMesh(name string, skel *Skeleton, lods []MeshLOD, morphTargets []string) (*SkeletalMesh, error) {
	if skel == nil {
		return nil, fmt.Errorf("%w: %s has no skeleton", ErrInvalidMesh, name)
	}
	if len(lods) == 0 {
		all := make([]int, skel.NumBones())
		for i := range all {
			all[i] = i
		}
		lods = []MeshLOD{{RequiredBones: all}}
	}
	for lod, l := range lods {
		for _, b := range l.RequiredBones {
			if b < 0 || b >= skel.NumBones() {
				return nil, fmt.Errorf("%w: LOD %d bone %d: %w", ErrInvalidMesh, lod, b, ErrUnknownBone)
			}
		}
	}

	morphs := make(map[string]struct{}, len(morphTargets))
	for _, m := range morphTargets {
		morphs[m] = struct{}{}
	}

	return &SkeletalMesh{
		Name:         name,
		Skeleton:     skel,
		LODs:         lods,
		MorphTargets: morphTargets,
		morphs:       morphs,
	}, nil
}

// NumLODs returns the number of mesh LODs.
func (m *SkeletalMesh) NumLODs() int {
	return len(m.LODs)
}

// HasMorphTarget reports whether the mesh carries the named morph target.
func (m *SkeletalMesh) HasMorphTarget(name string) bool {
	_, ok := m.morphs[name]
	return ok
}
