package eval

import (
	"github.com/Faultbox/rigeval/pkg/anim"
	"github.com/Faultbox/rigeval/pkg/mapping"
	"github.com/Faultbox/rigeval/pkg/math"
	"github.com/Faultbox/rigeval/pkg/rig"
)

// jointBinding pairs a variable rig joint with its compact pose bone.
type jointBinding struct {
	joint uint16
	bone  int
}

// driverBinding is a driver joint translated into compact pose space.
type driverBinding struct {
	bone           int
	inverseNeutral math.Quat
	x, y, z, w     int
}

// lodCache holds the mapping tables for one LOD in the pose's compact bone
// space. boneCount is the invalidation sentinel.
type lodCache struct {
	boneCount int
	joints    []jointBinding
	dense     []driverBinding
	sparse    []driverBinding
}

const unbuilt = -1

func newLODCaches(n int) []lodCache {
	caches := make([]lodCache, n)
	for i := range caches {
		caches[i].boneCount = unbuilt
	}
	return caches
}

func resetLODCaches(caches []lodCache) {
	for i := range caches {
		caches[i].boneCount = unbuilt
	}
}

// stale reports whether the entry must be rebuilt for pose. Only the bone
// count is compared: a reordering that keeps the count is not detected.
func (c *lodCache) stale(pose *anim.Pose) bool {
	return c.boneCount != pose.NumBones()
}

func (c *lodCache) rebuild(r *rig.CompiledRig, m *mapping.IndexMapping, pose *anim.Pose, lod int) {
	c.joints = c.joints[:0]
	c.dense = c.dense[:0]
	c.sparse = c.sparse[:0]

	joints, err := r.JointIndicesForLOD(lod)
	if err == nil {
		for _, j := range joints {
			if bone := pose.CompactIndex(m.BoneForJoint(j)); bone >= 0 {
				c.joints = append(c.joints, jointBinding{joint: j, bone: bone})
			}
		}
	}

	neutral := r.NeutralJointValues()
	bind := func(d mapping.DriverJointControls) (driverBinding, bool) {
		bone := pose.CompactIndex(d.Bone)
		if bone < 0 {
			return driverBinding{}, false
		}
		rot := neutral[int(d.Joint)*math.TransformStride+math.RotationOffset:]
		return driverBinding{
			bone:           bone,
			inverseNeutral: math.QuatFromSlice(rot).Inverse(),
			x:              d.X,
			y:              d.Y,
			z:              d.Z,
			w:              d.W,
		}, true
	}
	for _, d := range m.DenseDriverJoints() {
		if b, ok := bind(d); ok {
			c.dense = append(c.dense, b)
		}
	}
	for _, d := range m.SparseDriverJoints() {
		if b, ok := bind(d); ok {
			c.sparse = append(c.sparse, b)
		}
	}

	c.boneCount = pose.NumBones()
}
