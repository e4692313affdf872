package eval

import (
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Faultbox/rigeval/pkg/anim"
	"github.com/Faultbox/rigeval/pkg/mapping"
	"github.com/Faultbox/rigeval/pkg/math"
	"github.com/Faultbox/rigeval/pkg/rig"
)

const eps = 1e-5

var (
	axisX = math.Vec3{X: 1}
	axisZ = math.Vec3{Z: 1}
	ones  = math.Vec3{X: 1, Y: 1, Z: 1}
)

// Bones: root 0, head 1, jaw 2, neck 3. Mesh LOD1 keeps root and jaw.
func testMesh(t *testing.T) *anim.SkeletalMesh {
	t.Helper()
	skel, err := anim.NewSkeleton("face", []anim.Bone{
		{Name: "root", Parent: -1},
		{Name: "head", Parent: 0},
		{Name: "jaw", Parent: 1},
		{Name: "neck", Parent: 0},
	}, nil)
	require.NoError(t, err)
	mesh, err := anim.NewSkeletalMesh("head", skel, []anim.MeshLOD{
		{RequiredBones: []int{0, 1, 2, 3}},
		{RequiredBones: []int{0, 2}},
	}, []string{"jawOpen", "smile"})
	require.NoError(t, err)
	return mesh
}

// testDefinition: joints root 0, jaw 1, neck 2. Raw controls JawOpen 0,
// Smile 1, neck quaternion 2..5, root twist 6. JawOpen drives jaw tz by 2
// and jaw rx by pi at LOD0 only.
func testDefinition() *rig.Definition {
	neutral := make([]float32, 3*math.TransformStride)
	math.TransformIdentity().Store(neutral[0:])
	math.Transform{
		Translation: math.Vec3{Y: 1},
		Rotation:    math.QuatFromAxisAngle(axisZ, gomath.Pi/2),
		Scale:       ones,
	}.Store(neutral[10:])
	math.Transform{
		Rotation: math.QuatFromAxisAngle(axisZ, gomath.Pi/2),
		Scale:    ones,
	}.Store(neutral[20:])

	return &rig.Definition{
		Name:                   "face",
		JointNames:             []string{"root", "jaw", "neck"},
		NeutralJointValues:     neutral,
		RawControlNames:        []string{"JawOpen", "Smile", "nx", "ny", "nz", "nw", "rootTwist"},
		BlendShapeChannelNames: []string{"jawOpen", "smile"},
		AnimatedMapNames:       []string{"wrinkle"},
		DriverJoints: []rig.DriverJoint{
			{Joint: 2, X: 2, Y: 3, Z: 4, W: 5},
			{Joint: 0, X: rig.NoControl, Y: rig.NoControl, Z: 6, W: rig.NoControl},
		},
		LODs: []rig.LODIndices{
			{
				Joints:             []uint16{0, 1, 2},
				BlendShapeChannels: []uint16{0, 1},
				AnimatedMaps:       []uint16{0},
				JointGroups:        []uint16{0},
			},
			{
				Joints:             []uint16{0},
				BlendShapeChannels: []uint16{0},
				JointGroups:        []uint16{0},
			},
		},
		Behavior: rig.Behavior{
			JointGroups: []rig.JointGroup{{
				Inputs:  []int{0},
				Outputs: []int{1*rig.JointAttributeCount + 2, 1*rig.JointAttributeCount + 3},
				Values:  []float32{2, gomath.Pi},
				LODRows: []int{2, 0},
			}},
			BlendShapeInputs: []int{0, 1},
			AnimatedMaps:     []rig.RangeMapping{{Input: 0, Output: 0, From: 0, To: 1, Slope: 1}},
		},
	}
}

func testContext(t *testing.T, mesh *anim.SkeletalMesh, cfg rig.Config) *RuntimeContext {
	t.Helper()
	def := testDefinition()
	r, err := rig.Compile(def, cfg)
	require.NoError(t, err)
	return &RuntimeContext{
		Rig:     r,
		Mapping: mapping.Build(def, mesh.Skeleton, mesh),
		Version: 1,
	}
}

func newTestPose(t *testing.T, mesh *anim.SkeletalMesh, lod int) *anim.Pose {
	t.Helper()
	pose, err := anim.NewPose(mesh, lod)
	require.NoError(t, err)
	return pose
}

func TestUpdateEndToEnd(t *testing.T) {
	mesh := testMesh(t)
	rc := testContext(t, mesh, rig.DefaultConfig())
	pose := newTestPose(t, mesh, 0)
	curves := anim.NewCurveSet()
	curves.Set("JawOpen", 0.5, 0)

	o := NewOrchestrator(WithLogger(zaptest.NewLogger(t)))
	require.Equal(t, Evaluated, o.Update(rc, pose, curves, 0))

	jaw := pose.Bone(2)
	assert.True(t, jaw.Translation.ApproxEqual(math.Vec3{Y: 1, Z: 1}, eps), "translation %+v", jaw.Translation)
	assert.True(t, jaw.Scale.ApproxEqual(ones, eps))
	assert.True(t, jaw.Rotation.ApproxEqual(math.Quat{X: .5, Y: .5, Z: .5, W: .5}, eps), "rotation %+v", jaw.Rotation)
	assert.False(t, jaw.Rotation.ApproxEqual(math.Quat{X: .5, Y: -.5, Z: .5, W: .5}, eps), "delta applied before neutral")

	v, ok := curves.Get("jawOpen")
	require.True(t, ok)
	assert.InDelta(t, 0.5, v, eps)
	assert.Equal(t, anim.CurveMorphTarget, curves.Flags("jawOpen"))
	v, _ = curves.Get("smile")
	assert.Zero(t, v)
	v, ok = curves.Get("wrinkle")
	require.True(t, ok)
	assert.InDelta(t, 0.5, v, eps)
	assert.Equal(t, anim.CurveMaterial, curves.Flags("wrinkle"))
}

func TestUpdateCoarseLODLeavesInactiveJoints(t *testing.T) {
	mesh := testMesh(t)
	rc := testContext(t, mesh, rig.DefaultConfig())
	pose := newTestPose(t, mesh, 0)
	curves := anim.NewCurveSet()
	curves.Set("JawOpen", 0.5, 0)

	marker := math.Transform{Translation: math.Vec3{X: 7}, Rotation: math.QuatIdentity(), Scale: ones}
	pose.SetBone(2, marker)

	o := NewOrchestrator()
	require.Equal(t, Evaluated, o.Update(rc, pose, curves, 1))

	assert.Equal(t, marker, pose.Bone(2), "jaw is not evaluated at LOD1")
	assert.Equal(t, math.TransformIdentity(), pose.Bone(0))

	_, ok := curves.Get("jawOpen")
	assert.True(t, ok)
	_, ok = curves.Get("smile")
	assert.False(t, ok, "smile channel is inactive at LOD1")
	_, ok = curves.Get("wrinkle")
	assert.False(t, ok)
}

func TestUpdateControls(t *testing.T) {
	mesh := testMesh(t)
	neckNeutral := math.QuatFromAxisAngle(axisZ, gomath.Pi/2)

	setup := func(t *testing.T, cfg rig.Config) (*Orchestrator, *RuntimeContext, *anim.Pose, *anim.CurveSet) {
		rc := testContext(t, mesh, cfg)
		pose := newTestPose(t, mesh, 0)
		pose.SetBone(3, math.Transform{
			Rotation: neckNeutral.Mul(math.QuatFromAxisAngle(axisX, -gomath.Pi/2)),
			Scale:    ones,
		})
		pose.SetBone(0, math.Transform{
			Rotation: math.QuatFromAxisAngle(axisZ, gomath.Pi/3),
			Scale:    ones,
		})
		curves := anim.NewCurveSet()
		curves.Set("JawOpen", -5, 0)
		curves.Set("Smile", 3.2, 0)
		return NewOrchestrator(), rc, pose, curves
	}

	t.Run("clamp and drivers", func(t *testing.T) {
		o, rc, pose, curves := setup(t, rig.DefaultConfig())
		require.Equal(t, Evaluated, o.Update(rc, pose, curves, 0))

		raw := o.Instance().RawControls()
		assert.Zero(t, raw[0])
		assert.Equal(t, float32(1), raw[1])
		assert.InDelta(t, -0.70710677, raw[2], eps, "driver values are not clamped")
		assert.InDelta(t, 0, raw[3], eps)
		assert.InDelta(t, 0, raw[4], eps)
		assert.InDelta(t, 0.70710677, raw[5], eps)
		assert.InDelta(t, 0.5, raw[6], eps)
	})

	t.Run("drivers disabled", func(t *testing.T) {
		cfg := rig.DefaultConfig()
		cfg.EnableRBF = false
		cfg.EnableTwistSwing = false
		o, rc, pose, curves := setup(t, cfg)
		require.Equal(t, Evaluated, o.Update(rc, pose, curves, 0))

		raw := o.Instance().RawControls()
		assert.Equal(t, []float32{0, 1, 0, 0, 0, 0, 0}, raw)
	})

	t.Run("raw controls reset every frame", func(t *testing.T) {
		o, rc, pose, curves := setup(t, rig.DefaultConfig())
		curves.Set("JawOpen", 0.25, 0)
		require.Equal(t, Evaluated, o.Update(rc, pose, curves, 0))
		assert.InDelta(t, 0.25, o.Instance().RawControls()[0], eps)

		next := anim.NewCurveSet()
		require.Equal(t, Evaluated, o.Update(rc, pose, next, 0))
		assert.Zero(t, o.Instance().RawControls()[0])
	})
}

func TestScatterHonoursConfig(t *testing.T) {
	mesh := testMesh(t)
	cfg := rig.DefaultConfig()
	cfg.EnableJoints = false
	cfg.EnableBlendShapes = false
	rc := testContext(t, mesh, cfg)

	pose := newTestPose(t, mesh, 0)
	curves := anim.NewCurveSet()
	curves.Set("JawOpen", 0.5, 0)

	o := NewOrchestrator()
	require.Equal(t, Evaluated, o.Update(rc, pose, curves, 0))

	assert.Equal(t, math.TransformIdentity(), pose.Bone(2))
	_, ok := curves.Get("jawOpen")
	assert.False(t, ok)
	_, ok = curves.Get("wrinkle")
	assert.True(t, ok)
}

func TestUpdatePassThrough(t *testing.T) {
	mesh := testMesh(t)
	rc := testContext(t, mesh, rig.DefaultConfig())

	narrow := testDefinition()
	narrow.RawControlNames = narrow.RawControlNames[:2]
	narrow.DriverJoints = nil
	narrow.Behavior.JointGroups = nil
	narrow.LODs[0].JointGroups = nil
	narrow.LODs[1].JointGroups = nil
	narrowRig, err := rig.Compile(narrow, rig.DefaultConfig())
	require.NoError(t, err)

	tests := []struct {
		name string
		rc   *RuntimeContext
		lod  int
		want Result
	}{
		{"nil context", nil, 0, SkippedNoRig},
		{"no mapping", &RuntimeContext{Rig: rc.Rig}, 0, SkippedNoRig},
		{"no rig", &RuntimeContext{Mapping: rc.Mapping}, 0, SkippedNoRig},
		{"mapping built for another definition", &RuntimeContext{Rig: narrowRig, Mapping: rc.Mapping}, 0, SkippedNoRig},
		{"LOD too high", rc, 2, SkippedInvalidLOD},
		{"negative LOD", rc, -1, SkippedInvalidLOD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pose := newTestPose(t, mesh, 0)
			curves := anim.NewCurveSet()
			curves.Set("JawOpen", 0.5, 0)
			curves.Set("nx", 0.5, 0)

			o := NewOrchestrator()
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, o.Update(tt.rc, pose, curves, tt.lod))
			})
			for i := 0; i < pose.NumBones(); i++ {
				assert.Equal(t, math.TransformIdentity(), pose.Bone(i))
			}
			assert.Equal(t, []anim.Curve{{Name: "JawOpen", Value: 0.5}, {Name: "nx", Value: 0.5}}, curves.Curves())
		})
	}
}

func TestCurveIndexCacheEquivalent(t *testing.T) {
	mesh := testMesh(t)
	rc := testContext(t, mesh, rig.DefaultConfig())

	run := func(useCache bool) (*anim.Pose, *anim.CurveSet) {
		pose := newTestPose(t, mesh, 0)
		curves := anim.NewCurveSet()
		curves.Set("Smile", 0.3, 0)
		curves.Set("unrelated", 4, 0)
		curves.Set("JawOpen", 0.8, 0)
		o := NewOrchestrator(WithCurveIndexCache(useCache))
		require.Equal(t, Evaluated, o.Update(rc, pose, curves, 0))
		return pose, curves
	}

	poseA, curvesA := run(true)
	poseB, curvesB := run(false)
	assert.Equal(t, poseA.Bones(), poseB.Bones())
	assert.Equal(t, curvesA.Curves(), curvesB.Curves())
}

func TestCacheInvalidation(t *testing.T) {
	mesh := testMesh(t)
	rc := testContext(t, mesh, rig.DefaultConfig())
	skel := mesh.Skeleton
	curves := anim.NewCurveSet()
	curves.Set("JawOpen", 0.5, 0)
	jawTranslation := math.Vec3{Y: 1, Z: 1}

	o := NewOrchestrator()
	first, err := anim.NewPoseWithBones(skel, []int{0, 1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, Evaluated, o.Update(rc, first, curves, 0))
	assert.True(t, first.Bone(2).Translation.ApproxEqual(jawTranslation, eps))

	// Jaw and neck swap places; the bone count is unchanged so the cached
	// tables are reused and the jaw result lands on compact index 2.
	reordered, err := anim.NewPoseWithBones(skel, []int{0, 1, 3, 2})
	require.NoError(t, err)
	require.Equal(t, Evaluated, o.Update(rc, reordered, curves, 0))
	assert.True(t, reordered.Bone(2).Translation.ApproxEqual(jawTranslation, eps))
	assert.Equal(t, math.Vec3{}, reordered.Bone(3).Translation)

	t.Run("prime rebuilds", func(t *testing.T) {
		pose, err := anim.NewPoseWithBones(skel, []int{0, 1, 3, 2})
		require.NoError(t, err)
		require.NoError(t, o.Prime(rc, pose, 0))
		require.Equal(t, Evaluated, o.Update(rc, pose, curves, 0))
		assert.True(t, pose.Bone(3).Translation.ApproxEqual(jawTranslation, eps))
	})

	t.Run("bone count change rebuilds", func(t *testing.T) {
		pose, err := anim.NewPoseWithBones(skel, []int{2, 0})
		require.NoError(t, err)
		require.Equal(t, Evaluated, o.Update(rc, pose, curves, 0))
		assert.True(t, pose.Bone(0).Translation.ApproxEqual(jawTranslation, eps))
	})

	t.Run("mapping change rebuilds", func(t *testing.T) {
		require.NoError(t, o.Prime(rc, first, 0))
		inst := o.Instance()

		swapped := &RuntimeContext{
			Rig:     rc.Rig,
			Mapping: mapping.Build(rc.Rig.Definition(), skel, mesh),
			Version: 2,
		}
		pose, err := anim.NewPoseWithBones(skel, []int{0, 1, 3, 2})
		require.NoError(t, err)
		require.Equal(t, Evaluated, o.Update(swapped, pose, curves, 0))
		assert.True(t, pose.Bone(3).Translation.ApproxEqual(jawTranslation, eps))
		assert.Same(t, inst, o.Instance(), "same rig keeps the instance")
	})

	t.Run("rig change replaces instance", func(t *testing.T) {
		inst := o.Instance()
		other := testContext(t, mesh, rig.DefaultConfig())
		pose := newTestPose(t, mesh, 0)
		require.Equal(t, Evaluated, o.Update(other, pose, curves, 0))
		assert.NotSame(t, inst, o.Instance())
		assert.Same(t, other.Rig, o.Instance().Rig())
	})
}

func TestPrimeErrors(t *testing.T) {
	mesh := testMesh(t)
	rc := testContext(t, mesh, rig.DefaultConfig())
	pose := newTestPose(t, mesh, 0)

	o := NewOrchestrator()
	assert.ErrorIs(t, o.Prime(nil, pose, 0), ErrNoRuntimeContext)
	assert.ErrorIs(t, o.Prime(rc, pose, 3), rig.ErrLODOutOfRange)
	assert.NoError(t, o.Prime(rc, pose, 1))
}

func TestStageMaskOption(t *testing.T) {
	mesh := testMesh(t)
	rc := testContext(t, mesh, rig.DefaultConfig())
	pose := newTestPose(t, mesh, 0)
	curves := anim.NewCurveSet()
	curves.Set("JawOpen", 0.5, 0)

	o := NewOrchestrator(WithStageMask(rig.MaskOf(rig.StageControls, rig.StageBlendShapes)))
	require.Equal(t, Evaluated, o.Update(rc, pose, curves, 0))

	// Joint outputs keep their identity reset, so the jaw gets the neutral.
	jaw := pose.Bone(2)
	assert.True(t, jaw.Translation.ApproxEqual(math.Vec3{Y: 1}, eps))
	v, _ := curves.Get("jawOpen")
	assert.InDelta(t, 0.5, v, eps)
	v, _ = curves.Get("wrinkle")
	assert.Zero(t, v)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "Evaluated", Evaluated.String())
	assert.Equal(t, "SkippedNoRig", SkippedNoRig.String())
	assert.Equal(t, "SkippedInvalidLOD", SkippedInvalidLOD.String())
	assert.Equal(t, "Unknown", Result(9).String())
}
