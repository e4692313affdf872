package synth

import (
	gomath "math"

	"github.com/Faultbox/rigeval/pkg/anim"
	"github.com/Faultbox/rigeval/pkg/math"
)

// RotKey is a rotation keyframe.
type RotKey struct {
	Frame    float32
	Rotation math.Quat
}

// SampleRotation interpolates rotation keyframes at the given frame.
// Keys must be sorted by frame.
func SampleRotation(keys []RotKey, frame float32) math.Quat {
	if len(keys) == 0 {
		return math.QuatIdentity()
	}
	if len(keys) == 1 {
		return keys[0].Rotation
	}

	// Find surrounding keyframes
	var prev, next int
	for i := range keys {
		if keys[i].Frame > frame {
			next = i
			break
		}
		prev = i
		next = i
	}

	// Before the first or at/past the last key
	if prev == next {
		return keys[prev].Rotation
	}

	k0 := keys[prev]
	k1 := keys[next]
	t := float32(0)
	if k1.Frame != k0.Frame {
		t = (frame - k0.Frame) / (k1.Frame - k0.Frame)
	}
	return k0.Rotation.Slerp(k1.Rotation, t)
}

// Apply writes the fixture's animation at frame into a host pose and curve
// set: driver bones get their keyed rotation, control curves follow phase
// shifted sine waves in [0, 1]. Bones missing from the pose are skipped.
func (f *Fixture) Apply(frame float32, pose *anim.Pose, curves *anim.CurveSet) {
	local := float32(gomath.Mod(float64(frame), float64(f.Duration)))
	for _, d := range f.Drivers {
		compact := pose.CompactIndex(d.Bone)
		if compact < 0 {
			continue
		}
		t := pose.Bone(compact)
		t.Rotation = SampleRotation(d.Keys, local)
		pose.SetBone(compact, t)
	}

	controls := len(f.Definition.RawControlNames) - 4*len(f.Drivers)
	for i := 0; i < controls; i++ {
		v := 0.5 + 0.5*gomath.Sin(float64(frame)*0.1+float64(i))
		curves.Set(ControlName(i), float32(v), 0)
	}
}
