package math

import (
	"math"
	"testing"
)

func TestQuatIdentity(t *testing.T) {
	q := QuatIdentity()
	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("Identity quaternion should be (0,0,0,1), got (%v,%v,%v,%v)", q.X, q.Y, q.Z, q.W)
	}
}

func TestQuatNormalize(t *testing.T) {
	q := Quat{X: 1, Y: 2, Z: 3, W: 4}
	n := q.Normalize()

	length := float32(math.Sqrt(float64(n.X*n.X + n.Y*n.Y + n.Z*n.Z + n.W*n.W)))
	if math.Abs(float64(length-1.0)) > 0.0001 {
		t.Errorf("Normalized quaternion length should be 1, got %v", length)
	}
}

func TestQuatFromAxisAngle(t *testing.T) {
	// 90 degrees around Y axis
	q := QuatFromAxisAngle(Vec3{X: 0, Y: 1, Z: 0}, float32(math.Pi/2))

	expectedW := float32(math.Cos(math.Pi / 4))
	expectedY := float32(math.Sin(math.Pi / 4))

	if math.Abs(float64(q.W-expectedW)) > 0.001 {
		t.Errorf("QuatFromAxisAngle W: expected %v, got %v", expectedW, q.W)
	}
	if math.Abs(float64(q.Y-expectedY)) > 0.001 {
		t.Errorf("QuatFromAxisAngle Y: expected %v, got %v", expectedY, q.Y)
	}
}

func TestQuatMulOrder(t *testing.T) {
	aboutZ := QuatFromAxisAngle(Vec3{Z: 1}, float32(math.Pi/2))
	aboutX := QuatFromAxisAngle(Vec3{X: 1}, float32(math.Pi/2))

	zx := aboutZ.Mul(aboutX)
	want := Quat{X: 0.5, Y: 0.5, Z: 0.5, W: 0.5}
	if !zx.ApproxEqual(want, 1e-5) {
		t.Errorf("Z*X: expected %v, got %v", want, zx)
	}

	xz := aboutX.Mul(aboutZ)
	wantReverse := Quat{X: 0.5, Y: -0.5, Z: 0.5, W: 0.5}
	if !xz.ApproxEqual(wantReverse, 1e-5) {
		t.Errorf("X*Z: expected %v, got %v", wantReverse, xz)
	}
}

func TestQuatInverse(t *testing.T) {
	tests := []struct {
		name string
		q    Quat
	}{
		{"identity", QuatIdentity()},
		{"unit", QuatFromAxisAngle(Vec3{X: 0, Y: 1, Z: 0}, 1.2)},
		{"non-unit", Quat{X: 1, Y: 2, Z: 3, W: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.q.Inverse().Mul(tt.q)
			if !got.ApproxEqual(QuatIdentity(), 1e-5) {
				t.Errorf("inverse(q)*q should be identity, got %v", got)
			}
		})
	}

	if got := (Quat{}).Inverse(); got != QuatIdentity() {
		t.Errorf("inverse of zero quaternion should be identity, got %v", got)
	}
}

func TestQuatFromEuler(t *testing.T) {
	got := QuatFromEuler(float32(math.Pi/2), 0, 0)
	want := QuatFromAxisAngle(Vec3{X: 1}, float32(math.Pi/2))
	if !got.ApproxEqual(want, 1e-5) {
		t.Errorf("pure X euler: expected %v, got %v", want, got)
	}

	// X applied first, then Z
	got = QuatFromEuler(float32(math.Pi/2), 0, float32(math.Pi/2))
	want = QuatFromAxisAngle(Vec3{Z: 1}, float32(math.Pi/2)).Mul(QuatFromAxisAngle(Vec3{X: 1}, float32(math.Pi/2)))
	if !got.ApproxEqual(want, 1e-5) {
		t.Errorf("XZ euler: expected %v, got %v", want, got)
	}
}

func TestQuatSlerp(t *testing.T) {
	q1 := QuatIdentity()
	q2 := QuatFromAxisAngle(Vec3{X: 0, Y: 1, Z: 0}, float32(math.Pi/2))

	result0 := q1.Slerp(q2, 0)
	if math.Abs(float64(result0.W-q1.W)) > 0.001 {
		t.Errorf("Slerp at t=0 should equal q1")
	}

	result1 := q1.Slerp(q2, 1)
	if math.Abs(float64(result1.W-q2.W)) > 0.001 {
		t.Errorf("Slerp at t=1 should equal q2")
	}

	// For 90 degree rotation, halfway should be 45 degrees
	result5 := q1.Slerp(q2, 0.5)
	expectedW := float32(math.Cos(float64(math.Pi / 8)))
	if math.Abs(float64(result5.W-expectedW)) > 0.01 {
		t.Errorf("Slerp at t=0.5: expected W ~%v, got %v", expectedW, result5.W)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in, want float32
	}{
		{-5, 0},
		{0, 0},
		{0.25, 0.25},
		{1, 1},
		{3.2, 1},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in, 0, 1); got != tt.want {
			t.Errorf("Clamp(%v): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestTransformRoundTrip(t *testing.T) {
	tr := Transform{
		Translation: Vec3{X: 1, Y: 2, Z: 3},
		Rotation:    QuatFromAxisAngle(Vec3{Z: 1}, 0.3),
		Scale:       Vec3{X: 1, Y: 1, Z: 2},
	}
	buf := make([]float32, TransformStride)
	tr.Store(buf)
	if got := TransformFromSlice(buf); got != tr {
		t.Errorf("expected %v, got %v", tr, got)
	}
}

func TestTransformCompose(t *testing.T) {
	neutral := Transform{
		Translation: Vec3{X: 1},
		Rotation:    QuatFromAxisAngle(Vec3{Z: 1}, float32(math.Pi/2)),
		Scale:       Vec3{X: 1, Y: 1, Z: 1},
	}
	delta := Transform{
		Translation: Vec3{Z: 1},
		Rotation:    QuatFromAxisAngle(Vec3{X: 1}, float32(math.Pi/2)),
		Scale:       Vec3{X: 0.5},
	}

	got := neutral.Compose(delta)
	if !got.Translation.ApproxEqual(Vec3{X: 1, Z: 1}, 1e-6) {
		t.Errorf("translation: got %v", got.Translation)
	}
	if !got.Rotation.ApproxEqual(neutral.Rotation.Mul(delta.Rotation), 1e-6) {
		t.Errorf("rotation: got %v", got.Rotation)
	}
	if !got.Scale.ApproxEqual(Vec3{X: 1.5, Y: 1, Z: 1}, 1e-6) {
		t.Errorf("scale: got %v", got.Scale)
	}
}
