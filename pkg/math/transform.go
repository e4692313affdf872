package math

// TransformStride is the number of floats a Transform occupies in a flat
// buffer: 3 translation, 4 rotation (X, Y, Z, W), 3 scale.
const TransformStride = 10

// Offsets of each component inside a flat transform block.
const (
	TranslationOffset = 0
	RotationOffset    = 3
	ScaleOffset       = 7
)

// Transform is a local bone transform.
type Transform struct {
	Translation Vec3
	Rotation    Quat
	Scale       Vec3
}

// TransformIdentity returns the identity transform (unit scale).
func TransformIdentity() Transform {
	return Transform{
		Rotation: QuatIdentity(),
		Scale:    Vec3{X: 1, Y: 1, Z: 1},
	}
}

// TransformFromSlice decodes a 10-float block.
func TransformFromSlice(v []float32) Transform {
	_ = v[TransformStride-1]
	return Transform{
		Translation: Vec3FromSlice(v[TranslationOffset:]),
		Rotation:    QuatFromSlice(v[RotationOffset:]),
		Scale:       Vec3FromSlice(v[ScaleOffset:]),
	}
}

// Store encodes t into a 10-float block.
func (t Transform) Store(dst []float32) {
	_ = dst[TransformStride-1]
	t.Translation.Store(dst[TranslationOffset:])
	t.Rotation.Store(dst[RotationOffset:])
	t.Scale.Store(dst[ScaleOffset:])
}

// Compose applies a delta on top of t: translation and scale are added
// component-wise, rotation is t.Rotation * delta.Rotation.
func (t Transform) Compose(delta Transform) Transform {
	return Transform{
		Translation: t.Translation.Add(delta.Translation),
		Rotation:    t.Rotation.Mul(delta.Rotation),
		Scale:       t.Scale.Add(delta.Scale),
	}
}
