// Package math provides the float32 vector, quaternion and transform types
// used by rig evaluation.
package math

// Vec3 is a 3D vector.
type Vec3 struct {
	X, Y, Z float32
}

// Vec3FromSlice reads a vector from three consecutive floats.
func Vec3FromSlice(v []float32) Vec3 {
	_ = v[2]
	return Vec3{X: v[0], Y: v[1], Z: v[2]}
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

// Store writes X, Y, Z into the first three elements of dst.
func (v Vec3) Store(dst []float32) {
	_ = dst[2]
	dst[0], dst[1], dst[2] = v.X, v.Y, v.Z
}

// ApproxEqual reports whether every component differs by at most eps.
func (v Vec3) ApproxEqual(other Vec3, eps float32) bool {
	return absf(v.X-other.X) <= eps && absf(v.Y-other.Y) <= eps && absf(v.Z-other.Z) <= eps
}
