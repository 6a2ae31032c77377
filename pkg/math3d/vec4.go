package math3d

// Vec4 is a homogeneous point in clip space.
type Vec4 struct {
	X, Y, Z, W float64
}

// V4 creates a new Vec4.
func V4(x, y, z, w float64) Vec4 {
	return Vec4{x, y, z, w}
}

// V4FromV3 extends v with the given w.
func V4FromV3(v Vec3, w float64) Vec4 {
	return Vec4{v.X, v.Y, v.Z, w}
}

// XYZ drops w.
func (v Vec4) XYZ() Vec3 {
	return Vec3{v.X, v.Y, v.Z}
}

// PerspectiveDivide maps a clip-space point to NDC. A zero w leaves the
// components undivided.
func (v Vec4) PerspectiveDivide() Vec3 {
	if v.W == 0 {
		return v.XYZ()
	}
	inv := 1 / v.W
	return Vec3{v.X * inv, v.Y * inv, v.Z * inv}
}
