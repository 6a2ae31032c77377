// Package math3d provides the vector, matrix and ray primitives shared by the
// rasterizer and the path tracer.
package math3d

import "math"

// Vec3 represents a 3D vector.
type Vec3 struct {
	X, Y, Z float64
}

// V3 creates a new Vec3.
func V3(x, y, z float64) Vec3 {
	return Vec3{x, y, z}
}

// Zero3 returns the zero vector.
func Zero3() Vec3 {
	return Vec3{}
}

// Splat3 returns a vector with all components set to s.
func Splat3(s float64) Vec3 {
	return Vec3{s, s, s}
}

// Up returns the world up vector (0, 1, 0).
func Up() Vec3 {
	return Vec3{0, 1, 0}
}

// Add returns the vector sum a + b.
func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

// Sub returns the vector difference a - b.
func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

// Mul returns the component-wise product a * b.
func (a Vec3) Mul(b Vec3) Vec3 {
	return Vec3{a.X * b.X, a.Y * b.Y, a.Z * b.Z}
}

// Scale returns the scalar product a * s.
func (a Vec3) Scale(s float64) Vec3 {
	return Vec3{a.X * s, a.Y * s, a.Z * s}
}

// Dot returns the dot product a · b.
func (a Vec3) Dot(b Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// Cross returns the cross product a × b.
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

// Len returns the length (magnitude) of the vector.
func (a Vec3) Len() float64 {
	return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
}

// LenSq returns the squared length (faster, no sqrt).
func (a Vec3) LenSq() float64 {
	return a.X*a.X + a.Y*a.Y + a.Z*a.Z
}

// Normalize returns the unit vector in the same direction.
// Vectors shorter than Epsilon normalize to zero.
func (a Vec3) Normalize() Vec3 {
	l := a.Len()
	if l < Epsilon {
		return Vec3{}
	}
	return Vec3{a.X / l, a.Y / l, a.Z / l}
}

// Negate returns the negated vector.
func (a Vec3) Negate() Vec3 {
	return Vec3{-a.X, -a.Y, -a.Z}
}

// Lerp returns the linear interpolation between a and b by t.
func (a Vec3) Lerp(b Vec3, t float64) Vec3 {
	return Vec3{
		a.X + (b.X-a.X)*t,
		a.Y + (b.Y-a.Y)*t,
		a.Z + (b.Z-a.Z)*t,
	}
}

// Distance returns the distance between two points.
func (a Vec3) Distance(b Vec3) float64 {
	return a.Sub(b).Len()
}

// Reflect returns the reflection of a around normal n.
func (a Vec3) Reflect(n Vec3) Vec3 {
	return a.Sub(n.Scale(2 * a.Dot(n)))
}

// Refract bends the unit direction a through a surface with unit normal n
// (pointing against a) for the relative index eta = n_from / n_to.
// It reports false on total internal reflection.
func (a Vec3) Refract(n Vec3, eta float64) (Vec3, bool) {
	cosI := -a.Dot(n)
	sin2T := eta * eta * (1 - cosI*cosI)
	if sin2T > 1 {
		return Vec3{}, false
	}
	cosT := math.Sqrt(1 - sin2T)
	return a.Scale(eta).Add(n.Scale(eta*cosI - cosT)), true
}

// Axis returns component i (0=X, 1=Y, 2=Z).
func (a Vec3) Axis(i int) float64 {
	switch i {
	case 0:
		return a.X
	case 1:
		return a.Y
	default:
		return a.Z
	}
}

// MaxAxis returns the index of the largest component.
func (a Vec3) MaxAxis() int {
	if a.X >= a.Y && a.X >= a.Z {
		return 0
	}
	if a.Y >= a.Z {
		return 1
	}
	return 2
}

// MaxComponent returns the largest component.
func (a Vec3) MaxComponent() float64 {
	return math.Max(a.X, math.Max(a.Y, a.Z))
}

// Mean returns the average of the three components.
func (a Vec3) Mean() float64 {
	return (a.X + a.Y + a.Z) / 3
}

// Luminance returns the Rec. 709 luminance of a linear RGB color.
func (a Vec3) Luminance() float64 {
	return 0.2126*a.X + 0.7152*a.Y + 0.0722*a.Z
}

// IsFinite reports whether no component is NaN or infinite.
func (a Vec3) IsFinite() bool {
	return !math.IsNaN(a.X) && !math.IsNaN(a.Y) && !math.IsNaN(a.Z) &&
		!math.IsInf(a.X, 0) && !math.IsInf(a.Y, 0) && !math.IsInf(a.Z, 0)
}

// IsZero reports whether every component is exactly zero.
func (a Vec3) IsZero() bool {
	return a.X == 0 && a.Y == 0 && a.Z == 0
}

// Basis builds an orthonormal tangent frame (t, b) around the unit vector n
// (Duff et al. 2017).
func Basis(n Vec3) (t, b Vec3) {
	sign := math.Copysign(1, n.Z)
	a := -1 / (sign + n.Z)
	c := n.X * n.Y * a
	t = Vec3{1 + sign*n.X*n.X*a, sign * c, -sign * n.X}
	b = Vec3{c, sign + n.Y*n.Y*a, -n.Y}
	return t, b
}

// FromLocal maps a direction expressed in the (t, b, n) frame to world space.
func FromLocal(local, t, b, n Vec3) Vec3 {
	return t.Scale(local.X).Add(b.Scale(local.Y)).Add(n.Scale(local.Z))
}

// ToLocal expresses a world direction in the (t, b, n) frame.
func ToLocal(v, t, b, n Vec3) Vec3 {
	return Vec3{v.Dot(t), v.Dot(b), v.Dot(n)}
}

// Min returns the component-wise minimum.
func (a Vec3) Min(b Vec3) Vec3 {
	return Vec3{
		math.Min(a.X, b.X),
		math.Min(a.Y, b.Y),
		math.Min(a.Z, b.Z),
	}
}

// Max returns the component-wise maximum.
func (a Vec3) Max(b Vec3) Vec3 {
	return Vec3{
		math.Max(a.X, b.X),
		math.Max(a.Y, b.Y),
		math.Max(a.Z, b.Z),
	}
}

// Abs returns the component-wise absolute value.
func (a Vec3) Abs() Vec3 {
	return Vec3{
		math.Abs(a.X),
		math.Abs(a.Y),
		math.Abs(a.Z),
	}
}

// Floor returns the component-wise floor.
func (a Vec3) Floor() Vec3 {
	return Vec3{
		math.Floor(a.X),
		math.Floor(a.Y),
		math.Floor(a.Z),
	}
}

// Ceil returns the component-wise ceiling.
func (a Vec3) Ceil() Vec3 {
	return Vec3{
		math.Ceil(a.X),
		math.Ceil(a.Y),
		math.Ceil(a.Z),
	}
}
