package math3d

// Ray is a half line Origin + t*Dir for t >= 0. Dir is kept unit length by
// every constructor in this module.
type Ray struct {
	Origin Vec3
	Dir    Vec3
}

// NewRay returns a ray with a normalized direction.
func NewRay(origin, dir Vec3) Ray {
	return Ray{Origin: origin, Dir: dir.Normalize()}
}

// At returns the point at parameter t.
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Dir.Scale(t))
}

// Offset moves the origin along n by RayEpsilon, towards the side Dir leaves to.
func (r Ray) Offset(n Vec3) Ray {
	if r.Dir.Dot(n) < 0 {
		n = n.Negate()
	}
	return Ray{Origin: r.Origin.Add(n.Scale(RayEpsilon)), Dir: r.Dir}
}
