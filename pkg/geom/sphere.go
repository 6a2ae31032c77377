package geom

import (
	"math"

	"github.com/taigrr/prism/pkg/math3d"
)

// Sphere is a particle: a world-space center and radius.
type Sphere struct {
	Center   math3d.Vec3
	Radius   float64
	Material int32
}

// Bounds returns the sphere's bounding box.
func (s *Sphere) Bounds() AABB {
	r := math3d.Splat3(s.Radius)
	return AABB{Min: s.Center.Sub(r), Max: s.Center.Add(r)}
}

// Normal returns the outward unit normal at surface point p.
func (s *Sphere) Normal(p math3d.Vec3) math3d.Vec3 {
	return p.Sub(s.Center).Normalize()
}

// TexCoord returns spherical (longitude, latitude) coordinates in [0,1]².
func (s *Sphere) TexCoord(n math3d.Vec3) math3d.Vec2 {
	u := 0.5 + math.Atan2(n.Z, n.X)/(2*math.Pi)
	v := 0.5 + math.Asin(math3d.Clamp(n.Y, -1, 1))/math.Pi
	return math3d.V2(u, v)
}

// IntersectSphere returns the nearest ray parameter in (tMin, tMax).
func IntersectSphere(r math3d.Ray, center math3d.Vec3, radius, tMin, tMax float64) (float64, bool) {
	oc := r.Origin.Sub(center)
	b := oc.Dot(r.Dir)
	c := oc.LenSq() - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t <= tMin {
		t = -b + sq
	}
	if t <= tMin || t >= tMax {
		return 0, false
	}
	return t, true
}

// Spheres is the particle buffer.
type Spheres struct {
	Buffer[Sphere]
}

// NewSpheres allocates a particle buffer.
func NewSpheres(capacity int, policy Overflow) *Spheres {
	return &Spheres{NewBuffer[Sphere]("particles", capacity, policy)}
}

// Bounds returns one box per live particle.
func (ss *Spheres) Bounds() []AABB {
	out := make([]AABB, ss.Len())
	for i := range out {
		out[i] = ss.At(i).Bounds()
	}
	return out
}

// Intersect tests live particle i. The uv result is unused.
func (ss *Spheres) Intersect(i int, r math3d.Ray, tMax float64) (float64, math3d.Vec2, bool) {
	s := ss.At(i)
	t, ok := IntersectSphere(r, s.Center, s.Radius, math3d.RayEpsilon, tMax)
	return t, math3d.Vec2{}, ok
}
