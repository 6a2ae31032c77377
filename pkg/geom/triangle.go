package geom

import (
	"math"

	"github.com/taigrr/prism/pkg/math3d"
)

// Triangle is a world-space triangle with optional per-vertex normals and
// texture coordinates. A zero normal means the face normal is used.
type Triangle struct {
	V        [3]math3d.Vec3
	N        [3]math3d.Vec3
	UV       [3]math3d.Vec2
	Material int32
}

// FaceNormal returns the unit geometric normal, wound counter-clockwise.
func (t *Triangle) FaceNormal() math3d.Vec3 {
	return t.V[1].Sub(t.V[0]).Cross(t.V[2].Sub(t.V[0])).Normalize()
}

// Area returns the triangle's surface area.
func (t *Triangle) Area() float64 {
	return 0.5 * t.V[1].Sub(t.V[0]).Cross(t.V[2].Sub(t.V[0])).Len()
}

// Bounds returns the triangle's bounding box.
func (t *Triangle) Bounds() AABB {
	return NewAABB(t.V[0], t.V[1]).Extend(t.V[2])
}

// HasNormals reports whether shading normals were supplied.
func (t *Triangle) HasNormals() bool {
	return !t.N[0].IsZero() && !t.N[1].IsZero() && !t.N[2].IsZero()
}

// Interpolate blends the vertex attributes with weights w (summing to one).
func (t *Triangle) Interpolate(w math3d.Vec3) (pos, normal math3d.Vec3, uv math3d.Vec2) {
	pos = t.V[0].Scale(w.X).Add(t.V[1].Scale(w.Y)).Add(t.V[2].Scale(w.Z))
	if t.HasNormals() {
		normal = t.N[0].Scale(w.X).Add(t.N[1].Scale(w.Y)).Add(t.N[2].Scale(w.Z)).Normalize()
	}
	if normal.IsZero() {
		normal = t.FaceNormal()
	}
	uv = t.UV[0].Scale(w.X).Add(t.UV[1].Scale(w.Y)).Add(t.UV[2].Scale(w.Z))
	return pos, normal, uv
}

// SamplePoint maps two uniform numbers to a uniformly distributed point on
// the triangle and returns it with its barycentric weights.
func (t *Triangle) SamplePoint(u1, u2 float64) (math3d.Vec3, math3d.Vec3) {
	su := math.Sqrt(u1)
	w := math3d.V3(1-su, u2*su, 0)
	w.Z = 1 - w.X - w.Y
	p := t.V[0].Scale(w.X).Add(t.V[1].Scale(w.Y)).Add(t.V[2].Scale(w.Z))
	return p, w
}

// IntersectTriangle is the two-sided Möller-Trumbore test. It returns the ray
// parameter and the weights (u, v) of V[1] and V[2].
func IntersectTriangle(r math3d.Ray, v0, v1, v2 math3d.Vec3, tMin, tMax float64) (float64, math3d.Vec2, bool) {
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	p := r.Dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < math3d.Epsilon {
		return 0, math3d.Vec2{}, false
	}
	inv := 1 / det
	s := r.Origin.Sub(v0)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, math3d.Vec2{}, false
	}
	q := s.Cross(e1)
	v := r.Dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, math3d.Vec2{}, false
	}
	t := e2.Dot(q) * inv
	if t <= tMin || t >= tMax {
		return 0, math3d.Vec2{}, false
	}
	return t, math3d.V2(u, v), true
}

// Triangles is the triangle primitive buffer.
type Triangles struct {
	Buffer[Triangle]
}

// NewTriangles allocates a triangle buffer.
func NewTriangles(capacity int, policy Overflow) *Triangles {
	return &Triangles{NewBuffer[Triangle]("triangles", capacity, policy)}
}

// Bounds returns one box per live triangle.
func (ts *Triangles) Bounds() []AABB {
	out := make([]AABB, ts.Len())
	for i := range out {
		out[i] = ts.At(i).Bounds()
	}
	return out
}

// Intersect tests live triangle i.
func (ts *Triangles) Intersect(i int, r math3d.Ray, tMax float64) (float64, math3d.Vec2, bool) {
	tri := ts.At(i)
	return IntersectTriangle(r, tri.V[0], tri.V[1], tri.V[2], math3d.RayEpsilon, tMax)
}
