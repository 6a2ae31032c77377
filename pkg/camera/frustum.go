package camera

import (
	"github.com/taigrr/prism/pkg/geom"
	"github.com/taigrr/prism/pkg/math3d"
)

// Plane is Normal·p + D = 0 with a unit normal pointing into the frustum.
type Plane struct {
	Normal math3d.Vec3
	D      float64
}

// Distance returns the signed distance from the plane to p.
func (p Plane) Distance(point math3d.Vec3) float64 {
	return p.Normal.Dot(point) + p.D
}

// Frustum holds the six clip planes: left, right, bottom, top, near, far.
type Frustum struct {
	Planes [6]Plane
}

// Frustum extracts the clip planes of W2V (Gribb/Hartmann). Row i of the
// column-major matrix m is m[i], m[i+4], m[i+8], m[i+12].
func (t *Transform) Frustum() Frustum {
	m := t.W2V
	row := func(i int) (math3d.Vec3, float64) {
		return math3d.V3(m[i], m[i+4], m[i+8]), m[i+12]
	}
	r3, w3 := row(3)

	var f Frustum
	for i := range 3 {
		ri, wi := row(i)
		f.Planes[2*i] = normalizePlane(r3.Add(ri), w3+wi)
		f.Planes[2*i+1] = normalizePlane(r3.Sub(ri), w3-wi)
	}
	return f
}

func normalizePlane(n math3d.Vec3, d float64) Plane {
	l := n.Len()
	if l < math3d.Epsilon {
		return Plane{Normal: n, D: d}
	}
	return Plane{Normal: n.Scale(1 / l), D: d / l}
}

// IntersectsAABB reports whether any part of box may be visible. It tests
// the corner furthest along each plane normal.
func (f Frustum) IntersectsAABB(box geom.AABB) bool {
	for _, p := range f.Planes {
		v := math3d.V3(
			sel(p.Normal.X >= 0, box.Max.X, box.Min.X),
			sel(p.Normal.Y >= 0, box.Max.Y, box.Min.Y),
			sel(p.Normal.Z >= 0, box.Max.Z, box.Min.Z),
		)
		if p.Distance(v) < 0 {
			return false
		}
	}
	return true
}

// IntersectsSphere reports whether a sphere may be visible.
func (f Frustum) IntersectsSphere(center math3d.Vec3, radius float64) bool {
	for _, p := range f.Planes {
		if p.Distance(center) < -radius {
			return false
		}
	}
	return true
}

func sel(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}
