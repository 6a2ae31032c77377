package geom

import (
	"math"

	"github.com/taigrr/prism/pkg/math3d"
)

// Box is a voxel: a solid axis-aligned cuboid.
type Box struct {
	Min, Max math3d.Vec3
	Material int32
}

// Voxel returns a cube of edge length size centered at c.
func Voxel(c math3d.Vec3, size float64, material int32) Box {
	h := math3d.Splat3(size / 2)
	return Box{Min: c.Sub(h), Max: c.Add(h), Material: material}
}

// Bounds returns the voxel's extent.
func (b *Box) Bounds() AABB {
	return AABB{Min: b.Min, Max: b.Max}
}

// IntersectBox returns the nearest surface crossing in (tMin, tMax) and the
// outward normal of the face crossed. A ray starting inside hits the exit
// face.
func IntersectBox(r math3d.Ray, box AABB, tMin, tMax float64) (float64, math3d.Vec3, bool) {
	tNear, tFar := math.Inf(-1), math.Inf(1)
	nearAxis, farAxis := 0, 0
	for axis := range 3 {
		o := r.Origin.Axis(axis)
		d := r.Dir.Axis(axis)
		lo, hi := box.Min.Axis(axis), box.Max.Axis(axis)
		if math.Abs(d) < math3d.Epsilon {
			if o < lo || o > hi {
				return 0, math3d.Vec3{}, false
			}
			continue
		}
		t0 := (lo - o) / d
		t1 := (hi - o) / d
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tNear {
			tNear, nearAxis = t0, axis
		}
		if t1 < tFar {
			tFar, farAxis = t1, axis
		}
	}
	if tNear > tFar {
		return 0, math3d.Vec3{}, false
	}

	t, axis, sign := tNear, nearAxis, -1.0
	if t <= tMin {
		t, axis, sign = tFar, farAxis, 1.0
	}
	if t <= tMin || t >= tMax {
		return 0, math3d.Vec3{}, false
	}

	var n math3d.Vec3
	d := r.Dir.Axis(axis)
	switch axis {
	case 0:
		n.X = sign * math.Copysign(1, d)
	case 1:
		n.Y = sign * math.Copysign(1, d)
	default:
		n.Z = sign * math.Copysign(1, d)
	}
	return t, n, true
}

// Boxes is the voxel buffer.
type Boxes struct {
	Buffer[Box]
}

// NewBoxes allocates a voxel buffer.
func NewBoxes(capacity int, policy Overflow) *Boxes {
	return &Boxes{NewBuffer[Box]("voxels", capacity, policy)}
}

// Bounds returns one box per live voxel.
func (bs *Boxes) Bounds() []AABB {
	out := make([]AABB, bs.Len())
	for i := range out {
		out[i] = bs.At(i).Bounds()
	}
	return out
}

// Intersect tests live voxel i. The uv result is unused; callers recover the
// face normal with IntersectBox.
func (bs *Boxes) Intersect(i int, r math3d.Ray, tMax float64) (float64, math3d.Vec2, bool) {
	t, _, ok := IntersectBox(r, bs.At(i).Bounds(), math3d.RayEpsilon, tMax)
	return t, math3d.Vec2{}, ok
}
