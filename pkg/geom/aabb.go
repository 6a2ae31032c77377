// Package geom holds the primitive buffers consumed by the rasterizer and the
// path tracer, together with their bounding boxes and exact ray tests.
package geom

import (
	"math"

	"github.com/taigrr/prism/pkg/math3d"
)

// AABB represents an axis-aligned bounding box.
type AABB struct {
	Min math3d.Vec3
	Max math3d.Vec3
}

// EmptyAABB returns an inverted box that any Union or Extend replaces.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{Min: math3d.Splat3(inf), Max: math3d.Splat3(-inf)}
}

// NewAABB creates an AABB from two opposite corners in any order.
func NewAABB(a, b math3d.Vec3) AABB {
	return AABB{Min: a.Min(b), Max: a.Max(b)}
}

// IsEmpty reports whether the box contains no point.
func (b AABB) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Center returns the center of the AABB.
func (b AABB) Center() math3d.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the dimensions of the AABB.
func (b AABB) Size() math3d.Vec3 {
	return b.Max.Sub(b.Min)
}

// LongestAxis returns 0, 1 or 2 for the axis of greatest extent.
func (b AABB) LongestAxis() int {
	return b.Size().MaxAxis()
}

// Union returns the smallest box enclosing both boxes.
func (b AABB) Union(o AABB) AABB {
	return AABB{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// Extend returns the smallest box enclosing b and p.
func (b AABB) Extend(p math3d.Vec3) AABB {
	return AABB{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Contains reports whether o lies entirely inside b. An empty o is contained
// by every box.
func (b AABB) Contains(o AABB) bool {
	if o.IsEmpty() {
		return true
	}
	return b.ContainsPoint(o.Min) && b.ContainsPoint(o.Max)
}

// ContainsPoint returns true if the point is inside the AABB.
func (b AABB) ContainsPoint(p math3d.Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// SurfaceArea returns the total area of the six faces.
func (b AABB) SurfaceArea() float64 {
	if b.IsEmpty() {
		return 0
	}
	s := b.Size()
	return 2 * (s.X*s.Y + s.Y*s.Z + s.Z*s.X)
}

// Transform returns a box bounding the eight transformed corners of b.
func (b AABB) Transform(m math3d.Mat4) AABB {
	out := EmptyAABB()
	for i := range 8 {
		corner := math3d.V3(
			pick(i&1 != 0, b.Max.X, b.Min.X),
			pick(i&2 != 0, b.Max.Y, b.Min.Y),
			pick(i&4 != 0, b.Max.Z, b.Min.Z),
		)
		out = out.Extend(m.MulVec3(corner))
	}
	return out
}

// InvDir returns the component-wise reciprocal of a ray direction, the form
// the slab test consumes. Zero components become signed infinities.
func InvDir(dir math3d.Vec3) math3d.Vec3 {
	return math3d.V3(1/dir.X, 1/dir.Y, 1/dir.Z)
}

// Hit runs the slab test and returns the entry distance clamped to tMin.
func (b AABB) Hit(origin, invDir math3d.Vec3, tMin, tMax float64) (float64, bool) {
	t0, _, ok := b.Span(origin, invDir, tMin, tMax)
	return t0, ok
}

// Span returns the parameter interval [t0, t1] of the ray inside the box,
// clipped to [tMin, tMax].
func (b AABB) Span(origin, invDir math3d.Vec3, tMin, tMax float64) (float64, float64, bool) {
	for axis := range 3 {
		o := origin.Axis(axis)
		inv := invDir.Axis(axis)
		t0 := (b.Min.Axis(axis) - o) * inv
		t1 := (b.Max.Axis(axis) - o) * inv
		if inv < 0 {
			t0, t1 = t1, t0
		}
		// NaN from 0*inf keeps the previous interval.
		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}
		if tMax < tMin {
			return 0, 0, false
		}
	}
	return tMin, tMax, true
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}
