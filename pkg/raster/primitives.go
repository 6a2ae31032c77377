package raster

import (
	"math"

	"github.com/taigrr/prism/pkg/geom"
	"github.com/taigrr/prism/pkg/math3d"
)

type outcome uint8

const (
	drawnPrim outcome = iota
	culledPrim
	clippedPrim
)

// bbox is an inclusive pixel rectangle.
type bbox struct {
	minX, minY, maxX, maxY int
}

// clampBox converts screen extents to a pixel rectangle inside the target.
func (r *Rasterizer) clampBox(x0, y0, x1, y1 float64) (bbox, bool) {
	w, h := float64(r.Target.Width), float64(r.Target.Height)
	x0 = math3d.Clamp(math.Floor(x0), 0, w)
	y0 = math3d.Clamp(math.Floor(y0), 0, h)
	x1 = math3d.Clamp(math.Ceil(x1), -1, w-1)
	y1 = math3d.Clamp(math.Ceil(y1), -1, h-1)
	b := bbox{int(x0), int(y0), int(x1), int(y1)}
	return b, b.minX <= b.maxX && b.minY <= b.maxY
}

type triSetup struct {
	ok   bool
	back bool
	box  bbox
	x    [3]float64
	y    [3]float64
	z    [3]float64
	invW [3]float64
	// area is twice the screen-space signed area. Rows grow downward, so
	// a triangle wound counter-clockwise towards the viewer has area < 0.
	area float64
}

func (r *Rasterizer) setupTriangle(tri *geom.Triangle, st *triSetup) outcome {
	*st = triSetup{}
	if r.Options.FrustumCull && !r.frustum.IntersectsAABB(tri.Bounds()) {
		return culledPrim
	}
	for i, v := range tri.V {
		c := r.Transform.ToClip(v)
		if c.W <= 0 {
			return clippedPrim
		}
		ndc := c.PerspectiveDivide()
		sp := r.Transform.ToViewport(ndc)
		st.x[i], st.y[i], st.z[i] = sp.X, sp.Y, ndc.Z
		st.invW[i] = 1 / c.W
	}

	st.area = (st.x[1]-st.x[0])*(st.y[2]-st.y[0]) - (st.y[1]-st.y[0])*(st.x[2]-st.x[0])
	if math.Abs(st.area) < math3d.Epsilon {
		return clippedPrim
	}
	st.back = st.area > 0
	if st.back && !r.Options.DisableCulling {
		return culledPrim
	}

	box, ok := r.clampBox(
		min(st.x[0], st.x[1], st.x[2]), min(st.y[0], st.y[1], st.y[2]),
		max(st.x[0], st.x[1], st.x[2]), max(st.y[0], st.y[1], st.y[2]),
	)
	if !ok {
		return clippedPrim
	}
	st.box = box
	st.ok = true
	return drawnPrim
}

// edgeCoeffs returns A, B, C of the edge function A*x + B*y + C, which is
// the cross product (v1-v0) x (p-v0).
func edgeCoeffs(x0, y0, x1, y1 float64) (a, b, c float64) {
	return y0 - y1, x1 - x0, x0*y1 - x1*y0
}

// edgeWeights returns the screen-space barycentric weights of (px, py).
// All three are non-negative exactly when the point is inside.
func edgeWeights(x, y [3]float64, area, px, py float64) math3d.Vec3 {
	a0, b0, c0 := edgeCoeffs(x[1], y[1], x[2], y[2])
	a1, b1, c1 := edgeCoeffs(x[2], y[2], x[0], y[0])
	a2, b2, c2 := edgeCoeffs(x[0], y[0], x[1], y[1])
	inv := 1 / area
	return math3d.V3(
		(a0*px+b0*py+c0)*inv,
		(a1*px+b1*py+c1)*inv,
		(a2*px+b2*py+c2)*inv,
	)
}

// perspectiveWeights turns screen weights into weights that interpolate
// world-space attributes: b_i/w_i renormalized.
func perspectiveWeights(b math3d.Vec3, invW [3]float64) math3d.Vec3 {
	p := math3d.V3(b.X*invW[0], b.Y*invW[1], b.Z*invW[2])
	sum := p.X + p.Y + p.Z
	if sum == 0 {
		return b
	}
	return p.Scale(1 / sum)
}

func (r *Rasterizer) coverTriangle(st *triSetup, fn func(int, uint32)) {
	if !st.ok {
		return
	}
	a0, b0, c0 := edgeCoeffs(st.x[1], st.y[1], st.x[2], st.y[2])
	a1, b1, c1 := edgeCoeffs(st.x[2], st.y[2], st.x[0], st.y[0])
	a2, b2, c2 := edgeCoeffs(st.x[0], st.y[0], st.x[1], st.y[1])
	inv := 1 / st.area
	// Scale the edge functions so that inside means all non-negative for
	// either winding.
	a0, b0, c0 = a0*inv, b0*inv, c0*inv
	a1, b1, c1 = a1*inv, b1*inv, c1*inv
	a2, b2, c2 = a2*inv, b2*inv, c2*inv

	width := r.Target.Width
	px := float64(st.box.minX) + r.sampleX
	py := float64(st.box.minY) + r.sampleY
	w0Row := a0*px + b0*py + c0
	w1Row := a1*px + b1*py + c1
	w2Row := a2*px + b2*py + c2

	for y := st.box.minY; y <= st.box.maxY; y++ {
		w0, w1, w2 := w0Row, w1Row, w2Row
		row := y * width
		for x := st.box.minX; x <= st.box.maxX; x++ {
			if w0 >= 0 && w1 >= 0 && w2 >= 0 {
				if z, ok := QuantizeDepth(w0*st.z[0] + w1*st.z[1] + w2*st.z[2]); ok {
					fn(row+x, z)
				}
			}
			w0 += a0
			w1 += a1
			w2 += a2
		}
		w0Row += b0
		w1Row += b1
		w2Row += b2
	}
}

type bboxSetup struct {
	ok  bool
	box bbox
}

func (r *Rasterizer) setupSphere(s *geom.Sphere, st *bboxSetup) outcome {
	*st = bboxSetup{}
	if r.Options.FrustumCull && !r.frustum.IntersectsSphere(s.Center, s.Radius) {
		return culledPrim
	}
	c := r.Transform.ToClip(s.Center)
	if c.W <= 0 {
		return clippedPrim
	}
	center := r.Transform.ToViewport(c.PerspectiveDivide())
	// The silhouette of a sphere at distance w is at most r/(w-r) wide in
	// focal units; one extra pixel covers rounding.
	rad := r.Transform.ToViewportScalar(s.Radius*r.Transform.ProjScale()/max(c.W-s.Radius, 1e-6)) + 1
	box, ok := r.clampBox(center.X-rad, center.Y-rad, center.X+rad, center.Y+rad)
	if !ok {
		return clippedPrim
	}
	*st = bboxSetup{ok: true, box: box}
	return drawnPrim
}

// rayDepth quantizes the normalized depth of world point p.
func (r *Rasterizer) rayDepth(p math3d.Vec3) (uint32, bool) {
	return QuantizeDepth(r.Transform.ToViewSpace(p).Z)
}

func (r *Rasterizer) coverSphere(s *geom.Sphere, st *bboxSetup, fn func(int, uint32)) {
	if !st.ok {
		return
	}
	width := r.Target.Width
	for y := st.box.minY; y <= st.box.maxY; y++ {
		for x := st.box.minX; x <= st.box.maxX; x++ {
			ray := r.Transform.Ray(float64(x)+r.sampleX, float64(y)+r.sampleY)
			t, ok := geom.IntersectSphere(ray, s.Center, s.Radius, 0, math.Inf(1))
			if !ok {
				continue
			}
			if z, ok := r.rayDepth(ray.At(t)); ok {
				fn(y*width+x, z)
			}
		}
	}
}

func (r *Rasterizer) setupBox(b *geom.Box, st *bboxSetup) outcome {
	*st = bboxSetup{}
	bounds := b.Bounds()
	if r.Options.FrustumCull && !r.frustum.IntersectsAABB(bounds) {
		return culledPrim
	}
	x0, y0 := math.Inf(1), math.Inf(1)
	x1, y1 := math.Inf(-1), math.Inf(-1)
	for i := range 8 {
		corner := math3d.V3(
			pickAxis(i&1 != 0, bounds.Max.X, bounds.Min.X),
			pickAxis(i&2 != 0, bounds.Max.Y, bounds.Min.Y),
			pickAxis(i&4 != 0, bounds.Max.Z, bounds.Min.Z),
		)
		c := r.Transform.ToClip(corner)
		if c.W <= 0 {
			return clippedPrim
		}
		sp := r.Transform.ToViewport(c.PerspectiveDivide())
		x0, y0 = min(x0, sp.X), min(y0, sp.Y)
		x1, y1 = max(x1, sp.X), max(y1, sp.Y)
	}
	box, ok := r.clampBox(x0, y0, x1, y1)
	if !ok {
		return clippedPrim
	}
	*st = bboxSetup{ok: true, box: box}
	return drawnPrim
}

func pickAxis(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}

func (r *Rasterizer) coverBox(b *geom.Box, st *bboxSetup, fn func(int, uint32)) {
	if !st.ok {
		return
	}
	bounds := b.Bounds()
	width := r.Target.Width
	for y := st.box.minY; y <= st.box.maxY; y++ {
		for x := st.box.minX; x <= st.box.maxX; x++ {
			ray := r.Transform.Ray(float64(x)+r.sampleX, float64(y)+r.sampleY)
			t, _, ok := geom.IntersectBox(ray, bounds, 0, math.Inf(1))
			if !ok {
				continue
			}
			if z, ok := r.rayDepth(ray.At(t)); ok {
				fn(y*width+x, z)
			}
		}
	}
}

type lineSetup struct {
	ok         bool
	x0, y0, z0 float64
	x1, y1, z1 float64
}

func (r *Rasterizer) setupLine(l *geom.Line, st *lineSetup) outcome {
	*st = lineSetup{}
	if r.Options.FrustumCull && !r.frustum.IntersectsAABB(geom.NewAABB(l.A, l.B)) {
		return culledPrim
	}
	a := r.Transform.ToClip(l.A)
	b := r.Transform.ToClip(l.B)
	if a.W <= 0 || b.W <= 0 {
		return clippedPrim
	}
	na := a.PerspectiveDivide()
	nb := b.PerspectiveDivide()
	sa := r.Transform.ToViewport(na)
	sb := r.Transform.ToViewport(nb)

	// Liang-Barsky against the target rectangle.
	t0, t1 := 0.0, 1.0
	dx, dy := sb.X-sa.X, sb.Y-sa.Y
	w, h := float64(r.Target.Width), float64(r.Target.Height)
	for _, e := range [4][2]float64{{-dx, sa.X}, {dx, w - sa.X}, {-dy, sa.Y}, {dy, h - sa.Y}} {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return clippedPrim
			}
			continue
		}
		t := q / p
		if p < 0 {
			t0 = max(t0, t)
		} else {
			t1 = min(t1, t)
		}
	}
	if t0 > t1 {
		return clippedPrim
	}
	dz := nb.Z - na.Z
	*st = lineSetup{
		ok: true,
		x0: sa.X + dx*t0, y0: sa.Y + dy*t0, z0: na.Z + dz*t0,
		x1: sa.X + dx*t1, y1: sa.Y + dy*t1, z1: na.Z + dz*t1,
	}
	return drawnPrim
}

// coverLine walks the segment one pixel step at a time along its major
// axis. Normalized depth is affine in screen space, so it interpolates
// linearly.
func (r *Rasterizer) coverLine(st *lineSetup, fn func(int, uint32)) {
	if !st.ok {
		return
	}
	dx, dy := st.x1-st.x0, st.y1-st.y0
	steps := int(math.Ceil(max(math.Abs(dx), math.Abs(dy))))
	if steps < 1 {
		steps = 1
	}
	width, height := r.Target.Width, r.Target.Height
	for s := 0; s <= steps; s++ {
		u := float64(s) / float64(steps)
		x := int(math.Floor(st.x0 + dx*u))
		y := int(math.Floor(st.y0 + dy*u))
		if x < 0 || x >= width || y < 0 || y >= height {
			continue
		}
		if z, ok := QuantizeDepth(st.z0 + (st.z1-st.z0)*u); ok {
			fn(y*width+x, z)
		}
	}
}
