// Package trace is the progressive path tracer: BVH-accelerated ray casts,
// next event estimation with multiple importance sampling, Russian roulette
// and participating media, feeding a film.Accumulator one sample per pixel
// per pass.
package trace

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/taigrr/prism/pkg/bvh"
	"github.com/taigrr/prism/pkg/geom"
	"github.com/taigrr/prism/pkg/light"
	"github.com/taigrr/prism/pkg/log"
	"github.com/taigrr/prism/pkg/material"
	"github.com/taigrr/prism/pkg/math3d"
)

var logger = log.New("trace")

var (
	// ErrNotBuilt is returned when a Scene is traced before Build.
	ErrNotBuilt = errors.New("trace: scene not built")
	// ErrMaterial is returned by Build when a primitive names a material the
	// table does not hold.
	ErrMaterial = errors.New("trace: unknown material")
)

// Kind tells which primitive set a hit came from.
type Kind uint8

const (
	KindTriangle Kind = iota
	KindSphere
	KindBox
)

func (k Kind) String() string {
	switch k {
	case KindTriangle:
		return "triangle"
	case KindSphere:
		return "sphere"
	case KindBox:
		return "box"
	}
	return "unknown"
}

// Environment is the radiance seen by rays that leave the scene. Zenith is
// reached straight up, Horizon at and below the horizon; equal values give
// a constant sky.
type Environment struct {
	Zenith  math3d.Vec3
	Horizon math3d.Vec3
}

// ConstantEnvironment returns a uniform sky.
func ConstantEnvironment(c math3d.Vec3) Environment {
	return Environment{Zenith: c, Horizon: c}
}

// Radiance returns the sky radiance along dir.
func (e Environment) Radiance(dir math3d.Vec3) math3d.Vec3 {
	return e.Horizon.Lerp(e.Zenith, math3d.Clamp01(dir.Y))
}

// Scene is the traced world. Fill the exported fields, then call Build;
// changing geometry afterwards requires another Build.
type Scene struct {
	Triangles   *geom.Triangles
	Spheres     *geom.Spheres
	Boxes       *geom.Boxes
	Materials   *material.Table
	Lights      []light.Light
	Environment Environment
	Medium      *Medium
	Variant     int

	sets       [3]set
	emitters   []int     // triangle indices with an emissive material
	cdf        []float64 // running emitter area, normalized to end at 1
	area       float64
	generation uint64
	built      bool
}

type set struct {
	tree  *bvh.BVH
	prims bvh.Intersector
}

// Intersection describes the nearest surface along a ray.
type Intersection struct {
	T        float64
	Kind     Kind
	Index    int
	Position math3d.Vec3
	// Geometric is the unit geometric normal: the face normal for triangles,
	// outward for spheres and boxes.
	Geometric math3d.Vec3
	// Normal is the interpolated shading normal on the same side as
	// Geometric.
	Normal   math3d.Vec3
	TexCoord math3d.Vec2
	Material material.ID
}

// Build validates materials, builds one BVH per primitive set and collects
// the emissive triangles used as area lights.
func (s *Scene) Build(opts bvh.Options) error {
	if s.Materials == nil {
		s.Materials = material.NewTable()
	}
	if err := s.checkMaterials(); err != nil {
		return err
	}

	s.sets = [3]set{}
	if s.Triangles != nil && s.Triangles.Len() > 0 {
		tree, err := bvh.Build(s.Triangles.Bounds(), opts)
		if err != nil {
			return fmt.Errorf("triangles: %w", err)
		}
		s.sets[KindTriangle] = set{tree, s.Triangles}
	}
	if s.Spheres != nil && s.Spheres.Len() > 0 {
		tree, err := bvh.Build(s.Spheres.Bounds(), opts)
		if err != nil {
			return fmt.Errorf("spheres: %w", err)
		}
		s.sets[KindSphere] = set{tree, s.Spheres}
	}
	if s.Boxes != nil && s.Boxes.Len() > 0 {
		tree, err := bvh.Build(s.Boxes.Bounds(), opts)
		if err != nil {
			return fmt.Errorf("boxes: %w", err)
		}
		s.sets[KindBox] = set{tree, s.Boxes}
	}

	s.collectEmitters()
	s.generation++
	s.built = true
	logger.Debugf("scene built: %d emitters (area %.3f), %d point/directional lights", len(s.emitters), s.area, len(s.Lights))
	return nil
}

func (s *Scene) checkMaterials() error {
	check := func(kind Kind, i int, id int32) error {
		if !s.Materials.Valid(material.ID(id)) {
			return fmt.Errorf("%s %d: material %d: %w", kind, i, id, ErrMaterial)
		}
		return nil
	}
	if s.Triangles != nil {
		for i, t := range s.Triangles.Items() {
			if err := check(KindTriangle, i, t.Material); err != nil {
				return err
			}
		}
	}
	if s.Spheres != nil {
		for i, sp := range s.Spheres.Items() {
			if err := check(KindSphere, i, sp.Material); err != nil {
				return err
			}
		}
	}
	if s.Boxes != nil {
		for i, b := range s.Boxes.Items() {
			if err := check(KindBox, i, b.Material); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scene) collectEmitters() {
	s.emitters = s.emitters[:0]
	s.cdf = s.cdf[:0]
	s.area = 0
	if s.Triangles == nil {
		return
	}
	for i, t := range s.Triangles.Items() {
		if !s.Materials.IsEmissive(material.ID(t.Material)) {
			continue
		}
		a := t.Area()
		if a < math3d.Epsilon {
			continue
		}
		s.area += a
		s.emitters = append(s.emitters, i)
		s.cdf = append(s.cdf, s.area)
	}
	for i := range s.cdf {
		s.cdf[i] /= s.area
	}
}

// Generation increments on every Build.
func (s *Scene) Generation() uint64 {
	return s.generation
}

// Emitters returns the number of triangles sampled as area lights.
func (s *Scene) Emitters() int {
	return len(s.emitters)
}

// StackSize is the traversal stack capacity that suffices for every set.
func (s *Scene) StackSize() int {
	n := 1
	for _, st := range s.sets {
		if st.tree != nil {
			n = max(n, st.tree.StackSize())
		}
	}
	return n
}

// SetStats pairs a primitive kind with the shape of its tree.
type SetStats struct {
	Kind  Kind
	Stats bvh.Stats
}

// TreeStats reports one entry per non-empty primitive set.
func (s *Scene) TreeStats() []SetStats {
	var out []SetStats
	for k, st := range s.sets {
		if st.tree != nil {
			out = append(out, SetStats{Kind(k), st.tree.Stats()})
		}
	}
	return out
}

// NewStack returns a traversal stack for one worker.
func (s *Scene) NewStack() *bvh.Stack {
	return bvh.NewStack(s.StackSize())
}

// Hit returns the nearest intersection along r closer than tMax.
func (s *Scene) Hit(r math3d.Ray, tMax float64, stack *bvh.Stack) (Intersection, bool, error) {
	if !s.built {
		return Intersection{}, false, ErrNotBuilt
	}
	var (
		best  bvh.Hit
		kind  Kind
		found bool
	)
	for k, st := range s.sets {
		if st.tree == nil {
			continue
		}
		h, ok, err := st.tree.Hit(r, tMax, st.prims, stack)
		if err != nil {
			return Intersection{}, false, fmt.Errorf("%s: %w", Kind(k), err)
		}
		if ok {
			best, kind, found = h, Kind(k), true
			tMax = h.T
		}
	}
	if !found {
		return Intersection{}, false, nil
	}
	return s.describe(r, best, kind), true, nil
}

// Occluded reports whether anything blocks r before tMax.
func (s *Scene) Occluded(r math3d.Ray, tMax float64, stack *bvh.Stack) (bool, error) {
	if !s.built {
		return false, ErrNotBuilt
	}
	for k, st := range s.sets {
		if st.tree == nil {
			continue
		}
		hit, err := st.tree.Occluded(r, tMax, st.prims, stack)
		if err != nil {
			return false, fmt.Errorf("%s: %w", Kind(k), err)
		}
		if hit {
			return true, nil
		}
	}
	return false, nil
}

func (s *Scene) describe(r math3d.Ray, h bvh.Hit, kind Kind) Intersection {
	in := Intersection{T: h.T, Kind: kind, Index: h.Prim, Position: r.At(h.T)}
	switch kind {
	case KindTriangle:
		tri := s.Triangles.At(h.Prim)
		w := math3d.V3(1-h.UV.X-h.UV.Y, h.UV.X, h.UV.Y)
		pos, n, uv := tri.Interpolate(w)
		in.Position = pos
		in.Geometric = tri.FaceNormal()
		in.Normal = n
		in.TexCoord = uv
		in.Material = material.ID(tri.Material)
	case KindSphere:
		sp := s.Spheres.At(h.Prim)
		in.Geometric = sp.Normal(in.Position)
		in.Normal = in.Geometric
		in.TexCoord = sp.TexCoord(in.Geometric)
		in.Material = material.ID(sp.Material)
	case KindBox:
		b := s.Boxes.At(h.Prim)
		// Re-run the box test for the face normal; the BVH only reports t.
		_, n, ok := geom.IntersectBox(r, b.Bounds(), math3d.RayEpsilon, math.Inf(1))
		if !ok {
			n = r.Dir.Negate()
		}
		in.Geometric = n
		in.Normal = n
		in.TexCoord = boxTexCoord(in.Position, b.Bounds(), n)
		in.Material = material.ID(b.Material)
	}
	if in.Normal.Dot(in.Geometric) < 0 {
		in.Normal = in.Normal.Negate()
	}
	return in
}

// boxTexCoord projects p onto the face with normal n, in [0,1]².
func boxTexCoord(p math3d.Vec3, b geom.AABB, n math3d.Vec3) math3d.Vec2 {
	size := b.Size()
	rel := p.Sub(b.Min)
	u := func(axis int) float64 { return math3d.SafeDiv(rel.Axis(axis), size.Axis(axis)) }
	switch n.Abs().MaxAxis() {
	case 0:
		return math3d.V2(u(2), u(1))
	case 1:
		return math3d.V2(u(0), u(2))
	default:
		return math3d.V2(u(0), u(1))
	}
}

// sampleEmitter picks an emissive triangle with probability proportional to
// its area and a uniform point on it. The returned density is per unit
// area over all emitters.
func (s *Scene) sampleEmitter(u0, u1, u2 float64) (tri *geom.Triangle, p math3d.Vec3, pdfArea float64) {
	k := sort.SearchFloat64s(s.cdf, u0)
	k = min(k, len(s.emitters)-1)
	tri = s.Triangles.At(s.emitters[k])
	p, _ = tri.SamplePoint(u1, u2)
	return tri, p, 1 / s.area
}

// isEmitter reports whether a hit is on a triangle that light sampling can
// also reach.
func (s *Scene) isEmitter(in Intersection) bool {
	return in.Kind == KindTriangle && len(s.emitters) > 0 && s.Materials.IsEmissive(in.Material) && s.Triangles.At(in.Index).Area() >= math3d.Epsilon
}
