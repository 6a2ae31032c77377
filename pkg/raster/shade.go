package raster

import (
	"math"

	"github.com/taigrr/prism/pkg/geom"
	"github.com/taigrr/prism/pkg/material"
	"github.com/taigrr/prism/pkg/math3d"
)

// missingColor marks pixels whose primitive names no valid material.
var missingColor = math3d.V3(1, 0, 1)

// Surface is the visible point of a pixel as recovered from its owner.
type Surface struct {
	Kind     Kind
	Index    int
	Material material.ID
	Position math3d.Vec3
	Normal   math3d.Vec3
	TexCoord math3d.Vec2
	// Sign is -1 when a back face was drawn with culling disabled.
	Sign float64
}

// Surface recomputes the visible point of pixel (x, y) of the last frame.
func (r *Rasterizer) Surface(s *Scene, x, y int) (Surface, bool) {
	owner := r.Depth.Owner(y*r.Target.Width + x)
	if owner == NoOwner {
		return Surface{}, false
	}
	kind, idx := DecodeOwner(owner)
	px, py := float64(x)+r.sampleX, float64(y)+r.sampleY
	surf := Surface{Kind: kind, Index: idx, Sign: 1}

	switch kind {
	case KindTriangle:
		tri := s.Triangles.At(idx)
		st := &r.tris[idx]
		b := edgeWeights(st.x, st.y, st.area, px, py)
		b = math3d.V3(max(b.X, 0), max(b.Y, 0), max(b.Z, 0))
		surf.Position, surf.Normal, surf.TexCoord = tri.Interpolate(perspectiveWeights(b, st.invW))
		surf.Material = material.ID(tri.Material)
		if st.back {
			surf.Normal = surf.Normal.Negate()
			surf.Sign = -1
		}
	case KindParticle:
		sp := s.Particles.At(idx)
		ray := r.Transform.Ray(px, py)
		t, ok := geom.IntersectSphere(ray, sp.Center, sp.Radius, 0, math.Inf(1))
		if !ok {
			return Surface{}, false
		}
		surf.Position = ray.At(t)
		surf.Normal = sp.Normal(surf.Position)
		surf.TexCoord = sp.TexCoord(surf.Normal)
		surf.Material = material.ID(sp.Material)
	case KindVoxel:
		box := s.Voxels.At(idx)
		ray := r.Transform.Ray(px, py)
		t, n, ok := geom.IntersectBox(ray, box.Bounds(), 0, math.Inf(1))
		if !ok {
			return Surface{}, false
		}
		surf.Position = ray.At(t)
		surf.Normal = n
		surf.Material = material.ID(box.Material)
	case KindLine:
		l := s.Lines.At(idx)
		surf.Position = l.A
		surf.Material = material.ID(l.Material)
	}
	return surf, true
}

// shade evaluates the owner of pixel i against the scene's lights. Lines
// are drawn unlit in their material's albedo plus emission.
func (r *Rasterizer) shade(s *Scene, i int) math3d.Vec3 {
	width := r.Target.Width
	surf, ok := r.Surface(s, i%width, i/width)
	if !ok {
		return s.Background
	}
	mats := s.Materials
	if mats == nil || !mats.Valid(surf.Material) {
		return missingColor
	}
	p := material.DefaultParams()
	p.Position = surf.Position
	p.TexCoord = surf.TexCoord
	p.Variant = s.Variant
	id := surf.Material

	if surf.Kind == KindLine {
		return mats.Ambient(id, &p).Add(mats.Emitted(id, 1, &p))
	}

	wo := r.eye.Sub(surf.Position).Normalize()
	n := surf.Normal
	if n.Dot(wo) < 0 {
		n = n.Negate()
	}
	c := mats.Emitted(id, surf.Sign, &p)
	c = c.Add(s.Lights.Ambient.Mul(mats.Ambient(id, &p)))
	for _, l := range s.Lights.Lights {
		wi, _, radiance := l.Incident(surf.Position)
		cos := n.Dot(wi)
		if cos <= 0 {
			continue
		}
		c = c.Add(mats.BRDF(id, n, wi, wo, &p).Mul(radiance).Scale(cos))
	}
	return c
}
