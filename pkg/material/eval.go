package material

import (
	"fmt"
	"math"

	"github.com/taigrr/prism/pkg/math3d"
	"github.com/taigrr/prism/pkg/sampling"
)

// Sample is one importance-sampled scattering direction.
//
// Weight is f*cos/pdf for continuous lobes and the lobe throughput for delta
// lobes. PDF is the solid-angle density of Dir under the full node and is
// meaningless when Delta is set.
type Sample struct {
	Dir       math3d.Vec3
	Weight    math3d.Vec3
	PDF       float64
	Roughness float64
	Delta     bool
	OK        bool
}

// Validate checks every node of the table.
func (t *Table) Validate() error {
	for i, n := range t.nodes {
		sub := Table{nodes: t.nodes[:i], textures: t.textures}
		if err := sub.validate(n); err != nil {
			return fmt.Errorf("node %d (%s): %w", i, n.Kind, err)
		}
	}
	return nil
}

// BRDF evaluates f(wi, wo) of node id without the cosine term. Delta lobes
// contribute nothing.
func (t *Table) BRDF(id ID, n, wi, wo math3d.Vec3, p *Params) math3d.Vec3 {
	_, node := t.resolve(id, p)
	switch node.Kind {
	case KindLambert:
		if n.Dot(wi) <= 0 || n.Dot(wo) <= 0 {
			return math3d.Vec3{}
		}
		return t.Eval(node.Color, p).Scale(1 / math.Pi)
	case KindGGX:
		return ggxBRDF(t.Eval(node.Color, p), ggxAlpha(node.Roughness), n, wi, wo)
	case KindPhong:
		return phongBRDF(t.Eval(node.Color, p), node.Exponent, n, wi, wo)
	case KindAdd:
		return t.BRDF(node.A, n, wi, wo, p).Add(t.BRDF(node.B, n, wi, wo, p))
	case KindMix:
		return lerp3(t.BRDF(node.A, n, wi, wo, p), t.BRDF(node.B, n, wi, wo, p), node.Amount)
	case KindScale:
		return t.BRDF(node.A, n, wi, wo, p).Mul(t.Eval(node.Color, p))
	}
	return math3d.Vec3{}
}

// PDF is the density with which Sample picks wi given wo.
func (t *Table) PDF(id ID, n, wi, wo math3d.Vec3, p *Params) float64 {
	_, node := t.resolve(id, p)
	switch node.Kind {
	case KindLambert:
		if n.Dot(wo) <= 0 {
			return 0
		}
		return sampling.CosineHemispherePDF(n.Dot(wi))
	case KindGGX:
		return ggxPDF(ggxAlpha(node.Roughness), n, wi, wo)
	case KindPhong:
		return phongPDF(node.Exponent, n, wi, wo)
	case KindAdd, KindMix:
		pa := t.choiceA(node, p)
		return pa*t.PDF(node.A, n, wi, wo, p) + (1-pa)*t.PDF(node.B, n, wi, wo, p)
	case KindScale:
		return t.PDF(node.A, n, wi, wo, p)
	}
	return 0
}

// Ambient is the hemispherical albedo estimate of node id, used for ambient
// lighting in the rasterizer and for lobe selection in composites.
func (t *Table) Ambient(id ID, p *Params) math3d.Vec3 {
	_, node := t.resolve(id, p)
	switch node.Kind {
	case KindLambert, KindGGX, KindPhong, KindGlass, KindMirror:
		return t.Eval(node.Color, p)
	case KindAdd:
		return t.Ambient(node.A, p).Add(t.Ambient(node.B, p))
	case KindMix:
		return lerp3(t.Ambient(node.A, p), t.Ambient(node.B, p), node.Amount)
	case KindScale:
		return t.Ambient(node.A, p).Mul(t.Eval(node.Color, p))
	}
	return math3d.Vec3{}
}

// Emitted is the radiance leaving the surface of node id. Emitters are one
// sided: sign is +1 when the front face was hit and nothing is emitted
// otherwise.
func (t *Table) Emitted(id ID, sign float64, p *Params) math3d.Vec3 {
	if sign <= 0 {
		return math3d.Vec3{}
	}
	_, node := t.resolve(id, p)
	switch node.Kind {
	case KindEmission:
		return t.Eval(node.Color, p).Scale(node.Strength)
	case KindAdd:
		return t.Emitted(node.A, sign, p).Add(t.Emitted(node.B, sign, p))
	case KindMix:
		return lerp3(t.Emitted(node.A, sign, p), t.Emitted(node.B, sign, p), node.Amount)
	case KindScale:
		return t.Emitted(node.A, sign, p).Mul(t.Eval(node.Color, p))
	}
	return math3d.Vec3{}
}

// Sample draws wi for node id. n must be on the side of wo; sign is +1 when
// the hit is on the geometric front face, which glass uses to pick the
// direction of refraction.
func (t *Table) Sample(id ID, wo, n math3d.Vec3, sign float64, rng sampling.Rand, p *Params) Sample {
	cosO := n.Dot(wo)
	if cosO <= 0 {
		return Sample{}
	}
	id, node := t.resolve(id, p)
	switch node.Kind {
	case KindLambert:
		tb, bb := math3d.Basis(n)
		local := sampling.CosineHemisphere(rng.Float64(), rng.Float64())
		if local.Z <= 0 {
			return Sample{}
		}
		return Sample{
			Dir:       math3d.FromLocal(local, tb, bb, n),
			Weight:    t.Eval(node.Color, p),
			PDF:       sampling.CosineHemispherePDF(local.Z),
			Roughness: 1,
			OK:        true,
		}
	case KindGGX:
		alpha := ggxAlpha(node.Roughness)
		tb, bb := math3d.Basis(n)
		woL := math3d.ToLocal(wo, tb, bb, n)
		h := sampleVNDF(woL, alpha, rng.Float64(), rng.Float64())
		wiL := h.Scale(2 * woL.Dot(h)).Sub(woL)
		if wiL.Z <= 0 {
			return Sample{}
		}
		wi := math3d.FromLocal(wiL, tb, bb, n)
		return t.continuous(id, n, wi, wo, node.Roughness, p)
	case KindPhong:
		r := wo.Negate().Reflect(n)
		tb, bb := math3d.Basis(r)
		wi := math3d.FromLocal(sampling.PowerLobe(rng.Float64(), rng.Float64(), node.Exponent), tb, bb, r)
		if n.Dot(wi) <= 0 {
			return Sample{}
		}
		return t.continuous(id, n, wi, wo, 1/math.Sqrt(node.Exponent+2), p)
	case KindMirror:
		return Sample{
			Dir:    wo.Negate().Reflect(n),
			Weight: t.Eval(node.Color, p),
			PDF:    1,
			Delta:  true,
			OK:     true,
		}
	case KindGlass:
		return t.sampleGlass(node, wo, n, sign, rng, p)
	case KindAdd, KindMix:
		pa := t.choiceA(node, p)
		child, pc := node.A, pa
		if rng.Float64() >= pa {
			child, pc = node.B, 1-pa
		}
		s := t.Sample(child, wo, n, sign, rng, p)
		if !s.OK {
			return s
		}
		if s.Delta {
			// The delta lobe's share of a Mix equals its selection probability.
			if node.Kind == KindAdd {
				s.Weight = s.Weight.Scale(1 / pc)
			}
			return s
		}
		return t.continuous(id, n, s.Dir, wo, s.Roughness, p)
	case KindScale:
		s := t.Sample(node.A, wo, n, sign, rng, p)
		s.Weight = s.Weight.Mul(t.Eval(node.Color, p))
		return s
	}
	return Sample{}
}

// continuous builds a sample for a non-delta direction from the full node so
// that composite weights account for every lobe.
func (t *Table) continuous(id ID, n, wi, wo math3d.Vec3, roughness float64, p *Params) Sample {
	pdf := t.PDF(id, n, wi, wo, p)
	cosI := n.Dot(wi)
	if pdf <= 0 || cosI <= 0 {
		return Sample{}
	}
	f := t.BRDF(id, n, wi, wo, p)
	return Sample{
		Dir:       wi,
		Weight:    f.Scale(cosI / pdf),
		PDF:       pdf,
		Roughness: roughness,
		OK:        true,
	}
}

// choiceA is the probability of picking child A of an Add or Mix node.
func (t *Table) choiceA(node *Node, p *Params) float64 {
	if node.Kind == KindMix {
		return 1 - node.Amount
	}
	a := t.Ambient(node.A, p).Luminance()
	b := t.Ambient(node.B, p).Luminance()
	if a+b <= 0 {
		return 0.5
	}
	return a / (a + b)
}

func (t *Table) sampleGlass(node *Node, wo, n math3d.Vec3, sign float64, rng sampling.Rand, p *Params) Sample {
	tint := t.Eval(node.Color, p)
	ior := node.IOR
	mask := math3d.Splat3(1)
	if node.Dispersion > 0 {
		c := min(int(rng.Float64()*3), 2)
		ior = channelIOR(node.IOR, node.Dispersion, c)
		var m [3]float64
		m[c] = 3
		mask = math3d.V3(m[0], m[1], m[2])
	}
	etaI, etaT := 1.0, ior
	if sign < 0 {
		etaI, etaT = ior, 1
	}

	s := Sample{PDF: 1, Delta: true, OK: true}
	in := wo.Negate()
	f := fresnelDielectric(n.Dot(wo), etaI, etaT)
	if rng.Float64() < f {
		s.Dir = in.Reflect(n)
		s.Weight = mask
		return s
	}
	dir, ok := in.Refract(n, etaI/etaT)
	if !ok {
		s.Dir = in.Reflect(n)
		s.Weight = mask
		return s
	}
	s.Dir = dir.Normalize()
	s.Weight = tint.Mul(mask)
	return s
}
