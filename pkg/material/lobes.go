package material

import (
	"math"

	"github.com/taigrr/prism/pkg/math3d"
	"github.com/taigrr/prism/pkg/sampling"
)

// minAlpha keeps the GGX distribution finite for mirror-like roughness.
const minAlpha = 1e-3

func ggxAlpha(roughness float64) float64 {
	return max(roughness*roughness, minAlpha)
}

// ggxD is the Trowbridge-Reitz normal distribution.
func ggxD(cosH, alpha float64) float64 {
	a2 := alpha * alpha
	d := cosH*cosH*(a2-1) + 1
	return a2 / (math.Pi * max(d*d, math3d.Epsilon))
}

// schlickG1 is the Smith-Schlick masking term with k = alpha/2.
func schlickG1(cos, alpha float64) float64 {
	k := alpha / 2
	return cos / max(cos*(1-k)+k, math3d.Epsilon)
}

// smithG1 is the exact Smith masking term for GGX, which normalizes the
// visible normal distribution used for sampling.
func smithG1(cos, alpha float64) float64 {
	a2 := alpha * alpha
	return 2 * cos / max(cos+math.Sqrt(a2+(1-a2)*cos*cos), math3d.Epsilon)
}

func schlickFresnel(f0 math3d.Vec3, cos float64) math3d.Vec3 {
	m := math.Pow(1-math3d.Clamp01(cos), 5)
	return f0.Add(math3d.Splat3(1).Sub(f0).Scale(m))
}

func ggxBRDF(f0 math3d.Vec3, alpha float64, n, wi, wo math3d.Vec3) math3d.Vec3 {
	cosI, cosO := n.Dot(wi), n.Dot(wo)
	if cosI <= 0 || cosO <= 0 {
		return math3d.Vec3{}
	}
	h := wi.Add(wo).Normalize()
	if h.IsZero() {
		return math3d.Vec3{}
	}
	d := ggxD(n.Dot(h), alpha)
	g := schlickG1(cosI, alpha) * schlickG1(cosO, alpha)
	f := schlickFresnel(f0, wo.Dot(h))
	return f.Scale(d * g / max(4*cosI*cosO, math3d.Epsilon))
}

// ggxPDF is the density of sampleVNDF followed by reflection about the
// sampled normal.
func ggxPDF(alpha float64, n, wi, wo math3d.Vec3) float64 {
	cosI, cosO := n.Dot(wi), n.Dot(wo)
	if cosI <= 0 || cosO <= 0 {
		return 0
	}
	h := wi.Add(wo).Normalize()
	return smithG1(cosO, alpha) * ggxD(n.Dot(h), alpha) / max(4*cosO, math3d.Epsilon)
}

// sampleVNDF draws a microfacet normal from the distribution of normals
// visible from wo (Heitz 2018). Vectors are in the local frame, z = normal.
func sampleVNDF(wo math3d.Vec3, alpha, u1, u2 float64) math3d.Vec3 {
	vh := math3d.V3(alpha*wo.X, alpha*wo.Y, wo.Z).Normalize()
	lensq := vh.X*vh.X + vh.Y*vh.Y
	t1 := math3d.V3(1, 0, 0)
	if lensq > 0 {
		t1 = math3d.V3(-vh.Y, vh.X, 0).Scale(1 / math.Sqrt(lensq))
	}
	t2 := vh.Cross(t1)

	r := math.Sqrt(u1)
	phi := 2 * math.Pi * u2
	p1 := r * math.Cos(phi)
	p2 := r * math.Sin(phi)
	s := 0.5 * (1 + vh.Z)
	p2 = (1-s)*math.Sqrt(max(0, 1-p1*p1)) + s*p2

	nh := t1.Scale(p1).Add(t2.Scale(p2)).Add(vh.Scale(math.Sqrt(max(0, 1-p1*p1-p2*p2))))
	return math3d.V3(alpha*nh.X, alpha*nh.Y, max(0, nh.Z)).Normalize()
}

func phongBRDF(ks math3d.Vec3, exponent float64, n, wi, wo math3d.Vec3) math3d.Vec3 {
	if n.Dot(wi) <= 0 || n.Dot(wo) <= 0 {
		return math3d.Vec3{}
	}
	r := wo.Negate().Reflect(n)
	c := r.Dot(wi)
	if c <= 0 {
		return math3d.Vec3{}
	}
	return ks.Scale((exponent + 2) / (2 * math.Pi) * math.Pow(c, exponent))
}

func phongPDF(exponent float64, n, wi, wo math3d.Vec3) float64 {
	if n.Dot(wi) <= 0 || n.Dot(wo) <= 0 {
		return 0
	}
	return sampling.PowerLobePDF(wo.Negate().Reflect(n).Dot(wi), exponent)
}

// fresnelDielectric is the unpolarized Fresnel reflectance for light arriving
// at cosine cosI from a medium of index etaI into one of index etaT.
func fresnelDielectric(cosI, etaI, etaT float64) float64 {
	cosI = math3d.Clamp01(cosI)
	sinT := etaI / etaT * math.Sqrt(max(0, 1-cosI*cosI))
	if sinT >= 1 {
		return 1
	}
	cosT := math.Sqrt(max(0, 1-sinT*sinT))
	rs := (etaT*cosI - etaI*cosT) / (etaT*cosI + etaI*cosT)
	rp := (etaI*cosI - etaT*cosT) / (etaI*cosI + etaT*cosT)
	return (rs*rs + rp*rp) / 2
}

// Wavelengths in µm that the RGB channels stand for under dispersion; green
// carries the nominal index.
var channelWavelength = [3]float64{0.65, 0.55, 0.45}

// channelIOR applies Cauchy's equation relative to the green wavelength.
func channelIOR(ior, b float64, channel int) float64 {
	l := channelWavelength[channel]
	g := channelWavelength[1]
	return ior + b*(1/(l*l)-1/(g*g))
}
