// Package sampling holds the warping functions and random sources shared by
// the material model and the path tracer.
package sampling

import (
	"math"
	"math/rand/v2"

	"github.com/taigrr/prism/pkg/math3d"
)

// Rand is the source of uniform numbers in [0, 1) consumed by sampling
// routines. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// NewRand returns a deterministic PCG stream for one pixel of one frame.
func NewRand(pixel int, frame uint64) *rand.Rand {
	pcg := &rand.PCG{}
	Seed(pcg, pixel, frame)
	return rand.New(pcg)
}

// Seed rewinds pcg to the stream NewRand(pixel, frame) would return, so a
// worker can reuse one generator across pixels.
func Seed(pcg *rand.PCG, pixel int, frame uint64) {
	pcg.Seed(uint64(pixel)*0x9e3779b97f4a7c15+1, frame*0xbf58476d1ce4e5b9+7)
}

// CosineHemisphere maps (u1, u2) to a direction around +Z with density
// cos(theta)/pi.
func CosineHemisphere(u1, u2 float64) math3d.Vec3 {
	r := math.Sqrt(u1)
	phi := 2 * math.Pi * u2
	return math3d.V3(r*math.Cos(phi), r*math.Sin(phi), math.Sqrt(max(0, 1-u1)))
}

// CosineHemispherePDF is the density of CosineHemisphere for a direction
// with the given cosine to +Z.
func CosineHemispherePDF(cosTheta float64) float64 {
	return max(cosTheta, 0) / math.Pi
}

// UniformSphere maps (u1, u2) to a uniformly distributed unit vector.
func UniformSphere(u1, u2 float64) math3d.Vec3 {
	z := 1 - 2*u1
	r := math.Sqrt(max(0, 1-z*z))
	phi := 2 * math.Pi * u2
	return math3d.V3(r*math.Cos(phi), r*math.Sin(phi), z)
}

// UniformSpherePDF is the constant density of UniformSphere.
const UniformSpherePDF = 1 / (4 * math.Pi)

// PowerLobe maps (u1, u2) to a direction around +Z with density
// (e+1)/(2pi) cos^e(theta).
func PowerLobe(u1, u2, exponent float64) math3d.Vec3 {
	cosTheta := math.Pow(u1, 1/(exponent+1))
	sinTheta := math.Sqrt(max(0, 1-cosTheta*cosTheta))
	phi := 2 * math.Pi * u2
	return math3d.V3(sinTheta*math.Cos(phi), sinTheta*math.Sin(phi), cosTheta)
}

// PowerLobePDF is the density of PowerLobe.
func PowerLobePDF(cosTheta, exponent float64) float64 {
	if cosTheta <= 0 {
		return 0
	}
	return (exponent + 1) / (2 * math.Pi) * math.Pow(cosTheta, exponent)
}

// PowerHeuristic returns the MIS weight a²/(a²+b²) of a strategy with
// density a against one with density b.
func PowerHeuristic(a, b float64) float64 {
	a2, b2 := a*a, b*b
	if a2+b2 == 0 || math.IsInf(a2, 1) {
		return 1
	}
	return a2 / (a2 + b2)
}

// Halton returns element index of the radical-inverse sequence in base.
func Halton(index, base int) float64 {
	f, r := 1.0, 0.0
	for i := index; i > 0; i /= base {
		f /= float64(base)
		r += f * float64(i%base)
	}
	return r
}

// HenyeyGreenstein samples a scattering direction for the phase function
// with asymmetry g, relative to the propagation direction wi (the direction
// the ray was travelling). g = 0 is isotropic.
func HenyeyGreenstein(wi math3d.Vec3, g, u1, u2 float64) math3d.Vec3 {
	var cosTheta float64
	if math.Abs(g) < 1e-3 {
		cosTheta = 1 - 2*u1
	} else {
		sq := (1 - g*g) / (1 - g + 2*g*u1)
		cosTheta = (1 + g*g - sq*sq) / (2 * g)
	}
	sinTheta := math.Sqrt(max(0, 1-cosTheta*cosTheta))
	phi := 2 * math.Pi * u2
	t, b := math3d.Basis(wi)
	local := math3d.V3(sinTheta*math.Cos(phi), sinTheta*math.Sin(phi), cosTheta)
	return math3d.FromLocal(local, t, b, wi)
}

// HenyeyGreensteinPDF is the phase function value (and sampling density)
// for the angle whose cosine to the propagation direction is cosTheta.
func HenyeyGreensteinPDF(cosTheta, g float64) float64 {
	denom := 1 + g*g - 2*g*cosTheta
	return UniformSpherePDF * (1 - g*g) / (denom * math.Sqrt(max(denom, math3d.Epsilon)))
}
