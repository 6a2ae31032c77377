package trace

import (
	"errors"
	"math"

	"github.com/taigrr/prism/pkg/geom"
	"github.com/taigrr/prism/pkg/math3d"
	"github.com/taigrr/prism/pkg/sampling"
)

// ErrMedium reports an inconsistent Medium.
var ErrMedium = errors.New("trace: invalid medium")

// Grid is a density field over a medium's bounds, indexed x-fastest. Values
// scale the medium's extinction coefficient.
type Grid struct {
	Nx, Ny, Nz int
	Values     []float64
}

// At returns the value of the cell holding local coordinate f in [0,1]³.
func (g *Grid) At(f math3d.Vec3) float64 {
	cell := func(v float64, n int) int {
		return min(max(int(v*float64(n)), 0), n-1)
	}
	x, y, z := cell(f.X, g.Nx), cell(f.Y, g.Ny), cell(f.Z, g.Nz)
	return g.Values[x+g.Nx*(y+g.Ny*z)]
}

// Medium is a participating medium filling an axis-aligned box. Without a
// Density grid it is homogeneous.
type Medium struct {
	Bounds  geom.AABB
	Sigma   float64     // extinction per unit length at density 1
	Albedo  math3d.Vec3 // scattering over extinction
	G       float64     // Henyey-Greenstein asymmetry, 0 is isotropic
	Density *Grid
	// Steps is the ray-march resolution across the box for heterogeneous
	// media; zero means 4 steps per grid cell along the longest axis.
	Steps int
}

// Validate checks parameter ranges and the grid shape.
func (m *Medium) Validate() error {
	switch {
	case m.Sigma < 0 || math.IsNaN(m.Sigma):
		return errors.Join(ErrMedium, errors.New("negative extinction"))
	case m.G <= -1 || m.G >= 1:
		return errors.Join(ErrMedium, errors.New("asymmetry outside (-1, 1)"))
	case m.Bounds.IsEmpty():
		return errors.Join(ErrMedium, errors.New("empty bounds"))
	}
	if g := m.Density; g != nil {
		if g.Nx <= 0 || g.Ny <= 0 || g.Nz <= 0 || len(g.Values) != g.Nx*g.Ny*g.Nz {
			return errors.Join(ErrMedium, errors.New("grid size mismatch"))
		}
		for _, v := range g.Values {
			if v < 0 {
				return errors.Join(ErrMedium, errors.New("negative density"))
			}
		}
	}
	return nil
}

// span returns the part of r inside the medium before tMax.
func (m *Medium) span(r math3d.Ray, tMax float64) (float64, float64, bool) {
	return m.Bounds.Span(r.Origin, geom.InvDir(r.Dir), 0, tMax)
}

func (m *Medium) sigmaAt(p math3d.Vec3) float64 {
	if m.Density == nil {
		return m.Sigma
	}
	size := m.Bounds.Size()
	rel := p.Sub(m.Bounds.Min)
	f := math3d.V3(
		math3d.SafeDiv(rel.X, size.X),
		math3d.SafeDiv(rel.Y, size.Y),
		math3d.SafeDiv(rel.Z, size.Z),
	)
	return m.Sigma * m.Density.At(f)
}

func (m *Medium) step() float64 {
	steps := m.Steps
	if steps <= 0 {
		g := m.Density
		steps = 4 * max(g.Nx, g.Ny, g.Nz)
	}
	return m.Bounds.Size().MaxComponent() / float64(steps)
}

// march walks [t0, t1] in midpoint steps, calling visit with the start and
// length of each step and its extinction. visit returns false to stop.
func (m *Medium) march(r math3d.Ray, t0, t1 float64, visit func(t, dt, sigma float64) bool) {
	h := m.step()
	for t := t0; t < t1; t += h {
		dt := min(h, t1-t)
		if !visit(t, dt, m.sigmaAt(r.At(t+dt/2))) {
			return
		}
	}
}

// Transmittance is the fraction of light surviving along r from 0 to tMax.
func (m *Medium) Transmittance(r math3d.Ray, tMax float64) float64 {
	t0, t1, ok := m.span(r, tMax)
	if !ok {
		return 1
	}
	if m.Density == nil {
		return math.Exp(-m.Sigma * (t1 - t0))
	}
	tau := 0.0
	m.march(r, t0, t1, func(_, dt, sigma float64) bool {
		tau += sigma * dt
		return true
	})
	return math.Exp(-tau)
}

// SampleDistance draws a free-flight distance along r by inverting the
// accumulated optical depth against -ln(1-u). It returns the scattering
// parameter and true, or false when the flight passes tMax.
func (m *Medium) SampleDistance(r math3d.Ray, tMax, u float64) (float64, bool) {
	t0, t1, ok := m.span(r, tMax)
	if !ok || m.Sigma <= 0 {
		return 0, false
	}
	target := -math.Log(1 - u)
	if m.Density == nil {
		t := t0 + target/m.Sigma
		return t, t < t1
	}
	var (
		tau   float64
		hit   float64
		found bool
	)
	m.march(r, t0, t1, func(t, dt, sigma float64) bool {
		d := sigma * dt
		if sigma > 0 && tau+d >= target {
			hit, found = t+(target-tau)/sigma, true
			return false
		}
		tau += d
		return true
	})
	return hit, found
}

// Phase returns the phase function value for scattering from propagation
// direction dir into wi; it is also the density of SamplePhase.
func (m *Medium) Phase(dir, wi math3d.Vec3) float64 {
	return sampling.HenyeyGreensteinPDF(dir.Dot(wi), m.G)
}

// SamplePhase draws a new propagation direction after scattering.
func (m *Medium) SamplePhase(dir math3d.Vec3, rng sampling.Rand) math3d.Vec3 {
	return sampling.HenyeyGreenstein(dir, m.G, rng.Float64(), rng.Float64())
}
