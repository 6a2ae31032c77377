package trace

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/taigrr/prism/pkg/geom"
	"github.com/taigrr/prism/pkg/math3d"
)

// slab is a 2x1x1 box crossed along +x by the test ray.
func slab(density *Grid) *Medium {
	return &Medium{
		Bounds:  geom.NewAABB(math3d.V3(0, 0, 0), math3d.V3(2, 1, 1)),
		Sigma:   0.5,
		Albedo:  math3d.V3(1, 1, 1),
		Density: density,
	}
}

var slabRay = math3d.NewRay(math3d.V3(-5, 0.5, 0.5), math3d.V3(1, 0, 0))

func TestMediumTransmittance(t *testing.T) {
	tests := []struct {
		name string
		m    *Medium
		tMax float64
		want float64
	}{
		{"homogeneous", slab(nil), math.Inf(1), math.Exp(-1)},
		{"stops at surface", slab(nil), 6, math.Exp(-0.5)},
		{"heterogeneous", slab(&Grid{Nx: 2, Ny: 1, Nz: 1, Values: []float64{1, 3}}), math.Inf(1), math.Exp(-2)},
		{"missed", slab(nil), 4, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.Transmittance(slabRay, tt.tMax); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMediumSampleDistance(t *testing.T) {
	tests := []struct {
		name string
		m    *Medium
		u    float64
		want float64
	}{
		{"homogeneous", slab(nil), 1 - math.Exp(-0.5), 6},
		{"heterogeneous", slab(&Grid{Nx: 2, Ny: 1, Nz: 1, Values: []float64{1, 3}}), 1 - math.Exp(-1), 5 + 4.0/3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.m.SampleDistance(slabRay, math.Inf(1), tt.u)
			if !ok {
				t.Fatal("got no scatter, want one")
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMediumScatterFraction(t *testing.T) {
	m := slab(&Grid{Nx: 2, Ny: 1, Nz: 1, Values: []float64{1, 3}})
	rng := rand.New(rand.NewPCG(7, 11))
	const n = 20000
	scattered := 0
	for range n {
		if _, ok := m.SampleDistance(slabRay, math.Inf(1), rng.Float64()); ok {
			scattered++
		}
	}
	want := 1 - m.Transmittance(slabRay, math.Inf(1))
	if got := float64(scattered) / n; math.Abs(got-want) > 0.02 {
		t.Errorf("got scatter fraction %v, want %v", got, want)
	}
}

func TestMediumValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Medium)
		ok     bool
	}{
		{"valid", func(*Medium) {}, true},
		{"negative sigma", func(m *Medium) { m.Sigma = -1 }, false},
		{"asymmetry", func(m *Medium) { m.G = 1 }, false},
		{"empty bounds", func(m *Medium) { m.Bounds = geom.EmptyAABB() }, false},
		{"grid shape", func(m *Medium) { m.Density = &Grid{Nx: 2, Ny: 2, Nz: 1, Values: []float64{1}} }, false},
		{"negative density", func(m *Medium) { m.Density = &Grid{Nx: 1, Ny: 1, Nz: 1, Values: []float64{-1}} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := slab(nil)
			tt.mutate(m)
			err := m.Validate()
			if tt.ok && err != nil {
				t.Errorf("got %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrMedium) {
				t.Errorf("got %v, want ErrMedium", err)
			}
		})
	}
}
