package sampling

import (
	"math"
	"testing"

	"github.com/taigrr/prism/pkg/math3d"
)

func TestCosineHemisphereIsUnitAndUpper(t *testing.T) {
	rng := NewRand(3, 9)
	for range 1000 {
		d := CosineHemisphere(rng.Float64(), rng.Float64())
		if math.Abs(d.Len()-1) > 1e-9 || d.Z < 0 {
			t.Fatalf("bad direction %v", d)
		}
	}
}

func TestCosineHemisphereMean(t *testing.T) {
	// E[cos] under cos/pi density is 2/3.
	rng := NewRand(1, 1)
	const n = 200000
	var sum float64
	for range n {
		sum += CosineHemisphere(rng.Float64(), rng.Float64()).Z
	}
	if got := sum / n; math.Abs(got-2.0/3.0) > 0.005 {
		t.Errorf("mean cosine = %v, want 2/3", got)
	}
}

func TestPowerHeuristic(t *testing.T) {
	tests := []struct {
		a, b, want float64
	}{
		{1, 1, 0.5},
		{2, 0, 1},
		{0, 3, 0},
		{0, 0, 1},
		{math.Inf(1), 1, 1},
		{3, 1, 0.9},
	}
	for _, tt := range tests {
		if got := PowerHeuristic(tt.a, tt.b); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("PowerHeuristic(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
	// Weights of complementary strategies sum to one.
	if s := PowerHeuristic(0.7, 2.3) + PowerHeuristic(2.3, 0.7); math.Abs(s-1) > 1e-12 {
		t.Errorf("complementary weights sum to %v", s)
	}
}

func TestHalton(t *testing.T) {
	want := []float64{0, 0.5, 0.25, 0.75, 0.125}
	for i, w := range want {
		if got := Halton(i, 2); got != w {
			t.Errorf("Halton(%d, 2) = %v, want %v", i, got, w)
		}
	}
	if got := Halton(1, 3); math.Abs(got-1.0/3) > 1e-12 {
		t.Errorf("Halton(1, 3) = %v, want 1/3", got)
	}
}

func TestHenyeyGreensteinNormalized(t *testing.T) {
	// Integrate the phase function over the sphere by uniform sampling.
	rng := NewRand(5, 5)
	for _, g := range []float64{0, 0.5, -0.3} {
		const n = 200000
		var sum float64
		for range n {
			d := UniformSphere(rng.Float64(), rng.Float64())
			sum += HenyeyGreensteinPDF(d.Z, g) / UniformSpherePDF
		}
		if got := sum / n; math.Abs(got-1) > 0.03 {
			t.Errorf("g=%v: integral = %v, want 1", g, got)
		}
	}

	wi := math3d.V3(0, 0, 1)
	var mean float64
	for range 50000 {
		mean += HenyeyGreenstein(wi, 0.6, rng.Float64(), rng.Float64()).Z
	}
	if got := mean / 50000; math.Abs(got-0.6) > 0.02 {
		t.Errorf("mean cosine = %v, want g = 0.6", got)
	}
}
