package material

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/taigrr/prism/pkg/math3d"
	"github.com/taigrr/prism/pkg/sampling"
)

const tol = 1e-9

func approx3(a, b math3d.Vec3, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps && math.Abs(a.Z-b.Z) <= eps
}

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

// randomPair returns a unit normal and two unit directions on its side.
func randomPair(rng *rand.Rand) (n, wi, wo math3d.Vec3) {
	n = sampling.UniformSphere(rng.Float64(), rng.Float64())
	for {
		wi = sampling.UniformSphere(rng.Float64(), rng.Float64())
		wo = sampling.UniformSphere(rng.Float64(), rng.Float64())
		if n.Dot(wi) > 0.05 && n.Dot(wo) > 0.05 {
			return n, wi, wo
		}
	}
}

type fixture struct {
	table            *Table
	lambert, ggx, ph ID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	tab := NewTable()
	return fixture{
		table:   tab,
		lambert: tab.MustAdd(Lambert(Const(math3d.V3(0.8, 0.4, 0.2)))),
		ggx:     tab.MustAdd(GGX(Const(math3d.V3(0.9, 0.85, 0.7)), 0.4)),
		ph:      tab.MustAdd(Phong(Gray(0.5), 30)),
	}
}

func TestTableValidation(t *testing.T) {
	tests := []struct {
		name string
		node Node
	}{
		{"dangling add child", AddOf(0, 7)},
		{"negative mix child", MixOf(-1, 0, 0.5)},
		{"mix amount out of range", MixOf(0, 0, 1.5)},
		{"dangling scale child", ScaleOf(3, Gray(1))},
		{"empty virtual", Virtual()},
		{"dangling virtual child", Virtual(0, 9)},
		{"zero roughness", GGX(Gray(1), 0)},
		{"negative exponent", Phong(Gray(1), -1)},
		{"zero ior", Glass(Gray(1), 0, 0)},
		{"negative strength", Emission(Gray(1), -2)},
		{"unregistered texture", Lambert(TextureInput(4, math3d.Splat3(1)))},
		{"unknown kind", Node{Kind: Kind(200)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tab := NewTable()
			tab.MustAdd(Lambert(Gray(0.5)))
			id, err := tab.Add(tt.node)
			if !errors.Is(err, ErrInvalidNode) {
				t.Fatalf("got %v, want ErrInvalidNode", err)
			}
			if id != None {
				t.Errorf("got id %d, want None", id)
			}
			if tab.Len() != 1 {
				t.Errorf("got %d nodes, want 1", tab.Len())
			}
		})
	}
}

func TestTableValidateWhole(t *testing.T) {
	f := newFixture(t)
	f.table.MustAdd(AddOf(f.lambert, f.ggx))
	if err := f.table.Validate(); err != nil {
		t.Fatalf("valid table: %v", err)
	}
	// A node referencing itself can only appear through direct mutation.
	f.table.Node(f.lambert).Kind = KindScale
	f.table.Node(f.lambert).A = f.lambert
	if err := f.table.Validate(); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("got %v, want ErrInvalidNode for a self reference", err)
	}
}

func TestAddLaw(t *testing.T) {
	f := newFixture(t)
	sum := f.table.MustAdd(AddOf(f.lambert, f.ggx))
	p := DefaultParams()
	rng := testRand()
	for range 200 {
		n, wi, wo := randomPair(rng)
		got := f.table.BRDF(sum, n, wi, wo, &p)
		want := f.table.BRDF(f.lambert, n, wi, wo, &p).Add(f.table.BRDF(f.ggx, n, wi, wo, &p))
		if !approx3(got, want, tol) {
			t.Fatalf("add: got %v, want %v", got, want)
		}
	}
	want := f.table.Ambient(f.lambert, &p).Add(f.table.Ambient(f.ggx, &p))
	if got := f.table.Ambient(sum, &p); !approx3(got, want, tol) {
		t.Errorf("ambient: got %v, want %v", got, want)
	}
}

func TestScaleLaw(t *testing.T) {
	f := newFixture(t)
	k := math3d.V3(0.5, 2, 0.25)
	scaled := f.table.MustAdd(ScaleOf(f.ph, Const(k)))
	unit := f.table.MustAdd(ScaleOf(f.ph, Gray(1)))
	p := DefaultParams()
	rng := testRand()
	for range 200 {
		n, wi, wo := randomPair(rng)
		base := f.table.BRDF(f.ph, n, wi, wo, &p)
		if got, want := f.table.BRDF(scaled, n, wi, wo, &p), base.Mul(k); !approx3(got, want, tol) {
			t.Fatalf("scale: got %v, want %v", got, want)
		}
		if got := f.table.BRDF(unit, n, wi, wo, &p); !approx3(got, base, tol) {
			t.Fatalf("scale by one: got %v, want %v", got, base)
		}
		if got, want := f.table.PDF(scaled, n, wi, wo, &p), f.table.PDF(f.ph, n, wi, wo, &p); math.Abs(got-want) > tol {
			t.Fatalf("scale pdf: got %v, want %v", got, want)
		}
	}
}

func TestMixLaw(t *testing.T) {
	f := newFixture(t)
	mix0 := f.table.MustAdd(MixOf(f.lambert, f.ggx, 0))
	mix1 := f.table.MustAdd(MixOf(f.lambert, f.ggx, 1))
	same := f.table.MustAdd(MixOf(f.ggx, f.ggx, 0.3))
	half := f.table.MustAdd(MixOf(f.lambert, f.ggx, 0.5))
	p := DefaultParams()
	rng := testRand()
	for range 200 {
		n, wi, wo := randomPair(rng)
		a := f.table.BRDF(f.lambert, n, wi, wo, &p)
		b := f.table.BRDF(f.ggx, n, wi, wo, &p)
		cases := []struct {
			name      string
			got, want math3d.Vec3
		}{
			{"t=0", f.table.BRDF(mix0, n, wi, wo, &p), a},
			{"t=1", f.table.BRDF(mix1, n, wi, wo, &p), b},
			{"idempotent", f.table.BRDF(same, n, wi, wo, &p), b},
			{"half", f.table.BRDF(half, n, wi, wo, &p), a.Add(b).Scale(0.5)},
		}
		for _, c := range cases {
			if !approx3(c.got, c.want, tol) {
				t.Fatalf("%s: got %v, want %v", c.name, c.got, c.want)
			}
		}
	}
}

func TestSampleWeightMatchesEval(t *testing.T) {
	f := newFixture(t)
	glass := f.table.MustAdd(Glass(Gray(1), 1.5, 0))
	ids := map[string]ID{
		"lambert":    f.lambert,
		"ggx":        f.ggx,
		"phong":      f.ph,
		"add":        f.table.MustAdd(AddOf(f.lambert, f.ggx)),
		"mix":        f.table.MustAdd(MixOf(f.ph, f.lambert, 0.7)),
		"mix glass":  f.table.MustAdd(MixOf(glass, f.lambert, 0.5)),
		"scaled add": f.table.MustAdd(ScaleOf(f.table.MustAdd(AddOf(f.ph, f.ggx)), Gray(0.5))),
	}
	p := DefaultParams()
	for name, id := range ids {
		t.Run(name, func(t *testing.T) {
			rng := testRand()
			samples := 0
			for range 2000 {
				n, _, wo := randomPair(rng)
				s := f.table.Sample(id, wo, n, 1, rng, &p)
				if !s.OK || s.Delta {
					continue
				}
				samples++
				if s.PDF <= 0 {
					t.Fatalf("non-positive pdf %v", s.PDF)
				}
				pdf := f.table.PDF(id, n, s.Dir, wo, &p)
				if math.Abs(pdf-s.PDF) > 1e-6*max(1, pdf) {
					t.Fatalf("pdf: got %v, want %v", s.PDF, pdf)
				}
				want := f.table.BRDF(id, n, s.Dir, wo, &p).Scale(n.Dot(s.Dir) / pdf)
				if !approx3(s.Weight, want, 1e-6*max(1, want.MaxComponent())) {
					t.Fatalf("weight: got %v, want %v", s.Weight, want)
				}
			}
			if samples == 0 {
				t.Fatal("no continuous samples drawn")
			}
		})
	}
}

func TestPDFNormalized(t *testing.T) {
	f := newFixture(t)
	n := math3d.V3(0, 0, 1)
	wo := math3d.V3(0.3, 0, 1).Normalize()
	tests := []struct {
		name     string
		id       ID
		min, max float64
	}{
		{"lambert", f.lambert, 0.97, 1.03},
		{"ggx", f.ggx, 0.9, 1.05},
		{"phong", f.ph, 0.9, 1.05},
	}
	p := DefaultParams()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := testRand()
			const count = 400000
			sum := 0.0
			for range count {
				wi := sampling.UniformSphere(rng.Float64(), rng.Float64())
				sum += f.table.PDF(tt.id, n, wi, wo, &p) / sampling.UniformSpherePDF
			}
			got := sum / count
			if got < tt.min || got > tt.max {
				t.Errorf("integral of pdf: got %v, want in [%v, %v]", got, tt.min, tt.max)
			}
		})
	}
}

func TestLambertWeightIsAlbedo(t *testing.T) {
	f := newFixture(t)
	p := DefaultParams()
	rng := testRand()
	n := math3d.V3(0, 1, 0)
	for range 100 {
		s := f.table.Sample(f.lambert, math3d.V3(0.2, 1, 0).Normalize(), n, 1, rng, &p)
		if !s.OK {
			t.Fatal("lambert sample failed")
		}
		if want := math3d.V3(0.8, 0.4, 0.2); !approx3(s.Weight, want, tol) {
			t.Fatalf("got %v, want %v", s.Weight, want)
		}
		if n.Dot(s.Dir) <= 0 {
			t.Fatalf("direction %v below the surface", s.Dir)
		}
	}
}

func TestMirror(t *testing.T) {
	tab := NewTable()
	m := tab.MustAdd(Mirror(Gray(0.9)))
	p := DefaultParams()
	n := math3d.V3(0, 1, 0)
	wo := math3d.V3(1, 1, 0).Normalize()
	s := tab.Sample(m, wo, n, 1, testRand(), &p)
	if !s.OK || !s.Delta {
		t.Fatalf("got %+v, want an ok delta sample", s)
	}
	if want := math3d.V3(-1, 1, 0).Normalize(); !approx3(s.Dir, want, tol) {
		t.Errorf("got %v, want %v", s.Dir, want)
	}
	if got := tab.BRDF(m, n, s.Dir, wo, &p); !got.IsZero() {
		t.Errorf("delta BRDF: got %v, want zero", got)
	}
}

func TestGlass(t *testing.T) {
	tab := NewTable()
	g := tab.MustAdd(Glass(Gray(1), 1.5, 0))
	p := DefaultParams()
	n := math3d.V3(0, 0, 1)
	wo := math3d.V3(0, 0, 1)
	rng := testRand()

	const count = 20000
	reflected := 0
	for range count {
		s := tab.Sample(g, wo, n, 1, rng, &p)
		if !s.OK || !s.Delta {
			t.Fatalf("got %+v, want an ok delta sample", s)
		}
		switch {
		case approx3(s.Dir, wo, 1e-9):
			reflected++
		case approx3(s.Dir, wo.Negate(), 1e-9):
		default:
			t.Fatalf("unexpected direction %v", s.Dir)
		}
	}
	// Normal incidence reflectance of n = 1.5 is 0.04.
	if got := float64(reflected) / count; math.Abs(got-0.04) > 0.01 {
		t.Errorf("reflected fraction: got %v, want 0.04", got)
	}

	t.Run("total internal reflection", func(t *testing.T) {
		grazing := math3d.V3(0.9, 0, 0.2).Normalize()
		for range 100 {
			s := tab.Sample(g, grazing, n, -1, rng, &p)
			if s.Dir.Z <= 0 {
				t.Fatalf("got %v, want reflection", s.Dir)
			}
		}
	})

	t.Run("dispersion", func(t *testing.T) {
		d := tab.MustAdd(Glass(Const(math3d.V3(1, 0.5, 0.25)), 1.5, 0.01))
		for range 100 {
			s := tab.Sample(d, math3d.V3(0.3, 0, 1).Normalize(), n, 1, rng, &p)
			nonzero := 0
			for i := range 3 {
				if s.Weight.Axis(i) != 0 {
					nonzero++
				}
			}
			if nonzero != 1 {
				t.Fatalf("got weight %v, want exactly one channel", s.Weight)
			}
		}
		if r, b := channelIOR(1.5, 0.01, 0), channelIOR(1.5, 0.01, 2); !(r < 1.5 && b > 1.5) {
			t.Errorf("got red %v blue %v, want red < 1.5 < blue", r, b)
		}
	})
}

func TestFresnelDielectric(t *testing.T) {
	tests := []struct {
		name            string
		cos, etaI, etaT float64
		want            float64
	}{
		{"normal incidence", 1, 1, 1.5, 0.04},
		{"matched index", 0.7, 1.3, 1.3, 0},
		{"total internal reflection", 0.1, 1.5, 1, 1},
		{"grazing", 0, 1, 1.5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fresnelDielectric(tt.cos, tt.etaI, tt.etaT); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVirtual(t *testing.T) {
	tab := NewTable()
	red := tab.MustAdd(Lambert(Const(math3d.V3(1, 0, 0))))
	green := tab.MustAdd(Lambert(Const(math3d.V3(0, 1, 0))))
	v := tab.MustAdd(Virtual(red, green))
	tests := []struct {
		variant int
		want    math3d.Vec3
	}{
		{0, math3d.V3(1, 0, 0)},
		{1, math3d.V3(0, 1, 0)},
		{5, math3d.V3(1, 0, 0)},
		{-1, math3d.V3(1, 0, 0)},
	}
	for _, tt := range tests {
		p := DefaultParams()
		p.Variant = tt.variant
		if got := tab.Ambient(v, &p); !approx3(got, tt.want, tol) {
			t.Errorf("variant %d: got %v, want %v", tt.variant, got, tt.want)
		}
	}
}

func TestEmittedOneSided(t *testing.T) {
	tab := NewTable()
	e := tab.MustAdd(Emission(Const(math3d.V3(1, 0.5, 0.25)), 4))
	glow := tab.MustAdd(AddOf(tab.MustAdd(Lambert(Gray(0.5))), e))
	p := DefaultParams()
	if got, want := tab.Emitted(glow, 1, &p), math3d.V3(4, 2, 1); !approx3(got, want, tol) {
		t.Errorf("front: got %v, want %v", got, want)
	}
	if got := tab.Emitted(glow, -1, &p); !got.IsZero() {
		t.Errorf("back: got %v, want zero", got)
	}
	if !tab.IsEmissive(glow) {
		t.Error("got not emissive, want emissive")
	}
	if got := tab.Ambient(e, &p); !got.IsZero() {
		t.Errorf("emission ambient: got %v, want zero", got)
	}
}

func TestInputs(t *testing.T) {
	tab := NewTable()
	tex := NewCheckerTexture(2, 2, 1, math3d.Splat3(1), math3d.Splat3(0))
	tex.Filter = FilterNearest
	idx := tab.AddTexture(tex)

	p := DefaultParams()
	p.Color = math3d.V3(0.5, 0.25, 1)
	if got, want := tab.Eval(VertexColor(math3d.V3(2, 2, 0.5)), &p), math3d.V3(1, 0.5, 0.5); !approx3(got, want, tol) {
		t.Errorf("vertex color: got %v, want %v", got, want)
	}

	p.TexCoord = math3d.V2(0.25, 0.75)
	if got := tab.Eval(TextureInput(idx, math3d.Splat3(1)), &p); !approx3(got, math3d.Splat3(1), tol) {
		t.Errorf("texture top left: got %v, want white", got)
	}
	p.TexCoord = math3d.V2(0.75, 0.75)
	if got := tab.Eval(TextureInput(idx, math3d.Splat3(1)), &p); !got.IsZero() {
		t.Errorf("texture top right: got %v, want black", got)
	}

	checker := Checker(math3d.Splat3(1), math3d.Splat3(0), 1)
	p.Position = math3d.V3(0.5, 0.5, 0.5)
	a := tab.Eval(checker, &p)
	p.Position = math3d.V3(1.5, 0.5, 0.5)
	b := tab.Eval(checker, &p)
	if approx3(a, b, tol) {
		t.Errorf("adjacent checker cells both %v", a)
	}
}

func BenchmarkSampleGGX(b *testing.B) {
	tab := NewTable()
	id := tab.MustAdd(GGX(Gray(0.9), 0.3))
	p := DefaultParams()
	rng := testRand()
	n := math3d.V3(0, 0, 1)
	wo := math3d.V3(0.4, 0.1, 1).Normalize()
	for b.Loop() {
		_ = tab.Sample(id, wo, n, 1, rng, &p)
	}
}
