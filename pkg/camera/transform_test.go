package camera

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/taigrr/prism/pkg/geom"
	"github.com/taigrr/prism/pkg/math3d"
)

func sphereCamera(t *testing.T, w, h int) *Transform {
	t.Helper()
	tr := NewTransform(w, h)
	view := math3d.LookAt(math3d.V3(0, 0, -3), math3d.Zero3(), math3d.Up())
	proj := math3d.Perspective(math.Pi/3, float64(w)/float64(h), 0.1, 100)
	if err := tr.SetCamera(view, proj); err != nil {
		t.Fatalf("SetCamera: %v", err)
	}
	return tr
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	tests := []struct {
		name string
		view math3d.Mat4
		proj math3d.Mat4
	}{
		{"perspective", math3d.LookAt(math3d.V3(1, 2, 5), math3d.Zero3(), math3d.Up()), math3d.Perspective(math.Pi/4, 1.6, 0.5, 50)},
		{"orthographic", math3d.LookAt(math3d.V3(-3, 1, 0), math3d.V3(0, 1, 0), math3d.Up()), math3d.Orthographic(-4, 4, -3, 3, 0.1, 20)},
		{"wide", math3d.RotateY(1.2).Mul(math3d.Translate(math3d.V3(0, -1, -2))), math3d.Perspective(2.5, 0.75, 0.01, 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTransform(64, 48)
			if err := tr.SetCamera(tt.view, tt.proj); err != nil {
				t.Fatalf("SetCamera: %v", err)
			}
			for range 200 {
				p := math3d.V3(rng.Float64()*2-1, rng.Float64()*2-1, rng.Float64()*1.8-0.9)
				got := tr.ToViewSpace(tr.ToWorldSpace(p))
				if got.Distance(p) > 1e-7 {
					t.Fatalf("round trip of %v gave %v", p, got)
				}
			}
		})
	}
}

func TestSetCameraSingular(t *testing.T) {
	tr := sphereCamera(t, 32, 32)
	before := tr.W2V
	gen := tr.Generation()

	err := tr.SetCamera(math3d.Scale(math3d.V3(1, 0, 1)), math3d.Identity())
	if !errors.Is(err, ErrSingularCamera) {
		t.Fatalf("got %v, want ErrSingularCamera", err)
	}
	if tr.W2V != before || tr.Generation() != gen {
		t.Error("failed SetCamera modified the transform")
	}
}

func TestToViewport(t *testing.T) {
	tr := NewTransform(64, 32)
	tests := []struct {
		in   math3d.Vec3
		want math3d.Vec2
	}{
		{math3d.V3(-1, 1, 0), math3d.V2(0, 0)},
		{math3d.V3(1, -1, 0), math3d.V2(64, 32)},
		{math3d.V3(0, 0, 0), math3d.V2(32, 16)},
	}
	for _, tt := range tests {
		got := tr.ToViewport(tt.in)
		if got != tt.want {
			t.Errorf("ToViewport(%v) = %v, want %v", tt.in, got, tt.want)
		}
		x, y := tr.FromViewport(got.X, got.Y)
		if math.Abs(x-tt.in.X) > 1e-12 || math.Abs(y-tt.in.Y) > 1e-12 {
			t.Errorf("FromViewport(%v) = (%v,%v), want (%v,%v)", got, x, y, tt.in.X, tt.in.Y)
		}
	}

	if got := tr.ToViewportScalar(0.5); got != 12 {
		t.Errorf("ToViewportScalar(0.5) = %v, want 12", got)
	}
}

func TestRayThroughCenter(t *testing.T) {
	tr := sphereCamera(t, 64, 64)
	r := tr.Ray(32, 32)
	if r.Dir.Distance(math3d.V3(0, 0, 1)) > 1e-9 {
		t.Errorf("center ray direction = %v, want (0,0,1)", r.Dir)
	}
	if eye := tr.Eye(); eye.Distance(math3d.V3(0, 0, -3)) > 1e-9 {
		t.Errorf("eye = %v, want (0,0,-3)", eye)
	}
	// Ray origin lies on the near plane in front of the eye.
	if math.Abs(r.Origin.Z-(-3+0.1)) > 1e-9 {
		t.Errorf("ray origin z = %v, want -2.9", r.Origin.Z)
	}
}

func TestFrustumCulling(t *testing.T) {
	tr := sphereCamera(t, 64, 64)
	f := tr.Frustum()

	tests := []struct {
		name string
		box  geom.AABB
		want bool
	}{
		{"at target", geom.NewAABB(math3d.V3(-1, -1, -1), math3d.V3(1, 1, 1)), true},
		{"behind camera", geom.NewAABB(math3d.V3(-1, -1, -10), math3d.V3(1, 1, -8)), false},
		{"far left", geom.NewAABB(math3d.V3(50, -1, 0), math3d.V3(52, 1, 2)), false},
		{"beyond far plane", geom.NewAABB(math3d.V3(-1, -1, 200), math3d.V3(1, 1, 202)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.IntersectsAABB(tt.box); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if !f.IntersectsSphere(math3d.Zero3(), 1) {
		t.Error("sphere at target culled")
	}
	if f.IntersectsSphere(math3d.V3(0, 0, -20), 1) {
		t.Error("sphere behind camera kept")
	}
}

func TestCameraOrbit(t *testing.T) {
	c := New(math3d.V3(0, 0, -3), math3d.Zero3(), math.Pi/3, 1)
	if f := c.Forward(); f.Distance(math3d.V3(0, 0, 1)) > 1e-9 {
		t.Errorf("forward = %v, want (0,0,1)", f)
	}

	c.Orbit(math3d.Zero3(), 5, math.Pi/2, 0.3)
	if d := c.Position.Len(); math.Abs(d-5) > 1e-9 {
		t.Errorf("orbit radius = %v, want 5", d)
	}
	want := c.Position.Negate().Normalize()
	if f := c.Forward(); f.Distance(want) > 1e-9 {
		t.Errorf("orbit forward = %v, want %v", f, want)
	}

	tr := NewTransform(32, 32)
	if err := c.Apply(tr); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	center := tr.ToViewSpace(math3d.Zero3())
	if math.Abs(center.X) > 1e-9 || math.Abs(center.Y) > 1e-9 {
		t.Errorf("orbit target projects to %v, want screen center", center)
	}
}
