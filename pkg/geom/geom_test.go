package geom

import (
	"errors"
	"math"
	"testing"

	"github.com/taigrr/prism/pkg/math3d"
)

func TestBufferOverflowPolicy(t *testing.T) {
	items := []Sphere{{Radius: 1}, {Radius: 2}, {Radius: 3}}

	t.Run("fail", func(t *testing.T) {
		buf := NewSpheres(2, OverflowFail)
		err := buf.Set(items)
		if !errors.Is(err, ErrCapacity) {
			t.Fatalf("got %v, want ErrCapacity", err)
		}
		if buf.Len() != 0 {
			t.Errorf("failed Set changed live count to %d", buf.Len())
		}
	})

	t.Run("clamp", func(t *testing.T) {
		buf := NewSpheres(2, OverflowClamp)
		if err := buf.Set(items); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if buf.Len() != 2 || buf.Cap() != 2 {
			t.Fatalf("got len %d cap %d, want 2 2", buf.Len(), buf.Cap())
		}
		if got := buf.Items()[1].Radius; got != 2 {
			t.Errorf("got radius %v, want 2", got)
		}
	})

	t.Run("zero capacity", func(t *testing.T) {
		buf := NewTriangles(0, OverflowFail)
		if err := buf.Set(make([]Triangle, 1)); !errors.Is(err, ErrCapacity) {
			t.Errorf("got %v, want ErrCapacity", err)
		}
		if err := buf.Set(nil); err != nil {
			t.Errorf("empty update rejected: %v", err)
		}
	})
}

func TestAABBHit(t *testing.T) {
	box := NewAABB(math3d.V3(-1, -1, -1), math3d.V3(1, 1, 1))

	tests := []struct {
		name   string
		origin math3d.Vec3
		dir    math3d.Vec3
		hit    bool
		tEnter float64
	}{
		{"head on", math3d.V3(0, 0, -5), math3d.V3(0, 0, 1), true, 4},
		{"miss", math3d.V3(0, 3, -5), math3d.V3(0, 0, 1), false, 0},
		{"inside", math3d.V3(0, 0, 0), math3d.V3(1, 0, 0), true, 0},
		{"axis parallel on face", math3d.V3(1, 0, -5), math3d.V3(0, 0, 1), true, 4},
		{"behind", math3d.V3(0, 0, 5), math3d.V3(0, 0, 1), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := box.Hit(tt.origin, InvDir(tt.dir), 0, math.Inf(1))
			if ok != tt.hit {
				t.Fatalf("hit = %v, want %v", ok, tt.hit)
			}
			if ok && math.Abs(got-tt.tEnter) > 1e-9 {
				t.Errorf("got t=%v, want %v", got, tt.tEnter)
			}
		})
	}
}

func TestIntersectTriangle(t *testing.T) {
	v0, v1, v2 := math3d.V3(0, 0, 0), math3d.V3(1, 0, 0), math3d.V3(0, 1, 0)
	ray := math3d.NewRay(math3d.V3(0.25, 0.25, -1), math3d.V3(0, 0, 1))
	tHit, uv, ok := IntersectTriangle(ray, v0, v1, v2, 0, math.Inf(1))
	if !ok {
		t.Fatal("expected hit")
	}
	if math.Abs(tHit-1) > 1e-12 || math.Abs(uv.X-0.25) > 1e-12 || math.Abs(uv.Y-0.25) > 1e-12 {
		t.Errorf("got t=%v uv=%v, want t=1 uv=(0.25,0.25)", tHit, uv)
	}

	back := math3d.NewRay(math3d.V3(0.25, 0.25, 1), math3d.V3(0, 0, -1))
	if _, _, ok := IntersectTriangle(back, v0, v1, v2, 0, math.Inf(1)); !ok {
		t.Error("expected two-sided hit from behind")
	}

	outside := math3d.NewRay(math3d.V3(0.8, 0.8, -1), math3d.V3(0, 0, 1))
	if _, _, ok := IntersectTriangle(outside, v0, v1, v2, 0, math.Inf(1)); ok {
		t.Error("unexpected hit outside the triangle")
	}
}

func TestIntersectSphere(t *testing.T) {
	c := math3d.V3(0, 0, 0)

	outside := math3d.NewRay(math3d.V3(0, 0, -3), math3d.V3(0, 0, 1))
	if got, ok := IntersectSphere(outside, c, 1, 0, math.Inf(1)); !ok || math.Abs(got-2) > 1e-12 {
		t.Errorf("outside: got %v %v, want 2 true", got, ok)
	}

	inside := math3d.NewRay(c, math3d.V3(1, 0, 0))
	if got, ok := IntersectSphere(inside, c, 1, 1e-6, math.Inf(1)); !ok || math.Abs(got-1) > 1e-12 {
		t.Errorf("inside: got %v %v, want 1 true", got, ok)
	}

	if _, ok := IntersectSphere(outside, c, 1, 0, 1.5); ok {
		t.Error("hit beyond tMax accepted")
	}
}

func TestIntersectBoxNormals(t *testing.T) {
	box := NewAABB(math3d.V3(-1, -1, -1), math3d.V3(1, 1, 1))

	tests := []struct {
		name   string
		origin math3d.Vec3
		dir    math3d.Vec3
		want   math3d.Vec3
		t      float64
	}{
		{"front", math3d.V3(0, 0, -3), math3d.V3(0, 0, 1), math3d.V3(0, 0, -1), 2},
		{"top", math3d.V3(0.2, 4, 0.1), math3d.V3(0, -1, 0), math3d.V3(0, 1, 0), 3},
		{"exit from inside", math3d.V3(0, 0, 0), math3d.V3(1, 0, 0), math3d.V3(1, 0, 0), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n, ok := IntersectBox(math3d.NewRay(tt.origin, tt.dir), box, 1e-6, math.Inf(1))
			if !ok {
				t.Fatal("expected hit")
			}
			if math.Abs(got-tt.t) > 1e-9 || n != tt.want {
				t.Errorf("got t=%v n=%v, want t=%v n=%v", got, n, tt.t, tt.want)
			}
		})
	}
}

func TestTriangleSamplePointInside(t *testing.T) {
	tri := Triangle{V: [3]math3d.Vec3{math3d.V3(0, 0, 0), math3d.V3(2, 0, 0), math3d.V3(0, 2, 0)}}
	for i := range 100 {
		u1 := float64(i%10) / 10
		u2 := float64(i/10) / 10
		_, w := tri.SamplePoint(u1, u2)
		if w.X < -1e-12 || w.Y < -1e-12 || w.Z < -1e-12 || math.Abs(w.X+w.Y+w.Z-1) > 1e-12 {
			t.Fatalf("sample (%v,%v) has weights %v", u1, u2, w)
		}
	}
}

func TestGridAndEdges(t *testing.T) {
	if got := len(BoxEdges(NewAABB(math3d.Zero3(), math3d.V3(1, 1, 1)), 0)); got != 12 {
		t.Errorf("got %d box edges, want 12", got)
	}
	if got := len(Grid(0, 4, 1, 0)); got != 10 {
		t.Errorf("got %d grid lines, want 10", got)
	}
	if got := len(Axes(1, 0, 1, 2)); got != 3 {
		t.Errorf("got %d axes, want 3", got)
	}
}
