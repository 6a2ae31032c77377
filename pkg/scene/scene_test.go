package scene

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/taigrr/prism/pkg/bvh"
	"github.com/taigrr/prism/pkg/geom"
	"github.com/taigrr/prism/pkg/material"
	"github.com/taigrr/prism/pkg/math3d"
	"github.com/taigrr/prism/pkg/models"
	"github.com/taigrr/prism/pkg/trace"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"zero width", func(c *Config) { c.Width = 0 }, ErrConfig},
		{"bad mode", func(c *Config) { c.Mode = "wireframe" }, ErrConfig},
		{"no samples", func(c *Config) { c.Samples = 0 }, ErrConfig},
		{"negative workers", func(c *Config) { c.Workers = -1 }, ErrConfig},
		{"flat fov", func(c *Config) { c.Camera.FOVDeg = 180 }, ErrConfig},
		{"unknown scene", func(c *Config) { c.Scene = "teapot" }, ErrConfig},
		{"bad overflow", func(c *Config) { c.Overflow = "wrap" }, ErrConfig},
		{"inverted roulette", func(c *Config) { c.RouletteLow, c.RouletteHigh = 0.9, 0.1 }, trace.ErrOptions},
		{"zero depth", func(c *Config) { c.MaxDepth = 0 }, trace.ErrOptions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			if err := c.Validate(); !errors.Is(err, tt.target) {
				t.Errorf("got %v, want %v", err, tt.target)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	cfg, err := LoadConfig(write("ok.json", `{"width": 64, "mode": "raster", "scene": "wire", "camera": {"eye": [1, 2, 3], "fovDeg": 40}}`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Width != 64 || cfg.Mode != ModeRaster || cfg.Scene != "wire" {
		t.Errorf("got %d %q %q, want 64 raster wire", cfg.Width, cfg.Mode, cfg.Scene)
	}
	if cfg.Height != DefaultConfig().Height {
		t.Errorf("got height %d, want default %d", cfg.Height, DefaultConfig().Height)
	}
	if cfg.Camera.Eye == nil || *cfg.Camera.Eye != [3]float64{1, 2, 3} {
		t.Errorf("got eye %v, want [1 2 3]", cfg.Camera.Eye)
	}

	if _, err := LoadConfig(write("typo.json", `{"widht": 64}`)); err == nil {
		t.Error("got nil, want an error for an unknown key")
	}
	if _, err := LoadConfig(write("bad.json", `{"samples": -1}`)); !errors.Is(err, ErrConfig) {
		t.Errorf("got %v, want ErrConfig", err)
	}
	if _, err := LoadConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("got nil, want an error for a missing file")
	}
}

func TestNewCameraOverrides(t *testing.T) {
	w, err := Demo("sphere")
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	if got := cfg.NewCamera(w).Position; got != w.Eye {
		t.Errorf("got %v, want demo eye %v", got, w.Eye)
	}
	cfg.Camera.Eye = &[3]float64{0, 5, 0.001}
	if got := cfg.NewCamera(w).Position; got != math3d.V3(0, 5, 0.001) {
		t.Errorf("got %v, want override", got)
	}
}

func TestDemosBuild(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Scene = name
			w, err := Load(cfg)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			b, err := w.Buffers(0, geom.OverflowFail)
			if err != nil {
				t.Fatalf("Buffers: %v", err)
			}
			s := w.TraceScene(b)
			if err := s.Build(bvh.Options{}); err != nil {
				t.Fatalf("Build: %v", err)
			}
			if w.Medium != nil {
				if err := w.Medium.Validate(); err != nil {
					t.Errorf("medium: %v", err)
				}
			}
			if rs := w.RasterScene(b); rs.Materials != w.Materials {
				t.Error("raster scene does not share the material table")
			}
		})
	}
	if _, err := Demo("nope"); !errors.Is(err, ErrUnknownScene) {
		t.Errorf("got %v, want ErrUnknownScene", err)
	}
}

func TestQuadDemoHasEmitters(t *testing.T) {
	w, err := Demo("quad")
	if err != nil {
		t.Fatal(err)
	}
	b, err := w.Buffers(0, geom.OverflowFail)
	if err != nil {
		t.Fatal(err)
	}
	s := w.TraceScene(b)
	if err := s.Build(bvh.Options{}); err != nil {
		t.Fatal(err)
	}
	if got := s.Emitters(); got != 2 {
		t.Errorf("got %d emitters, want 2", got)
	}
}

func TestBuffersOverflow(t *testing.T) {
	w, err := Demo("cornell")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Buffers(4, geom.OverflowFail); !errors.Is(err, geom.ErrCapacity) {
		t.Errorf("got %v, want ErrCapacity", err)
	}
	b, err := w.Buffers(4, geom.OverflowClamp)
	if err != nil {
		t.Fatalf("clamp: %v", err)
	}
	if got := b.Triangles.Len(); got != 4 {
		t.Errorf("got %d triangles, want 4", got)
	}
}

func TestFromMesh(t *testing.T) {
	mesh := models.NewMesh("test")
	mesh.Vertices = []models.MeshVertex{
		{Position: math3d.V3(0, 0, 0)},
		{Position: math3d.V3(1, 0, 0)},
		{Position: math3d.V3(0, 1, 0)},
	}
	mesh.Materials = []models.Material{
		{Name: "plastic", BaseColor: [4]float64{1, 0, 0, 1}, Roughness: 0.5},
		{Name: "lamp", BaseColor: [4]float64{1, 1, 1, 1}, Metallic: 1, Roughness: 0, Emissive: math3d.Splat3(2)},
	}
	mesh.Faces = []models.Face{
		{V: [3]int{0, 1, 2}, Material: 0},
		{V: [3]int{0, 1, 2}, Material: 1},
		{V: [3]int{0, 1, 2}, Material: -1},
	}

	mats := material.NewTable()
	tris, err := FromMesh(mesh, mats)
	if err != nil {
		t.Fatalf("FromMesh: %v", err)
	}
	if err := mats.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	tests := []struct {
		name     string
		kind     material.Kind
		emissive bool
	}{
		{"plastic", material.KindAdd, false},
		{"lamp", material.KindAdd, true},
		{"fallback", material.KindLambert, false},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := material.ID(tris[i].Material)
			if got := mats.Node(id).Kind; got != tt.kind {
				t.Errorf("got %v, want %v", got, tt.kind)
			}
			if got := mats.IsEmissive(id); got != tt.emissive {
				t.Errorf("got emissive %v, want %v", got, tt.emissive)
			}
		})
	}

	p := material.DefaultParams()
	n := math3d.V3(0, 0, 1)
	albedo := mats.Ambient(material.ID(tris[0].Material), &p)
	if albedo.X <= albedo.Y {
		t.Errorf("got ambient %v, want red dominant", albedo)
	}
	if f := mats.BRDF(material.ID(tris[0].Material), n, n, n, &p); !f.IsFinite() || f.X <= 0 {
		t.Errorf("got brdf %v, want positive", f)
	}
}
