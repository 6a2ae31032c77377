package main

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/taigrr/prism/pkg/camera"
	"github.com/taigrr/prism/pkg/math3d"
	"github.com/taigrr/prism/pkg/scene"
)

func TestResolveConfigLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prism.json")
	if err := os.WriteFile(path, []byte(`{"width": 100, "height": 80, "scene": "wire"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := &options{cfg: scene.DefaultConfig(), configPath: path}
	cmd := newRenderCmd(opts)
	if err := cmd.Flags().Parse([]string{"--height", "50", "-m", "raster"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"file width", cfg.Width, 100},
		{"flag height", cfg.Height, 50},
		{"file scene", cfg.Scene, "wire"},
		{"flag mode", cfg.Mode, scene.ModeRaster},
		{"default samples", cfg.Samples, scene.DefaultConfig().Samples},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestResolveConfigRejectsBadFlag(t *testing.T) {
	opts := &options{cfg: scene.DefaultConfig()}
	cmd := newRenderCmd(opts)
	if err := cmd.Flags().Parse([]string{"--scene", "teapot"}); err != nil {
		t.Fatal(err)
	}
	if _, err := resolveConfig(cmd, opts); err == nil {
		t.Error("got nil, want an error for an unknown scene")
	}
}

func TestOrbitStartsAtEye(t *testing.T) {
	eye, target := math3d.V3(1, 2, -3), math3d.V3(0, 0.5, 0)
	o := newOrbit(30, eye, target)
	if !o.update() {
		t.Error("got no movement, want the initial placement applied")
	}
	cam := camera.New(math3d.Zero3(), math3d.V3(0, 0, 1), 1, 1)
	cam.Orbit(o.target, o.radius, o.Yaw.Position, o.Pitch.Position)
	if d := cam.Position.Sub(eye).Len(); d > 1e-9 {
		t.Errorf("got %v, want %v", cam.Position, eye)
	}
	if o.update() {
		t.Error("got movement, want an idle orbit")
	}

	o.zoom(0.5)
	for range 120 {
		o.update()
	}
	if want := eye.Sub(target).Len() * 0.5; abs(o.radius-want) > 1e-3 {
		t.Errorf("got radius %v, want %v", o.radius, want)
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func TestRenderWritesPNG(t *testing.T) {
	tests := []struct {
		name  string
		mode  string
		scene string
	}{
		{"raster", scene.ModeRaster, "wire"},
		{"trace", scene.ModeTrace, "quad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := scene.DefaultConfig()
			cfg.Width, cfg.Height = 24, 16
			cfg.Samples = 2
			cfg.Mode, cfg.Scene = tt.mode, tt.scene
			cfg.Output = filepath.Join(t.TempDir(), "out.png")

			if err := render(context.Background(), cfg); err != nil {
				t.Fatalf("render: %v", err)
			}
			f, err := os.Open(cfg.Output)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			img, err := png.Decode(f)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 24 || b.Dy() != 16 {
				t.Errorf("got %v, want 24x16", b)
			}
		})
	}
}
