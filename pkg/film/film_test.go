package film

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/taigrr/prism/pkg/math3d"
)

func TestAccumulatorRunningMean(t *testing.T) {
	acc := NewAccumulator(2, 1, math3d.V3(1, 0, 1))
	samples := []float64{1, 2, 3, 4, 10}
	sum := 0.0
	for _, s := range samples {
		acc.Add(0, math3d.Splat3(s))
		sum += s
	}
	want := sum / float64(len(samples))
	if got := acc.Mean(0).X; math.Abs(got-want) > 1e-12 {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := acc.Samples(0); got != len(samples) {
		t.Errorf("samples: got %d, want %d", got, len(samples))
	}
	if got := acc.Samples(1); got != 0 {
		t.Errorf("untouched pixel: got %d samples, want 0", got)
	}
}

func TestAccumulatorErrorColor(t *testing.T) {
	errColor := math3d.V3(1, 0, 1)
	tests := []struct {
		name   string
		sample math3d.Vec3
	}{
		{"nan", math3d.V3(math.NaN(), 0, 0)},
		{"inf", math3d.V3(0, math.Inf(1), 0)},
		{"negative", math3d.V3(0, 0, -1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewAccumulator(1, 1, errColor)
			acc.Add(0, tt.sample)
			if got := acc.Mean(0); got != errColor {
				t.Errorf("got %v, want %v", got, errColor)
			}
			if got := acc.Errors(); got != 1 {
				t.Errorf("errors: got %d, want 1", got)
			}
		})
	}
}

func TestAccumulatorSync(t *testing.T) {
	acc := NewAccumulator(1, 1, math3d.Vec3{})
	acc.Sync(1)
	acc.Add(0, math3d.Splat3(5))
	if acc.Sync(1) {
		t.Error("same generation reset the accumulator")
	}
	if got := acc.Samples(0); got != 1 {
		t.Fatalf("got %d samples, want 1", got)
	}
	if !acc.Sync(2) {
		t.Error("new generation did not reset the accumulator")
	}
	if got := acc.Samples(0); got != 0 {
		t.Errorf("got %d samples after reset, want 0", got)
	}
}

func TestEncode(t *testing.T) {
	img := NewImage(3, 1)
	img.Set(0, 0, math3d.Splat3(0))
	img.Set(1, 0, math3d.Splat3(1))
	img.Set(2, 0, math3d.Splat3(4))
	img.Set(7, 7, math3d.Splat3(1))
	out := img.ToImage()
	tests := []struct {
		x    int
		want uint8
	}{
		{0, 0},
		{1, 255},
		{2, 255},
	}
	for _, tt := range tests {
		if got := out.RGBAAt(tt.x, 0).R; got != tt.want {
			t.Errorf("pixel %d: got %d, want %d", tt.x, got, tt.want)
		}
	}
	// Linear 0.2 encodes above the naive 0.2*255 because of the sRGB curve.
	img.Set(0, 0, math3d.Splat3(0.2))
	if got := img.ToImage().RGBAAt(0, 0).R; got <= 51 {
		t.Errorf("got %d, want sRGB encoding above 51", got)
	}
}

func TestSavePNG(t *testing.T) {
	img := NewImage(4, 4)
	img.Clear(math3d.V3(0.5, 0.25, 1))
	path := filepath.Join(t.TempDir(), "out.png")
	if err := img.SavePNG(path); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	if err := img.SavePNG(filepath.Join(t.TempDir(), "missing", "out.png")); err == nil {
		t.Error("got nil error for a missing directory")
	}
}
