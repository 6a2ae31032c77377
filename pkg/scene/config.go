package scene

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/taigrr/prism/pkg/camera"
	"github.com/taigrr/prism/pkg/geom"
	"github.com/taigrr/prism/pkg/math3d"
	"github.com/taigrr/prism/pkg/raster"
	"github.com/taigrr/prism/pkg/trace"
)

// ErrConfig reports an invalid configuration value.
var ErrConfig = errors.New("scene: invalid config")

// Render modes.
const (
	ModeRaster = "raster"
	ModeTrace  = "trace"
)

// CameraConfig overrides a demo's camera placement. Nil vectors keep the
// demo default.
type CameraConfig struct {
	Eye    *[3]float64 `json:"eye,omitempty"`
	Target *[3]float64 `json:"target,omitempty"`
	FOVDeg float64     `json:"fovDeg"`
}

// Config holds the render settings. Zero values in a JSON file are taken
// literally; fields the file omits keep their DefaultConfig values.
type Config struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Mode   string `json:"mode"`
	Output string `json:"output"`

	Samples       int          `json:"samples"`
	MaxDepth      int          `json:"maxDepth"`
	Survival      float64      `json:"survival"`
	RouletteLow   float64      `json:"rouletteLow"`
	RouletteHigh  float64      `json:"rouletteHigh"`
	RouletteDepth int          `json:"rouletteDepth"`
	ErrorColor    [3]float64   `json:"errorColor"`
	Exposure      float64      `json:"exposure"`
	Jitter        bool         `json:"jitter"`
	Culling       bool         `json:"culling"`
	FrustumCull   bool         `json:"frustumCull"`
	Workers       int          `json:"workers"`
	Overflow      string       `json:"overflow"`
	Capacity      int          `json:"capacity,omitempty"`
	MaxNodes      int          `json:"maxNodes,omitempty"`
	Scene         string       `json:"scene"`
	Model         string       `json:"model,omitempty"`
	Variant       int          `json:"variant"`
	Camera        CameraConfig `json:"camera"`
}

// DefaultConfig returns the settings used when no file or flag overrides
// them.
func DefaultConfig() Config {
	o := trace.DefaultOptions()
	return Config{
		Width:         320,
		Height:        240,
		Mode:          ModeTrace,
		Output:        "prism.png",
		Samples:       64,
		MaxDepth:      o.MaxDepth,
		Survival:      o.Survival,
		RouletteLow:   o.Low,
		RouletteHigh:  o.High,
		RouletteDepth: o.RouletteDepth,
		ErrorColor:    [3]float64{o.ErrorColor.X, o.ErrorColor.Y, o.ErrorColor.Z},
		Exposure:      1,
		Jitter:        true,
		Culling:       true,
		FrustumCull:   true,
		Overflow:      geom.OverflowFail.String(),
		Scene:         "cornell",
		Camera:        CameraConfig{FOVDeg: 50},
	}
}

// LoadConfig reads a JSON file over DefaultConfig. Unknown keys are an
// error so typos do not pass silently.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports the first out-of-range setting.
func (c Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf(format+": %w", append(args, ErrConfig)...)
	}
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return bad("resolution %dx%d", c.Width, c.Height)
	case c.Mode != ModeRaster && c.Mode != ModeTrace:
		return bad("mode %q", c.Mode)
	case c.Samples <= 0:
		return bad("samples %d", c.Samples)
	case c.Exposure <= 0 || math.IsNaN(c.Exposure):
		return bad("exposure %v", c.Exposure)
	case c.Workers < 0:
		return bad("workers %d", c.Workers)
	case c.Capacity < 0 || c.MaxNodes < 0:
		return bad("capacity %d, max nodes %d", c.Capacity, c.MaxNodes)
	case c.Camera.FOVDeg <= 0 || c.Camera.FOVDeg >= 180:
		return bad("field of view %v", c.Camera.FOVDeg)
	case !slices.Contains(Names(), c.Scene):
		return bad("scene %q (have %v)", c.Scene, Names())
	}
	if _, err := geom.ParseOverflow(c.Overflow); err != nil {
		return bad("%v", err)
	}
	if err := c.TraceOptions().Validate(); err != nil {
		return err
	}
	return nil
}

// Policy returns the parsed overflow policy.
func (c Config) Policy() geom.Overflow {
	p, _ := geom.ParseOverflow(c.Overflow)
	return p
}

// TraceOptions maps the settings onto the path tracer.
func (c Config) TraceOptions() trace.Options {
	return trace.Options{
		MaxDepth:      c.MaxDepth,
		Survival:      c.Survival,
		Low:           c.RouletteLow,
		High:          c.RouletteHigh,
		RouletteDepth: c.RouletteDepth,
		ErrorColor:    math3d.V3(c.ErrorColor[0], c.ErrorColor[1], c.ErrorColor[2]),
		Jitter:        c.Jitter,
		Lanes:         c.Workers,
	}
}

// RasterOptions maps the settings onto the rasterizer.
func (c Config) RasterOptions() raster.Options {
	return raster.Options{
		DisableCulling: !c.Culling,
		Jitter:         c.Jitter,
		FrustumCull:    c.FrustumCull,
		Lanes:          c.Workers,
	}
}

// NewCamera places a camera for w, applying the overrides.
func (c Config) NewCamera(w *World) *camera.Camera {
	eye, target := w.Eye, w.Target
	if c.Camera.Eye != nil {
		eye = math3d.V3(c.Camera.Eye[0], c.Camera.Eye[1], c.Camera.Eye[2])
	}
	if c.Camera.Target != nil {
		target = math3d.V3(c.Camera.Target[0], c.Camera.Target[1], c.Camera.Target[2])
	}
	fov := c.Camera.FOVDeg * math.Pi / 180
	return camera.New(eye, target, fov, float64(c.Width)/float64(c.Height))
}
