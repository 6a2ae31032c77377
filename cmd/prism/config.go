package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/taigrr/prism/pkg/scene"
)

// bindFlags registers the render settings on fs, writing into c.
func bindFlags(fs *pflag.FlagSet, c *scene.Config) {
	fs.IntVar(&c.Width, "width", c.Width, "image width in pixels")
	fs.IntVar(&c.Height, "height", c.Height, "image height in pixels")
	fs.StringVarP(&c.Mode, "mode", "m", c.Mode, "renderer: raster or trace")
	fs.StringVarP(&c.Output, "out", "o", c.Output, "output PNG path")
	fs.StringVarP(&c.Scene, "scene", "s", c.Scene, "demo scene ("+strings.Join(scene.Names(), ", ")+")")
	fs.StringVar(&c.Model, "model", c.Model, "GLB/GLTF model added at the camera target")
	fs.IntVar(&c.Variant, "variant", c.Variant, "active variant of virtual materials")

	fs.IntVar(&c.Samples, "spp", c.Samples, "path tracer samples per pixel")
	fs.IntVar(&c.MaxDepth, "max-depth", c.MaxDepth, "maximum path vertices")
	fs.Float64Var(&c.Survival, "rr-survival", c.Survival, "roulette survival multiplier")
	fs.Float64Var(&c.RouletteLow, "rr-low", c.RouletteLow, "lowest roulette continuation probability")
	fs.Float64Var(&c.RouletteHigh, "rr-high", c.RouletteHigh, "highest roulette continuation probability")
	fs.IntVar(&c.RouletteDepth, "rr-depth", c.RouletteDepth, "bounces before roulette starts")
	fs.Float64Var(&c.Exposure, "exposure", c.Exposure, "linear exposure multiplier")
	fs.BoolVar(&c.Jitter, "jitter", c.Jitter, "jitter samples inside each pixel")

	fs.BoolVar(&c.Culling, "culling", c.Culling, "cull back-facing triangles when rasterizing")
	fs.BoolVar(&c.FrustumCull, "frustum-cull", c.FrustumCull, "reject primitives outside the view frustum")
	fs.IntVarP(&c.Workers, "workers", "j", c.Workers, "worker lanes, 0 for GOMAXPROCS")
	fs.StringVar(&c.Overflow, "overflow", c.Overflow, "primitive buffer overflow policy: fail or clamp")
	fs.IntVar(&c.Capacity, "capacity", c.Capacity, "primitive buffer capacity, 0 to fit the scene")
	fs.IntVar(&c.MaxNodes, "max-nodes", c.MaxNodes, "BVH node limit, 0 for none")
	fs.Float64Var(&c.Camera.FOVDeg, "fov", c.Camera.FOVDeg, "vertical field of view in degrees")
}

// resolveConfig layers the config file, if any, under the flags the user
// actually set.
func resolveConfig(cmd *cobra.Command, opts *options) (scene.Config, error) {
	if opts.configPath == "" {
		return opts.cfg, opts.cfg.Validate()
	}
	cfg, err := scene.LoadConfig(opts.configPath)
	if err != nil {
		return cfg, err
	}
	layer := pflag.NewFlagSet("layer", pflag.ContinueOnError)
	bindFlags(layer, &cfg)
	var setErr error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if layer.Lookup(f.Name) == nil || setErr != nil {
			return
		}
		if err := layer.Set(f.Name, f.Value.String()); err != nil {
			setErr = fmt.Errorf("flag --%s: %w", f.Name, err)
		}
	})
	if setErr != nil {
		return cfg, setErr
	}
	logger.Infof("settings from %s", opts.configPath)
	return cfg, cfg.Validate()
}

// terminalSize maps a terminal of cols x rows onto an image: one column per
// pixel, two pixel rows per cell row.
func terminalSize(cols, rows int) (int, int) {
	return max(cols, 1), max(2*rows, 2)
}
