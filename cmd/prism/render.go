package main

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/taigrr/prism/pkg/bvh"
	"github.com/taigrr/prism/pkg/camera"
	"github.com/taigrr/prism/pkg/film"
	"github.com/taigrr/prism/pkg/raster"
	"github.com/taigrr/prism/pkg/scene"
	"github.com/taigrr/prism/pkg/trace"
)

// stage is a loaded world with its buffers and a camera bound to a
// viewport.
type stage struct {
	cfg       scene.Config
	world     *scene.World
	buffers   *scene.Buffers
	camera    *camera.Camera
	transform *camera.Transform
}

func newStage(cfg scene.Config, width, height int) (*stage, error) {
	w, err := scene.Load(cfg)
	if err != nil {
		return nil, err
	}
	b, err := w.Buffers(cfg.Capacity, cfg.Policy())
	if err != nil {
		return nil, err
	}
	cfg.Width, cfg.Height = width, height
	cam := cfg.NewCamera(w)
	t := camera.NewTransform(width, height)
	if err := cam.Apply(t); err != nil {
		return nil, err
	}
	logger.Infof("scene %s: %d triangles, %d spheres, %d boxes, %d lines, %d materials",
		w.Name, b.Triangles.Len(), b.Spheres.Len(), b.Boxes.Len(), b.Lines.Len(), w.Materials.Len())
	return &stage{cfg: cfg, world: w, buffers: b, camera: cam, transform: t}, nil
}

// resize rebinds the viewport to a new resolution.
func (s *stage) resize(width, height int) error {
	s.cfg.Width, s.cfg.Height = width, height
	s.transform.Resize(width, height)
	s.camera.SetAspectRatio(float64(width) / float64(height))
	return s.camera.Apply(s.transform)
}

func (s *stage) traceBVHOptions() bvh.Options {
	return bvh.Options{MaxNodes: s.cfg.MaxNodes}
}

// traceScene builds the path tracer's view of the world.
func (s *stage) traceScene() (*trace.Scene, error) {
	ts := s.world.TraceScene(s.buffers)
	if err := ts.Build(s.traceBVHOptions()); err != nil {
		return nil, err
	}
	return ts, nil
}

func newRenderCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a still image to PNG",
		Example: `  prism render --scene cornell --spp 256 -o cornell.png
  prism render -m raster --scene wire --width 800 --height 600`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			return render(cmd.Context(), cfg)
		},
	}
	bindFlags(cmd.Flags(), &opts.cfg)
	return cmd
}

// timing collects the rows of the summary table.
type timing struct {
	rows [][]string
	last time.Time
	t0   time.Time
}

func newTiming() *timing {
	now := time.Now()
	return &timing{last: now, t0: now}
}

func (t *timing) mark(stage, detail string) {
	now := time.Now()
	t.rows = append(t.rows, []string{stage, detail, now.Sub(t.last).Round(time.Microsecond).String()})
	t.last = now
}

func (t *timing) print() {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Stage", "Detail", "Time"})
	table.AppendBulk(t.rows)
	table.SetFooter([]string{"", "TOTAL", time.Since(t.t0).Round(time.Microsecond).String()})
	table.Render()
	logger.Noticef("render statistics\n%s", buf.String())
}

func render(ctx context.Context, cfg scene.Config) error {
	clock := newTiming()
	st, err := newStage(cfg, cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	clock.mark("load", st.world.Name)

	img := film.NewImage(cfg.Width, cfg.Height)
	img.Exposure = cfg.Exposure

	switch cfg.Mode {
	case scene.ModeRaster:
		r := raster.New(st.transform, img, cfg.RasterOptions())
		if err := r.Render(ctx, st.world.RasterScene(st.buffers)); err != nil {
			return err
		}
		clock.mark("raster", fmt.Sprintf("%d drawn, %d culled, %d clipped", r.Stats.Drawn, r.Stats.Culled, r.Stats.Clipped))

	case scene.ModeTrace:
		ts, err := st.traceScene()
		if err != nil {
			return err
		}
		clock.mark("bvh", fmt.Sprintf("%d emitters", ts.Emitters()))

		topts := cfg.TraceOptions()
		accum := film.NewAccumulator(cfg.Width, cfg.Height, topts.ErrorColor)
		tr, err := trace.New(ts, st.transform, accum, topts)
		if err != nil {
			return err
		}
		step := max(cfg.Samples/10, 1)
		for i := range cfg.Samples {
			if err := tr.Pass(ctx); err != nil {
				return err
			}
			if (i+1)%step == 0 {
				logger.Infof("%d/%d samples", i+1, cfg.Samples)
			}
		}
		accum.Resolve(img)
		if n := accum.Errors(); n > 0 {
			logger.Warningf("%d invalid samples replaced", n)
		}
		clock.mark("trace", fmt.Sprintf("%d spp, %d errors", cfg.Samples, accum.Errors()))
	}

	if err := img.SavePNG(cfg.Output); err != nil {
		return err
	}
	clock.mark("encode", cfg.Output)
	clock.print()
	return nil
}
