package main

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"time"

	"github.com/charmbracelet/harmonica"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/spf13/cobra"

	"github.com/taigrr/prism/pkg/film"
	"github.com/taigrr/prism/pkg/log"
	"github.com/taigrr/prism/pkg/math3d"
	"github.com/taigrr/prism/pkg/raster"
	"github.com/taigrr/prism/pkg/scene"
	"github.com/taigrr/prism/pkg/trace"
)

const viewHelp = `Controls:
  Mouse drag  - Orbit the camera
  Scroll      - Zoom in/out
  W/S/A/D     - Orbit up/down/left/right
  +/-         - Zoom
  M           - Switch between raster and trace
  V           - Next material variant
  R           - Reset view
  ?           - Toggle HUD
  Esc         - Quit`

func newViewCmd(opts *options) *cobra.Command {
	var fps int
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Interactive terminal viewer",
		Long: `Opens the scene in the terminal. The rasterizer redraws every frame;
the path tracer refines the image progressively and restarts whenever the
camera moves.

` + viewHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			if fps <= 0 {
				return fmt.Errorf("fps %d: %w", fps, scene.ErrConfig)
			}
			return view(cmd.Context(), cfg, fps)
		},
	}
	bindFlags(cmd.Flags(), &opts.cfg)
	cmd.Flags().IntVar(&fps, "fps", 30, "target frames per second")
	return cmd
}

// orbitAxis is one orbit angle whose velocity decays with a spring.
type orbitAxis struct {
	Position  float64
	Velocity  float64
	velSpring harmonica.Spring
	velAccel  float64
}

func newOrbitAxis(fps int, pos float64) orbitAxis {
	// Critically damped so the camera glides to a stop without overshoot.
	return orbitAxis{Position: pos, velSpring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 1.0)}
}

func (a *orbitAxis) update() {
	a.Position += a.Velocity
	a.Velocity, a.velAccel = a.velSpring.Update(a.Velocity, a.velAccel, 0)
}

func (a *orbitAxis) moving() bool {
	return math.Abs(a.Velocity) > 1e-5
}

// orbit is the camera placement: yaw and pitch around a target plus a
// distance that springs toward the requested zoom.
type orbit struct {
	Yaw, Pitch orbitAxis

	target     math3d.Vec3
	radius     float64
	wantRadius float64
	zoomSpring harmonica.Spring
	zoomVel    float64

	fps   int
	home  [3]float64
	dirty bool
}

func newOrbit(fps int, eye, target math3d.Vec3) *orbit {
	off := eye.Sub(target)
	r := off.Len()
	o := &orbit{target: target, fps: fps}
	o.home = [3]float64{math.Atan2(off.X, off.Z), math.Asin(math3d.Clamp(off.Y/r, -1, 1)), r}
	o.reset()
	return o
}

func (o *orbit) reset() {
	o.Yaw = newOrbitAxis(o.fps, o.home[0])
	o.Pitch = newOrbitAxis(o.fps, o.home[1])
	o.radius, o.wantRadius, o.zoomVel = o.home[2], o.home[2], 0
	o.zoomSpring = harmonica.NewSpring(harmonica.FPS(o.fps), 6.0, 1.0)
	o.dirty = true
}

func (o *orbit) zoom(factor float64) {
	o.wantRadius = math3d.Clamp(o.wantRadius*factor, 0.5, 50)
}

// update advances the springs and reports whether the camera moved.
func (o *orbit) update() bool {
	moved := o.dirty || o.Yaw.moving() || o.Pitch.moving() || math.Abs(o.radius-o.wantRadius) > 1e-4
	o.dirty = false
	o.Yaw.update()
	o.Pitch.update()
	o.Pitch.Position = math3d.Clamp(o.Pitch.Position, -1.5, 1.5)
	o.radius, o.zoomVel = o.zoomSpring.Update(o.radius, o.zoomVel, o.wantRadius)
	return moved
}

// viewer owns the terminal session state.
type viewer struct {
	st      *stage
	mode    string
	showHUD bool
	fps     float64

	img    *film.Image
	raster *raster.Rasterizer
	rs     *raster.Scene
	tracer *trace.Tracer
	ts     *trace.Scene
}

func view(ctx context.Context, cfg scene.Config, fps int) error {
	term := uv.DefaultTerminal()
	cols, rows, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}
	width, height := terminalSize(cols, rows)

	st, err := newStage(cfg, width, height)
	if err != nil {
		return err
	}
	v := &viewer{st: st, mode: cfg.Mode, showHUD: true}
	if err := v.setup(width, height); err != nil {
		return err
	}
	cam := newOrbit(fps, st.camera.Position, st.world.Target)

	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}
	// Log lines would tear the alternate screen.
	log.SetSink(io.Discard)
	defer log.SetSink(os.Stderr)
	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(cols, rows)
	fmt.Fprint(os.Stdout, "\x1b[?1003h") // any-event mouse tracking
	fmt.Fprint(os.Stdout, "\x1b[?1006h") // SGR extended mouse mode
	defer func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}()

	const impulse = 0.04
	var dragging bool
	var lastX, lastY int
	frames, fpsTime := 0, time.Now()

	tick := time.NewTicker(time.Second / time.Duration(fps))
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-term.Events():
			switch ev := ev.(type) {
			case uv.WindowSizeEvent:
				cols, rows = ev.Width, ev.Height
				term.Erase()
				term.Resize(cols, rows)
				if err := v.setup(terminalSize(cols, rows)); err != nil {
					return err
				}
			case uv.KeyPressEvent:
				switch {
				case ev.MatchString("escape", "ctrl+c"):
					return nil
				case ev.MatchString("w", "up"):
					cam.Pitch.Velocity += impulse
				case ev.MatchString("s", "down"):
					cam.Pitch.Velocity -= impulse
				case ev.MatchString("a", "left"):
					cam.Yaw.Velocity -= impulse
				case ev.MatchString("d", "right"):
					cam.Yaw.Velocity += impulse
				case ev.MatchString("+", "="):
					cam.zoom(0.85)
				case ev.MatchString("-", "_"):
					cam.zoom(1 / 0.85)
				case ev.MatchString("r"):
					cam.reset()
				case ev.MatchString("m"):
					if v.mode == scene.ModeRaster {
						v.mode = scene.ModeTrace
					} else {
						v.mode = scene.ModeRaster
					}
				case ev.MatchString("v"):
					if err := v.nextVariant(); err != nil {
						return err
					}
				case ev.MatchString("?", "shift+/"):
					v.showHUD = !v.showHUD
				}
			case uv.MouseClickEvent:
				dragging, lastX, lastY = true, ev.X, ev.Y
			case uv.MouseReleaseEvent:
				dragging = false
			case uv.MouseMotionEvent:
				if dragging {
					cam.Yaw.Velocity += float64(ev.X-lastX) * 0.01
					cam.Pitch.Velocity += float64(ev.Y-lastY) * 0.01
					lastX, lastY = ev.X, ev.Y
				}
			case uv.MouseWheelEvent:
				switch ev.Button {
				case uv.MouseWheelUp:
					cam.zoom(0.9)
				case uv.MouseWheelDown:
					cam.zoom(1 / 0.9)
				}
			}

		case <-tick.C:
			if cam.update() {
				st.camera.Orbit(cam.target, cam.radius, cam.Yaw.Position, cam.Pitch.Position)
				if err := st.camera.Apply(st.transform); err != nil {
					logger.Warningf("camera: %v", err)
				}
			}
			if err := v.frame(ctx); err != nil {
				return err
			}
			term.Draw(v.img)
			if v.showHUD {
				v.drawHUD(term, cols, rows)
			}
			if err := term.Display(); err != nil {
				return fmt.Errorf("display: %w", err)
			}

			frames++
			if elapsed := time.Since(fpsTime); elapsed >= time.Second {
				v.fps = float64(frames) / elapsed.Seconds()
				frames, fpsTime = 0, time.Now()
			}
		}
	}
}

// setup (re)creates the render targets for a width x height image.
func (v *viewer) setup(width, height int) error {
	if err := v.st.resize(width, height); err != nil {
		return err
	}
	v.img = film.NewImage(width, height)
	v.img.Exposure = v.st.cfg.Exposure

	v.rs = v.st.world.RasterScene(v.st.buffers)
	v.raster = raster.New(v.st.transform, v.img, v.st.cfg.RasterOptions())

	if v.ts == nil {
		ts, err := v.st.traceScene()
		if err != nil {
			return err
		}
		v.ts = ts
	}
	topts := v.st.cfg.TraceOptions()
	tr, err := trace.New(v.ts, v.st.transform, film.NewAccumulator(width, height, topts.ErrorColor), topts)
	if err != nil {
		return err
	}
	v.tracer = tr
	return nil
}

// nextVariant switches every virtual material to its next child and
// restarts accumulation.
func (v *viewer) nextVariant() error {
	v.st.world.Variant++
	v.rs.Variant = v.st.world.Variant
	v.ts.Variant = v.st.world.Variant
	return v.ts.Build(v.st.traceBVHOptions())
}

func (v *viewer) frame(ctx context.Context) error {
	if v.mode == scene.ModeRaster {
		return v.raster.Render(ctx, v.rs)
	}
	if err := v.tracer.Pass(ctx); err != nil {
		return err
	}
	v.tracer.Accum.Resolve(v.img)
	return nil
}

func (v *viewer) drawHUD(scr uv.Screen, cols, rows int) {
	left := fmt.Sprintf(" %s | %s | %.0f FPS ", v.st.world.Name, v.mode, v.fps)
	if v.mode == scene.ModeTrace {
		left += fmt.Sprintf("| %d spp ", v.tracer.Passes())
	}
	right := fmt.Sprintf(" variant %d | ? help off ", v.st.world.Variant)
	fg := color.RGBA{230, 230, 230, 255}
	bg := color.RGBA{20, 20, 28, 255}
	drawText(scr, 0, 0, cols, left, fg, bg)
	drawText(scr, max(cols-len(right), 0), rows-1, cols, right, fg, bg)
}

func drawText(scr uv.Screen, x, y, cols int, s string, fg, bg color.Color) {
	for _, r := range s {
		if x >= cols {
			return
		}
		scr.SetCell(x, y, &uv.Cell{Content: string(r), Width: 1, Style: uv.Style{Fg: fg, Bg: bg}})
		x++
	}
}
