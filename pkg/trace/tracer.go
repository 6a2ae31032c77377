package trace

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/taigrr/prism/pkg/bvh"
	"github.com/taigrr/prism/pkg/camera"
	"github.com/taigrr/prism/pkg/film"
	"github.com/taigrr/prism/pkg/material"
	"github.com/taigrr/prism/pkg/math3d"
	"github.com/taigrr/prism/pkg/parallel"
	"github.com/taigrr/prism/pkg/sampling"
)

var (
	// ErrViewport is returned when the accumulator and the transform
	// disagree on resolution.
	ErrViewport = errors.New("trace: accumulator size differs from viewport")
	// ErrOptions reports out-of-range tracer options.
	ErrOptions = errors.New("trace: invalid options")
)

// Options tune the integrator.
type Options struct {
	// MaxDepth bounds the number of path vertices.
	MaxDepth int
	// Survival scales mean throughput before the tanh that maps it to a
	// continuation probability, which is then clamped to [Low, High].
	Survival  float64
	Low, High float64
	// RouletteDepth is the number of bounces made before roulette applies.
	RouletteDepth int
	// ErrorColor replaces NaN, infinite or negative samples.
	ErrorColor math3d.Vec3
	// Jitter spreads samples over the pixel footprint.
	Jitter bool
	Lanes  int
}

// DefaultOptions returns the settings used by the CLI.
func DefaultOptions() Options {
	return Options{
		MaxDepth:      8,
		Survival:      4,
		Low:           0.05,
		High:          0.95,
		RouletteDepth: 2,
		ErrorColor:    math3d.V3(1, 0, 1),
		Jitter:        true,
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	switch {
	case o.MaxDepth <= 0:
		return fmt.Errorf("max depth %d: %w", o.MaxDepth, ErrOptions)
	case o.Survival <= 0:
		return fmt.Errorf("survival %v: %w", o.Survival, ErrOptions)
	case o.Low <= 0 || o.High > 1 || o.Low > o.High:
		return fmt.Errorf("roulette bounds [%v, %v]: %w", o.Low, o.High, ErrOptions)
	case o.RouletteDepth < 0:
		return fmt.Errorf("roulette depth %d: %w", o.RouletteDepth, ErrOptions)
	}
	return nil
}

// ContinueProbability is the Russian roulette survival probability for a
// path with throughput beta.
func (o Options) ContinueProbability(beta math3d.Vec3) float64 {
	return math3d.Clamp(math.Tanh(beta.Mean()*o.Survival), o.Low, o.High)
}

// roulette terminates the path with probability 1-p and otherwise divides
// the throughput by p, which keeps the estimator unbiased.
func (o Options) roulette(beta math3d.Vec3, rng sampling.Rand) (math3d.Vec3, bool) {
	p := o.ContinueProbability(beta)
	if rng.Float64() >= p {
		return math3d.Vec3{}, false
	}
	return beta.Scale(1 / p), true
}

// Tracer renders a Scene progressively into an Accumulator.
type Tracer struct {
	Scene     *Scene
	Transform *camera.Transform
	Accum     *film.Accumulator
	Options   Options

	frame  uint64
	epoch  uint64
	camGen uint64
	scnGen uint64
	lanes  []lane
}

type lane struct {
	stack *bvh.Stack
	pcg   rand.PCG
	rng   *rand.Rand
}

// New returns a tracer. The scene must already be built.
func New(s *Scene, t *camera.Transform, accum *film.Accumulator, opts Options) (*Tracer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if !s.built {
		return nil, ErrNotBuilt
	}
	if s.Medium != nil {
		if err := s.Medium.Validate(); err != nil {
			return nil, err
		}
	}
	if accum.Width != t.Width || accum.Height != t.Height {
		return nil, fmt.Errorf("%dx%d vs %dx%d: %w", accum.Width, accum.Height, t.Width, t.Height, ErrViewport)
	}
	return &Tracer{Scene: s, Transform: t, Accum: accum, Options: opts}, nil
}

// Passes returns the number of passes accumulated since the last reset.
func (tr *Tracer) Passes() int {
	if len(tr.lanes) == 0 || tr.Accum.Width*tr.Accum.Height == 0 {
		return 0
	}
	return tr.Accum.Samples(0)
}

// sync restarts accumulation when the camera or the scene changed.
func (tr *Tracer) sync() {
	cg, sg := tr.Transform.Generation(), tr.Scene.Generation()
	if tr.epoch == 0 || cg != tr.camGen || sg != tr.scnGen {
		tr.camGen, tr.scnGen = cg, sg
		tr.epoch++
	}
	if tr.Accum.Sync(tr.epoch) {
		logger.Debugf("accumulation reset (epoch %d)", tr.epoch)
	}
}

func (tr *Tracer) ensureLanes(n int) {
	size := tr.Scene.StackSize()
	if len(tr.lanes) == n && tr.lanes[0].stack.Cap() >= size {
		return
	}
	tr.lanes = make([]lane, n)
	for i := range tr.lanes {
		l := &tr.lanes[i]
		l.stack = tr.Scene.NewStack()
		l.rng = rand.New(&l.pcg)
	}
}

// Pass traces one sample per pixel and folds it into the accumulator.
// Traversal errors abort the pass and are returned.
func (tr *Tracer) Pass(ctx context.Context) error {
	if tr.Accum.Width != tr.Transform.Width || tr.Accum.Height != tr.Transform.Height {
		return ErrViewport
	}
	tr.sync()
	n := parallel.Lanes(tr.Options.Lanes)
	tr.ensureLanes(n)
	frame := tr.frame
	tr.frame++

	w, h := tr.Transform.Width, tr.Transform.Height
	err := parallel.Grid(ctx, w, h, n, func(id, lo, hi int) error {
		ln := &tr.lanes[id]
		for i := lo; i < hi; i++ {
			sampling.Seed(&ln.pcg, i, frame)
			x, y := i%w, i/w
			c, err := tr.Radiance(tr.CameraRay(x, y, ln.rng), ln.rng, ln.stack)
			if err != nil {
				return fmt.Errorf("pixel (%d, %d): %w", x, y, err)
			}
			tr.Accum.Add(i, c)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("trace pass %d: %w", frame, err)
	}
	return nil
}

// CameraRay returns the primary ray through pixel (x, y), jittered inside
// the pixel when enabled.
func (tr *Tracer) CameraRay(x, y int, rng sampling.Rand) math3d.Ray {
	dx, dy := 0.5, 0.5
	if tr.Options.Jitter {
		dx, dy = rng.Float64(), rng.Float64()
	}
	return tr.Transform.Ray(float64(x)+dx, float64(y)+dy)
}

// vertex is a scattering location: a surface hit or a point in the medium.
type vertex struct {
	p      math3d.Vec3
	wo     math3d.Vec3 // towards the previous vertex
	n      math3d.Vec3 // shading normal on the side of wo
	ng     math3d.Vec3 // geometric normal on the side of wo
	mat    material.ID
	medium bool
	params *material.Params
}

// eval returns the scattering function times the cosine for surfaces, or
// the phase function in a medium, and the density of sampling wi.
func (tr *Tracer) eval(v *vertex, wi math3d.Vec3) (math3d.Vec3, float64) {
	if v.medium {
		ph := tr.Scene.Medium.Phase(v.wo.Negate(), wi)
		return math3d.Splat3(ph), ph
	}
	cos := v.n.Dot(wi)
	if cos <= 0 || v.ng.Dot(wi) <= 0 {
		return math3d.Vec3{}, 0
	}
	m := tr.Scene.Materials
	f := m.BRDF(v.mat, v.n, wi, v.wo, v.params)
	if f.IsZero() {
		return f, 0
	}
	return f.Scale(cos), m.PDF(v.mat, v.n, wi, v.wo, v.params)
}

// lightCount is the number of strategies the uniform light choice picks
// from: every point or directional light plus the emissive triangles as one.
func (s *Scene) lightCount() int {
	n := len(s.Lights)
	if len(s.emitters) > 0 {
		n++
	}
	return n
}

// visibility is the transmittance from v to a point dist away along wi,
// zero when a surface blocks it.
func (tr *Tracer) visibility(v *vertex, wi math3d.Vec3, dist float64, stack *bvh.Stack) (float64, error) {
	r := math3d.Ray{Origin: v.p, Dir: wi}
	if !v.medium {
		r = r.Offset(v.ng)
	}
	blocked, err := tr.Scene.Occluded(r, dist-2*math3d.RayEpsilon, stack)
	if err != nil || blocked {
		return 0, err
	}
	if m := tr.Scene.Medium; m != nil {
		return m.Transmittance(r, dist), nil
	}
	return 1, nil
}

// direct samples one light for v. Delta lights contribute with weight one;
// area lights are weighted against the scattering density with the power
// heuristic.
func (tr *Tracer) direct(v *vertex, rng sampling.Rand, stack *bvh.Stack) (math3d.Vec3, error) {
	s := tr.Scene
	n := s.lightCount()
	if n == 0 {
		return math3d.Vec3{}, nil
	}
	k := min(int(rng.Float64()*float64(n)), n-1)

	if k < len(s.Lights) {
		wi, dist, li := s.Lights[k].Incident(v.p)
		if li.IsZero() {
			return li, nil
		}
		f, _ := tr.eval(v, wi)
		if f.IsZero() {
			return f, nil
		}
		vis, err := tr.visibility(v, wi, dist, stack)
		if err != nil || vis == 0 {
			return math3d.Vec3{}, err
		}
		return f.Mul(li).Scale(vis * float64(n)), nil
	}

	tri, q, pdfArea := s.sampleEmitter(rng.Float64(), rng.Float64(), rng.Float64())
	d := q.Sub(v.p)
	dist2 := d.LenSq()
	if dist2 < math3d.Epsilon {
		return math3d.Vec3{}, nil
	}
	dist := math.Sqrt(dist2)
	wi := d.Scale(1 / dist)
	cosL := -wi.Dot(tri.FaceNormal())
	if cosL <= math3d.Epsilon {
		return math3d.Vec3{}, nil
	}
	lp := material.DefaultParams()
	lp.Position, lp.Variant = q, s.Variant
	le := s.Materials.Emitted(material.ID(tri.Material), 1, &lp)
	if le.IsZero() {
		return le, nil
	}
	f, scatterPDF := tr.eval(v, wi)
	if f.IsZero() {
		return f, nil
	}
	lightPDF := pdfArea * dist2 / cosL / float64(n)
	vis, err := tr.visibility(v, wi, dist, stack)
	if err != nil || vis == 0 {
		return math3d.Vec3{}, err
	}
	w := sampling.PowerHeuristic(lightPDF, scatterPDF)
	return f.Mul(le).Scale(w * vis / lightPDF), nil
}

// emitterPDF is the solid-angle density with which direct would have
// chosen the point of in seen from distance in.T at cosine cosL.
func (s *Scene) emitterPDF(in Intersection, cosL float64) float64 {
	if cosL <= math3d.Epsilon {
		return 0
	}
	return in.T * in.T / (cosL * s.area * float64(s.lightCount()))
}

// Radiance estimates the radiance arriving along r with one path.
func (tr *Tracer) Radiance(r math3d.Ray, rng sampling.Rand, stack *bvh.Stack) (math3d.Vec3, error) {
	s := tr.Scene
	o := tr.Options
	var (
		radiance math3d.Vec3
		beta     = math3d.Splat3(1)
		// The camera ray behaves like a delta bounce: emitters it sees
		// were never reachable by light sampling.
		specular = true
		prevPDF  float64
	)
	params := material.DefaultParams()
	params.Variant = s.Variant

	for depth := range o.MaxDepth {
		in, hit, err := s.Hit(r, math.Inf(1), stack)
		if err != nil {
			return radiance, err
		}
		tHit := math.Inf(1)
		if hit {
			tHit = in.T
		}

		if m := s.Medium; m != nil {
			if t, ok := m.SampleDistance(r, tHit, rng.Float64()); ok {
				v := vertex{p: r.At(t), wo: r.Dir.Negate(), medium: true}
				beta = beta.Mul(m.Albedo)
				ld, err := tr.direct(&v, rng, stack)
				if err != nil {
					return radiance, err
				}
				radiance = radiance.Add(beta.Mul(ld))
				wi := m.SamplePhase(r.Dir, rng)
				prevPDF = m.Phase(r.Dir, wi)
				specular = false
				r = math3d.Ray{Origin: v.p, Dir: wi}
				if depth+1 >= o.RouletteDepth {
					var alive bool
					if beta, alive = o.roulette(beta, rng); !alive {
						break
					}
				}
				continue
			}
		}

		if !hit {
			radiance = radiance.Add(beta.Mul(s.Environment.Radiance(r.Dir)))
			break
		}

		wo := r.Dir.Negate()
		ng, n, sign := in.Geometric, in.Normal, 1.0
		if ng.Dot(wo) < 0 {
			ng, n, sign = ng.Negate(), n.Negate(), -1
		}
		if n.Dot(wo) <= 0 {
			n = ng
		}
		params.Position, params.TexCoord = in.Position, in.TexCoord

		if le := s.Materials.Emitted(in.Material, sign, &params); !le.IsZero() {
			w := 1.0
			if !specular && s.isEmitter(in) {
				w = sampling.PowerHeuristic(prevPDF, s.emitterPDF(in, ng.Dot(wo)))
			}
			radiance = radiance.Add(beta.Mul(le).Scale(w))
		}

		v := vertex{p: in.Position, wo: wo, n: n, ng: ng, mat: in.Material, params: &params}
		ld, err := tr.direct(&v, rng, stack)
		if err != nil {
			return radiance, err
		}
		radiance = radiance.Add(beta.Mul(ld))

		smp := s.Materials.Sample(in.Material, wo, n, sign, rng, &params)
		if !smp.OK || smp.Weight.IsZero() {
			break
		}
		beta = beta.Mul(smp.Weight)
		specular, prevPDF = smp.Delta, smp.PDF
		r = math3d.Ray{Origin: in.Position, Dir: smp.Dir}.Offset(ng)

		if depth+1 >= o.RouletteDepth {
			var alive bool
			if beta, alive = o.roulette(beta, rng); !alive {
				break
			}
		}
	}
	return radiance, nil
}
