// Package raster draws triangles, particles, voxels and lines into a
// film.Image with a lock-free two-phase depth protocol.
//
// A frame runs four parallel passes separated by barriers: setup projects
// every primitive, occupancy lowers per-pixel depth with an atomic minimum,
// confirmation records the owner of each pixel whose final depth a
// primitive matches, and shading evaluates the owning material once per
// pixel.
package raster

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/taigrr/prism/pkg/camera"
	"github.com/taigrr/prism/pkg/film"
	"github.com/taigrr/prism/pkg/geom"
	"github.com/taigrr/prism/pkg/light"
	"github.com/taigrr/prism/pkg/log"
	"github.com/taigrr/prism/pkg/material"
	"github.com/taigrr/prism/pkg/math3d"
	"github.com/taigrr/prism/pkg/parallel"
	"github.com/taigrr/prism/pkg/sampling"
)

var logger = log.New("raster")

var (
	// ErrViewport is returned when the target image and the transform
	// disagree on resolution.
	ErrViewport = errors.New("raster: target size differs from viewport")
	// ErrTooManyPrimitives is returned when a buffer holds more primitives
	// than an owner id can address.
	ErrTooManyPrimitives = errors.New("raster: too many primitives")
)

// Scene is what the rasterizer draws. Nil buffers are treated as empty.
type Scene struct {
	Triangles  *geom.Triangles
	Particles  *geom.Spheres
	Voxels     *geom.Boxes
	Lines      *geom.Lines
	Materials  *material.Table
	Lights     light.Set
	Background math3d.Vec3
	Variant    int
}

// Options tune a Rasterizer.
type Options struct {
	// DisableCulling draws back faces with a flipped shading normal.
	DisableCulling bool
	// Jitter moves the sample position inside each pixel every frame along
	// a Halton (2, 3) sequence.
	Jitter bool
	// FrustumCull rejects primitives whose bounds miss the view frustum
	// before any pixel work.
	FrustumCull bool
	// Lanes is the worker count; zero means GOMAXPROCS.
	Lanes int
}

// Stats counts what happened to the primitives of the last frame.
type Stats struct {
	Drawn   int64
	Culled  int64 // back faces and frustum rejects
	Clipped int64 // behind the camera or off screen
}

// Rasterizer renders scenes through a camera transform into a target image.
type Rasterizer struct {
	Transform *camera.Transform
	Target    *film.Image
	Depth     *DepthBuffer
	Options   Options
	Stats     Stats

	frame    uint64
	sampleX  float64
	sampleY  float64
	eye      math3d.Vec3
	frustum  camera.Frustum
	tris     []triSetup
	spheres  []bboxSetup
	boxes    []bboxSetup
	segments []lineSetup
}

// New returns a rasterizer drawing into target.
func New(t *camera.Transform, target *film.Image, opts Options) *Rasterizer {
	return &Rasterizer{
		Transform: t,
		Target:    target,
		Depth:     NewDepthBuffer(target.Width, target.Height),
		Options:   opts,
	}
}

// Frame returns the number of frames rendered.
func (r *Rasterizer) Frame() uint64 {
	return r.frame
}

// Render draws one frame of s.
func (r *Rasterizer) Render(ctx context.Context, s *Scene) error {
	w, h := r.Target.Width, r.Target.Height
	if w != r.Transform.Width || h != r.Transform.Height {
		return fmt.Errorf("target %dx%d, viewport %dx%d: %w", w, h, r.Transform.Width, r.Transform.Height, ErrViewport)
	}
	if r.Depth.Width != w || r.Depth.Height != h {
		r.Depth = NewDepthBuffer(w, h)
	}

	r.sampleX, r.sampleY = 0.5, 0.5
	if r.Options.Jitter {
		r.sampleX = sampling.Halton(int(r.frame%64)+1, 2)
		r.sampleY = sampling.Halton(int(r.frame%64)+1, 3)
	}
	r.frame++
	r.eye = r.Transform.Eye()
	r.frustum = r.Transform.Frustum()
	lanes := r.Options.Lanes

	if err := parallel.For(ctx, r.Depth.Len(), lanes, func(_, lo, hi int) error {
		r.Depth.Clear(lo, hi)
		return nil
	}); err != nil {
		return fmt.Errorf("clear: %w", err)
	}

	counts, err := r.setup(ctx, s)
	if err != nil {
		return err
	}
	total := counts[0] + counts[1] + counts[2] + counts[3]

	if err := parallel.For(ctx, total, lanes, func(_, lo, hi int) error {
		for i := lo; i < hi; i++ {
			r.visit(s, ownerAt(counts, i), r.Depth.Claim)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("occupancy: %w", err)
	}

	if err := parallel.For(ctx, total, lanes, func(_, lo, hi int) error {
		for i := lo; i < hi; i++ {
			owner := ownerAt(counts, i)
			r.visit(s, owner, func(pixel int, z uint32) {
				r.Depth.Confirm(pixel, z, owner)
			})
		}
		return nil
	}); err != nil {
		return fmt.Errorf("confirm: %w", err)
	}

	if err := parallel.Grid(ctx, w, h, lanes, func(_, lo, hi int) error {
		for i := lo; i < hi; i++ {
			r.Target.Pixels[i] = r.shade(s, i)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("shade: %w", err)
	}

	logger.Debugf("frame %d: %d drawn, %d culled, %d clipped", r.frame, r.Stats.Drawn, r.Stats.Culled, r.Stats.Clipped)
	return nil
}

// ownerAt maps a flat index over all primitive kinds to an owner id.
func ownerAt(counts [4]int, i int) uint32 {
	for k, n := range counts {
		if i < n {
			return EncodeOwner(Kind(k), i)
		}
		i -= n
	}
	return NoOwner
}

// setup projects every primitive and returns the per-kind counts.
func (r *Rasterizer) setup(ctx context.Context, s *Scene) ([4]int, error) {
	var counts [4]int
	if s.Triangles != nil {
		counts[KindTriangle] = s.Triangles.Len()
	}
	if s.Particles != nil {
		counts[KindParticle] = s.Particles.Len()
	}
	if s.Voxels != nil {
		counts[KindVoxel] = s.Voxels.Len()
	}
	if s.Lines != nil {
		counts[KindLine] = s.Lines.Len()
	}
	for k, n := range counts {
		if n > MaxPrimitives {
			return counts, fmt.Errorf("%d %ss: %w", n, Kind(k), ErrTooManyPrimitives)
		}
	}

	r.tris = resize(r.tris, counts[KindTriangle])
	r.spheres = resize(r.spheres, counts[KindParticle])
	r.boxes = resize(r.boxes, counts[KindVoxel])
	r.segments = resize(r.segments, counts[KindLine])

	var drawn, culled, clipped atomic.Int64
	tally := func(o outcome) {
		switch o {
		case drawnPrim:
			drawn.Add(1)
		case culledPrim:
			culled.Add(1)
		default:
			clipped.Add(1)
		}
	}
	total := counts[0] + counts[1] + counts[2] + counts[3]
	err := parallel.For(ctx, total, r.Options.Lanes, func(_, lo, hi int) error {
		for i := lo; i < hi; i++ {
			kind, idx := DecodeOwner(ownerAt(counts, i))
			switch kind {
			case KindTriangle:
				tally(r.setupTriangle(s.Triangles.At(idx), &r.tris[idx]))
			case KindParticle:
				tally(r.setupSphere(s.Particles.At(idx), &r.spheres[idx]))
			case KindVoxel:
				tally(r.setupBox(s.Voxels.At(idx), &r.boxes[idx]))
			case KindLine:
				tally(r.setupLine(s.Lines.At(idx), &r.segments[idx]))
			}
		}
		return nil
	})
	if err != nil {
		return counts, fmt.Errorf("setup: %w", err)
	}
	r.Stats = Stats{Drawn: drawn.Load(), Culled: culled.Load(), Clipped: clipped.Load()}
	return counts, nil
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}

// visit calls fn with the pixel index and quantized depth of every sample
// the primitive named by owner covers.
func (r *Rasterizer) visit(s *Scene, owner uint32, fn func(pixel int, z uint32)) {
	kind, idx := DecodeOwner(owner)
	switch kind {
	case KindTriangle:
		r.coverTriangle(&r.tris[idx], fn)
	case KindParticle:
		r.coverSphere(s.Particles.At(idx), &r.spheres[idx], fn)
	case KindVoxel:
		r.coverBox(s.Voxels.At(idx), &r.boxes[idx], fn)
	case KindLine:
		r.coverLine(&r.segments[idx], fn)
	}
}
