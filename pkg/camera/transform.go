// Package camera converts between world space, normalized view space and
// pixel coordinates. Both renderers read one Transform per frame.
package camera

import (
	"errors"
	"fmt"

	"github.com/taigrr/prism/pkg/math3d"
)

// ErrSingularCamera reports a view/projection pair whose product cannot be
// inverted. It is a configuration error: the frame cannot be rendered.
var ErrSingularCamera = errors.New("camera: singular view-projection matrix")

// Transform holds the world->view matrix W2V = projection*view and its
// inverse V2W for a fixed viewport resolution. "View space" here is the
// normalized [-1,1]³ volume after the homogeneous divide.
type Transform struct {
	Width, Height int

	W2V  math3d.Mat4
	V2W  math3d.Mat4
	View math3d.Mat4
	Proj math3d.Mat4

	generation uint64
}

// NewTransform returns an identity transform for a width x height viewport.
func NewTransform(width, height int) *Transform {
	return &Transform{
		Width:  width,
		Height: height,
		W2V:    math3d.Identity(),
		V2W:    math3d.Identity(),
		View:   math3d.Identity(),
		Proj:   math3d.Identity(),
	}
}

// SetCamera stores projection*view and its inverse. On a singular product
// the previous matrices are kept and ErrSingularCamera is returned.
func (t *Transform) SetCamera(view, projection math3d.Mat4) error {
	w2v := projection.Mul(view)
	v2w, ok := w2v.Inverse()
	if !ok {
		return fmt.Errorf("set camera: %w", ErrSingularCamera)
	}
	t.View, t.Proj = view, projection
	t.W2V, t.V2W = w2v, v2w
	t.generation++
	return nil
}

// Generation increments on every successful SetCamera. Accumulating
// renderers compare it to detect a moved camera.
func (t *Transform) Generation() uint64 {
	return t.generation
}

// Resize changes the viewport resolution.
func (t *Transform) Resize(width, height int) {
	if width != t.Width || height != t.Height {
		t.Width, t.Height = width, height
		t.generation++
	}
}

// ToClip applies W2V without the homogeneous divide.
func (t *Transform) ToClip(world math3d.Vec3) math3d.Vec4 {
	return t.W2V.MulVec4(math3d.V4FromV3(world, 1))
}

// ToViewSpace applies W2V with the homogeneous divide.
func (t *Transform) ToViewSpace(world math3d.Vec3) math3d.Vec3 {
	return t.W2V.MulVec3(world)
}

// ToWorldSpace applies V2W with the homogeneous divide.
func (t *Transform) ToWorldSpace(view math3d.Vec3) math3d.Vec3 {
	return t.V2W.MulVec3(view)
}

// ToViewport maps normalized xy in [-1,1] to pixel coordinates. Pixel rows
// grow downward, so +y in view space is row 0.
func (t *Transform) ToViewport(view math3d.Vec3) math3d.Vec2 {
	return math3d.V2(
		(view.X+1)*0.5*float64(t.Width),
		(1-view.Y)*0.5*float64(t.Height),
	)
}

// FromViewport is the inverse of ToViewport for the xy components.
func (t *Transform) FromViewport(px, py float64) (x, y float64) {
	return px/float64(t.Width)*2 - 1, 1 - py/float64(t.Height)*2
}

// ToViewportScalar converts a normalized-space radius to pixels using the
// mean of the two resolution axes.
func (t *Transform) ToViewportScalar(r float64) float64 {
	return r * 0.5 * float64(t.Width+t.Height) / 2
}

// Ray returns the world-space ray through pixel position (px, py), starting
// on the near plane.
func (t *Transform) Ray(px, py float64) math3d.Ray {
	x, y := t.FromViewport(px, py)
	near := t.ToWorldSpace(math3d.V3(x, y, -1))
	far := t.ToWorldSpace(math3d.V3(x, y, 1))
	return math3d.NewRay(near, far.Sub(near))
}

// Eye returns the camera position recovered from the view matrix.
func (t *Transform) Eye() math3d.Vec3 {
	inv, ok := t.View.Inverse()
	if !ok {
		return math3d.Zero3()
	}
	return inv.Translation()
}

// ProjScale returns the projection's vertical focal scale (cot(fov/2) for a
// perspective projection), used to size spheres on screen.
func (t *Transform) ProjScale() float64 {
	return max(t.Proj.Get(0, 0), t.Proj.Get(1, 1))
}
