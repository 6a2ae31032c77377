package camera

import (
	"math"

	"github.com/taigrr/prism/pkg/math3d"
)

// Camera is a yaw/pitch camera that produces the view and projection
// matrices fed to Transform.SetCamera.
type Camera struct {
	Position math3d.Vec3

	Pitch float64 // rotation around X, looking up/down
	Yaw   float64 // rotation around Y, looking left/right

	FOV         float64 // vertical field of view in radians
	AspectRatio float64
	Near        float64
	Far         float64

	viewMatrix math3d.Mat4
	projMatrix math3d.Mat4
	viewDirty  bool
	projDirty  bool
}

// New returns a camera at pos looking at target.
func New(pos, target math3d.Vec3, fov, aspect float64) *Camera {
	c := &Camera{
		Position:    pos,
		FOV:         fov,
		AspectRatio: aspect,
		Near:        0.1,
		Far:         1000,
		viewDirty:   true,
		projDirty:   true,
	}
	c.LookAt(target)
	return c
}

// SetPosition moves the camera.
func (c *Camera) SetPosition(pos math3d.Vec3) {
	c.Position = pos
	c.viewDirty = true
}

// SetAspectRatio sets width/height.
func (c *Camera) SetAspectRatio(aspect float64) {
	c.AspectRatio = aspect
	c.projDirty = true
}

// SetClipPlanes sets the near and far planes.
func (c *Camera) SetClipPlanes(near, far float64) {
	c.Near = near
	c.Far = far
	c.projDirty = true
}

// Forward returns the unit viewing direction.
func (c *Camera) Forward() math3d.Vec3 {
	return math3d.V3(
		-math.Sin(c.Yaw)*math.Cos(c.Pitch),
		math.Sin(c.Pitch),
		-math.Cos(c.Yaw)*math.Cos(c.Pitch),
	)
}

// LookAt points the camera at target.
func (c *Camera) LookAt(target math3d.Vec3) {
	dir := target.Sub(c.Position).Normalize()
	c.Pitch = math.Asin(math3d.Clamp(dir.Y, -1, 1))
	c.Yaw = math.Atan2(-dir.X, -dir.Z)
	c.viewDirty = true
}

// Orbit places the camera on a sphere of the given radius around target and
// points it at target. Pitch is clamped short of the poles.
func (c *Camera) Orbit(target math3d.Vec3, radius, yaw, pitch float64) {
	const maxPitch = math.Pi/2 - 0.01
	pitch = math3d.Clamp(pitch, -maxPitch, maxPitch)
	offset := math3d.V3(
		math.Sin(yaw)*math.Cos(pitch),
		math.Sin(pitch),
		math.Cos(yaw)*math.Cos(pitch),
	)
	c.Position = target.Add(offset.Scale(radius))
	c.LookAt(target)
}

// ViewMatrix returns the cached view matrix.
func (c *Camera) ViewMatrix() math3d.Mat4 {
	if c.viewDirty {
		c.viewMatrix = math3d.LookAt(c.Position, c.Position.Add(c.Forward()), math3d.Up())
		c.viewDirty = false
	}
	return c.viewMatrix
}

// ProjectionMatrix returns the cached projection matrix.
func (c *Camera) ProjectionMatrix() math3d.Mat4 {
	if c.projDirty {
		c.projMatrix = math3d.Perspective(c.FOV, c.AspectRatio, c.Near, c.Far)
		c.projDirty = false
	}
	return c.projMatrix
}

// Apply pushes the camera's matrices into t.
func (c *Camera) Apply(t *Transform) error {
	return t.SetCamera(c.ViewMatrix(), c.ProjectionMatrix())
}
