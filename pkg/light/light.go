// Package light describes the analytic lights shared by the rasterizer and
// the path tracer.
package light

import (
	"math"

	"github.com/taigrr/prism/pkg/math3d"
)

// Kind discriminates a Light.
type Kind uint8

const (
	// Directional lights arrive from infinitely far away along Direction.
	Directional Kind = iota
	// Point lights radiate Color/d² from Position.
	Point
)

func (k Kind) String() string {
	switch k {
	case Directional:
		return "directional"
	case Point:
		return "point"
	}
	return "unknown"
}

// Light is a delta light. Direction is the direction the light travels, so
// a sun overhead has Direction (0, -1, 0).
type Light struct {
	Kind      Kind
	Direction math3d.Vec3
	Position  math3d.Vec3
	Color     math3d.Vec3
}

// NewDirectional returns a directional light travelling along dir.
func NewDirectional(dir, color math3d.Vec3) Light {
	return Light{Kind: Directional, Direction: dir.Normalize(), Color: color}
}

// NewPoint returns a point light at pos with intensity color.
func NewPoint(pos, color math3d.Vec3) Light {
	return Light{Kind: Point, Position: pos, Color: color}
}

// Incident returns the unit direction from p towards the light, the
// distance to it (infinite for directional lights) and the radiance
// arriving at p.
func (l Light) Incident(p math3d.Vec3) (wi math3d.Vec3, dist float64, radiance math3d.Vec3) {
	if l.Kind == Directional {
		return l.Direction.Negate(), math.Inf(1), l.Color
	}
	d := l.Position.Sub(p)
	d2 := d.LenSq()
	if d2 < math3d.Epsilon {
		return math3d.Vec3{}, 0, math3d.Vec3{}
	}
	dist = math.Sqrt(d2)
	return d.Scale(1 / dist), dist, l.Color.Scale(1 / d2)
}

// Set is the lighting environment of a frame.
type Set struct {
	Ambient math3d.Vec3
	Lights  []Light
}

// Default returns a white key light from the upper left with a dim ambient
// term.
func Default() Set {
	return Set{
		Ambient: math3d.Splat3(0.1),
		Lights: []Light{
			NewDirectional(math3d.V3(0.5, -1, -0.6), math3d.Splat3(1)),
		},
	}
}
