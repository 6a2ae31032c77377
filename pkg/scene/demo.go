package scene

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/taigrr/prism/pkg/geom"
	"github.com/taigrr/prism/pkg/light"
	"github.com/taigrr/prism/pkg/material"
	"github.com/taigrr/prism/pkg/math3d"
	"github.com/taigrr/prism/pkg/trace"
)

// ErrUnknownScene is returned by Demo for names outside the catalogue.
var ErrUnknownScene = errors.New("scene: unknown demo")

var demos = map[string]func() *World{
	"sphere":  sphereDemo,
	"quad":    quadDemo,
	"cornell": cornellDemo,
	"wire":    wireDemo,
}

// Names lists the demo scenes in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(demos))
}

// Demo builds a fresh copy of the named demo scene.
func Demo(name string) (*World, error) {
	build, ok := demos[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownScene)
	}
	return build(), nil
}

// sphereDemo is a white unit sphere at the origin over a checker floor, lit
// by a directional light from behind the camera.
func sphereDemo() *World {
	w := NewWorld("sphere")
	m := w.Materials
	white := m.MustAdd(material.Lambert(material.Gray(0.8)))
	floor := m.MustAdd(material.Lambert(material.Checker(math3d.Splat3(0.7), math3d.Splat3(0.2), 2)))

	w.Spheres = []geom.Sphere{{Radius: 1, Material: int32(white)}}
	w.Triangles = quad(math3d.V3(0, -1, 0), math3d.V3(0, 0, 8), math3d.V3(8, 0, 0), floor)
	w.Lights = light.Set{
		Ambient: math3d.Splat3(0.05),
		Lights:  []light.Light{light.NewDirectional(math3d.V3(0.3, -0.6, 1), math3d.Splat3(2))},
	}
	w.Environment = trace.Environment{Zenith: math3d.V3(0.3, 0.45, 0.8), Horizon: math3d.V3(0.9, 0.9, 0.95)}
	w.Background = w.Environment.Horizon
	w.Eye, w.Target = math3d.V3(0, 0, -3), math3d.Zero3()
	return w
}

// quadDemo is an emissive square hanging one unit over a grey plane.
func quadDemo() *World {
	w := NewWorld("quad")
	m := w.Materials
	floor := m.MustAdd(material.Lambert(material.Gray(0.5)))
	lamp := m.MustAdd(material.Emission(material.Gray(1), 4))

	w.Triangles = append(
		quad(math3d.Zero3(), math3d.V3(0, 0, 5), math3d.V3(5, 0, 0), floor),
		quad(math3d.V3(0, 1, 0), math3d.V3(0.5, 0, 0), math3d.V3(0, 0, 0.5), lamp)...,
	)
	w.Lights = light.Set{Ambient: math3d.Splat3(0.05)}
	w.Eye, w.Target = math3d.V3(0, 2.5, -3.5), math3d.Zero3()
	return w
}

// cornellDemo is the classic box with a ceiling lamp, a dispersive glass
// sphere, a rough gold sphere, a stack of switchable voxels, a handful of
// glowing particles and a fog layer near the floor.
func cornellDemo() *World {
	w := NewWorld("cornell")
	m := w.Materials
	white := m.MustAdd(material.Lambert(material.Gray(0.75)))
	red := m.MustAdd(material.Lambert(material.Const(math3d.V3(0.65, 0.06, 0.05))))
	green := m.MustAdd(material.Lambert(material.Const(math3d.V3(0.12, 0.45, 0.15))))
	lamp := m.MustAdd(material.Emission(material.Const(math3d.V3(1, 0.85, 0.65)), 12))
	glass := m.MustAdd(material.Glass(material.Gray(1), 1.5, 0.01))
	gold := m.MustAdd(material.GGX(material.Const(math3d.V3(1, 0.78, 0.34)), 0.3))

	// Voxels switch between a glossy plastic and a mirror by variant.
	blue := m.MustAdd(material.Lambert(material.Const(math3d.V3(0.1, 0.2, 0.6))))
	gloss := m.MustAdd(material.Phong(material.Gray(0.3), 64))
	plastic := m.MustAdd(material.AddOf(blue, gloss))
	mirror := m.MustAdd(material.Mirror(material.Gray(0.9)))
	voxel := m.MustAdd(material.Virtual(plastic, mirror))

	ember := m.MustAdd(material.Emission(material.Const(math3d.V3(1, 0.4, 0.1)), 3))
	dim := m.MustAdd(material.ScaleOf(white, material.Gray(0.5)))
	particle := m.MustAdd(material.MixOf(dim, ember, 0.5))

	var tris []geom.Triangle
	tris = append(tris, quad(math3d.V3(0, -1, 0), math3d.V3(0, 0, 1), math3d.V3(1, 0, 0), white)...)
	tris = append(tris, quad(math3d.V3(0, 1, 0), math3d.V3(1, 0, 0), math3d.V3(0, 0, 1), white)...)
	tris = append(tris, quad(math3d.V3(0, 0, 1), math3d.V3(0, 1, 0), math3d.V3(1, 0, 0), white)...)
	// The camera looks down +Z, so +X is on the left of the image.
	tris = append(tris, quad(math3d.V3(1, 0, 0), math3d.V3(0, 0, 1), math3d.V3(0, 1, 0), red)...)
	tris = append(tris, quad(math3d.V3(-1, 0, 0), math3d.V3(0, 1, 0), math3d.V3(0, 0, 1), green)...)
	tris = append(tris, quad(math3d.V3(0, 0.99, 0), math3d.V3(0.3, 0, 0), math3d.V3(0, 0, 0.3), lamp)...)
	w.Triangles = tris

	w.Spheres = []geom.Sphere{
		{Center: math3d.V3(0.45, -0.6, 0.35), Radius: 0.4, Material: int32(glass)},
		{Center: math3d.V3(-0.45, -0.65, 0.1), Radius: 0.35, Material: int32(gold)},
	}
	for i := range 5 {
		x := -0.6 + 0.3*float64(i)
		w.Spheres = append(w.Spheres, geom.Sphere{Center: math3d.V3(x, 0.5, 0.6), Radius: 0.04, Material: int32(particle)})
	}
	for i := range 3 {
		c := math3d.V3(-0.1, -0.9+0.2*float64(i), -0.45)
		w.Boxes = append(w.Boxes, geom.Voxel(c, 0.2, int32(voxel)))
	}

	density := &trace.Grid{Nx: 4, Ny: 2, Nz: 4, Values: make([]float64, 32)}
	for i := range density.Values {
		// Thicker in the lower layer.
		density.Values[i] = 1
		if i/4%2 == 1 {
			density.Values[i] = 0.4
		}
	}
	w.Medium = &trace.Medium{
		Bounds:  geom.NewAABB(math3d.V3(-1, -1, -1), math3d.V3(1, -0.5, 1)),
		Sigma:   0.6,
		Albedo:  math3d.Splat3(0.9),
		G:       0.3,
		Density: density,
	}

	w.Lights = light.Set{
		Ambient: math3d.Splat3(0.08),
		Lights:  []light.Light{light.NewPoint(math3d.V3(0, 0.8, 0), math3d.V3(0.5, 0.45, 0.35))},
	}
	w.Eye, w.Target = math3d.V3(0, 0, -3.4), math3d.Zero3()
	return w
}

// wireDemo shows the line primitives: a ground grid, the axes and the
// outline of a voxel next to a particle.
func wireDemo() *World {
	w := NewWorld("wire")
	m := w.Materials
	grey := m.MustAdd(material.Emission(material.Gray(1), 0.35))
	xAxis := m.MustAdd(material.Emission(material.Const(math3d.V3(1, 0.2, 0.2)), 1))
	yAxis := m.MustAdd(material.Emission(material.Const(math3d.V3(0.2, 1, 0.2)), 1))
	zAxis := m.MustAdd(material.Emission(material.Const(math3d.V3(0.3, 0.5, 1)), 1))
	solid := m.MustAdd(material.Lambert(material.Gray(0.7)))

	voxel := geom.Voxel(math3d.V3(1, -0.5, 0), 1, int32(solid))
	outline := voxel.Bounds()
	outline.Min = outline.Min.Sub(math3d.Splat3(0.05))
	outline.Max = outline.Max.Add(math3d.Splat3(0.05))

	w.Lines = append(w.Lines, geom.Grid(-1, 8, 0.5, int32(grey))...)
	w.Lines = append(w.Lines, geom.Axes(1.5, int32(xAxis), int32(yAxis), int32(zAxis))...)
	w.Lines = append(w.Lines, geom.BoxEdges(outline, int32(grey))...)
	w.Boxes = []geom.Box{voxel}
	w.Spheres = []geom.Sphere{{Center: math3d.V3(-1, -0.5, 0), Radius: 0.5, Material: int32(solid)}}
	w.Background = math3d.Splat3(0.02)
	w.Environment = trace.ConstantEnvironment(math3d.Splat3(0.3))
	w.Eye, w.Target = math3d.V3(2.5, 2, -4), math3d.Zero3()
	return w
}
