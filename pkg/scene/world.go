// Package scene assembles renderable worlds: the demo catalogue, GLTF
// meshes mapped onto material nodes, and the render configuration that
// selects between them.
package scene

import (
	"fmt"

	"github.com/taigrr/prism/pkg/geom"
	"github.com/taigrr/prism/pkg/light"
	"github.com/taigrr/prism/pkg/log"
	"github.com/taigrr/prism/pkg/material"
	"github.com/taigrr/prism/pkg/math3d"
	"github.com/taigrr/prism/pkg/models"
	"github.com/taigrr/prism/pkg/raster"
	"github.com/taigrr/prism/pkg/trace"
)

var logger = log.New("scene")

// World is an authored scene before it is loaded into primitive buffers.
type World struct {
	Name      string
	Triangles []geom.Triangle
	Spheres   []geom.Sphere
	Boxes     []geom.Box
	Lines     []geom.Line
	Materials *material.Table

	Lights      light.Set
	Environment trace.Environment
	Medium      *trace.Medium
	// Background fills pixels the rasterizer leaves empty.
	Background math3d.Vec3
	Variant    int

	// Default camera placement.
	Eye, Target math3d.Vec3
}

// NewWorld returns an empty world with its own material table.
func NewWorld(name string) *World {
	return &World{Name: name, Materials: material.NewTable(), Lights: light.Default()}
}

// Buffers are the fixed-capacity primitive buffers shared by both
// renderers.
type Buffers struct {
	Triangles *geom.Triangles
	Spheres   *geom.Spheres
	Boxes     *geom.Boxes
	Lines     *geom.Lines
}

// Buffers copies the primitives into buffers of the given capacity; zero
// sizes each buffer to its contents. Under OverflowFail a primitive list
// longer than capacity is an error, under OverflowClamp it is truncated.
func (w *World) Buffers(capacity int, policy geom.Overflow) (*Buffers, error) {
	size := func(n int) int {
		if capacity > 0 {
			return capacity
		}
		return n
	}
	b := &Buffers{
		Triangles: geom.NewTriangles(size(len(w.Triangles)), policy),
		Spheres:   geom.NewSpheres(size(len(w.Spheres)), policy),
		Boxes:     geom.NewBoxes(size(len(w.Boxes)), policy),
		Lines:     geom.NewLines(size(len(w.Lines)), policy),
	}
	if err := b.Triangles.Set(w.Triangles); err != nil {
		return nil, fmt.Errorf("%s: %w", w.Name, err)
	}
	if err := b.Spheres.Set(w.Spheres); err != nil {
		return nil, fmt.Errorf("%s: %w", w.Name, err)
	}
	if err := b.Boxes.Set(w.Boxes); err != nil {
		return nil, fmt.Errorf("%s: %w", w.Name, err)
	}
	if err := b.Lines.Set(w.Lines); err != nil {
		return nil, fmt.Errorf("%s: %w", w.Name, err)
	}
	return b, nil
}

// RasterScene returns the rasterizer's view of w over b.
func (w *World) RasterScene(b *Buffers) *raster.Scene {
	return &raster.Scene{
		Triangles:  b.Triangles,
		Particles:  b.Spheres,
		Voxels:     b.Boxes,
		Lines:      b.Lines,
		Materials:  w.Materials,
		Lights:     w.Lights,
		Background: w.Background,
		Variant:    w.Variant,
	}
}

// TraceScene returns the path tracer's view of w over b. Lines are not
// traced. The scene still needs Build.
func (w *World) TraceScene(b *Buffers) *trace.Scene {
	return &trace.Scene{
		Triangles:   b.Triangles,
		Spheres:     b.Spheres,
		Boxes:       b.Boxes,
		Materials:   w.Materials,
		Lights:      w.Lights.Lights,
		Environment: w.Environment,
		Medium:      w.Medium,
		Variant:     w.Variant,
	}
}

// AddMesh appends the faces of mesh with materials converted by FromMesh.
func (w *World) AddMesh(mesh *models.Mesh) error {
	tris, err := FromMesh(mesh, w.Materials)
	if err != nil {
		return err
	}
	w.Triangles = append(w.Triangles, tris...)
	return nil
}

// LoadModel reads a GLTF/GLB file, fits it into a cube of edge size
// centered on c and adds it to w.
func (w *World) LoadModel(path string, c math3d.Vec3, size float64) error {
	mesh, err := models.LoadGLB(path)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	mesh.Fit(c, size)
	logger.Infof("model %s: %d triangles", mesh.Name, len(mesh.Faces))
	return w.AddMesh(mesh)
}

// Load builds the world cfg selects: the demo scene plus an optional model
// placed at the camera target.
func Load(cfg Config) (*World, error) {
	w, err := Demo(cfg.Scene)
	if err != nil {
		return nil, err
	}
	w.Variant = cfg.Variant
	if cfg.Model != "" {
		if err := w.LoadModel(cfg.Model, w.Target, 1); err != nil {
			return nil, err
		}
	}
	if err := w.Materials.Validate(); err != nil {
		return nil, fmt.Errorf("%s materials: %w", w.Name, err)
	}
	return w, nil
}

// quad returns the parallelogram c ± u ± v as two triangles facing u×v.
func quad(c, u, v math3d.Vec3, mat material.ID) []geom.Triangle {
	a := c.Sub(u).Sub(v)
	b := c.Add(u).Sub(v)
	d := c.Add(u).Add(v)
	e := c.Sub(u).Add(v)
	m := int32(mat)
	return []geom.Triangle{
		{V: [3]math3d.Vec3{a, b, d}, Material: m},
		{V: [3]math3d.Vec3{a, d, e}, Material: m},
	}
}
