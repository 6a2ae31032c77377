// Package models loads triangle meshes and their PBR materials from GLTF.
package models

import (
	"image"

	"github.com/taigrr/prism/pkg/geom"
	"github.com/taigrr/prism/pkg/math3d"
)

// Mesh is an indexed triangle mesh with per-face materials.
type Mesh struct {
	Name      string
	Vertices  []MeshVertex
	Faces     []Face
	Materials []Material

	Bounds geom.AABB
}

// MeshVertex holds all vertex attributes.
type MeshVertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
	UV       math3d.Vec2
}

// Face is a triangle wound counter-clockwise around its front normal.
type Face struct {
	V        [3]int // indices into Mesh.Vertices
	Material int    // index into Mesh.Materials, -1 for none
}

// Material is the metallic-roughness description read from GLTF.
type Material struct {
	Name      string
	BaseColor [4]float64 // linear RGBA
	Metallic  float64
	Roughness float64
	Emissive  math3d.Vec3
	BaseMap   image.Image // nil without a base color texture
}

// DefaultMaterial is what GLTF prescribes for primitives without one.
func DefaultMaterial() Material {
	return Material{Name: "default", BaseColor: [4]float64{1, 1, 1, 1}, Metallic: 1, Roughness: 1}
}

// NewMesh creates an empty mesh.
func NewMesh(name string) *Mesh {
	return &Mesh{Name: name, Bounds: geom.EmptyAABB()}
}

// CalculateBounds recomputes the bounding box.
func (m *Mesh) CalculateBounds() {
	m.Bounds = geom.EmptyAABB()
	for _, v := range m.Vertices {
		m.Bounds = m.Bounds.Extend(v.Position)
	}
}

// faceNormal returns the unnormalized normal of face f, whose length is
// twice the face area.
func (m *Mesh) faceNormal(f Face) math3d.Vec3 {
	v0 := m.Vertices[f.V[0]].Position
	v1 := m.Vertices[f.V[1]].Position
	v2 := m.Vertices[f.V[2]].Position
	return v1.Sub(v0).Cross(v2.Sub(v0))
}

// CalculateNormals assigns each vertex the normal of the last face using
// it, which is flat shading for unshared vertices.
func (m *Mesh) CalculateNormals() {
	for _, f := range m.Faces {
		n := m.faceNormal(f).Normalize()
		for _, vi := range f.V {
			m.Vertices[vi].Normal = n
		}
	}
}

// CalculateSmoothNormals averages area-weighted face normals per vertex.
func (m *Mesh) CalculateSmoothNormals() {
	for i := range m.Vertices {
		m.Vertices[i].Normal = math3d.Zero3()
	}
	for _, f := range m.Faces {
		n := m.faceNormal(f)
		for _, vi := range f.V {
			m.Vertices[vi].Normal = m.Vertices[vi].Normal.Add(n)
		}
	}
	for i := range m.Vertices {
		m.Vertices[i].Normal = m.Vertices[i].Normal.Normalize()
	}
}

// Transform applies mat to positions and its rotation part to normals.
func (m *Mesh) Transform(mat math3d.Mat4) {
	for i := range m.Vertices {
		v := &m.Vertices[i]
		v.Position = mat.MulVec3(v.Position)
		v.Normal = mat.MulVec3Dir(v.Normal).Normalize()
	}
	m.CalculateBounds()
}

// Fit scales and moves the mesh so its bounds are centered on c with the
// longest side equal to size.
func (m *Mesh) Fit(c math3d.Vec3, size float64) {
	if m.Bounds.IsEmpty() {
		return
	}
	longest := m.Bounds.Size().MaxComponent()
	if longest <= 0 {
		return
	}
	s := size / longest
	mat := math3d.Translate(c).Mul(math3d.ScaleUniform(s)).Mul(math3d.Translate(m.Bounds.Center().Negate()))
	m.Transform(mat)
}

// Clone creates a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	clone := *m
	clone.Vertices = append([]MeshVertex(nil), m.Vertices...)
	clone.Faces = append([]Face(nil), m.Faces...)
	clone.Materials = append([]Material(nil), m.Materials...)
	return &clone
}

// FaceMaterial returns the material of face i, or nil when it has none.
func (m *Mesh) FaceMaterial(i int) *Material {
	mi := m.Faces[i].Material
	if mi < 0 || mi >= len(m.Materials) {
		return nil
	}
	return &m.Materials[mi]
}

// Triangle returns face i as a world-space triangle with material id mat.
func (m *Mesh) Triangle(i int, mat int32) geom.Triangle {
	t := geom.Triangle{Material: mat}
	for k, vi := range m.Faces[i].V {
		v := m.Vertices[vi]
		t.V[k], t.N[k], t.UV[k] = v.Position, v.Normal, v.UV
	}
	return t
}
