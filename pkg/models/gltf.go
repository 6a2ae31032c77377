package models

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"

	"github.com/taigrr/prism/pkg/log"
	"github.com/taigrr/prism/pkg/math3d"
)

var logger = log.New("models")

// ErrAccessor reports accessor data the loader cannot interpret.
var ErrAccessor = errors.New("models: unsupported accessor")

// GLTFLoader loads GLTF/GLB files into a Mesh.
type GLTFLoader struct {
	CalculateNormals bool // generate normals when the file has none
	SmoothNormals    bool // average them per vertex instead of flat
	Textures         bool // decode base color textures
}

// NewGLTFLoader creates a loader with smooth generated normals and
// textures enabled.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{CalculateNormals: true, SmoothNormals: true, Textures: true}
}

// LoadGLB loads a GLTF or GLB file with the default loader.
func LoadGLB(path string) (*Mesh, error) {
	return NewGLTFLoader().Load(path)
}

// Load reads every triangle primitive of every mesh in the document into
// one Mesh, together with the materials they reference.
func (l *GLTFLoader) Load(path string) (*Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	mesh := NewMesh(filepath.Base(path))
	mesh.Materials = l.readMaterials(doc, filepath.Dir(path))
	for _, m := range doc.Meshes {
		if err := l.processMesh(doc, m, mesh); err != nil {
			return nil, fmt.Errorf("process mesh %q: %w", m.Name, err)
		}
	}

	hasNormals := false
	for _, v := range mesh.Vertices {
		if v.Normal.Len() > 0.001 {
			hasNormals = true
			break
		}
	}
	if l.CalculateNormals && !hasNormals {
		if l.SmoothNormals {
			mesh.CalculateSmoothNormals()
		} else {
			mesh.CalculateNormals()
		}
	}
	mesh.CalculateBounds()

	logger.Debugf("loaded %s: %d vertices, %d faces, %d materials", mesh.Name, len(mesh.Vertices), len(mesh.Faces), len(mesh.Materials))
	return mesh, nil
}

// readMaterials converts the document's metallic-roughness materials.
// Missing factors take the GLTF defaults.
func (l *GLTFLoader) readMaterials(doc *gltf.Document, dir string) []Material {
	out := make([]Material, 0, len(doc.Materials))
	for _, gm := range doc.Materials {
		m := DefaultMaterial()
		m.Name = gm.Name
		m.Emissive = math3d.V3(gm.EmissiveFactor[0], gm.EmissiveFactor[1], gm.EmissiveFactor[2])
		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			if pbr.BaseColorFactor != nil {
				m.BaseColor = *pbr.BaseColorFactor
			}
			if pbr.MetallicFactor != nil {
				m.Metallic = *pbr.MetallicFactor
			}
			if pbr.RoughnessFactor != nil {
				m.Roughness = *pbr.RoughnessFactor
			}
			if l.Textures && pbr.BaseColorTexture != nil {
				img, err := readTexture(doc, pbr.BaseColorTexture.Index, dir)
				if err != nil {
					logger.Warningf("material %q: base color texture: %v", gm.Name, err)
				}
				m.BaseMap = img
			}
		}
		out = append(out, m)
	}
	return out
}

// readTexture decodes the image behind texture index ti, embedded or next
// to the document.
func readTexture(doc *gltf.Document, ti int, dir string) (image.Image, error) {
	if ti < 0 || ti >= len(doc.Textures) || doc.Textures[ti].Source == nil {
		return nil, fmt.Errorf("texture %d has no source", ti)
	}
	src := doc.Images[*doc.Textures[ti].Source]

	var data []byte
	switch {
	case src.BufferView != nil:
		bv := doc.BufferViews[*src.BufferView]
		buf := doc.Buffers[bv.Buffer].Data
		if bv.ByteOffset+bv.ByteLength > len(buf) {
			return nil, fmt.Errorf("image buffer view out of range")
		}
		data = buf[bv.ByteOffset : bv.ByteOffset+bv.ByteLength]
	case src.URI != "":
		b, err := os.ReadFile(filepath.Join(dir, src.URI))
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		data = b
	default:
		return nil, fmt.Errorf("image has no data")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// processMesh appends the triangle primitives of m.
func (l *GLTFLoader) processMesh(doc *gltf.Document, m *gltf.Mesh, mesh *Mesh) error {
	for _, prim := range m.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0 {
			continue
		}
		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}
		positions, err := readVec3(doc, posIdx)
		if err != nil {
			return fmt.Errorf("read positions: %w", err)
		}

		var normals []math3d.Vec3
		if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
			if normals, err = readVec3(doc, idx); err != nil {
				return fmt.Errorf("read normals: %w", err)
			}
		}
		var uvs []math3d.Vec2
		if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
			if uvs, err = readVec2(doc, idx); err != nil {
				return fmt.Errorf("read uvs: %w", err)
			}
		}

		material := -1
		if prim.Material != nil && *prim.Material < len(mesh.Materials) {
			material = *prim.Material
		}

		base := len(mesh.Vertices)
		for i, p := range positions {
			v := MeshVertex{Position: p}
			if i < len(normals) {
				v.Normal = normals[i]
			}
			if i < len(uvs) {
				// GLTF puts v = 0 on the top row.
				v.UV = math3d.V2(uvs[i].X, 1-uvs[i].Y)
			}
			mesh.Vertices = append(mesh.Vertices, v)
		}

		var indices []int
		if prim.Indices != nil {
			if indices, err = readIndices(doc, *prim.Indices); err != nil {
				return fmt.Errorf("read indices: %w", err)
			}
		} else {
			indices = make([]int, len(positions))
			for i := range indices {
				indices[i] = i
			}
		}
		// GLTF front faces are counter-clockwise, as in this package.
		for i := 0; i+2 < len(indices); i += 3 {
			f := Face{V: [3]int{base + indices[i], base + indices[i+1], base + indices[i+2]}, Material: material}
			if f.V[0] >= len(mesh.Vertices) || f.V[1] >= len(mesh.Vertices) || f.V[2] >= len(mesh.Vertices) {
				return fmt.Errorf("index out of range in face %d: %w", i/3, ErrAccessor)
			}
			mesh.Faces = append(mesh.Faces, f)
		}
	}
	return nil
}

// view returns the bytes of accessor a from its first element on, and the
// element stride.
func view(doc *gltf.Document, a *gltf.Accessor, elemSize int) ([]byte, int, error) {
	if a.BufferView == nil {
		return nil, 0, fmt.Errorf("accessor without buffer view: %w", ErrAccessor)
	}
	bv := doc.BufferViews[*a.BufferView]
	buf := doc.Buffers[bv.Buffer]
	if buf.Data == nil {
		return nil, 0, fmt.Errorf("buffer %q not loaded: %w", buf.URI, ErrAccessor)
	}
	stride := bv.ByteStride
	if stride == 0 {
		stride = elemSize
	}
	start := bv.ByteOffset + a.ByteOffset
	if a.Count > 0 && start+(a.Count-1)*stride+elemSize > len(buf.Data) {
		return nil, 0, fmt.Errorf("accessor exceeds buffer: %w", ErrAccessor)
	}
	return buf.Data[start:], stride, nil
}

func float32At(b []byte) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
}

func readVec3(doc *gltf.Document, idx int) ([]math3d.Vec3, error) {
	a := doc.Accessors[idx]
	if a.Type != gltf.AccessorVec3 || a.ComponentType != gltf.ComponentFloat {
		return nil, fmt.Errorf("%v/%v as VEC3: %w", a.Type, a.ComponentType, ErrAccessor)
	}
	data, stride, err := view(doc, a, 12)
	if err != nil {
		return nil, err
	}
	out := make([]math3d.Vec3, a.Count)
	for i := range out {
		b := data[i*stride:]
		out[i] = math3d.V3(float32At(b), float32At(b[4:]), float32At(b[8:]))
	}
	return out, nil
}

func readVec2(doc *gltf.Document, idx int) ([]math3d.Vec2, error) {
	a := doc.Accessors[idx]
	if a.Type != gltf.AccessorVec2 || a.ComponentType != gltf.ComponentFloat {
		return nil, fmt.Errorf("%v/%v as VEC2: %w", a.Type, a.ComponentType, ErrAccessor)
	}
	data, stride, err := view(doc, a, 8)
	if err != nil {
		return nil, err
	}
	out := make([]math3d.Vec2, a.Count)
	for i := range out {
		b := data[i*stride:]
		out[i] = math3d.V2(float32At(b), float32At(b[4:]))
	}
	return out, nil
}

func readIndices(doc *gltf.Document, idx int) ([]int, error) {
	a := doc.Accessors[idx]
	if a.Type != gltf.AccessorScalar {
		return nil, fmt.Errorf("%v as indices: %w", a.Type, ErrAccessor)
	}
	var size int
	switch a.ComponentType {
	case gltf.ComponentUbyte:
		size = 1
	case gltf.ComponentUshort:
		size = 2
	case gltf.ComponentUint:
		size = 4
	default:
		return nil, fmt.Errorf("index component %v: %w", a.ComponentType, ErrAccessor)
	}
	data, stride, err := view(doc, a, size)
	if err != nil {
		return nil, err
	}
	out := make([]int, a.Count)
	for i := range out {
		b := data[i*stride:]
		switch size {
		case 1:
			out[i] = int(b[0])
		case 2:
			out[i] = int(binary.LittleEndian.Uint16(b))
		default:
			out[i] = int(binary.LittleEndian.Uint32(b))
		}
	}
	return out, nil
}
