package scene

import (
	"fmt"

	"github.com/taigrr/prism/pkg/geom"
	"github.com/taigrr/prism/pkg/material"
	"github.com/taigrr/prism/pkg/math3d"
	"github.com/taigrr/prism/pkg/models"
)

// minRoughness keeps imported mirror-like metals out of the degenerate
// GGX limit.
const minRoughness = 0.02

// dielectricF0 is the normal-incidence reflectance GLTF assumes for
// non-metals.
const dielectricF0 = 0.04

// FromMesh converts the faces of mesh into triangles, adding one material
// node per mesh material to mats. Faces without a material get a grey
// Lambert.
func FromMesh(mesh *models.Mesh, mats *material.Table) ([]geom.Triangle, error) {
	ids := make([]material.ID, len(mesh.Materials))
	for i := range mesh.Materials {
		id, err := addPBR(mats, &mesh.Materials[i])
		if err != nil {
			return nil, fmt.Errorf("mesh %s material %q: %w", mesh.Name, mesh.Materials[i].Name, err)
		}
		ids[i] = id
	}
	fallback := material.None

	tris := make([]geom.Triangle, len(mesh.Faces))
	for i, f := range mesh.Faces {
		id := material.None
		if f.Material >= 0 && f.Material < len(ids) {
			id = ids[f.Material]
		}
		if id == material.None {
			if fallback == material.None {
				var err error
				if fallback, err = mats.Add(material.Lambert(material.Gray(0.7))); err != nil {
					return nil, err
				}
			}
			id = fallback
		}
		tris[i] = mesh.Triangle(i, int32(id))
	}
	return tris, nil
}

// addPBR maps a metallic-roughness material onto the node algebra:
// Mix(Add(Lambert, GGX(0.04)), GGX(base), metallic), plus an emission term
// when the material glows.
func addPBR(mats *material.Table, pm *models.Material) (material.ID, error) {
	tint := math3d.V3(pm.BaseColor[0], pm.BaseColor[1], pm.BaseColor[2])
	base := material.Const(tint)
	if pm.BaseMap != nil {
		tex := material.TextureFromImage(pm.BaseMap)
		base = material.TextureInput(mats.AddTexture(tex), tint)
	}
	rough := max(pm.Roughness, minRoughness)
	metallic := math3d.Clamp01(pm.Metallic)

	nodes := 0
	add := func(n material.Node) (material.ID, error) {
		nodes++
		return mats.Add(n)
	}

	diffuse, err := add(material.Lambert(base))
	if err != nil {
		return material.None, err
	}
	coat, err := add(material.GGX(material.Gray(dielectricF0), min(rough, 1)))
	if err != nil {
		return material.None, err
	}
	dielectric, err := add(material.AddOf(diffuse, coat))
	if err != nil {
		return material.None, err
	}

	id := dielectric
	if metallic > 0 {
		metal, err := add(material.GGX(base, min(rough, 1)))
		if err != nil {
			return material.None, err
		}
		if id, err = add(material.MixOf(dielectric, metal, metallic)); err != nil {
			return material.None, err
		}
	}

	if !pm.Emissive.IsZero() {
		glow, err := add(material.Emission(material.Const(pm.Emissive), 1))
		if err != nil {
			return material.None, err
		}
		if id, err = add(material.AddOf(id, glow)); err != nil {
			return material.None, err
		}
	}
	logger.Debugf("material %q: %d nodes", pm.Name, nodes)
	return id, nil
}
