// Package material implements the reflectance model shared by the rasterizer
// and the path tracer.
//
// Materials live in a Table as tagged-variant Nodes addressed by ID. Leaf
// kinds are Lambert, GGX, Phong, Glass, Emission and Mirror; Add, Mix and
// Scale combine child nodes and Virtual selects one child at shading time.
// Evaluation switches on Node.Kind; there is no interface dispatch on the hot
// path.
//
// Direction conventions: n is the unit shading normal on the side of wo, wo
// points from the surface towards the viewer (or previous path vertex) and wi
// points from the surface towards the light (or next path vertex). BRDF
// values exclude the cosine term.
package material

import (
	"errors"
	"fmt"

	"github.com/taigrr/prism/pkg/math3d"
)

// ErrInvalidNode reports a node that references a missing child or carries
// out-of-range parameters.
var ErrInvalidNode = errors.New("material: invalid node")

// ID indexes a node in a Table.
type ID int32

// None is the ID of no material.
const None ID = -1

// Kind discriminates a Node.
type Kind uint8

const (
	KindLambert Kind = iota
	KindGGX
	KindPhong
	KindGlass
	KindEmission
	KindMirror
	KindAdd
	KindMix
	KindScale
	KindVirtual
)

var kindNames = [...]string{"lambert", "ggx", "phong", "glass", "emission", "mirror", "add", "mix", "scale", "virtual"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Node is one material expression. Which fields matter depends on Kind:
//
//	Lambert   Color
//	GGX       Color (F0), Roughness
//	Phong     Color, Exponent
//	Glass     Color (tint), IOR, Dispersion
//	Emission  Color, Strength
//	Mirror    Color
//	Add       A, B
//	Mix       A, B, Amount (0 selects A, 1 selects B)
//	Scale     A, Color (factor)
//	Virtual   Children, selected by Params.Variant
type Node struct {
	Kind Kind

	Color      Input
	Roughness  float64
	Exponent   float64
	IOR        float64
	Dispersion float64
	Strength   float64
	Amount     float64

	A, B     ID
	Children []ID
}

// Lambert returns a diffuse node.
func Lambert(albedo Input) Node {
	return Node{Kind: KindLambert, Color: albedo}
}

// GGX returns a Cook-Torrance microfacet node with normal-incidence
// reflectance f0 and perceptual roughness in (0, 1].
func GGX(f0 Input, roughness float64) Node {
	return Node{Kind: KindGGX, Color: f0, Roughness: roughness}
}

// Phong returns a normalized cosine-power specular lobe.
func Phong(specular Input, exponent float64) Node {
	return Node{Kind: KindPhong, Color: specular, Exponent: exponent}
}

// Glass returns a smooth dielectric. A positive dispersion is the Cauchy B
// coefficient in µm² that spreads the index across the RGB channels.
func Glass(tint Input, ior, dispersion float64) Node {
	return Node{Kind: KindGlass, Color: tint, IOR: ior, Dispersion: dispersion}
}

// Emission returns a one-sided emitter of radiance color*strength.
func Emission(color Input, strength float64) Node {
	return Node{Kind: KindEmission, Color: color, Strength: strength}
}

// Mirror returns a perfect specular reflector.
func Mirror(color Input) Node {
	return Node{Kind: KindMirror, Color: color}
}

// AddOf returns the sum of two materials.
func AddOf(a, b ID) Node {
	return Node{Kind: KindAdd, A: a, B: b}
}

// MixOf returns (1-t)*a + t*b.
func MixOf(a, b ID, t float64) Node {
	return Node{Kind: KindMix, A: a, B: b, Amount: t}
}

// ScaleOf returns a scaled by k.
func ScaleOf(a ID, k Input) Node {
	return Node{Kind: KindScale, A: a, Color: k}
}

// Virtual returns a node that forwards to children[Params.Variant].
func Virtual(children ...ID) Node {
	return Node{Kind: KindVirtual, Children: children}
}

// Table stores material nodes and the textures they sample. A node may only
// reference nodes added before it, so every table is acyclic.
type Table struct {
	nodes    []Node
	textures []*Texture
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Len returns the number of nodes.
func (t *Table) Len() int {
	return len(t.nodes)
}

// Node returns node id.
func (t *Table) Node(id ID) *Node {
	return &t.nodes[id]
}

// AddTexture registers a texture and returns its index for TextureInput.
func (t *Table) AddTexture(tex *Texture) int {
	t.textures = append(t.textures, tex)
	return len(t.textures) - 1
}

// Add validates n and appends it.
func (t *Table) Add(n Node) (ID, error) {
	if err := t.validate(n); err != nil {
		return None, fmt.Errorf("add %s node: %w", n.Kind, err)
	}
	t.nodes = append(t.nodes, n)
	return ID(len(t.nodes) - 1), nil
}

// MustAdd is Add for statically known nodes; it panics on error.
func (t *Table) MustAdd(n Node) ID {
	id, err := t.Add(n)
	if err != nil {
		panic(err)
	}
	return id
}

// Valid reports whether id names a node.
func (t *Table) Valid(id ID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

func (t *Table) validate(n Node) error {
	if err := t.validateInput(n.Color); err != nil {
		return err
	}
	switch n.Kind {
	case KindLambert, KindMirror:
	case KindGGX:
		if n.Roughness <= 0 || n.Roughness > 1 {
			return fmt.Errorf("roughness %v outside (0, 1]: %w", n.Roughness, ErrInvalidNode)
		}
	case KindPhong:
		if n.Exponent < 0 {
			return fmt.Errorf("negative exponent %v: %w", n.Exponent, ErrInvalidNode)
		}
	case KindGlass:
		if n.IOR <= 0 || n.Dispersion < 0 {
			return fmt.Errorf("ior %v dispersion %v: %w", n.IOR, n.Dispersion, ErrInvalidNode)
		}
	case KindEmission:
		if n.Strength < 0 {
			return fmt.Errorf("negative strength %v: %w", n.Strength, ErrInvalidNode)
		}
	case KindAdd, KindMix:
		if !t.Valid(n.A) || !t.Valid(n.B) {
			return fmt.Errorf("children %d, %d: %w", n.A, n.B, ErrInvalidNode)
		}
		if n.Kind == KindMix && (n.Amount < 0 || n.Amount > 1) {
			return fmt.Errorf("mix amount %v outside [0, 1]: %w", n.Amount, ErrInvalidNode)
		}
	case KindScale:
		if !t.Valid(n.A) {
			return fmt.Errorf("child %d: %w", n.A, ErrInvalidNode)
		}
	case KindVirtual:
		if len(n.Children) == 0 {
			return fmt.Errorf("virtual node without children: %w", ErrInvalidNode)
		}
		for _, c := range n.Children {
			if !t.Valid(c) {
				return fmt.Errorf("child %d: %w", c, ErrInvalidNode)
			}
		}
	default:
		return fmt.Errorf("unknown kind %d: %w", n.Kind, ErrInvalidNode)
	}
	return nil
}

func (t *Table) validateInput(in Input) error {
	if in.Kind == InputTexture && (in.Texture < 0 || in.Texture >= len(t.textures)) {
		return fmt.Errorf("texture %d not registered: %w", in.Texture, ErrInvalidNode)
	}
	return nil
}

// IsEmissive reports whether id can emit light for some variant.
func (t *Table) IsEmissive(id ID) bool {
	n := &t.nodes[id]
	switch n.Kind {
	case KindEmission:
		return n.Strength > 0
	case KindAdd, KindMix:
		return t.IsEmissive(n.A) || t.IsEmissive(n.B)
	case KindScale:
		return t.IsEmissive(n.A)
	case KindVirtual:
		for _, c := range n.Children {
			if t.IsEmissive(c) {
				return true
			}
		}
	}
	return false
}

// resolve follows Virtual nodes to the node selected by p.
func (t *Table) resolve(id ID, p *Params) (ID, *Node) {
	n := &t.nodes[id]
	for n.Kind == KindVirtual {
		v := 0
		if p != nil {
			v = p.Variant
		}
		if v < 0 || v >= len(n.Children) {
			v = 0
		}
		id = n.Children[v]
		n = &t.nodes[id]
	}
	return id, n
}

func lerp3(a, b math3d.Vec3, t float64) math3d.Vec3 {
	return a.Scale(1 - t).Add(b.Scale(t))
}
