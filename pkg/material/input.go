package material

import "github.com/taigrr/prism/pkg/math3d"

// Params are the per-hit shading parameters bound before evaluation.
type Params struct {
	Position math3d.Vec3
	TexCoord math3d.Vec2
	Color    math3d.Vec3 // interpolated vertex color, white when absent
	Variant  int         // selects the child of Virtual nodes
}

// DefaultParams returns parameters with a white vertex color.
func DefaultParams() Params {
	return Params{Color: math3d.Splat3(1)}
}

// InputKind discriminates an Input.
type InputKind uint8

const (
	// InputConstant yields Value.
	InputConstant InputKind = iota
	// InputVertexColor yields Params.Color times Value.
	InputVertexColor
	// InputTexture yields the texture sample at Params.TexCoord times Value.
	InputTexture
	// InputChecker alternates Value and Alt on a unit grid in world space
	// scaled by Scale.
	InputChecker
)

// Input is a color-valued leaf expression of a material node.
type Input struct {
	Kind    InputKind
	Value   math3d.Vec3
	Alt     math3d.Vec3
	Scale   float64
	Texture int
}

// Const returns a constant color.
func Const(c math3d.Vec3) Input {
	return Input{Kind: InputConstant, Value: c}
}

// Gray returns a constant gray level.
func Gray(v float64) Input {
	return Const(math3d.Splat3(v))
}

// VertexColor returns the interpolated vertex color tinted by tint.
func VertexColor(tint math3d.Vec3) Input {
	return Input{Kind: InputVertexColor, Value: tint}
}

// TextureInput returns a lookup into a texture registered with
// Table.AddTexture, tinted by tint.
func TextureInput(texture int, tint math3d.Vec3) Input {
	return Input{Kind: InputTexture, Texture: texture, Value: tint}
}

// Checker returns a world-space 3D checkerboard of cells of size 1/scale.
func Checker(a, b math3d.Vec3, scale float64) Input {
	return Input{Kind: InputChecker, Value: a, Alt: b, Scale: scale}
}

// Eval evaluates in against the bound parameters.
func (t *Table) Eval(in Input, p *Params) math3d.Vec3 {
	switch in.Kind {
	case InputVertexColor:
		return p.Color.Mul(in.Value)
	case InputTexture:
		return t.textures[in.Texture].Sample(p.TexCoord.X, p.TexCoord.Y).Mul(in.Value)
	case InputChecker:
		c := p.Position.Scale(in.Scale).Floor()
		if (int(c.X)+int(c.Y)+int(c.Z))&1 == 0 {
			return in.Value
		}
		return in.Alt
	default:
		return in.Value
	}
}
