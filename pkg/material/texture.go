package material

import (
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"math"
	"os"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/taigrr/prism/pkg/math3d"
)

// WrapMode determines how texture coordinates outside [0,1] are handled.
type WrapMode int

const (
	WrapRepeat WrapMode = iota // tile the texture
	WrapClamp                  // clamp to edge
)

// FilterMode determines how texture sampling is performed.
type FilterMode int

const (
	FilterNearest  FilterMode = iota // nearest texel
	FilterBilinear                   // bilinear blend of four texels
)

// Texture is a linear-RGB image sampled by texture inputs.
type Texture struct {
	Width  int
	Height int
	Texels []math3d.Vec3 // row-major, row 0 at the top
	WrapU  WrapMode
	WrapV  WrapMode
	Filter FilterMode
}

// NewTexture creates a black texture.
func NewTexture(width, height int) *Texture {
	return &Texture{
		Width:  width,
		Height: height,
		Texels: make([]math3d.Vec3, width*height),
		Filter: FilterBilinear,
	}
}

// LoadTexture decodes an sRGB image file into a linear texture.
func LoadTexture(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open texture: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode texture %s: %w", path, err)
	}
	return TextureFromImage(img), nil
}

// TextureFromImage converts an sRGB image into a linear texture.
func TextureFromImage(img image.Image) *Texture {
	bounds := img.Bounds()
	tex := NewTexture(bounds.Dx(), bounds.Dy())
	for y := range tex.Height {
		for x := range tex.Width {
			c, ok := colorful.MakeColor(img.At(bounds.Min.X+x, bounds.Min.Y+y))
			if !ok {
				continue // fully transparent
			}
			r, g, b := c.LinearRgb()
			tex.Texels[y*tex.Width+x] = math3d.V3(r, g, b)
		}
	}
	return tex
}

// NewCheckerTexture creates a procedural checkerboard with cells of checkSize
// texels.
func NewCheckerTexture(width, height, checkSize int, a, b math3d.Vec3) *Texture {
	tex := NewTexture(width, height)
	tex.Filter = FilterNearest
	for y := range height {
		for x := range width {
			c := a
			if (x/checkSize+y/checkSize)%2 == 1 {
				c = b
			}
			tex.Texels[y*width+x] = c
		}
	}
	return tex
}

// Texel returns the texel at (x, y), or black out of range.
func (t *Texture) Texel(x, y int) math3d.Vec3 {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return math3d.Vec3{}
	}
	return t.Texels[y*t.Width+x]
}

// Sample returns the filtered color at (u, v); v = 0 is the bottom row.
func (t *Texture) Sample(u, v float64) math3d.Vec3 {
	if t.Width == 0 || t.Height == 0 {
		return math3d.Vec3{}
	}
	u = wrapCoord(u, t.WrapU)
	v = 1 - wrapCoord(v, t.WrapV)

	if t.Filter == FilterNearest {
		x := min(int(u*float64(t.Width)), t.Width-1)
		y := min(int(v*float64(t.Height)), t.Height-1)
		return t.Texel(x, y)
	}

	fx := u*float64(t.Width) - 0.5
	fy := v*float64(t.Height) - 0.5
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	x1 := wrapTexel(x0+1, t.Width, t.WrapU)
	y1 := wrapTexel(y0+1, t.Height, t.WrapV)
	x0 = wrapTexel(x0, t.Width, t.WrapU)
	y0 = wrapTexel(y0, t.Height, t.WrapV)

	top := t.Texel(x0, y0).Lerp(t.Texel(x1, y0), tx)
	bot := t.Texel(x0, y1).Lerp(t.Texel(x1, y1), tx)
	return top.Lerp(bot, ty)
}

func wrapCoord(c float64, mode WrapMode) float64 {
	if mode == WrapClamp {
		return math3d.Clamp01(c)
	}
	return c - math.Floor(c)
}

func wrapTexel(x, size int, mode WrapMode) int {
	if mode == WrapClamp {
		return max(0, min(x, size-1))
	}
	x %= size
	if x < 0 {
		x += size
	}
	return x
}
