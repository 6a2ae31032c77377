// Package film holds the linear-RGB render targets: the per-frame Image the
// rasterizer writes and the Accumulator the path tracer averages into.
package film

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	uv "github.com/charmbracelet/ultraviolet"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/taigrr/prism/pkg/math3d"
)

// Image is a row-major linear-RGB image. Row 0 is the top of the frame.
type Image struct {
	Width    int
	Height   int
	Pixels   []math3d.Vec3
	Exposure float64 // multiplier applied when encoding to sRGB
}

// NewImage creates a black image.
func NewImage(width, height int) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Pixels:   make([]math3d.Vec3, width*height),
		Exposure: 1,
	}
}

// Clear fills the image with c.
func (img *Image) Clear(c math3d.Vec3) {
	for i := range img.Pixels {
		img.Pixels[i] = c
	}
}

// Set writes pixel (x, y); out of range writes are dropped.
func (img *Image) Set(x, y int, c math3d.Vec3) {
	if x < 0 || x >= img.Width || y < 0 || y >= img.Height {
		return
	}
	img.Pixels[y*img.Width+x] = c
}

// At returns pixel (x, y), or black out of range.
func (img *Image) At(x, y int) math3d.Vec3 {
	if x < 0 || x >= img.Width || y < 0 || y >= img.Height {
		return math3d.Vec3{}
	}
	return img.Pixels[y*img.Width+x]
}

// encode maps a linear color to clamped 8-bit sRGB.
func (img *Image) encode(c math3d.Vec3) color.RGBA {
	c = c.Scale(img.Exposure)
	r, g, b := colorful.LinearRgb(c.X, c.Y, c.Z).Clamped().RGB255()
	return color.RGBA{r, g, b, 255}
}

// ToImage encodes the image to 8-bit sRGB.
func (img *Image) ToImage() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := range img.Height {
		for x := range img.Width {
			out.SetRGBA(x, y, img.encode(img.Pixels[y*img.Width+x]))
		}
	}
	return out
}

// SavePNG writes the sRGB encoding of the image to path.
func (img *Image) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img.ToImage()); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// Draw paints the image on a terminal screen with one upper-half-block cell
// per two image rows: the foreground is the top pixel and the background
// the bottom one. The image height should be twice the area height.
func (img *Image) Draw(scr uv.Screen, area uv.Rectangle) {
	for row := area.Min.Y; row < area.Max.Y; row++ {
		top := (row - area.Min.Y) * 2
		if top >= img.Height {
			break
		}
		for col := area.Min.X; col < area.Max.X; col++ {
			x := col - area.Min.X
			if x >= img.Width {
				break
			}
			scr.SetCell(col, row, &uv.Cell{
				Content: "▀",
				Width:   1,
				Style: uv.Style{
					Fg: img.encode(img.At(x, top)),
					Bg: img.encode(img.At(x, top+1)),
				},
			})
		}
	}
}
