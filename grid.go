package invertify

import (
	"fmt"
	"image"
	"image/color"
	"io"
)

// PixelGrid is a decoded raster image stored as non-premultiplied 8-bit
// R,G,B,A samples in row-major order. len(Pix) == Width*Height*4 always holds
// for grids built with [NewPixelGrid] or [NewPixelGridFromPix].
type PixelGrid struct {
	Width  int
	Height int
	Pix    []uint8
}

var (
	_ ImageBuffered = (*PixelGrid)(nil)
	_ image.Image   = (*PixelGrid)(nil)
)

// NewPixelGrid allocates a zeroed (transparent black) grid.
func NewPixelGrid(width, height int) (*PixelGrid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("pixel grid %dx%d: %w", width, height, errEmptyImage)
	}
	return &PixelGrid{Width: width, Height: height, Pix: make([]uint8, width*height*4)}, nil
}

// NewPixelGridFromPix wraps pix without copying. pix must hold exactly
// width*height RGBA samples.
func NewPixelGridFromPix(width, height int, pix []uint8) (*PixelGrid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("pixel grid %dx%d: %w", width, height, errEmptyImage)
	}
	if want := width * height * 4; len(pix) != want {
		return nil, fmt.Errorf("pixel grid %dx%d: got %d samples, want %d", width, height, len(pix), want)
	}
	return &PixelGrid{Width: width, Height: height, Pix: pix}, nil
}

// Dims implements [Image].
func (g *PixelGrid) Dims() Dims {
	return RGBADims(g.Width, g.Height)
}

// Buffer implements [ImageBuffered].
func (g *PixelGrid) Buffer() []byte { return g.Pix }

// ReadAt implements [io.ReaderAt].
func (g *PixelGrid) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= int64(len(g.Pix)) {
		return 0, io.EOF
	}
	n := copy(p, g.Pix[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Validate checks the sample count invariant.
func (g *PixelGrid) Validate() error {
	if err := g.Dims().Validate(); err != nil {
		return err
	}
	if want := g.Width * g.Height * 4; len(g.Pix) != want {
		return fmt.Errorf("pixel grid %dx%d: got %d samples, want %d", g.Width, g.Height, len(g.Pix), want)
	}
	return nil
}

// Clone returns a deep copy of g.
func (g *PixelGrid) Clone() *PixelGrid {
	pix := make([]uint8, len(g.Pix))
	copy(pix, g.Pix)
	return &PixelGrid{Width: g.Width, Height: g.Height, Pix: pix}
}

// NRGBAAt returns the sample at x,y.
func (g *PixelGrid) NRGBAAt(x, y int) color.NRGBA {
	i := (y*g.Width + x) * 4
	s := g.Pix[i : i+4 : i+4]
	return color.NRGBA{R: s[0], G: s[1], B: s[2], A: s[3]}
}

// SetNRGBA sets the sample at x,y.
func (g *PixelGrid) SetNRGBA(x, y int, c color.NRGBA) {
	i := (y*g.Width + x) * 4
	s := g.Pix[i : i+4 : i+4]
	s[0], s[1], s[2], s[3] = c.R, c.G, c.B, c.A
}

// ColorModel implements [image.Image].
func (g *PixelGrid) ColorModel() color.Model { return color.NRGBAModel }

// Bounds implements [image.Image].
func (g *PixelGrid) Bounds() image.Rectangle { return image.Rect(0, 0, g.Width, g.Height) }

// At implements [image.Image].
func (g *PixelGrid) At(x, y int) color.Color {
	if !image.Pt(x, y).In(g.Bounds()) {
		return color.NRGBA{}
	}
	return g.NRGBAAt(x, y)
}

// NRGBA returns an [image.NRGBA] sharing the grid's samples.
func (g *PixelGrid) NRGBA() *image.NRGBA {
	return &image.NRGBA{Pix: g.Pix, Stride: g.Width * 4, Rect: g.Bounds()}
}
