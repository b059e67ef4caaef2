package filters

import (
	"fmt"

	"github.com/soypat/invertify"
)

// NewInvertedPerPixel creates a filter that inverts RGBA8888 color samples
// and leaves the alpha channel untouched.
func NewInvertedPerPixel() *PointFilter {
	return &PointFilter{
		In:  invertify.ShapeRGBA8888,
		Out: invertify.ShapeRGBA8888,
		Fn: func(dst, src []byte) {
			for i := 0; i+3 < len(src); i += 4 {
				dst[i] = 255 - src[i]
				dst[i+1] = 255 - src[i+1]
				dst[i+2] = 255 - src[i+2]
				dst[i+3] = src[i+3]
			}
		},
	}
}

// Invert returns a new grid with the R, G and B samples of g replaced by
// 255-value. Alpha is copied as is and g is never modified.
// g must satisfy [invertify.PixelGrid.Validate].
func Invert(g *invertify.PixelGrid) *invertify.PixelGrid {
	out := &invertify.PixelGrid{Width: g.Width, Height: g.Height, Pix: make([]uint8, len(g.Pix))}
	_, err := NewInvertedPerPixel().Process(out.Pix, g, nil)
	if err != nil {
		panic("invert: " + err.Error()) // Unreachable for valid grids.
	}
	return out
}

// Inverter is an inversion engine backend.
type Inverter interface {
	// Invert returns a new inverted grid that does not alias g.
	Invert(g *invertify.PixelGrid) (*invertify.PixelGrid, error)
}

// CPUInverter runs [Invert] on the calling goroutine.
type CPUInverter struct{}

var _ Inverter = CPUInverter{}

// Invert implements [Inverter].
func (CPUInverter) Invert(g *invertify.PixelGrid) (*invertify.PixelGrid, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invert: %w", err)
	}
	return Invert(g), nil
}

// FallbackInverter inverts with Primary and retries with Secondary when
// Primary fails. OnFallback, when set, sees every Primary error.
type FallbackInverter struct {
	Primary    Inverter
	Secondary  Inverter
	OnFallback func(err error)
}

var _ Inverter = FallbackInverter{}

// Invert implements [Inverter].
func (fb FallbackInverter) Invert(g *invertify.PixelGrid) (*invertify.PixelGrid, error) {
	out, err := fb.Primary.Invert(g)
	if err == nil {
		return out, nil
	}
	if fb.OnFallback != nil {
		fb.OnFallback(err)
	}
	return fb.Secondary.Invert(g)
}
