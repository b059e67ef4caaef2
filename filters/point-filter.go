package filters

import (
	"errors"
	"fmt"
	"image"

	"github.com/soypat/invertify"
)

var (
	errShapeMismatch = errors.New("pixel shape mismatch")
	errNilPixelFunc  = errors.New("nil PointFunc")
)

// PointFunc maps one row of src pixels to dst. Both hold the same number of
// pixels and may alias.
type PointFunc func(dst, src []byte)

// PointFilter applies Fn row by row. The output has the width and height of
// the region processed and is tightly packed unless filtered in place.
type PointFilter struct {
	In    invertify.Shape
	Out   invertify.Shape
	Fn    PointFunc
	Ctrls []invertify.Control
}

var _ invertify.Filter = (*PointFilter)(nil)

// ShapeIO implements [invertify.Filter].
func (f *PointFilter) ShapeIO() (output, input invertify.Shape) {
	return f.Out, f.In
}

// Controls implements [invertify.Filter].
func (f *PointFilter) Controls() []invertify.Control {
	return f.Ctrls
}

// Process implements [invertify.Filter]. In-place processing covers the whole
// image and keeps the source stride.
func (f *PointFilter) Process(dst []byte, src invertify.Image, roi *image.Rectangle) (invertify.Dims, error) {
	if f.Fn == nil {
		return invertify.Dims{}, errNilPixelFunc
	}
	sd := src.Dims()
	if err := sd.Validate(); err != nil {
		return invertify.Dims{}, err
	}
	if sd.Shape != f.In {
		return invertify.Dims{}, fmt.Errorf("%w: got %s, want %s", errShapeMismatch, sd.Shape, f.In)
	}
	area := sd.Bounds()
	if roi != nil {
		if dst == nil {
			return invertify.Dims{}, errors.New("in-place processing of a region")
		}
		if err := invertify.CheckROI(sd, *roi); err != nil {
			return invertify.Dims{}, err
		}
		area = *roi
	}
	out := invertify.Dims{
		Width:  area.Dx(),
		Height: area.Dy(),
		Stride: area.Dx() * f.Out.BytesPerPixel(),
		Shape:  f.Out,
	}
	if dst == nil {
		out.Stride = sd.Stride
	}
	dst, err := invertify.DestBuffer(dst, out, src)
	if err != nil {
		return invertify.Dims{}, err
	}

	inBPP := f.In.BytesPerPixel()
	outRow := out.SizeRow()
	scratch := make([]byte, sd.SizeRow())
	for y := area.Min.Y; y < area.Max.Y; y++ {
		row, err := invertify.ImageRow(scratch, src, y)
		if err != nil {
			return invertify.Dims{}, fmt.Errorf("row %d: %w", y, err)
		}
		off := (y - area.Min.Y) * out.Stride
		f.Fn(dst[off:off+outRow], row[area.Min.X*inBPP:area.Max.X*inBPP])
	}
	return out, nil
}
