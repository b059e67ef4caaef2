package invertify

import (
	"errors"
	"fmt"
	"image"
	"io"
)

// Image is raw pixel memory read through [io.ReaderAt]. Rows are Dims().Stride
// bytes apart.
type Image interface {
	Dims() Dims
	// ReadAt reads raw pixel bytes. Callers prefer [ImageBuffered.Buffer]
	// when the image provides it.
	io.ReaderAt
}

// ImageBuffered is an [Image] whose pixels live in memory.
type ImageBuffered interface {
	Image
	// Buffer returns the pixel memory or nil when it is not resident.
	Buffer() []byte
}

// Filter transforms whole images or a region of them.
type Filter interface {
	// ShapeIO returns the output and input pixel shapes.
	ShapeIO() (output, input Shape)
	// Process writes the filtered pixels of src, or of roi within src, to dst
	// and returns the layout written. A nil dst filters src's own buffer in
	// place, see [DestBuffer].
	Process(dstOrNilForInPlace []byte, src Image, roi *image.Rectangle) (Dims, error)
	Controls() []Control
}

// Shape is the memory layout of one pixel.
type Shape int

const (
	shapeUndefined Shape = iota
	ShapeRGB888
	ShapeRGBA8888
)

func (sh Shape) String() string {
	switch sh {
	case ShapeRGB888:
		return "rgb888"
	case ShapeRGBA8888:
		return "rgba8888"
	default:
		return "undefined"
	}
}

// BytesPerPixel returns 0 for an undefined shape.
func (sh Shape) BytesPerPixel() int {
	switch sh {
	case ShapeRGB888:
		return 3
	case ShapeRGBA8888:
		return 4
	default:
		return 0
	}
}

// Dims is the layout of an image in memory.
type Dims struct {
	Width  int
	Height int
	Stride int
	Shape  Shape
}

// RGBADims returns the layout of a tightly packed RGBA8888 image, the layout
// of every [PixelGrid].
func RGBADims(width, height int) Dims {
	return Dims{Width: width, Height: height, Stride: width * 4, Shape: ShapeRGBA8888}
}

func (d Dims) Validate() error {
	switch {
	case d.Width <= 0 || d.Height <= 0:
		return errEmptyImage
	case d.Shape.BytesPerPixel() == 0:
		return fmt.Errorf("bad pixel shape %d", int(d.Shape))
	case d.SizeRow() > d.Stride:
		return fmt.Errorf("stride %d shorter than row of %d bytes", d.Stride, d.SizeRow())
	}
	return nil
}

// NumPixels returns Width*Height without overflowing int.
func (d Dims) NumPixels() int64 {
	return int64(d.Width) * int64(d.Height)
}

// Size returns the bytes spanned from the first pixel to the last. The
// padding after the last row is not included.
func (d Dims) Size() int64 {
	if d.Width <= 0 || d.Height <= 0 {
		return 0
	}
	return int64(d.Height-1)*int64(d.Stride) + int64(d.SizeRow())
}

// SizeRow returns the pixel bytes of one row, padding excluded.
func (d Dims) SizeRow() int {
	return d.Width * d.Shape.BytesPerPixel()
}

// Bounds returns the rectangle covered by the image.
func (d Dims) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.Width, d.Height)
}

// ImageRow returns row y of img. Buffered images return a slice of their own
// memory, others are read into scratch which must hold a full row.
func ImageRow(scratch []byte, img Image, y int) ([]byte, error) {
	d := img.Dims()
	if y < 0 || y >= d.Height {
		return nil, fmt.Errorf("row %d outside 0..%d", y, d.Height)
	}
	n := d.SizeRow()
	off := int64(y) * int64(d.Stride)
	if b, ok := img.(ImageBuffered); ok {
		if buf := b.Buffer(); buf != nil {
			if off+int64(n) > int64(len(buf)) {
				return nil, io.ErrUnexpectedEOF
			}
			return buf[off : off+int64(n)], nil
		}
	}
	if len(scratch) < n {
		return nil, io.ErrShortBuffer
	}
	got, err := img.ReadAt(scratch[:n], off)
	if got < n {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return scratch[:n], nil
}

// CheckROI reports whether roi is a non-empty region inside an image of d.
func CheckROI(d Dims, roi image.Rectangle) error {
	if roi.Empty() {
		return errors.New("empty ROI")
	}
	if !roi.In(d.Bounds()) {
		return fmt.Errorf("ROI %v outside image %v", roi, d.Bounds())
	}
	return nil
}

// DestBuffer returns the buffer a filter writes out to. A nil dst selects
// the buffer of src for in-place processing, which requires a buffered src of
// the output shape. Otherwise dst must hold out.Size() bytes.
func DestBuffer(dst []byte, out Dims, src Image) ([]byte, error) {
	if dst != nil {
		if int64(len(dst)) < out.Size() {
			return nil, fmt.Errorf("destination holds %d bytes, want %d", len(dst), out.Size())
		}
		return dst, nil
	}
	sd := src.Dims()
	if sd.Shape != out.Shape {
		return nil, fmt.Errorf("in-place output %s over %s source", out.Shape, sd.Shape)
	}
	b, ok := src.(ImageBuffered)
	if !ok || b.Buffer() == nil {
		return nil, errors.New("in-place source is not buffered")
	}
	if buf := b.Buffer(); int64(len(buf)) >= sd.Size() {
		return buf, nil
	}
	return nil, errors.New("in-place source buffer shorter than its image")
}

var errEmptyImage = errors.New("empty image")
