// Package codec converts between encoded image bytes and [invertify.PixelGrid].
//
// Decoding accepts whatever the registered decoders understand (PNG, JPEG,
// GIF, BMP and WebP) regardless of the declared MIME type, the same way an
// image element sniffs its content. Encoding always produces PNG.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/soypat/invertify"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	FormatPNG = "png"
	// DefaultMaxPixels bounds decoded images at 50 megapixels, 200 MB of samples.
	DefaultMaxPixels = 50_000_000
	// DefaultQuality mirrors the quality hint of the export step. PNG output is
	// lossless so the value is validated and otherwise ignored.
	DefaultQuality = 0.9
)

var (
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrTooManyPixels     = errors.New("image has too many pixels")
)

// Options configures [Encode].
type Options struct {
	Format  string
	Quality float64
}

// DefaultOptions returns PNG at [DefaultQuality].
func DefaultOptions() Options {
	return Options{Format: FormatPNG, Quality: DefaultQuality}
}

// Info is what the header of encoded image data declares.
type Info struct {
	Format string
	Dims   invertify.Dims
}

// Inspect reads the header of data without decoding pixels.
func Inspect(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, decodeError(err)
	}
	return Info{Format: format, Dims: invertify.RGBADims(cfg.Width, cfg.Height)}, nil
}

// Decode decodes data into a new non-premultiplied RGBA grid. Animated GIFs
// yield their first frame. Images declaring more than maxPixels pixels are
// rejected from their header, before pixel memory is allocated. maxPixels <= 0
// selects [DefaultMaxPixels]. Any failure is returned as [invertify.DecodeError].
func Decode(data []byte, maxPixels int64) (*invertify.PixelGrid, error) {
	if len(data) == 0 {
		return nil, decodeError(errors.New("no image data"))
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	info, err := Inspect(data)
	if err != nil {
		return nil, err
	}
	if err := info.Dims.Validate(); err != nil {
		return nil, decodeError(err)
	}
	if n := info.Dims.NumPixels(); n > maxPixels {
		return nil, decodeError(fmt.Errorf("%w: %dx%d exceeds %d", ErrTooManyPixels, info.Dims.Width, info.Dims.Height, maxPixels))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(err)
	}
	grid, err := FromImage(img)
	if err != nil {
		return nil, decodeError(err)
	}
	return grid, nil
}

// FromImage copies img into a new grid with its origin at 0,0.
func FromImage(img image.Image) (*invertify.PixelGrid, error) {
	b := img.Bounds()
	grid, err := invertify.NewPixelGrid(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	if src, ok := img.(*image.NRGBA); ok {
		rowLen := b.Dx() * 4
		for y := 0; y < b.Dy(); y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(grid.Pix[y*rowLen:(y+1)*rowLen], src.Pix[off:off+rowLen])
		}
		return grid, nil
	}
	draw.Draw(grid.NRGBA(), grid.Bounds(), img, b.Min, draw.Src)
	return grid, nil
}

// Encode encodes grid according to opts. Failures are returned as
// [invertify.EncodeError].
func Encode(grid *invertify.PixelGrid, opts Options) ([]byte, error) {
	if opts.Format != FormatPNG {
		return nil, encodeError(fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format))
	}
	if !(opts.Quality > 0 && opts.Quality <= 1) {
		return nil, encodeError(fmt.Errorf("quality %v outside (0,1]", opts.Quality))
	}
	if err := grid.Validate(); err != nil {
		return nil, encodeError(err)
	}
	var buf bytes.Buffer
	buf.Grow(len(grid.Pix) / 2)
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, grid.NRGBA()); err != nil {
		return nil, encodeError(err)
	}
	return buf.Bytes(), nil
}

func decodeError(err error) error {
	return &invertify.DecodeError{Message: invertify.MsgDecode, Err: err}
}

func encodeError(err error) error {
	return &invertify.EncodeError{Message: invertify.MsgProcess, Err: err}
}
