package filters

import (
	"bytes"
	"errors"
	"image"
	"io"
	"math/rand"
	"testing"

	"github.com/soypat/invertify"
)

func TestInvertKnownPixels(t *testing.T) {
	src, err := invertify.NewPixelGridFromPix(2, 1, []uint8{
		10, 20, 30, 255,
		200, 100, 50, 128,
	})
	if err != nil {
		t.Fatal(err)
	}
	got := Invert(src)
	want := []uint8{
		245, 235, 225, 255,
		55, 155, 205, 128,
	}
	if !bytes.Equal(got.Pix, want) {
		t.Fatalf("got %v, want %v", got.Pix, want)
	}
	if got.Width != 2 || got.Height != 1 {
		t.Fatalf("dims changed: %dx%d", got.Width, got.Height)
	}
}

func TestInvertProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 20; n++ {
		w, h := 1+rng.Intn(40), 1+rng.Intn(40)
		src, _ := invertify.NewPixelGrid(w, h)
		rng.Read(src.Pix)
		orig := src.Clone()

		inv := Invert(src)
		if !bytes.Equal(src.Pix, orig.Pix) {
			t.Fatal("input modified")
		}
		if &inv.Pix[0] == &src.Pix[0] {
			t.Fatal("result aliases input")
		}
		for i := 0; i < len(src.Pix); i += 4 {
			for c := 0; c < 3; c++ {
				if inv.Pix[i+c] != 255-src.Pix[i+c] {
					t.Fatalf("%dx%d sample %d channel %d: got %d, want %d", w, h, i/4, c, inv.Pix[i+c], 255-src.Pix[i+c])
				}
			}
			if inv.Pix[i+3] != src.Pix[i+3] {
				t.Fatalf("%dx%d sample %d alpha changed: got %d, want %d", w, h, i/4, inv.Pix[i+3], src.Pix[i+3])
			}
		}
		if back := Invert(inv); !bytes.Equal(back.Pix, src.Pix) {
			t.Fatalf("%dx%d: invert is not an involution", w, h)
		}
	}
}

func TestCPUInverterRejectsBadGrid(t *testing.T) {
	_, err := CPUInverter{}.Invert(&invertify.PixelGrid{Width: 2, Height: 2, Pix: make([]uint8, 3)})
	if err == nil {
		t.Fatal("expected error for short sample buffer")
	}
	_, err = CPUInverter{}.Invert(&invertify.PixelGrid{})
	if err == nil {
		t.Fatal("expected error for empty grid")
	}
}

func TestPointFilterROI(t *testing.T) {
	src, _ := invertify.NewPixelGrid(4, 3)
	for i := range src.Pix {
		src.Pix[i] = uint8(i)
	}
	roi := image.Rect(1, 1, 3, 3)
	dst := make([]byte, roi.Dx()*roi.Dy()*4)
	dims, err := NewInvertedPerPixel().Process(dst, src, &roi)
	if err != nil {
		t.Fatal(err)
	}
	if dims.Width != 2 || dims.Height != 2 || dims.Stride != 8 {
		t.Fatalf("unexpected dims %+v", dims)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			want := src.NRGBAAt(x+1, y+1)
			off := (y*2 + x) * 4
			if dst[off] != 255-want.R || dst[off+3] != want.A {
				t.Errorf("roi pixel %d,%d: got %v, source %v", x, y, dst[off:off+4], want)
			}
		}
	}
}

func TestPointFilterInPlace(t *testing.T) {
	src, _ := invertify.NewPixelGridFromPix(1, 1, []uint8{0, 128, 255, 7})
	if _, err := NewInvertedPerPixel().Process(nil, src, nil); err != nil {
		t.Fatal(err)
	}
	if want := []uint8{255, 127, 0, 7}; !bytes.Equal(src.Pix, want) {
		t.Fatalf("got %v, want %v", src.Pix, want)
	}
}

func TestPointFilterShapeMismatch(t *testing.T) {
	src, _ := invertify.NewPixelGrid(2, 2)
	rgb := &PointFilter{In: invertify.ShapeRGB888, Out: invertify.ShapeRGB888, Fn: func(dst, src []byte) {}}
	_, err := rgb.Process(make([]byte, 12), src, nil)
	if !errors.Is(err, errShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}

func TestPointFilterRejects(t *testing.T) {
	src, _ := invertify.NewPixelGrid(4, 3)
	f := NewInvertedPerPixel()
	tests := []struct {
		name string
		dst  []byte
		roi  *image.Rectangle
	}{
		{name: "roi outside", dst: make([]byte, 64), roi: &image.Rectangle{Min: image.Pt(2, 2), Max: image.Pt(5, 3)}},
		{name: "negative roi", dst: make([]byte, 64), roi: &image.Rectangle{Min: image.Pt(-1, 0), Max: image.Pt(2, 2)}},
		{name: "empty roi", dst: make([]byte, 64), roi: &image.Rectangle{Min: image.Pt(1, 1), Max: image.Pt(1, 3)}},
		{name: "in-place roi", roi: &image.Rectangle{Max: image.Pt(2, 2)}},
		{name: "short destination", dst: make([]byte, 47)},
	}
	for _, tt := range tests {
		if _, err := f.Process(tt.dst, src, tt.roi); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
	if _, err := f.Process(nil, unbuffered{src}, nil); err == nil {
		t.Error("in-place over unbuffered image accepted")
	}
}

// unbuffered hides the Buffer method so Process falls back to ReadAt.
type unbuffered struct{ g *invertify.PixelGrid }

func (u unbuffered) Dims() invertify.Dims                    { return u.g.Dims() }
func (u unbuffered) ReadAt(p []byte, off int64) (int, error) { return u.g.ReadAt(p, off) }

var _ io.ReaderAt = unbuffered{}

func TestPointFilterReadAtFallback(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	src, _ := invertify.NewPixelGrid(5, 4)
	rng.Read(src.Pix)
	dst := make([]byte, len(src.Pix))
	if _, err := NewInvertedPerPixel().Process(dst, unbuffered{src}, nil); err != nil {
		t.Fatal(err)
	}
	if want := Invert(src).Pix; !bytes.Equal(dst, want) {
		t.Fatal("ReadAt path differs from buffered path")
	}
}

type stubInverter struct {
	err   error
	calls int
}

func (s *stubInverter) Invert(g *invertify.PixelGrid) (*invertify.PixelGrid, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return Invert(g), nil
}

func TestFallbackInverter(t *testing.T) {
	src, _ := invertify.NewPixelGridFromPix(1, 1, []uint8{0, 100, 255, 9})
	want := []uint8{255, 155, 0, 9}

	primary := &stubInverter{err: ErrGridTooLarge}
	secondary := &stubInverter{}
	var seen []error
	fb := FallbackInverter{Primary: primary, Secondary: secondary, OnFallback: func(err error) { seen = append(seen, err) }}
	got, err := fb.Invert(src)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Pix, want) {
		t.Fatalf("got %v, want %v", got.Pix, want)
	}
	if len(seen) != 1 || !errors.Is(seen[0], ErrGridTooLarge) {
		t.Fatalf("fallback errors %v", seen)
	}

	primary.err = nil
	if _, err := fb.Invert(src); err != nil {
		t.Fatal(err)
	}
	if primary.calls != 2 || secondary.calls != 1 {
		t.Fatalf("calls primary %d secondary %d, want 2 and 1", primary.calls, secondary.calls)
	}

	fb.Secondary = &stubInverter{err: errNilPixelFunc}
	primary.err = ErrGridTooLarge
	if _, err := fb.Invert(src); !errors.Is(err, errNilPixelFunc) {
		t.Fatalf("secondary error not returned: %v", err)
	}
}
