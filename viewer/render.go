package viewer

import (
	"image"
	"image/color"
	"math"

	"github.com/soypat/geometry/ms2"
	"golang.org/x/image/draw"
)

// FitFraction is the share of the viewport a fitted image may cover.
const FitFraction = 0.9

// Layout returns where an image of size img lands inside viewport for the
// current session state. At zoom 1 or below the image is first shrunk to fit
// FitFraction of the viewport (never enlarged), above 1 it starts from its
// natural size. The result is then scaled by the zoom level around the
// viewport center and displaced by the pan offset. The rectangle may extend
// past the viewport.
func Layout(viewport image.Rectangle, img image.Point, s *Session) image.Rectangle {
	if img.X <= 0 || img.Y <= 0 || viewport.Empty() {
		return image.Rectangle{}
	}
	tr := s.Transform()
	base := 1.0
	if s.Fits() {
		base = fitScale(viewport, img)
	}
	return place(viewport, img, base*float64(tr.Scale), tr.Offset())
}

// Fit returns img shrunk to fit FitFraction of viewport and centered in it.
// Images already small enough keep their natural size.
func Fit(viewport image.Rectangle, img image.Point) image.Rectangle {
	if img.X <= 0 || img.Y <= 0 || viewport.Empty() {
		return image.Rectangle{}
	}
	return place(viewport, img, fitScale(viewport, img), ms2.Vec{})
}

func fitScale(viewport image.Rectangle, img image.Point) float64 {
	fx := FitFraction * float64(viewport.Dx()) / float64(img.X)
	fy := FitFraction * float64(viewport.Dy()) / float64(img.Y)
	return math.Min(1, math.Min(fx, fy))
}

func place(viewport image.Rectangle, img image.Point, scale float64, off ms2.Vec) image.Rectangle {
	w := float64(img.X) * scale
	h := float64(img.Y) * scale
	cx := float64(viewport.Min.X) + float64(viewport.Dx())/2 + float64(off.X)
	cy := float64(viewport.Min.Y) + float64(viewport.Dy())/2 + float64(off.Y)
	x0 := int(math.Round(cx - w/2))
	y0 := int(math.Round(cy - h/2))
	return image.Rect(x0, y0, x0+max(1, int(math.Round(w))), y0+max(1, int(math.Round(h))))
}

// Render paints background over dst and draws src placed by [Layout].
// Magnified content uses nearest neighbor sampling so individual pixels stay
// inspectable; reduced content is filtered. It returns the placed rectangle.
func Render(dst draw.Image, src image.Image, s *Session, background color.Color) image.Rectangle {
	vp := dst.Bounds()
	draw.Draw(dst, vp, image.NewUniform(background), image.Point{}, draw.Src)
	if !s.State().IsOpen() {
		return image.Rectangle{}
	}
	sb := src.Bounds()
	r := Layout(vp, sb.Size(), s)
	if r.Empty() || !r.Overlaps(vp) {
		return r
	}
	var scaler draw.Scaler = draw.NearestNeighbor
	if r.Dx() < sb.Dx() {
		scaler = draw.ApproxBiLinear
	}
	scaler.Scale(dst, r, src, sb, draw.Over, nil)
	return r
}
