package viewer

import (
	"image"
	"image/color"
	"testing"

	"github.com/soypat/geometry/ms2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutFitsLargeImage(t *testing.T) {
	s := newOpen(t)
	vp := image.Rect(0, 0, 200, 100)

	r := Layout(vp, image.Pt(400, 400), s)
	assert.Equal(t, 90, r.Dx())
	assert.Equal(t, 90, r.Dy())
	assert.True(t, r.In(vp))
	assert.Equal(t, image.Pt(100, 50), r.Min.Add(r.Max).Div(2))
}

func TestLayoutDoesNotEnlargeSmallImage(t *testing.T) {
	s := newOpen(t)
	r := Layout(image.Rect(0, 0, 200, 100), image.Pt(20, 10), s)
	assert.Equal(t, image.Rect(90, 45, 110, 55), r)

	require.NoError(t, s.ZoomOut())
	r = Layout(image.Rect(0, 0, 200, 100), image.Pt(30, 30), s)
	assert.Equal(t, 20, r.Dx())
}

func TestLayoutZoomedNaturalSizeAndPan(t *testing.T) {
	s := newOpen(t)
	setZoom(t, s, 2)
	require.NoError(t, s.BeginDrag(ms2.Vec{}))
	require.NoError(t, s.DragTo(ms2.Vec{X: 30, Y: -10}))

	vp := image.Rect(0, 0, 200, 100)
	r := Layout(vp, image.Pt(400, 400), s)
	assert.Equal(t, 800, r.Dx(), "natural size times zoom, overflowing the viewport")
	assert.Equal(t, image.Pt(130, 40), r.Min.Add(r.Max).Div(2))
}

func TestFit(t *testing.T) {
	panel := image.Rect(100, 0, 300, 100)
	assert.Equal(t, image.Rect(155, 5, 245, 95), Fit(panel, image.Pt(400, 400)))
	assert.Equal(t, image.Rect(190, 45, 210, 55), Fit(panel, image.Pt(20, 10)))
	assert.True(t, Fit(panel, image.Point{}).Empty())
}

func TestLayoutDegenerate(t *testing.T) {
	s := newOpen(t)
	assert.True(t, Layout(image.Rect(0, 0, 10, 10), image.Pt(0, 5), s).Empty())
	assert.True(t, Layout(image.Rectangle{}, image.Pt(5, 5), s).Empty())
}

func TestRender(t *testing.T) {
	s := newOpen(t)
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	red := color.NRGBA{R: 255, A: 255}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			src.SetNRGBA(x, y, red)
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, 20, 20))
	setZoom(t, s, 5)

	r := Render(dst, src, s, color.Black)
	assert.Equal(t, image.Rect(5, 5, 15, 15), r)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, dst.RGBAAt(10, 10))
	assert.Equal(t, color.RGBA{A: 255}, dst.RGBAAt(0, 0))

	s.Close()
	r = Render(dst, src, s, color.Black)
	assert.True(t, r.Empty())
	assert.Equal(t, color.RGBA{A: 255}, dst.RGBAAt(10, 10))
}
