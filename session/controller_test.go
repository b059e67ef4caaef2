package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/soypat/invertify"
	"github.com/soypat/invertify/codec"
	"github.com/soypat/invertify/filters"
	"github.com/soypat/invertify/viewer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pngFile(t *testing.T, name string, data []byte) File {
	return File{Data: data, MIMEType: "image/png", Name: name, Size: int64(len(data))}
}

func newController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	cfg.Logger = zerolog.New(zerolog.NewTestWriter(t))
	c, err := NewController(cfg)
	require.NoError(t, err)
	return c
}

func waitReady(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
	require.Equal(t, PhaseReady, c.Snapshot().Phase)
}

func TestControllerEndToEnd(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{10, 20, 30, 255})
	src.SetNRGBA(1, 0, color.NRGBA{200, 100, 50, 128})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	c := newController(t, Config{})
	require.NoError(t, c.Select(pngFile(t, "pixels.png", buf.Bytes())))
	waitReady(t, c)

	name, data, err := c.Download()
	require.NoError(t, err)
	assert.Equal(t, "pixels_inverted.png", name)

	got, err := codec.Decode(data, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint8{245, 235, 225, 255, 55, 155, 205, 128}, got.Pix)

	snap := c.Snapshot()
	assert.Equal(t, "pixels.png", snap.Name)
	assert.Empty(t, snap.Message())
	require.NotNil(t, snap.Original)
	require.NotNil(t, snap.Inverted)
	assert.Equal(t, color.NRGBA{245, 235, 225, 255}, snap.Inverted.At(0, 0))
	assert.Equal(t, color.NRGBA{10, 20, 30, 255}, snap.Original.At(0, 0))

	assert.Equal(t, "png", snap.Format)
	orig, err := c.original.Bytes()
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), orig)
}

func TestControllerRejectsKeepState(t *testing.T) {
	c := newController(t, Config{})
	require.NoError(t, c.Select(pngFile(t, "a.png", pngBytes(t, 3, 3))))
	waitReady(t, c)
	before := c.Snapshot()

	big := File{MIMEType: "image/png", Name: "big.png", Size: 6 * 1024 * 1024}
	err := c.Select(big)
	require.ErrorIs(t, err, invertify.ErrTooLarge)

	err = c.Select(File{Data: []byte("hi"), MIMEType: "text/plain", Name: "a.txt", Size: 2})
	require.ErrorIs(t, err, invertify.ErrUnsupportedType)

	after := c.Snapshot()
	assert.Equal(t, before.Generation, after.Generation)
	assert.Equal(t, PhaseReady, after.Phase)
	assert.Equal(t, "a.png", after.Name)
	assert.Equal(t, invertify.MsgUnsupportedType, after.Message())
	_, _, err = c.Download()
	assert.NoError(t, err, "previous result still downloadable")
}

func TestControllerDecodeFailure(t *testing.T) {
	c := newController(t, Config{})
	require.NoError(t, c.Select(pngFile(t, "a.png", pngBytes(t, 2, 2))))
	waitReady(t, c)

	require.NoError(t, c.Select(pngFile(t, "broken.png", []byte("definitely not a png"))))
	err := c.Wait(context.Background())
	var derr *invertify.DecodeError
	require.ErrorAs(t, err, &derr)

	snap := c.Snapshot()
	assert.Equal(t, PhaseFailed, snap.Phase)
	assert.Equal(t, invertify.MsgDecode, snap.Message())
	assert.Nil(t, snap.Original)
	assert.Empty(t, snap.Format)
	assert.Nil(t, c.original)
	_, _, err = c.Download()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestControllerPixelLimit(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxPixels = 15
	c := newController(t, Config{Policy: policy})

	require.NoError(t, c.Select(pngFile(t, "wide.png", pngBytes(t, 4, 4))))
	err := c.Wait(context.Background())
	var derr *invertify.DecodeError
	require.ErrorAs(t, err, &derr)
	assert.ErrorIs(t, err, codec.ErrTooManyPixels)
	assert.Equal(t, invertify.MsgDecode, c.Snapshot().Message())

	require.NoError(t, c.Select(pngFile(t, "small.png", pngBytes(t, 5, 3))))
	waitReady(t, c)
}

type failingInverter struct{}

func (failingInverter) Invert(*invertify.PixelGrid) (*invertify.PixelGrid, error) {
	return nil, errors.New("device lost")
}

func TestControllerInvertFailure(t *testing.T) {
	c := newController(t, Config{Inverter: failingInverter{}})
	require.NoError(t, c.Select(pngFile(t, "a.png", pngBytes(t, 2, 2))))
	err := c.Wait(context.Background())
	var eerr *invertify.EncodeError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, invertify.MsgProcess, c.Snapshot().Message())
}

// gatedInverter blocks the first Invert call until release is closed.
type gatedInverter struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGatedInverter() *gatedInverter {
	return &gatedInverter{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedInverter) Invert(src *invertify.PixelGrid) (*invertify.PixelGrid, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.started)
		<-g.release
	}
	return filters.CPUInverter{}.Invert(src)
}

func TestControllerDiscardsStaleResult(t *testing.T) {
	gate := newGatedInverter()
	c := newController(t, Config{Inverter: gate})

	require.NoError(t, c.Select(pngFile(t, "first.png", pngBytes(t, 4, 4))))
	<-gate.started
	assert.Equal(t, PhaseProcessing, c.Snapshot().Phase)
	_, _, err := c.Download()
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, c.Select(pngFile(t, "second.png", pngBytes(t, 1, 1))))
	waitReady(t, c)

	close(gate.release)
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.stale == 1
	}, 5*time.Second, 5*time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, "second.png", snap.Name)
	assert.Equal(t, image.Rect(0, 0, 1, 1), snap.Inverted.Bounds())
	name, _, err := c.Download()
	require.NoError(t, err)
	assert.Equal(t, "second_inverted.png", name)
}

func TestControllerReleasesBuffers(t *testing.T) {
	c := newController(t, Config{})
	require.NoError(t, c.Select(pngFile(t, "a.png", pngBytes(t, 2, 2))))
	waitReady(t, c)
	require.NoError(t, c.OpenViewer(KindInverted))

	c.mu.Lock()
	orig, inv := c.original, c.inverted
	c.mu.Unlock()

	require.NoError(t, c.Select(pngFile(t, "b.png", pngBytes(t, 2, 2))))
	assert.True(t, orig.Released())
	assert.True(t, inv.Released())
	assert.Equal(t, viewer.StateClosed, c.Viewer().State(), "new selection closes the viewer")
	waitReady(t, c)

	c.mu.Lock()
	orig, inv = c.original, c.inverted
	c.mu.Unlock()
	c.Reset()
	assert.True(t, orig.Released())
	assert.True(t, inv.Released())

	snap := c.Snapshot()
	assert.Equal(t, PhaseEmpty, snap.Phase)
	assert.Empty(t, snap.Name)
	assert.Nil(t, snap.Inverted)
	assert.NoError(t, c.Wait(context.Background()))
}

func TestControllerViewer(t *testing.T) {
	c := newController(t, Config{})
	assert.ErrorIs(t, c.OpenViewer(KindOriginal), ErrNotReady)
	assert.Nil(t, c.ViewImage())

	require.NoError(t, c.Select(pngFile(t, "a.png", pngBytes(t, 3, 2))))
	waitReady(t, c)

	require.NoError(t, c.OpenViewer(KindOriginal))
	vs := c.Viewer()
	assert.Equal(t, "Original Image", vs.Title())
	require.NoError(t, vs.ZoomIn())
	snap := c.Snapshot()
	assert.Same(t, snap.Original, c.ViewImage())

	require.NoError(t, c.SetViewKind(KindInverted))
	assert.Equal(t, "Inverted Image", vs.Title())
	assert.Equal(t, float32(1.5), vs.Zoom(), "switching images keeps the zoom")
	assert.Same(t, snap.Inverted, c.ViewImage())

	c.CloseViewer()
	assert.Equal(t, viewer.StateClosed, vs.State())
	assert.Nil(t, c.ViewImage())

	ctrls := c.Controls()
	require.Len(t, ctrls, 2)
	name, _ := ctrls[0].Describe()
	assert.Equal(t, "View", name)
	assert.Error(t, ctrls[0].ChangeValue(ImageKind(9)))
}

func TestControllerWaitContext(t *testing.T) {
	gate := newGatedInverter()
	c := newController(t, Config{Inverter: gate})
	require.NoError(t, c.Select(pngFile(t, "a.png", pngBytes(t, 2, 2))))
	<-gate.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)

	close(gate.release)
	waitReady(t, c)
}

func TestNewControllerInvalidLimits(t *testing.T) {
	_, err := NewController(Config{Limits: viewer.Limits{MinZoom: 2, MaxZoom: 5, Step: 1.5}})
	assert.Error(t, err)
}
