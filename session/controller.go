// Package session coordinates one image at a time through selection,
// inversion, inspection and export.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/soypat/invertify"
	"github.com/soypat/invertify/codec"
	"github.com/soypat/invertify/filters"
	"github.com/soypat/invertify/viewer"
)

// Phase is the processing state of a [Controller].
type Phase uint8

const (
	PhaseEmpty Phase = iota
	PhaseProcessing
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseProcessing:
		return "processing"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// ImageKind selects which of the two held images is shown.
type ImageKind uint8

const (
	KindOriginal ImageKind = iota
	KindInverted
)

func (k ImageKind) String() string {
	switch k {
	case KindOriginal:
		return "Original Image"
	case KindInverted:
		return "Inverted Image"
	default:
		return fmt.Sprintf("ImageKind(%d)", uint8(k))
	}
}

var (
	ErrNotReady = errors.New("no processed image")
	ErrBusy     = errors.New("image still processing")
)

// Config configures a [Controller]. Zero fields take their defaults.
type Config struct {
	Policy   Policy
	Encode   codec.Options
	Limits   viewer.Limits
	Inverter filters.Inverter
	Logger   zerolog.Logger
}

// Controller owns the selected file, its processed result and the viewer
// session. Methods are safe for concurrent use, but the [viewer.Session]
// returned by Viewer must only be driven from one goroutine.
type Controller struct {
	policy   Policy
	encode   codec.Options
	inverter filters.Inverter
	log      zerolog.Logger

	mu     sync.Mutex
	gen    uint64
	phase  Phase
	err    error
	name   string
	size   int64
	format string
	done   chan struct{}
	// Buffers and grids of the current generation.
	original *Buffer
	inverted *Buffer
	srcGrid  *invertify.PixelGrid
	invGrid  *invertify.PixelGrid
	viewer   *viewer.Session
	kind     invertify.ControlEnum[ImageKind]
	// stale counts discarded results of superseded generations.
	stale int
}

// NewController returns an empty controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Policy.MaxBytes == 0 && cfg.Policy.MIMETypes == nil {
		cfg.Policy = DefaultPolicy()
	}
	if cfg.Policy.MaxPixels <= 0 {
		cfg.Policy.MaxPixels = codec.DefaultMaxPixels
	}
	if cfg.Encode == (codec.Options{}) {
		cfg.Encode = codec.DefaultOptions()
	}
	if cfg.Limits == (viewer.Limits{}) {
		cfg.Limits = viewer.DefaultLimits()
	}
	if cfg.Inverter == nil {
		cfg.Inverter = filters.CPUInverter{}
	}
	vs, err := viewer.NewSession(cfg.Limits)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		policy:   cfg.Policy,
		encode:   cfg.Encode,
		inverter: cfg.Inverter,
		log:      cfg.Logger.With().Str("component", "session").Logger(),
		done:     closedChan(),
		viewer:   vs,
	}
	c.kind = invertify.ControlEnum[ImageKind]{
		Name:        "View",
		Description: "Image shown in the magnified view",
		Value:       KindInverted,
		ValidValues: []ImageKind{KindOriginal, KindInverted},
		OnChange: func(k ImageKind) error {
			if c.viewer.State().IsOpen() {
				return c.viewer.SetTitle(k.String())
			}
			return nil
		},
	}
	return c, nil
}

// Controls exposes the viewed image kind followed by the viewer controls.
func (c *Controller) Controls() []invertify.Control {
	return append([]invertify.Control{&c.kind}, c.viewer.Controls()...)
}

// Select validates f and starts processing it in the background. A file
// that fails validation leaves the current state untouched and the error is
// recorded and returned. Otherwise any previous image is released, the
// viewer is closed and results of an in-flight job are discarded when it
// completes.
func (c *Controller) Select(f File) error {
	if err := c.policy.Check(f); err != nil {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		c.log.Warn().Err(err).Str("file", f.Name).Str("mime", f.MIMEType).Int64("size", f.Size).Msg("file rejected")
		return err
	}
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.releaseLocked()
	c.viewer.Close()
	c.phase = PhaseProcessing
	c.err = nil
	c.name = f.Name
	c.size = f.Size
	c.format = ""
	c.original = NewBuffer(f.Data)
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	c.log.Info().Str("file", f.Name).Int64("size", f.Size).Uint64("generation", gen).Msg("processing image")
	go c.process(gen, f.Data, done)
	return nil
}

func (c *Controller) process(gen uint64, data []byte, done chan struct{}) {
	defer close(done)
	res, err := Process(data, c.policy.MaxPixels, c.inverter, c.encode)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.stale++
		if res != nil {
			res.Inverted.Release()
		}
		c.log.Debug().Uint64("generation", gen).Uint64("current", c.gen).Msg("discarding stale result")
		return
	}
	if err != nil {
		c.releaseLocked()
		c.phase = PhaseFailed
		c.err = err
		c.log.Error().Err(err).Str("file", c.name).Msg("processing failed")
		return
	}
	c.format = res.Format
	c.srcGrid = res.Original
	c.invGrid = res.InvertedGrid
	c.inverted = res.Inverted
	c.phase = PhaseReady
	c.log.Info().Str("file", c.name).Str("format", res.Format).
		Int("width", res.Original.Width).Int("height", res.Original.Height).
		Int("bytes", res.Inverted.Len()).Msg("image inverted")
}

// Result is the output of [Process].
type Result struct {
	// Format is the detected source encoding, such as "jpeg".
	Format       string
	Original     *invertify.PixelGrid
	InvertedGrid *invertify.PixelGrid
	// Inverted holds the encoded inverted image.
	Inverted *Buffer
}

// Process decodes data of at most maxPixels pixels, inverts it with inv and
// encodes the result with opts.
func Process(data []byte, maxPixels int64, inv filters.Inverter, opts codec.Options) (*Result, error) {
	src, err := codec.Decode(data, maxPixels)
	if err != nil {
		return nil, err
	}
	info, err := codec.Inspect(data)
	if err != nil {
		return nil, err
	}
	dst, err := inv.Invert(src)
	if err != nil {
		return nil, &invertify.EncodeError{Message: invertify.MsgProcess, Err: err}
	}
	out, err := codec.Encode(dst, opts)
	if err != nil {
		return nil, err
	}
	return &Result{Format: info.Format, Original: src, InvertedGrid: dst, Inverted: NewBuffer(out)}, nil
}

// Wait blocks until no job is in flight or ctx is done. It returns the
// error of the current generation, if any.
func (c *Controller) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		done, gen := c.done, c.gen
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}
		c.mu.Lock()
		if gen == c.gen && c.phase != PhaseProcessing {
			err := c.err
			c.mu.Unlock()
			return err
		}
		c.mu.Unlock()
	}
}

// Reset releases every held buffer, closes the viewer and returns to the
// state before any selection. An in-flight job is discarded when it completes.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.releaseLocked()
	c.viewer.Close()
	c.phase = PhaseEmpty
	c.err = nil
	c.name, c.size, c.format = "", 0, ""
	c.done = closedChan()
	c.log.Debug().Uint64("generation", c.gen).Msg("reset")
}

// Snapshot is a consistent view of the controller for display.
type Snapshot struct {
	Phase      Phase
	Generation uint64
	Name       string
	Size       int64
	// Format is the detected source encoding once processed.
	Format string
	Err    error
	// Original and Inverted are nil until the phase is PhaseReady.
	Original *invertify.PixelGrid
	Inverted *invertify.PixelGrid
}

// Message returns the user facing error message, or "" without error.
func (s Snapshot) Message() string {
	if s.Err == nil {
		return ""
	}
	return invertify.UserMessage(s.Err)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Phase:      c.phase,
		Generation: c.gen,
		Name:       c.name,
		Size:       c.size,
		Err:        c.err,
	}
	if c.phase == PhaseReady {
		s.Format = c.format
		s.Original = c.srcGrid
		s.Inverted = c.invGrid
	}
	return s
}

// Viewer returns the viewer session. It stays valid for the controller lifetime.
func (c *Controller) Viewer() *viewer.Session { return c.viewer }

// OpenViewer opens the magnified view on the image of the given kind.
func (c *Controller) OpenViewer(kind ImageKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	c.kind.Value = kind
	c.viewer.Open(kind.String())
	return nil
}

// SetViewKind switches the magnified view between the original and the
// inverted image keeping zoom and pan.
func (c *Controller) SetViewKind(kind ImageKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kind.ChangeValue(kind)
}

// ViewImage returns the image shown in the magnified view, nil when the view is closed.
func (c *Controller) ViewImage() *invertify.PixelGrid {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.viewer.State().IsOpen() || c.phase != PhaseReady {
		return nil
	}
	if c.kind.Value == KindOriginal {
		return c.srcGrid
	}
	return c.invGrid
}

// CloseViewer closes the magnified view.
func (c *Controller) CloseViewer() {
	c.mu.Lock()
	c.viewer.Close()
	c.mu.Unlock()
}

// Download returns the export file name and a copy of the encoded inverted image.
func (c *Controller) Download() (name string, data []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return "", nil, err
	}
	b, err := c.inverted.Bytes()
	if err != nil {
		return "", nil, err
	}
	return DownloadName(c.name), bytes.Clone(b), nil
}

func (c *Controller) readyLocked() error {
	switch c.phase {
	case PhaseReady:
		return nil
	case PhaseProcessing:
		return ErrBusy
	default:
		return ErrNotReady
	}
}

func (c *Controller) releaseLocked() {
	c.original.Release()
	c.inverted.Release()
	c.original, c.inverted = nil, nil
	c.srcGrid, c.invGrid = nil, nil
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
