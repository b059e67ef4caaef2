// Package viewer implements the zoom and pan state of the magnified image view
// and the gesture bookkeeping that drives it.
//
// A [Session] is a small state machine:
//
//	Closed --Open--> Idle --BeginDrag--> Panning --EndDrag--> Idle
//	                 Idle|Panning --BeginPinch--> Pinching --EndPinch--> Idle
//	any open state --Close--> Closed
//
// Zoom changes through buttons, wheel and pinch share the same limits. Panning
// is only permitted while the zoom level exceeds 1, and a pinch always
// cancels an active pan.
package viewer

import (
	"errors"
	"fmt"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/invertify"
)

// State is the current gesture state of a [Session].
type State uint8

const (
	StateClosed State = iota
	StateIdle
	StatePanning
	StatePinching
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateIdle:
		return "idle"
	case StatePanning:
		return "panning"
	case StatePinching:
		return "pinching"
	default:
		return "State(" + fmt.Sprint(uint8(s)) + ")"
	}
}

// IsOpen reports whether the state is one of the open sub-states.
func (s State) IsOpen() bool { return s != StateClosed }

var ErrInvalidTransition = errors.New("invalid viewer transition")

// Limits configures the zoom range and the factor applied per zoom step.
type Limits struct {
	MinZoom float32
	MaxZoom float32
	Step    float32
}

// DefaultLimits returns a [0.5, 5] zoom range with a 1.5 step.
func DefaultLimits() Limits {
	return Limits{MinZoom: 0.5, MaxZoom: 5, Step: 1.5}
}

// Validate checks that the range contains 1 and that the step grows the zoom.
func (l Limits) Validate() error {
	switch {
	case !(l.MinZoom > 0):
		return fmt.Errorf("min zoom %v must be positive", l.MinZoom)
	case l.MinZoom > 1 || l.MaxZoom < 1:
		return fmt.Errorf("zoom range %v..%v must contain 1", l.MinZoom, l.MaxZoom)
	case !(l.Step > 1):
		return fmt.Errorf("zoom step %v must be greater than 1", l.Step)
	}
	return nil
}

// Transform is the derived rendering transform of a session: the image is
// scaled by Scale and then translated by Translate in scaled units, which
// moves it Translate*Scale screen pixels.
type Transform struct {
	Scale     float32
	Translate ms2.Vec
}

// Offset returns the screen space displacement of the image center.
func (t Transform) Offset() ms2.Vec { return ms2.Scale(t.Scale, t.Translate) }

// Session holds the zoom, pan and gesture state of one open magnified view.
// The zero value is not usable, create sessions with [NewSession].
// Methods must be called from a single goroutine.
type Session struct {
	state  State
	title  string
	limits Limits
	zoom   invertify.ControlOrdered[float32]
	pan    ms2.Vec
	// anchor is pointer minus pan at drag start. Only valid while panning.
	anchor ms2.Vec
	// Pinch baseline. Only valid while pinching.
	pinchDist float32
	pinchZoom float32
}

// NewSession returns a closed session using limits.
func NewSession(limits Limits) (*Session, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	s := &Session{limits: limits}
	s.zoom = invertify.ControlOrdered[float32]{
		Name:        "Zoom",
		Description: "Magnification of the inspected image",
		Value:       1,
		Min:         limits.MinZoom,
		Max:         limits.MaxZoom,
		OnChange: func(z float32) error {
			if !s.state.IsOpen() {
				return s.invalid("set zoom")
			}
			if z <= 1 {
				s.pan = ms2.Vec{}
			}
			return nil
		},
	}
	return s, nil
}

// Controls exposes the zoom level as an editable control.
func (s *Session) Controls() []invertify.Control {
	return []invertify.Control{&s.zoom}
}

func (s *Session) State() State     { return s.state }
func (s *Session) Title() string    { return s.title }
func (s *Session) Limits() Limits   { return s.limits }
func (s *Session) Zoom() float32    { return s.zoom.Value }
func (s *Session) Pan() ms2.Vec     { return s.pan }
func (s *Session) IsDragging() bool { return s.state == StatePanning }

// DragAnchor returns the drag anchor and whether a drag is active.
func (s *Session) DragAnchor() (ms2.Vec, bool) {
	return s.anchor, s.state == StatePanning
}

// PinchBaseline returns the distance and zoom recorded at pinch start and
// whether a pinch is active.
func (s *Session) PinchBaseline() (distance, zoom float32, ok bool) {
	return s.pinchDist, s.pinchZoom, s.state == StatePinching
}

// CanZoomIn reports whether ZoomIn would change the zoom level.
func (s *Session) CanZoomIn() bool { return s.state.IsOpen() && s.zoom.Value < s.limits.MaxZoom }

// CanZoomOut reports whether ZoomOut would change the zoom level.
func (s *Session) CanZoomOut() bool { return s.state.IsOpen() && s.zoom.Value > s.limits.MinZoom }

// CanPan reports whether content exceeds the viewport so a drag may start.
func (s *Session) CanPan() bool { return s.state.IsOpen() && s.zoom.Value > 1 }

// Fits reports whether the image is constrained to the viewport.
func (s *Session) Fits() bool { return s.zoom.Value <= 1 }

// Transform returns the rendering transform for the current state.
func (s *Session) Transform() Transform {
	z := s.zoom.Value
	return Transform{Scale: z, Translate: ms2.Scale(1/z, s.pan)}
}

// Open shows the view titled title with zoom 1 and no pan. Opening an already
// open session replaces its content and resets the view.
func (s *Session) Open(title string) {
	s.clearGesture()
	s.state = StateIdle
	s.title = title
	s.zoom.Value = 1
	s.pan = ms2.Vec{}
}

// SetTitle swaps the displayed content of an open view keeping zoom and pan.
func (s *Session) SetTitle(title string) error {
	if !s.state.IsOpen() {
		return s.invalid("set title")
	}
	s.title = title
	return nil
}

// Close returns the session to [StateClosed]. Closing a closed session is a no-op.
func (s *Session) Close() {
	s.clearGesture()
	s.state = StateClosed
	s.title = ""
	s.zoom.Value = 1
	s.pan = ms2.Vec{}
}

// ZoomIn multiplies the zoom level by the step, clamped to the limits.
func (s *Session) ZoomIn() error {
	if !s.state.IsOpen() {
		return s.invalid("zoom in")
	}
	s.setZoom(s.zoom.Value * s.limits.Step)
	return nil
}

// ZoomOut divides the zoom level by the step, clamped to the limits.
func (s *Session) ZoomOut() error {
	if !s.state.IsOpen() {
		return s.invalid("zoom out")
	}
	s.setZoom(s.zoom.Value / s.limits.Step)
	return nil
}

// ResetView restores zoom 1 and no pan without changing the gesture state.
func (s *Session) ResetView() error {
	if !s.state.IsOpen() {
		return s.invalid("reset view")
	}
	s.zoom.Value = 1
	s.pan = ms2.Vec{}
	return nil
}

// Wheel zooms in for a negative direction and out for a positive one.
// A zero direction is ignored.
func (s *Session) Wheel(direction float64) error {
	switch {
	case !s.state.IsOpen():
		return s.invalid("wheel")
	case direction < 0:
		return s.ZoomIn()
	case direction > 0:
		return s.ZoomOut()
	}
	return nil
}

// BeginDrag starts panning at pointer. It requires an idle session zoomed past 1.
func (s *Session) BeginDrag(pointer ms2.Vec) error {
	if s.state != StateIdle {
		return s.invalid("begin drag")
	}
	if s.zoom.Value <= 1 {
		return fmt.Errorf("%w: begin drag at zoom %v, content fits the viewport", ErrInvalidTransition, s.zoom.Value)
	}
	s.anchor = ms2.Sub(pointer, s.pan)
	s.state = StatePanning
	return nil
}

// DragTo moves the pan so the anchored point follows pointer. Pan is not
// clamped to the image bounds. When the zoom has dropped to 1 or below since
// the drag started the pan stays at rest.
func (s *Session) DragTo(pointer ms2.Vec) error {
	if s.state != StatePanning {
		return s.invalid("drag")
	}
	if s.zoom.Value <= 1 {
		return nil
	}
	s.pan = ms2.Sub(pointer, s.anchor)
	return nil
}

// EndDrag finishes a pan.
func (s *Session) EndDrag() error {
	if s.state != StatePanning {
		return s.invalid("end drag")
	}
	s.anchor = ms2.Vec{}
	s.state = StateIdle
	return nil
}

// BeginPinch records the two finger baseline and cancels any active pan.
func (s *Session) BeginPinch(p0, p1 ms2.Vec) error {
	if s.state != StateIdle && s.state != StatePanning {
		return s.invalid("begin pinch")
	}
	s.anchor = ms2.Vec{}
	s.pinchDist = ms2.Norm(ms2.Sub(p1, p0))
	s.pinchZoom = s.zoom.Value
	s.state = StatePinching
	return nil
}

// PinchTo scales the baseline zoom by the ratio of the current finger
// distance to the baseline distance. A zero baseline distance leaves the zoom
// untouched.
func (s *Session) PinchTo(p0, p1 ms2.Vec) error {
	if s.state != StatePinching {
		return s.invalid("pinch")
	}
	if s.pinchDist <= 0 {
		return nil
	}
	scale := ms2.Norm(ms2.Sub(p1, p0)) / s.pinchDist
	s.setZoom(s.pinchZoom * scale)
	return nil
}

// EndPinch finishes a pinch and clears its baseline.
func (s *Session) EndPinch() error {
	if s.state != StatePinching {
		return s.invalid("end pinch")
	}
	s.pinchDist, s.pinchZoom = 0, 0
	s.state = StateIdle
	return nil
}

// setZoom must only be called on an open session.
func (s *Session) setZoom(z float32) {
	if err := s.zoom.ChangeValue(s.zoom.Clamp(z)); err != nil {
		panic("viewer: " + err.Error())
	}
}

func (s *Session) clearGesture() {
	s.anchor = ms2.Vec{}
	s.pinchDist, s.pinchZoom = 0, 0
}

func (s *Session) invalid(op string) error {
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, op, s.state)
}
