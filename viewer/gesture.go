package viewer

import "github.com/soypat/geometry/ms2"

// Gestures translates raw pointer input into [Session] transitions. Events
// that do not apply to the current state are dropped, so callers can forward
// every pointer event of the view unconditionally.
type Gestures struct {
	S *Session
}

// MouseDown starts a pan when the content exceeds the viewport.
func (g Gestures) MouseDown(p ms2.Vec) {
	if g.S.State() == StateIdle && g.S.CanPan() {
		_ = g.S.BeginDrag(p)
	}
}

// MouseMove follows an active pan.
func (g Gestures) MouseMove(p ms2.Vec) {
	if g.S.State() == StatePanning {
		_ = g.S.DragTo(p)
	}
}

// MouseUp ends an active pan.
func (g Gestures) MouseUp() {
	if g.S.State() == StatePanning {
		_ = g.S.EndDrag()
	}
}

// TouchStart handles a change in the set of active touches. One touch
// starts a pan, two touches start a pinch. Other counts are ignored.
func (g Gestures) TouchStart(touches []ms2.Vec) {
	switch len(touches) {
	case 1:
		if g.S.State() == StateIdle && g.S.CanPan() {
			_ = g.S.BeginDrag(touches[0])
		}
	case 2:
		if g.S.State() == StatePinching {
			_ = g.S.EndPinch()
		}
		_ = g.S.BeginPinch(touches[0], touches[1])
	}
}

// TouchMove follows a single touch pan or a two finger pinch.
func (g Gestures) TouchMove(touches []ms2.Vec) {
	switch {
	case len(touches) == 1 && g.S.State() == StatePanning:
		_ = g.S.DragTo(touches[0])
	case len(touches) == 2 && g.S.State() == StatePinching:
		_ = g.S.PinchTo(touches[0], touches[1])
	}
}

// TouchEnd ends any pan or pinch. Lifting one finger of a pinch ends the
// gesture; the remaining finger does not start a pan until touched again.
func (g Gestures) TouchEnd() {
	switch g.S.State() {
	case StatePanning:
		_ = g.S.EndDrag()
	case StatePinching:
		_ = g.S.EndPinch()
	}
}

// TouchSink receives touch transitions. [Gestures] implements it.
type TouchSink interface {
	TouchStart(touches []ms2.Vec)
	TouchMove(touches []ms2.Vec)
	TouchEnd()
}

// TouchTracker turns the touches polled each frame into [TouchSink] calls.
// A new finger restarts the gesture with every active touch, a lifted finger
// ends it and an unchanged count moves it.
type TouchTracker struct {
	Sink   TouchSink
	active int
}

// Update reports the touches active this frame.
func (t *TouchTracker) Update(touches []ms2.Vec) {
	n := len(touches)
	switch {
	case n > t.active:
		t.Sink.TouchStart(touches)
	case n < t.active:
		t.Sink.TouchEnd()
	case n > 0:
		t.Sink.TouchMove(touches)
	}
	t.active = n
}

// Reset forgets the active touches without notifying Sink.
func (t *TouchTracker) Reset() { t.active = 0 }

// Wheel zooms for a vertical wheel delta in browser convention, where a
// negative delta scrolls up.
func (g Gestures) Wheel(deltaY float64) {
	if g.S.State().IsOpen() {
		_ = g.S.Wheel(deltaY)
	}
}
