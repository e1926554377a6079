package input

import "math"

// Orbiter receives camera gestures.
type Orbiter interface {
	Rotate(dYaw, dPitch float64)
	Pan(dx, dy float64)
	Zoom(factor float64)
}

// ZoomStep is the distance factor per wheel notch toward the target.
const ZoomStep = 0.95

// OrbitMapper turns mouse events into orbit gestures: left drag rotates,
// right or middle drag pans, the wheel zooms. A full viewport-height drag
// rotates one full turn.
type OrbitMapper struct {
	held uint8
}

// Apply feeds e to o. viewHeight is the height of the view in the same
// units as the mouse coordinates. It reports whether e was a gesture.
func (m *OrbitMapper) Apply(e Event, viewHeight int, o Orbiter) bool {
	switch e.Type {
	case EventMouseDown:
		if m.held == 0 {
			m.held = e.Button
		}
		return false
	case EventMouseUp:
		if e.Button == m.held {
			m.held = 0
		}
		return false
	case EventMouseWheel:
		if e.WheelY == 0 {
			return false
		}
		o.Zoom(math.Pow(ZoomStep, e.WheelY))
		return true
	case EventMouseMove:
		if m.held == 0 || viewHeight <= 0 || (e.RelX == 0 && e.RelY == 0) {
			return false
		}
		h := float64(viewHeight)
		dx, dy := float64(e.RelX)/h, float64(e.RelY)/h
		switch m.held {
		case ButtonLeft:
			o.Rotate(-2*math.Pi*dx, 2*math.Pi*dy)
		case ButtonRight, ButtonMiddle:
			o.Pan(dx, dy)
		default:
			return false
		}
		return true
	}
	return false
}

// Dragging reports whether a mouse button is held.
func (m *OrbitMapper) Dragging() bool {
	return m.held != 0
}
