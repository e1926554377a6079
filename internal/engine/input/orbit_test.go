package input

import (
	"math"
	"testing"
)

type recorder struct {
	yaw, pitch float64
	panX, panY float64
	zoom       []float64
}

func (r *recorder) Rotate(dYaw, dPitch float64) { r.yaw += dYaw; r.pitch += dPitch }
func (r *recorder) Pan(dx, dy float64)          { r.panX += dx; r.panY += dy }
func (r *recorder) Zoom(f float64)              { r.zoom = append(r.zoom, f) }

func TestOrbitMapperRotate(t *testing.T) {
	var m OrbitMapper
	r := &recorder{}

	if m.Apply(Event{Type: EventMouseMove, RelX: 10}, 500, r) {
		t.Error("move without a held button counted as a gesture")
	}
	m.Apply(Event{Type: EventMouseDown, Button: ButtonLeft}, 500, r)
	if !m.Dragging() {
		t.Fatal("not dragging after mouse down")
	}
	m.Apply(Event{Type: EventMouseMove, RelX: 250, RelY: -125}, 500, r)

	if math.Abs(r.yaw+math.Pi) > 1e-9 || math.Abs(r.pitch+math.Pi/2) > 1e-9 {
		t.Errorf("rotate = (%v, %v), want (-pi, -pi/2)", r.yaw, r.pitch)
	}
	m.Apply(Event{Type: EventMouseUp, Button: ButtonLeft}, 500, r)
	if m.Dragging() {
		t.Error("still dragging after mouse up")
	}
}

func TestOrbitMapperPan(t *testing.T) {
	for _, b := range []uint8{ButtonRight, ButtonMiddle} {
		var m OrbitMapper
		r := &recorder{}
		m.Apply(Event{Type: EventMouseDown, Button: b}, 400, r)
		// A second button does not change the gesture.
		m.Apply(Event{Type: EventMouseDown, Button: ButtonLeft}, 400, r)
		m.Apply(Event{Type: EventMouseMove, RelX: 100, RelY: 40}, 400, r)
		if r.panX != 0.25 || r.panY != 0.1 || r.yaw != 0 {
			t.Errorf("button %d: pan = (%v, %v) yaw %v", b, r.panX, r.panY, r.yaw)
		}
	}
}

func TestOrbitMapperWheel(t *testing.T) {
	var m OrbitMapper
	r := &recorder{}
	m.Apply(Event{Type: EventMouseWheel, WheelY: 1}, 500, r)
	m.Apply(Event{Type: EventMouseWheel, WheelY: -2}, 500, r)
	m.Apply(Event{Type: EventMouseWheel}, 500, r)

	if len(r.zoom) != 2 {
		t.Fatalf("zoom calls = %v", r.zoom)
	}
	if r.zoom[0] != ZoomStep || math.Abs(r.zoom[1]-1/(ZoomStep*ZoomStep)) > 1e-12 {
		t.Errorf("zoom factors = %v", r.zoom)
	}
}
