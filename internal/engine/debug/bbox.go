// Package debug builds the preview overlays: the reference grid and the
// annotated bounding box.
package debug

import (
	"fmt"

	"github.com/Faultbox/meshpreview/internal/engine/bounds"
	"github.com/Faultbox/meshpreview/pkg/math"
	"github.com/Faultbox/meshpreview/pkg/scene"
)

// BoundsColor is the edge color of the box.
var BoundsColor = scene.HexColor("#ff6600")

const BoundsOpacity = 0.8

// BBoxEdgeCount is the number of edges of a box outline.
const BBoxEdgeCount = 12

// Axis names a box dimension.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	return [...]string{"X", "Y", "Z"}[a]
}

// Label is a dimension annotation anchored in world space.
type Label struct {
	Axis   Axis
	Anchor math.Vec3
	Value  float64
	Text   string
}

// BoundsOverlay is an edge-only box around the model with one dimension
// label per axis.
type BoundsOverlay struct {
	Center  math.Vec3
	Size    math.Vec3
	Color   scene.Color
	Opacity float64
	Labels  [3]Label
}

// NewBoundsOverlay builds the overlay for m. It returns nil before the
// first successful load.
func NewBoundsOverlay(m *bounds.ModelMetrics) *BoundsOverlay {
	if m == nil {
		return nil
	}
	c, mn, mx := m.Center, m.Min, m.Max
	return &BoundsOverlay{
		Center:  c,
		Size:    m.Size,
		Color:   BoundsColor,
		Opacity: BoundsOpacity,
		Labels: [3]Label{
			// bottom edge, front face
			{Axis: AxisX, Anchor: math.V(c.X, mn.Y, mx.Z), Value: m.Size.X, Text: FormatDimension(m.Size.X)},
			// right edge, front face
			{Axis: AxisY, Anchor: math.V(mx.X, c.Y, mx.Z), Value: m.Size.Y, Text: FormatDimension(m.Size.Y)},
			// bottom edge, right face
			{Axis: AxisZ, Anchor: math.V(mx.X, mn.Y, c.Z), Value: m.Size.Z, Text: FormatDimension(m.Size.Z)},
		},
	}
}

// Edges returns the 12 box edges: bottom face, top face, then verticals.
func (o *BoundsOverlay) Edges() [BBoxEdgeCount][2]math.Vec3 {
	half := o.Size.Scale(0.5)
	mn, mx := o.Center.Sub(half), o.Center.Add(half)
	b := [4]math.Vec3{
		math.V(mn.X, mn.Y, mn.Z), math.V(mx.X, mn.Y, mn.Z),
		math.V(mx.X, mn.Y, mx.Z), math.V(mn.X, mn.Y, mx.Z),
	}
	var edges [BBoxEdgeCount][2]math.Vec3
	for i := 0; i < 4; i++ {
		bottom, next := b[i], b[(i+1)%4]
		top, topNext := bottom, next
		top.Y, topNext.Y = mx.Y, mx.Y

		edges[i] = [2]math.Vec3{bottom, next}
		edges[4+i] = [2]math.Vec3{top, topNext}
		edges[8+i] = [2]math.Vec3{bottom, top}
	}
	return edges
}

// FormatDimension renders a length in model units (millimeters): one
// decimal in meters from 1000 up, one decimal in millimeters below.
func FormatDimension(v float64) string {
	if v >= 1000 {
		return fmt.Sprintf("%.1f м", v/1000)
	}
	return fmt.Sprintf("%.1f мм", v)
}
