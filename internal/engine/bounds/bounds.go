// Package bounds derives world-space bounding metrics from a scene graph.
package bounds

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/meshpreview/pkg/math"
	"github.com/Faultbox/meshpreview/pkg/scene"
)

// ModelMetrics describes the axis-aligned bounds of a loaded model.
type ModelMetrics struct {
	Center math.Vec3
	Size   math.Vec3
	Min    math.Vec3
	Max    math.Vec3
	// MaxDim is the largest component of Size.
	MaxDim float64
	// BottomY is the lowest point on the vertical axis.
	BottomY float64
}

// Compute walks every node of s, applies accumulated world transforms to
// each referenced vertex and returns the resulting metrics. A scene with
// no geometry yields zero metrics at the origin.
func Compute(s *scene.Scene) ModelMetrics {
	box := math.EmptyBox()
	s.Meshes(func(m *scene.Mesh, world mgl64.Mat4) {
		if m.Indices == nil {
			for _, p := range m.Positions {
				box = box.Extend(scene.TransformPoint(world, p))
			}
			return
		}
		for _, i := range m.Indices {
			if int(i) < len(m.Positions) {
				box = box.Extend(scene.TransformPoint(world, m.Positions[i]))
			}
		}
	})
	return FromBox(box)
}

// FromBox converts a box into metrics. An empty box maps to all zeros.
func FromBox(b math.Box) ModelMetrics {
	if b.IsEmpty() {
		return ModelMetrics{}
	}
	size := b.Size()
	return ModelMetrics{
		Center:  b.Center(),
		Size:    size,
		Min:     b.Min,
		Max:     b.Max,
		MaxDim:  size.MaxComponent(),
		BottomY: b.Min.Y,
	}
}

// Box returns the metrics as a box.
func (m ModelMetrics) Box() math.Box {
	return math.Box{Min: m.Min, Max: m.Max}
}
