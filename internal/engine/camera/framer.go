package camera

import (
	gomath "math"

	"github.com/Faultbox/meshpreview/internal/engine/bounds"
	"github.com/Faultbox/meshpreview/pkg/math"
)

const (
	// DefaultFOV is the vertical field of view used for framing, in degrees.
	DefaultFOV = 45.0

	// MinFrameExtent stands in for the extent of a degenerate model, so
	// an empty or point mesh never puts the camera at its own center.
	MinFrameExtent = 1.0

	// degenerateExtent is the largest extent treated as degenerate.
	degenerateExtent = 1e-9
)

// FrameOffset is the oblique viewing direction, scaled by the framing
// distance and added to the model center.
var FrameOffset = math.V(0.8, 0.5, 1.2)

// Extent returns maxDim, or MinFrameExtent when maxDim is zero, NaN or
// too small to frame.
func Extent(maxDim float64) float64 {
	if gomath.IsNaN(maxDim) || maxDim < degenerateExtent {
		return MinFrameExtent
	}
	return maxDim
}

// FrameDistance returns the distance at which an object of size maxDim
// fills a vertical field of view of fovDeg degrees.
func FrameDistance(maxDim, fovDeg float64) float64 {
	fov := fovDeg * gomath.Pi / 180
	return Extent(maxDim) / (2 * gomath.Tan(fov/2))
}

// Frame places a camera so the whole model is visible. Clip planes scale
// with the model so millimeter parts and meter assemblies both fit.
func Frame(m bounds.ModelMetrics, fovDeg float64) Camera {
	if fovDeg <= 0 || fovDeg >= 180 {
		fovDeg = DefaultFOV
	}
	d := Extent(m.MaxDim)
	dist := FrameDistance(d, fovDeg)

	return Camera{
		Position: m.Center.Add(math.V(FrameOffset.X*dist, FrameOffset.Y*dist, FrameOffset.Z*dist)),
		Target:   m.Center,
		Up:       math.V(0, 1, 0),
		FOV:      fovDeg,
		Near:     d * 0.001,
		Far:      d * 100,
	}
}
