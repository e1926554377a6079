// Package camera provides the perspective camera, automatic framing of a
// model and damped orbit controls.
package camera

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/meshpreview/pkg/math"
)

// Camera is a perspective camera looking at Target.
type Camera struct {
	Position math.Vec3
	Target   math.Vec3
	Up       math.Vec3

	// FOV is the vertical field of view in degrees.
	FOV  float64
	Near float64
	Far  float64
}

// Distance returns the distance from the camera to its target.
func (c Camera) Distance() float64 {
	return c.Position.Distance(c.Target)
}

// Forward returns the unit view direction.
func (c Camera) Forward() math.Vec3 {
	return c.Target.Sub(c.Position).Normalize()
}

// ViewMatrix returns the world-to-camera transform.
func (c Camera) ViewMatrix() mgl64.Mat4 {
	up := c.Up
	if up == (math.Vec3{}) {
		up = math.V(0, 1, 0)
	}
	return mgl64.LookAtV(vec(c.Position), vec(c.Target), vec(up))
}

// ProjectionMatrix returns the perspective projection for the given
// width/height aspect ratio.
func (c Camera) ProjectionMatrix(aspect float64) mgl64.Mat4 {
	return mgl64.Perspective(mgl64.DegToRad(c.FOV), aspect, c.Near, c.Far)
}

// Project maps a world point to pixel coordinates in a width x height
// viewport with the origin at the top-left. ok is false when the point is
// behind the camera or outside the depth range.
func (c Camera) Project(p math.Vec3, width, height int) (x, y float64, ok bool) {
	proj := c.ProjectionMatrix(float64(width) / float64(height))
	clip := proj.Mul4(c.ViewMatrix()).Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	if clip[3] <= 0 {
		return 0, 0, false
	}

	win := mgl64.Project(vec(p), c.ViewMatrix(), proj, 0, 0, width, height)
	if win[2] < 0 || win[2] > 1 || gomath.IsNaN(win[0]) {
		return 0, 0, false
	}
	return win[0], float64(height) - win[1], true
}

func vec(v math.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}
