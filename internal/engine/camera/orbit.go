package camera

import (
	gomath "math"

	"github.com/charmbracelet/harmonica"

	"github.com/Faultbox/meshpreview/internal/engine/bounds"
	"github.com/Faultbox/meshpreview/pkg/math"
)

const (
	// DefaultFPS is the update rate the damping springs are tuned for.
	DefaultFPS = 60

	// Distance clamps relative to the model extent.
	MinDistanceFactor = 0.1
	MaxDistanceFactor = 20.0

	springFrequency = 6.0
	springDamping   = 1.0 // critically damped, no overshoot
	settleEpsilon   = 1e-6
)

// axis is one damped scalar: the spring pulls Value toward Goal.
type axis struct {
	Value    float64
	Goal     float64
	velocity float64
}

func (a *axis) snap(v float64) {
	a.Value, a.Goal, a.velocity = v, v, 0
}

func (a *axis) update(s harmonica.Spring, damping bool) {
	if !damping {
		a.snap(a.Goal)
		return
	}
	a.Value, a.velocity = s.Update(a.Value, a.velocity, a.Goal)
	if gomath.Abs(a.Goal-a.Value) < settleEpsilon*gomath.Max(1, gomath.Abs(a.Goal)) && gomath.Abs(a.velocity) < settleEpsilon {
		a.snap(a.Goal)
	}
}

func (a *axis) settled() bool {
	return a.Value == a.Goal && a.velocity == 0
}

// OrbitControls rotates, pans and zooms a camera around a target point.
// Input moves goal values; Update eases the camera toward them.
type OrbitControls struct {
	// Damping smooths motion over several updates. When false every
	// input takes effect on the next Update.
	Damping bool

	MinDistance float64
	MaxDistance float64
	MinPitch    float64
	MaxPitch    float64

	yaw, pitch, distance axis
	tx, ty, tz           axis

	spring harmonica.Spring
	base   Camera
}

// NewOrbitControls creates controls updated fps times per second.
func NewOrbitControls(fps int) *OrbitControls {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &OrbitControls{
		Damping:     true,
		MinDistance: MinDistanceFactor,
		MaxDistance: MaxDistanceFactor,
		MinPitch:    -gomath.Pi/2 + 0.01,
		MaxPitch:    gomath.Pi/2 - 0.01,
		spring:      harmonica.NewSpring(harmonica.FPS(fps), springFrequency, springDamping),
	}
}

// Attach takes over cam and derives distance clamps from the model
// extent. The target becomes the model center.
func (c *OrbitControls) Attach(cam Camera, m bounds.ModelMetrics) {
	d := Extent(m.MaxDim)
	c.MinDistance = d * MinDistanceFactor
	c.MaxDistance = d * MaxDistanceFactor
	c.base = cam

	offset := cam.Position.Sub(m.Center)
	dist := offset.Length()
	yaw, pitch := 0.0, 0.0
	if dist > 0 {
		yaw = gomath.Atan2(offset.X, offset.Z)
		pitch = gomath.Asin(offset.Y / dist)
	}

	c.yaw.snap(yaw)
	c.pitch.snap(c.clampPitch(pitch))
	c.distance.snap(c.clampDistance(dist))
	c.Retarget(m.Center)
}

// Retarget moves the orbit target to center without animation.
func (c *OrbitControls) Retarget(center math.Vec3) {
	c.tx.snap(center.X)
	c.ty.snap(center.Y)
	c.tz.snap(center.Z)
}

// Rotate orbits by the given yaw and pitch deltas in radians.
func (c *OrbitControls) Rotate(dYaw, dPitch float64) {
	c.yaw.Goal += dYaw
	c.pitch.Goal = c.clampPitch(c.pitch.Goal + dPitch)
}

// Pan shifts the target in the view plane. dx and dy are fractions of
// the viewport height, so panning feels the same at every distance.
func (c *OrbitControls) Pan(dx, dy float64) {
	fov := c.base.FOV
	if fov <= 0 {
		fov = DefaultFOV
	}
	visible := 2 * c.distance.Goal * gomath.Tan(fov*gomath.Pi/360)

	forward := c.offsetDir(c.yaw.Goal, c.pitch.Goal).Scale(-1)
	right := forward.Cross(math.V(0, 1, 0)).Normalize()
	up := right.Cross(forward).Normalize()

	shift := right.Scale(-dx * visible).Add(up.Scale(dy * visible))
	c.tx.Goal += shift.X
	c.ty.Goal += shift.Y
	c.tz.Goal += shift.Z
}

// Zoom multiplies the goal distance by factor (> 1 moves away). Requests
// past either clamp stop at the bound.
func (c *OrbitControls) Zoom(factor float64) {
	if factor <= 0 || gomath.IsNaN(factor) || gomath.IsInf(factor, 0) {
		return
	}
	c.distance.Goal = c.clampDistance(c.distance.Goal * factor)
}

// Update advances the controls by one frame and reports whether the
// camera is still moving.
func (c *OrbitControls) Update() bool {
	for _, a := range []*axis{&c.yaw, &c.pitch, &c.distance, &c.tx, &c.ty, &c.tz} {
		a.update(c.spring, c.Damping)
	}
	c.distance.Value = c.clampDistance(c.distance.Value)
	return !c.Settled()
}

// Settled reports whether every axis has reached its goal.
func (c *OrbitControls) Settled() bool {
	for _, a := range []*axis{&c.yaw, &c.pitch, &c.distance, &c.tx, &c.ty, &c.tz} {
		if !a.settled() {
			return false
		}
	}
	return true
}

// Distance returns the current camera-to-target distance.
func (c *OrbitControls) Distance() float64 {
	return c.distance.Value
}

// Target returns the current orbit target.
func (c *OrbitControls) Target() math.Vec3 {
	return math.V(c.tx.Value, c.ty.Value, c.tz.Value)
}

// Camera returns the controlled camera in its current state.
func (c *OrbitControls) Camera() Camera {
	cam := c.base
	cam.Target = c.Target()
	cam.Position = cam.Target.Add(c.offsetDir(c.yaw.Value, c.pitch.Value).Scale(c.distance.Value))
	if cam.Up == (math.Vec3{}) {
		cam.Up = math.V(0, 1, 0)
	}
	return cam
}

// offsetDir is the unit vector from target to camera.
func (c *OrbitControls) offsetDir(yaw, pitch float64) math.Vec3 {
	return math.V(
		gomath.Cos(pitch)*gomath.Sin(yaw),
		gomath.Sin(pitch),
		gomath.Cos(pitch)*gomath.Cos(yaw),
	)
}

func (c *OrbitControls) clampDistance(d float64) float64 {
	if d < c.MinDistance {
		return c.MinDistance
	}
	if d > c.MaxDistance {
		return c.MaxDistance
	}
	return d
}

func (c *OrbitControls) clampPitch(p float64) float64 {
	if p < c.MinPitch {
		return c.MinPitch
	}
	if p > c.MaxPitch {
		return c.MaxPitch
	}
	return p
}
