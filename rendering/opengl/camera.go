package opengl

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// maxPitch keeps the view direction off the poles, where LookAt degenerates.
const maxPitch = 89 * math.Pi / 180

var worldUp = mgl32.Vec3{0, 1, 0}

// Camera is a free-flying perspective camera. Yaw and pitch are in radians;
// zero yaw and pitch look down -Z.
type Camera struct {
	Position   mgl32.Vec3
	Yaw, Pitch float32

	FOV       float32 // vertical, degrees
	Near, Far float32
	Aspect    float32
}

// NewCamera returns a camera at pos looking down -Z.
func NewCamera(pos mgl32.Vec3, fov, near, far float32) *Camera {
	return &Camera{
		Position: pos,
		FOV:      fov,
		Near:     near,
		Far:      far,
		Aspect:   1,
	}
}

// SetViewport updates the aspect ratio for a framebuffer of w x h pixels.
// A zero height (minimised window) is ignored.
func (c *Camera) SetViewport(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	c.Aspect = float32(w) / float32(h)
}

// Front is the unit view direction.
func (c *Camera) Front() mgl32.Vec3 {
	sy, cy := math.Sincos(float64(c.Yaw))
	sp, cp := math.Sincos(float64(c.Pitch))
	return mgl32.Vec3{float32(sy * cp), float32(sp), float32(-cy * cp)}
}

// Right is the unit vector to the right of the view direction, in the
// horizontal plane.
func (c *Camera) Right() mgl32.Vec3 {
	return c.Front().Cross(worldUp).Normalize()
}

// Up is the unit vector completing the view basis.
func (c *Camera) Up() mgl32.Vec3 {
	return c.Right().Cross(c.Front())
}

// Look turns the camera by dx, dy degrees. Positive dx turns right, positive
// dy looks up.
func (c *Camera) Look(dx, dy float32) {
	c.Yaw += mgl32.DegToRad(dx)
	c.Pitch = mgl32.Clamp(c.Pitch+mgl32.DegToRad(dy), -maxPitch, maxPitch)
}

// Move translates the camera along its own axes.
func (c *Camera) Move(forward, right, up float32) {
	c.Position = c.Position.
		Add(c.Front().Mul(forward)).
		Add(c.Right().Mul(right)).
		Add(c.Up().Mul(up))
}

func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.Front()), worldUp)
}

func (c *Camera) Projection() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOV), c.Aspect, c.Near, c.Far)
}
