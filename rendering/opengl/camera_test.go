package opengl

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func assertVec(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-5), "want %v, got %v", want, got)
}

func TestCameraBasis(t *testing.T) {
	c := NewCamera(mgl32.Vec3{}, 60, 0.01, 1000)
	assertVec(t, mgl32.Vec3{0, 0, -1}, c.Front())
	assertVec(t, mgl32.Vec3{1, 0, 0}, c.Right())
	assertVec(t, mgl32.Vec3{0, 1, 0}, c.Up())

	c.Look(90, 0)
	assertVec(t, mgl32.Vec3{1, 0, 0}, c.Front())
	assertVec(t, mgl32.Vec3{0, 0, 1}, c.Right())
}

func TestCameraPitchIsClamped(t *testing.T) {
	c := NewCamera(mgl32.Vec3{}, 60, 0.01, 1000)
	c.Look(0, 500)
	assert.InDelta(t, maxPitch, c.Pitch, 1e-6)
	c.Look(0, -1000)
	assert.InDelta(t, -maxPitch, c.Pitch, 1e-6)
}

func TestCameraMove(t *testing.T) {
	c := NewCamera(mgl32.Vec3{1, 2, 3}, 60, 0.01, 1000)
	c.Move(1, 0, 0)
	assertVec(t, mgl32.Vec3{1, 2, 2}, c.Position)
	c.Move(0, -2, 0.5)
	assertVec(t, mgl32.Vec3{-1, 2.5, 2}, c.Position)
}

func TestCameraViewMovesEyeToOrigin(t *testing.T) {
	c := NewCamera(mgl32.Vec3{4, -1, 7}, 60, 0.01, 1000)
	c.Look(30, 20)
	eye := c.View().Mul4x1(c.Position.Vec4(1)).Vec3()
	assertVec(t, mgl32.Vec3{}, eye)

	ahead := c.View().Mul4x1(c.Position.Add(c.Front()).Vec4(1)).Vec3()
	assertVec(t, mgl32.Vec3{0, 0, -1}, ahead)
}

func TestCameraProjection(t *testing.T) {
	c := NewCamera(mgl32.Vec3{}, 60, 0.1, 100)
	c.SetViewport(800, 600)
	assert.InDelta(t, 800.0/600.0, c.Aspect, 1e-6)

	c.SetViewport(800, 0)
	assert.InDelta(t, 800.0/600.0, c.Aspect, 1e-6, "zero height keeps the last aspect")

	want := mgl32.Perspective(mgl32.DegToRad(60), c.Aspect, 0.1, 100)
	assert.True(t, want.ApproxEqual(c.Projection()))
}
