package opengl

import (
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Input collects keyboard and mouse state from GLFW callbacks between frames.
//
//	ESC    toggle mouse look (hides the cursor)
//	F      toggle wireframe
//	Q      quit
//	W/S    forward/back, A/D left/right, U/B up/down
type Input struct {
	held map[glfw.Key]bool

	MouseLook bool
	Wireframe bool
	Quit      bool

	// cursor position the look deltas are measured against
	lastX, lastY float64
	haveCursor   bool
	lookX, lookY float64
}

func NewInput(wireframe bool) *Input {
	return &Input{held: make(map[glfw.Key]bool), Wireframe: wireframe}
}

// KeyEvent records a key transition and applies toggles on press.
func (in *Input) KeyEvent(key glfw.Key, action glfw.Action) {
	switch action {
	case glfw.Press:
		in.held[key] = true
		switch key {
		case glfw.KeyEscape:
			in.MouseLook = !in.MouseLook
			in.haveCursor = false
		case glfw.KeyF:
			in.Wireframe = !in.Wireframe
		case glfw.KeyQ:
			in.Quit = true
		}
	case glfw.Release:
		delete(in.held, key)
	}
}

// CursorEvent accumulates cursor motion while mouse look is on.
func (in *Input) CursorEvent(x, y float64) {
	if !in.MouseLook {
		return
	}
	if in.haveCursor {
		in.lookX += x - in.lastX
		in.lookY += y - in.lastY
	}
	in.lastX, in.lastY = x, y
	in.haveCursor = true
}

// TakeLook returns the cursor motion in pixels since the last call.
// Positive dy means the cursor moved up.
func (in *Input) TakeLook() (dx, dy float32) {
	dx, dy = float32(in.lookX), float32(-in.lookY)
	in.lookX, in.lookY = 0, 0
	return dx, dy
}

// Movement returns the held movement keys as -1, 0 or 1 per camera axis.
func (in *Input) Movement() (forward, right, up float32) {
	axis := func(pos, neg glfw.Key) float32 {
		var v float32
		if in.held[pos] {
			v++
		}
		if in.held[neg] {
			v--
		}
		return v
	}
	return axis(glfw.KeyW, glfw.KeyS), axis(glfw.KeyD, glfw.KeyA), axis(glfw.KeyU, glfw.KeyB)
}
