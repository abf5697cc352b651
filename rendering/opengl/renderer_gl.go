package opengl

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/go-gl/gl/v4.5-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"meshview/config"
	"meshview/gpu"
	"meshview/rendering/opengl/shaders"
)

// FrameInfo describes one presented frame.
type FrameInfo struct {
	Frame     uint64
	FPS       float64 // averaged over the last second
	Draw      gpu.DrawStats
	Wireframe bool
	Camera    mgl32.Vec3
}

// Viewer owns the window, the GL context and the per-frame state used to draw
// a single mesh.
type Viewer struct {
	window  *glfw.Window
	device  *Device
	program *shaders.MeshProgram
	submit  *gpu.Submitter

	Camera *Camera
	Input  *Input
	Model  mgl32.Mat4

	clearColor      [4]float32
	moveStep        float32
	lookSensitivity float32
	cursorHidden    bool

	// OnFrame, when set, is called after every presented frame.
	OnFrame func(FrameInfo)
}

// NewViewer opens a window with an OpenGL 4.5 core context and prepares the
// mesh program. It locks the calling goroutine to its OS thread; every other
// Viewer method, and every use of the returned Device, must run there.
func NewViewer(s config.Settings) (*Viewer, error) {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %v", err)
	}

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 5)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.DoubleBuffer, glfw.True)

	window, err := glfw.CreateWindow(s.Window.Width, s.Window.Height, s.Window.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %v", err)
	}
	window.MakeContextCurrent()
	if s.Window.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("failed to initialize OpenGL: %v", err)
	}
	slog.Info("OpenGL context",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)))

	program, err := shaders.NewMeshProgram(s.Assets.VertexShader, s.Assets.FragmentShader)
	if err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, err
	}
	program.SetDiffuseUnit(s.Render.TextureSlot)

	dev := NewDevice()
	offset := s.Render.ModelOffset
	v := &Viewer{
		window:          window,
		device:          dev,
		program:         program,
		submit:          gpu.NewSubmitter(dev, s.Render.TextureSlot),
		Camera:          NewCamera(mgl32.Vec3(s.Camera.Position), s.Camera.FOV, s.Camera.Near, s.Camera.Far),
		Input:           NewInput(s.Render.Wireframe),
		Model:           mgl32.Translate3D(offset[0], offset[1], offset[2]),
		clearColor:      s.Render.ClearColor,
		moveStep:        s.Camera.MoveStep,
		lookSensitivity: s.Camera.LookSensitivity,
	}

	window.SetKeyCallback(v.onKey)
	window.SetCursorPosCallback(v.onMouseMove)
	window.SetFramebufferSizeCallback(v.onResize)
	v.onResize(window, 0, 0)

	gl.Enable(gl.DEPTH_TEST)
	return v, nil
}

// Device returns the GPU device of the viewer's context.
func (v *Viewer) Device() *Device {
	return v.device
}

// Run draws m every frame until the window is closed, Q is pressed or ctx is
// cancelled.
func (v *Viewer) Run(ctx context.Context, m *gpu.Mesh) error {
	var (
		frame       uint64
		frameCount  int
		fps         float64
		lastFPSTime = time.Now()
	)
	for !v.window.ShouldClose() && !v.Input.Quit {
		if err := ctx.Err(); err != nil {
			return err
		}
		glfw.PollEvents()

		st := v.Render(m)
		frame++
		frameCount++
		if now := time.Now(); now.Sub(lastFPSTime) >= time.Second {
			fps = float64(frameCount) / now.Sub(lastFPSTime).Seconds()
			frameCount = 0
			lastFPSTime = now
			slog.Debug("frame", "fps", fps, "drawCalls", st.DrawCalls, "bindsSkipped", st.BindsSkipped)
		}
		if v.OnFrame != nil {
			v.OnFrame(FrameInfo{
				Frame:     frame,
				FPS:       fps,
				Draw:      st,
				Wireframe: v.Input.Wireframe,
				Camera:    v.Camera.Position,
			})
		}
	}
	return nil
}

// Render applies pending input, draws one frame and presents it.
func (v *Viewer) Render(m *gpu.Mesh) gpu.DrawStats {
	v.applyInput()

	if v.Input.Wireframe {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
	} else {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
	}
	c := v.clearColor
	gl.ClearColor(c[0], c[1], c[2], c[3])
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	v.program.Use()
	v.program.SetMatrices(v.Camera.Projection(), v.Camera.View(), v.Model)
	st := v.submit.Draw(m)

	v.window.SwapBuffers()
	return st
}

func (v *Viewer) applyInput() {
	if v.Input.MouseLook != v.cursorHidden {
		v.cursorHidden = v.Input.MouseLook
		if v.cursorHidden {
			v.window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
		} else {
			v.window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
		}
	}

	dx, dy := v.Input.TakeLook()
	if dx != 0 || dy != 0 {
		v.Camera.Look(dx*v.lookSensitivity, dy*v.lookSensitivity)
	}
	f, r, u := v.Input.Movement()
	if f != 0 || r != 0 || u != 0 {
		v.Camera.Move(f*v.moveStep, r*v.moveStep, u*v.moveStep)
	}
}

// Event handlers
func (v *Viewer) onKey(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	v.Input.KeyEvent(key, action)
}

func (v *Viewer) onMouseMove(_ *glfw.Window, xpos, ypos float64) {
	v.Input.CursorEvent(xpos, ypos)
}

// onResize ignores its size arguments and queries the framebuffer, so it can
// also set up the initial viewport.
func (v *Viewer) onResize(w *glfw.Window, _, _ int) {
	width, height := w.GetFramebufferSize()
	gl.Viewport(0, 0, int32(width), int32(height))
	v.Camera.SetViewport(width, height)
}

// Terminate deletes the program and closes the window. Meshes and materials
// created on the device must be released before.
func (v *Viewer) Terminate() {
	v.program.Release()
	v.window.Destroy()
	glfw.Terminate()
}
