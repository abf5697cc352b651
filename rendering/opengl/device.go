package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.5-core/gl"

	"meshview/gpu"
)

// GLError is an error flag returned by glGetError.
type GLError uint32

func (e GLError) Error() string {
	switch uint32(e) {
	case gl.INVALID_ENUM:
		return "gl: invalid enum"
	case gl.INVALID_VALUE:
		return "gl: invalid value"
	case gl.INVALID_OPERATION:
		return "gl: invalid operation"
	case gl.INVALID_FRAMEBUFFER_OPERATION:
		return "gl: invalid framebuffer operation"
	case gl.OUT_OF_MEMORY:
		return "gl: out of memory"
	case gl.STACK_UNDERFLOW:
		return "gl: stack underflow"
	case gl.STACK_OVERFLOW:
		return "gl: stack overflow"
	}
	return fmt.Sprintf("gl: error 0x%04x", uint32(e))
}

// Device implements gpu.Device with OpenGL 4.5 direct state access. The GL
// context must be current on the calling thread.
type Device struct{}

// NewDevice returns a Device for the current context. gl.Init must have
// succeeded before any method is called.
func NewDevice() *Device {
	return &Device{}
}

func (d *Device) CreateBuffer() gpu.Handle {
	var buf uint32
	gl.CreateBuffers(1, &buf)
	return gpu.Handle(buf)
}

func (d *Device) CreateVertexArray() gpu.Handle {
	var vao uint32
	gl.CreateVertexArrays(1, &vao)
	return gpu.Handle(vao)
}

func (d *Device) DeleteBuffer(h gpu.Handle) {
	buf := uint32(h)
	gl.DeleteBuffers(1, &buf)
}

func (d *Device) DeleteVertexArray(h gpu.Handle) {
	vao := uint32(h)
	gl.DeleteVertexArrays(1, &vao)
}

func (d *Device) BufferData(buf gpu.Handle, size int, data []byte) {
	if len(data) == 0 {
		gl.NamedBufferData(uint32(buf), size, nil, gl.STATIC_DRAW)
		return
	}
	gl.NamedBufferData(uint32(buf), size, gl.Ptr(data), gl.STATIC_DRAW)
}

func (d *Device) BufferSubData(buf gpu.Handle, offset int, data []byte) {
	if len(data) == 0 {
		return
	}
	gl.NamedBufferSubData(uint32(buf), offset, len(data), gl.Ptr(data))
}

func (d *Device) VertexAttrib(vao gpu.Handle, attr gpu.VertexAttrib) {
	gl.EnableVertexArrayAttrib(uint32(vao), attr.Index)
	gl.VertexArrayAttribFormat(uint32(vao), attr.Index, attr.Size, gl.FLOAT, false, attr.Offset)
	gl.VertexArrayAttribBinding(uint32(vao), attr.Index, 0)
}

func (d *Device) VertexBuffer(vao gpu.Handle, binding uint32, buf gpu.Handle, offset, stride int) {
	gl.VertexArrayVertexBuffer(uint32(vao), binding, uint32(buf), offset, int32(stride))
}

func (d *Device) ElementBuffer(vao, buf gpu.Handle) {
	gl.VertexArrayElementBuffer(uint32(vao), uint32(buf))
}

func (d *Device) BindVertexArray(vao gpu.Handle) {
	gl.BindVertexArray(uint32(vao))
}

func (d *Device) DrawElements(count int32, byteOffset int) {
	gl.DrawElements(gl.TRIANGLES, count, gl.UNSIGNED_INT, gl.PtrOffset(byteOffset))
}

// Err returns the oldest pending GL error flag, if any.
func (d *Device) Err() error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return GLError(code)
	}
	return nil
}

var _ gpu.Device = (*Device)(nil)
