// Package soft implements gpu.Device in Go memory. It has no rendering
// output; it keeps buffer contents, vertex array state and a log of draw
// calls so meshes can be built, inspected and validated without a GPU
// context. Resource limits simulate allocation failure.
package soft

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"meshview/core"
	"meshview/gpu"
)

var (
	ErrOutOfMemory   = errors.New("soft: out of memory")
	ErrInvalidHandle = errors.New("soft: invalid handle")
	ErrInvalidValue  = errors.New("soft: invalid value")
)

const unlimited = -1

// Option configures a Device.
type Option func(*Device)

// MaxBuffers limits the number of live buffers. Creating one more returns 0.
func MaxBuffers(n int) Option { return func(d *Device) { d.maxBuffers = n } }

// MaxVertexArrays limits the number of live vertex arrays.
func MaxVertexArrays(n int) Option { return func(d *Device) { d.maxVertexArrays = n } }

// MaxBufferBytes limits the total size of buffer storage. Allocations past
// the limit record ErrOutOfMemory.
func MaxBufferBytes(n int) Option { return func(d *Device) { d.maxBytes = n } }

// Op identifies a device call in the call log.
type Op int

const (
	OpCreateBuffer Op = iota
	OpCreateVertexArray
	OpDeleteBuffer
	OpDeleteVertexArray
	OpBufferData
	OpBufferSubData
	OpVertexAttrib
	OpVertexBuffer
	OpElementBuffer
	OpBindVertexArray
	OpDrawElements
)

var opNames = [...]string{
	OpCreateBuffer:      "CreateBuffer",
	OpCreateVertexArray: "CreateVertexArray",
	OpDeleteBuffer:      "DeleteBuffer",
	OpDeleteVertexArray: "DeleteVertexArray",
	OpBufferData:        "BufferData",
	OpBufferSubData:     "BufferSubData",
	OpVertexAttrib:      "VertexAttrib",
	OpVertexBuffer:      "VertexBuffer",
	OpElementBuffer:     "ElementBuffer",
	OpBindVertexArray:   "BindVertexArray",
	OpDrawElements:      "DrawElements",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Call is one entry of the call log. Fields not used by the op are zero.
type Call struct {
	Op     Op
	Handle gpu.Handle
	Count  int32
	Offset int
	Size   int
}

// Draw is one recorded DrawElements call.
type Draw struct {
	VertexArray gpu.Handle
	Count       int32
	Offset      int
}

// Binding is the vertex buffer attached to a vertex array binding point.
type Binding struct {
	Buffer gpu.Handle
	Offset int
	Stride int
}

// VertexArray is the recorded state of a vertex array object.
type VertexArray struct {
	Attribs  map[uint32]gpu.VertexAttrib
	Bindings map[uint32]Binding
	Elements gpu.Handle
}

// Device is an in-memory gpu.Device. It is not safe for concurrent use.
type Device struct {
	maxBuffers      int
	maxVertexArrays int
	maxBytes        int

	nextBuffer gpu.Handle
	nextArray  gpu.Handle
	buffers    map[gpu.Handle][]byte
	arrays     map[gpu.Handle]*VertexArray
	usedBytes  int

	bufferDeletes map[gpu.Handle]int
	arrayDeletes  map[gpu.Handle]int

	bound gpu.Handle
	err   error
	calls []Call
	draws []Draw
}

var _ gpu.Device = (*Device)(nil)

// NewDevice returns an empty device without limits unless options set them.
func NewDevice(opts ...Option) *Device {
	d := &Device{
		maxBuffers:      unlimited,
		maxVertexArrays: unlimited,
		maxBytes:        unlimited,
		buffers:         make(map[gpu.Handle][]byte),
		arrays:          make(map[gpu.Handle]*VertexArray),
		bufferDeletes:   make(map[gpu.Handle]int),
		arrayDeletes:    make(map[gpu.Handle]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) record(c Call) {
	d.calls = append(d.calls, c)
}

func (d *Device) setErr(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Device) CreateBuffer() gpu.Handle {
	d.record(Call{Op: OpCreateBuffer})
	if d.maxBuffers != unlimited && len(d.buffers) >= d.maxBuffers {
		return 0
	}
	d.nextBuffer++
	d.buffers[d.nextBuffer] = []byte{}
	return d.nextBuffer
}

func (d *Device) CreateVertexArray() gpu.Handle {
	d.record(Call{Op: OpCreateVertexArray})
	if d.maxVertexArrays != unlimited && len(d.arrays) >= d.maxVertexArrays {
		return 0
	}
	d.nextArray++
	d.arrays[d.nextArray] = &VertexArray{
		Attribs:  make(map[uint32]gpu.VertexAttrib),
		Bindings: make(map[uint32]Binding),
	}
	return d.nextArray
}

// DeleteBuffer deletes buf. Unknown names are ignored, as in GL, but every
// call is counted.
func (d *Device) DeleteBuffer(buf gpu.Handle) {
	d.record(Call{Op: OpDeleteBuffer, Handle: buf})
	d.bufferDeletes[buf]++
	if b, ok := d.buffers[buf]; ok {
		d.usedBytes -= len(b)
		delete(d.buffers, buf)
	}
}

func (d *Device) DeleteVertexArray(vao gpu.Handle) {
	d.record(Call{Op: OpDeleteVertexArray, Handle: vao})
	d.arrayDeletes[vao]++
	delete(d.arrays, vao)
	if d.bound == vao {
		d.bound = 0
	}
}

func (d *Device) BufferData(buf gpu.Handle, size int, data []byte) {
	d.record(Call{Op: OpBufferData, Handle: buf, Size: size})
	old, ok := d.buffers[buf]
	if !ok {
		d.setErr(ErrInvalidHandle)
		return
	}
	if size < 0 || (data != nil && len(data) < size) {
		d.setErr(ErrInvalidValue)
		return
	}
	if d.maxBytes != unlimited && d.usedBytes-len(old)+size > d.maxBytes {
		d.setErr(ErrOutOfMemory)
		return
	}
	b := make([]byte, size)
	copy(b, data)
	d.usedBytes += size - len(old)
	d.buffers[buf] = b
}

func (d *Device) BufferSubData(buf gpu.Handle, offset int, data []byte) {
	d.record(Call{Op: OpBufferSubData, Handle: buf, Offset: offset, Size: len(data)})
	b, ok := d.buffers[buf]
	if !ok {
		d.setErr(ErrInvalidHandle)
		return
	}
	if offset < 0 || offset+len(data) > len(b) {
		d.setErr(ErrInvalidValue)
		return
	}
	copy(b[offset:], data)
}

func (d *Device) VertexAttrib(vao gpu.Handle, attr gpu.VertexAttrib) {
	d.record(Call{Op: OpVertexAttrib, Handle: vao})
	va, ok := d.arrays[vao]
	if !ok {
		d.setErr(ErrInvalidHandle)
		return
	}
	va.Attribs[attr.Index] = attr
}

func (d *Device) VertexBuffer(vao gpu.Handle, binding uint32, buf gpu.Handle, offset, stride int) {
	d.record(Call{Op: OpVertexBuffer, Handle: vao, Offset: offset, Size: stride})
	va, ok := d.arrays[vao]
	if !ok {
		d.setErr(ErrInvalidHandle)
		return
	}
	if _, ok := d.buffers[buf]; !ok {
		d.setErr(ErrInvalidHandle)
		return
	}
	va.Bindings[binding] = Binding{Buffer: buf, Offset: offset, Stride: stride}
}

func (d *Device) ElementBuffer(vao, buf gpu.Handle) {
	d.record(Call{Op: OpElementBuffer, Handle: vao})
	va, ok := d.arrays[vao]
	if !ok {
		d.setErr(ErrInvalidHandle)
		return
	}
	if _, ok := d.buffers[buf]; !ok {
		d.setErr(ErrInvalidHandle)
		return
	}
	va.Elements = buf
}

func (d *Device) BindVertexArray(vao gpu.Handle) {
	d.record(Call{Op: OpBindVertexArray, Handle: vao})
	if _, ok := d.arrays[vao]; !ok && vao != 0 {
		d.setErr(ErrInvalidHandle)
		return
	}
	d.bound = vao
}

// DrawElements records the draw and checks the index range against the
// element buffer of the bound vertex array.
func (d *Device) DrawElements(count int32, byteOffset int) {
	d.record(Call{Op: OpDrawElements, Handle: d.bound, Count: count, Offset: byteOffset})
	va, ok := d.arrays[d.bound]
	if !ok {
		d.setErr(ErrInvalidHandle)
		return
	}
	eb, ok := d.buffers[va.Elements]
	if !ok {
		d.setErr(ErrInvalidHandle)
		return
	}
	if count < 0 || byteOffset < 0 || byteOffset+int(count)*gpu.IndexSize > len(eb) {
		d.setErr(ErrInvalidValue)
		return
	}
	d.draws = append(d.draws, Draw{VertexArray: d.bound, Count: count, Offset: byteOffset})
}

func (d *Device) Err() error {
	err := d.err
	d.err = nil
	return err
}

// Calls returns the call log.
func (d *Device) Calls() []Call { return d.calls }

// Draws returns the recorded draws.
func (d *Device) Draws() []Draw { return d.draws }

// ResetLog clears the call log and the recorded draws.
func (d *Device) ResetLog() {
	d.calls = nil
	d.draws = nil
}

// LiveBuffers returns the number of buffers not yet deleted.
func (d *Device) LiveBuffers() int { return len(d.buffers) }

// LiveVertexArrays returns the number of vertex arrays not yet deleted.
func (d *Device) LiveVertexArrays() int { return len(d.arrays) }

// Live returns the number of objects of any kind not yet deleted.
func (d *Device) Live() int { return len(d.buffers) + len(d.arrays) }

// BufferDeletes returns how many times DeleteBuffer was called with buf.
func (d *Device) BufferDeletes(buf gpu.Handle) int { return d.bufferDeletes[buf] }

// VertexArrayDeletes returns how many times DeleteVertexArray was called with vao.
func (d *Device) VertexArrayDeletes(vao gpu.Handle) int { return d.arrayDeletes[vao] }

// BoundVertexArray returns the currently bound vertex array.
func (d *Device) BoundVertexArray() gpu.Handle { return d.bound }

// UsedBytes returns the total size of live buffer storage.
func (d *Device) UsedBytes() int { return d.usedBytes }

// Buffer returns a copy of the contents of buf.
func (d *Device) Buffer(buf gpu.Handle) ([]byte, bool) {
	b, ok := d.buffers[buf]
	if !ok {
		return nil, false
	}
	return bytes.Clone(b), true
}

// VertexArrayState returns the recorded state of vao.
func (d *Device) VertexArrayState(vao gpu.Handle) (VertexArray, bool) {
	va, ok := d.arrays[vao]
	if !ok {
		return VertexArray{}, false
	}
	return *va, true
}

// Indices decodes count indices of buf starting at byteOffset.
func (d *Device) Indices(buf gpu.Handle, byteOffset int, count int) ([]uint32, error) {
	b, ok := d.buffers[buf]
	if !ok {
		return nil, ErrInvalidHandle
	}
	end := byteOffset + count*gpu.IndexSize
	if byteOffset < 0 || count < 0 || end > len(b) {
		return nil, ErrInvalidValue
	}
	out := make([]uint32, count)
	if count == 0 {
		return out, nil
	}
	if err := binary.Read(bytes.NewReader(b[byteOffset:end]), binary.NativeEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Vertices decodes the contents of buf as interleaved vertex records.
func (d *Device) Vertices(buf gpu.Handle) ([]core.Vertex, error) {
	b, ok := d.buffers[buf]
	if !ok {
		return nil, ErrInvalidHandle
	}
	if len(b)%gpu.VertexSize != 0 {
		return nil, ErrInvalidValue
	}
	out := make([]core.Vertex, len(b)/gpu.VertexSize)
	if err := binary.Read(bytes.NewReader(b), binary.NativeEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}
