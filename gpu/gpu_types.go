package gpu

import (
	"unsafe"

	"meshview/core"
)

// VertexAttrib describes one float attribute of the interleaved vertex record.
type VertexAttrib struct {
	Index  uint32
	Size   int32  // component count
	Offset uint32 // byte offset inside the record
}

const (
	// VertexSize is the byte size of one interleaved vertex record.
	VertexSize = int(unsafe.Sizeof(core.Vertex{}))
	// IndexSize is the byte size of one index element (uint32).
	IndexSize = 4
)

// Attribute locations used by the mesh shaders.
const (
	AttribPosition = 0
	AttribTexCoord = 1
	AttribNormal   = 2
)

// MeshLayout is the attribute layout shared by every mesh vertex buffer.
var MeshLayout = []VertexAttrib{
	{Index: AttribPosition, Size: 3, Offset: uint32(unsafe.Offsetof(core.Vertex{}.Position))},
	{Index: AttribTexCoord, Size: 2, Offset: uint32(unsafe.Offsetof(core.Vertex{}.TexCoord))},
	{Index: AttribNormal, Size: 3, Offset: uint32(unsafe.Offsetof(core.Vertex{}.Normal))},
}

// ObjectKind names the GPU object a mesh allocates.
type ObjectKind int

const (
	VertexBufferObject ObjectKind = iota
	IndexBufferObject
	VertexLayoutObject
)

func (k ObjectKind) String() string {
	switch k {
	case VertexBufferObject:
		return "vertex buffer"
	case IndexBufferObject:
		return "index buffer"
	case VertexLayoutObject:
		return "vertex layout"
	default:
		return "unknown object"
	}
}

// vertexBytes views the vertex slice as raw bytes without copying.
func vertexBytes(v []core.Vertex) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*VertexSize)
}

// indexBytes views the index slice as raw bytes without copying.
func indexBytes(idx []uint32) []byte {
	if len(idx) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&idx[0])), len(idx)*IndexSize)
}
