package gpu

import "meshview/core"

// Handle is an opaque GPU object name. Zero is never a valid object.
type Handle uint32

// Device is the GPU context boundary used to build and draw meshes.
// Implementations are not safe for concurrent use; every call must come
// from the thread that owns the context.
//
// Create calls return 0 when the object cannot be allocated. Upload and
// configuration calls do not return errors; failures are recorded and
// reported by the next Err call.
type Device interface {
	CreateBuffer() Handle
	CreateVertexArray() Handle
	DeleteBuffer(h Handle)
	DeleteVertexArray(h Handle)

	// BufferData (re)allocates buf with size bytes. A nil data leaves the
	// contents undefined.
	BufferData(buf Handle, size int, data []byte)
	BufferSubData(buf Handle, offset int, data []byte)

	// VertexAttrib enables attr on vao, reading floats from vertex buffer
	// binding 0.
	VertexAttrib(vao Handle, attr VertexAttrib)
	VertexBuffer(vao Handle, binding uint32, buf Handle, offset, stride int)
	ElementBuffer(vao, buf Handle)

	BindVertexArray(vao Handle)
	// DrawElements draws count uint32 indices as triangles, starting at
	// byteOffset in the element buffer of the bound vertex array.
	DrawElements(count int32, byteOffset int)

	// Err returns the first error recorded since the last call and clears it.
	Err() error
}

// Material is a bindable surface description (textures and sampler state).
// Parts compare materials by identity, so implementations should be pointer
// types.
type Material interface {
	Bind(slot uint32)
}

// MaterialLookup resolves the material keys referenced by mesh parts.
type MaterialLookup interface {
	Lookup(key core.MaterialKey) (Material, bool)
}
