package gpu

import (
	"meshview/core"
)

// noCopy makes go vet's copylocks check flag copies of the types embedding it.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Part is a contiguous range of the shared index buffer drawn with one material.
type Part struct {
	Count  int32 // number of indices
	Offset int   // byte offset in the index buffer
	// Material is owned by the registry the mesh was built against, which
	// must outlive the mesh.
	Material Material
}

// Mesh owns the vertex buffer, index buffer and vertex layout object of one
// uploaded mesh, plus its parts in declaration order.
//
// A Mesh is either fully built or empty. It must not be copied; ownership of
// the GPU objects moves with MoveFrom and Take. Release must be called once
// the mesh is no longer drawn.
type Mesh struct {
	noCopy noCopy

	dev   Device
	vbo   Handle
	ebo   Handle
	vao   Handle
	parts []Part
}

// NewMesh builds a mesh from data. See Mesh.Build.
func NewMesh(dev Device, data *core.MeshData, materials MaterialLookup) (*Mesh, error) {
	m := &Mesh{}
	if err := m.Build(dev, data, materials); err != nil {
		return nil, err
	}
	return m, nil
}

// Build uploads data to dev and resolves every part's material through
// materials. Every material key referenced by data must be present.
//
// Build either succeeds, replacing (and releasing) anything m held before, or
// fails leaving m exactly as it was. On failure every GPU object allocated by
// this call has been deleted.
func (m *Mesh) Build(dev Device, data *core.MeshData, materials MaterialLookup) (err error) {
	log := Logger()
	drainErrors(dev)

	// Deletes run in reverse allocation order if anything below fails.
	var release []func()
	defer func() {
		if err == nil {
			return
		}
		for i := len(release) - 1; i >= 0; i-- {
			release[i]()
		}
		log.Warn("mesh build failed", "error", err, "released", len(release))
	}()

	vbo := dev.CreateBuffer()
	if vbo == 0 {
		return &AllocError{Kind: VertexBufferObject}
	}
	release = append(release, func() { dev.DeleteBuffer(vbo) })

	ebo := dev.CreateBuffer()
	if ebo == 0 {
		return &AllocError{Kind: IndexBufferObject}
	}
	release = append(release, func() { dev.DeleteBuffer(ebo) })

	vao := dev.CreateVertexArray()
	if vao == 0 {
		return &AllocError{Kind: VertexLayoutObject}
	}
	release = append(release, func() { dev.DeleteVertexArray(vao) })

	dev.BufferData(vbo, len(data.Vertices)*VertexSize, vertexBytes(data.Vertices))
	if e := dev.Err(); e != nil {
		return &DeviceError{Step: "upload vertices", Err: e}
	}

	indexBytesTotal := data.IndexCount() * IndexSize
	dev.BufferData(ebo, indexBytesTotal, nil)
	if e := dev.Err(); e != nil {
		return &DeviceError{Step: "allocate index storage", Err: e}
	}

	parts := make([]Part, 0, len(data.Parts))
	offset := 0
	for i, p := range data.Parts {
		mat, ok := materials.Lookup(p.Material)
		if !ok || mat == nil {
			return &MissingMaterialError{Part: i, Key: p.Material}
		}
		parts = append(parts, Part{
			Count:    int32(len(p.Indices)),
			Offset:   offset,
			Material: mat,
		})
		if len(p.Indices) > 0 {
			dev.BufferSubData(ebo, offset, indexBytes(p.Indices))
			if e := dev.Err(); e != nil {
				return &DeviceError{Step: "upload indices of part " + p.Name, Err: e}
			}
		}
		log.Debug("mesh part", "index", i, "name", p.Name, "material", p.Material.String(),
			"count", len(p.Indices), "offset", offset)
		offset += len(p.Indices) * IndexSize
	}

	for _, attr := range MeshLayout {
		dev.VertexAttrib(vao, attr)
	}
	dev.VertexBuffer(vao, 0, vbo, 0, VertexSize)
	dev.ElementBuffer(vao, ebo)
	if e := dev.Err(); e != nil {
		return &DeviceError{Step: "configure vertex layout", Err: e}
	}

	m.Release()
	m.dev = dev
	m.vbo, m.ebo, m.vao = vbo, ebo, vao
	m.parts = parts

	log.Info("mesh built", "vertices", len(data.Vertices), "parts", len(parts),
		"vertexBytes", len(data.Vertices)*VertexSize, "indexBytes", indexBytesTotal)
	return nil
}

// maxDrainedErrors bounds the loop in drainErrors; GL keeps one flag per
// error kind, so a handful is always enough.
const maxDrainedErrors = 8

// drainErrors clears errors left by earlier, unrelated device calls so they
// are not blamed on the build.
func drainErrors(dev Device) {
	for i := 0; i < maxDrainedErrors; i++ {
		err := dev.Err()
		if err == nil {
			return
		}
		Logger().Warn("discarding stale device error", "error", err)
	}
}

// Bind makes the mesh's vertex layout (and with it both buffers) current for
// the following draws. The mesh must not be empty.
func (m *Mesh) Bind() {
	m.dev.BindVertexArray(m.vao)
}

// Parts returns the parts in draw order. The slice is owned by the mesh and
// must not be modified.
func (m *Mesh) Parts() []Part {
	return m.parts
}

// NumParts returns the number of parts.
func (m *Mesh) NumParts() int {
	return len(m.parts)
}

// Empty reports whether the mesh holds no GPU objects.
func (m *Mesh) Empty() bool {
	return m.vbo == 0 && m.ebo == 0 && m.vao == 0 && len(m.parts) == 0
}

// VertexBuffer returns the interleaved vertex buffer, or 0 when empty.
func (m *Mesh) VertexBuffer() Handle { return m.vbo }

// IndexBuffer returns the index buffer shared by all parts, or 0 when empty.
func (m *Mesh) IndexBuffer() Handle { return m.ebo }

// VertexArray returns the vertex layout object, or 0 when empty.
func (m *Mesh) VertexArray() Handle { return m.vao }

// MoveFrom releases what m holds and takes ownership of src's objects and
// parts, leaving src empty. Moving a mesh into itself does nothing.
func (m *Mesh) MoveFrom(src *Mesh) {
	if src == nil || src == m {
		return
	}
	m.Release()
	m.dev = src.dev
	m.vbo, m.ebo, m.vao = src.vbo, src.ebo, src.vao
	m.parts = src.parts
	src.reset()
}

// Take moves m into a new Mesh and returns it; m is left empty.
func (m *Mesh) Take() *Mesh {
	n := &Mesh{}
	n.MoveFrom(m)
	return n
}

// Release deletes the GPU objects in reverse allocation order and empties the
// mesh. Releasing an empty mesh does nothing.
func (m *Mesh) Release() {
	if m.dev != nil && !m.Empty() {
		if m.vao != 0 {
			m.dev.DeleteVertexArray(m.vao)
		}
		if m.ebo != 0 {
			m.dev.DeleteBuffer(m.ebo)
		}
		if m.vbo != 0 {
			m.dev.DeleteBuffer(m.vbo)
		}
		Logger().Info("mesh released", "parts", len(m.parts))
	}
	m.reset()
}

func (m *Mesh) reset() {
	m.dev = nil
	m.vbo, m.ebo, m.vao = 0, 0, 0
	m.parts = nil
}
