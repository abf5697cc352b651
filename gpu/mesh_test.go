package gpu_test

import (
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshview/core"
	"meshview/gpu"
	"meshview/gpu/soft"
)

type testMaterial struct {
	name   string
	events *[]string
}

func (m *testMaterial) Bind(slot uint32) {
	*m.events = append(*m.events, fmt.Sprintf("bind %s@%d", m.name, slot))
}

type testRegistry map[core.MaterialKey]gpu.Material

func (r testRegistry) Lookup(key core.MaterialKey) (gpu.Material, bool) {
	m, ok := r[key]
	return m, ok
}

func key(name string) core.MaterialKey {
	return core.MaterialKey{Library: "lib", Name: name}
}

func newRegistry(events *[]string, names ...string) testRegistry {
	r := testRegistry{}
	for _, n := range names {
		r[key(n)] = &testMaterial{name: n, events: events}
	}
	return r
}

func twoVertexMesh() *core.MeshData {
	return &core.MeshData{
		Vertices: []core.Vertex{
			{Position: mgl32.Vec3{0, 0, 0}, TexCoord: mgl32.Vec2{0, 0}, Normal: mgl32.Vec3{0, 0, 1}},
			{Position: mgl32.Vec3{1, 0, 0}, TexCoord: mgl32.Vec2{1, 0}, Normal: mgl32.Vec3{0, 0, 1}},
		},
		Parts: []core.PartIndices{
			{Name: "body", Material: key("red"), Indices: []uint32{0, 1, 0}},
		},
	}
}

// partsMesh returns a mesh whose parts have the given index counts, all
// indexing vertex 0, with materials m0, m1, ...
func partsMesh(counts ...int) *core.MeshData {
	data := &core.MeshData{Vertices: make([]core.Vertex, 4)}
	for i, n := range counts {
		idx := make([]uint32, n)
		for j := range idx {
			idx[j] = uint32((i + j) % 4)
		}
		data.Parts = append(data.Parts, core.PartIndices{
			Name:     fmt.Sprintf("p%d", i),
			Material: key(fmt.Sprintf("m%d", i)),
			Indices:  idx,
		})
	}
	return data
}

func materialNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("m%d", i)
	}
	return names
}

func TestBuildTwoVertexMesh(t *testing.T) {
	var events []string
	dev := soft.NewDevice()
	reg := newRegistry(&events, "red")
	data := twoVertexMesh()

	m, err := gpu.NewMesh(dev, data, reg)
	require.NoError(t, err)
	defer m.Release()

	require.Equal(t, 1, m.NumParts())
	p := m.Parts()[0]
	assert.Equal(t, int32(3), p.Count)
	assert.Equal(t, 0, p.Offset)
	assert.Same(t, reg[key("red")], p.Material)

	assert.NotZero(t, m.VertexBuffer())
	assert.NotZero(t, m.IndexBuffer())
	assert.NotZero(t, m.VertexArray())
	assert.False(t, m.Empty())
	assert.NoError(t, dev.Err())
	assert.Empty(t, events, "building must not bind materials")

	verts, err := dev.Vertices(m.VertexBuffer())
	require.NoError(t, err)
	assert.Equal(t, data.Vertices, verts)

	idx, err := dev.Indices(m.IndexBuffer(), 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 0}, idx)
}

func TestBuildVertexLayout(t *testing.T) {
	var events []string
	dev := soft.NewDevice()
	m, err := gpu.NewMesh(dev, twoVertexMesh(), newRegistry(&events, "red"))
	require.NoError(t, err)
	defer m.Release()

	va, ok := dev.VertexArrayState(m.VertexArray())
	require.True(t, ok)
	assert.Equal(t, gpu.VertexAttrib{Index: 0, Size: 3, Offset: 0}, va.Attribs[0])
	assert.Equal(t, gpu.VertexAttrib{Index: 1, Size: 2, Offset: 12}, va.Attribs[1])
	assert.Equal(t, gpu.VertexAttrib{Index: 2, Size: 3, Offset: 20}, va.Attribs[2])
	assert.Equal(t, soft.Binding{Buffer: m.VertexBuffer(), Offset: 0, Stride: 32}, va.Bindings[0])
	assert.Equal(t, m.IndexBuffer(), va.Elements)
	assert.Equal(t, 32, gpu.VertexSize)
}

func TestBuildOffsets(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
	}{
		{"single", []int{3}},
		{"several", []int{3, 6, 9}},
		{"uneven", []int{1, 7, 2, 12}},
		{"empty part in the middle", []int{3, 0, 6}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var events []string
			dev := soft.NewDevice()
			data := partsMesh(tc.counts...)
			m, err := gpu.NewMesh(dev, data, newRegistry(&events, materialNames(len(tc.counts))...))
			require.NoError(t, err)
			defer m.Release()

			require.Equal(t, len(tc.counts), m.NumParts())
			assert.Equal(t, 0, m.Parts()[0].Offset)

			sum := 0
			for i, p := range m.Parts() {
				assert.Equal(t, int32(tc.counts[i]), p.Count)
				assert.Equal(t, 4*sum, p.Offset, "part %d", i)

				got, err := dev.Indices(m.IndexBuffer(), p.Offset, int(p.Count))
				require.NoError(t, err)
				want := data.Parts[i].Indices
				if len(want) == 0 {
					want = []uint32{}
				}
				assert.Equal(t, want, got, "part %d", i)
				sum += tc.counts[i]
			}

			buf, ok := dev.Buffer(m.IndexBuffer())
			require.True(t, ok)
			assert.Len(t, buf, 4*sum)
		})
	}
}

func TestBuildAllocationFailure(t *testing.T) {
	tests := []struct {
		name     string
		opts     []soft.Option
		kind     gpu.ObjectKind
		released []gpu.Handle // buffers deleted during rollback
	}{
		{
			name: "vertex buffer",
			opts: []soft.Option{soft.MaxBuffers(0)},
			kind: gpu.VertexBufferObject,
		},
		{
			name:     "index buffer",
			opts:     []soft.Option{soft.MaxBuffers(1)},
			kind:     gpu.IndexBufferObject,
			released: []gpu.Handle{1},
		},
		{
			name:     "vertex layout",
			opts:     []soft.Option{soft.MaxVertexArrays(0)},
			kind:     gpu.VertexLayoutObject,
			released: []gpu.Handle{1, 2},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var events []string
			dev := soft.NewDevice(tc.opts...)
			var m gpu.Mesh

			err := m.Build(dev, twoVertexMesh(), newRegistry(&events, "red"))
			require.Error(t, err)

			var allocErr *gpu.AllocError
			require.True(t, errors.As(err, &allocErr))
			assert.Equal(t, tc.kind, allocErr.Kind)
			assert.Contains(t, err.Error(), tc.kind.String())

			assert.True(t, m.Empty())
			assert.Zero(t, m.NumParts())
			assert.Zero(t, dev.Live(), "no object may outlive a failed build")
			for _, h := range tc.released {
				assert.Equal(t, 1, dev.BufferDeletes(h), "buffer %d", h)
			}
			assert.Zero(t, dev.VertexArrayDeletes(1))
		})
	}
}

func TestBuildMissingMaterial(t *testing.T) {
	var events []string
	dev := soft.NewDevice()
	reg := newRegistry(&events, "m0", "m2")
	data := partsMesh(3, 3, 3)

	m, err := gpu.NewMesh(dev, data, reg)
	require.Error(t, err)
	assert.Nil(t, m)

	var missing *gpu.MissingMaterialError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, 1, missing.Part)
	assert.Equal(t, key("m1"), missing.Key)

	uploads := 0
	for _, c := range dev.Calls() {
		if c.Op == soft.OpBufferSubData {
			uploads++
		}
	}
	assert.Equal(t, 1, uploads, "only the part before the missing one is uploaded")
	assert.Zero(t, dev.Live())
	assert.Equal(t, 1, dev.BufferDeletes(1))
	assert.Equal(t, 1, dev.BufferDeletes(2))
	assert.Equal(t, 1, dev.VertexArrayDeletes(1))
}

func TestBuildDeviceError(t *testing.T) {
	var events []string
	// Two vertices fit, the index storage does not.
	dev := soft.NewDevice(soft.MaxBufferBytes(2 * gpu.VertexSize))

	var m gpu.Mesh
	err := m.Build(dev, twoVertexMesh(), newRegistry(&events, "red"))
	require.Error(t, err)

	var devErr *gpu.DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, "allocate index storage", devErr.Step)
	assert.ErrorIs(t, err, soft.ErrOutOfMemory)
	assert.True(t, m.Empty())
	assert.Zero(t, dev.Live())
	assert.Zero(t, dev.UsedBytes())
}

// faultDevice reports err from Err after the first call of the chosen
// operation, as GL would after a failed upload or a bad layout.
type faultDevice struct {
	*soft.Device
	failOn  soft.Op
	err     error
	pending error
}

func (d *faultDevice) BufferSubData(buf gpu.Handle, offset int, data []byte) {
	d.Device.BufferSubData(buf, offset, data)
	d.trip(soft.OpBufferSubData)
}

func (d *faultDevice) ElementBuffer(vao, buf gpu.Handle) {
	d.Device.ElementBuffer(vao, buf)
	d.trip(soft.OpElementBuffer)
}

func (d *faultDevice) trip(op soft.Op) {
	if op == d.failOn && d.err != nil {
		d.pending, d.err = d.err, nil
	}
}

func (d *faultDevice) Err() error {
	if err := d.pending; err != nil {
		d.pending = nil
		return err
	}
	return d.Device.Err()
}

func TestBuildRollsBackOnLateDeviceErrors(t *testing.T) {
	tests := []struct {
		name   string
		failOn soft.Op
		step   string
	}{
		{"part upload", soft.OpBufferSubData, "upload indices of part body"},
		{"vertex layout", soft.OpElementBuffer, "configure vertex layout"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var events []string
			injected := errors.New("injected device fault")
			dev := &faultDevice{Device: soft.NewDevice(), failOn: tc.failOn, err: injected}

			var m gpu.Mesh
			err := m.Build(dev, twoVertexMesh(), newRegistry(&events, "red"))
			require.Error(t, err)

			var devErr *gpu.DeviceError
			require.True(t, errors.As(err, &devErr))
			assert.Equal(t, tc.step, devErr.Step)
			assert.ErrorIs(t, err, injected)

			assert.True(t, m.Empty())
			assert.Zero(t, dev.Live())
			assert.Equal(t, 1, dev.BufferDeletes(1))
			assert.Equal(t, 1, dev.BufferDeletes(2))
			assert.Equal(t, 1, dev.VertexArrayDeletes(1))
		})
	}
}

func TestBuildNilMaterialIsMissing(t *testing.T) {
	dev := soft.NewDevice()
	reg := testRegistry{key("red"): nil}

	var m gpu.Mesh
	err := m.Build(dev, twoVertexMesh(), reg)

	var missing *gpu.MissingMaterialError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, key("red"), missing.Key)
	assert.True(t, m.Empty())
	assert.Zero(t, dev.Live())
}

func TestBuildIgnoresStaleDeviceErrors(t *testing.T) {
	var events []string
	dev := soft.NewDevice()
	dev.BufferData(99, 4, nil) // unknown buffer, leaves an error behind

	m, err := gpu.NewMesh(dev, twoVertexMesh(), newRegistry(&events, "red"))
	require.NoError(t, err)
	m.Release()
}

func TestBuildFailureKeepsPreviousContents(t *testing.T) {
	var events []string
	dev := soft.NewDevice()
	reg := newRegistry(&events, "red")

	var m gpu.Mesh
	require.NoError(t, m.Build(dev, twoVertexMesh(), reg))
	vbo, ebo, vao := m.VertexBuffer(), m.IndexBuffer(), m.VertexArray()

	bad := twoVertexMesh()
	bad.Parts[0].Material = key("blue")
	require.Error(t, m.Build(dev, bad, reg))

	assert.Equal(t, vbo, m.VertexBuffer())
	assert.Equal(t, ebo, m.IndexBuffer())
	assert.Equal(t, vao, m.VertexArray())
	assert.Equal(t, 1, m.NumParts())
	assert.Equal(t, 3, dev.Live())

	m.Release()
	assert.Zero(t, dev.Live())
}

func TestBuildReplacesPreviousContents(t *testing.T) {
	var events []string
	dev := soft.NewDevice()
	reg := newRegistry(&events, materialNames(3)...)

	var m gpu.Mesh
	require.NoError(t, m.Build(dev, partsMesh(3), reg))
	oldVBO, oldEBO, oldVAO := m.VertexBuffer(), m.IndexBuffer(), m.VertexArray()

	require.NoError(t, m.Build(dev, partsMesh(3, 3, 3), reg))
	assert.Equal(t, 3, m.NumParts())
	assert.Equal(t, 1, dev.BufferDeletes(oldVBO))
	assert.Equal(t, 1, dev.BufferDeletes(oldEBO))
	assert.Equal(t, 1, dev.VertexArrayDeletes(oldVAO))
	assert.Equal(t, 3, dev.Live())

	m.Release()
	assert.Zero(t, dev.Live())
}

func TestMoveFrom(t *testing.T) {
	var events []string
	dev := soft.NewDevice()
	reg := newRegistry(&events, materialNames(2)...)

	var a gpu.Mesh
	require.NoError(t, a.Build(dev, partsMesh(3, 6), reg))
	vbo, ebo, vao := a.VertexBuffer(), a.IndexBuffer(), a.VertexArray()

	var b gpu.Mesh
	b.MoveFrom(&a)

	assert.True(t, a.Empty())
	assert.Zero(t, a.NumParts())
	assert.Zero(t, a.VertexBuffer())
	assert.Zero(t, a.IndexBuffer())
	assert.Zero(t, a.VertexArray())

	assert.Equal(t, 2, b.NumParts())
	assert.Equal(t, vbo, b.VertexBuffer())
	assert.Equal(t, ebo, b.IndexBuffer())
	assert.Equal(t, vao, b.VertexArray())

	a.Release() // no-op on the moved-from mesh
	assert.Equal(t, 3, dev.Live())
	assert.Zero(t, dev.BufferDeletes(vbo))

	b.Release()
	assert.Zero(t, dev.Live())
	assert.Equal(t, 1, dev.BufferDeletes(vbo))
	assert.Equal(t, 1, dev.BufferDeletes(ebo))
	assert.Equal(t, 1, dev.VertexArrayDeletes(vao))
}

func TestMoveFromReleasesDestination(t *testing.T) {
	var events []string
	dev := soft.NewDevice()
	reg := newRegistry(&events, materialNames(2)...)

	var a, b gpu.Mesh
	require.NoError(t, a.Build(dev, partsMesh(3), reg))
	require.NoError(t, b.Build(dev, partsMesh(3, 3), reg))
	oldVBO, oldEBO, oldVAO := b.VertexBuffer(), b.IndexBuffer(), b.VertexArray()

	b.MoveFrom(&a)
	assert.Equal(t, 1, b.NumParts())
	assert.Equal(t, 1, dev.BufferDeletes(oldVBO))
	assert.Equal(t, 1, dev.BufferDeletes(oldEBO))
	assert.Equal(t, 1, dev.VertexArrayDeletes(oldVAO))
	assert.Equal(t, 3, dev.Live())

	b.Release()
	assert.Zero(t, dev.Live())
}

func TestSelfMove(t *testing.T) {
	var events []string
	dev := soft.NewDevice()

	var m gpu.Mesh
	require.NoError(t, m.Build(dev, partsMesh(3, 6), newRegistry(&events, materialNames(2)...)))
	vbo, ebo, vao := m.VertexBuffer(), m.IndexBuffer(), m.VertexArray()

	m.MoveFrom(&m)

	assert.Equal(t, 2, m.NumParts())
	assert.Equal(t, vbo, m.VertexBuffer())
	assert.Equal(t, ebo, m.IndexBuffer())
	assert.Equal(t, vao, m.VertexArray())
	assert.Equal(t, 3, dev.Live())
	m.Release()
}

func TestTake(t *testing.T) {
	var events []string
	dev := soft.NewDevice()
	m, err := gpu.NewMesh(dev, twoVertexMesh(), newRegistry(&events, "red"))
	require.NoError(t, err)

	n := m.Take()
	assert.True(t, m.Empty())
	assert.Equal(t, 1, n.NumParts())
	assert.NotZero(t, n.VertexArray())

	n.Release()
	assert.Zero(t, dev.Live())
}

func TestReleaseIsIdempotent(t *testing.T) {
	var events []string
	dev := soft.NewDevice()
	m, err := gpu.NewMesh(dev, twoVertexMesh(), newRegistry(&events, "red"))
	require.NoError(t, err)
	vbo, ebo, vao := m.VertexBuffer(), m.IndexBuffer(), m.VertexArray()

	m.Release()
	m.Release()

	assert.True(t, m.Empty())
	assert.Equal(t, 1, dev.BufferDeletes(vbo))
	assert.Equal(t, 1, dev.BufferDeletes(ebo))
	assert.Equal(t, 1, dev.VertexArrayDeletes(vao))

	var deletes []soft.Op
	for _, c := range dev.Calls() {
		if c.Op == soft.OpDeleteBuffer || c.Op == soft.OpDeleteVertexArray {
			deletes = append(deletes, c.Op)
		}
	}
	assert.Equal(t, []soft.Op{soft.OpDeleteVertexArray, soft.OpDeleteBuffer, soft.OpDeleteBuffer}, deletes)
}

func TestBuildEmptyMesh(t *testing.T) {
	dev := soft.NewDevice()
	m, err := gpu.NewMesh(dev, &core.MeshData{}, testRegistry{})
	require.NoError(t, err)
	assert.Zero(t, m.NumParts())
	assert.NotZero(t, m.VertexArray())
	assert.False(t, m.Empty())
	m.Release()
	assert.Zero(t, dev.Live())
}
