package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeshDataIndexCount(t *testing.T) {
	d := MeshData{
		Parts: []PartIndices{
			{Indices: []uint32{0, 1, 2}},
			{},
			{Indices: []uint32{2, 1, 0, 0, 1, 2}},
		},
	}
	assert.Equal(t, 9, d.IndexCount())
}

func TestMeshDataValidate(t *testing.T) {
	tests := []struct {
		name    string
		data    MeshData
		wantErr bool
	}{
		{
			name: "in range",
			data: MeshData{
				Vertices: make([]Vertex, 2),
				Parts:    []PartIndices{{Name: "a", Indices: []uint32{0, 1, 0}}},
			},
		},
		{
			name: "empty part",
			data: MeshData{Parts: []PartIndices{{Name: "a"}}},
		},
		{
			name: "out of range",
			data: MeshData{
				Vertices: make([]Vertex, 2),
				Parts:    []PartIndices{{Name: "a", Indices: []uint32{0, 2}}},
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.data.Validate()
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "out of range")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMaterialKey(t *testing.T) {
	lib := MaterialLib{Name: "stk.mtl"}
	k := lib.Key("red")
	assert.Equal(t, MaterialKey{Library: "stk.mtl", Name: "red"}, k)
	assert.Equal(t, "stk.mtl:red", k.String())
}
