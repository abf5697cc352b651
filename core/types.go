package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is one interleaved vertex record as it is laid out in the vertex buffer.
type Vertex struct {
	Position mgl32.Vec3
	TexCoord mgl32.Vec2
	Normal   mgl32.Vec3
}

// MaterialKey identifies a material by the library that declares it and its name
// inside that library.
type MaterialKey struct {
	Library string
	Name    string
}

func (k MaterialKey) String() string {
	return k.Library + ":" + k.Name
}

// PartIndices is the index list of one mesh part together with the material it
// is drawn with.
type PartIndices struct {
	Name     string
	Material MaterialKey
	Indices  []uint32
}

// MeshData is a parsed mesh ready for upload: a flat vertex list and the parts
// indexing into it, in declaration order.
type MeshData struct {
	Vertices []Vertex
	Parts    []PartIndices
}

// IndexCount returns the number of indices over all parts.
func (d *MeshData) IndexCount() int {
	n := 0
	for _, p := range d.Parts {
		n += len(p.Indices)
	}
	return n
}

// Validate checks that every index addresses an existing vertex.
func (d *MeshData) Validate() error {
	for pi, p := range d.Parts {
		for ii, idx := range p.Indices {
			if int(idx) >= len(d.Vertices) {
				return fmt.Errorf("part %d (%s): index %d at position %d out of range (%d vertices)",
					pi, p.Name, idx, ii, len(d.Vertices))
			}
		}
	}
	return nil
}

// MaterialDesc is one material entry of a material library.
type MaterialDesc struct {
	Name       string
	DiffuseMap string     // texture file, relative to the texture directory
	Diffuse    [3]float32 // used when DiffuseMap is empty
}

// MaterialLib is a named set of materials, typically one .mtl file.
type MaterialLib struct {
	Name      string
	Materials []MaterialDesc
}

// Key returns the registry key of the named material of this library.
func (l *MaterialLib) Key(name string) MaterialKey {
	return MaterialKey{Library: l.Name, Name: name}
}
